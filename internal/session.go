package internal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionTracker records session lifecycle events into sessions.jsonl.
// There is no global "current session": multiple sessions with distinct ids
// may be open at once, and an unmatched start (crash before end) is a valid
// state, not an error.
type SessionTracker struct {
	path    string
	project string
}

func NewSessionTracker(path, project string) *SessionTracker {
	return &SessionTracker{path: path, project: project}
}

func NewSessionID() string {
	return uuid.NewString()[:8]
}

func (t *SessionTracker) Start(sessionID string) error {
	return t.append(SessionStart, sessionID)
}

func (t *SessionTracker) End(sessionID string) error {
	return t.append(SessionEnd, sessionID)
}

func (t *SessionTracker) append(eventType, sessionID string) error {
	event := SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: NowStamp(),
		Project:   t.project,
	}
	if _, err := AppendRecord(t.path, event); err != nil {
		return fmt.Errorf("record session %s: %w", eventType, err)
	}
	return nil
}

func (t *SessionTracker) Events() ([]SessionEvent, ReadStats, error) {
	return ReadRecords[SessionEvent](t.path)
}

// Count is the number of start events; it doubles as the monotonically
// increasing session counter in the context document header.
func (t *SessionTracker) Count() int {
	events, _, err := t.Events()
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range events {
		if e.Type == SessionStart {
			n++
		}
	}
	return n
}

// LastEnd returns the timestamp of the most recent end event.
func (t *SessionTracker) LastEnd() (string, bool) {
	events, _, err := t.Events()
	if err != nil {
		return "", false
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == SessionEnd && events[i].Timestamp != "" {
			return events[i].Timestamp, true
		}
	}
	return "", false
}

type SessionStat struct {
	ID       string
	Start    string
	End      string
	Duration time.Duration
}

// Stats pairs start and end events by session id. Starts without a matching
// end appear with a zero duration; they contribute nothing to totals.
func (t *SessionTracker) Stats() ([]SessionStat, error) {
	events, _, err := t.Events()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*SessionStat)
	var order []string
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		stat, ok := byID[e.SessionID]
		if !ok {
			stat = &SessionStat{ID: e.SessionID}
			byID[e.SessionID] = stat
			order = append(order, e.SessionID)
		}
		switch e.Type {
		case SessionStart:
			if stat.Start == "" {
				stat.Start = e.Timestamp
			}
		case SessionEnd:
			stat.End = e.Timestamp
		}
	}

	out := make([]SessionStat, 0, len(order))
	for _, id := range order {
		stat := byID[id]
		if stat.Start != "" && stat.End != "" {
			start, err1 := time.Parse(TimeLayout, stat.Start)
			end, err2 := time.Parse(TimeLayout, stat.End)
			if err1 == nil && err2 == nil && end.After(start) {
				stat.Duration = end.Sub(start)
			}
		}
		out = append(out, *stat)
	}
	return out, nil
}
