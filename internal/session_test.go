package internal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartEnd(t *testing.T) {
	tracker := NewSessionTracker(filepath.Join(t.TempDir(), "sessions.jsonl"), "myproject")

	require.NoError(t, tracker.Start("abc12345"))
	require.NoError(t, tracker.End("abc12345"))

	events, stats, err := tracker.Events()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Corrupted)
	require.Len(t, events, 2)

	assert.Equal(t, SessionStart, events[0].Type)
	assert.Equal(t, "abc12345", events[0].SessionID)
	assert.Equal(t, "myproject", events[0].Project)
	assert.NotEmpty(t, events[0].Timestamp)
	assert.Equal(t, SessionEnd, events[1].Type)
}

func TestSessionCount(t *testing.T) {
	tracker := NewSessionTracker(filepath.Join(t.TempDir(), "sessions.jsonl"), "p")

	assert.Equal(t, 0, tracker.Count())

	require.NoError(t, tracker.Start("a"))
	require.NoError(t, tracker.End("a"))
	require.NoError(t, tracker.Start("b"))

	// Only starts count; the unmatched start still increments.
	assert.Equal(t, 2, tracker.Count())
}

func TestSessionLastEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	tracker := NewSessionTracker(path, "p")

	_, ok := tracker.LastEnd()
	assert.False(t, ok)

	writeLog(t, path,
		`{"type":"end","sid":"a","ts":"2026-01-01T10:00:00Z"}`,
		`{"type":"end","sid":"b","ts":"2026-01-02T10:00:00Z"}`,
		`{"type":"start","sid":"c","ts":"2026-01-03T10:00:00Z"}`,
	)

	last, ok := tracker.LastEnd()
	require.True(t, ok)
	assert.Equal(t, "2026-01-02T10:00:00Z", last)
}

func TestSessionStatsPairing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	writeLog(t, path,
		`{"type":"start","sid":"a","ts":"2026-01-01T10:00:00Z"}`,
		`{"type":"start","sid":"b","ts":"2026-01-01T11:00:00Z"}`,
		`{"type":"end","sid":"a","ts":"2026-01-01T12:30:00Z"}`,
	)
	tracker := NewSessionTracker(path, "p")

	stats, err := tracker.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "a", stats[0].ID)
	assert.Equal(t, 2*time.Hour+30*time.Minute, stats[0].Duration)

	assert.Equal(t, "b", stats[1].ID)
	assert.Empty(t, stats[1].End)
	assert.Zero(t, stats[1].Duration)
}

func TestSessionStatsEndBeforeStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	writeLog(t, path,
		`{"type":"start","sid":"a","ts":"2026-01-02T10:00:00Z"}`,
		`{"type":"end","sid":"a","ts":"2026-01-01T10:00:00Z"}`,
	)
	tracker := NewSessionTracker(path, "p")

	stats, err := tracker.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Duration, "clock skew must not produce a negative duration")
}

func TestSessionUnknownEventTypeIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	writeLog(t, path,
		`{"type":"start","sid":"a","ts":"2026-01-01T10:00:00Z"}`,
		`{"type":"pause","sid":"a","ts":"2026-01-01T10:30:00Z"}`,
		`{"type":"end","sid":"a","ts":"2026-01-01T11:00:00Z"}`,
	)
	tracker := NewSessionTracker(path, "p")

	assert.Equal(t, 1, tracker.Count())

	_, ok := tracker.LastEnd()
	assert.True(t, ok)

	stats, err := tracker.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, time.Hour, stats[0].Duration)
}

func TestNewSessionIDShape(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
