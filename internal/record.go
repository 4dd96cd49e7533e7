package internal

import (
	"strings"
	"time"
)

// TimeLayout is the wire format for every persisted timestamp.
// Lexicographic comparison of two stamps matches chronological order,
// which is what compaction relies on.
const TimeLayout = "2006-01-02T15:04:05Z"

func Stamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func NowStamp() string {
	return Stamp(time.Now())
}

// CommitRecord is one line of commits.jsonl. The short field names are
// load-bearing: existing stores written by older cortex versions use them.
type CommitRecord struct {
	Hash       string `json:"h"`
	Message    string `json:"m"`
	Files      string `json:"f"`
	Insertions int    `json:"i"`
	Deletions  int    `json:"d"`
	Branch     string `json:"b"`
	Parents    int    `json:"p"`
	Timestamp  string `json:"t"`
}

// FileList splits the comma-separated file field.
func (r CommitRecord) FileList() []string {
	if r.Files == "" {
		return nil
	}
	parts := strings.Split(r.Files, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const (
	SessionStart = "start"
	SessionEnd   = "end"
)

// SessionEvent is one line of sessions.jsonl.
type SessionEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sid"`
	Timestamp string `json:"ts"`
	Project   string `json:"project,omitempty"`
}

// SnapshotMeta is the metadata artifact of a captured snapshot bundle.
type SnapshotMeta struct {
	Timestamp        string `json:"timestamp"`
	SessionID        string `json:"session_id"`
	UncommittedFiles int    `json:"uncommitted_files"`
	Summary          string `json:"summary"`
	DiffFile         string `json:"diff_file"`
	FilesFile        string `json:"files_file"`
}
