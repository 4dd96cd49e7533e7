package v1

import "time"

// Commit is one recorded commit from the project's activity log.
type Commit struct {
	Hash       string    `json:"hash"`
	Message    string    `json:"message"`
	Files      []string  `json:"files,omitempty"`
	Insertions int       `json:"insertions"`
	Deletions  int       `json:"deletions"`
	Branch     string    `json:"branch,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session is one tracked work session, possibly still open.
type Session struct {
	ID       string        `json:"id"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Snapshot describes one captured bundle of uncommitted work.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	FileCount int       `json:"file_count"`
	Summary   string    `json:"summary"`
	Latest    bool      `json:"latest"`
}
