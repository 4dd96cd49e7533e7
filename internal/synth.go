package internal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Documented defaults for sections with no data. The synthesizer absorbs
// every missing or malformed input into one of these; it must produce a
// document even with zero inputs available.
const (
	noCommits = "No commits found."
	noneText  = "None."
)

// idleBranchAfter is how long a branch can go without commits before the
// context document calls it out.
const idleBranchAfter = 7 * 24 * time.Hour

// Synthesizer merges the commit log, session log, snapshot store, and the
// optional git/notes/enrichment collaborators into one markdown context
// document. It is a pure function of its inputs: unchanged inputs yield
// identical output apart from the generated-at header.
type Synthesizer struct {
	ws        Workspace
	cfg       *Config
	git       GitCollaborator // nil outside a git repository
	snapshots *SnapshotStore
	sessions  *SessionTracker
	enrich    *EnrichmentStore
	now       func() time.Time
}

func NewSynthesizer(ws Workspace, cfg *Config, git GitCollaborator, snapshots *SnapshotStore, sessions *SessionTracker) *Synthesizer {
	return &Synthesizer{
		ws:        ws,
		cfg:       cfg,
		git:       git,
		snapshots: snapshots,
		sessions:  sessions,
		enrich:    NewEnrichmentStore(ws.EnrichmentsDir()),
		now:       time.Now,
	}
}

// Synthesize builds the full context document.
func (s *Synthesizer) Synthesize(ctx context.Context) string {
	now := s.now().UTC()
	var b strings.Builder

	commits, commitStats, _ := ReadRecords[CommitRecord](s.ws.CommitsLog())
	sessionCount := s.sessions.Count()

	fmt.Fprintf(&b, "# Cortex Context\n")
	fmt.Fprintf(&b, "**Generated:** %s | **Session:** #%d | **Project:** %s\n\n",
		Stamp(now), sessionCount, s.ws.Project())

	s.writeSinceLastSession(&b, commits)
	s.writeRecentCommits(&b, commits, now)
	s.writeCurrentTask(&b)
	s.writeGitStatus(&b)
	s.writeWarnings(&b, commitStats)
	s.writePreviousSession(&b)
	s.writeNotes(&b)
	s.writeEnrichment(&b)

	return b.String()
}

// Publish synthesizes and writes the document via temp-and-rename, so no
// reader ever observes it partially written.
func (s *Synthesizer) Publish(ctx context.Context) error {
	doc := s.Synthesize(ctx)
	if err := s.ws.Init(); err != nil {
		return err
	}
	return atomicWrite(s.ws.ContextPath(), []byte(doc))
}

func (s *Synthesizer) writeSinceLastSession(b *strings.Builder, commits []CommitRecord) {
	b.WriteString("## Since Last Session\n")

	lastEnd, ok := s.sessions.LastEnd()
	if !ok {
		b.WriteString(noneText + "\n\n")
		return
	}

	var recent []CommitRecord
	for _, c := range commits {
		if c.Timestamp >= lastEnd {
			recent = append(recent, c)
		}
	}
	if len(recent) == 0 {
		b.WriteString(noneText + "\n\n")
		return
	}

	for _, c := range recent {
		writeCommitLine(b, c)
	}
	b.WriteString("\n")
}

func (s *Synthesizer) writeRecentCommits(b *strings.Builder, commits []CommitRecord, now time.Time) {
	fmt.Fprintf(b, "## Recent Commits (%dh)\n", s.cfg.RecentWindowHours)

	cutoff := Stamp(now.Add(-s.cfg.RecentWindow()))
	var recent []CommitRecord
	for _, c := range commits {
		if c.Timestamp >= cutoff {
			recent = append(recent, c)
		}
	}
	if len(recent) > s.cfg.RecentCommitLimit {
		recent = recent[len(recent)-s.cfg.RecentCommitLimit:]
	}

	if len(recent) > 0 {
		for _, c := range recent {
			writeCommitLine(b, c)
		}
		b.WriteString("\n")
		return
	}

	// Nothing in the log's window: fall back to the repository's last N.
	if s.git != nil {
		if fallback := s.git.RecentCommits(time.Time{}, s.cfg.RecentCommitLimit); len(fallback) > 0 {
			for _, c := range fallback {
				fmt.Fprintf(b, "- %s %s\n", c.Hash, c.Message)
			}
			b.WriteString("\n")
			return
		}
	}

	b.WriteString(noCommits + "\n\n")
}

func writeCommitLine(b *strings.Builder, c CommitRecord) {
	hash := c.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	fmt.Fprintf(b, "- %s %s [+%d/-%d] %s\n", hash, c.Message, c.Insertions, c.Deletions, c.Files)
}

func (s *Synthesizer) writeCurrentTask(b *strings.Builder) {
	b.WriteString("## Current Task\n")

	latest, ok := s.snapshots.Latest()
	if !ok {
		b.WriteString(noneText + "\n\n")
		return
	}
	_, meta, err := s.snapshots.Show(latest)
	if err != nil || meta.UncommittedFiles == 0 {
		b.WriteString(noneText + "\n\n")
		return
	}

	fmt.Fprintf(b, "Uncommitted work snapshot %s (%d files): %s\n\n",
		latest, meta.UncommittedFiles, meta.Summary)
}

func (s *Synthesizer) writeGitStatus(b *strings.Builder) {
	b.WriteString("## Git Status\n")

	if s.git == nil {
		b.WriteString("Not a git repository.\n\n")
		return
	}

	branch := s.git.Branch()
	if branch == "" {
		branch = "(unknown)"
	}
	fmt.Fprintf(b, "Branch: %s | Uncommitted: %d files\n", branch, s.git.UncommittedCount())

	last := s.git.LastCommit()
	if last == "" {
		last = "no commits"
	}
	fmt.Fprintf(b, "Last: %s\n\n", last)
}

func (s *Synthesizer) writeWarnings(b *strings.Builder, commitStats ReadStats) {
	b.WriteString("## Warnings\n")

	var warnings []string
	if s.git != nil {
		if n := s.git.UncommittedCount(); n > 10 {
			warnings = append(warnings, fmt.Sprintf("%d uncommitted files, consider committing or capturing a snapshot", n))
		}
		if s.git.Branch() == DetachedMarker {
			warnings = append(warnings, "HEAD is detached")
		}
		if last := s.git.RecentCommits(time.Time{}, 1); len(last) > 0 {
			if idle := s.now().Sub(last[0].When); idle > idleBranchAfter {
				warnings = append(warnings, fmt.Sprintf("no commits in %dd on this branch", int(idle.Hours()/24)))
			}
		}
	}
	if commitStats.Corrupted > 0 {
		warnings = append(warnings, fmt.Sprintf("%d unparseable lines in commit log (run `cortex repair`)", commitStats.Corrupted))
	}
	if _, sessStats, _ := s.sessions.Events(); sessStats.Corrupted > 0 {
		warnings = append(warnings, fmt.Sprintf("%d unparseable lines in session log (run `cortex repair`)", sessStats.Corrupted))
	}

	if len(warnings) == 0 {
		b.WriteString(noneText + "\n\n")
		return
	}
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s\n", w)
	}
	b.WriteString("\n")
}

func (s *Synthesizer) writePreviousSession(b *strings.Builder) {
	stats, err := s.sessions.Stats()
	if err != nil {
		return
	}
	for i := len(stats) - 1; i >= 0; i-- {
		if stats[i].End == "" {
			continue
		}
		b.WriteString("## Previous Session\n")
		if stats[i].Duration > 0 {
			fmt.Fprintf(b, "Ended %s (duration %s)\n\n", stats[i].End, stats[i].Duration.Round(time.Minute))
		} else {
			fmt.Fprintf(b, "Ended %s\n\n", stats[i].End)
		}
		return
	}
}

func (s *Synthesizer) writeNotes(b *strings.Builder) {
	notes, ok := ReadNotes(s.ws.NotesPath())
	if !ok {
		return
	}
	b.WriteString("## Notes\n")
	b.WriteString(notes)
	b.WriteString("\n\n")
}

func (s *Synthesizer) writeEnrichment(b *strings.Builder) {
	if s.cfg != nil && !s.cfg.Enrichment {
		return
	}
	blocks := s.enrich.Blocks(5)
	if len(blocks) == 0 {
		return
	}
	b.WriteString("## Enrichment\n")
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
}
