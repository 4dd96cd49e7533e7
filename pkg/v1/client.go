package v1

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cortexhq/cortex/internal"
)

// Client gives tools that embed cortex programmatic access to one project's
// memory store: the same logs, snapshots, and context document the CLI
// manages, without shelling out to the binary.
type Client struct {
	ws       internal.Workspace
	cfg      *internal.Config
	sessions *internal.SessionTracker
}

// New creates a Client for the project containing the working directory, or
// the directory given via WithDir.
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, opt := range opts {
		opt(cc)
	}

	if cc.cfg == nil {
		cfg, err := internal.LoadConfig(internal.ConfigPath())
		if err != nil {
			return nil, err
		}
		cc.cfg = cfg
	}

	dir := cc.dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}

	ws, err := internal.ResolveWorkspace(dir)
	if err != nil {
		return nil, err
	}

	return &Client{
		ws:       ws,
		cfg:      cc.cfg,
		sessions: internal.NewSessionTracker(ws.SessionsLog(), ws.Project()),
	}, nil
}

// Init creates the store skeleton. Safe to call repeatedly.
func (c *Client) Init() error {
	return c.ws.Init()
}

// Context synthesizes the context document from the current store state.
func (c *Client) Context(ctx context.Context) (string, error) {
	synth, err := c.synthesizer()
	if err != nil {
		return "", err
	}
	return synth.Synthesize(ctx), nil
}

// PublishContext synthesizes and writes SESSION_CONTEXT.md atomically.
func (c *Client) PublishContext(ctx context.Context) error {
	synth, err := c.synthesizer()
	if err != nil {
		return err
	}
	return synth.Publish(ctx)
}

func (c *Client) synthesizer() (*internal.Synthesizer, error) {
	var tree internal.WorkTree
	var git internal.GitCollaborator
	if repo, err := internal.OpenRepo(c.ws.Root); err == nil {
		tree = repo
		git = repo
	}

	snapshots := internal.NewSnapshotStore(c.ws.SnapshotsDir(), tree)
	return internal.NewSynthesizer(c.ws, c.cfg, git, snapshots, c.sessions), nil
}

// Commits returns recorded commits, newest last. A non-zero limit keeps only
// the most recent entries.
func (c *Client) Commits(ctx context.Context, limit int) ([]Commit, error) {
	records, _, err := internal.ReadRecords[internal.CommitRecord](c.ws.CommitsLog())
	if err != nil {
		return nil, fmt.Errorf("read commit log: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	out := make([]Commit, 0, len(records))
	for _, r := range records {
		out = append(out, Commit{
			Hash:       r.Hash,
			Message:    r.Message,
			Files:      r.FileList(),
			Insertions: r.Insertions,
			Deletions:  r.Deletions,
			Branch:     r.Branch,
			Timestamp:  parseStamp(r.Timestamp),
		})
	}
	return out, nil
}

// Sessions returns the tracked session history.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	stats, err := c.sessions.Stats()
	if err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}

	out := make([]Session, 0, len(stats))
	for _, s := range stats {
		out = append(out, Session{
			ID:       s.ID,
			Start:    parseStamp(s.Start),
			End:      parseStamp(s.End),
			Duration: s.Duration,
		})
	}
	return out, nil
}

// StartSession records a session start and returns its id.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	sid := internal.NewSessionID()
	if err := c.sessions.Start(sid); err != nil {
		return "", err
	}
	return sid, nil
}

// EndSession records a session end.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.sessions.End(sessionID)
}

// Snapshots lists captured snapshots, oldest first.
func (c *Client) Snapshots(ctx context.Context) ([]Snapshot, error) {
	store := internal.NewSnapshotStore(c.ws.SnapshotsDir(), nil)
	summaries, err := store.List()
	if err != nil {
		return nil, err
	}
	latest, _ := store.Latest()

	out := make([]Snapshot, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, Snapshot{
			ID:        s.ID,
			Timestamp: parseStamp(s.Timestamp),
			FileCount: s.FileCount,
			Summary:   s.Summary,
			Latest:    s.ID == latest,
		})
	}
	return out, nil
}

// CaptureSnapshot captures the current uncommitted work. The returned id is
// empty when the working tree is clean.
func (c *Client) CaptureSnapshot(ctx context.Context, sessionID string) (string, error) {
	repo, err := internal.OpenRepo(c.ws.Root)
	if err != nil {
		return "", err
	}

	store := internal.NewSnapshotStore(c.ws.SnapshotsDir(), repo)
	result, err := store.Capture(ctx, "", sessionID)
	if err != nil {
		return "", err
	}
	if result.NoChanges {
		return "", nil
	}
	return result.ID, nil
}

func parseStamp(stamp string) time.Time {
	t, err := time.Parse(internal.TimeLayout, stamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
