package internal

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnrichmentStore reads opaque free-text blocks dropped into the
// enrichments directory by external cortex-* generators, keyed by commit
// hash or session id. Consumed best-effort: never blocks, never errors.
type EnrichmentStore struct {
	dir string
}

func NewEnrichmentStore(dir string) *EnrichmentStore {
	return &EnrichmentStore{dir: dir}
}

// Blocks returns up to limit enrichment texts, newest first.
func (e *EnrichmentStore) Blocks(limit int) []string {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil
	}

	type block struct {
		name string
		text string
	}
	var blocks []block
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		blocks = append(blocks, block{name: entry.Name(), text: text})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].name > blocks[j].name })
	if limit > 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}

	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.text
	}
	return out
}

// ReadNotes returns the user's free-text notes file, if present and
// non-empty.
func ReadNotes(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	return text, text != ""
}
