package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".cortexignore"

// IgnoreMatcher filters filesystem events for the watcher using gitignore
// pattern syntax from an optional .cortexignore at the project root.
type IgnoreMatcher struct {
	patterns []gitignore.Pattern
	basePath string
}

func NewIgnoreMatcher(basePath string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{basePath: basePath}

	patterns, err := parseIgnoreFile(filepath.Join(basePath, IgnoreFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	m.patterns = patterns
	return m, nil
}

func (m *IgnoreMatcher) Match(path string) bool {
	return m.match(path, false)
}

func (m *IgnoreMatcher) MatchDir(path string) bool {
	return m.match(path, true)
}

func (m *IgnoreMatcher) match(path string, isDir bool) bool {
	relPath, err := filepath.Rel(m.basePath, path)
	if err != nil {
		return false
	}

	pathParts := strings.Split(relPath, string(filepath.Separator))
	for _, p := range m.patterns {
		if p.Match(pathParts, isDir) == gitignore.Exclude {
			return true
		}
	}
	return false
}

// Patterns are parsed with a nil domain because match tests path parts
// relative to the base; a domain prefix would never line up with them.
func parseIgnoreFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, scanner.Err()
}
