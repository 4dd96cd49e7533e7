package internal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CompactStats aggregates what a retention pass removed.
type CompactStats struct {
	EntriesRemoved   int
	MalformedDropped int
	SnapshotsRemoved int
}

func (s CompactStats) Add(o CompactStats) CompactStats {
	s.EntriesRemoved += o.EntriesRemoved
	s.MalformedDropped += o.MalformedDropped
	s.SnapshotsRemoved += o.SnapshotsRemoved
	return s
}

// CompactLog rewrites the log at path keeping entries whose timestamp is
// >= cutoff. Cutoff comparison is lexicographic on the ISO-8601 stamps,
// which is sufficient for UTC wire timestamps and avoids parsing ambiguity.
// Malformed lines are dropped as a side effect. A missing log is zero work.
func CompactLog(path, cutoff string) (CompactStats, error) {
	return rewriteLog(path, func(line []byte) (bool, bool) {
		ts, ok := entryTimestamp(line)
		if !ok {
			return false, true
		}
		return ts >= cutoff, false
	})
}

// CapLog truncates the log to its last maxLines entries regardless of age.
// Used for session logs to bound growth independent of retention policy.
func CapLog(path string, maxLines int) (CompactStats, error) {
	lines, stats, err := readLines(path)
	if err != nil || lines == nil {
		return stats, err
	}

	if len(lines) <= maxLines {
		return stats, nil
	}

	keep := lines[len(lines)-maxLines:]
	stats.EntriesRemoved = len(lines) - maxLines

	lock, _ := AcquireLock(path)
	defer lock.Release()

	if err := atomicWrite(path, joinLines(keep)); err != nil {
		return CompactStats{}, err
	}
	return stats, nil
}

// CompactSnapshots deletes every snapshot bundle in dir whose timestamp is
// older than cutoff, artifacts included. The snapshot referenced by the
// latest pointer is not special-cased; resolution re-checks existence, so a
// dangling pointer reads as absent.
func CompactSnapshots(dir, cutoff string) (CompactStats, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return CompactStats{}, nil
	}
	if err != nil {
		return CompactStats{}, fmt.Errorf("read snapshots dir: %w", err)
	}

	var stats CompactStats
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		metaPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta SnapshotMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			// Unreadable metadata is itself expired garbage.
			removeSnapshotArtifacts(dir, strings.TrimSuffix(entry.Name(), ".json"), meta)
			stats.SnapshotsRemoved++
			continue
		}

		if meta.Timestamp < cutoff {
			removeSnapshotArtifacts(dir, strings.TrimSuffix(entry.Name(), ".json"), meta)
			stats.SnapshotsRemoved++
		}
	}
	return stats, nil
}

func removeSnapshotArtifacts(dir, id string, meta SnapshotMeta) {
	for _, name := range []string{id + ".json", meta.DiffFile, meta.FilesFile} {
		if name == "" {
			continue
		}
		_ = os.Remove(filepath.Join(dir, filepath.Base(name)))
	}
}

// entryTimestamp pulls the timestamp out of a raw log line. Commit records
// use "t", session events "ts", snapshot metadata "timestamp".
func entryTimestamp(line []byte) (string, bool) {
	var probe struct {
		T         string `json:"t"`
		TS        string `json:"ts"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return "", false
	}
	for _, ts := range []string{probe.T, probe.TS, probe.Timestamp} {
		if ts != "" {
			return ts, true
		}
	}
	return "", false
}

func rewriteLog(path string, keep func(line []byte) (kept bool, malformed bool)) (CompactStats, error) {
	lines, stats, err := readLines(path)
	if err != nil || lines == nil {
		return stats, err
	}

	var out [][]byte
	for _, line := range lines {
		kept, malformed := keep(line)
		switch {
		case malformed:
			stats.MalformedDropped++
		case kept:
			out = append(out, line)
		default:
			stats.EntriesRemoved++
		}
	}

	if stats.EntriesRemoved == 0 && stats.MalformedDropped == 0 {
		return stats, nil
	}

	lock, _ := AcquireLock(path)
	defer lock.Release()

	if err := atomicWrite(path, joinLines(out)); err != nil {
		return CompactStats{}, err
	}
	return stats, nil
}

func readLines(path string) ([][]byte, CompactStats, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, CompactStats{}, nil
	}
	if err != nil {
		return nil, CompactStats{}, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, CompactStats{}, fmt.Errorf("scan log: %w", err)
	}
	if lines == nil {
		lines = [][]byte{}
	}
	return lines, CompactStats{}, nil
}

func joinLines(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
