package internal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AppendResult reports how an append went. Locked is false when lock
// acquisition was exhausted and the write proceeded unlocked; under extreme
// contention two such writers may interleave lines, which we prefer over
// dropping the record.
type AppendResult struct {
	Locked bool
}

// AppendRecord serializes record to a single JSON line and appends it to the
// log at path, creating parent directories as needed. The only hard failure
// is being unable to create the containing directory or open the file.
func AppendRecord(path string, record any) (AppendResult, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return AppendResult{}, fmt.Errorf("marshal record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return AppendResult{}, fmt.Errorf("create log directory: %w", err)
	}

	lock, locked := AcquireLock(path)
	defer lock.Release()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return AppendResult{Locked: locked}, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return AppendResult{Locked: locked}, fmt.Errorf("append record: %w", err)
	}
	return AppendResult{Locked: locked}, nil
}

// ReadStats counts what Read skipped.
type ReadStats struct {
	Corrupted int
}

// ReadRecords parses every line of the log at path into T. Lines that fail
// to parse are counted and skipped; a missing file yields an empty slice.
// Reading never aborts on corruption.
func ReadRecords[T any](path string) ([]T, ReadStats, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ReadStats{}, nil
	}
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var (
		records []T
		stats   ReadStats
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec T
		if !json.Valid(line) || json.Unmarshal(line, &rec) != nil {
			stats.Corrupted++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		// Partial reads still return what parsed so far.
		return records, stats, nil
	}
	return records, stats, nil
}

// RepairLog rewrites the log keeping only lines that parse as JSON,
// returning the number of lines removed. The rewrite goes through a temp
// file and rename so readers never observe a truncated log.
func RepairLog(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var (
		kept    []byte
		removed int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			removed++
			continue
		}
		kept = append(kept, line...)
		kept = append(kept, '\n')
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan log: %w", err)
	}

	if removed == 0 {
		return 0, nil
	}

	lock, _ := AcquireLock(path)
	defer lock.Release()

	if err := atomicWrite(path, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// atomicWrite writes data to a temp file in the same directory and renames
// it over path. Stale-but-intact beats partially overwritten.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}
