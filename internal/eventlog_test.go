package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.jsonl")

	for i := 0; i < 3; i++ {
		res, err := AppendRecord(path, CommitRecord{
			Hash:      fmt.Sprintf("hash%d", i),
			Message:   fmt.Sprintf("commit %d", i),
			Timestamp: NowStamp(),
		})
		require.NoError(t, err)
		assert.True(t, res.Locked)
	}

	records, stats, err := ReadRecords[CommitRecord](path)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Corrupted)
	require.Len(t, records, 3)
	assert.Equal(t, "hash0", records[0].Hash)
	assert.Equal(t, "hash2", records[2].Hash)
}

func TestAppendCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "log.jsonl")

	_, err := AppendRecord(path, SessionEvent{Type: SessionStart, SessionID: "s1", Timestamp: NowStamp()})
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestReadMissingFile(t *testing.T) {
	records, stats, err := ReadRecords[CommitRecord](filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Equal(t, 0, stats.Corrupted)
}

func TestReadSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	content := `{"h":"aaa","m":"first","t":"2026-01-01T00:00:00Z"}
not json at all
{"h":"bbb","m":"second","t":"2026-01-02T00:00:00Z"}
{"broken":
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, stats, err := ReadRecords[CommitRecord](path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Corrupted)
	require.Len(t, records, 2)
	assert.Equal(t, "aaa", records[0].Hash)
	assert.Equal(t, "bbb", records[1].Hash)
}

func TestRepairLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	content := `{"h":"aaa","t":"2026-01-01T00:00:00Z"}
garbage line
{"h":"bbb","t":"2026-01-02T00:00:00Z"}
{{{{
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	removed, err := RepairLog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "line %q should be valid JSON", line)
	}
}

func TestRepairLogClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"h":"aaa"}`+"\n"), 0644))

	removed, err := RepairLog(path)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRepairLogMissing(t *testing.T) {
	removed, err := RepairLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

// Concurrent appends with distinct payloads: every line read back must parse
// as valid JSON, and at least as many lines as locked appends must survive.
func TestConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	const writers = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		locked int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := AppendRecord(path, SessionEvent{
				Type:      SessionStart,
				SessionID: fmt.Sprintf("s%02d", n),
				Timestamp: NowStamp(),
			})
			assert.NoError(t, err)
			if res.Locked {
				mu.Lock()
				locked++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	records, stats, err := ReadRecords[SessionEvent](path)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Corrupted)
	assert.GreaterOrEqual(t, len(records), locked)
	assert.LessOrEqual(t, len(records), writers)
}

func TestAppendProceedsWhenLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	// A live-looking lock held by this very process never goes stale.
	require.NoError(t, os.WriteFile(path+".lock", []byte(fmt.Sprint(os.Getpid())), 0644))

	res, err := AppendRecord(path, SessionEvent{Type: SessionStart, SessionID: "s1", Timestamp: NowStamp()})
	require.NoError(t, err)
	assert.False(t, res.Locked)

	records, _, err := ReadRecords[SessionEvent](path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStaleLockCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	// PID 1 is never signalable by the test user, but an absurdly high PID
	// should not exist at all.
	require.NoError(t, os.WriteFile(path+".lock", []byte("999999"), 0644))

	res, err := AppendRecord(path, SessionEvent{Type: SessionStart, SessionID: "s1", Timestamp: NowStamp()})
	require.NoError(t, err)
	assert.True(t, res.Locked)

	_, statErr := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(statErr), "lock should be released after append")
}
