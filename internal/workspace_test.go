package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspacePaths(t *testing.T) {
	ws := NewWorkspace("/home/dev/myproject")

	assert.Equal(t, "/home/dev/myproject/.cortex", ws.Dir)
	assert.Equal(t, "/home/dev/myproject/.cortex/commits.jsonl", ws.CommitsLog())
	assert.Equal(t, "/home/dev/myproject/.cortex/snapshots", ws.SnapshotsDir())
	assert.Equal(t, "/home/dev/myproject/.cortex/SESSION_CONTEXT.md", ws.ContextPath())
	assert.Equal(t, "myproject", ws.Project())
}

func TestWorkspaceInitIdempotent(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	assert.False(t, ws.Exists())

	require.NoError(t, ws.Init())
	require.NoError(t, ws.Init())
	assert.True(t, ws.Exists())

	for _, dir := range []string{ws.Dir, ws.SnapshotsDir(), ws.EnrichmentsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolveWorkspaceFindsCortexDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, CortexDirName), 0755))
	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))

	ws, err := ResolveWorkspace(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
}

func TestResolveWorkspaceFindsGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	nested := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))

	ws, err := ResolveWorkspace(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
}

func TestResolveWorkspacePrefersCortexOverGit(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outer, ".git"), 0755))
	inner := filepath.Join(outer, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(inner, CortexDirName), 0755))

	ws, err := ResolveWorkspace(inner)
	require.NoError(t, err)
	assert.Equal(t, inner, ws.Root)
}

func TestResolveWorkspaceFallsBackToDir(t *testing.T) {
	dir := t.TempDir()

	ws, err := ResolveWorkspace(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, ws.Root)
}

func TestWorkspaceEnvVars(t *testing.T) {
	ws := NewWorkspace("/tmp/proj")
	env := ws.EnvVars("1.2.3")

	assert.Equal(t, "/tmp/proj", env["CORTEX_ROOT"])
	assert.Equal(t, "/tmp/proj/.cortex", env["CORTEX_DIR"])
	assert.Equal(t, "proj", env["CORTEX_PROJECT"])
	assert.Equal(t, "1.2.3", env["CORTEX_VERSION"])
	assert.NotEmpty(t, env["CORTEX_BIN"])
}
