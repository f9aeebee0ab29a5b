package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	require.NoError(t, ValidatePath("/var/log/ducker/events.jsonl"))
	require.NoError(t, ValidatePath("logs/events.jsonl"))
	require.NoError(t, ValidatePath("logs/events..jsonl"))

	assert.Error(t, ValidatePath(""))
	assert.ErrorIs(t, ValidatePath("../etc/passwd"), ErrPathTraversal)
	assert.ErrorIs(t, ValidatePath("logs/../../secret.jsonl"), ErrPathTraversal)
	assert.ErrorIs(t, ValidatePath("logs/"), ErrPathIsDir)
	assert.ErrorIs(t, ValidatePath("."), ErrPathIsDir)
}

func TestPrepareDirLeavesNoFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	require.NoError(t, prepareDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewLoggerRejectsDirectoryPath(t *testing.T) {
	_, err := NewLogger(t.TempDir() + string(filepath.Separator))
	assert.ErrorIs(t, err, ErrPathIsDir)
}

func TestNewLoggerUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewLogger(filepath.Join(blocker, "events.jsonl"))
	assert.ErrorIs(t, err, ErrLogDirReadOnly)
}
