package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderWatcher_StartsDirty(t *testing.T) {
	w, err := NewFolderWatcher(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.TakeDirty())
	assert.False(t, w.TakeDirty())
}

func TestFolderWatcher_MarksDirtyOnSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFolderWatcher(dir)
	require.NoError(t, err)
	defer w.Close()
	w.TakeDirty()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.xlsx"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, w.TakeDirty())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("x"), 0o600))
	assert.Eventually(t, w.TakeDirty, 2*time.Second, 20*time.Millisecond)
}

func TestFolderWatcher_MissingDir(t *testing.T) {
	_, err := NewFolderWatcher(filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestFolderWatcher_ChangesCoalesce(t *testing.T) {
	w, err := NewFolderWatcher(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	w.MarkDirty()
	w.MarkDirty()

	select {
	case <-w.Changes():
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-w.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.True(t, w.TakeDirty())
}
