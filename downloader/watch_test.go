package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchEmitsExistingFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.pb"), []byte("first"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002.pb"), []byte("second"), 0644))

	ch, err := Watch(dir)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, "first", string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first snapshot")
	}

	select {
	case got := <-ch:
		assert.Equal(t, "second", string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second snapshot")
	}
}

func TestReadDirReadsFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002.pb"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.pb"), []byte("first"), 0644))

	snapshots, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "first", string(snapshots[0]))
	assert.Equal(t, "second", string(snapshots[1]))
}

func TestReadDirMissingDirectoryErrors(t *testing.T) {
	_, err := ReadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestWatchForwardsNewFiles(t *testing.T) {
	dir := t.TempDir()

	ch, err := Watch(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "003.pb"), []byte("third"), 0644))

	select {
	case got := <-ch:
		assert.Equal(t, "third", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for new snapshot")
	}
}
