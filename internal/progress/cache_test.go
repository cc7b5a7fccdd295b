package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.json")
	return NewCache(path, nil), path
}

func TestCache_SaveAndGet(t *testing.T) {
	c, _ := testCache(t)

	c.Save("book-1", 42, 31.5, 1.25)

	entry := c.Get("book-1")
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.WordIndex)
	assert.Equal(t, 31.5, entry.PlaybackTimeSec)
	assert.Equal(t, 1.25, entry.PlaybackSpeed)
}

func TestCache_GetMissing(t *testing.T) {
	c, _ := testCache(t)
	assert.Nil(t, c.Get("never-saved"))
}

func TestCache_SaveOverwrites(t *testing.T) {
	c, _ := testCache(t)

	c.Save("book-1", 10, 5.0, 1.0)
	c.Save("book-1", 99, 80.0, 1.5)

	entry := c.Get("book-1")
	require.NotNil(t, entry)
	assert.Equal(t, 99, entry.WordIndex)
}

func TestCache_Clear(t *testing.T) {
	c, _ := testCache(t)

	c.Save("book-1", 10, 5.0, 1.0)
	c.Clear("book-1")

	assert.Nil(t, c.Get("book-1"))
}

func TestCache_ClearMissingIsNoop(t *testing.T) {
	c, _ := testCache(t)
	c.Clear("never-saved")
}

func TestCache_SurvivesReload(t *testing.T) {
	c, path := testCache(t)
	c.Save("book-1", 42, 31.5, 1.25)
	c.Save("book-2", 7, 3.0, 1.0)

	// A fresh cache over the same file sees the persisted entries.
	reloaded := NewCache(path, nil)
	entry := reloaded.Get("book-1")
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.WordIndex)
	require.NotNil(t, reloaded.Get("book-2"))
}

func TestCache_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c := NewCache(path, nil)
	assert.Nil(t, c.Get("book-1"))

	// Saving after corruption starts a fresh blob.
	c.Save("book-1", 5, 1.0, 1.0)
	require.NotNil(t, c.Get("book-1"))
}

func TestCache_UnwritablePathIsSwallowed(t *testing.T) {
	c := NewCache(string([]byte{0}), nil)

	// Save must not panic or error even when persistence cannot work.
	c.Save("book-1", 5, 1.0, 1.0)

	// The in-memory state stays authoritative for this process.
	require.NotNil(t, c.Get("book-1"))
}
