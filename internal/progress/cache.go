// Package progress provides the best-effort local bookmark cache: the
// last-read position per book, durable enough to survive a restart but
// never allowed to block playback.
package progress

import (
	"encoding/json/v2"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Entry is the saved position for one book.
type Entry struct {
	WordIndex       int     `json:"wordIndex"`
	PlaybackTimeSec float64 `json:"playbackTimeSec"`
	PlaybackSpeed   float64 `json:"playbackSpeed"`
}

// Cache is a file-backed map of bookID to last-read position, stored as a
// single JSON blob. It is an explicitly constructed, injected instance -
// not a package-level singleton - with a load-on-first-use lifecycle.
//
// Every operation is best effort: storage and serialization errors are
// swallowed (logged at debug), and Get degrades to "no saved position".
type Cache struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
	loaded  bool
}

// NewCache creates a cache persisted at path.
func NewCache(path string, logger *slog.Logger) *Cache {
	return &Cache{
		path:   path,
		logger: logger,
	}
}

// Save overwrites the position for a book. Errors are swallowed.
func (c *Cache) Save(bookID string, wordIndex int, timeSec, speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	c.entries[bookID] = Entry{
		WordIndex:       wordIndex,
		PlaybackTimeSec: timeSec,
		PlaybackSpeed:   speed,
	}
	c.persist()
}

// Get returns the saved position for a book, or nil when absent or when
// the backing storage is unreadable.
func (c *Cache) Get(bookID string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	entry, ok := c.entries[bookID]
	if !ok {
		return nil
	}
	return &entry
}

// Clear removes the saved position for a book. Errors are swallowed.
func (c *Cache) Clear(bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	delete(c.entries, bookID)
	c.persist()
}

// load reads the blob once. Any failure leaves an empty map - a corrupt or
// missing cache means "no saved positions", never an error.
func (c *Cache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = make(map[string]Entry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) && c.logger != nil {
			c.logger.Debug("progress cache unreadable", "path", c.path, "error", err)
		}
		return
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		if c.logger != nil {
			c.logger.Debug("progress cache corrupt, starting empty", "path", c.path, "error", err)
		}
		c.entries = make(map[string]Entry)
	}
}

// persist writes the blob through a temp file and rename. Failures are
// swallowed; the in-memory state stays authoritative for this process.
func (c *Cache) persist() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("progress cache marshal failed", "error", err)
		}
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		if c.logger != nil {
			c.logger.Debug("progress cache dir create failed", "error", err)
		}
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		if c.logger != nil {
			c.logger.Debug("progress cache write failed", "error", err)
		}
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		if c.logger != nil {
			c.logger.Debug("progress cache rename failed", "error", err)
		}
	}
}
