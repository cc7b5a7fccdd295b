// Package audio provides filesystem storage for narration audio blobs.
package audio

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage manages narration audio files on disk. Thread-safe for
// concurrent shard synthesis tasks, which write disjoint objects.
//
// Layout: {basePath}/{bookID}/{voiceID}/{chunkIndex}.mp3. The relative
// path is what shard records persist as AudioPath, so a record never
// references a blob outside this tree.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a Storage rooted at basePath, creating it if needed.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

// ObjectPath returns the relative blob path for a shard identity.
func ObjectPath(bookID, voiceID string, chunkIndex int) string {
	return filepath.Join(bookID, voiceID, fmt.Sprintf("%05d.mp3", chunkIndex))
}

// Save writes audio data under the given relative path. The write goes
// through a temp file and rename so a crash never leaves a partial blob at
// the final path - shard records are only written after Save returns.
func (s *Storage) Save(relPath string, data []byte) error {
	if relPath == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("audio data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.fullPath(relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize audio file: %w", err)
	}

	return nil
}

// Get retrieves audio data by relative path.
func (s *Storage) Get(relPath string) ([]byte, error) {
	if relPath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.fullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio not found at %s: %w", relPath, err)
		}
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	return data, nil
}

// Exists checks whether a blob exists at the relative path.
func (s *Storage) Exists(relPath string) bool {
	if relPath == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.fullPath(relPath))
	return err == nil
}

// Delete removes a blob. Deleting an absent blob is not an error.
func (s *Storage) Delete(relPath string) error {
	if relPath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.fullPath(relPath)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete audio file: %w", err)
	}
	return nil
}

// DeleteVoice removes every blob of a (book, voice) partition, e.g. when
// purging a stale voice.
func (s *Storage) DeleteVoice(bookID, voiceID string) error {
	if bookID == "" || voiceID == "" {
		return fmt.Errorf("book and voice IDs cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, bookID, voiceID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete voice audio: %w", err)
	}
	return nil
}

// DeleteBook removes every blob of a book across all voices.
func (s *Storage) DeleteBook(bookID string) error {
	if bookID == "" {
		return fmt.Errorf("book ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.basePath, bookID)); err != nil {
		return fmt.Errorf("failed to delete book audio: %w", err)
	}
	return nil
}

// Hash computes the SHA256 hash of a blob, hex-encoded for ETag use.
func (s *Storage) Hash(relPath string) (string, error) {
	data, err := s.Get(relPath)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// FullPath returns the absolute filesystem path for a relative blob path,
// for collaborators that need file access (e.g. the forced aligner).
func (s *Storage) FullPath(relPath string) string {
	return s.fullPath(relPath)
}

// fullPath joins the relative path under basePath, rejecting traversal.
func (s *Storage) fullPath(relPath string) string {
	cleaned := filepath.Clean("/" + relPath)
	cleaned = strings.TrimPrefix(cleaned, "/")
	return filepath.Join(s.basePath, cleaned)
}
