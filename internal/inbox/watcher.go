// Package inbox watches a drop directory for user-recorded narration.
// A file named {bookID}.{voiceID}.wav triggers the forced-alignment ingest
// path; processed recordings are moved to a done/ subdirectory.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/readalong/narration-server/internal/domain"
)

// settleDelay is how long a file must stay quiet before it is considered
// fully written. Recordings are copied in, not atomically renamed, so a
// bare Create event is not enough.
const settleDelay = 2 * time.Second

// Ingestor is the slice of the narration service the watcher needs.
type Ingestor interface {
	IngestRecorded(ctx context.Context, bookID, voiceID string, audioData []byte) (*domain.AudioShard, error)
}

// Watcher monitors the inbox directory.
type Watcher struct {
	path     string
	ingestor Ingestor
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	wg sync.WaitGroup
}

// New creates an inbox watcher over the given directory, creating it if
// needed.
func New(path string, ingestor Ingestor, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(path, "done"), 0755); err != nil {
		return nil, fmt.Errorf("create done directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch inbox: %w", err)
	}

	return &Watcher{
		path:     path,
		ingestor: ingestor,
		logger:   logger,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start processes events until the context is canceled. Recordings already
// sitting in the inbox at startup are picked up first.
func (w *Watcher) Start(ctx context.Context) error {
	w.sweepExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

// Stop closes the watcher and waits for in-flight ingests.
func (w *Watcher) Stop() error {
	err := w.fsw.Close()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

// sweepExisting queues any recording left in the inbox from a previous run.
func (w *Watcher) sweepExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		w.logger.Warn("inbox sweep failed", "error", err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.schedule(ctx, filepath.Join(w.path, entry.Name()))
		}
	}
}

// schedule debounces a file event: the ingest fires once the file has been
// quiet for settleDelay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".wav") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.wg.Add(1)
		defer w.wg.Done()
		w.process(ctx, path)
	})
}

// process ingests one settled recording.
func (w *Watcher) process(ctx context.Context, path string) {
	bookID, voiceID, err := parseRecordingName(filepath.Base(path))
	if err != nil {
		w.logger.Warn("ignoring inbox file", "file", filepath.Base(path), "error", err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("failed to read recording", "file", path, "error", err)
		return
	}

	if _, err := w.ingestor.IngestRecorded(ctx, bookID, voiceID, data); err != nil {
		w.logger.Error("failed to ingest recording",
			"book_id", bookID,
			"voice_id", voiceID,
			"error", err,
		)
		return
	}

	done := filepath.Join(w.path, "done", filepath.Base(path))
	if err := os.Rename(path, done); err != nil {
		w.logger.Warn("failed to archive recording", "file", path, "error", err)
	}

	w.logger.Info("processed recorded narration", "book_id", bookID, "voice_id", voiceID)
}

// parseRecordingName splits "{bookID}.{voiceID}.wav".
func parseRecordingName(name string) (bookID, voiceID string, err error) {
	base := strings.TrimSuffix(name, ".wav")
	parts := strings.Split(base, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected {bookID}.{voiceID}.wav, got %q", name)
	}
	return parts[0], parts[1], nil
}
