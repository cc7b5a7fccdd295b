package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/inbox"
	"github.com/readalong/narration-server/internal/logger"
	"github.com/readalong/narration-server/internal/narration"
)

// InboxWatcherHandle wraps the inbox watcher with its context for
// lifecycle management. Watcher is nil when the inbox is disabled.
type InboxWatcherHandle struct {
	Watcher *inbox.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *InboxWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideInboxWatcher provides the recorded-narration inbox watcher.
func ProvideInboxWatcher(i do.Injector) (*InboxWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Inbox.Enabled {
		log.Info("Recorded-narration inbox disabled by configuration")
		return &InboxWatcherHandle{}, nil
	}

	service := do.MustInvoke[*narration.Service](i)

	watcher, err := inbox.New(cfg.Inbox.Path, service, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.Start(ctx); err != nil {
			log.Error("Inbox watcher stopped", "error", err)
		}
	}()

	log.Info("Inbox watcher started", "path", cfg.Inbox.Path)

	return &InboxWatcherHandle{Watcher: watcher, cancel: cancel}, nil
}
