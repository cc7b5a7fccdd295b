package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/readalong/narration-server/internal/api"
	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/logger"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/narration"
	"github.com/readalong/narration-server/internal/playback"
	"github.com/readalong/narration-server/internal/progress"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobs := do.MustInvoke[*audio.Storage](i)
	narrationService := do.MustInvoke[*narration.Service](i)
	coordinator := do.MustInvoke[*playback.Coordinator](i)
	progressCache := do.MustInvoke[*progress.Cache](i)

	handler := api.NewServer(storeHandle.Store, narrationService, coordinator, progressCache, blobs, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
