// Package di provides dependency injection configuration for the narration server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/readalong/narration-server/internal/align"
	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/di/providers"
	"github.com/readalong/narration-server/internal/logger"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/narration"
	"github.com/readalong/narration-server/internal/playback"
	"github.com/readalong/narration-server/internal/progress"
	"github.com/readalong/narration-server/internal/tts"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideAudioStorage)
	do.Provide(injector, providers.ProvideProgressCache)

	// Synthesis layer
	do.Provide(injector, providers.ProvideSynthesizer)
	do.Provide(injector, providers.ProvideAligner)
	do.Provide(injector, providers.ProvideNarrationService)
	do.Provide(injector, providers.ProvidePlaybackCoordinator)

	// Workers
	do.Provide(injector, providers.ProvideInboxWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
// This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*audio.Storage](injector)
	_ = do.MustInvoke[*progress.Cache](injector)
	_ = do.MustInvoke[tts.Synthesizer](injector)
	_ = do.MustInvoke[align.Aligner](injector)
	_ = do.MustInvoke[*narration.Service](injector)
	_ = do.MustInvoke[*playback.Coordinator](injector)
	_ = do.MustInvoke[*providers.InboxWatcherHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
