package providers

import (
	"github.com/samber/do/v2"

	"github.com/readalong/narration-server/internal/align"
	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/logger"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/narration"
	"github.com/readalong/narration-server/internal/playback"
	"github.com/readalong/narration-server/internal/tts"
)

// ProvideSynthesizer provides the text-to-speech provider client.
func ProvideSynthesizer(i do.Injector) (tts.Synthesizer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := tts.NewClient(tts.ClientConfig{
		BaseURL:    cfg.Synthesis.ProviderURL,
		APIKey:     cfg.Synthesis.ProviderKey,
		Timeout:    cfg.Synthesis.RequestTimeout,
		MaxRetries: cfg.Synthesis.MaxRetries,
		RatePerSec: cfg.Synthesis.RatePerSec,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("TTS provider client ready", "url", cfg.Synthesis.ProviderURL)

	return client, nil
}

// ProvideAligner provides the forced-alignment runner. A missing aligner
// binary is not fatal: the synthesis path works without it, and the
// recorded-narration path reports it as unconfigured.
func ProvideAligner(i do.Injector) (align.Aligner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	aligner, err := align.NewProcessAligner(cfg.Aligner.BinPath, cfg.Aligner.Timeout, log.Logger)
	if err != nil {
		log.Warn("Forced aligner unavailable; recorded narration disabled", "error", err)
		return nil, nil
	}

	return aligner, nil
}

// ProvideNarrationService provides the synthesis pipeline service.
func ProvideNarrationService(i do.Injector) (*narration.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobs := do.MustInvoke[*audio.Storage](i)
	synth := do.MustInvoke[tts.Synthesizer](i)
	aligner := do.MustInvoke[align.Aligner](i)

	return narration.NewService(storeHandle.Store, blobs, synth, aligner, cfg.Synthesis, log.Logger), nil
}

// ProvidePlaybackCoordinator provides the shard selection coordinator.
func ProvidePlaybackCoordinator(i do.Injector) (*playback.Coordinator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return playback.NewCoordinator(storeHandle.Store, log.Logger), nil
}
