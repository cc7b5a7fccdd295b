package providers

import (
	"github.com/samber/do/v2"

	"github.com/readalong/narration-server/internal/config"
	"github.com/readalong/narration-server/internal/logger"
	"github.com/readalong/narration-server/internal/media/audio"
	"github.com/readalong/narration-server/internal/progress"
)

// ProvideAudioStorage provides the shard audio blob store.
func ProvideAudioStorage(i do.Injector) (*audio.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := audio.NewStorage(cfg.AudioPath())
	if err != nil {
		return nil, err
	}

	log.Info("Audio storage initialized", "path", cfg.AudioPath())

	return storage, nil
}

// ProvideProgressCache provides the best-effort local progress cache.
func ProvideProgressCache(i do.Injector) (*progress.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return progress.NewCache(cfg.ProgressCachePath(), log.Logger), nil
}
