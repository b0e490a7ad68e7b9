package activity

import (
	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/bump"
	"github.com/foxseedlab/wrapup/internal/config"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/foxseedlab/wrapup/internal/presence"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Router, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		extractor := do.MustInvoke[*emoji.Extractor](i)
		tracker := do.MustInvoke[*presence.Tracker](i)
		detector := do.MustInvoke[*bump.Detector](i)
		batchCfg := do.MustInvoke[batch.Config](i)
		batchCfg.Name = "live_messages"
		batchCfg.FlushInterval = cfg.LiveFlushInterval
		return NewRouter(cfg.DiscordGuildID, repo, extractor, tracker, detector, batchCfg, nil), nil
	})
}
