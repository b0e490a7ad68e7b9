package scan

import (
	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/config"
	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Scanner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		repo := do.MustInvoke[repository.Repository](i)
		extractor := do.MustInvoke[*emoji.Extractor](i)
		batchCfg := do.MustInvoke[batch.Config](i)
		batchCfg.Name = "scan_messages"
		traversalCfg := TraversalConfig{
			Concurrency:    cfg.ScanConcurrency,
			PagesPerSecond: cfg.ScanPagesPerSecond,
			QueueSize:      cfg.ScanQueueSize,
		}
		return NewScanner(dc, repo, extractor, traversalCfg, batchCfg, nil), nil
	})
}
