package command

import (
	"github.com/foxseedlab/wrapup/internal/config"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/foxseedlab/wrapup/internal/scan"
	"github.com/foxseedlab/wrapup/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		scanner := do.MustInvoke[*scan.Scanner](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewHandler(cfg.DiscordGuildID, cfg.ScanTimeout, scanner, repo, wh), nil
	})
}
