package bump

import (
	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Detector, error) {
		dc := do.MustInvoke[discord.Client](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewDetector(dc, repo, nil), nil
	})
}
