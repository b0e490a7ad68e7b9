package presence

import (
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Tracker, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return NewTracker(repo, nil), nil
	})
}
