package emoji

import (
	"github.com/foxseedlab/wrapup/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Extractor, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewExtractor(Load(cfg.EmojiDatasetPath)), nil
	})
}
