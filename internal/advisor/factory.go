package advisor

import (
	"time"

	"trade-app/internal/advisor/advisorobs"
	"trade-app/internal/asset"
	"trade-app/internal/interfaces"
	"trade-app/internal/reference"
	"trade-app/internal/store"
)

// New wires the normalizer and resolver from cfg around the given store,
// inferencer and journal.
func New(cfg *store.Config, cs interfaces.ContextStore, inf interfaces.Inferencer, j interfaces.Journal) interfaces.Advisor {
	svc := NewService(Deps{
		Store: cs,
		Normalizer: asset.NewNormalizer(asset.Config{
			MaxDimension:       cfg.Assets.MaxDimension,
			MaxPixels:          cfg.Assets.MaxPixels,
			JPEGQuality:        cfg.Assets.JPEGQuality,
			DocumentCharBudget: cfg.Assets.DocumentCharBudget,
		}),
		Resolver: reference.NewResolver(reference.Config{
			Timeout:     time.Duration(cfg.References.TimeoutSeconds) * time.Second,
			CharBudget:  cfg.References.CharBudget,
			Concurrency: cfg.References.Concurrency,
		}),
		Inferencer: inf,
		Journal:    j,
	}, Options{
		SummaryChars:     cfg.Summary.MaxChars,
		InferenceTimeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	return advisorobs.Wrap(svc)
}
