package contextstore

import (
	"context"
	"fmt"

	"trade-app/internal/contextstore/contextstoreobs"
	"trade-app/internal/interfaces"
	"trade-app/internal/store"
)

// New opens the configured backend wrapped with observability.
func New(ctx context.Context, cfg *store.Config) (interfaces.ContextStore, error) {
	switch cfg.Storage.Backend {
	case store.BackendMongo:
		s, err := OpenMongo(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return contextstoreobs.Wrap(s, "mongo"), nil
	case store.BackendBadger:
		s, err := OpenBadger(cfg.Storage.BadgerPath)
		if err != nil {
			return nil, err
		}
		return contextstoreobs.Wrap(s, "badger"), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
