package contextstoreobs

import (
	"context"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

// observableStore wraps a ContextStore with observability (logging & tracing)
type observableStore struct {
	store   interfaces.ContextStore
	backend string
}

// Compile-time interface check
var _ interfaces.ContextStore = (*observableStore)(nil)

// Wrap wraps a context store with observability middleware
func Wrap(store interfaces.ContextStore, backend string) interfaces.ContextStore {
	return &observableStore{store: store, backend: backend}
}

func (o *observableStore) Upsert(ctx context.Context, symbol string, upd types.ContextUpdate) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "contextstore.Upsert")
	defer span.End()

	sc, err := o.store.Upsert(ctx, symbol, upd)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to store context", err, "backend", o.backend, "symbol", symbol)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Context stored",
		"backend", o.backend,
		"symbol", symbol,
		"revision", sc.RevisionID,
		"urls", len(sc.Materials.URLs),
		"assets", len(sc.Materials.Assets),
	)
	return sc, nil
}

func (o *observableStore) Get(ctx context.Context, symbol string) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "contextstore.Get")
	defer span.End()

	sc, err := o.store.Get(ctx, symbol)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Context lookup failed", "backend", o.backend, "symbol", symbol, "error", err)
		return nil, err
	}
	return sc, nil
}

func (o *observableStore) List(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "contextstore.List")
	defer span.End()

	list, err := o.store.List(ctx, opts)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list contexts", err, "backend", o.backend)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Contexts listed", "backend", o.backend, "count", len(list), "exclude_binary", opts.ExcludeBinary)
	return list, nil
}

func (o *observableStore) History(ctx context.Context, symbol string) ([]types.RevisionInfo, error) {
	ctx, span := trace.StartSpan(ctx, "contextstore.History")
	defer span.End()

	revs, err := o.store.History(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list revisions", err, "backend", o.backend, "symbol", symbol)
		return nil, err
	}
	return revs, nil
}

func (o *observableStore) GetRevision(ctx context.Context, id string) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "contextstore.GetRevision")
	defer span.End()

	sc, err := o.store.GetRevision(ctx, id)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Revision lookup failed", "backend", o.backend, "revision", id, "error", err)
		return nil, err
	}
	return sc, nil
}

func (o *observableStore) Delete(ctx context.Context, symbol string) error {
	ctx, span := trace.StartSpan(ctx, "contextstore.Delete")
	defer span.End()

	if err := o.store.Delete(ctx, symbol); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to delete context", err, "backend", o.backend, "symbol", symbol)
		return err
	}
	logger.InfoSkip(ctx, 1, "Context deleted", "backend", o.backend, "symbol", symbol)
	return nil
}

func (o *observableStore) DeleteRevision(ctx context.Context, id string) error {
	ctx, span := trace.StartSpan(ctx, "contextstore.DeleteRevision")
	defer span.End()

	if err := o.store.DeleteRevision(ctx, id); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to delete revision", err, "backend", o.backend, "revision", id)
		return err
	}
	logger.InfoSkip(ctx, 1, "Revision deleted", "backend", o.backend, "revision", id)
	return nil
}

func (o *observableStore) Close() error {
	return o.store.Close()
}
