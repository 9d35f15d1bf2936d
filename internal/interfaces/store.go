package interfaces

import (
	"context"

	"trade-app/internal/types"
)

// ContextStore persists one SymbolContext per symbol plus its revision history.
// Writes are last-write-wins per symbol.
type ContextStore interface {
	Upsert(ctx context.Context, symbol string, upd types.ContextUpdate) (*types.SymbolContext, error)
	Get(ctx context.Context, symbol string) (*types.SymbolContext, error)
	List(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error)
	History(ctx context.Context, symbol string) ([]types.RevisionInfo, error)
	GetRevision(ctx context.Context, id string) (*types.SymbolContext, error)
	Delete(ctx context.Context, symbol string) error
	DeleteRevision(ctx context.Context, id string) error
	Close() error
}
