package interfaces

import (
	"context"

	"trade-app/internal/types"
)

// AssetNormalizer turns uploads into bounded transport-ready assets.
type AssetNormalizer interface {
	Normalize(kind, name string, data []byte) (types.AssetRef, error)
	ExtractDocument(name string, data []byte) (types.AssetRef, error)
}

// ReferenceResolver fetches reference URLs into bounded text excerpts.
type ReferenceResolver interface {
	Resolve(ctx context.Context, urls []string) []types.Excerpt
}

// Journal records judged decisions.
type Journal interface {
	Append(ctx context.Context, res types.JudgeResult) error
}

// Advisor is the registration and judgment pipeline.
type Advisor interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.SymbolContext, error)
	Judge(ctx context.Context, req types.JudgeRequest) (*types.JudgeResult, error)
	Contexts(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error)
	Context(ctx context.Context, symbol string) (*types.SymbolContext, error)
	History(ctx context.Context, symbol string) ([]types.RevisionInfo, error)
	Revision(ctx context.Context, id string) (*types.SymbolContext, error)
	DeleteContext(ctx context.Context, symbol string) error
	DeleteRevision(ctx context.Context, id string) error
}
