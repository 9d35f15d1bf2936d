package interfaces

import (
	"context"

	"trade-app/internal/types"
)

// Inferencer sends an ordered multimodal prompt to an LLM and returns the raw reply text.
type Inferencer interface {
	Infer(ctx context.Context, req types.InferenceRequest) (string, error)
}
