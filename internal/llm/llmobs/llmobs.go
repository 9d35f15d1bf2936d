package llmobs

import (
	"context"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

// observableInferencer wraps an Inferencer with logging and tracing
type observableInferencer struct {
	inner    interfaces.Inferencer
	provider string
}

// Compile-time interface check
var _ interfaces.Inferencer = (*observableInferencer)(nil)

// Wrap wraps an inferencer with observability middleware
func Wrap(inner interfaces.Inferencer, provider string) interfaces.Inferencer {
	return &observableInferencer{inner: inner, provider: provider}
}

func (o *observableInferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Infer")
	defer span.End()

	images := 0
	for _, p := range req.Parts {
		if p.Kind == types.PartImage {
			images++
		}
	}

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting inference",
		"provider", o.provider,
		"kind", req.Kind,
		"symbol", req.Symbol,
		"parts", len(req.Parts),
		"images", images,
	)

	raw, err := o.inner.Infer(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Inference failed", err,
			"provider", o.provider,
			"kind", req.Kind,
			"symbol", req.Symbol,
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Inference reply received",
		"provider", o.provider,
		"kind", req.Kind,
		"symbol", req.Symbol,
		"reply_chars", len([]rune(raw)),
	)
	return raw, nil
}
