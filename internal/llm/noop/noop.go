package noop

import (
	"context"
	"encoding/json"

	"trade-app/internal/logger"
	"trade-app/internal/types"
)

// Inferencer is used when no LLM provider is configured. Judge requests get a
// HOLD reply and summarize requests an empty summary, both in the JSON shape a
// real model is asked for.
type Inferencer struct{}

func New() *Inferencer {
	return &Inferencer{}
}

func (n *Inferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	logger.Debug(ctx, "Noop inferencer called", "symbol", req.Symbol, "kind", req.Kind)

	var reply any
	switch req.Kind {
	case types.KindSummarize:
		reply = map[string]string{"summary": ""}
	default:
		reply = map[string]string{"action": "HOLD", "reason": "noop_inferencer_fallback"}
	}
	b, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
