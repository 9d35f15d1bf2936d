package llm

import (
	"context"
	"errors"
	"os"

	"trade-app/internal/interfaces"
	"trade-app/internal/llm/claude"
	"trade-app/internal/llm/gemini"
	"trade-app/internal/llm/llmobs"
	"trade-app/internal/llm/noop"
	"trade-app/internal/llm/openai"
	"trade-app/internal/logger"
	"trade-app/internal/store"
)

// New picks the inferencer for cfg.LLM.Provider. A missing API key falls back
// to the noop inferencer so the service still starts.
func New(ctx context.Context, cfg *store.Config) (interfaces.Inferencer, error) {
	switch cfg.LLM.Provider {
	case "OPENAI":
		inf, err := openai.New(cfg, os.Getenv("OPENAI_API_KEY"))
		if err != nil {
			return fallback(ctx, cfg, err), nil
		}
		return llmobs.Wrap(inf, "openai"), nil
	case "CLAUDE":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			key = os.Getenv("CLAUDE_API_KEY")
		}
		inf, err := claude.New(cfg, key)
		if err != nil {
			return fallback(ctx, cfg, err), nil
		}
		return llmobs.Wrap(inf, "claude"), nil
	case "GEMINI":
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return fallback(ctx, cfg, errors.New("GEMINI_API_KEY missing")), nil
		}
		inf, err := gemini.New(ctx, cfg, key)
		if err != nil {
			return nil, err
		}
		return llmobs.Wrap(inf, "gemini"), nil
	default:
		return llmobs.Wrap(noop.New(), "noop"), nil
	}
}

func fallback(ctx context.Context, cfg *store.Config, err error) interfaces.Inferencer {
	logger.Warn(ctx, "LLM provider unavailable, using noop inferencer", "provider", cfg.LLM.Provider, "error", err)
	return llmobs.Wrap(noop.New(), "noop")
}
