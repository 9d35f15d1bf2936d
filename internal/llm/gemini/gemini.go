package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"trade-app/internal/llm/llmerr"
	"trade-app/internal/store"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

// Inferencer sends composed prompts to the Gemini generateContent API.
type Inferencer struct {
	cfg    *store.Config
	client *genai.Client
}

func New(ctx context.Context, cfg *store.Config, apiKey string) (*Inferencer, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY missing")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.LLM.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.LLM.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Inferencer{cfg: cfg, client: client}, nil
}

func toParts(parts []types.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Kind == types.PartImage {
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIME))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

func (g *Inferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: toParts(req.Parts)}}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.LLM.Temperature),
		MaxOutputTokens: int32(g.cfg.LLM.MaxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.LLM.Model, contents, config)
	if err != nil {
		return "", llmerr.Wrap(ctx, "gemini", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", llmerr.Empty("gemini")
	}
	return out, nil
}
