package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"trade-app/internal/llm/llmerr"
	"trade-app/internal/store"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

// Inferencer sends composed prompts to the Anthropic Messages API.
type Inferencer struct {
	cfg    *store.Config
	client anthropic.Client
}

// New builds a Claude inferencer. cfg.LLM.Endpoint overrides the public API
// base URL (proxies, test servers).
func New(cfg *store.Config, apiKey string, opts ...option.RequestOption) (*Inferencer, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY missing")
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.LLM.Endpoint != "" {
		base = append(base, option.WithBaseURL(cfg.LLM.Endpoint))
	}
	return &Inferencer{
		cfg:    cfg,
		client: anthropic.NewClient(append(base, opts...)...),
	}, nil
}

func toBlocks(parts []types.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		if p.Kind == types.PartImage {
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MIME, base64.StdEncoding.EncodeToString(p.Data)))
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(p.Text))
	}
	return blocks
}

func (c *Inferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.LLM.Model),
		MaxTokens: int64(c.cfg.LLM.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(toBlocks(req.Parts)...),
		},
	}
	if c.cfg.LLM.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.cfg.LLM.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", llmerr.Wrap(ctx, "claude", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", llmerr.Empty("claude")
	}
	return out, nil
}
