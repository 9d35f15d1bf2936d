package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trade-app/internal/api"
	"trade-app/internal/llm/llmerr"
	"trade-app/internal/store"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// Inferencer calls the Chat Completions API with text and image_url parts.
type Inferencer struct {
	cfg      *store.Config
	client   *api.Client
	endpoint string
}

// New builds an OpenAI inferencer. The HTTP client timeout follows
// llm.timeout_seconds; the caller's context may still end a call earlier.
func New(cfg *store.Config, apiKey string, opts ...api.Option) (*Inferencer, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY missing")
	}
	endpoint := cfg.LLM.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	opts = append([]api.Option{
		api.WithHeader("Authorization", "Bearer "+apiKey),
		api.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second),
		api.WithLogging(true),
	}, opts...)
	return &Inferencer{cfg: cfg, client: api.NewClient(opts...), endpoint: endpoint}, nil
}

type imageURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// toContent keeps the composed order; everything goes in one user turn.
func toContent(parts []types.Part) []contentPart {
	out := make([]contentPart, 0, len(parts))
	for _, p := range parts {
		if p.Kind == types.PartImage {
			out = append(out, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.DataURL()}})
			continue
		}
		out = append(out, contentPart{Type: "text", Text: p.Text})
	}
	return out
}

func (o *Inferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	body := chatRequest{
		Model:       o.cfg.LLM.Model,
		Messages:    []message{{Role: "user", Content: toContent(req.Parts)}},
		Temperature: o.cfg.LLM.Temperature,
		MaxTokens:   o.cfg.LLM.MaxTokens,
	}

	var r chatResponse
	if err := o.client.PostJSON(ctx, o.endpoint, body, &r); err != nil {
		return "", classify(ctx, err)
	}
	if len(r.Choices) == 0 {
		return "", llmerr.Empty("openai")
	}

	out := strings.TrimSpace(r.Choices[0].Message.Content)
	if out == "" {
		return "", llmerr.Empty("openai")
	}
	return out, nil
}

// classify maps upstream HTTP statuses onto the inference error kinds. 408
// and 504 mean the model ran out of time; any other status is a failed call.
func classify(ctx context.Context, err error) error {
	var se *api.StatusError
	if !errors.As(err, &se) {
		return llmerr.Wrap(ctx, "openai", err)
	}
	if se.Timeout() {
		return fmt.Errorf("%w: openai: upstream status %d", types.ErrInferenceTimeout, se.StatusCode)
	}
	return fmt.Errorf("%w: openai: upstream status %d: %s", types.ErrInference, se.StatusCode, se.Body)
}
