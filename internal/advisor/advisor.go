package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"trade-app/internal/contextstore"
	"trade-app/internal/decision"
	"trade-app/internal/interfaces"
	"trade-app/internal/llm/llmerr"
	"trade-app/internal/logger"
	"trade-app/internal/prompt"
	"trade-app/internal/types"
)

const (
	maxSymbolChars = 32
	maxNameChars   = 128
)

// Service runs registration and judgment over the store and the inference
// collaborator. Every request makes at most one inference call.
type Service struct {
	store        interfaces.ContextStore
	normalizer   interfaces.AssetNormalizer
	resolver     interfaces.ReferenceResolver
	inferencer   interfaces.Inferencer
	journal      interfaces.Journal
	summaryChars int
	inferTimeout time.Duration
	now          func() time.Time
}

// Deps are the collaborators of a Service. Journal may be nil.
type Deps struct {
	Store      interfaces.ContextStore
	Normalizer interfaces.AssetNormalizer
	Resolver   interfaces.ReferenceResolver
	Inferencer interfaces.Inferencer
	Journal    interfaces.Journal
}

// Options tune the pipeline. Zero values fall back to defaults.
type Options struct {
	SummaryChars     int
	InferenceTimeout time.Duration
}

var _ interfaces.Advisor = (*Service)(nil)

func NewService(deps Deps, opts Options) *Service {
	s := &Service{
		store:        deps.Store,
		normalizer:   deps.Normalizer,
		resolver:     deps.Resolver,
		inferencer:   deps.Inferencer,
		journal:      deps.Journal,
		summaryChars: opts.SummaryChars,
		inferTimeout: opts.InferenceTimeout,
		now:          time.Now,
	}
	if s.summaryChars <= 0 || s.summaryChars > prompt.DefaultSummaryChars {
		s.summaryChars = prompt.DefaultSummaryChars
	}
	if s.inferTimeout <= 0 {
		s.inferTimeout = 60 * time.Second
	}
	return s
}

func validateSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol is required", types.ErrValidation)
	}
	if utf8.RuneCountInString(symbol) > maxSymbolChars {
		return "", fmt.Errorf("%w: symbol exceeds %d characters", types.ErrValidation, maxSymbolChars)
	}
	return symbol, nil
}

// Register normalizes the supplied materials, summarizes them when something
// new was supplied (or no summary exists yet) and upserts the record.
func (s *Service) Register(ctx context.Context, req types.RegisterRequest) (*types.SymbolContext, error) {
	symbol, err := validateSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if utf8.RuneCountInString(name) > maxNameChars {
		return nil, fmt.Errorf("%w: display name exceeds %d characters", types.ErrValidation, maxNameChars)
	}
	if req.Position != nil {
		if err := contextstore.ValidatePosition(*req.Position); err != nil {
			return nil, err
		}
	}

	assets, err := s.normalizeMaterials(req)
	if err != nil {
		return nil, err
	}

	var excerpts []types.Excerpt
	if len(req.URLs) > 0 {
		op := logger.StartOperation(ctx, "advisor.resolve_references", "symbol", symbol, "urls", len(req.URLs))
		excerpts = s.resolver.Resolve(op.GetContext(), req.URLs)
		op.End("failed", countFailed(excerpts))
	}

	upd := types.ContextUpdate{DisplayName: name}
	if len(req.URLs) > 0 || len(assets) > 0 {
		upd.Materials = &types.MaterialsPatch{
			URLs:     req.URLs,
			Assets:   assets,
			Excerpts: excerpts,
			Mode:     req.MaterialsMode,
		}
	}
	if strings.TrimSpace(req.Memo) != "" {
		upd.Memo = &types.MemoPatch{Text: req.Memo, Mode: req.MemoMode}
	}
	if req.Position != nil {
		upd.Position = &types.PositionPatch{Position: *req.Position, Mode: req.PositionMode}
	}

	cur, err := s.store.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		cur = nil
	}

	if upd.SuppliesMaterials() || cur == nil || cur.Summary == "" {
		preview := contextstore.Merge(cur, symbol, upd, s.now())
		summary, err := s.summarize(ctx, preview)
		if err != nil {
			return nil, err
		}
		upd.Summary = summary
	} else {
		logger.Debug(ctx, "No new materials, keeping stored summary", "symbol", symbol)
	}

	return s.store.Upsert(ctx, symbol, upd)
}

func (s *Service) normalizeMaterials(req types.RegisterRequest) ([]types.AssetRef, error) {
	var assets []types.AssetRef
	if req.DailyChart.Present() {
		a, err := s.normalizer.Normalize(types.AssetDailyChart, req.DailyChart.Name, req.DailyChart.Data)
		if err != nil {
			return nil, fmt.Errorf("daily chart: %w", err)
		}
		assets = append(assets, a)
	}
	for i := range req.ExtraImages {
		up := &req.ExtraImages[i]
		if !up.Present() {
			continue
		}
		a, err := s.normalizer.Normalize(types.AssetExtraImage, up.Name, up.Data)
		if err != nil {
			return nil, fmt.Errorf("extra image %d: %w", i+1, err)
		}
		assets = append(assets, a)
	}
	if req.FinancialFile.Present() {
		a, err := s.normalizer.ExtractDocument(req.FinancialFile.Name, req.FinancialFile.Data)
		if err != nil {
			return nil, fmt.Errorf("financial file: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (s *Service) summarize(ctx context.Context, preview types.SymbolContext) (string, error) {
	parts := prompt.ComposeSummarize(prompt.SummarizeInput{
		Symbol:      preview.Symbol,
		DisplayName: preview.DisplayName,
		Materials:   preview.Materials,
		MaxChars:    s.summaryChars,
	})
	raw, err := s.infer(ctx, types.InferenceRequest{Kind: types.KindSummarize, Symbol: preview.Symbol, Parts: parts})
	if err != nil {
		return "", err
	}
	return decision.ParseSummary(ctx, raw, s.summaryChars), nil
}

// Judge produces a decision from the intraday screenshots, conditioned on the
// stored context when one exists.
func (s *Service) Judge(ctx context.Context, req types.JudgeRequest) (*types.JudgeResult, error) {
	symbol, err := validateSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !req.Chart.Present() {
		return nil, fmt.Errorf("%w: chart image is required", types.ErrValidation)
	}
	if !req.Board.Present() {
		return nil, fmt.Errorf("%w: order book image is required", types.ErrValidation)
	}

	chart, err := s.normalizer.Normalize(types.AssetIntradayChart, req.Chart.Name, req.Chart.Data)
	if err != nil {
		return nil, fmt.Errorf("chart image: %w", err)
	}
	board, err := s.normalizer.Normalize(types.AssetOrderBook, req.Board.Name, req.Board.Data)
	if err != nil {
		return nil, fmt.Errorf("order book image: %w", err)
	}

	stored, err := s.store.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		logger.Debug(ctx, "No stored context, judging without environment", "symbol", symbol)
		stored = nil
	}

	parts := prompt.ComposeJudge(prompt.JudgeInput{
		Symbol:  symbol,
		Context: stored,
		Chart:   chart,
		Board:   board,
		Memo:    req.Memo,
	})
	raw, err := s.infer(ctx, types.InferenceRequest{Kind: types.KindJudge, Symbol: symbol, Parts: parts})
	if err != nil {
		return nil, err
	}

	res := &types.JudgeResult{
		Symbol:     symbol,
		Decision:   decision.ParseDecision(ctx, raw),
		HadContext: stored != nil,
		JudgedAt:   s.now().UTC(),
	}

	if s.journal != nil {
		if err := s.journal.Append(ctx, *res); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal decision", err, "symbol", symbol)
		}
	}
	logger.Decision(ctx, symbol, res.Decision.Action, res.Decision.Reason,
		"buy_range", res.Decision.BuyRange,
		"sell_range", res.Decision.SellRange,
		"hold_plan", res.Decision.HoldPlan,
		"stop_loss", res.Decision.StopLoss,
		"had_context", res.HadContext,
	)
	return res, nil
}

// infer runs one inference call under the configured timeout. Failures are
// always typed as ErrInference or ErrInferenceTimeout.
func (s *Service) infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.inferTimeout)
	defer cancel()

	op := logger.StartOperation(ctx, "advisor.infer", "kind", req.Kind, "symbol", req.Symbol)
	raw, err := s.inferencer.Infer(op.GetContext(), req)
	if err == nil {
		op.End("reply_chars", utf8.RuneCountInString(raw))
		return raw, nil
	}
	if !errors.Is(err, types.ErrInference) && !errors.Is(err, types.ErrInferenceTimeout) {
		err = llmerr.Wrap(ctx, "inference", err)
	}
	op.EndWithError(err)
	return "", err
}

func countFailed(excerpts []types.Excerpt) int {
	n := 0
	for _, e := range excerpts {
		if e.Failed() {
			n++
		}
	}
	return n
}

func (s *Service) Contexts(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error) {
	return s.store.List(ctx, opts)
}

func (s *Service) Context(ctx context.Context, symbol string) (*types.SymbolContext, error) {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, symbol)
}

func (s *Service) History(ctx context.Context, symbol string) ([]types.RevisionInfo, error) {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, symbol)
}

func (s *Service) Revision(ctx context.Context, id string) (*types.SymbolContext, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: revision id is required", types.ErrValidation)
	}
	return s.store.GetRevision(ctx, strings.TrimSpace(id))
}

func (s *Service) DeleteContext(ctx context.Context, symbol string) error {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, symbol)
}

func (s *Service) DeleteRevision(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: revision id is required", types.ErrValidation)
	}
	return s.store.DeleteRevision(ctx, strings.TrimSpace(id))
}
