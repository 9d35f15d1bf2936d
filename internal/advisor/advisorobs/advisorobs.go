package advisorobs

import (
	"context"
	"time"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/trace"
	"trade-app/internal/types"
)

type observableAdvisor struct {
	advisor interfaces.Advisor
}

var _ interfaces.Advisor = (*observableAdvisor)(nil)

func Wrap(a interfaces.Advisor) interfaces.Advisor {
	return &observableAdvisor{
		advisor: a,
	}
}

func (oa *observableAdvisor) Register(ctx context.Context, req types.RegisterRequest) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Register", trace.WithSymbol(req.Symbol))
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Registering environment",
		"symbol", req.Symbol,
		"urls", len(req.URLs),
		"extra_images", len(req.ExtraImages),
		"has_daily_chart", req.DailyChart.Present(),
		"has_financial_file", req.FinancialFile.Present(),
		"materials_mode", req.MaterialsMode,
	)

	saved, err := oa.advisor.Register(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Environment registration failed", err,
			"symbol", req.Symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Environment registered",
		"symbol", saved.Symbol,
		"revision_id", saved.RevisionID,
		"summary_chars", len([]rune(saved.Summary)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return saved, nil
}

func (oa *observableAdvisor) Judge(ctx context.Context, req types.JudgeRequest) (*types.JudgeResult, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Judge", trace.WithSymbol(req.Symbol))
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting intraday judgment",
		"symbol", req.Symbol,
		"has_memo", req.Memo != "",
	)

	res, err := oa.advisor.Judge(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Intraday judgment failed", err,
			"symbol", req.Symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Intraday judgment completed",
		"symbol", res.Symbol,
		"action", res.Decision.Action,
		"had_context", res.HadContext,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (oa *observableAdvisor) Contexts(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Contexts")
	defer span.End()

	out, err := oa.advisor.Contexts(ctx, opts)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list contexts", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Listed contexts", "count", len(out), "exclude_binary", opts.ExcludeBinary)
	return out, nil
}

func (oa *observableAdvisor) Context(ctx context.Context, symbol string) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Context", trace.WithSymbol(symbol))
	defer span.End()

	c, err := oa.advisor.Context(ctx, symbol)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Context lookup failed", "symbol", symbol, "error", err)
		return nil, err
	}
	return c, nil
}

func (oa *observableAdvisor) History(ctx context.Context, symbol string) ([]types.RevisionInfo, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.History", trace.WithSymbol(symbol))
	defer span.End()

	out, err := oa.advisor.History(ctx, symbol)
	if err != nil {
		logger.DebugSkip(ctx, 1, "History lookup failed", "symbol", symbol, "error", err)
		return nil, err
	}
	return out, nil
}

func (oa *observableAdvisor) Revision(ctx context.Context, id string) (*types.SymbolContext, error) {
	ctx, span := trace.StartSpan(ctx, "advisor.Revision")
	defer span.End()

	c, err := oa.advisor.Revision(ctx, id)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Revision lookup failed", "revision_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (oa *observableAdvisor) DeleteContext(ctx context.Context, symbol string) error {
	ctx, span := trace.StartSpan(ctx, "advisor.DeleteContext", trace.WithSymbol(symbol))
	defer span.End()

	if err := oa.advisor.DeleteContext(ctx, symbol); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to delete context", err, "symbol", symbol)
		return err
	}
	logger.InfoSkip(ctx, 1, "Context deleted", "symbol", symbol)
	return nil
}

func (oa *observableAdvisor) DeleteRevision(ctx context.Context, id string) error {
	ctx, span := trace.StartSpan(ctx, "advisor.DeleteRevision")
	defer span.End()

	if err := oa.advisor.DeleteRevision(ctx, id); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to delete revision", err, "revision_id", id)
		return err
	}
	logger.InfoSkip(ctx, 1, "Revision deleted", "revision_id", id)
	return nil
}
