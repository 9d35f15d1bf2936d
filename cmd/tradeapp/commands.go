package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-app/internal/reference"
	"trade-app/internal/server"
	"trade-app/internal/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, "stdout")
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	return server.New(a.cfg, a.advisor).Run(ctx)
}

var registerFlags struct {
	symbol, name, urls, memo         string
	daily, file                      string
	extras                           []string
	qty, avgCost                     string
	materialsMode, memoMode, posMode string
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register or update the environment notes of a symbol",
	Example: `  tradeapp register --symbol 7203 --memo 決算良好 --daily daily.png
  tradeapp register --symbol 7203 --qty 100 --avg-cost 2450 --position-mode append`,
	RunE: runRegister,
}

func init() {
	f := registerCmd.Flags()
	f.StringVar(&registerFlags.symbol, "symbol", "", "Stock symbol (required)")
	f.StringVar(&registerFlags.name, "name", "", "Display name")
	f.StringVar(&registerFlags.urls, "urls", "", "Reference URLs, newline or comma separated")
	f.StringVar(&registerFlags.memo, "memo", "", "Free-text environment memo")
	f.StringVar(&registerFlags.daily, "daily", "", "Daily chart image file")
	f.StringSliceVar(&registerFlags.extras, "extra", nil, "Supplementary image files")
	f.StringVar(&registerFlags.file, "financial-file", "", "Financial disclosure file (PDF or text)")
	f.StringVar(&registerFlags.qty, "qty", "", "Position quantity")
	f.StringVar(&registerFlags.avgCost, "avg-cost", "", "Position average cost")
	f.StringVar(&registerFlags.materialsMode, "materials-mode", "overwrite", "overwrite or append")
	f.StringVar(&registerFlags.memoMode, "memo-mode", "overwrite", "overwrite or append")
	f.StringVar(&registerFlags.posMode, "position-mode", "overwrite", "overwrite or append")
	_ = registerCmd.MarkFlagRequired("symbol")
}

func runRegister(cmd *cobra.Command, args []string) error {
	rf := registerFlags
	req := types.RegisterRequest{
		Symbol:        rf.symbol,
		DisplayName:   rf.name,
		URLs:          reference.ParseURLs(splitList(rf.urls)),
		Memo:          rf.memo,
		MaterialsMode: types.ParseMergeMode(rf.materialsMode),
		MemoMode:      types.ParseMergeMode(rf.memoMode),
		PositionMode:  types.ParseMergeMode(rf.posMode),
	}

	var err error
	if req.DailyChart, err = readUpload(rf.daily); err != nil {
		return err
	}
	for _, p := range rf.extras {
		up, err := readUpload(p)
		if err != nil {
			return err
		}
		req.ExtraImages = append(req.ExtraImages, *up)
	}
	if req.FinancialFile, err = readUpload(rf.file); err != nil {
		return err
	}
	if req.Position, err = parsePosition(rf.qty, rf.avgCost); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := bootstrap(ctx, "stderr")
	if err != nil {
		return err
	}
	defer a.close(ctx)

	saved, err := a.advisor.Register(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(saved.WithoutBinary())
}

var judgeFlags struct {
	symbol, chart, board, memo string
}

var judgeCmd = &cobra.Command{
	Use:     "judge",
	Short:   "Judge an intraday chart and order-book screenshot pair",
	Example: `  tradeapp judge --symbol 7203 --chart 5m.png --board board.png --memo 寄り天警戒`,
	RunE:    runJudge,
}

func init() {
	f := judgeCmd.Flags()
	f.StringVar(&judgeFlags.symbol, "symbol", "", "Stock symbol (required)")
	f.StringVar(&judgeFlags.chart, "chart", "", "5-minute chart screenshot (required)")
	f.StringVar(&judgeFlags.board, "board", "", "Order book screenshot (required)")
	f.StringVar(&judgeFlags.memo, "memo", "", "Supplementary memo")
	_ = judgeCmd.MarkFlagRequired("symbol")
	_ = judgeCmd.MarkFlagRequired("chart")
	_ = judgeCmd.MarkFlagRequired("board")
}

func runJudge(cmd *cobra.Command, args []string) error {
	chart, err := readUpload(judgeFlags.chart)
	if err != nil {
		return err
	}
	board, err := readUpload(judgeFlags.board)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := bootstrap(ctx, "stderr")
	if err != nil {
		return err
	}
	defer a.close(ctx)

	res, err := a.advisor.Judge(ctx, types.JudgeRequest{
		Symbol: judgeFlags.symbol,
		Chart:  chart,
		Board:  board,
		Memo:   judgeFlags.memo,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

var includeBinary bool

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "Inspect and delete stored symbol contexts",
}

var contextsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored contexts",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.advisor.Contexts(ctx, types.ListOptions{ExcludeBinary: !includeBinary})
	}),
}

var contextsShowCmd = &cobra.Command{
	Use:   "show SYMBOL",
	Short: "Show the current context of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		c, err := a.advisor.Context(ctx, args[0])
		if err != nil || includeBinary {
			return c, err
		}
		return c.WithoutBinary(), nil
	}),
}

var contextsHistoryCmd = &cobra.Command{
	Use:   "history SYMBOL",
	Short: "List the revisions of a symbol, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.advisor.History(ctx, args[0])
	}),
}

var contextsRevisionCmd = &cobra.Command{
	Use:   "revision ID",
	Short: "Show one stored revision",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		c, err := a.advisor.Revision(ctx, args[0])
		if err != nil || includeBinary {
			return c, err
		}
		return c.WithoutBinary(), nil
	}),
}

var contextsDeleteCmd = &cobra.Command{
	Use:   "delete SYMBOL",
	Short: "Delete a symbol context and all its revisions",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if err := a.advisor.DeleteContext(ctx, args[0]); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": args[0]}, nil
	}),
}

var contextsDeleteRevisionCmd = &cobra.Command{
	Use:   "delete-revision ID",
	Short: "Delete one revision; deleting the newest rolls the context back",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if err := a.advisor.DeleteRevision(ctx, args[0]); err != nil {
			return nil, err
		}
		return map[string]string{"deleted_revision": args[0]}, nil
	}),
}

func init() {
	contextsCmd.PersistentFlags().BoolVar(&includeBinary, "include-binary", false, "Include asset bytes in the output")
	contextsCmd.AddCommand(
		contextsListCmd,
		contextsShowCmd,
		contextsHistoryCmd,
		contextsRevisionCmd,
		contextsDeleteCmd,
		contextsDeleteRevisionCmd,
	)
}

// withApp bootstraps the app for a one-shot command and prints its result as JSON.
func withApp(fn func(ctx context.Context, a *app, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, "stderr")
		if err != nil {
			return err
		}
		defer a.close(ctx)

		out, err := fn(ctx, a, args)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func readUpload(path string) (*types.Upload, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &types.Upload{Name: filepath.Base(path), Data: data}, nil
}

// splitList accepts comma separated values in addition to newlines.
func splitList(s string) string {
	return strings.ReplaceAll(s, ",", "\n")
}

func parsePosition(qty, avgCost string) (*types.Position, error) {
	if qty == "" && avgCost == "" {
		return nil, nil
	}
	p := types.Position{Qty: decimal.Zero, AvgCost: decimal.Zero}
	var err error
	if qty != "" {
		if p.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("%w: qty %q is not a number", types.ErrValidation, qty)
		}
	}
	if avgCost != "" {
		if p.AvgCost, err = decimal.NewFromString(avgCost); err != nil {
			return nil, fmt.Errorf("%w: avg-cost %q is not a number", types.ErrValidation, avgCost)
		}
	}
	return &p, nil
}
