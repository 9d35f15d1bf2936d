package advisor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/asset"
	"trade-app/internal/contextstore"
	"trade-app/internal/decision"
	"trade-app/internal/types"
)

type fakeInferencer struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	block   bool
	calls   []types.InferenceRequest
}

func (f *fakeInferencer) Infer(ctx context.Context, req types.InferenceRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.replies[req.Kind], nil
}

func (f *fakeInferencer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResolver struct {
	urls []string
}

func (r *fakeResolver) Resolve(ctx context.Context, urls []string) []types.Excerpt {
	r.urls = append(r.urls, urls...)
	out := make([]types.Excerpt, len(urls))
	for i, u := range urls {
		out[i] = types.Excerpt{URL: u, Text: "記事本文 " + u}
	}
	return out
}

type fakeJournal struct {
	results []types.JudgeResult
}

func (j *fakeJournal) Append(ctx context.Context, res types.JudgeResult) error {
	j.results = append(j.results, res)
	return nil
}

type fixture struct {
	svc      *Service
	inf      *fakeInferencer
	resolver *fakeResolver
	journal  *fakeJournal
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	cs, err := contextstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	f := &fixture{
		inf: &fakeInferencer{replies: map[string]string{
			types.KindSummarize: `{"summary":"決算良好、日足は上昇トレンド"}`,
			types.KindJudge:     "```json\n{\"action\":\"buy\",\"reason\":\"押し目\",\"buy_range\":\"2400-2410\",\"sell_range\":\"2450\",\"hold_plan\":\"\"}\n```",
		}},
		resolver: &fakeResolver{},
		journal:  &fakeJournal{},
	}
	f.svc = NewService(Deps{
		Store:      cs,
		Normalizer: asset.NewNormalizer(asset.Config{}),
		Resolver:   f.resolver,
		Inferencer: f.inf,
		Journal:    f.journal,
	}, opts)
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func partRoles(parts []types.Part) []string {
	roles := make([]string, len(parts))
	for i, p := range parts {
		roles[i] = p.Role
	}
	return roles
}

func TestRegisterThenJudge(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	saved, err := f.svc.Register(ctx, types.RegisterRequest{
		Symbol:     "7203",
		URLs:       []string{"https://news.example/a"},
		Memo:       "決算良好",
		DailyChart: &types.Upload{Name: "daily.png", Data: pngBytes(t, 2048, 1024)},
	})
	require.NoError(t, err)
	assert.Equal(t, "決算良好、日足は上昇トレンド", saved.Summary)
	assert.Equal(t, "決算良好", saved.Materials.Memo)
	require.Len(t, saved.Materials.Assets, 1)
	assert.Equal(t, 1024, saved.Materials.Assets[0].Width)
	require.Len(t, saved.Materials.Excerpts, 1)

	require.Equal(t, 1, f.inf.count())
	sum := f.inf.calls[0]
	assert.Equal(t, types.KindSummarize, sum.Kind)
	assert.Equal(t, []string{types.RoleInstruction, types.RoleReference, types.RoleMaterial, types.RoleMemo}, partRoles(sum.Parts))

	res, err := f.svc.Judge(ctx, types.JudgeRequest{
		Symbol: "7203",
		Chart:  &types.Upload{Name: "5m.png", Data: pngBytes(t, 800, 600)},
		Board:  &types.Upload{Name: "board.png", Data: pngBytes(t, 400, 900)},
	})
	require.NoError(t, err)
	assert.True(t, res.HadContext)
	assert.Equal(t, types.ActionBuy, res.Decision.Action)
	assert.Equal(t, "2400-2410", res.Decision.BuyRange)
	assert.Equal(t, "", res.Decision.StopLoss)

	require.Equal(t, 2, f.inf.count())
	judge := f.inf.calls[1]
	assert.Equal(t, []string{types.RoleInstruction, types.RoleContext, types.RoleChart, types.RoleBoard}, partRoles(judge.Parts))
	assert.Contains(t, judge.Parts[1].Text, "決算良好、日足は上昇トレンド")

	require.Len(t, f.journal.results, 1)
	assert.Equal(t, "7203", f.journal.results[0].Symbol)
}

func TestRegisterMemoOnlyThenJudge(t *testing.T) {
	f := newFixture(t, Options{})
	f.inf.replies[types.KindSummarize] = `{"summary":"決算良好を材料に買い目線"}`
	ctx := context.Background()

	saved, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
	require.NoError(t, err)
	assert.Equal(t, "決算良好を材料に買い目線", saved.Summary)
	assert.Empty(t, saved.Materials.URLs)
	assert.Empty(t, saved.Materials.Assets)
	assert.Empty(t, f.resolver.urls)

	require.Equal(t, 1, f.inf.count())
	sum := f.inf.calls[0]
	assert.Equal(t, []string{types.RoleInstruction, types.RoleMemo}, partRoles(sum.Parts))
	assert.Contains(t, sum.Parts[1].Text, "決算良好")
	for _, p := range sum.Parts {
		assert.NotEqual(t, types.PartImage, p.Kind)
	}

	res, err := f.svc.Judge(ctx, types.JudgeRequest{
		Symbol: "7203",
		Chart:  &types.Upload{Name: "5m.png", Data: pngBytes(t, 64, 48)},
		Board:  &types.Upload{Name: "board.png", Data: pngBytes(t, 48, 64)},
	})
	require.NoError(t, err)
	assert.True(t, res.HadContext)

	judge := f.inf.calls[1]
	assert.Equal(t, []string{types.RoleInstruction, types.RoleContext, types.RoleChart, types.RoleBoard}, partRoles(judge.Parts))
	assert.Contains(t, judge.Parts[1].Text, "決算良好を材料に買い目線")
}

func TestJudge_WithoutContext(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.svc.Judge(context.Background(), types.JudgeRequest{
		Symbol: "6758",
		Chart:  &types.Upload{Data: pngBytes(t, 100, 100)},
		Board:  &types.Upload{Data: pngBytes(t, 100, 100)},
		Memo:   "前場高値を意識",
	})
	require.NoError(t, err)
	assert.False(t, res.HadContext)
	assert.Contains(t, []string{types.ActionBuy, types.ActionSell, types.ActionHold}, res.Decision.Action)

	roles := partRoles(f.inf.calls[0].Parts)
	assert.NotContains(t, roles, types.RoleContext)
	assert.Equal(t, []string{types.RoleInstruction, types.RoleChart, types.RoleBoard, types.RoleMemo}, roles)
}

func TestJudge_UnparseableReplyHolds(t *testing.T) {
	f := newFixture(t, Options{})
	f.inf.replies[types.KindJudge] = "I think you should buy."

	res, err := f.svc.Judge(context.Background(), types.JudgeRequest{
		Symbol: "7203",
		Chart:  &types.Upload{Data: pngBytes(t, 10, 10)},
		Board:  &types.Upload{Data: pngBytes(t, 10, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, decision.Fallback(), res.Decision)
}

func TestJudge_Validation(t *testing.T) {
	f := newFixture(t, Options{})
	img := &types.Upload{Data: pngBytes(t, 10, 10)}

	tests := []struct {
		name string
		req  types.JudgeRequest
		want error
	}{
		{"missing symbol", types.JudgeRequest{Chart: img, Board: img}, types.ErrValidation},
		{"missing chart", types.JudgeRequest{Symbol: "7203", Board: img}, types.ErrValidation},
		{"missing board", types.JudgeRequest{Symbol: "7203", Chart: img}, types.ErrValidation},
		{"undecodable chart", types.JudgeRequest{Symbol: "7203", Chart: &types.Upload{Data: []byte("nope")}, Board: img}, types.ErrInvalidAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Judge(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.inf.count())
}

func TestJudge_InferenceTimeout(t *testing.T) {
	f := newFixture(t, Options{InferenceTimeout: 30 * time.Millisecond})
	f.inf.block = true

	_, err := f.svc.Judge(context.Background(), types.JudgeRequest{
		Symbol: "7203",
		Chart:  &types.Upload{Data: pngBytes(t, 10, 10)},
		Board:  &types.Upload{Data: pngBytes(t, 10, 10)},
	})
	assert.ErrorIs(t, err, types.ErrInferenceTimeout)
	assert.Empty(t, f.journal.results)
}

func TestRegister_SkipsInferenceWithoutNewMaterials(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
	require.NoError(t, err)
	require.Equal(t, 1, f.inf.count())

	saved, err := f.svc.Register(ctx, types.RegisterRequest{
		Symbol:       "7203",
		Position:     &types.Position{Qty: decimal.NewFromInt(100), AvgCost: decimal.NewFromInt(2400)},
		PositionMode: types.MergeAppend,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.inf.count())
	assert.Equal(t, "決算良好、日足は上昇トレンド", saved.Summary)
	require.NotNil(t, saved.Position)
	assert.True(t, saved.Position.Qty.Equal(decimal.NewFromInt(100)))
}

func TestRegister_MemoAppendFeedsSummary(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
	require.NoError(t, err)
	saved, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "出来高増加", MemoMode: types.MergeAppend})
	require.NoError(t, err)

	assert.Equal(t, "決算良好\n出来高増加", saved.Materials.Memo)
	require.Equal(t, 2, f.inf.count())
	last := f.inf.calls[1].Parts
	assert.True(t, strings.Contains(last[len(last)-1].Text, "決算良好\n出来高増加"))
}

func TestRegister_Failures(t *testing.T) {
	t.Run("validation before any call", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Register(context.Background(), types.RegisterRequest{
			Symbol:   "7203",
			URLs:     []string{"https://news.example/a"},
			Position: &types.Position{Qty: decimal.NewFromInt(-1)},
		})
		assert.ErrorIs(t, err, types.ErrValidation)
		assert.Empty(t, f.resolver.urls)
		assert.Zero(t, f.inf.count())

		_, err = f.svc.Register(context.Background(), types.RegisterRequest{Symbol: "  "})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("invalid image", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Register(context.Background(), types.RegisterRequest{
			Symbol:      "7203",
			ExtraImages: []types.Upload{{Name: "x.png", Data: []byte("garbage")}},
		})
		assert.ErrorIs(t, err, types.ErrInvalidAsset)
		assert.Zero(t, f.inf.count())
	})

	t.Run("inference failure stores nothing", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.inf.err = errors.New("connection refused")

		_, err := f.svc.Register(context.Background(), types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
		assert.ErrorIs(t, err, types.ErrInference)

		_, err = f.svc.Context(context.Background(), "7203")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("unparseable summary uses placeholder", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.inf.replies[types.KindSummarize] = "not json"

		saved, err := f.svc.Register(context.Background(), types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
		require.NoError(t, err)
		assert.Equal(t, decision.SummaryPlaceholder, saved.Summary)
	})
}

func TestReadThrough(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "決算良好"})
	require.NoError(t, err)
	second, err := f.svc.Register(ctx, types.RegisterRequest{Symbol: "7203", Memo: "地合い悪化"})
	require.NoError(t, err)

	hist, err := f.svc.History(ctx, "7203")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.RevisionID, hist[0].ID)

	rev, err := f.svc.Revision(ctx, first.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "決算良好", rev.Materials.Memo)

	require.NoError(t, f.svc.DeleteRevision(ctx, second.RevisionID))
	cur, err := f.svc.Context(ctx, "7203")
	require.NoError(t, err)
	assert.Equal(t, "決算良好", cur.Materials.Memo)

	list, err := f.svc.Contexts(ctx, types.ListOptions{ExcludeBinary: true})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.svc.DeleteContext(ctx, "7203"))
	_, err = f.svc.Context(ctx, "7203")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.svc.Revision(ctx, "")
	assert.ErrorIs(t, err, types.ErrValidation)
}
