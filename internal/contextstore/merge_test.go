package contextstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/types"
)

func pos(qty, cost string) types.Position {
	return types.Position{Qty: decimal.RequireFromString(qty), AvgCost: decimal.RequireFromString(cost)}
}

func TestMerge_NewRecord(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	got := Merge(nil, "7203", types.ContextUpdate{
		DisplayName: "トヨタ自動車",
		Memo:        &types.MemoPatch{Text: "  決算良好 "},
	}, now)

	assert.Equal(t, "7203", got.Symbol)
	assert.Equal(t, "トヨタ自動車", got.DisplayName)
	assert.Equal(t, "決算良好", got.Materials.Memo)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
	assert.NotNil(t, got.Materials.URLs)
	assert.NotNil(t, got.Materials.Assets)
	assert.Nil(t, got.Position)
}

func TestMerge_OverwriteAndAppend(t *testing.T) {
	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	cur := Merge(nil, "7203", types.ContextUpdate{
		Summary: "上昇トレンド",
		Materials: &types.MaterialsPatch{
			URLs:   []string{"https://a.example"},
			Assets: []types.AssetRef{{Kind: types.AssetDailyChart, MIME: "image/jpeg", Data: []byte{1}}},
		},
		Memo: &types.MemoPatch{Text: "決算良好"},
	}, created)

	later := created.Add(time.Hour)

	t.Run("append", func(t *testing.T) {
		got := Merge(&cur, "7203", types.ContextUpdate{
			Materials: &types.MaterialsPatch{URLs: []string{"https://b.example"}, Mode: types.MergeAppend},
			Memo:      &types.MemoPatch{Text: "増配", Mode: types.MergeAppend},
		}, later)

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.Materials.URLs)
		assert.Len(t, got.Materials.Assets, 1)
		assert.Equal(t, "決算良好\n増配", got.Materials.Memo)
		assert.Equal(t, "上昇トレンド", got.Summary)
		assert.Equal(t, created, got.CreatedAt)
		assert.Equal(t, later, got.UpdatedAt)
	})

	t.Run("overwrite", func(t *testing.T) {
		got := Merge(&cur, "7203", types.ContextUpdate{
			Summary:   "調整局面",
			Materials: &types.MaterialsPatch{URLs: []string{"https://c.example"}},
			Memo:      &types.MemoPatch{Text: "様子見"},
		}, later)

		assert.Equal(t, []string{"https://c.example"}, got.Materials.URLs)
		assert.Empty(t, got.Materials.Assets)
		assert.Equal(t, "様子見", got.Materials.Memo)
		assert.Equal(t, "調整局面", got.Summary)
	})

	t.Run("untouched groups", func(t *testing.T) {
		got := Merge(&cur, "7203", types.ContextUpdate{DisplayName: "Toyota"}, later)

		assert.Equal(t, cur.Materials, got.Materials)
		assert.Equal(t, "上昇トレンド", got.Summary)
	})

	t.Run("does not alias the current record", func(t *testing.T) {
		got := Merge(&cur, "7203", types.ContextUpdate{
			Materials: &types.MaterialsPatch{URLs: []string{"https://z.example"}, Mode: types.MergeAppend},
		}, later)
		got.Materials.URLs[0] = "mutated"

		assert.Equal(t, []string{"https://a.example"}, cur.Materials.URLs)
	})
}

func TestMerge_PositionLots(t *testing.T) {
	now := time.Now().UTC()
	cur := Merge(nil, "7203", types.ContextUpdate{
		Position: &types.PositionPatch{Position: pos("100", "2000")},
	}, now)

	got := Merge(&cur, "7203", types.ContextUpdate{
		Position: &types.PositionPatch{Position: pos("300", "2400"), Mode: types.MergeAppend},
	}, now)
	require.NotNil(t, got.Position)
	assert.True(t, got.Position.Qty.Equal(decimal.NewFromInt(400)), got.Position.Qty.String())
	assert.True(t, got.Position.AvgCost.Equal(decimal.NewFromInt(2300)), got.Position.AvgCost.String())

	got = Merge(&cur, "7203", types.ContextUpdate{
		Position: &types.PositionPatch{Position: pos("50", "2100")},
	}, now)
	assert.Equal(t, "50", got.Position.Qty.String())
	assert.Equal(t, "2100", got.Position.AvgCost.String())

	// The first lot appended to an empty position is taken as-is.
	fresh := Merge(nil, "6758", types.ContextUpdate{
		Position: &types.PositionPatch{Position: pos("10", "13000"), Mode: types.MergeAppend},
	}, now)
	assert.Equal(t, "10", fresh.Position.Qty.String())
}

func TestValidate(t *testing.T) {
	ok := Merge(nil, "7203", types.ContextUpdate{Summary: "短い要約"}, time.Now())
	assert.NoError(t, Validate(ok))

	tests := []struct {
		name   string
		mutate func(c *types.SymbolContext)
	}{
		{"missing symbol", func(c *types.SymbolContext) { c.Symbol = "" }},
		{"symbol too long", func(c *types.SymbolContext) { c.Symbol = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" }},
		{"summary too long", func(c *types.SymbolContext) {
			c.Summary = string(make([]rune, 201))
		}},
		{"negative qty", func(c *types.SymbolContext) {
			p := pos("-1", "100")
			c.Position = &p
		}},
		{"negative cost", func(c *types.SymbolContext) {
			p := pos("1", "-100")
			c.Position = &p
		}},
		{"unknown asset kind", func(c *types.SymbolContext) {
			c.Materials.Assets = []types.AssetRef{{Kind: "video", MIME: "video/mp4"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Clone(ok)
			tt.mutate(&c)
			err := Validate(c)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	assert.NoError(t, ValidatePosition(pos("0", "0")))
	assert.ErrorIs(t, ValidatePosition(pos("-5", "0")), types.ErrValidation)
}
