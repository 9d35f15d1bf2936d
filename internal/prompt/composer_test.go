package prompt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/types"
)

func roles(parts []types.Part) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.Role
	}
	return out
}

var (
	chart = types.AssetRef{Kind: "chart", MIME: "image/jpeg", Data: []byte("chart")}
	board = types.AssetRef{Kind: "board", MIME: "image/jpeg", Data: []byte("board")}
)

func TestComposeJudge_FixedOrder(t *testing.T) {
	sc := &types.SymbolContext{
		Symbol:      "7203",
		DisplayName: "トヨタ自動車",
		Summary:     "決算良好で上昇基調",
		Position:    &types.Position{Qty: decimal.NewFromInt(100), AvgCost: decimal.NewFromInt(2450)},
	}

	parts := ComposeJudge(JudgeInput{Symbol: "7203", Context: sc, Chart: chart, Board: board, Memo: "寄り天に注意"})

	assert.Equal(t, []string{
		types.RoleInstruction, types.RoleContext, types.RoleChart, types.RoleBoard, types.RoleMemo,
	}, roles(parts))

	assert.Contains(t, parts[0].Text, "7203")
	assert.Contains(t, parts[0].Text, `"action"`)
	assert.Contains(t, parts[0].Text, "BUY|SELL|HOLD")
	assert.Contains(t, parts[0].Text, "JSON オブジェクトのみ")

	assert.Contains(t, parts[1].Text, "決算良好で上昇基調")
	assert.Contains(t, parts[1].Text, "トヨタ自動車")
	assert.Contains(t, parts[1].Text, "100株")

	assert.Equal(t, types.PartImage, parts[2].Kind)
	assert.Equal(t, []byte("chart"), parts[2].Data)
	assert.Equal(t, []byte("board"), parts[3].Data)
	assert.Contains(t, parts[4].Text, "寄り天に注意")
}

func TestComposeJudge_NoContextNoMemo(t *testing.T) {
	parts := ComposeJudge(JudgeInput{Symbol: "9984", Chart: chart, Board: board, Memo: "   \n "})

	assert.Equal(t, []string{types.RoleInstruction, types.RoleChart, types.RoleBoard}, roles(parts))
	for _, p := range parts {
		if p.Kind == types.PartText {
			assert.NotEmpty(t, p.Text)
		}
	}
}

func TestComposeJudge_ZeroPositionOmitted(t *testing.T) {
	sc := &types.SymbolContext{Symbol: "7203", Summary: "横ばい", Position: &types.Position{}}

	parts := ComposeJudge(JudgeInput{Symbol: "7203", Context: sc, Chart: chart, Board: board})
	require.Len(t, parts, 4)
	assert.NotContains(t, parts[1].Text, "保有")
}

func TestComposeSummarize_Order(t *testing.T) {
	in := SummarizeInput{
		Symbol:      "7203",
		DisplayName: "トヨタ自動車",
		Materials: types.Materials{
			Memo: "決算良好",
			Assets: []types.AssetRef{
				{Kind: types.AssetExtraImage, MIME: "image/jpeg", Data: []byte("extra")},
				{Kind: types.AssetFinancialFile, Name: "kessan.pdf", MIME: "application/pdf", Data: []byte("%PDF"), Text: "営業利益 3兆円"},
				{Kind: types.AssetDailyChart, MIME: "image/jpeg", Data: []byte("daily")},
			},
			Excerpts: []types.Excerpt{{URL: "https://a.example", Text: "好決算"}},
		},
	}

	parts := ComposeSummarize(in)

	assert.Equal(t, []string{
		types.RoleInstruction, types.RoleReference, types.RoleReference,
		types.RoleMaterial, types.RoleMaterial, types.RoleMemo,
	}, roles(parts))
	assert.Contains(t, parts[0].Text, `{"summary"`)
	assert.Contains(t, parts[0].Text, "200 文字以内")
	assert.Contains(t, parts[1].Text, "https://a.example")
	assert.Contains(t, parts[2].Text, "営業利益 3兆円")
	assert.Equal(t, []byte("daily"), parts[3].Data)
	assert.Equal(t, []byte("extra"), parts[4].Data)
	assert.Contains(t, parts[5].Text, "決算良好")
}

func TestComposeSummarize_MemoOnly(t *testing.T) {
	parts := ComposeSummarize(SummarizeInput{Symbol: "7203", Materials: types.Materials{Memo: "決算良好"}, MaxChars: 120})

	assert.Equal(t, []string{types.RoleInstruction, types.RoleMemo}, roles(parts))
	assert.Contains(t, parts[0].Text, "120 文字以内")
}

func TestComposeSummarize_StrippedAssetsSkipped(t *testing.T) {
	parts := ComposeSummarize(SummarizeInput{
		Symbol: "7203",
		Materials: types.Materials{
			Assets: []types.AssetRef{{Kind: types.AssetDailyChart, MIME: "image/jpeg"}},
		},
	})

	assert.Equal(t, []string{types.RoleInstruction}, roles(parts))
}
