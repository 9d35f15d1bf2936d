package prompt

import (
	"fmt"
	"strings"

	"trade-app/internal/reference"
	"trade-app/internal/types"
)

const DefaultSummaryChars = 200

// Reason length limit stated to the model; the parser enforces the same bound.
const ReasonChars = 1000

// SummarizeInput is everything known about a symbol at registration time.
type SummarizeInput struct {
	Symbol      string
	DisplayName string
	Materials   types.Materials
	MaxChars    int
}

// JudgeInput is one intraday judgment. Context is nil when nothing is registered.
type JudgeInput struct {
	Symbol  string
	Context *types.SymbolContext
	Chart   types.AssetRef
	Board   types.AssetRef
	Memo    string
}

// ComposeSummarize orders parts as instructions, reference text, material
// images, memo. Empty blocks are skipped.
func ComposeSummarize(in SummarizeInput) []types.Part {
	maxChars := in.MaxChars
	if maxChars <= 0 || maxChars > DefaultSummaryChars {
		maxChars = DefaultSummaryChars
	}

	parts := []types.Part{types.TextPart(types.RoleInstruction, summarizeInstruction(in.Symbol, in.DisplayName, maxChars))}

	if len(in.Materials.Excerpts) > 0 {
		parts = append(parts, types.TextPart(types.RoleReference,
			"【参考記事の抜粋】\n"+reference.FormatExcerpts(in.Materials.Excerpts)))
	}
	for _, a := range in.Materials.Assets {
		if a.Kind == types.AssetFinancialFile && strings.TrimSpace(a.Text) != "" {
			parts = append(parts, types.TextPart(types.RoleReference,
				fmt.Sprintf("【決算資料 %s】\n%s", a.Name, a.Text)))
		}
	}

	for _, kind := range []string{types.AssetDailyChart, types.AssetExtraImage} {
		for _, a := range in.Materials.Assets {
			if a.Kind == kind && len(a.Data) > 0 {
				parts = append(parts, types.ImagePart(types.RoleMaterial, a.MIME, a.Data))
			}
		}
	}

	if memo := strings.TrimSpace(in.Materials.Memo); memo != "" {
		parts = append(parts, types.TextPart(types.RoleMemo, "【環境メモ】\n"+memo))
	}
	return parts
}

// ComposeJudge orders parts as instructions, environment context, chart
// image, board image, memo. The context block exists only when a stored
// context exists; the memo block only when the memo is non-blank.
func ComposeJudge(in JudgeInput) []types.Part {
	parts := []types.Part{types.TextPart(types.RoleInstruction, judgeInstruction(in.Symbol))}

	if in.Context != nil {
		parts = append(parts, types.TextPart(types.RoleContext, contextBlock(*in.Context)))
	}

	parts = append(parts,
		types.ImagePart(types.RoleChart, in.Chart.MIME, in.Chart.Data),
		types.ImagePart(types.RoleBoard, in.Board.MIME, in.Board.Data),
	)

	if memo := strings.TrimSpace(in.Memo); memo != "" {
		parts = append(parts, types.TextPart(types.RoleMemo, "【トレーダーからの補足メモ】\n"+memo))
	}
	return parts
}

func contextBlock(c types.SymbolContext) string {
	var sb strings.Builder
	sb.WriteString("【この銘柄の環境メモ】\n")
	if c.DisplayName != "" {
		fmt.Fprintf(&sb, "銘柄名: %s\n", c.DisplayName)
	}
	if c.Position != nil && c.Position.Qty.IsPositive() {
		fmt.Fprintf(&sb, "保有: %s株 (平均取得単価 %s円)\n", c.Position.Qty.String(), c.Position.AvgCost.String())
	}
	sb.WriteString("環境サマリ: ")
	sb.WriteString(c.Summary)
	return sb.String()
}

func summarizeInstruction(symbol, name string, maxChars int) string {
	label := symbol
	if name != "" {
		label = fmt.Sprintf("%s (%s)", symbol, name)
	}
	return fmt.Sprintf(`あなたは日本株の短期トレードを手伝うアシスタントです。
銘柄 %s について、続く参考記事の抜粋・決算資料・日足チャート画像・環境メモから、中期的なテクニカルとニュースの環境を要約してください。

出力は次の JSON オブジェクトのみとしてください。前後の説明文、マークダウン、コードブロックは一切付けないでください。
{"summary": "<環境サマリ>"}

- summary: 日本語で %d 文字以内。与えられた材料に書かれていない事実を作らないこと。`, label, maxChars)
}

func judgeInstruction(symbol string) string {
	return fmt.Sprintf(`あなたは日本株の短期トレードを手伝うアシスタントです。
銘柄コード %s について、添付の 1 枚目の画像 (5分足チャート) と 2 枚目の画像 (板のスクリーンショット) から、直近 1〜2 時間程度のエントリー／利確／損切りの方針を判断してください。
環境メモが与えられた場合はそれを前提として考慮してください。

出力は次の JSON オブジェクトのみとしてください。前後の説明文、マークダウン、コードブロック、HTML は一切付けないでください。
{"action": "BUY|SELL|HOLD", "reason": "...", "buy_range": "...", "sell_range": "...", "hold_plan": "...", "stop_loss": "..."}

- action: "BUY"、"SELL"、"HOLD" のいずれか 1 つ (必須)。
- reason: チャートと板のどの点からそう判断したか。日本語で %d 文字以内 (必須)。
- buy_range: 狙いたい買いレンジ (例: "2450〜2460円")。該当しなければ空文字。
- sell_range: 利確を意識したい売りレンジ。該当しなければ空文字。
- hold_plan: 保有中の場合の方針。該当しなければ空文字。
- stop_loss: 損切りを検討すべきラインの目安。該当しなければ空文字。
すべての値は文字列とし、null は使わないでください。`, symbol, ReasonChars)
}
