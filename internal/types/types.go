package types

import (
	"encoding/base64"
	"time"

	"github.com/shopspring/decimal"
)

// Decision actions. Anything else is coerced to ActionHold.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Asset kinds stored with a symbol context.
const (
	AssetDailyChart    = "daily_chart"
	AssetExtraImage    = "extra_image"
	AssetFinancialFile = "financial_file"
)

// Kinds of the ephemeral judge screenshots. They are never stored.
const (
	AssetIntradayChart = "intraday_chart"
	AssetOrderBook     = "order_book"
)

// MergeMode selects how a field group of an update is applied to the stored record.
type MergeMode string

const (
	MergeOverwrite MergeMode = "overwrite"
	MergeAppend    MergeMode = "append"
)

// ParseMergeMode maps form/flag input to a MergeMode, defaulting to overwrite.
func ParseMergeMode(s string) MergeMode {
	if MergeMode(s) == MergeAppend {
		return MergeAppend
	}
	return MergeOverwrite
}

// AssetRef is a normalized binary material (image or financial file).
type AssetRef struct {
	Kind   string `json:"kind" bson:"kind" validate:"oneof=daily_chart extra_image financial_file"`
	Name   string `json:"name,omitempty" bson:"name,omitempty"`
	MIME   string `json:"mime" bson:"mime" validate:"required"`
	Data   []byte `json:"data,omitempty" bson:"data,omitempty"`
	Width  int    `json:"width,omitempty" bson:"width,omitempty"`
	Height int    `json:"height,omitempty" bson:"height,omitempty"`
	Size   int    `json:"size" bson:"size"`
	Text   string `json:"text,omitempty" bson:"text,omitempty"`
}

// DataURL returns the asset as a base64 data URL.
func (a AssetRef) DataURL() string {
	return "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// IsImage reports whether the asset is one of the image kinds.
func (a AssetRef) IsImage() bool {
	return a.Kind == AssetDailyChart || a.Kind == AssetExtraImage
}

// Excerpt is the derived text of one reference URL.
type Excerpt struct {
	URL   string `json:"url" bson:"url"`
	Text  string `json:"text,omitempty" bson:"text,omitempty"`
	Error string `json:"error,omitempty" bson:"error,omitempty"`
}

// Failed reports whether the excerpt is an error annotation.
func (e Excerpt) Failed() bool {
	return e.Error != ""
}

// Materials are the raw registered materials of a symbol.
type Materials struct {
	URLs     []string   `json:"urls"`
	Memo     string     `json:"memo"`
	Assets   []AssetRef `json:"assets" validate:"dive"`
	Excerpts []Excerpt  `json:"excerpts,omitempty"`
}

// Empty reports whether nothing has been registered.
func (m Materials) Empty() bool {
	return len(m.URLs) == 0 && m.Memo == "" && len(m.Assets) == 0
}

// Position is the holding of a symbol.
type Position struct {
	Qty     decimal.Decimal `json:"qty" validate:"gte=0"`
	AvgCost decimal.Decimal `json:"avg_cost" validate:"gte=0"`
}

// SymbolContext is the environment record of one stock symbol.
type SymbolContext struct {
	Symbol      string    `json:"symbol" validate:"required,max=32"`
	DisplayName string    `json:"display_name,omitempty" validate:"max=128"`
	Summary     string    `json:"summary" validate:"max=200"`
	Materials   Materials `json:"materials"`
	Position    *Position `json:"position,omitempty"`
	RevisionID  string    `json:"revision_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WithoutBinary returns a copy whose asset bytes are dropped.
func (c SymbolContext) WithoutBinary() SymbolContext {
	out := c
	out.Materials.Assets = make([]AssetRef, len(c.Materials.Assets))
	for i, a := range c.Materials.Assets {
		a.Data = nil
		out.Materials.Assets[i] = a
	}
	return out
}

// Image returns the first asset of the given kind.
func (c SymbolContext) Image(kind string) (AssetRef, bool) {
	for _, a := range c.Materials.Assets {
		if a.Kind == kind {
			return a, true
		}
	}
	return AssetRef{}, false
}

// MaterialsPatch updates the materials group (urls, assets, excerpts).
type MaterialsPatch struct {
	URLs     []string
	Assets   []AssetRef
	Excerpts []Excerpt
	Mode     MergeMode
}

// MemoPatch updates the memo group.
type MemoPatch struct {
	Text string
	Mode MergeMode
}

// PositionPatch updates the position group. Append adds a lot.
type PositionPatch struct {
	Position Position
	Mode     MergeMode
}

// ContextUpdate is one write to the context store. Nil groups are left untouched;
// empty DisplayName and Summary keep the stored values.
type ContextUpdate struct {
	DisplayName string
	Summary     string
	Materials   *MaterialsPatch
	Memo        *MemoPatch
	Position    *PositionPatch
}

// SuppliesMaterials reports whether the update carries new material content.
func (u ContextUpdate) SuppliesMaterials() bool {
	if u.Memo != nil && u.Memo.Text != "" {
		return true
	}
	if u.Materials != nil && (len(u.Materials.URLs) > 0 || len(u.Materials.Assets) > 0) {
		return true
	}
	return false
}

// ListOptions controls bulk listing of contexts.
type ListOptions struct {
	ExcludeBinary bool
}

// RevisionInfo identifies one stored revision of a symbol context.
type RevisionInfo struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DecisionRecord is the structured judgment returned to callers.
type DecisionRecord struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	BuyRange  string `json:"buy_range"`
	SellRange string `json:"sell_range"`
	HoldPlan  string `json:"hold_plan"`
	StopLoss  string `json:"stop_loss"`
}

// Upload is one file received from a form or the CLI.
type Upload struct {
	Name string
	Data []byte
}

// Present reports whether a file was actually supplied.
func (u *Upload) Present() bool {
	return u != nil && len(u.Data) > 0
}

// RegisterRequest carries one environment registration.
type RegisterRequest struct {
	Symbol        string
	DisplayName   string
	URLs          []string
	Memo          string
	DailyChart    *Upload
	ExtraImages   []Upload
	FinancialFile *Upload
	Position      *Position
	MaterialsMode MergeMode
	MemoMode      MergeMode
	PositionMode  MergeMode
}

// JudgeRequest is the ephemeral input of one intraday judgment.
type JudgeRequest struct {
	Symbol string
	Chart  *Upload
	Board  *Upload
	Memo   string
}

// JudgeResult is the output of one intraday judgment.
type JudgeResult struct {
	Symbol     string         `json:"symbol"`
	Decision   DecisionRecord `json:"decision"`
	HadContext bool           `json:"had_context"`
	JudgedAt   time.Time      `json:"judged_at"`
}
