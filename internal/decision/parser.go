package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"trade-app/internal/logger"
	"trade-app/internal/types"
)

const (
	// FallbackReason is returned whenever a reply cannot be decoded.
	FallbackReason = "parse failure — defaulted to HOLD"
	// SummaryPlaceholder replaces a summary reply that cannot be decoded.
	SummaryPlaceholder = "環境サマリを生成できませんでした"

	MaxReasonChars = 1000
)

// Fallback is the record returned for any undecodable reply.
func Fallback() types.DecisionRecord {
	return types.DecisionRecord{Action: types.ActionHold, Reason: FallbackReason}
}

// reply mirrors the judge contract. Pointers tell absent from empty.
type reply struct {
	Action      *string `json:"action"`
	Reason      *string `json:"reason"`
	BuyRange    *string `json:"buy_range"`
	SellRange   *string `json:"sell_range"`
	HoldPlan    *string `json:"hold_plan"`
	AddBuyRange *string `json:"add_buy_range"`
	StopLoss    *string `json:"stop_loss"`
}

type summaryReply struct {
	Summary *string `json:"summary"`
}

// ParseDecision decodes a judge reply. It never fails: anything that does not
// match the contract yields Fallback.
func ParseDecision(ctx context.Context, raw string) types.DecisionRecord {
	var r reply
	if err := decodeObject(raw, &r); err != nil {
		logDecodeFailure(ctx, "decision", raw, err)
		return Fallback()
	}

	reason := strings.TrimSpace(deref(r.Reason))
	if reason == "" {
		logDecodeFailure(ctx, "decision", raw, fmt.Errorf("%w: reason is required", types.ErrDecode))
		return Fallback()
	}

	hold := deref(r.HoldPlan)
	if hold == "" {
		hold = deref(r.AddBuyRange)
	}

	return types.DecisionRecord{
		Action:    NormalizeAction(deref(r.Action)),
		Reason:    truncate(reason, MaxReasonChars),
		BuyRange:  strings.TrimSpace(deref(r.BuyRange)),
		SellRange: strings.TrimSpace(deref(r.SellRange)),
		HoldPlan:  strings.TrimSpace(hold),
		StopLoss:  strings.TrimSpace(deref(r.StopLoss)),
	}
}

// ParseSummary decodes a summarize reply into at most maxChars runes.
func ParseSummary(ctx context.Context, raw string, maxChars int) string {
	var r summaryReply
	if err := decodeObject(raw, &r); err != nil {
		logDecodeFailure(ctx, "summary", raw, err)
		return SummaryPlaceholder
	}
	s := strings.TrimSpace(deref(r.Summary))
	if s == "" {
		logDecodeFailure(ctx, "summary", raw, fmt.Errorf("%w: summary is required", types.ErrDecode))
		return SummaryPlaceholder
	}
	if maxChars > 0 {
		s = truncate(s, maxChars)
	}
	return s
}

// NormalizeAction upper-cases and trims a; unknown values become HOLD.
func NormalizeAction(a string) string {
	switch a = strings.ToUpper(strings.TrimSpace(a)); a {
	case types.ActionBuy, types.ActionSell, types.ActionHold:
		return a
	default:
		return types.ActionHold
	}
}

// decodeObject strips code fences, takes the outermost {...} and unmarshals it.
func decodeObject(raw string, v any) error {
	t := stripFences(raw)
	if t == "" {
		return fmt.Errorf("%w: empty reply", types.ErrDecode)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in reply", types.ErrDecode)
	}

	if err := json.Unmarshal([]byte(t[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func logDecodeFailure(ctx context.Context, contract, raw string, err error) {
	preview := truncate(raw, 200)
	if logger.IsDebugEnabled() {
		preview = raw
	}
	logger.Warn(ctx, "Inference reply did not match contract",
		"type", "DecodeFailure",
		"contract", contract,
		"error", err,
		"reply_preview", preview,
	)
}
