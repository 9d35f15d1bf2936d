package contextstore

import (
	"strings"
	"time"

	"trade-app/internal/types"
)

// Merge applies upd to cur (nil when the symbol is new) and returns the next
// record. Every backend calls this so merge behavior is identical; the
// revision id is assigned by the backend.
func Merge(cur *types.SymbolContext, symbol string, upd types.ContextUpdate, now time.Time) types.SymbolContext {
	var next types.SymbolContext
	if cur != nil {
		next = Clone(*cur)
	} else {
		next = types.SymbolContext{Symbol: symbol, CreatedAt: now}
	}

	if upd.DisplayName != "" {
		next.DisplayName = upd.DisplayName
	}
	if upd.Summary != "" {
		next.Summary = upd.Summary
	}

	if m := upd.Materials; m != nil {
		if m.Mode == types.MergeAppend {
			next.Materials.URLs = append(next.Materials.URLs, m.URLs...)
			next.Materials.Assets = append(next.Materials.Assets, m.Assets...)
			next.Materials.Excerpts = append(next.Materials.Excerpts, m.Excerpts...)
		} else {
			next.Materials.URLs = append([]string(nil), m.URLs...)
			next.Materials.Assets = append([]types.AssetRef(nil), m.Assets...)
			next.Materials.Excerpts = append([]types.Excerpt(nil), m.Excerpts...)
		}
	}

	if m := upd.Memo; m != nil {
		text := strings.TrimSpace(m.Text)
		switch {
		case m.Mode != types.MergeAppend:
			next.Materials.Memo = text
		case text == "":
		case next.Materials.Memo == "":
			next.Materials.Memo = text
		default:
			next.Materials.Memo = next.Materials.Memo + "\n" + text
		}
	}

	if p := upd.Position; p != nil {
		if p.Mode == types.MergeAppend && next.Position != nil {
			merged := addLot(*next.Position, p.Position)
			next.Position = &merged
		} else {
			pos := p.Position
			next.Position = &pos
		}
	}

	next.Symbol = symbol
	next.UpdatedAt = now
	return normalize(next)
}

// addLot sums quantities and weights the average cost by quantity.
func addLot(cur, lot types.Position) types.Position {
	qty := cur.Qty.Add(lot.Qty)
	if qty.IsZero() {
		return types.Position{Qty: qty, AvgCost: lot.AvgCost}
	}
	cost := cur.Qty.Mul(cur.AvgCost).Add(lot.Qty.Mul(lot.AvgCost))
	return types.Position{Qty: qty, AvgCost: cost.DivRound(qty, 4)}
}

// Clone deep-copies the slices and position of c.
func Clone(c types.SymbolContext) types.SymbolContext {
	out := c
	out.Materials.URLs = append([]string(nil), c.Materials.URLs...)
	out.Materials.Assets = append([]types.AssetRef(nil), c.Materials.Assets...)
	out.Materials.Excerpts = append([]types.Excerpt(nil), c.Materials.Excerpts...)
	if c.Position != nil {
		pos := *c.Position
		out.Position = &pos
	}
	return normalize(out)
}

// normalize replaces nil collections with empty ones so records compare and
// serialize the same way regardless of backend.
func normalize(c types.SymbolContext) types.SymbolContext {
	if c.Materials.URLs == nil {
		c.Materials.URLs = []string{}
	}
	if c.Materials.Assets == nil {
		c.Materials.Assets = []types.AssetRef{}
	}
	if c.Materials.Excerpts == nil {
		c.Materials.Excerpts = []types.Excerpt{}
	}
	return c
}

// stamp truncates t to the millisecond precision every backend can store.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
