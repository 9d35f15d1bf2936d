package journal

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/types"
)

var jst = time.FixedZone("JST", 9*60*60)

// Entry is one line of the daily decision journal.
type Entry struct {
	Time       string `json:"time"`
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	BuyRange   string `json:"buy_range,omitempty"`
	SellRange  string `json:"sell_range,omitempty"`
	HoldPlan   string `json:"hold_plan,omitempty"`
	StopLoss   string `json:"stop_loss,omitempty"`
	HadContext bool   `json:"had_context"`
}

// Journal appends judged decisions to <dir>/YYYY-MM-DD.jsonl (JST days).
type Journal struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	now     func() time.Time
}

var _ interfaces.Journal = (*Journal)(nil)

func New(dir string, enabled bool) *Journal {
	return &Journal{dir: dir, enabled: enabled, now: time.Now}
}

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, t.In(jst).Format("2006-01-02")+".jsonl")
}

func (j *Journal) Append(ctx context.Context, res types.JudgeResult) error {
	if !j.enabled {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	at := res.JudgedAt
	if at.IsZero() {
		at = j.now()
	}
	e := Entry{
		Time:       at.In(jst).Format("2006-01-02 15:04:05"),
		Symbol:     res.Symbol,
		Action:     res.Decision.Action,
		Reason:     res.Decision.Reason,
		BuyRange:   res.Decision.BuyRange,
		SellRange:  res.Decision.SellRange,
		HoldPlan:   res.Decision.HoldPlan,
		StopLoss:   res.Decision.StopLoss,
		HadContext: res.HadContext,
	}

	p := j.dailyFilepath(at)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintln(f, string(b)); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	logger.Debug(ctx, "Decision journaled", "symbol", res.Symbol, "file", p)
	return nil
}

// CompressOlder gzips daily files last modified more than retentionDays ago and
// removes the originals.
func (j *Journal) CompressOlder(ctx context.Context, retentionDays int) error {
	if !j.enabled || retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)

	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := gzipFile(p); err != nil {
			logger.Warn(ctx, "Failed to compress journal file", "file", p, "error", err)
			return nil
		}
		logger.Info(ctx, "Compressed journal file", "file", p)
		return nil
	})
}

func gzipFile(p string) error {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(gz)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
