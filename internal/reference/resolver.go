package reference

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"

	"trade-app/internal/logger"
	"trade-app/internal/types"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultCharBudget  = 2000
	DefaultConcurrency = 4

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Elements that never carry article text.
	boilerplate = "script, style, nav, footer, header, svg, noscript"
)

// Config bounds a single resolution pass.
type Config struct {
	Timeout     time.Duration
	CharBudget  int
	Concurrency int
}

// Resolver fetches reference pages and reduces each to a bounded text excerpt.
type Resolver struct {
	timeout     time.Duration
	budget      int
	concurrency int
}

func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		timeout:     cfg.Timeout,
		budget:      cfg.CharBudget,
		concurrency: cfg.Concurrency,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.budget <= 0 {
		r.budget = DefaultCharBudget
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	return r
}

// ParseURLs splits a newline separated list and keeps absolute http(s) URLs
// in input order. Other lines are discarded.
func ParseURLs(raw string) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// Resolve returns exactly one excerpt per URL, in input order. A failing URL
// yields an error excerpt and never affects the others.
func (r *Resolver) Resolve(ctx context.Context, urls []string) []types.Excerpt {
	out := make([]types.Excerpt, len(urls))
	if len(urls) == 0 {
		return out
	}

	logger.Info(ctx, "Resolving reference URLs", "count", len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			text, err := r.fetch(gctx, u)
			if err != nil {
				err = fmt.Errorf("%w: %s: %v", types.ErrReferenceFetch, u, err)
				logger.Warn(ctx, "Reference fetch failed", "url", u, "error", err)
				out[i] = types.Excerpt{URL: u, Error: err.Error()}
				return nil
			}
			out[i] = types.Excerpt{URL: u, Text: text}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, e := range out {
		if e.Failed() {
			failed++
		}
	}
	logger.Info(ctx, "Reference resolution completed", "count", len(urls), "failed", failed)
	return out
}

// fetch performs one attempt against u and returns its visible text.
func (r *Resolver) fetch(ctx context.Context, u string) (string, error) {
	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(r.timeout)
	c.IgnoreRobotsTxt = true
	c.DetectCharset = true

	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("User-Agent", userAgent)
	})

	var (
		text   string
		status int
		visErr error
	)
	c.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
		if status != http.StatusOK {
			return
		}
		t, err := visibleText(resp.Body)
		if err != nil {
			visErr = err
			return
		}
		text = t
	})
	c.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			status = resp.StatusCode
		}
		visErr = err
	})

	if err := c.Visit(u); err != nil {
		if status != 0 && status != http.StatusOK {
			return "", fmt.Errorf("status %d", status)
		}
		return "", err
	}
	c.Wait()

	if visErr != nil {
		return "", visErr
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("status %d", status)
	}
	return truncate(text, r.budget), nil
}

// visibleText strips boilerplate elements and collapses whitespace.
func visibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(boilerplate).Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// FormatExcerpts renders the excerpts as text blocks tagged with their URL.
func FormatExcerpts(excerpts []types.Excerpt) string {
	var sb strings.Builder
	for i, e := range excerpts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[参考URL] %s\n", e.URL)
		if e.Failed() {
			fmt.Fprintf(&sb, "(取得失敗: %s)", e.Error)
			continue
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}
