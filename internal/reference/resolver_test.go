package reference

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/types"
)

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><style>body{color:red}</style><script>var x = 1;</script></head>
<body><header>Site header</header><nav>Menu</nav>
<article><h1>トヨタ 決算</h1>
<p>営業利益は   過去最高。</p></article>
<svg><text>chart</text></svg><footer>Copyright</footer></body></html>`)
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", strings.Repeat("株", 5000))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
		fmt.Fprint(w, "<html><body>late</body></html>")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseURLs(t *testing.T) {
	raw := "https://example.com/a\n  memo line\n\nftp://example.com/file\nhttp://example.com/b \n/relative/path\nhttps://example.com/a"

	assert.Equal(t, []string{
		"https://example.com/a",
		"http://example.com/b",
		"https://example.com/a",
	}, ParseURLs(raw))

	assert.Empty(t, ParseURLs(""))
}

func TestResolve_StripsBoilerplate(t *testing.T) {
	srv := newPageServer(t)
	r := NewResolver(Config{Timeout: time.Second})

	out := r.Resolve(context.Background(), []string{srv.URL + "/article"})
	require.Len(t, out, 1)
	require.False(t, out[0].Failed(), out[0].Error)

	assert.Equal(t, "トヨタ 決算 営業利益は 過去最高。", out[0].Text)
	assert.NotContains(t, out[0].Text, "Menu")
	assert.NotContains(t, out[0].Text, "Copyright")
	assert.NotContains(t, out[0].Text, "var x")
}

func TestResolve_OneTimeoutAmongMany(t *testing.T) {
	srv := newPageServer(t)
	r := NewResolver(Config{Timeout: 200 * time.Millisecond, CharBudget: 100, Concurrency: 2})

	urls := []string{
		srv.URL + "/article",
		srv.URL + "/slow",
		srv.URL + "/long",
		srv.URL + "/missing",
	}
	out := r.Resolve(context.Background(), urls)

	require.Len(t, out, len(urls))
	for i, e := range out {
		assert.Equal(t, urls[i], e.URL)
	}

	assert.False(t, out[0].Failed())
	assert.True(t, out[1].Failed())
	assert.Contains(t, out[1].Error, types.ErrReferenceFetch.Error())
	assert.False(t, out[2].Failed())
	assert.Equal(t, 100, utf8.RuneCountInString(out[2].Text))
	assert.True(t, out[3].Failed())
	assert.Contains(t, out[3].Error, "404")
}

func TestResolve_Unreachable(t *testing.T) {
	r := NewResolver(Config{Timeout: 200 * time.Millisecond})

	out := r.Resolve(context.Background(), []string{"http://127.0.0.1:1/nothing"})
	require.Len(t, out, 1)
	assert.True(t, out[0].Failed())
}

func TestResolve_Empty(t *testing.T) {
	assert.Empty(t, NewResolver(Config{}).Resolve(context.Background(), nil))
}

func TestFormatExcerpts(t *testing.T) {
	got := FormatExcerpts([]types.Excerpt{
		{URL: "https://a.example", Text: "本文A"},
		{URL: "https://b.example", Error: "timeout"},
	})

	assert.Equal(t, "[参考URL] https://a.example\n本文A\n\n[参考URL] https://b.example\n(取得失敗: timeout)", got)
}
