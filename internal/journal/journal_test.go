package journal

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/types"
)

func TestAppend_WritesDailyJSONLines(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, true)

	// 2024-03-01 16:30 UTC is 2024-03-02 01:30 JST.
	at := time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC)
	for _, action := range []string{types.ActionBuy, types.ActionHold} {
		require.NoError(t, j.Append(context.Background(), types.JudgeResult{
			Symbol:     "7203",
			Decision:   types.DecisionRecord{Action: action, Reason: "r"},
			HadContext: true,
			JudgedAt:   at,
		}))
	}

	f, err := os.Open(filepath.Join(dir, "2024-03-02.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-03-02 01:30:00", entries[0].Time)
	assert.Equal(t, types.ActionBuy, entries[0].Action)
	assert.Equal(t, types.ActionHold, entries[1].Action)
	assert.True(t, entries[1].HadContext)
}

func TestAppend_DisabledIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j := New(dir, false)

	require.NoError(t, j.Append(context.Background(), types.JudgeResult{Symbol: "7203"}))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, true)
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	old := filepath.Join(dir, "2024-03-01.jsonl")
	fresh := filepath.Join(dir, "2024-03-19.jsonl")
	require.NoError(t, os.WriteFile(old, []byte(`{"symbol":"7203"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte(`{"symbol":"6758"}`+"\n"), 0o644))
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -19), now.AddDate(0, 0, -19)))
	require.NoError(t, os.Chtimes(fresh, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))

	require.NoError(t, j.CompressOlder(context.Background(), 7))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	gz, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer gz.Close()
	r, err := gzip.NewReader(gz)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), "7203")
}

func TestCompressOlder_MissingDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"), true)
	assert.NoError(t, j.CompressOlder(context.Background(), 7))
}
