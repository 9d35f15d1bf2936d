package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-app/internal/reference"
	"trade-app/internal/types"
)

func TestParsePosition(t *testing.T) {
	p, err := parsePosition("", "")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = parsePosition("100", "2450.5")
	require.NoError(t, err)
	assert.Equal(t, "100", p.Qty.String())
	assert.Equal(t, "2450.5", p.AvgCost.String())

	p, err = parsePosition("100", "")
	require.NoError(t, err)
	assert.True(t, p.AvgCost.IsZero())

	_, err = parsePosition("x", "1")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSplitList(t *testing.T) {
	urls := reference.ParseURLs(splitList("https://a.example/1,https://b.example/2\nftp://c.example"))
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, urls)
}

func TestReadUpload(t *testing.T) {
	up, err := readUpload("")
	require.NoError(t, err)
	assert.Nil(t, up)

	p := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(p, []byte("png"), 0o644))
	up, err = readUpload(p)
	require.NoError(t, err)
	assert.Equal(t, "chart.png", up.Name)
	assert.Equal(t, []byte("png"), up.Data)

	_, err = readUpload(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
