package main

import (
	"context"
	mrand "math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eccmem/eccmem/ecc"
)

func TestParseFlags(t *testing.T) {
	bits, err := parseBits("8, 16,,64")
	require.NoError(t, err)
	assert.Equal(t, []int{8, 16, 64}, bits)
	_, err = parseBits("8,x")
	assert.Error(t, err)
	_, err = parseBits("-4")
	assert.Error(t, err)

	kinds, err := parseKinds("all")
	require.NoError(t, err)
	assert.Equal(t, ecc.Kinds(), kinds)
	kinds, err = parseKinds("hamming,she-li")
	require.NoError(t, err)
	assert.Equal(t, []ecc.Kind{ecc.KindHamming, ecc.KindSheLi}, kinds)
	_, err = parseKinds("golay")
	assert.ErrorIs(t, err, ecc.ErrUnknownKind)
}

func TestEvaluate(t *testing.T) {
	rng := mrand.New(mrand.NewSource(1))
	r := evaluate(context.Background(), ecc.KindHsiao, 16, time.Minute, 200, rng)
	require.False(t, r.Failed, r.Err)
	assert.Equal(t, 6, r.Parity)
	assert.Zero(t, r.Misses)
	assert.NotZero(t, r.Metrics.RowMax)

	r = evaluate(context.Background(), ecc.KindParity, 8, time.Minute, 50, rng)
	require.False(t, r.Failed)
	// only flips of the parity bit itself leave the data intact
	assert.Greater(t, r.Misses, 0)
	assert.LessOrEqual(t, r.Misses, 50)

	r = evaluate(context.Background(), ecc.KindDuttaTouba, 4, time.Minute, 10, rng)
	assert.True(t, r.Failed)
	assert.Contains(t, r.Err, "unsatisfiable")
}

func TestReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "eval.md")
	rs := results{
		{Kind: ecc.KindHamming, DataBits: 8, Parity: 4, Elapsed: 3 * time.Millisecond, Metrics: ecc.Metrics{RowMax: 7, Syns: 1, Ones: 20}},
		{Kind: ecc.KindSheLi, DataBits: 4, Parity: 5, Failed: true, Err: "unsatisfiable"},
	}
	require.NoError(t, ensureDir(path))
	require.NoError(t, writeMarkdown(path, rs, time.Minute))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(b)
	assert.Contains(t, md, "| hamming | 8 | 4 | 3ms | 7 | 1 | 20 |")
	assert.Contains(t, md, "| she_li | 4 | 5 | failed |")
	assert.Contains(t, md, "- she_li(4): unsatisfiable")

	js, err := gojay.MarshalJSONArray(rs)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"code":"she_li"`)
	assert.Contains(t, string(js), `"row_max":7`)
}
