package ecc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowWeights(m *Matrix) []int {
	out := make([]int, m.Rows())
	for r := range out {
		out[r] = m.RowWeight(r)
	}
	return out
}

func assertDistinctColumns(t *testing.T, m *Matrix) {
	t.Helper()
	seen := make(map[uint64]int, m.Cols())
	for c := 0; c < m.Cols(); c++ {
		v := m.ColumnValue(c)
		prev, dup := seen[v]
		assert.False(t, dup, "columns %d and %d are equal", prev, c)
		seen[v] = c
	}
}

func TestBinomialAndCombinations(t *testing.T) {
	assert.Equal(t, 1, binomial(5, 0))
	assert.Equal(t, 10, binomial(5, 3))
	assert.Equal(t, 35, binomial(7, 3))
	assert.Equal(t, 0, binomial(3, 4))

	var got [][]int
	combinations(4, 2, func(c []int) bool {
		got = append(got, append([]int(nil), c...))
		return true
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)

	n := 0
	combinations(10, 3, func([]int) bool {
		n++
		return n < 5
	})
	assert.Equal(t, 5, n)

	n = 0
	combinations(3, 0, func(c []int) bool {
		assert.Empty(t, c)
		n++
		return true
	})
	assert.Equal(t, 1, n)
}

func TestDeltaBaseCases(t *testing.T) {
	d, err := delta(4, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cols())

	d, err = delta(4, 4, 1)
	require.NoError(t, err)
	assert.True(t, d.Equal(Ones(4, 1)))

	d, err = delta(4, 0, 1)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = delta(5, 3, 1)
	require.NoError(t, err)
	assert.True(t, d.Equal(bitsMatrix("1", "1", "1", "0", "0")))

	d, err = delta(4, 1, 3)
	require.NoError(t, err)
	assert.True(t, d.Equal(bitsMatrix("100", "010", "001", "000")))

	d, err = delta(4, 3, 3)
	require.NoError(t, err)
	assert.True(t, d.Equal(bitsMatrix("111", "011", "101", "110")))

	_, err = delta(4, 4, 2)
	assert.ErrorIs(t, err, ErrInvalidConstruction)
	_, err = delta(4, 2, 7)
	assert.ErrorIs(t, err, ErrInvalidConstruction)
}

func TestDeltaRecursive(t *testing.T) {
	tests := []struct {
		rows, weight, cols int
		weights            []int
	}{
		{5, 2, 7, []int{3, 3, 3, 3, 2}},
		{6, 3, 13, []int{7, 6, 7, 7, 6, 6}},
		{6, 3, 20, []int{10, 10, 10, 10, 10, 10}},
		{7, 3, 35, []int{15, 15, 15, 15, 15, 15, 15}},
		{8, 3, 30, []int{12, 12, 11, 11, 11, 11, 11, 11}},
		// the row interleave does not balance every shape
		{7, 3, 22, []int{10, 10, 11, 9, 9, 8, 9}},
		{7, 5, 10, []int{8, 7, 7, 6, 7, 8, 7}},
	}
	for _, tt := range tests {
		d, err := delta(tt.rows, tt.weight, tt.cols)
		require.NoError(t, err)
		require.Equal(t, tt.rows, d.Rows())
		require.Equal(t, tt.cols, d.Cols())
		for c := 0; c < d.Cols(); c++ {
			assert.Equal(t, tt.weight, d.ColumnWeight(c), "delta(%d,%d,%d) column %d", tt.rows, tt.weight, tt.cols, c)
		}
		assertDistinctColumns(t, d)
		assert.Equal(t, tt.weights, rowWeights(d), "delta(%d,%d,%d)", tt.rows, tt.weight, tt.cols)
	}
}

func checkHsiaoCode(t *testing.T, c *Code) {
	t.Helper()
	h, err := c.ParityCheck()
	require.NoError(t, err)
	g, err := c.Generator()
	require.NoError(t, err)
	require.NoError(t, CheckOrthogonal(h, g))
	for col := 0; col < h.Cols(); col++ {
		assert.Equal(t, 1, h.ColumnWeight(col)%2, "column %d has even weight", col)
	}
	assertDistinctColumns(t, h)
	k := c.DataBits()
	assert.True(t, h.Sub(0, h.Rows(), k, h.Cols()).Equal(Identity(h.Rows())))
	assert.True(t, g.Sub(0, k, 0, k).Equal(Identity(k)))
}

func TestHsiaoConstructed(t *testing.T) {
	tests := []struct {
		k       int
		weights []int
	}{
		{4, []int{4, 4, 4, 4}},
		{8, []int{6, 6, 5, 6, 6}},
		{11, []int{8, 8, 8, 8, 8}},
		{16, []int{9, 10, 9, 9, 8, 9}},
		{26, []int{16, 16, 16, 16, 16, 16}},
		{32, []int{15, 15, 15, 15, 15, 15, 13}},
		{57, []int{32, 32, 32, 32, 32, 32, 32}},
		{64, []int{27, 27, 27, 27, 27, 25, 27, 29}},
	}
	for _, tt := range tests {
		c, err := New(KindHsiaoConstructed, tt.k)
		require.NoError(t, err)
		require.NoError(t, c.Generate(context.Background()))
		checkHsiaoCode(t, c)
		h, _ := c.ParityCheck()
		assert.Equal(t, tt.weights, rowWeights(h), "k=%d", tt.k)
	}
}

func TestHsiaoSearch(t *testing.T) {
	tests := []struct {
		k       int
		weights []int
	}{
		{4, []int{4, 4, 4, 4}},
		{8, []int{6, 6, 6, 6, 5}},
		{16, []int{9, 9, 9, 9, 9, 9}},
		{32, []int{15, 15, 15, 15, 15, 14, 14}},
	}
	for _, tt := range tests {
		c, err := New(KindHsiao, tt.k)
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		require.NoError(t, c.Generate(ctx))
		cancel()
		checkHsiaoCode(t, c)
		h, _ := c.ParityCheck()
		assert.Equal(t, tt.weights, rowWeights(h), "k=%d", tt.k)
	}
}

func TestHsiaoSearchKeepsBestOnExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := New(KindHsiao, 16)
	require.NoError(t, err)
	require.NoError(t, c.Generate(ctx))
	checkHsiaoCode(t, c)
}

func TestRowSpread(t *testing.T) {
	maxW, minW := rowSpread([]int{3, 0, 5, 4})
	assert.Equal(t, 5, maxW)
	assert.Equal(t, 3, minW)
	maxW, minW = rowSpread([]int{0, 0})
	assert.Zero(t, maxW)
	assert.Zero(t, minW)
}
