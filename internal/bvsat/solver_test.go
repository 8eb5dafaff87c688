package bvsat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	s := New()
	x := s.Var(4)
	y := s.Var(4)
	s.Assert(s.Eq(s.Add(x, y), s.Const(9, 5)))
	s.Assert(s.Ult(x, y))
	s.Assert(s.Eq(x, s.Const(2, 4)))

	require.Equal(t, Sat, s.CheckSat(context.Background()))
	assert.Equal(t, uint64(2), s.Value(x))
	assert.Equal(t, uint64(7), s.Value(y))
}

func TestPopcountMaxRedXor(t *testing.T) {
	s := New()
	a := s.Var(5)
	b := s.Var(5)
	s.Assert(s.Eq(a, s.Const(0b10110, 5)))
	s.Assert(s.Eq(b, s.Const(0b00011, 5)))
	pa := s.Popcount(a)
	pb := s.Popcount(b)
	m := s.Max(pa, pb)
	x := s.Xor(a, b)
	ra, rb := s.RedXor(a), s.RedXor(b)
	s.Encode(pa, pb, m, x, BV{ra, rb})

	require.Equal(t, Sat, s.CheckSat(context.Background()))
	assert.Equal(t, uint64(3), s.Value(pa))
	assert.Equal(t, uint64(2), s.Value(pb))
	assert.Equal(t, uint64(3), s.Value(m))
	assert.Equal(t, uint64(0b10101), s.Value(x))
	assert.True(t, s.BoolValue(ra))
	assert.False(t, s.BoolValue(rb))
}

func TestValueOfUnencodedTermPanics(t *testing.T) {
	s := New()
	a := s.Var(3)
	s.Assert(s.Eq(a, s.Const(5, 3)))
	p := s.Popcount(a)

	require.Equal(t, Sat, s.CheckSat(context.Background()))
	assert.Equal(t, uint64(5), s.Value(a))
	assert.Panics(t, func() { s.Value(p) })
}

func TestUleConstWiderThanTerm(t *testing.T) {
	ctx := context.Background()
	s := New()
	x := s.Var(2)
	s.Assert(s.Eq(x, s.Const(3, 2)))

	s.Assume(s.UleConst(x, 100))
	assert.Equal(t, Sat, s.CheckSat(ctx))
	s.Assume(s.UleConst(x, 2))
	assert.Equal(t, Unsat, s.CheckSat(ctx))
	s.Assume(s.UltConst(x, 4))
	assert.Equal(t, Sat, s.CheckSat(ctx))
}

func TestAssumptionsLastOneCheck(t *testing.T) {
	ctx := context.Background()
	s := New()
	x := s.Var(3)

	s.Assume(s.Eq(x, s.Const(3, 3)))
	s.Assume(s.Eq(x, s.Const(4, 3)))
	require.Equal(t, Unsat, s.CheckSat(ctx))

	s.Assume(s.Eq(x, s.Const(4, 3)))
	require.Equal(t, Sat, s.CheckSat(ctx))
	assert.Equal(t, uint64(4), s.Value(x))

	require.Equal(t, Sat, s.CheckSat(ctx))
}

func TestFixateMakesAssumptionPermanent(t *testing.T) {
	ctx := context.Background()
	s := New()
	x := s.Var(3)

	s.Assume(s.UleConst(x, 2))
	require.Equal(t, Sat, s.CheckSat(ctx))
	s.Fixate()

	s.Assume(s.Eq(x, s.Const(6, 3)))
	assert.Equal(t, Unsat, s.CheckSat(ctx))
	require.Equal(t, Sat, s.CheckSat(ctx))
	assert.LessOrEqual(t, s.Value(x), uint64(2))
}

func TestCheckSatCancelledContext(t *testing.T) {
	s := New()
	s.Var(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Unknown, s.CheckSat(ctx))
}

func TestOptimizeLexicographic(t *testing.T) {
	s := New()
	x := s.Var(4)
	y := s.Var(4)
	// x + y >= 10, x >= 3
	s.Assert(s.Ule(s.Const(10, 5), s.Add(x, y)))
	s.Assert(s.Ule(s.Const(3, 4), x))

	type pair struct{ x, y uint64 }
	got, rep, err := Optimize(context.Background(), s, []Goal{
		{Expr: x, UpperBound: 15, Description: "x"},
		{Expr: y, UpperBound: 15, Description: "y"},
	}, func() pair { return pair{s.Value(x), s.Value(y)} })
	require.NoError(t, err)
	assert.Equal(t, pair{3, 7}, got)
	require.Len(t, rep.Goals, 2)
	assert.True(t, rep.Goals[0].Optimal)
	assert.True(t, rep.Goals[1].Optimal)
	assert.Equal(t, uint64(3), rep.Goals[0].Value)
	assert.Equal(t, uint64(7), rep.Goals[1].Value)
	assert.False(t, rep.Cancelled)
}

func TestOptimizeStopsAtLowerBound(t *testing.T) {
	s := New()
	x := s.Var(4)
	s.Assert(s.Ule(s.Const(5, 4), x))

	_, rep, err := Optimize(context.Background(), s, []Goal{
		{Expr: x, UpperBound: 15, LowerBound: 5, Description: "x"},
	}, func() uint64 { return s.Value(x) })
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rep.Goals[0].Value)
	assert.True(t, rep.Goals[0].Optimal)
}

// The goal is a derived term that no constraint mentions and whose upper
// bound is wider than the term itself.
func TestOptimizeDerivedGoalWithLooseBound(t *testing.T) {
	ctx := context.Background()
	s := New()
	x := s.Var(3)
	for _, l := range x {
		s.Assert(l)
	}

	got, rep, err := Optimize(ctx, s, []Goal{
		{Expr: s.Popcount(x), UpperBound: 100, LowerBound: 1, Description: "ones"},
	}, func() uint64 { return s.Value(x) })
	require.NoError(t, err)
	assert.Equal(t, uint64(0b111), got)
	assert.Equal(t, GoalResult{Description: "ones", Value: 3, Found: true, Optimal: true}, rep.Goals[0])
	assert.Equal(t, Sat, s.CheckSat(ctx))
}

func TestOptimizeUnsatisfiable(t *testing.T) {
	s := New()
	x := s.Var(2)
	s.Assert(s.Eq(x, s.Const(1, 2)))
	s.Assert(s.Eq(x, s.Const(2, 2)))
	_, _, err := Optimize(context.Background(), s, nil, func() uint64 { return s.Value(x) })
	assert.ErrorIs(t, err, ErrUnsatisfiable)
}

func TestOptimizeNoModelWhenCancelledUpFront(t *testing.T) {
	s := New()
	x := s.Var(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, rep, err := Optimize(ctx, s, []Goal{
		{Expr: x, UpperBound: 3, Description: "x"},
		{Expr: s.Not(x), UpperBound: 3, Description: "not x"},
	}, func() uint64 { return s.Value(x) })
	assert.ErrorIs(t, err, ErrNoModel)
	assert.True(t, rep.Cancelled)
	require.Len(t, rep.Goals, 2)
	assert.Equal(t, "x", rep.Goals[0].Description)
	assert.Equal(t, "not x", rep.Goals[1].Description)
	assert.False(t, rep.Goals[1].Found)
}

// Cancelling mid-goal keeps the last satisfying model, including a partial
// improvement of the goal being optimized.
func TestOptimizeCancelledKeepsLastModel(t *testing.T) {
	s := New(WithPollInterval(time.Millisecond))
	x := s.Var(4)
	s.Assert(s.Ule(s.Const(5, 4), x))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type snap struct {
		n int
		x uint64
	}
	calls := 0
	got, rep, err := Optimize(ctx, s, []Goal{
		{Expr: x, UpperBound: 15, Description: "x"},
		{Expr: x, UpperBound: 15, Description: "never reached"},
	}, func() snap {
		calls++
		if calls == 2 {
			cancel()
		}
		return snap{n: calls, x: s.Value(x)}
	})
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.Equal(t, 2, got.n)
	assert.Equal(t, 2, rep.Models)
	assert.True(t, rep.Goals[0].Found)
	assert.False(t, rep.Goals[0].Optimal)
	assert.Equal(t, got.x, rep.Goals[0].Value)
	assert.False(t, rep.Goals[1].Found)
	assert.Equal(t, "never reached", rep.Goals[1].Description)
}
