package bvsat

import (
	"math/bits"

	"github.com/go-air/gini/z"
)

// BV is an unsigned bit-vector term, least significant bit first.
type BV []z.Lit

// Var returns a fresh unconstrained bit-vector.
func (s *Solver) Var(width int) BV {
	bv := make(BV, width)
	for i := range bv {
		l := s.c.Lit()
		// a tautology registers the variable so it always has a model value
		s.g.Add(l)
		s.g.Add(l.Not())
		s.g.Add(z.LitNull)
		bv[i] = l
	}
	s.encode(bv...)
	return bv
}

// Const returns the low width bits of v.
func (s *Solver) Const(v uint64, width int) BV {
	bv := make(BV, width)
	for i := range bv {
		if i < 64 && v&(1<<uint(i)) != 0 {
			bv[i] = s.c.T
		} else {
			bv[i] = s.c.F
		}
	}
	return bv
}

// Bits returns the number of bits needed to represent v (at least 1).
func Bits(v uint64) int {
	if v == 0 {
		return 1
	}
	return bits.Len64(v)
}

// ZeroExt pads a to width with false bits.
func (s *Solver) ZeroExt(a BV, width int) BV {
	if len(a) >= width {
		return a
	}
	out := make(BV, width)
	copy(out, a)
	for i := len(a); i < width; i++ {
		out[i] = s.c.F
	}
	return out
}

func (s *Solver) align(a, b BV) (BV, BV) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	return s.ZeroExt(a, n), s.ZeroExt(b, n)
}

func (s *Solver) Not(a BV) BV {
	out := make(BV, len(a))
	for i, l := range a {
		out[i] = l.Not()
	}
	return out
}

func (s *Solver) Xor(a, b BV) BV {
	a, b = s.align(a, b)
	out := make(BV, len(a))
	for i := range a {
		out[i] = s.c.Xor(a[i], b[i])
	}
	return out
}

// Xors folds Xor over terms.
func (s *Solver) Xors(terms ...BV) BV {
	if len(terms) == 0 {
		return nil
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = s.Xor(acc, t)
	}
	return acc
}

func (s *Solver) Eq(a, b BV) z.Lit {
	a, b = s.align(a, b)
	eq := s.c.T
	for i := range a {
		eq = s.c.And(eq, s.c.Xor(a[i], b[i]).Not())
	}
	return eq
}

func (s *Solver) Ne(a, b BV) z.Lit { return s.Eq(a, b).Not() }

// Ule is the unsigned a <= b.
func (s *Solver) Ule(a, b BV) z.Lit {
	a, b = s.align(a, b)
	le := s.c.T
	for i := range a {
		lt := s.c.And(a[i].Not(), b[i])
		same := s.c.Xor(a[i], b[i]).Not()
		le = s.c.Or(lt, s.c.And(same, le))
	}
	return le
}

// Ult is the unsigned a < b.
func (s *Solver) Ult(a, b BV) z.Lit { return s.Ule(b, a).Not() }

// UleConst is a <= k, compared at the wider of the two widths.
func (s *Solver) UleConst(a BV, k uint64) z.Lit {
	w := len(a)
	if Bits(k) > w {
		w = Bits(k)
	}
	return s.Ule(a, s.Const(k, w))
}

// UltConst is a < k.
func (s *Solver) UltConst(a BV, k uint64) z.Lit {
	if k == 0 {
		return s.c.F
	}
	return s.UleConst(a, k-1)
}

// Add returns a+b one bit wider than the wider operand, so it never overflows.
func (s *Solver) Add(a, b BV) BV {
	a, b = s.align(a, b)
	out := make(BV, len(a)+1)
	carry := s.c.F
	for i := range a {
		axb := s.c.Xor(a[i], b[i])
		out[i] = s.c.Xor(axb, carry)
		carry = s.c.Or(s.c.And(a[i], b[i]), s.c.And(carry, axb))
	}
	out[len(a)] = carry
	return out
}

// Ite selects a when cond holds, otherwise b.
func (s *Solver) Ite(cond z.Lit, a, b BV) BV {
	a, b = s.align(a, b)
	out := make(BV, len(a))
	for i := range a {
		out[i] = s.c.Choice(cond, a[i], b[i])
	}
	return out
}

// Max is the unsigned maximum of the terms.
func (s *Solver) Max(terms ...BV) BV {
	if len(terms) == 0 {
		return nil
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = s.Ite(s.Ule(t, acc), acc, t)
	}
	return acc
}

// Sum adds terms pairwise in a balanced tree.
func (s *Solver) Sum(terms ...BV) BV {
	switch len(terms) {
	case 0:
		return s.Const(0, 1)
	case 1:
		return terms[0]
	}
	mid := len(terms) / 2
	return s.Add(s.Sum(terms[:mid]...), s.Sum(terms[mid:]...))
}

// Popcount counts the true literals of ls.
func (s *Solver) Popcount(ls []z.Lit) BV {
	terms := make([]BV, len(ls))
	for i, l := range ls {
		terms[i] = BV{l}
	}
	return s.Sum(terms...)
}

// RedXor is the parity of a.
func (s *Solver) RedXor(a BV) z.Lit {
	acc := s.c.F
	for _, l := range a {
		acc = s.c.Xor(acc, l)
	}
	return acc
}

// Ors is the disjunction of ls.
func (s *Solver) Ors(ls ...z.Lit) z.Lit { return s.c.Ors(ls...) }

// Ands is the conjunction of ls.
func (s *Solver) Ands(ls ...z.Lit) z.Lit { return s.c.Ands(ls...) }
