package ecc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-air/gini/z"

	"github.com/eccmem/eccmem/internal/bvsat"
)

// searchSpace holds the column variables of a searched parity-check matrix,
// data columns first.
type searchSpace struct {
	s      *bvsat.Solver
	parity int
	cols   []bvsat.BV
}

func newSearchSpace(s *bvsat.Solver, dataBits, parity int) *searchSpace {
	sp := &searchSpace{s: s, parity: parity, cols: make([]bvsat.BV, dataBits+parity)}
	for i := range sp.cols {
		sp.cols[i] = s.Var(parity)
	}
	for i := 0; i < dataBits; i++ {
		s.Assert(s.Ne(sp.cols[i], s.Const(0, parity)))
	}
	for i := 0; i < parity; i++ {
		s.Assert(s.Eq(sp.cols[dataBits+i], s.Const(1<<uint(i), parity)))
	}
	return sp
}

// syndromes returns the symbolic syndrome of every pattern.
func (sp *searchSpace) syndromes(patterns []ErrorPattern) []bvsat.BV {
	out := make([]bvsat.BV, len(patterns))
	for i, p := range patterns {
		terms := make([]bvsat.BV, len(p))
		for j, bit := range p {
			terms[j] = sp.cols[bit]
		}
		out[i] = sp.s.Xors(terms...)
	}
	return out
}

func (sp *searchSpace) assertDistinct(syns []bvsat.BV) {
	for i := range syns {
		for j := i + 1; j < len(syns); j++ {
			sp.s.Assert(sp.s.Ne(syns[i], syns[j]))
		}
	}
}

// rowCounts returns the symbolic number of ones in each row.
func (sp *searchSpace) rowCounts() []bvsat.BV {
	rows := make([]bvsat.BV, sp.parity)
	for r := range rows {
		lits := make([]z.Lit, len(sp.cols))
		for c, col := range sp.cols {
			lits[c] = col[r]
		}
		rows[r] = sp.s.Popcount(lits)
	}
	return rows
}

func (sp *searchSpace) matrix() *Matrix {
	vals := make([]uint64, len(sp.cols))
	for i, col := range sp.cols {
		vals[i] = sp.s.Value(col)
	}
	return MatrixFromColumns(sp.parity, vals)
}

// totalOnesLowerBound fills the n columns greedily with the lightest
// distinct columns available, weights start..start+step.. up to parity.
func totalOnesLowerBound(parity, n, start, step int) uint64 {
	var total uint64
	needed := n
	for w := start; w <= parity && needed > 0; w += step {
		avail := binomial(parity, w)
		if avail >= needed {
			total += uint64(w * needed)
			needed = 0
			break
		}
		total += uint64(w * avail)
		needed -= avail
	}
	return total
}

func (c *Code) commonGoals(sp *searchSpace, totalLB uint64) []bvsat.Goal {
	rows := sp.rowCounts()
	p := uint64(c.parityBits)
	return []bvsat.Goal{
		{
			Expr:        sp.s.Max(rows...),
			UpperBound:  uint64(c.dataBits + 1),
			LowerBound:  (totalLB + p - 1) / p,
			Description: "maximum ones per row",
		},
		{
			Expr:        sp.s.Sum(rows...),
			UpperBound:  p * uint64(c.dataBits+1),
			LowerBound:  totalLB,
			Description: "total ones",
		},
	}
}

// randomPairs lists the 2-bit errors that are neither single nor adjacent.
func randomPairs(n int) []ErrorPattern {
	var out []ErrorPattern
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			out = append(out, ErrorPattern{i, j})
		}
	}
	return out
}

func (c *Code) searchMatrices(ctx context.Context, o *generateOptions) (buildResult, error) {
	s := bvsat.New(bvsat.WithLogger(o.logger), bvsat.WithPollInterval(o.poll))
	sp := newSearchSpace(s, c.dataBits, c.parityBits)
	n := c.TotalBits()

	correctable := sp.syndromes(c.correctable)
	sp.assertDistinct(correctable)

	var goals []bvsat.Goal
	switch c.kind {
	case KindDuttaTouba:
		for _, col := range sp.cols {
			s.Assert(s.RedXor(col))
		}
		goals = c.commonGoals(sp, totalOnesLowerBound(c.parityBits, n, 1, 2))
		pairs := sp.syndromes(randomPairs(n))
		hits := make([]z.Lit, len(pairs))
		for i, syn := range pairs {
			eqs := make([]z.Lit, len(correctable))
			for j, cs := range correctable {
				eqs[j] = s.Eq(syn, cs)
			}
			hits[i] = s.Ors(eqs...)
		}
		goals = append(goals, bvsat.Goal{
			Expr:        s.Popcount(hits),
			UpperBound:  uint64(len(pairs)),
			LowerBound:  0,
			Description: "overlapping 2-bit random syndromes",
		})
	case KindSheLi:
		goals = c.commonGoals(sp, totalOnesLowerBound(c.parityBits, n, 1, 1))
	default:
		return buildResult{}, fmt.Errorf("%w: %s is not a searched code", ErrUnknownKind, c.kind)
	}

	h, rep, err := bvsat.Optimize(ctx, s, goals, sp.matrix)
	if err != nil {
		return buildResult{}, err
	}
	for _, g := range rep.Goals {
		o.logger.Debug("search goal",
			slog.String("code", c.String()),
			slog.String("goal", g.Description),
			slog.Uint64("value", g.Value),
			slog.Bool("optimal", g.Optimal))
	}
	g, err := GeneratorFromParityCheck(h)
	if err != nil {
		return buildResult{}, err
	}
	res := buildResult{h: h, g: g, search: &rep}
	if c.kind == KindDuttaTouba {
		res.detectable = c.duttaToubaDetectable(h, o.logger)
	}
	return res, nil
}

// duttaToubaDetectable returns the random 2-bit errors whose syndrome does
// not alias a correctable one, and logs how many do.
func (c *Code) duttaToubaDetectable(h *Matrix, log *slog.Logger) []ErrorPattern {
	known := make(map[uint64]struct{}, len(c.correctable))
	for _, p := range c.correctable {
		known[patternSyndrome(h, p)] = struct{}{}
	}
	pairs := randomPairs(c.TotalBits())
	detectable := make([]ErrorPattern, 0, len(pairs))
	for _, p := range pairs {
		if _, hit := known[patternSyndrome(h, p)]; !hit {
			detectable = append(detectable, p)
		}
	}
	overlapping := len(pairs) - len(detectable)
	pct := 0.0
	if len(pairs) > 0 {
		pct = 100 * float64(overlapping) / float64(len(pairs))
	}
	log.Info(fmt.Sprintf("Miscorrected syndromes: %d/%d (%.2f%%)", overlapping, len(pairs), pct),
		slog.String("code", c.String()))
	return detectable
}

// patternSyndrome XORs the columns of h named by p.
func patternSyndrome(h *Matrix, p ErrorPattern) uint64 {
	var v uint64
	for _, bit := range p {
		v ^= h.ColumnValue(bit)
	}
	return v
}
