package ecc

import (
	"context"
	"fmt"
	"log/slog"
)

// binomial returns C(n, k), 0 when k is out of range.
func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}

// combinations calls yield with each k-subset of [0,n) in lexicographic order
// until yield returns false. The slice passed to yield is reused.
func combinations(n, k int, yield func([]int) bool) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !yield(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func allCombinations(n, k int) [][]int {
	out := make([][]int, 0, binomial(n, k))
	combinations(n, k, func(c []int) bool {
		out = append(out, append([]int(nil), c...))
		return true
	})
	return out
}

const hsiaoCheckEvery = 1024

// hsiaoSearch picks odd-weight data columns so that the rows of the
// parity-check matrix are as balanced as possible. Whole weight classes are
// taken while every column of the class is needed; the remainder is the
// subset of the next weight class with the lowest maximum row weight. The
// search ends at the first candidate whose rows differ by at most one, or
// when ctx is done, keeping the best candidate seen.
func hsiaoSearch(ctx context.Context, dataBits, parity int, log *slog.Logger) (*Matrix, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultSearchBudget)
		defer cancel()
	}

	needed := dataBits
	var fixed [][]int
	weight := 3
	for needed > 0 {
		avail := binomial(parity, weight)
		if needed < avail {
			break
		}
		needed -= avail
		fixed = append(fixed, allCombinations(parity, weight)...)
		weight += 2
	}
	flexible := allCombinations(parity, weight)

	base := make([]int, parity)
	for _, col := range fixed {
		for _, r := range col {
			base[r]++
		}
	}

	total := dataBits + parity
	lowestMax := total
	var best []int
	counts := make([]int, parity)
	iter := 0
	combinations(len(flexible), needed, func(pick []int) bool {
		copy(counts, base)
		for _, f := range pick {
			for _, r := range flexible[f] {
				counts[r]++
			}
		}
		maxW, minW := rowSpread(counts)
		if maxW < lowestMax {
			lowestMax = maxW
			best = append(best[:0], pick...)
			if maxW-minW <= 1 {
				return false
			}
		}
		iter++
		if iter%hsiaoCheckEvery == 0 && ctx.Err() != nil {
			log.Info("hsiao search budget exhausted, keeping best candidate",
				slog.Int("candidates", iter), slog.Int("max_row_weight", lowestMax))
			return false
		}
		return true
	})
	if best == nil && needed > 0 {
		return nil, fmt.Errorf("%w: no hsiao candidate for %d data bits", ErrInvalidConstruction, dataBits)
	}

	cols := make([][]int, 0, total)
	cols = append(cols, fixed...)
	for _, f := range best {
		cols = append(cols, flexible[f])
	}
	for r := 0; r < parity; r++ {
		cols = append(cols, []int{r})
	}
	h := NewMatrix(parity, total)
	for c, rows := range cols {
		for _, r := range rows {
			h.b[r][c] = true
		}
	}
	log.Debug("hsiao search done", slog.Int("candidates", iter), slog.Int("max_row_weight", lowestMax))
	return h, nil
}

// rowSpread returns the max and min over rows that hold at least one bit.
func rowSpread(counts []int) (maxW, minW int) {
	minW = -1
	for _, n := range counts {
		if n == 0 {
			continue
		}
		if n > maxW {
			maxW = n
		}
		if minW < 0 || n < minW {
			minW = n
		}
	}
	if minW < 0 {
		minW = 0
	}
	return maxW, minW
}

// hsiaoConstructed assembles the parity-check matrix from recursively
// balanced blocks: every column class of odd weight below the largest one
// needed, a partial block of the largest weight, then the identity.
func hsiaoConstructed(parity, total int) (*Matrix, error) {
	maxWeight := 1
	prevTotal := 0
	acc := binomial(parity, maxWeight)
	for total > acc {
		maxWeight += 2
		prevTotal = acc
		acc += binomial(parity, maxWeight)
		if maxWeight > parity {
			return nil, fmt.Errorf("%w: %d columns exceed the odd-weight columns of %d rows", ErrInvalidConstruction, total, parity)
		}
	}
	var parts []*Matrix
	for w := 3; w < maxWeight; w += 2 {
		d, err := delta(parity, w, binomial(parity, w))
		if err != nil {
			return nil, err
		}
		parts = append(parts, d)
	}
	d, err := delta(parity, maxWeight, total-prevTotal)
	if err != nil {
		return nil, err
	}
	parts = append(parts, d, Identity(parity))
	return HStack(parts...), nil
}

// delta builds a rows x columns matrix of distinct weight-weight columns whose
// row weights differ by at most one.
func delta(rows, weight, columns int) (*Matrix, error) {
	switch {
	case columns == 0:
		return NewMatrix(rows, 0), nil
	case weight == 0:
		if columns != 1 {
			return nil, fmt.Errorf("%w: delta(%d,0,%d)", ErrInvalidConstruction, rows, columns)
		}
		return NewMatrix(rows, 1), nil
	case weight == rows:
		if columns != 1 {
			return nil, fmt.Errorf("%w: delta(%d,%d,%d)", ErrInvalidConstruction, rows, weight, columns)
		}
		return Ones(rows, 1), nil
	case columns == 1:
		m := NewMatrix(rows, 1)
		for r := 0; r < weight; r++ {
			m.b[r][0] = true
		}
		return m, nil
	case weight == 1:
		if rows < columns {
			return nil, fmt.Errorf("%w: delta(%d,1,%d)", ErrInvalidConstruction, rows, columns)
		}
		return VStack(Identity(columns), NewMatrix(rows-columns, columns)), nil
	case weight == rows-1:
		if rows < columns {
			return nil, fmt.Errorf("%w: delta(%d,%d,%d)", ErrInvalidConstruction, rows, weight, columns)
		}
		return VStack(Ones(rows-columns, columns), Identity(columns).Complement()), nil
	}

	if weight < 2 || weight > rows-2 || columns < 2 || columns > binomial(rows, weight) {
		return nil, fmt.Errorf("%w: delta(%d,%d,%d)", ErrInvalidConstruction, rows, weight, columns)
	}
	m1 := (columns*weight + rows - 1) / rows
	d1, err := delta(rows-1, weight-1, m1)
	if err != nil {
		return nil, err
	}
	d2, err := delta(rows-1, weight, columns-m1)
	if err != nil {
		return nil, err
	}

	// rotate the rows of d2 so its heavy rows line up with d1's light ones
	n := rows - 1
	r1 := ((weight - 1) * m1) % n
	r2 := (weight * (columns - m1)) % n
	order := make([]int, 0, n)
	if r1+r2 > n {
		rp := r1 + r2 - n
		for r := r2 - rp; r < n; r++ {
			order = append(order, r)
		}
		for r := 0; r < r2-rp; r++ {
			order = append(order, r)
		}
	} else {
		rest := make([]int, 0, n)
		for r := r2; r < n; r++ {
			rest = append(rest, r)
		}
		at := r1 + 1
		if at > len(rest) {
			at = len(rest)
		}
		order = append(order, rest[:at]...)
		for r := 0; r < r2; r++ {
			order = append(order, r)
		}
		order = append(order, rest[at:]...)
	}

	top := NewMatrix(1, columns)
	for c := 0; c < m1; c++ {
		top.b[0][c] = true
	}
	return VStack(top, HStack(d1, d2.SelectRows(order))), nil
}
