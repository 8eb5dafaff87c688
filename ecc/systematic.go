package ecc

import (
	"fmt"
	"log/slog"
)

// ColumnSwap records one column exchange performed by ToSystematic.
type ColumnSwap struct {
	A, B int
}

// ToSystematic reduces a parity-check matrix to [A | I] with row operations,
// falling back to column swaps when no row can supply a pivot. Pivots are filled
// from the bottom-right corner upwards. The returned swaps must be replayed in
// reverse on the generator matrix to map it back to the input column order.
func ToSystematic(h *Matrix) (*Matrix, []ColumnSwap, error) {
	m := h.Clone()
	rows, cols := m.rows, m.cols
	if rows > cols {
		return nil, nil, fmt.Errorf("%w: %d rows exceed %d columns", ErrRedundantRow, rows, cols)
	}
	var swaps []ColumnSwap
	origRow := make([]int, rows)
	for i := range origRow {
		origRow[i] = i
	}

	for k := 0; k < rows; k++ {
		ro, co := rows-1-k, cols-1-k
		if !m.b[ro][co] {
			found := false
			for r := ro - 1; r >= 0; r-- {
				if m.b[r][co] {
					m.SwapRows(r, ro)
					origRow[r], origRow[ro] = origRow[ro], origRow[r]
					found = true
					break
				}
			}
			if !found {
				for c := co - 1; c >= 0; c-- {
					if m.b[ro][c] {
						swaps = append(swaps, ColumnSwap{A: co, B: c})
						m.SwapCols(c, co)
						found = true
						break
					}
				}
			}
			if !found {
				return nil, nil, &RedundantRowError{Row: origRow[ro], Pivot: ro, Column: co}
			}
		}
		for r := ro - 1; r >= 0; r-- {
			if m.b[r][co] {
				m.XorRow(r, ro)
			}
		}
	}

	// lower triangle
	for c := 0; c < rows; c++ {
		pc := cols - rows + c
		for r := c + 1; r < rows; r++ {
			if m.b[r][pc] {
				m.XorRow(r, c)
			}
		}
	}
	return m, swaps, nil
}

// GeneratorFromSystematic returns G = [I | A^T] for H = [A | I].
func GeneratorFromSystematic(hs *Matrix) (*Matrix, error) {
	p, n := hs.rows, hs.cols
	k := n - p
	if k < 0 || !hs.Sub(0, p, k, n).Equal(Identity(p)) {
		return nil, ErrNotSystematic
	}
	return HStack(Identity(k), hs.Sub(0, p, 0, k).Transpose()), nil
}

// GeneratorFromParityCheck derives a generator matrix for any full-rank
// parity-check matrix.
func GeneratorFromParityCheck(h *Matrix) (*Matrix, error) {
	hs, swaps, err := ToSystematic(h)
	if err != nil {
		return nil, err
	}
	g, err := GeneratorFromSystematic(hs)
	if err != nil {
		return nil, err
	}
	for i := len(swaps) - 1; i >= 0; i-- {
		g.SwapCols(swaps[i].A, swaps[i].B)
	}
	if len(swaps) > 0 {
		slog.Debug("systematic form needed column swaps", slog.Int("swaps", len(swaps)))
	}
	if err := CheckOrthogonal(h, g); err != nil {
		return nil, err
	}
	return g, nil
}

// CheckOrthogonal verifies H*G^T == 0.
func CheckOrthogonal(h, g *Matrix) error {
	if h.cols != g.cols {
		return fmt.Errorf("%w: H has %d columns, G has %d", ErrNotOrthogonal, h.cols, g.cols)
	}
	prod, err := h.Mul(g.Transpose())
	if err != nil {
		return err
	}
	if !prod.IsZero() {
		return ErrNotOrthogonal
	}
	return nil
}

// Syndrome XORs together the columns of h selected by the set bits of codeword.
// Row r of h maps to bit r of the result.
func Syndrome(h *Matrix, codeword Word) uint64 {
	var s uint64
	for c := 0; c < h.cols; c++ {
		if codeword.Bit(c) {
			s ^= h.ColumnValue(c)
		}
	}
	return s
}
