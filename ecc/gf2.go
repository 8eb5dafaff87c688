package ecc

import (
	"fmt"
	"strings"
)

// Matrix is a dense GF(2) matrix stored as bool rows.
type Matrix struct {
	rows, cols int
	b          [][]bool
}

// NewMatrix returns an all-zero rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	m := &Matrix{rows: rows, cols: cols, b: make([][]bool, rows)}
	for i := range m.b {
		m.b[i] = make([]bool, cols)
	}
	return m
}

// MatrixFromRows copies bool rows; all rows must share a length.
func MatrixFromRows(rows [][]bool) *Matrix {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			panic(fmt.Sprintf("ecc: ragged row %d: %d != %d", i, len(r), cols))
		}
		copy(m.b[i], r)
	}
	return m
}

// MatrixFromColumns builds a rows x len(cols) matrix whose column c has bit r
// of cols[c] in row r.
func MatrixFromColumns(rows int, cols []uint64) *Matrix {
	m := NewMatrix(rows, len(cols))
	for c, v := range cols {
		for r := 0; r < rows; r++ {
			m.b[r][c] = v&(1<<uint(r)) != 0
		}
	}
	return m
}

func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.b[i][i] = true
	}
	return m
}

func Ones(rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.b {
		for j := range m.b[i] {
			m.b[i][j] = true
		}
	}
	return m
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(r, c int) bool { return m.b[r][c] }
func (m *Matrix) Set(r, c int, v bool) { m.b[r][c] = v }

// Row returns a copy of row r.
func (m *Matrix) Row(r int) []bool { return append([]bool(nil), m.b[r]...) }

// Column returns a copy of column c.
func (m *Matrix) Column(c int) []bool {
	out := make([]bool, m.rows)
	for r := 0; r < m.rows; r++ {
		out[r] = m.b[r][c]
	}
	return out
}

// ColumnValue packs column c into an integer, row r at bit r. Only valid
// for matrices with at most 64 rows.
func (m *Matrix) ColumnValue(c int) uint64 {
	var v uint64
	for r := 0; r < m.rows; r++ {
		if m.b[r][c] {
			v |= 1 << uint(r)
		}
	}
	return v
}

// RowWord packs row r into a Word.
func (m *Matrix) RowWord(r int) Word { return WordFromBools(m.b[r]) }

// ColumnWord packs column c into a Word.
func (m *Matrix) ColumnWord(c int) Word { return WordFromBools(m.Column(c)) }

func (m *Matrix) RowWeight(r int) int {
	n := 0
	for _, v := range m.b[r] {
		if v {
			n++
		}
	}
	return n
}

func (m *Matrix) ColumnWeight(c int) int {
	n := 0
	for r := 0; r < m.rows; r++ {
		if m.b[r][c] {
			n++
		}
	}
	return n
}

func (m *Matrix) Clone() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, b: make([][]bool, m.rows)}
	for i := range m.b {
		out.b[i] = append([]bool(nil), m.b[i]...)
	}
	return out
}

func (m *Matrix) Transpose() *Matrix {
	out := NewMatrix(m.cols, m.rows)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			out.b[c][r] = m.b[r][c]
		}
	}
	return out
}

// Mul returns m*o over GF(2).
func (m *Matrix) Mul(o *Matrix) (*Matrix, error) {
	if m.cols != o.rows {
		return nil, fmt.Errorf("ecc: dimension mismatch %dx%d * %dx%d", m.rows, m.cols, o.rows, o.cols)
	}
	out := NewMatrix(m.rows, o.cols)
	for i := 0; i < m.rows; i++ {
		for k := 0; k < m.cols; k++ {
			if !m.b[i][k] {
				continue
			}
			for j := 0; j < o.cols; j++ {
				out.b[i][j] = out.b[i][j] != o.b[k][j]
			}
		}
	}
	return out, nil
}

func (m *Matrix) IsZero() bool {
	for _, row := range m.b {
		for _, v := range row {
			if v {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) Equal(o *Matrix) bool {
	if o == nil || m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.b {
		for j := range m.b[i] {
			if m.b[i][j] != o.b[i][j] {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) SwapRows(a, b int) { m.b[a], m.b[b] = m.b[b], m.b[a] }

func (m *Matrix) SwapCols(a, b int) {
	for _, row := range m.b {
		row[a], row[b] = row[b], row[a]
	}
}

// XorRow adds row src into row dst.
func (m *Matrix) XorRow(dst, src int) {
	d, s := m.b[dst], m.b[src]
	for j := range d {
		d[j] = d[j] != s[j]
	}
}

// Sub copies the block [r0,r1) x [c0,c1).
func (m *Matrix) Sub(r0, r1, c0, c1 int) *Matrix {
	out := NewMatrix(r1-r0, c1-c0)
	for r := r0; r < r1; r++ {
		copy(out.b[r-r0], m.b[r][c0:c1])
	}
	return out
}

// SelectRows returns a matrix whose row i is row order[i] of m.
func (m *Matrix) SelectRows(order []int) *Matrix {
	out := &Matrix{rows: len(order), cols: m.cols, b: make([][]bool, len(order))}
	for i, r := range order {
		out.b[i] = append([]bool(nil), m.b[r]...)
	}
	return out
}

// Complement flips every entry.
func (m *Matrix) Complement() *Matrix {
	out := m.Clone()
	for _, row := range out.b {
		for j := range row {
			row[j] = !row[j]
		}
	}
	return out
}

// HStack concatenates matrices left to right. Row counts must match.
func HStack(ms ...*Matrix) *Matrix {
	if len(ms) == 0 {
		return NewMatrix(0, 0)
	}
	rows, cols := ms[0].rows, 0
	for _, m := range ms {
		if m.rows != rows {
			panic(fmt.Sprintf("ecc: hstack row mismatch %d != %d", m.rows, rows))
		}
		cols += m.cols
	}
	out := NewMatrix(rows, cols)
	for r := 0; r < rows; r++ {
		off := 0
		for _, m := range ms {
			copy(out.b[r][off:], m.b[r])
			off += m.cols
		}
	}
	return out
}

// VStack concatenates matrices top to bottom. Column counts must match.
func VStack(ms ...*Matrix) *Matrix {
	if len(ms) == 0 {
		return NewMatrix(0, 0)
	}
	cols, rows := ms[0].cols, 0
	for _, m := range ms {
		if m.cols != cols {
			panic(fmt.Sprintf("ecc: vstack column mismatch %d != %d", m.cols, cols))
		}
		rows += m.rows
	}
	out := NewMatrix(rows, cols)
	off := 0
	for _, m := range ms {
		for r := 0; r < m.rows; r++ {
			copy(out.b[off+r], m.b[r])
		}
		off += m.rows
	}
	return out
}

func (m *Matrix) String() string {
	var sb strings.Builder
	for r := 0; r < m.rows; r++ {
		sb.WriteByte('[')
		for c := 0; c < m.cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			if m.b[r][c] {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
