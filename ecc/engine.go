package ecc

import (
	"fmt"
	"math/bits"
)

// Encoder maps data words to codewords with a generator matrix.
type Encoder struct {
	dataBits, totalBits int
	cols                []Word // generator columns, one per codeword bit
}

func NewEncoder(c *Code) (*Encoder, error) {
	g, err := c.Generator()
	if err != nil {
		return nil, err
	}
	e := &Encoder{dataBits: c.DataBits(), totalBits: c.TotalBits(), cols: make([]Word, g.Cols())}
	for j := range e.cols {
		e.cols[j] = g.ColumnWord(j)
	}
	return e, nil
}

func (e *Encoder) DataBits() int { return e.dataBits }
func (e *Encoder) TotalBits() int { return e.totalBits }

// Encode sets codeword bit j to the parity of data AND column j of G.
func (e *Encoder) Encode(data Word) Word {
	out := NewWord(e.totalBits)
	for j, col := range e.cols {
		if data.AndParity(col) {
			out.SetBit(j, true)
		}
	}
	return out
}

// Decoded is the combinational result of decoding one codeword.
type Decoded struct {
	Corrected     Word // codeword after flips
	Data          Word
	Flips         Word
	Syndrome      uint64
	Error         bool // syndrome is non-zero
	Uncorrectable bool
}

// FlipCalculator knows, per codeword bit, the syndromes that flip it.
type FlipCalculator struct {
	syns [][]uint64
}

func NewFlipCalculator(h *Matrix, correctable []ErrorPattern) *FlipCalculator {
	f := &FlipCalculator{syns: make([][]uint64, h.Cols())}
	for _, p := range correctable {
		s := patternSyndrome(h, p)
		for _, bit := range p {
			f.syns[bit] = append(f.syns[bit], s)
		}
	}
	return f
}

// Flips returns the bits to invert for syndrome s.
func (f *FlipCalculator) Flips(s uint64) Word {
	out := NewWord(len(f.syns))
	for bit, list := range f.syns {
		for _, v := range list {
			if v == s {
				out.SetBit(bit, true)
				break
			}
		}
	}
	return out
}

// FanIn is the largest number of syndromes compared for any single bit.
func (f *FlipCalculator) FanIn() int {
	n := 0
	for _, list := range f.syns {
		if len(list) > n {
			n = len(list)
		}
	}
	return n
}

// ErrorCalculator decides whether a non-zero syndrome is uncorrectable.
type ErrorCalculator func(syndrome uint64, flips Word) bool

// DefaultErrorCalculator flags errors no correctable pattern explains.
func DefaultErrorCalculator(syndrome uint64, flips Word) bool {
	return syndrome != 0 && flips.IsZero()
}

// HsiaoErrorCalculator flags even-weight syndromes; every column of a Hsiao
// code has odd weight so any even syndrome is a multi-bit error.
func HsiaoErrorCalculator(syndrome uint64, _ Word) bool {
	return syndrome != 0 && bits.OnesCount64(syndrome)&1 == 0
}

// ErrorCalculatorFor returns the uncorrectable policy of a kind.
func ErrorCalculatorFor(k Kind) ErrorCalculator {
	switch k {
	case KindHsiao, KindHsiaoConstructed:
		return HsiaoErrorCalculator
	}
	return DefaultErrorCalculator
}

// Decoder computes syndromes, corrects and extracts data.
type Decoder struct {
	dataBits, totalBits int
	rows                []Word // packed H rows
	flips               *FlipCalculator
	uncorrectable       ErrorCalculator
	dataCols            []int // codeword bit carrying data bit b
}

func NewDecoder(c *Code) (*Decoder, error) {
	h, err := c.ParityCheck()
	if err != nil {
		return nil, err
	}
	g, err := c.Generator()
	if err != nil {
		return nil, err
	}
	if h.Rows() > 64 {
		return nil, fmt.Errorf("ecc: %s: %d parity bits do not fit a 64-bit syndrome", c, h.Rows())
	}
	d := &Decoder{
		dataBits:      c.DataBits(),
		totalBits:     c.TotalBits(),
		rows:          make([]Word, h.Rows()),
		flips:         NewFlipCalculator(h, c.Correctable()),
		uncorrectable: ErrorCalculatorFor(c.Kind()),
		dataCols:      make([]int, c.DataBits()),
	}
	for r := range d.rows {
		d.rows[r] = h.RowWord(r)
	}
	for b := range d.dataCols {
		d.dataCols[b] = unitColumn(g, b)
		if d.dataCols[b] < 0 {
			return nil, fmt.Errorf("%w: data bit %d of %s", ErrMapping, b, c)
		}
	}
	return d, nil
}

// unitColumn returns the first column of g equal to e_b, or -1.
func unitColumn(g *Matrix, b int) int {
	for c := 0; c < g.Cols(); c++ {
		if !g.At(b, c) || g.ColumnWeight(c) != 1 {
			continue
		}
		return c
	}
	return -1
}

func (d *Decoder) DataBits() int { return d.dataBits }
func (d *Decoder) TotalBits() int { return d.totalBits }

// FanIn exposes the flip calculator fan-in.
func (d *Decoder) FanIn() int { return d.flips.FanIn() }

func (d *Decoder) Syndrome(cw Word) uint64 {
	var s uint64
	for r, row := range d.rows {
		if cw.AndParity(row) {
			s |= 1 << uint(r)
		}
	}
	return s
}

func (d *Decoder) Decode(cw Word) Decoded {
	out := Decoded{Flips: NewWord(d.totalBits)}
	if len(d.rows) > 0 {
		out.Syndrome = d.Syndrome(cw)
		out.Error = out.Syndrome != 0
		if out.Error {
			out.Flips = d.flips.Flips(out.Syndrome)
			out.Uncorrectable = d.uncorrectable(out.Syndrome, out.Flips)
		}
	}
	out.Corrected = cw.Xor(out.Flips)
	out.Data = NewWord(d.dataBits)
	for b, c := range d.dataCols {
		if out.Corrected.Bit(c) {
			out.Data.SetBit(b, true)
		}
	}
	return out
}
