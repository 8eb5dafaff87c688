package ecc

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/francoispqt/gojay"
)

// TableVersion is written into every Table.
const TableVersion = 1

var (
	// ErrTableInvalid means a decoded table does not describe its code.
	ErrTableInvalid = errors.New("ecc: invalid code table")
	// ErrTableChecksum means the matrix rows do not match the stored checksums.
	ErrTableChecksum = errors.New("ecc: code table checksum mismatch")
)

// Table is the persisted form of a generated code. Matrix rows are stored as
// hex of little-endian uint64 words.
type Table struct {
	Version     int
	Kind        string
	DataBits    int
	ParityBits  int
	WordsPerRow int
	HRowsHex    []string
	GRowsHex    []string
	Correctable []ErrorPattern
	Detectable  []ErrorPattern
	CRC32       uint32
	SHA256      string
}

// NewTable snapshots a ready code.
func NewTable(c *Code) (*Table, error) {
	h, err := c.ParityCheck()
	if err != nil {
		return nil, err
	}
	g, err := c.Generator()
	if err != nil {
		return nil, err
	}
	t := &Table{
		Version:     TableVersion,
		Kind:        c.Kind().String(),
		DataBits:    c.DataBits(),
		ParityBits:  c.ParityBits(),
		WordsPerRow: wordsFor(c.TotalBits()),
		Correctable: c.Correctable(),
		Detectable:  c.Detectable(),
	}
	t.HRowsHex, t.GRowsHex, t.CRC32, t.SHA256 = serializeRows(matrixRows(h), matrixRows(g), t.WordsPerRow)
	return t, nil
}

func matrixRows(m *Matrix) []Word {
	rows := make([]Word, m.Rows())
	for r := range rows {
		rows[r] = m.RowWord(r)
	}
	return rows
}

// serializeRows hex-encodes H then G and checksums both in that order.
func serializeRows(h, g []Word, wordsPerRow int) (hHex, gHex []string, crc uint32, sha string) {
	cs := crc32.NewIEEE()
	sh := sha256.New()
	buf := make([]byte, wordsPerRow*8)
	enc := func(rows []Word) []string {
		out := make([]string, len(rows))
		for i, row := range rows {
			for w := 0; w < wordsPerRow; w++ {
				var v uint64
				if w < len(row) {
					v = row[w]
				}
				binary.LittleEndian.PutUint64(buf[w*8:], v)
			}
			cs.Write(buf)
			sh.Write(buf)
			out[i] = hex.EncodeToString(buf)
		}
		return out
	}
	hHex = enc(h)
	gHex = enc(g)
	return hHex, gHex, cs.Sum32(), hex.EncodeToString(sh.Sum(nil))
}

func parseRows(rowsHex []string, wordsPerRow int) ([]Word, error) {
	rows := make([]Word, len(rowsHex))
	for i, hx := range rowsHex {
		b, err := hex.DecodeString(hx)
		if err != nil {
			return nil, fmt.Errorf("decode hex row %d: %w", i, err)
		}
		if len(b) != wordsPerRow*8 {
			return nil, fmt.Errorf("row %d: expected %d bytes, got %d", i, wordsPerRow*8, len(b))
		}
		row := make(Word, wordsPerRow)
		for w := range row {
			row[w] = binary.LittleEndian.Uint64(b[w*8:])
		}
		rows[i] = row
	}
	return rows, nil
}

func rowsToMatrix(rows []Word, cols int) *Matrix {
	m := NewMatrix(len(rows), cols)
	for r, row := range rows {
		for c := 0; c < cols; c++ {
			m.b[r][c] = row.Bit(c)
		}
	}
	return m
}

// Matrices parses and verifies the stored rows.
func (t *Table) Matrices() (h, g *Matrix, err error) {
	total := t.DataBits + t.ParityBits
	if t.Version != TableVersion || t.DataBits <= 0 || t.ParityBits < 0 {
		return nil, nil, fmt.Errorf("%w: version %d, %d data bits, %d parity bits", ErrTableInvalid, t.Version, t.DataBits, t.ParityBits)
	}
	if t.WordsPerRow != wordsFor(total) {
		return nil, nil, fmt.Errorf("%w: %d words per row for %d bits", ErrTableInvalid, t.WordsPerRow, total)
	}
	if len(t.HRowsHex) != t.ParityBits || len(t.GRowsHex) != t.DataBits {
		return nil, nil, fmt.Errorf("%w: %d H rows, %d G rows", ErrTableInvalid, len(t.HRowsHex), len(t.GRowsHex))
	}
	hRows, err := parseRows(t.HRowsHex, t.WordsPerRow)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrTableInvalid, err)
	}
	gRows, err := parseRows(t.GRowsHex, t.WordsPerRow)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrTableInvalid, err)
	}
	_, _, crc, sha := serializeRows(hRows, gRows, t.WordsPerRow)
	if crc != t.CRC32 || sha != t.SHA256 {
		return nil, nil, ErrTableChecksum
	}
	return rowsToMatrix(hRows, total), rowsToMatrix(gRows, total), nil
}

// Code rebuilds a ready code from the table. The matrices must pass the
// orthogonality check.
func (t *Table) Code() (*Code, error) {
	kind, err := ParseKind(t.Kind)
	if err != nil {
		return nil, err
	}
	c, err := New(kind, t.DataBits)
	if err != nil {
		return nil, err
	}
	if c.ParityBits() != t.ParityBits {
		return nil, fmt.Errorf("%w: %s needs %d parity bits, table has %d", ErrTableInvalid, c, c.ParityBits(), t.ParityBits)
	}
	h, g, err := t.Matrices()
	if err != nil {
		return nil, err
	}
	if err := c.Install(h, g, t.Detectable); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalJSONObject implements gojay.MarshalerJSONObject.
func (t *Table) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("version", t.Version)
	enc.StringKey("kind", t.Kind)
	enc.IntKey("dataBits", t.DataBits)
	enc.IntKey("parityBits", t.ParityBits)
	enc.IntKey("wordsPerRow", t.WordsPerRow)
	enc.SliceStringKey("hRowsHex", t.HRowsHex)
	enc.SliceStringKey("gRowsHex", t.GRowsHex)
	enc.ArrayKey("correctable", patternList(t.Correctable))
	enc.ArrayKey("detectable", patternList(t.Detectable))
	enc.Uint32Key("crc32", t.CRC32)
	enc.StringKey("sha256", t.SHA256)
}

func (t *Table) IsNil() bool { return t == nil }

// UnmarshalJSONObject implements gojay.UnmarshalerJSONObject.
func (t *Table) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "version":
		return dec.Int(&t.Version)
	case "kind":
		return dec.String(&t.Kind)
	case "dataBits":
		return dec.Int(&t.DataBits)
	case "parityBits":
		return dec.Int(&t.ParityBits)
	case "wordsPerRow":
		return dec.Int(&t.WordsPerRow)
	case "hRowsHex":
		return dec.SliceString(&t.HRowsHex)
	case "gRowsHex":
		return dec.SliceString(&t.GRowsHex)
	case "correctable":
		return dec.Array((*patternList)(&t.Correctable))
	case "detectable":
		return dec.Array((*patternList)(&t.Detectable))
	case "crc32":
		return dec.Uint32(&t.CRC32)
	case "sha256":
		return dec.String(&t.SHA256)
	}
	return nil
}

func (t *Table) NKeys() int { return 11 }

// patternList is a JSON array of integer arrays.
type patternList []ErrorPattern

func (p patternList) MarshalJSONArray(enc *gojay.Encoder) {
	for _, e := range p {
		enc.SliceInt(e)
	}
}

func (p patternList) IsNil() bool { return p == nil }

func (p *patternList) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var e []int
	if err := dec.SliceInt(&e); err != nil {
		return err
	}
	*p = append(*p, ErrorPattern(e))
	return nil
}

// MarshalTable encodes t as JSON.
func MarshalTable(t *Table) ([]byte, error) {
	return gojay.MarshalJSONObject(t)
}

// UnmarshalTable decodes a JSON table. It does not verify the matrices.
func UnmarshalTable(b []byte) (*Table, error) {
	var t Table
	if err := gojay.UnmarshalJSONObject(b, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableInvalid, err)
	}
	return &t, nil
}
