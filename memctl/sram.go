package memctl

import (
	"fmt"

	"github.com/eccmem/eccmem/ecc"
)

// Memory is the array a leaf controller drives.
type Memory interface {
	// ReadData is the registered read port output as seen by the controller.
	ReadData() ecc.Word
	// Clock applies one clock edge with the given port inputs.
	Clock(p SRAMPort)
}

// SRAM is a single-port synchronous memory with a non-transparent read
// port: a cycle that reads and writes the same address returns the old
// contents. The read register holds its value while ClkEn is low.
type SRAM struct {
	width int
	words []ecc.Word
	rd    ecc.Word
	flips ecc.Word

	enabled, writes uint64
	last            SRAMPort
}

// NewSRAM returns a zeroed memory of 2^addrBits words of width bits.
func NewSRAM(addrBits, width int) *SRAM {
	s := &SRAM{width: width, words: make([]ecc.Word, 1<<uint(addrBits)), rd: ecc.NewWord(width)}
	for i := range s.words {
		s.words[i] = ecc.NewWord(width)
	}
	return s
}

func (s *SRAM) Depth() int { return len(s.words) }
func (s *SRAM) Width() int { return s.width }

func (s *SRAM) index(addr uint64) int { return int(addr % uint64(len(s.words))) }

func (s *SRAM) ReadData() ecc.Word {
	if s.flips == nil {
		return s.rd.Clone()
	}
	return s.rd.Xor(s.flips)
}

func (s *SRAM) Clock(p SRAMPort) {
	s.last = p
	if !p.ClkEn {
		return
	}
	i := s.index(p.Addr)
	s.rd = s.words[i].Clone()
	s.enabled++
	if p.WriteEn {
		s.words[i] = p.WriteData.Clone()
		s.writes++
	}
}

// SetReadFlips XORs mask onto the read port output until cleared with nil.
// The stored words are not touched.
func (s *SRAM) SetReadFlips(mask ecc.Word) {
	if mask == nil || mask.IsZero() {
		s.flips = nil
		return
	}
	s.flips = mask.Clone()
}

// Corrupt flips the stored bits of one word.
func (s *SRAM) Corrupt(addr uint64, mask ecc.Word) {
	i := s.index(addr)
	s.words[i] = s.words[i].Xor(mask)
}

// FlipBit flips one stored bit.
func (s *SRAM) FlipBit(addr uint64, bit int) error {
	if bit < 0 || bit >= s.width {
		return fmt.Errorf("memctl: bit %d outside a %d-bit word", bit, s.width)
	}
	s.words[s.index(addr)].FlipBit(bit)
	return nil
}

// Peek returns a copy of a stored codeword.
func (s *SRAM) Peek(addr uint64) ecc.Word { return s.words[s.index(addr)].Clone() }

// Poke stores a raw codeword without touching the port.
func (s *SRAM) Poke(addr uint64, cw ecc.Word) { s.words[s.index(addr)] = cw.Clone() }

// Accesses returns the number of clock-enabled cycles and, of those, writes.
func (s *SRAM) Accesses() (enabled, writes uint64) { return s.enabled, s.writes }

// LastPort returns the port inputs of the most recent clock edge.
func (s *SRAM) LastPort() SRAMPort { return s.last }
