package ecc

import (
	"fmt"
	"math/bits"
	"strings"
)

// Word is a packed bit vector, LSB-first within each uint64.
// Bit i lives in word i>>6 at position i&63. Widths are carried by the caller;
// missing high words read as zero.
type Word []uint64

func wordsFor(nbits int) int { return (nbits + 63) / 64 }

// NewWord returns a zero word able to hold nbits.
func NewWord(nbits int) Word { return make(Word, wordsFor(nbits)) }

// WordFromUint64 packs the low nbits of v.
func WordFromUint64(v uint64, nbits int) Word {
	w := NewWord(nbits)
	if len(w) == 0 {
		return w
	}
	if nbits < 64 {
		v &= (1 << uint(nbits)) - 1
	}
	w[0] = v
	return w
}

// WordFromBools packs a bool slice.
func WordFromBools(v []bool) Word {
	out := NewWord(len(v))
	for i, b := range v {
		if b {
			out[i>>6] |= 1 << (uint(i) & 63)
		}
	}
	return out
}

func (w Word) Bit(i int) bool {
	if i>>6 >= len(w) {
		return false
	}
	return w[i>>6]&(1<<(uint(i)&63)) != 0
}

func (w Word) SetBit(i int, v bool) {
	if v {
		w[i>>6] |= 1 << (uint(i) & 63)
	} else {
		w[i>>6] &^= 1 << (uint(i) & 63)
	}
}

func (w Word) FlipBit(i int) { w[i>>6] ^= 1 << (uint(i) & 63) }

func (w Word) Clone() Word { return append(Word(nil), w...) }

// Byte returns bits [8i, 8i+8).
func (w Word) Byte(i int) byte {
	if i>>3 >= len(w) {
		return 0
	}
	return byte(w[i>>3] >> (uint(i&7) * 8))
}

func (w Word) SetByte(i int, b byte) {
	shift := uint(i&7) * 8
	w[i>>3] = w[i>>3]&^(0xFF<<shift) | uint64(b)<<shift
}

// Xor returns w ^ o with the length of the longer operand.
func (w Word) Xor(o Word) Word {
	a, b := w, o
	if len(b) > len(a) {
		a, b = b, a
	}
	out := a.Clone()
	for i := range b {
		out[i] ^= b[i]
	}
	return out
}

// AndParity reports the parity of popcount(w & o).
func (w Word) AndParity(o Word) bool {
	n := len(w)
	if len(o) < n {
		n = len(o)
	}
	var acc uint64
	for i := 0; i < n; i++ {
		acc ^= w[i] & o[i]
	}
	return bits.OnesCount64(acc)&1 == 1
}

func (w Word) IsZero() bool {
	for _, x := range w {
		if x != 0 {
			return false
		}
	}
	return true
}

func (w Word) OnesCount() int {
	n := 0
	for _, x := range w {
		n += bits.OnesCount64(x)
	}
	return n
}

func (w Word) Equal(o Word) bool {
	n := len(w)
	if len(o) > n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(w) {
			a = w[i]
		}
		if i < len(o) {
			b = o[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// Uint64 returns the low 64 bits.
func (w Word) Uint64() uint64 {
	if len(w) == 0 {
		return 0
	}
	return w[0]
}

// Format renders the low nbits as hex, most significant word first.
func (w Word) Format(nbits int) string {
	n := wordsFor(nbits)
	if n == 0 {
		return "0x0"
	}
	var sb strings.Builder
	sb.WriteString("0x")
	for i := n - 1; i >= 0; i-- {
		var x uint64
		if i < len(w) {
			x = w[i]
		}
		if i == n-1 {
			fmt.Fprintf(&sb, "%x", x)
		} else {
			fmt.Fprintf(&sb, "%016x", x)
		}
	}
	return sb.String()
}
