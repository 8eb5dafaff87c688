// Package faults injects random bit flips into memory words.
package faults

import (
	"math/rand"

	"github.com/eccmem/eccmem/ecc"
)

// Bernoulli fires with probability p per draw.
type Bernoulli struct {
	p   float64
	rng *rand.Rand
}

func New(p float64, rng *rand.Rand) *Bernoulli { return &Bernoulli{p: p, rng: rng} }

func (b *Bernoulli) Hit() bool {
	if b.p <= 0 {
		return false
	}
	if b.p >= 1 {
		return true
	}
	return b.rng.Float64() < b.p
}

// Mask returns a one-hot mask over width bits when the draw hits, nil otherwise.
func (b *Bernoulli) Mask(width int) ecc.Word {
	if width <= 0 || !b.Hit() {
		return nil
	}
	m := ecc.NewWord(width)
	m.SetBit(b.rng.Intn(width), true)
	return m
}

// Target is the subset of the SRAM model a flipper drives.
type Target interface {
	Depth() int
	Width() int
	Corrupt(addr uint64, mask ecc.Word)
	SetReadFlips(mask ecc.Word)
}

// Injector applies one fault draw per cycle to a memory.
type Injector struct {
	stored *Bernoulli // flips a bit of a random stored word
	read   *Bernoulli // flips a bit on the read port for one cycle
	rng    *rand.Rand

	StoredFlips, ReadFlips uint64
}

func NewInjector(storedRate, readRate float64, rng *rand.Rand) *Injector {
	return &Injector{stored: New(storedRate, rng), read: New(readRate, rng), rng: rng}
}

// Cycle draws this cycle's faults and applies them to t.
func (in *Injector) Cycle(t Target) {
	if m := in.stored.Mask(t.Width()); m != nil {
		t.Corrupt(uint64(in.rng.Intn(t.Depth())), m)
		in.StoredFlips++
	}
	m := in.read.Mask(t.Width())
	if m != nil {
		in.ReadFlips++
	}
	t.SetReadFlips(m)
}
