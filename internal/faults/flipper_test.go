package faults

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eccmem/eccmem/ecc"
)

func TestBernoulliEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	never := New(0, rng)
	always := New(1, rng)
	for i := 0; i < 100; i++ {
		assert.False(t, never.Hit())
		assert.True(t, always.Hit())
	}
	assert.Nil(t, never.Mask(8))
	assert.Nil(t, always.Mask(0))
}

func TestBernoulliRate(t *testing.T) {
	b := New(0.25, rand.New(rand.NewSource(7)))
	hits := 0
	for i := 0; i < 10000; i++ {
		if b.Hit() {
			hits++
		}
	}
	assert.InDelta(t, 2500, hits, 150)
}

func TestMaskIsOneHot(t *testing.T) {
	b := New(1, rand.New(rand.NewSource(3)))
	for i := 0; i < 200; i++ {
		m := b.Mask(72)
		assert.Equal(t, 1, m.OnesCount())
	}
}

type fakeTarget struct {
	corrupted map[uint64]ecc.Word
	flips     ecc.Word
}

func (f *fakeTarget) Depth() int { return 4 }
func (f *fakeTarget) Width() int { return 13 }
func (f *fakeTarget) Corrupt(addr uint64, m ecc.Word) { f.corrupted[addr] = m }
func (f *fakeTarget) SetReadFlips(m ecc.Word) { f.flips = m }

func TestInjector(t *testing.T) {
	target := &fakeTarget{corrupted: map[uint64]ecc.Word{}}
	in := NewInjector(1, 0, rand.New(rand.NewSource(5)))
	in.Cycle(target)
	assert.Len(t, target.corrupted, 1)
	assert.Nil(t, target.flips)
	assert.Equal(t, uint64(1), in.StoredFlips)

	in = NewInjector(0, 1, rand.New(rand.NewSource(5)))
	in.Cycle(target)
	assert.Equal(t, 1, target.flips.OnesCount())
	assert.Equal(t, uint64(1), in.ReadFlips)
}
