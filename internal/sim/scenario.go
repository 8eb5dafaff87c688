// Package sim drives controllers with seeded random traffic and checks every
// response against a mirror of the memory contents.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/eccmem/eccmem/ecc"
	"github.com/eccmem/eccmem/internal/faults"
	"github.com/eccmem/eccmem/memctl"
)

var ErrOutstanding = errors.New("sim: more than one outstanding response")

// Scenario holds the traffic and fault rates of one run.
type Scenario struct {
	Cycles       int
	Seed         int64
	RequestRate  float64
	ResponseRate float64
	WriteRate    float64
	// PartialRate is the share of writes that carry a random byte mask.
	// It only applies to controllers with partial writes enabled.
	PartialRate    float64
	StoredFlipRate float64
	ReadFlipRate   float64
}

func DefaultScenario() Scenario {
	return Scenario{
		Cycles:       1000,
		RequestRate:  0.75,
		ResponseRate: 0.66,
		WriteRate:    0.125,
		PartialRate:  0.5,
	}
}

func (sc Scenario) Validate() error {
	if sc.Cycles <= 0 {
		return fmt.Errorf("sim: cycles must be positive, got %d", sc.Cycles)
	}
	rates := []struct {
		name string
		v    float64
	}{
		{"request", sc.RequestRate},
		{"response", sc.ResponseRate},
		{"write", sc.WriteRate},
		{"partial", sc.PartialRate},
		{"stored flip", sc.StoredFlipRate},
		{"read flip", sc.ReadFlipRate},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("sim: %s rate %.3f outside [0,1]", r.name, r.v)
		}
	}
	return nil
}

// Driver produces the upstream side of each cycle. A request stays on the
// bus until accepted and an asserted response ready stays up until a
// response shows, the way a well-behaved initiator holds its handshakes.
type Driver struct {
	sc       Scenario
	rng      *rand.Rand
	addrBits int
	dataBits int
	partial  bool

	req      memctl.Request
	rspReady bool
	holdReq  bool
	holdRsp  bool
}

func NewDriver(sc Scenario, addrBits, dataBits int, partial bool, rng *rand.Rand) *Driver {
	return &Driver{sc: sc, rng: rng, addrBits: addrBits, dataBits: dataBits, partial: partial}
}

func randomWord(rng *rand.Rand, nbits int) ecc.Word {
	w := ecc.NewWord(nbits)
	for i := range w {
		w[i] = rng.Uint64()
	}
	if r := nbits % 64; r != 0 {
		w[len(w)-1] &= 1<<uint(r) - 1
	}
	return w
}

// Next returns the request and response ready line for this cycle.
func (d *Driver) Next() (memctl.Request, bool) {
	if !d.holdReq {
		full := memctl.FullMask(d.dataBits)
		d.req = memctl.Request{
			Valid:     d.rng.Float64() < d.sc.RequestRate,
			Addr:      uint64(d.rng.Int63n(1 << uint(d.addrBits))),
			WriteEn:   d.rng.Float64() < d.sc.WriteRate,
			WriteData: randomWord(d.rng, d.dataBits),
			WriteMask: full,
		}
		if d.partial && d.req.WriteEn && d.rng.Float64() < d.sc.PartialRate {
			d.req.WriteMask = d.rng.Uint64() & full
		}
		d.holdReq = d.req.Valid
	}
	if !d.holdRsp {
		d.rspReady = d.rng.Float64() < d.sc.ResponseRate
		d.holdRsp = d.rspReady
	}
	return d.req, d.rspReady
}

// Observe releases held handshakes once they completed.
func (d *Driver) Observe(c memctl.Cycle) {
	if c.ReqFire {
		d.holdReq = false
	}
	if c.Response.Valid {
		d.holdRsp = false
	}
}

// Setup is the controller under test.
type Setup struct {
	Harness       *memctl.Harness
	Memory        *memctl.SRAM
	AddrBits      int
	DataBits      int
	PartialWrites bool
}

// Run drives s for sc.Cycles cycles. It stops early with ErrOutstanding when
// the response invariant breaks, or with the context error.
func Run(ctx context.Context, sc Scenario, s Setup) (*Scoreboard, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(sc.Seed))
	drv := NewDriver(sc, s.AddrBits, s.DataBits, s.PartialWrites, rng)
	board := NewScoreboard(s.AddrBits, s.DataBits)
	var inj *faults.Injector
	if sc.StoredFlipRate > 0 || sc.ReadFlipRate > 0 {
		inj = faults.NewInjector(sc.StoredFlipRate, sc.ReadFlipRate, rand.New(rand.NewSource(sc.Seed+1)))
	}
	for i := 0; i < sc.Cycles; i++ {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return board, err
			}
		}
		if inj != nil {
			inj.Cycle(s.Memory)
		}
		req, rspReady := drv.Next()
		cyc := s.Harness.Step(req, rspReady)
		drv.Observe(cyc)
		if err := board.Observe(req, cyc); err != nil {
			return board, err
		}
	}
	if inj != nil {
		board.StoredFlips, board.ReadFlips = inj.StoredFlips, inj.ReadFlips
		s.Memory.SetReadFlips(nil)
	}
	return board, nil
}

// Prepare builds the named controller over a fresh SRAM sized for code.
func Prepare(code *ecc.Code, spec memctl.Spec, stats *memctl.Stats) (Setup, *memctl.Unit, error) {
	mem := memctl.NewSRAM(spec.AddrBits, code.TotalBits())
	u, err := memctl.Build(spec, code, mem)
	if err != nil {
		return Setup{}, nil, err
	}
	return Setup{
		Harness:       memctl.NewHarness(u, stats),
		Memory:        mem,
		AddrBits:      spec.AddrBits,
		DataBits:      code.DataBits(),
		PartialWrites: spec.PartialWrites,
	}, u, nil
}
