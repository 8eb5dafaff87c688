package memctl

import (
	"errors"
	"fmt"

	"github.com/eccmem/eccmem/ecc"
)

var ErrTimeout = errors.New("memctl: handshake timed out")

// DefaultMaxWait bounds every handshake helper.
const DefaultMaxWait = 1024

// Cycle is what the upstream side saw during one clock cycle.
type Cycle struct {
	N        uint64
	Response Response
	Debug    DebugInfo
	ReqFire  bool
	RspFire  bool
}

// Harness drives a controller one cycle at a time from the upstream side.
type Harness struct {
	c       Controller
	stats   *Stats
	cycle   uint64
	MaxWait int
}

func NewHarness(c Controller, stats *Stats) *Harness {
	return &Harness{c: c, stats: stats, MaxWait: DefaultMaxWait}
}

func (h *Harness) Controller() Controller { return h.c }

// Cycles returns the number of clock edges applied so far.
func (h *Harness) Cycles() uint64 { return h.cycle }

// Step samples the combinational outputs for req and rspReady, then clocks.
func (h *Harness) Step(req Request, rspReady bool) Cycle {
	out := Cycle{N: h.cycle, Response: h.c.Response(), Debug: h.c.Debug()}
	out.ReqFire = req.Valid && h.c.Ready(req, rspReady)
	out.RspFire = out.Response.Valid && rspReady
	if h.stats != nil {
		if out.RspFire {
			h.stats.response(out.Debug)
		}
		if out.ReqFire {
			h.stats.request(req)
		}
		h.stats.Cycles.Inc()
	}
	h.c.Tick(req, rspReady)
	h.cycle++
	return out
}

// Idle clocks n cycles with no request and the response side ready.
func (h *Harness) Idle(n int) {
	for i := 0; i < n; i++ {
		h.Step(Request{}, true)
	}
}

// Do issues req, waits for its response and returns it.
func (h *Harness) Do(req Request) (Response, error) {
	req.Valid = true
	accepted := false
	for i := 0; i < h.MaxWait; i++ {
		cyc := h.Step(req, true)
		if cyc.ReqFire {
			accepted = true
			break
		}
	}
	if !accepted {
		return Response{}, fmt.Errorf("%w: request to %#x not accepted in %d cycles", ErrTimeout, req.Addr, h.MaxWait)
	}
	for i := 0; i < h.MaxWait; i++ {
		cyc := h.Step(Request{}, true)
		if cyc.RspFire {
			return cyc.Response, nil
		}
	}
	return Response{}, fmt.Errorf("%w: no response from %#x in %d cycles", ErrTimeout, req.Addr, h.MaxWait)
}

// Read performs a full-word read.
func (h *Harness) Read(addr uint64) (Response, error) {
	return h.Do(Request{Addr: addr})
}

// Write performs a full-word write of data.
func (h *Harness) Write(addr uint64, data ecc.Word, dataBits int) error {
	_, err := h.Do(Request{Addr: addr, WriteEn: true, WriteData: data, WriteMask: FullMask(dataBits)})
	return err
}

// WriteMasked writes only the bytes selected by mask.
func (h *Harness) WriteMasked(addr uint64, data ecc.Word, mask uint64) error {
	_, err := h.Do(Request{Addr: addr, WriteEn: true, WriteData: data, WriteMask: mask})
	return err
}
