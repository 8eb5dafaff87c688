package memctl

import (
	"fmt"

	"github.com/eccmem/eccmem/ecc"
)

// Controller is the upstream face shared by controllers and wrappers.
type Controller interface {
	// Response is the registered response. It depends on state only.
	Response() Response
	// Ready is the combinational request ready line for this cycle.
	Ready(req Request, rspReady bool) bool
	// Tick applies one clock edge.
	Tick(req Request, rspReady bool)
	// Debug mirrors the decoder on the current read data.
	Debug() DebugInfo
}

// core is the response buffer and codec shared by the leaf controllers.
type core struct {
	enc *ecc.Encoder
	dec *ecc.Decoder
	mem Memory

	rspValid bool
	ignore   bool
}

func newCore(code *ecc.Code, mem Memory) (core, error) {
	enc, err := ecc.NewEncoder(code)
	if err != nil {
		return core{}, fmt.Errorf("memctl: encoder for %s: %w", code, err)
	}
	dec, err := ecc.NewDecoder(code)
	if err != nil {
		return core{}, fmt.Errorf("memctl: decoder for %s: %w", code, err)
	}
	return core{enc: enc, dec: dec, mem: mem}, nil
}

func (c *core) decoded() ecc.Decoded { return c.dec.Decode(c.mem.ReadData()) }

func (c *core) Response() Response {
	if !c.rspValid {
		return Response{}
	}
	d := c.decoded()
	return Response{Valid: true, ReadData: d.Data, Error: d.Error, Uncorrectable: d.Uncorrectable}
}

func (c *core) Debug() DebugInfo {
	d := c.decoded()
	return DebugInfo{Error: d.Error, Uncorrectable: d.Uncorrectable, Flips: d.Flips, Ignore: c.ignore}
}

// bufferFree is the ready line of the response buffer: it can take a new
// request when empty or when the held response drains this cycle.
func (c *core) bufferFree(rspReady bool) bool { return rspReady || !c.rspValid }

func (c *core) port(req Request, fire bool) SRAMPort {
	p := SRAMPort{ClkEn: fire, Addr: req.Addr, WriteEn: req.WriteEn}
	if fire && req.WriteEn {
		p.WriteData = c.enc.Encode(req.WriteData)
	}
	return p
}

// latch updates the response buffer. An accepted request always yields a
// response next cycle; the buffer only empties when its response drains and
// nothing new was accepted.
func (c *core) latch(req Request, fire, rspReady bool) {
	switch {
	case fire:
		c.rspValid = true
		c.ignore = req.DebugIgnore
	case c.rspValid && rspReady:
		c.rspValid = false
	}
}

// Basic encodes writes and decodes reads. Error flags pass through
// untouched; nothing is repaired.
type Basic struct {
	core
}

func NewBasic(code *ecc.Code, mem Memory) (*Basic, error) {
	c, err := newCore(code, mem)
	if err != nil {
		return nil, err
	}
	return &Basic{core: c}, nil
}

func (b *Basic) Ready(_ Request, rspReady bool) bool { return b.bufferFree(rspReady) }

func (b *Basic) Tick(req Request, rspReady bool) {
	fire := req.Valid && b.Ready(req, rspReady)
	b.mem.Clock(b.port(req, fire))
	b.latch(req, fire, rspReady)
}

// WriteBack behaves like Basic and additionally rewrites the corrected
// codeword when a read comes back with a correctable error. The rewrite
// takes the SRAM port for one cycle, during which no request is accepted.
// It produces no upstream response.
type WriteBack struct {
	core

	pending  bool // the previous accepted request was a read
	lastAddr uint64
	repairs  uint64
}

func NewWriteBack(code *ecc.Code, mem Memory) (*WriteBack, error) {
	c, err := newCore(code, mem)
	if err != nil {
		return nil, err
	}
	return &WriteBack{core: c}, nil
}

func (w *WriteBack) repair() (ecc.Decoded, bool) {
	if !w.pending {
		return ecc.Decoded{}, false
	}
	d := w.decoded()
	return d, d.Error && !d.Uncorrectable
}

func (w *WriteBack) Ready(_ Request, rspReady bool) bool {
	if _, ok := w.repair(); ok {
		return false
	}
	return w.bufferFree(rspReady)
}

func (w *WriteBack) Tick(req Request, rspReady bool) {
	d, repairing := w.repair()
	fire := req.Valid && !repairing && w.bufferFree(rspReady)
	p := w.port(req, fire)
	if repairing {
		p = SRAMPort{ClkEn: true, Addr: w.lastAddr, WriteEn: true, WriteData: d.Corrected}
		w.repairs++
	}
	w.mem.Clock(p)
	w.latch(req, fire, rspReady)
	w.pending = fire && !req.WriteEn
	w.lastAddr = req.Addr
}

// Repairs counts write-back cycles since construction.
func (w *WriteBack) Repairs() uint64 { return w.repairs }
