// Package memctl models error-correcting memory controllers as cycle-stepped
// synchronous logic. Every controller exposes the same upstream
// request/response handshake and drives a single SRAM port with one cycle of
// read latency.
//
// A cycle is evaluated in two phases. First the combinational outputs
// (Response, Ready, Debug) are sampled; they depend only on registered state
// and the inputs of the current cycle. Then Tick applies the clock edge.
package memctl

import "github.com/eccmem/eccmem/ecc"

// Request is the upstream request bus. A request fires when Valid and the
// controller's ready line are both high.
type Request struct {
	Valid     bool
	Addr      uint64
	WriteEn   bool
	WriteData ecc.Word
	// WriteMask has one bit per byte of WriteData. Only the partial write
	// wrapper reads it; every other controller writes full words.
	WriteMask   uint64
	DebugIgnore bool
}

// Response is the registered upstream response bus.
type Response struct {
	Valid         bool
	ReadData      ecc.Word
	Error         bool
	Uncorrectable bool
}

// DebugInfo mirrors the decoder findings on the current read data.
type DebugInfo struct {
	Error         bool
	Uncorrectable bool
	Flips         ecc.Word
	Ignore        bool // registered from Request.DebugIgnore at accept
}

// SRAMPort is the controller side of the memory port for one cycle.
// ClkEn gates both the read latch and the write.
type SRAMPort struct {
	ClkEn     bool
	Addr      uint64
	WriteEn   bool
	WriteData ecc.Word
}

// FullMask returns the write mask selecting every byte of a dataBits word.
func FullMask(dataBits int) uint64 {
	n := dataBits / 8
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}
