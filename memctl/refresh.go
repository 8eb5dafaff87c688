package memctl

import "fmt"

// RefreshConfig controls background read injection.
type RefreshConfig struct {
	// CounterWidth sets the refresh period to 2^CounterWidth cycles.
	// Zero refreshes whenever the bus allows.
	CounterWidth int
	// Force blocks upstream requests while a refresh is due. Without it
	// refresh waits for an idle upstream cycle and may starve.
	Force bool
	// The refresh address is (counter & AddressAnd) | AddressOr. Every bit
	// i >= 1 set in AddressSext is then replaced by bit i-1, lowest first.
	// A zero AddressAnd keeps every counter bit.
	AddressAnd  uint64
	AddressOr   uint64
	AddressSext uint64
}

// DefaultRefreshConfig refreshes every 128 cycles across the whole array.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{CounterWidth: 7}
}

// Refresh injects periodic reads into a downstream controller and swallows
// their responses. Combined with WriteBack this scrubs correctable errors out
// of the array.
type Refresh struct {
	cfg      RefreshConfig
	addrBits int
	down     Controller

	counter  uint64
	pending  bool
	cur      uint64
	waiting  bool
	injected uint64
}

func NewRefresh(down Controller, addrBits int, cfg RefreshConfig) (*Refresh, error) {
	if cfg.CounterWidth < 0 || cfg.CounterWidth > 63 {
		return nil, fmt.Errorf("memctl: refresh counter width %d out of range", cfg.CounterWidth)
	}
	if addrBits <= 0 || addrBits > 63 {
		return nil, fmt.Errorf("memctl: address width %d out of range", addrBits)
	}
	return &Refresh{cfg: cfg, addrBits: addrBits, down: down}, nil
}

// Address computes the refresh address for counter value cur.
func (r *Refresh) Address(cur uint64) uint64 {
	and := r.cfg.AddressAnd
	if and == 0 {
		and = ^uint64(0)
	}
	mask := uint64(1)<<uint(r.addrBits) - 1
	a := (cur&and | r.cfg.AddressOr) & mask
	for i := 1; i < r.addrBits; i++ {
		if r.cfg.AddressSext&(1<<uint(i)) == 0 {
			continue
		}
		a = a&^(1<<uint(i)) | (a>>uint(i-1)&1)<<uint(i)
	}
	return a
}

func (r *Refresh) inject(upstreamValid bool) bool {
	return !r.waiting && r.pending && (r.cfg.Force || !upstreamValid)
}

// downstream returns the request and response ready driven downstream.
func (r *Refresh) downstream(req Request, rspReady bool) (Request, bool) {
	if r.waiting {
		return req, true
	}
	if r.inject(req.Valid) {
		return Request{Valid: true, Addr: r.Address(r.cur), DebugIgnore: true}, rspReady
	}
	return req, rspReady
}

func (r *Refresh) Response() Response {
	if r.waiting {
		return Response{}
	}
	return r.down.Response()
}

func (r *Refresh) Ready(req Request, rspReady bool) bool {
	if r.cfg.Force && r.inject(req.Valid) {
		return false
	}
	out, dr := r.downstream(req, rspReady)
	return r.down.Ready(out, dr)
}

func (r *Refresh) Tick(req Request, rspReady bool) {
	out, dr := r.downstream(req, rspReady)
	injecting := r.inject(req.Valid)
	downReady := r.down.Ready(out, dr)
	downValid := r.down.Response().Valid

	period := uint64(1) << uint(r.cfg.CounterWidth)
	if r.counter == period-1 {
		r.pending = true
	}
	r.counter = (r.counter + 1) & (period - 1)
	switch {
	case r.waiting:
		if downValid {
			r.waiting = false
		}
	case injecting && downReady:
		r.pending = false
		r.cur++
		r.waiting = true
		r.injected++
	}
	r.down.Tick(out, dr)
}

func (r *Refresh) Debug() DebugInfo { return r.down.Debug() }

// Injected counts accepted refresh reads.
func (r *Refresh) Injected() uint64 { return r.injected }

// Due reports whether a refresh is pending.
func (r *Refresh) Due() bool { return r.pending }

// upperMask selects the address bits above the low bits refreshed by the
// top and top_bottom compositions.
func upperMask(addrBits, low int) uint64 {
	if addrBits <= low {
		return 0
	}
	return (uint64(1)<<uint(addrBits-low) - 1) << uint(low)
}
