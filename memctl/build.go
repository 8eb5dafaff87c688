package memctl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/eccmem/eccmem/ecc"
)

var ErrUnknownController = errors.New("memctl: unknown controller")

// refreshLow is the number of low address bits the top and top_bottom
// compositions sweep.
const refreshLow = 7

// Spec selects and parameterises a controller composition.
type Spec struct {
	Name          string
	AddrBits      int
	PartialWrites bool
	// Refresh overrides the composition's refresh settings when non-nil.
	Refresh *RefreshConfig
}

// Unit is a built controller with handles on its inner stages.
type Unit struct {
	Controller
	Name      string
	WriteBack *WriteBack // nil for basic
	Refresh   *Refresh   // nil without refresh
	Partial   *PartialWrite
}

type composition struct {
	writeBack bool
	refresh   func(addrBits int) *RefreshConfig
}

var compositions = map[string]composition{
	"basic":      {},
	"write_back": {writeBack: true},
	"refresh": {writeBack: true, refresh: func(int) *RefreshConfig {
		return &RefreshConfig{CounterWidth: 7}
	}},
	"force_refresh": {writeBack: true, refresh: func(int) *RefreshConfig {
		return &RefreshConfig{CounterWidth: 7, Force: true}
	}},
	"continuous_refresh": {writeBack: true, refresh: func(int) *RefreshConfig {
		return &RefreshConfig{CounterWidth: 0}
	}},
	"top_refresh": {writeBack: true, refresh: func(addrBits int) *RefreshConfig {
		return &RefreshConfig{CounterWidth: 7, AddressOr: upperMask(addrBits, refreshLow)}
	}},
	"top_bottom_refresh": {writeBack: true, refresh: func(addrBits int) *RefreshConfig {
		return &RefreshConfig{CounterWidth: 7, AddressSext: upperMask(addrBits, refreshLow)}
	}},
}

// Names lists the known compositions.
func Names() []string {
	out := make([]string, 0, len(compositions))
	for n := range compositions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Build wires the named composition on top of mem.
func Build(spec Spec, code *ecc.Code, mem Memory) (*Unit, error) {
	comp, ok := compositions[spec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, spec.Name)
	}
	u := &Unit{Name: spec.Name}
	if comp.writeBack {
		wb, err := NewWriteBack(code, mem)
		if err != nil {
			return nil, err
		}
		u.WriteBack, u.Controller = wb, wb
	} else {
		b, err := NewBasic(code, mem)
		if err != nil {
			return nil, err
		}
		u.Controller = b
	}

	cfg := spec.Refresh
	if cfg == nil && comp.refresh != nil {
		cfg = comp.refresh(spec.AddrBits)
	}
	if cfg != nil {
		r, err := NewRefresh(u.Controller, spec.AddrBits, *cfg)
		if err != nil {
			return nil, err
		}
		u.Refresh, u.Controller = r, r
	}

	if spec.PartialWrites {
		p, err := NewPartialWrite(u.Controller, code.DataBits())
		if err != nil {
			return nil, err
		}
		u.Partial, u.Controller = p, p
		u.Name += "+partial"
	}
	return u, nil
}
