package ecc

import (
	"fmt"
	"strings"
)

// Kind enumerates the supported code constructions.
type Kind int

const (
	KindIdentity Kind = iota
	KindParity
	KindHamming
	KindExtendedHamming
	KindHsiao
	KindHsiaoConstructed
	KindDuttaTouba
	KindSheLi
	numKinds
)

var kindNames = [numKinds]string{
	KindIdentity:         "identity",
	KindParity:           "parity",
	KindHamming:          "hamming",
	KindExtendedHamming:  "extended_hamming",
	KindHsiao:            "hsiao",
	KindHsiaoConstructed: "hsiao_constructed",
	KindDuttaTouba:       "dutta_touba",
	KindSheLi:            "she_li",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Searched reports whether the kind's matrices come from the SAT search.
func (k Kind) Searched() bool { return k == KindDuttaTouba || k == KindSheLi }

// Kinds lists every registered kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Registry maps a code name to its constructor.
var Registry = func() map[string]func(dataBits int) (*Code, error) {
	r := make(map[string]func(int) (*Code, error), numKinds)
	for _, k := range Kinds() {
		k := k
		r[k.String()] = func(dataBits int) (*Code, error) { return New(k, dataBits) }
	}
	return r
}()

// ParseKind resolves a registry name; matching ignores case and treats '-' as '_'.
func ParseKind(name string) (Kind, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k, s := range kindNames {
		if s == n {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// NewByName looks the constructor up in Registry.
func NewByName(name string, dataBits int) (*Code, error) {
	k, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return Registry[k.String()](dataBits)
}

// New prepares an ungenerated code: parity bit count and error patterns are
// fixed here, matrices come from Generate.
func New(kind Kind, dataBits int) (*Code, error) {
	if kind < 0 || kind >= numKinds {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if dataBits <= 0 {
		return nil, fmt.Errorf("ecc: data bits must be positive, got %d", dataBits)
	}
	c := &Code{kind: kind, dataBits: dataBits}
	switch kind {
	case KindIdentity:
		c.parityBits = 0
	case KindParity:
		c.parityBits = 1
		c.detectable = singleErrors(c.TotalBits())
	case KindHamming:
		c.parityBits = hammingParityBits(dataBits)
		c.correctable = singleErrors(c.TotalBits())
	case KindExtendedHamming:
		c.parityBits = hammingParityBits(dataBits) + 1
		c.correctable = singleErrors(c.TotalBits())
		c.detectable = doubleErrors(c.TotalBits())
	case KindHsiao, KindHsiaoConstructed:
		c.parityBits = hsiaoParityBits(dataBits)
		c.correctable = singleErrors(c.TotalBits())
		c.detectable = doubleErrors(c.TotalBits())
	case KindDuttaTouba:
		c.parityBits = hsiaoParityBits(dataBits)
		c.correctable = append(singleErrors(c.TotalBits()), adjacentErrors(c.TotalBits(), 2, 1)...)
	case KindSheLi:
		c.parityBits = sheLiParityBits(dataBits)
		n := c.TotalBits()
		c.correctable = append(singleErrors(n), adjacentErrors(n, 2, 1)...)
		for i := 2; i < n; i++ {
			c.correctable = append(c.correctable, ErrorPattern{i - 2, i}, ErrorPattern{i - 2, i - 1, i})
		}
	}
	return c, nil
}

func singleErrors(n int) []ErrorPattern {
	out := make([]ErrorPattern, n)
	for i := range out {
		out[i] = ErrorPattern{i}
	}
	return out
}

func doubleErrors(n int) []ErrorPattern {
	out := make([]ErrorPattern, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, ErrorPattern{i, j})
		}
	}
	return out
}

// adjacentErrors lists every run of size consecutive positions spaced by stride.
func adjacentErrors(n, size, stride int) []ErrorPattern {
	span := (size - 1) * stride
	var out []ErrorPattern
	for last := span; last < n; last++ {
		p := make(ErrorPattern, size)
		for j := range p {
			p[j] = last - span + j*stride
		}
		out = append(out, p)
	}
	return out
}

// hammingParityBits walks codeword positions 1,2,3,...; powers of two hold
// parity, everything else holds data.
func hammingParityBits(dataBits int) int {
	parity, placed := 0, 0
	for i := 1; placed < dataBits; i++ {
		if i&(i-1) != 0 {
			placed++
		} else {
			parity++
		}
	}
	return parity
}

// hsiaoParityBits returns m+1 for the smallest m with 2^m-m-1 >= dataBits.
func hsiaoParityBits(dataBits int) int {
	for m := 0; ; m++ {
		if (1<<uint(m))-m-1 >= dataBits {
			return m + 1
		}
	}
}

// sheLiParityBits returns the smallest m >= 2 with k+m-1 <= 2^(m-2).
func sheLiParityBits(dataBits int) int {
	for m := 2; ; m++ {
		if dataBits+m-1 <= 1<<uint(m-2) {
			return m
		}
	}
}
