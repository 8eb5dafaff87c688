package ecc_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/eccmem/eccmem/ecc"
)

func readyCode(tb testing.TB, kind ecc.Kind, bits int) *ecc.Code {
	tb.Helper()
	code, err := ecc.New(kind, bits)
	if err != nil {
		tb.Fatalf("new %s(%d): %v", kind, bits, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := code.Generate(ctx); err != nil {
		tb.Fatalf("generate %s: %v", code, err)
	}
	return code
}

// TestDecodeAllSingleErrors flips every bit of random codewords of 64-bit
// codes and checks the data survives, logging the per-word decode time.
func TestDecodeAllSingleErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("long decode sweep")
	}
	rng := rand.New(rand.NewSource(42))
	for _, kind := range []ecc.Kind{ecc.KindHamming, ecc.KindExtendedHamming, ecc.KindHsiaoConstructed} {
		code := readyCode(t, kind, 64)
		enc, _ := ecc.NewEncoder(code)
		dec, _ := ecc.NewDecoder(code)

		var elapsed time.Duration
		decodes := 0
		for w := 0; w < 50; w++ {
			data := ecc.WordFromUint64(rng.Uint64(), 64)
			cw := enc.Encode(data)
			for b := 0; b < code.TotalBits(); b++ {
				bad := cw.Clone()
				bad.FlipBit(b)
				start := time.Now()
				got := dec.Decode(bad)
				elapsed += time.Since(start)
				decodes++
				if got.Uncorrectable || !got.Data.Equal(data) {
					t.Fatalf("%s: bit %d of word %d not corrected", code, b, w)
				}
			}
		}
		t.Logf("%s: %d decodes, %.1f ns/decode", code, decodes, float64(elapsed.Nanoseconds())/float64(decodes))
	}
}

func BenchmarkDecode(b *testing.B) {
	for _, kind := range []ecc.Kind{ecc.KindHamming, ecc.KindExtendedHamming, ecc.KindHsiaoConstructed} {
		for _, bits := range []int{16, 32, 64} {
			code := readyCode(b, kind, bits)
			b.Run(fmt.Sprintf("%s/%d", kind, bits), func(b *testing.B) {
				enc, _ := ecc.NewEncoder(code)
				dec, _ := ecc.NewDecoder(code)
				cw := enc.Encode(ecc.WordFromUint64(0x0123456789ABCDEF, bits))
				cw.FlipBit(bits / 2)
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					dec.Decode(cw)
				}
			})
		}
	}
}
