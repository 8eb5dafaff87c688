package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/francoispqt/gojay"
	"golang.org/x/sync/errgroup"

	"github.com/eccmem/eccmem/ecc"
)

type result struct {
	Kind     ecc.Kind
	DataBits int
	Parity   int
	Elapsed  time.Duration
	Failed   bool
	Err      string
	Partial  bool // search stopped at the deadline with a usable matrix
	Metrics  ecc.Metrics
	DecodeNs float64 // mean decode time of a single-error word
	Misses   int     // single errors the decoder did not undo
}

func (r *result) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("code", r.Kind.String())
	enc.IntKey("data_bits", r.DataBits)
	enc.IntKey("parity_bits", r.Parity)
	enc.Int64Key("elapsed_ms", r.Elapsed.Milliseconds())
	enc.BoolKey("failed", r.Failed)
	if r.Err != "" {
		enc.StringKey("error", r.Err)
	}
	enc.BoolKey("partial", r.Partial)
	enc.IntKey("row_max", r.Metrics.RowMax)
	enc.IntKey("syns", r.Metrics.Syns)
	enc.IntKey("ones", r.Metrics.Ones)
	enc.Float64Key("decode_ns", r.DecodeNs)
	enc.IntKey("misses", r.Misses)
}

func (r *result) IsNil() bool { return r == nil }

type results []*result

func (rs results) MarshalJSONArray(enc *gojay.Encoder) {
	for _, r := range rs {
		enc.Object(r)
	}
}

func (rs results) IsNil() bool { return rs == nil }

func parseBits(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil || n <= 0 {
			return nil, fmt.Errorf("bad data width %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseKinds(s string) ([]ecc.Kind, error) {
	if s == "all" {
		return ecc.Kinds(), nil
	}
	var out []ecc.Kind
	for _, p := range strings.Split(s, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		k, err := ecc.ParseKind(p)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func main() {
	var (
		bitsStr  = flag.String("bits", "8,16,24,32,64", "comma-separated data widths")
		codesStr = flag.String("codes", "all", "comma-separated code kinds or all")
		timeout  = flag.Duration("timeout", 5*time.Minute, "generation budget per code")
		outPath  = flag.String("out", "docs/reports/ecc_eval.md", "output markdown report path")
		runs     = flag.Int("decode-runs", 10000, "single-error decodes timed per code")
		seed     = flag.Int64("seed", 42, "random seed")
		parallel = flag.Int("parallel", runtime.NumCPU(), "codes generated at once")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	widths, err := parseBits(*bitsStr)
	if err != nil {
		fatalf("%v", err)
	}
	kinds, err := parseKinds(*codesStr)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		mu  sync.Mutex
		out results
	)
	var g errgroup.Group
	g.SetLimit(*parallel)
	for i, k := range kinds {
		for j, n := range widths {
			k, n := k, n
			rseed := *seed + int64(i*len(widths)+j)
			g.Go(func() error {
				r := evaluate(ctx, k, n, *timeout, *runs, mrand.New(mrand.NewSource(rseed)))
				mu.Lock()
				out = append(out, r)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].DataBits < out[j].DataBits
	})

	if err := ensureDir(*outPath); err != nil {
		fatalf("%v", err)
	}
	ts := time.Now().Format("20060102_150405")
	jsonPath := strings.TrimSuffix(*outPath, ".md") + "_" + ts + ".json"
	b, err := gojay.MarshalJSONArray(out)
	if err != nil {
		fatalf("encode json: %v", err)
	}
	if err := os.WriteFile(jsonPath, b, 0o644); err != nil {
		fatalf("write json: %v", err)
	}
	if err := writeMarkdown(*outPath, out, *timeout); err != nil {
		fatalf("write md: %v", err)
	}
	fmt.Printf("Report written: %s\nJSON: %s\n", *outPath, jsonPath)
}

// evaluate generates one code under its own deadline and times its decoder.
func evaluate(ctx context.Context, k ecc.Kind, n int, timeout time.Duration, runs int, rng *mrand.Rand) *result {
	r := &result{Kind: k, DataBits: n}
	code, err := ecc.New(k, n)
	if err != nil {
		r.Failed, r.Err = true, err.Error()
		return r
	}
	r.Parity = code.ParityBits()

	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err = code.Generate(gctx, ecc.WithLogger(slog.Default().With(slog.String("code", code.String()))))
	r.Elapsed = time.Since(start)
	if err != nil {
		r.Failed, r.Err = true, err.Error()
		slog.Warn("generation failed", slog.String("code", code.String()), slog.Any("error", err))
		return r
	}
	if rep, ok := code.SearchReport(); ok {
		r.Partial = rep.Cancelled
	}
	if r.Metrics, err = code.Metrics(); err != nil {
		r.Failed, r.Err = true, err.Error()
		return r
	}
	r.DecodeNs, r.Misses = timeDecode(code, runs, rng)
	slog.Info("evaluated",
		slog.String("code", code.String()),
		slog.Duration("elapsed", r.Elapsed),
		slog.Float64("decode_ns", r.DecodeNs))
	return r
}

// timeDecode decodes runs codewords with one flipped bit each. Codes that
// do not correct single errors report every run as a miss.
func timeDecode(code *ecc.Code, runs int, rng *mrand.Rand) (float64, int) {
	enc, err := ecc.NewEncoder(code)
	if err != nil {
		return 0, runs
	}
	dec, err := ecc.NewDecoder(code)
	if err != nil {
		return 0, runs
	}
	if runs <= 0 {
		return 0, 0
	}
	n := code.DataBits()
	words := make([]ecc.Word, runs)
	data := make([]ecc.Word, runs)
	for i := range words {
		d := ecc.NewWord(n)
		for b := 0; b < n; b++ {
			d.SetBit(b, rng.Intn(2) == 1)
		}
		cw := enc.Encode(d)
		cw.FlipBit(rng.Intn(code.TotalBits()))
		words[i], data[i] = cw, d
	}
	misses := 0
	start := time.Now()
	for i, cw := range words {
		if !dec.Decode(cw).Data.Equal(data[i]) {
			misses++
		}
	}
	return float64(time.Since(start).Nanoseconds()) / float64(runs), misses
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeMarkdown(path string, rs results, timeout time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# ECC Construction Report\n\n")
	fmt.Fprintf(f, "Generated: %s, budget %s per code\n\n", time.Now().Format(time.RFC3339), timeout)
	fmt.Fprintf(f, "| Code | k | r | Generation | RowMax | Syns | Ones | Decode (ns) | Misses |\n")
	fmt.Fprintf(f, "|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range rs {
		if r.Failed {
			fmt.Fprintf(f, "| %s | %d | %d | failed | | | | | |\n", r.Kind, r.DataBits, r.Parity)
			continue
		}
		gen := r.Elapsed.Round(time.Millisecond).String()
		if r.Partial {
			gen += " (partial)"
		}
		fmt.Fprintf(f, "| %s | %d | %d | %s | %d | %d | %d | %.1f | %d |\n",
			r.Kind, r.DataBits, r.Parity, gen, r.Metrics.RowMax, r.Metrics.Syns, r.Metrics.Ones, r.DecodeNs, r.Misses)
	}

	var failed []string
	for _, r := range rs {
		if r.Failed {
			failed = append(failed, fmt.Sprintf("- %s(%d): %s", r.Kind, r.DataBits, r.Err))
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(f, "\n## Failures\n\n%s\n", strings.Join(failed, "\n"))
	}
	return nil
}
