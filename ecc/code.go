package ecc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eccmem/eccmem/internal/bvsat"
)

// ErrorPattern is a set of bit positions flipped together.
type ErrorPattern []int

// State is the generation lifecycle of a Code.
type State int

const (
	StateUnconstructed State = iota
	StateGenerating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconstructed:
		return "unconstructed"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Code is one error-correcting code instance. Matrices are immutable once
// Generate succeeds; accessors hand out copies.
type Code struct {
	kind       Kind
	dataBits   int
	parityBits int

	correctable []ErrorPattern
	detectable  []ErrorPattern

	mu     sync.Mutex
	state  State
	err    error
	h, g   *Matrix
	search *bvsat.Report
}

func (c *Code) Kind() Kind { return c.kind }
func (c *Code) DataBits() int { return c.dataBits }
func (c *Code) ParityBits() int { return c.parityBits }
func (c *Code) TotalBits() int { return c.dataBits + c.parityBits }
func (c *Code) String() string { return fmt.Sprintf("%s(%d,%d)", c.kind, c.TotalBits(), c.dataBits) }
func (c *Code) Correctable() []ErrorPattern { return clonePatterns(c.correctable) }

func (c *Code) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure recorded by a failed generation.
func (c *Code) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Detectable is only complete once the code is ready; Dutta-Touba derives it
// from the generated matrix.
func (c *Code) Detectable() []ErrorPattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePatterns(c.detectable)
}

func (c *Code) ParityCheck() (*Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil, ErrNotGenerated
	}
	return c.h.Clone(), nil
}

func (c *Code) Generator() (*Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil, ErrNotGenerated
	}
	return c.g.Clone(), nil
}

// SearchReport returns the optimizer report of a searched code.
func (c *Code) SearchReport() (bvsat.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.search == nil {
		return bvsat.Report{}, false
	}
	return *c.search, true
}

// GenerateOption tunes Generate.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	logger *slog.Logger
	poll   time.Duration
}

func WithLogger(l *slog.Logger) GenerateOption {
	return func(o *generateOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPollInterval sets how often a running SAT check looks at the context.
func WithPollInterval(d time.Duration) GenerateOption {
	return func(o *generateOptions) { o.poll = d }
}

// DefaultSearchBudget bounds the exhaustive Hsiao search when ctx carries no deadline.
const DefaultSearchBudget = 24 * time.Hour

// Generate builds the matrices. The deadline and cancellation of ctx bound
// the searched codes, which then keep the best matrix found. Generate runs
// once: later calls return nil on a ready code and the recorded error on a
// failed one.
func (c *Code) Generate(ctx context.Context, opts ...GenerateOption) error {
	o := generateOptions{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateFailed:
		err := c.err
		c.mu.Unlock()
		return err
	case StateGenerating:
		c.mu.Unlock()
		return fmt.Errorf("ecc: %s generation already in progress", c)
	}
	c.state = StateGenerating
	c.mu.Unlock()

	start := time.Now()
	res, err := c.build(ctx, &o)
	if err == nil {
		err = CheckOrthogonal(res.h, res.g)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state, c.err = StateFailed, fmt.Errorf("generate %s: %w", c, err)
		o.logger.Error("matrix generation failed", slog.String("code", c.String()), slog.Any("error", err))
		return c.err
	}
	c.install(res)
	o.logger.Info("matrix generation took",
		slog.String("code", c.String()),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

type buildResult struct {
	h, g       *Matrix
	detectable []ErrorPattern // nil keeps the patterns fixed by New
	search     *bvsat.Report
}

// install must be called with c.mu held.
func (c *Code) install(r buildResult) {
	c.h, c.g = r.h, r.g
	if r.detectable != nil {
		c.detectable = r.detectable
	}
	c.search = r.search
	c.state = StateReady
	c.err = nil
}

// Install makes externally stored matrices current after checking their
// shape and orthogonality. It is how a cache hit becomes a ready code.
func (c *Code) Install(h, g *Matrix, detectable []ErrorPattern) error {
	if h.Rows() != c.parityBits || h.Cols() != c.TotalBits() {
		return fmt.Errorf("ecc: %s: parity-check matrix is %dx%d", c, h.Rows(), h.Cols())
	}
	if g.Rows() != c.dataBits || g.Cols() != c.TotalBits() {
		return fmt.Errorf("ecc: %s: generator matrix is %dx%d", c, g.Rows(), g.Cols())
	}
	if err := CheckOrthogonal(h, g); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateGenerating {
		return fmt.Errorf("ecc: %s generation already in progress", c)
	}
	c.install(buildResult{h: h.Clone(), g: g.Clone(), detectable: clonePatterns(detectable)})
	return nil
}

func (c *Code) build(ctx context.Context, o *generateOptions) (buildResult, error) {
	switch c.kind {
	case KindIdentity:
		return buildResult{h: NewMatrix(0, c.dataBits), g: Identity(c.dataBits)}, nil
	case KindParity:
		return fromParityCheck(Ones(1, c.TotalBits()))
	case KindHamming:
		return fromParityCheck(hammingParityCheck(c.parityBits, c.TotalBits()))
	case KindExtendedHamming:
		return fromParityCheck(extendedHammingParityCheck(c.parityBits, c.TotalBits()))
	case KindHsiao:
		h, err := hsiaoSearch(ctx, c.dataBits, c.parityBits, o.logger)
		if err != nil {
			return buildResult{}, err
		}
		return fromSystematic(h)
	case KindHsiaoConstructed:
		h, err := hsiaoConstructed(c.parityBits, c.TotalBits())
		if err != nil {
			return buildResult{}, err
		}
		return fromSystematic(h)
	case KindDuttaTouba, KindSheLi:
		return c.searchMatrices(ctx, o)
	}
	return buildResult{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(c.kind))
}

func fromParityCheck(h *Matrix) (buildResult, error) {
	g, err := GeneratorFromParityCheck(h)
	if err != nil {
		return buildResult{}, err
	}
	return buildResult{h: h, g: g}, nil
}

func fromSystematic(h *Matrix) (buildResult, error) {
	g, err := GeneratorFromSystematic(h)
	if err != nil {
		return buildResult{}, err
	}
	return buildResult{h: h, g: g}, nil
}

func clonePatterns(ps []ErrorPattern) []ErrorPattern {
	if ps == nil {
		return nil
	}
	out := make([]ErrorPattern, len(ps))
	for i, p := range ps {
		out[i] = append(ErrorPattern(nil), p...)
	}
	return out
}
