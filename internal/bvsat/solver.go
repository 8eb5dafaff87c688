// Package bvsat is a small incremental bit-vector layer over the gini SAT
// solver. Circuits are built in a gini logic.C and Tseitin-encoded into the
// solver on demand, so only the cones that are asserted or assumed reach CNF.
package bvsat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// Status is the outcome of CheckSat, using gini's result encoding.
type Status int

const (
	Unsat   Status = -1
	Unknown Status = 0
	Sat     Status = 1
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

var (
	ErrUnsatisfiable = errors.New("bvsat: constraints are unsatisfiable")
	ErrNoModel       = errors.New("bvsat: search cancelled before a model was found")
)

const defaultPollInterval = 2 * time.Millisecond

// Option configures a Solver.
type Option func(*Solver)

// WithPollInterval sets how often a running solve checks for cancellation.
func WithPollInterval(d time.Duration) Option {
	return func(s *Solver) {
		if d > 0 {
			s.poll = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.log = l
		}
	}
}

// Solver owns one circuit and one incremental SAT instance.
type Solver struct {
	c    *logic.C
	g    *gini.Gini
	mark []int8

	assumed []z.Lit // consumed by the next CheckSat
	fixable []z.Lit // assumptions of the last satisfiable CheckSat

	poll time.Duration
	log  *slog.Logger

	checks int
}

func New(opts ...Option) *Solver {
	s := &Solver{
		c:    logic.NewC(),
		g:    gini.New(),
		poll: defaultPollInterval,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	// emit the constant-true unit clause
	s.mark, _ = s.c.CnfSince(s.g, s.mark)
	return s
}

// True and False are the circuit constants.
func (s *Solver) True() z.Lit { return s.c.T }
func (s *Solver) False() z.Lit { return s.c.F }

// Checks returns the number of CheckSat calls made so far.
func (s *Solver) Checks() int { return s.checks }

func (s *Solver) encode(ls ...z.Lit) {
	s.mark, _ = s.c.CnfSince(s.g, s.mark, ls...)
}

func (s *Solver) encoded(l z.Lit) bool {
	v := int(l.Var())
	return v < len(s.mark) && s.mark[v] == 1
}

// Encode adds the cones of terms to the solver without constraining them,
// so that later models assign them. Terms that were never asserted, assumed
// or encoded cannot be read back.
func (s *Solver) Encode(terms ...BV) {
	for _, bv := range terms {
		s.encode(bv...)
	}
}

// Assert permanently conjoins l.
func (s *Solver) Assert(l z.Lit) {
	s.encode(l)
	s.g.Add(l)
	s.g.Add(z.LitNull)
}

// Assume makes l hold for the next CheckSat only.
func (s *Solver) Assume(l z.Lit) {
	s.encode(l)
	s.assumed = append(s.assumed, l)
}

// Fixate turns the assumptions of the last satisfiable check into
// permanent assertions.
func (s *Solver) Fixate() {
	for _, l := range s.fixable {
		s.g.Add(l)
		s.g.Add(z.LitNull)
	}
	s.fixable = s.fixable[:0]
}

// CheckSat solves under the pending assumptions. It returns Unknown without
// solving when ctx is already done, and stops a running solve when ctx is
// cancelled or its deadline passes.
func (s *Solver) CheckSat(ctx context.Context) Status {
	s.checks++
	assumed := s.assumed
	s.assumed = nil
	if ctx.Err() != nil {
		return Unknown
	}
	s.g.Assume(assumed...)
	sv := s.g.GoSolve()
	t := time.NewTicker(s.poll)
	defer t.Stop()
	res := 0
	for {
		r, ok := sv.Test()
		if ok {
			res = r
			break
		}
		select {
		case <-ctx.Done():
			res = sv.Stop()
		case <-t.C:
			continue
		}
		break
	}
	st := Status(res)
	if st == Sat {
		s.fixable = append(s.fixable[:0], assumed...)
	}
	return st
}

// BoolValue reads l from the current model. It panics when l was built
// after the last encoding, since the model says nothing about it.
func (s *Solver) BoolValue(l z.Lit) bool {
	switch l {
	case s.c.T:
		return true
	case s.c.F:
		return false
	}
	if !s.encoded(l) {
		panic(fmt.Sprintf("bvsat: reading unencoded literal %v", l))
	}
	return s.g.Value(l)
}

// Value reads bv from the current model. Widths above 64 are truncated and
// every bit must have been encoded, see Encode.
func (s *Solver) Value(bv BV) uint64 {
	var v uint64
	for i, l := range bv {
		if i >= 64 {
			break
		}
		if s.BoolValue(l) {
			v |= 1 << uint(i)
		}
	}
	return v
}
