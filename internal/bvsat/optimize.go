package bvsat

import (
	"context"
	"log/slog"
)

// Goal is one objective of a lexicographic minimization.
type Goal struct {
	Expr        BV
	UpperBound  uint64
	LowerBound  uint64
	Description string
}

// GoalResult is what Optimize achieved for a goal.
type GoalResult struct {
	Description string
	Value       uint64
	Found       bool // some model satisfied Expr <= UpperBound
	Optimal     bool // lower bound reached or no better model exists
}

type Report struct {
	Goals     []GoalResult
	Models    int  // satisfying models seen, including the initial one
	Cancelled bool // the context ended the search early
}

// Optimize minimizes goals in order. Each goal is first bounded by its upper
// bound and then tightened below the best value found until the solver proves
// no better value exists or the lower bound is reached; every improvement is
// fixated before the next goal starts.
//
// model is called after every satisfiable check and Optimize returns the
// result of the last such call. When ctx ends the search the last model is
// returned with Report.Cancelled set; only a search that never found a model
// fails, with ErrNoModel.
func Optimize[M any](ctx context.Context, s *Solver, goals []Goal, model func() M) (M, Report, error) {
	var best M
	rep := Report{Goals: make([]GoalResult, len(goals))}
	for i, goal := range goals {
		rep.Goals[i].Description = goal.Description
		// goal values are read from every model, including the first
		s.Encode(goal.Expr)
	}

	switch s.CheckSat(ctx) {
	case Unsat:
		return best, rep, ErrUnsatisfiable
	case Unknown:
		rep.Cancelled = true
		return best, rep, ErrNoModel
	}
	best = model()
	rep.Models++

	for i, goal := range goals {
		gr := &rep.Goals[i]
		s.log.Debug("starting optimization",
			slog.String("goal", goal.Description),
			slog.Uint64("upper", goal.UpperBound),
			slog.Uint64("lower", goal.LowerBound))

		s.Assume(s.UleConst(goal.Expr, goal.UpperBound))
	search:
		for {
			switch s.CheckSat(ctx) {
			case Sat:
				v := s.Value(goal.Expr)
				best = model()
				rep.Models++
				gr.Value, gr.Found = v, true
				s.log.Debug("found assignment", slog.String("goal", goal.Description), slog.Uint64("value", v))
				s.Fixate()
				// pin the achieved value so later goals cannot trade it away
				s.Assert(s.UleConst(goal.Expr, v))
				if v == goal.LowerBound {
					s.log.Debug("lower bound reached", slog.String("goal", goal.Description))
					gr.Optimal = true
					break search
				}
				s.Assume(s.UltConst(goal.Expr, v))
			case Unsat:
				gr.Optimal = gr.Found
				s.log.Debug("cannot improve further",
					slog.String("goal", goal.Description), slog.Uint64("value", gr.Value))
				break search
			default:
				rep.Cancelled = true
				s.log.Warn("search cancelled, keeping best model so far",
					slog.String("goal", goal.Description), slog.Int("models", rep.Models))
				return best, rep, nil
			}
		}
	}
	return best, rep, nil
}
