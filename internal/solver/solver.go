// Package solver encodes the sticker-to-layout assignment problem as a
// CP-SAT model, drives the engine to an optimal or best-found solution,
// and decodes the raw assignment into a verified allocation.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"google.golang.org/protobuf/proto"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
)

// Solver runs layout optimizations against the CP-SAT engine. It holds no
// state across solves; concurrent solves of different problems are safe.
type Solver struct {
	opts Options
}

// New creates a Solver with the given options.
func New(opts Options) *Solver {
	return &Solver{opts: opts}
}

// Solve builds the model for the problem, runs the engine and returns the
// terminal status with the decoded allocation. The call blocks until the
// engine reaches a terminal status, the time budget expires, or ctx is
// cancelled (in which case the engine is interrupted and reports its best
// status so far, usually Unknown).
func (s *Solver) Solve(ctx context.Context, p Problem) (Result, error) {
	lm, err := buildModel(p, s.opts)
	if err != nil {
		return Result{}, err
	}

	m, err := lm.builder.Model()
	if err != nil {
		return Result{}, fmt.Errorf("instantiate model: %w", err)
	}

	params := &sppb.SatParameters{}
	if s.opts.TimeBudget > 0 {
		params.MaxTimeInSeconds = proto.Float64(s.opts.TimeBudget.Seconds())
	}
	if s.opts.Workers > 0 {
		params.NumWorkers = proto.Int32(s.opts.Workers)
	}

	start := time.Now()
	resp, err := cpmodel.SolveCpModelInterruptibleWithParameters(m, params, ctx.Done())
	wall := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("solve model: %w", err)
	}

	status, err := mapStatus(resp.GetStatus())
	if err != nil {
		return Result{}, err
	}

	result := Result{Status: status, WallTime: wall}
	if status.HasAllocation() {
		alloc, err := decode(p, lm.extract(resp))
		if err != nil {
			return Result{}, err
		}
		result.Allocation = &alloc
	}
	return result, nil
}

// mapStatus translates the engine's terminal status onto the domain one.
// MODEL_INVALID is a builder defect, not a solve outcome.
func mapStatus(cs cmpb.CpSolverStatus) (Status, error) {
	switch cs {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal, nil
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasible, nil
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible, nil
	case cmpb.CpSolverStatus_UNKNOWN:
		return StatusUnknown, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: engine status %v", ErrModelInvalid, cs)
	}
}

// extract pulls the concrete variable values out of the engine response.
// The decoder works on these plain numbers only, so its verification is
// independent of solver internals.
func (lm *layoutModel) extract(resp *cmpb.CpSolverResponse) rawSolution {
	raw := rawSolution{
		active:   lm.active,
		printed:  make([]int64, len(lm.printed)),
		used:     make([]bool, len(lm.used)),
		copies:   make([][]int64, len(lm.copies)),
		produced: make([][]int64, len(lm.produced)),
	}
	for k := range lm.printed {
		raw.printed[k] = cpmodel.SolutionIntegerValue(resp, lm.printed[k])
		raw.used[k] = cpmodel.SolutionBooleanValue(resp, lm.used[k])
	}
	for a := range lm.copies {
		raw.copies[a] = make([]int64, len(lm.copies[a]))
		raw.produced[a] = make([]int64, len(lm.produced[a]))
		for k := range lm.copies[a] {
			raw.copies[a][k] = cpmodel.SolutionIntegerValue(resp, lm.copies[a][k])
			raw.produced[a][k] = cpmodel.SolutionIntegerValue(resp, lm.produced[a][k])
		}
	}
	return raw
}
