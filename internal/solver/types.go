package solver

import (
	"fmt"
	"time"
)

// Sticker is one demand line: a named sticker and how many copies of it
// must be produced in total.
type Sticker struct {
	Name   string
	Demand int64
}

// Problem describes a single optimization run: the demand list plus the
// plate geometry. It is read-only to the solver; callers keep ownership.
type Problem struct {
	Stickers []Sticker
	// LayoutCapacity is the number of sticker spots on one printing plate.
	LayoutCapacity int64
	// MaxLayouts is the number of distinct plates that may be produced.
	MaxLayouts int
}

// Validate checks the structural invariants of the problem. Zero capacity
// or zero layouts pass validation; with any positive demand they simply
// make the problem infeasible, which is a solve outcome rather than an
// input error.
func (p Problem) Validate() error {
	if len(p.Stickers) == 0 {
		return ErrNoStickers
	}
	if p.LayoutCapacity < 0 {
		return fmt.Errorf("%w: layout capacity %d", ErrInvalidCapacity, p.LayoutCapacity)
	}
	if p.MaxLayouts < 0 {
		return fmt.Errorf("%w: max layouts %d", ErrInvalidMaxLayouts, p.MaxLayouts)
	}
	seen := make(map[string]struct{}, len(p.Stickers))
	for _, s := range p.Stickers {
		if s.Name == "" {
			return fmt.Errorf("%w: sticker with empty name", ErrInvalidSticker)
		}
		if s.Demand < 0 {
			return fmt.Errorf("%w: sticker %q has demand %d", ErrInvalidSticker, s.Name, s.Demand)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSticker, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// totalDemand is a safe upper bound for any layout's print count: printing
// one layout that carries a single copy per page already covers everything.
func (p Problem) totalDemand() int64 {
	var total int64
	for _, s := range p.Stickers {
		total += s.Demand
	}
	return total
}

// Status is the terminal outcome of a solve. Infeasible and Unknown are
// legitimate results, not errors.
type Status int

const (
	// StatusUnknown means the budget ran out before the engine could prove
	// anything. Re-solving with a larger budget may help.
	StatusUnknown Status = iota
	// StatusOptimal means the returned allocation is provably optimal.
	StatusOptimal
	// StatusFeasible means a valid allocation was found but optimality was
	// not proven within the budget.
	StatusFeasible
	// StatusInfeasible means no allocation satisfies the constraints.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// HasAllocation reports whether a solve with this status carries an allocation.
func (s Status) HasAllocation() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// LayoutPlan is one used plate: how often it is printed and which stickers
// appear on each printed page. Stickers with zero copies are omitted.
type LayoutPlan struct {
	Index        int
	PrintCount   int64
	Distribution map[string]int64
}

// DemandCheck records how a single sticker's demand was covered.
type DemandCheck struct {
	Printed  int64
	Required int64
	Met      bool
}

// Allocation is the decoded, verified result of a solve. It is a fresh
// value independent of any solver internals.
type Allocation struct {
	Layouts      []LayoutPlan
	TotalPages   int64
	DemandReport map[string]DemandCheck
}

// Options configures a Solver.
type Options struct {
	// TimeBudget bounds the engine's search time. Zero means no limit;
	// production callers should always set one.
	TimeBudget time.Duration
	// MaxPrintRuns bounds how often a single layout may be printed. Zero
	// derives the bound from the total demand.
	MaxPrintRuns int64
	// SymmetryBreaking orders the interchangeable layouts to prune
	// equivalent branches. Disable only for debugging model behaviour.
	SymmetryBreaking bool
	// Workers is the engine's worker thread count. Zero keeps the engine
	// default.
	Workers int32
}

// Result is the outcome of one solve. Allocation is non-nil exactly when
// Status.HasAllocation() is true.
type Result struct {
	Status     Status
	Allocation *Allocation
	WallTime   time.Duration
}
