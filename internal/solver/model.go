package solver

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"
)

// layoutModel is the CP-SAT encoding of one Problem, together with the
// variable handles needed to read a solution back. It lives for a single
// solve.
type layoutModel struct {
	builder *cpmodel.Builder

	// active holds the indices of stickers with positive demand; stickers
	// with zero demand get no variables and no coverage requirement.
	active []int

	printed  []cpmodel.IntVar   // pages printed per layout
	used     []cpmodel.BoolVar  // layout carries stickers and is printed
	copies   [][]cpmodel.IntVar // [active sticker][layout] copies per page
	produced [][]cpmodel.IntVar // [active sticker][layout] copies * printed
}

// buildModel translates a validated Problem into a CP-SAT model.
//
// The demand constraint multiplies two decision variables (copies per page
// times print count), so each pair gets an auxiliary produced variable
// linked with an integer multiplication equality. Everything else is
// linear.
func buildModel(p Problem, opts Options) (*layoutModel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	maxRuns := opts.MaxPrintRuns
	if maxRuns <= 0 {
		maxRuns = p.totalDemand()
	}

	b := cpmodel.NewCpModelBuilder()
	lm := &layoutModel{builder: b}

	for i, s := range p.Stickers {
		if s.Demand > 0 {
			lm.active = append(lm.active, i)
		}
	}

	layouts := p.MaxLayouts
	lm.printed = make([]cpmodel.IntVar, layouts)
	lm.used = make([]cpmodel.BoolVar, layouts)
	for k := 0; k < layouts; k++ {
		lm.printed[k] = b.NewIntVar(0, maxRuns)
		lm.used[k] = b.NewBoolVar()
	}

	lm.copies = make([][]cpmodel.IntVar, len(lm.active))
	lm.produced = make([][]cpmodel.IntVar, len(lm.active))
	for a := range lm.active {
		lm.copies[a] = make([]cpmodel.IntVar, layouts)
		lm.produced[a] = make([]cpmodel.IntVar, layouts)
		for k := 0; k < layouts; k++ {
			lm.copies[a][k] = b.NewIntVar(0, p.LayoutCapacity)
			lm.produced[a][k] = b.NewIntVar(0, p.LayoutCapacity*maxRuns)
			b.AddMultiplicationEquality(lm.produced[a][k], lm.copies[a][k], lm.printed[k])
		}
	}

	// Per layout: the page load respects the capacity, an unused layout is
	// empty and never printed, a used layout carries something and is
	// printed at least once.
	for k := 0; k < layouts; k++ {
		load := b.NewIntVar(0, p.LayoutCapacity)
		sum := cpmodel.NewLinearExpr()
		for a := range lm.active {
			sum.Add(lm.copies[a][k])
		}
		b.AddEquality(sum, load)

		b.AddGreaterOrEqual(load, cpmodel.NewConstant(1)).OnlyEnforceIf(lm.used[k])
		b.AddEquality(load, cpmodel.NewConstant(0)).OnlyEnforceIf(lm.used[k].Not())
		b.AddGreaterOrEqual(lm.printed[k], cpmodel.NewConstant(1)).OnlyEnforceIf(lm.used[k])
		b.AddEquality(lm.printed[k], cpmodel.NewConstant(0)).OnlyEnforceIf(lm.used[k].Not())
	}

	// Per sticker: the produced copies meet the demand, and the sticker is
	// placed on at least one layout. With zero layouts or zero capacity the
	// coverage constraint is unsatisfiable, which makes such problems
	// infeasible rather than invalid.
	for a, i := range lm.active {
		demand := cpmodel.NewLinearExpr()
		placement := cpmodel.NewLinearExpr()
		for k := 0; k < layouts; k++ {
			demand.Add(lm.produced[a][k])
			placement.Add(lm.copies[a][k])
		}
		b.AddGreaterOrEqual(demand, cpmodel.NewConstant(p.Stickers[i].Demand))
		b.AddGreaterOrEqual(placement, cpmodel.NewConstant(1))
	}

	budget := cpmodel.NewLinearExpr()
	for k := 0; k < layouts; k++ {
		budget.Add(lm.used[k])
	}
	b.AddLessOrEqual(budget, cpmodel.NewConstant(int64(p.MaxLayouts)))

	// Layouts are interchangeable before assignment. Ordering them prunes
	// the permuted duplicates of every solution: used layouts take the
	// lowest indices and print counts are non-increasing.
	if opts.SymmetryBreaking {
		for k := 1; k < layouts; k++ {
			b.AddImplication(lm.used[k], lm.used[k-1])
			b.AddGreaterOrEqual(lm.printed[k-1], lm.printed[k])
		}
	}

	objective := cpmodel.NewLinearExpr()
	for k := 0; k < layouts; k++ {
		objective.Add(lm.printed[k])
	}
	b.Minimize(objective)

	return lm, nil
}
