package solver

import "fmt"

// rawSolution is the engine's assignment reduced to plain numbers. The
// layout dimension always spans all candidate layouts; the sticker
// dimension spans only the active (positive demand) stickers, addressed
// through the active index list.
type rawSolution struct {
	active   []int
	printed  []int64
	used     []bool
	copies   [][]int64
	produced [][]int64
}

// decode rebuilds the domain-level allocation from a raw assignment and
// re-verifies every modeled invariant against the concrete numbers. A
// violation means the engine or the model is defective; the result is
// rejected outright rather than repaired.
func decode(p Problem, raw rawSolution) (Allocation, error) {
	layouts := p.MaxLayouts
	if len(raw.printed) != layouts || len(raw.used) != layouts {
		return Allocation{}, fmt.Errorf("%w: assignment covers %d layouts, problem has %d",
			ErrInconsistentSolution, len(raw.printed), layouts)
	}

	usedCount := 0
	var totalPages int64
	plans := make([]LayoutPlan, 0, layouts)

	for k := 0; k < layouts; k++ {
		var load int64
		dist := make(map[string]int64)
		for a, i := range raw.active {
			c := raw.copies[a][k]
			if c < 0 {
				return Allocation{}, fmt.Errorf("%w: negative copies for %q on layout %d",
					ErrInconsistentSolution, p.Stickers[i].Name, k)
			}
			load += c
			if c > 0 {
				dist[p.Stickers[i].Name] = c
			}
		}

		if raw.used[k] {
			usedCount++
			if raw.printed[k] < 1 {
				return Allocation{}, fmt.Errorf("%w: layout %d is used but printed %d times",
					ErrInconsistentSolution, k, raw.printed[k])
			}
			if load < 1 {
				return Allocation{}, fmt.Errorf("%w: layout %d is used but empty",
					ErrInconsistentSolution, k)
			}
			if load > p.LayoutCapacity {
				return Allocation{}, fmt.Errorf("%w: layout %d holds %d copies, capacity is %d",
					ErrInconsistentSolution, k, load, p.LayoutCapacity)
			}
			totalPages += raw.printed[k]
			plans = append(plans, LayoutPlan{Index: k, PrintCount: raw.printed[k], Distribution: dist})
		} else if raw.printed[k] != 0 || load != 0 {
			return Allocation{}, fmt.Errorf("%w: layout %d is unused but printed %d times with %d copies",
				ErrInconsistentSolution, k, raw.printed[k], load)
		}
	}

	if usedCount > p.MaxLayouts {
		return Allocation{}, fmt.Errorf("%w: %d layouts used, budget is %d",
			ErrInconsistentSolution, usedCount, p.MaxLayouts)
	}

	report := make(map[string]DemandCheck, len(p.Stickers))
	for _, s := range p.Stickers {
		report[s.Name] = DemandCheck{Printed: 0, Required: s.Demand, Met: s.Demand == 0}
	}

	for a, i := range raw.active {
		sticker := p.Stickers[i]
		var printed, placed int64
		for k := 0; k < layouts; k++ {
			if raw.produced[a][k] != raw.copies[a][k]*raw.printed[k] {
				return Allocation{}, fmt.Errorf("%w: produced count for %q on layout %d is %d, want %d*%d",
					ErrInconsistentSolution, sticker.Name, k, raw.produced[a][k], raw.copies[a][k], raw.printed[k])
			}
			printed += raw.produced[a][k]
			placed += raw.copies[a][k]
		}
		if placed < 1 {
			return Allocation{}, fmt.Errorf("%w: sticker %q is not placed on any layout",
				ErrInconsistentSolution, sticker.Name)
		}
		if printed < sticker.Demand {
			return Allocation{}, fmt.Errorf("%w: sticker %q printed %d of %d",
				ErrInconsistentSolution, sticker.Name, printed, sticker.Demand)
		}
		report[sticker.Name] = DemandCheck{Printed: printed, Required: sticker.Demand, Met: true}
	}

	return Allocation{
		Layouts:      plans,
		TotalPages:   totalPages,
		DemandReport: report,
	}, nil
}
