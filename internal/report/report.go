// Package report renders a decoded allocation for human consumption, in
// the layout-by-layout console format print operators are used to.
package report

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/printworks/sticker-layout/internal/solver"
)

// Render formats a solve result as plain text: the terminal status, every
// used layout with its print count and per-page distribution, and a
// demand-check table. Results without an allocation render the status and
// a short explanation.
func Render(res solver.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Solver status: %s\n", res.Status)

	if res.Allocation == nil {
		switch res.Status {
		case solver.StatusInfeasible:
			b.WriteString("No allocation satisfies the demands with the given layout capacity and budget.\n")
		default:
			b.WriteString("No solution found within the time budget.\n")
		}
		return b.String()
	}

	alloc := res.Allocation
	fmt.Fprintf(&b, "Total pages: %d\n", alloc.TotalPages)

	for _, plan := range alloc.Layouts {
		fmt.Fprintf(&b, "\nLayout %d: printed %d times.\n", plan.Index, plan.PrintCount)
		fmt.Fprintf(&b, "  Distribution (sticker -> copies per page):\n")
		for _, name := range sortedKeys(plan.Distribution) {
			fmt.Fprintf(&b, "    %s => %d\n", name, plan.Distribution[name])
		}
	}

	b.WriteString("\nDemand checks:\n")
	w := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  STICKER\tPRINTED\tREQUIRED\tMET")
	for _, name := range sortedCheckNames(alloc.DemandReport) {
		check := alloc.DemandReport[name]
		fmt.Fprintf(w, "  %s\t%d\t%d\t%v\n", name, check.Printed, check.Required, check.Met)
	}
	_ = w.Flush()

	return b.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCheckNames(m map[string]solver.DemandCheck) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
