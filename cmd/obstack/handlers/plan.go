package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/obstack/obstack/internal/plan"
)

// PlanOptions carries the plan command's flag values.
type PlanOptions struct {
	ConfigPath string
	Format     string
}

// planOut is swapped in tests to capture output.
var planOut io.Writer = os.Stdout

// Plan validates the plan and prints the resolved apply order, or renders
// the dependency graph in DOT or Mermaid form.
func Plan(opts PlanOptions) error {
	resources, _, err := loadPlan(opts.ConfigPath)
	if err != nil {
		return err
	}

	ordered, err := plan.Order(resources)
	if err != nil {
		return err
	}

	switch opts.Format {
	case "", "text":
		printOrder(planOut, ordered)
	case "dot":
		fmt.Fprint(planOut, plan.DOT(ordered))
	case "mermaid":
		fmt.Fprint(planOut, plan.Mermaid(ordered))
	default:
		return fmt.Errorf("unknown format %q (expected text, dot or mermaid)", opts.Format)
	}
	return nil
}

func printOrder(out io.Writer, ordered []plan.Resource) {
	nameWidth := 0
	for _, r := range ordered {
		if len(r.Name) > nameWidth {
			nameWidth = len(r.Name)
		}
	}

	for i, r := range ordered {
		line := fmt.Sprintf("%2d. %-*s  %s", i+1, nameWidth, r.Name, r.Kind)
		if len(r.DependsOn) > 0 {
			line += fmt.Sprintf("  (after %s)", strings.Join(r.DependsOn, ", "))
		}
		fmt.Fprintln(out, line)
	}
}
