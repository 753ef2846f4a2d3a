package commands

import (
	"github.com/spf13/cobra"

	"github.com/obstack/obstack/cmd/obstack/handlers"
)

// Plan returns the command that prints the resolved apply order without
// touching the cluster.
func Plan() *cobra.Command {
	var opts handlers.PlanOptions

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resolved apply order and dependency graph",
		Long: `Validate the plan and print the order resources would be applied in.

The plan is rejected with a descriptive error when it contains duplicate
names, references to undeclared resources, or dependency cycles.

Examples:
  # Print the apply order of obstack.yaml (or the built-in stack)
  obstack plan

  # Render the dependency graph for Graphviz
  obstack plan --format dot | dot -Tsvg -o plan.svg

  # Render a Mermaid diagram for documentation
  obstack plan --format mermaid`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to plan file (default: obstack.yaml)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "Output format: text, dot or mermaid")

	return cmd
}
