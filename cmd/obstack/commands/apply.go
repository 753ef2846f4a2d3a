package commands

import (
	"github.com/spf13/cobra"

	"github.com/obstack/obstack/cmd/obstack/handlers"
)

// Apply returns the command that applies a plan to the cluster.
//
// Each resource is applied after its dependencies are Ready, then its
// readiness check is polled until it passes or the per-resource timeout
// expires. The exit status is zero only when every resource reaches Ready.
//
// Optional flags:
//
//	--config, -c: Path to plan YAML file (default: obstack.yaml, falling
//	              back to the built-in stack when no file exists)
//	--kubeconfig: Path to kubeconfig (default: KUBECONFIG, then ~/.kube/config)
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the plan and wait for every resource to become ready",
		Long: `Apply the plan to the cluster in dependency order.

Resources are applied with Server-Side Apply, so re-running against a
partially bootstrapped cluster converges instead of failing on existing
objects. A resource whose dependency did not become ready is skipped;
independent branches keep running unless --fail-fast is set.

If no config file is specified, obstack looks for obstack.yaml in the
current directory and falls back to the built-in logging and monitoring
stack.

Examples:
  # Apply obstack.yaml (or the built-in stack) to the current cluster
  obstack apply

  # Apply a specific plan with a tighter readiness budget
  obstack apply -c production.yaml --timeout 2m

  # Validate manifests without touching the cluster
  obstack apply --dry-run

  # Apply up to four independent resources concurrently
  obstack apply --parallel 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to plan file (default: obstack.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: KUBECONFIG, then ~/.kube/config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Default per-resource readiness timeout")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "Default interval between readiness polls")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 0, "Maximum concurrent applies (default 1)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Abort the whole run on the first failure")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Decode and validate manifests without contacting the cluster")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "Disable styled output")

	return cmd
}
