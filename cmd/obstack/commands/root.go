// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the obstack CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obstack",
		Short: "Bootstrap an application stack onto Kubernetes in dependency order",
	}

	cmd.AddCommand(Apply())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
