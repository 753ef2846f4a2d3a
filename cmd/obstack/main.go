// Package main is the entry point for the obstack CLI.
//
// obstack bootstraps an application stack onto a Kubernetes cluster from a
// declarative plan: resources, their dependencies, and readiness checks. It
// applies resources in dependency order, waits for each readiness barrier,
// and reports a terminal state for every resource.
//
// Commands: apply, plan, version, completion.
//
// For detailed usage information, run:
//
//	obstack --help
package main

import (
	"fmt"
	"os"

	"github.com/obstack/obstack/cmd/obstack/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
