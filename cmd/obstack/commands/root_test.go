package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "obstack", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "apply")
	assert.Contains(t, names, "plan")
	assert.Contains(t, names, "version")
	assert.Contains(t, names, "completion")
}

func TestApplyFlags(t *testing.T) {
	cmd := Apply()

	require.NotNil(t, cmd.RunE, "apply command should have RunE function")

	for _, name := range []string{
		"config", "kubeconfig", "timeout", "poll-interval",
		"parallel", "fail-fast", "dry-run", "metrics-addr", "no-color",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s should exist", name)
	}

	config := cmd.Flags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)

	// The client never contacts the server in dry-run mode; the help text
	// must not promise server-side validation.
	dryRun := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "Decode and validate manifests without contacting the cluster", dryRun.Usage)
}

func TestPlanFlags(t *testing.T) {
	cmd := Plan()

	require.NotNil(t, cmd.RunE, "plan command should have RunE function")
	assert.NotNil(t, cmd.Flags().Lookup("config"))

	format := cmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}
