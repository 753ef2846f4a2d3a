// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obstack/obstack/internal/bootstrap"
	"github.com/obstack/obstack/internal/config"
	"github.com/obstack/obstack/internal/k8s"
	"github.com/obstack/obstack/internal/plan"
	"github.com/obstack/obstack/internal/stack"
	"github.com/obstack/obstack/internal/ui"
)

// ErrBootstrapIncomplete is returned when the run finished but at least one
// resource did not reach Ready. It maps to a non-zero exit status.
var ErrBootstrapIncomplete = errors.New("not all resources became ready")

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newCluster builds the cluster client from kubeconfig bytes.
	newCluster = func(kubeconfig []byte, opts ...k8s.Option) (bootstrap.Cluster, error) {
		return k8s.NewFromKubeconfig(kubeconfig, opts...)
	}

	// loadConfigFile loads a plan file from disk.
	loadConfigFile = config.LoadFile

	// stackResources returns the built-in plan.
	stackResources = stack.Resources

	// readFile reads the kubeconfig.
	readFile = os.ReadFile

	// newObserver builds the run observer.
	newObserver = func() bootstrap.Observer { return bootstrap.NewConsoleObserver() }
)

// ApplyOptions carries the apply command's flag values.
type ApplyOptions struct {
	ConfigPath   string
	Kubeconfig   string
	Timeout      time.Duration
	PollInterval time.Duration
	Parallelism  int
	FailFast     bool
	DryRun       bool
	MetricsAddr  string
	NoColor      bool
}

// Apply loads the plan, applies it to the cluster in dependency order, and
// renders the run report.
//
// The plan comes from --config when given, otherwise from obstack.yaml in
// the current directory, otherwise from the built-in stack. The function
// returns ErrBootstrapIncomplete when the run finished but some resource
// ended in a non-ready terminal state, so the process exits non-zero exactly
// when not everything is Ready.
func Apply(ctx context.Context, opts ApplyOptions) error {
	resources, cfg, err := loadPlan(opts.ConfigPath)
	if err != nil {
		return err
	}

	cluster, err := buildCluster(opts, cfg)
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr)
		defer stop()
	}

	bootstrapper := bootstrap.New(cluster, newObserver(), runOptions(opts, cfg))

	report, err := bootstrapper.Run(ctx, resources)
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	ui.NewRenderer(os.Stdout, opts.NoColor).Render(report)

	if !report.Succeeded() {
		return ErrBootstrapIncomplete
	}
	return nil
}

// loadPlan resolves the plan source. The returned config is nil when the
// built-in stack is used.
func loadPlan(configPath string) ([]plan.Resource, *config.Config, error) {
	if configPath == "" {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			configPath = config.DefaultFileName
		}
	}

	if configPath == "" {
		log.Printf("No %s found, using the built-in stack", config.DefaultFileName)
		return stackResources(), nil, nil
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	resources, err := cfg.PlanResources()
	if err != nil {
		return nil, nil, err
	}

	log.Printf("Using plan: %s (%d resources)", configPath, len(resources))
	return resources, cfg, nil
}

func buildCluster(opts ApplyOptions, cfg *config.Config) (bootstrap.Cluster, error) {
	path, err := kubeconfigPath(opts, cfg)
	if err != nil {
		return nil, err
	}

	kubeconfig, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig %s: %w", path, err)
	}

	clientOpts := []k8s.Option{k8s.WithDryRun(opts.DryRun)}
	if cfg != nil && cfg.Cluster.FieldManager != "" {
		clientOpts = append(clientOpts, k8s.WithFieldManager(cfg.Cluster.FieldManager))
	}

	cluster, err := newCluster(kubeconfig, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster client: %w", err)
	}
	return cluster, nil
}

// kubeconfigPath resolves where to read cluster credentials from: the
// --kubeconfig flag, then the plan file, then KUBECONFIG, then the standard
// location under the home directory.
func kubeconfigPath(opts ApplyOptions, cfg *config.Config) (string, error) {
	if opts.Kubeconfig != "" {
		return opts.Kubeconfig, nil
	}
	if cfg != nil && cfg.Cluster.Kubeconfig != "" {
		return cfg.Cluster.Kubeconfig, nil
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no kubeconfig given and home directory unknown: %w", err)
	}
	return filepath.Join(home, ".kube", "config"), nil
}

// runOptions merges flag values over the plan file's defaults. Zero flag
// values leave the file's defaults in place; zero file values fall through to
// the built-in defaults.
func runOptions(opts ApplyOptions, cfg *config.Config) bootstrap.Options {
	run := bootstrap.Options{
		Timeout:      opts.Timeout,
		PollInterval: opts.PollInterval,
		Parallelism:  opts.Parallelism,
		FailFast:     opts.FailFast,
		DryRun:       opts.DryRun,
	}
	if cfg == nil {
		return run
	}

	if run.Timeout <= 0 {
		run.Timeout = cfg.Defaults.Timeout
	}
	if run.PollInterval <= 0 {
		run.PollInterval = cfg.Defaults.PollInterval
	}
	if run.Parallelism <= 0 {
		run.Parallelism = cfg.Defaults.Parallelism
	}
	run.ApplyAttempts = cfg.Defaults.ApplyAttempts
	return run
}

// serveMetrics exposes the Prometheus registry for the duration of the run.
// The returned function shuts the listener down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
