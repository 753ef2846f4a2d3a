// Package config loads and validates the deployment plan file: cluster
// access settings, run defaults, and the declared resource set with manifest
// references.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/obstack/obstack/internal/plan"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = "obstack.yaml"

// Config holds one deployment plan.
type Config struct {
	Cluster   ClusterConfig    `mapstructure:"cluster" yaml:"cluster"`
	Defaults  DefaultsConfig   `mapstructure:"defaults" yaml:"defaults"`
	Resources []ResourceConfig `mapstructure:"resources" yaml:"resources"`

	// baseDir anchors relative manifest paths; set by LoadFile.
	baseDir string
}

// ClusterConfig holds cluster access settings.
type ClusterConfig struct {
	// Kubeconfig is the path to the kubeconfig file. Empty means the
	// standard lookup (KUBECONFIG, then ~/.kube/config).
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig"`

	// FieldManager identifies this tool in Server-Side Apply. Defaults to
	// "obstack".
	FieldManager string `mapstructure:"field_manager" yaml:"field_manager"`
}

// DefaultsConfig holds run-wide defaults, overridable per resource.
type DefaultsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Parallelism   int           `mapstructure:"parallelism" yaml:"parallelism"`
	ApplyAttempts int           `mapstructure:"apply_attempts" yaml:"apply_attempts"`
}

// ResourceConfig declares one resource in the plan file.
type ResourceConfig struct {
	Name      string          `mapstructure:"name" yaml:"name"`
	Kind      string          `mapstructure:"kind" yaml:"kind"`
	DependsOn []string        `mapstructure:"depends_on" yaml:"depends_on"`
	Manifest  string          `mapstructure:"manifest" yaml:"manifest"`
	Readiness ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`
}

// ReadinessConfig declares the readiness policy for one resource.
type ReadinessConfig struct {
	Type         string        `mapstructure:"type" yaml:"type"`
	Namespace    string        `mapstructure:"namespace" yaml:"namespace"`
	Name         string        `mapstructure:"name" yaml:"name"`
	Selector     string        `mapstructure:"selector" yaml:"selector"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

var readinessTypes = map[string]plan.ReadinessType{
	"":                                        plan.ReadinessNone,
	string(plan.ReadinessNone):                plan.ReadinessNone,
	string(plan.ReadinessNamespaceExists):     plan.ReadinessNamespaceExists,
	string(plan.ReadinessDeploymentAvailable): plan.ReadinessDeploymentAvailable,
	string(plan.ReadinessPodsReady):           plan.ReadinessPodsReady,
	string(plan.ReadinessServiceEndpoints):    plan.ReadinessServiceEndpoints,
}

// LoadFile reads and parses the plan from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates plan bytes.
func Parse(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("config declares no resources")
	}
	for i, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("resource %d has no name", i)
		}
		if r.Manifest == "" {
			return fmt.Errorf("resource %s has no manifest path", r.Name)
		}
		if _, ok := readinessTypes[r.Readiness.Type]; !ok {
			return fmt.Errorf("resource %s has unknown readiness type %q", r.Name, r.Readiness.Type)
		}
	}
	// Structural graph checks (unique names, declared dependencies) run on
	// the converted resources so plan errors carry their typed values.
	resources := make([]plan.Resource, 0, len(c.Resources))
	for _, r := range c.Resources {
		resources = append(resources, plan.Resource{Name: r.Name, DependsOn: r.DependsOn})
	}
	return plan.Validate(resources)
}

// PlanResources materializes the declared resources, reading each manifest
// relative to the config file location.
func (c *Config) PlanResources() ([]plan.Resource, error) {
	resources := make([]plan.Resource, 0, len(c.Resources))
	for _, r := range c.Resources {
		manifestPath := r.Manifest
		if !filepath.IsAbs(manifestPath) && c.baseDir != "" {
			manifestPath = filepath.Join(c.baseDir, manifestPath)
		}
		manifest, err := os.ReadFile(manifestPath) //nolint:gosec // G304: path comes from the plan file
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest for %s: %w", r.Name, err)
		}

		resources = append(resources, plan.Resource{
			Name:      r.Name,
			Kind:      plan.Kind(r.Kind),
			DependsOn: r.DependsOn,
			Manifest:  manifest,
			Readiness: plan.Readiness{
				Type:         readinessTypes[r.Readiness.Type],
				Namespace:    r.Readiness.Namespace,
				Name:         r.Readiness.Name,
				Selector:     r.Readiness.Selector,
				Timeout:      r.Readiness.Timeout,
				PollInterval: r.Readiness.PollInterval,
			},
		})
	}
	return resources, nil
}
