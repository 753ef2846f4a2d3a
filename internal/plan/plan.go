// Package plan defines the deployment plan model: the set of resources to
// apply, their declared dependencies, and the readiness policy attached to
// each resource. It computes a reproducible apply order from the dependency
// graph and validates the plan before anything touches the cluster.
package plan

import (
	"time"
)

// Kind identifies the cluster object type a resource maps to.
type Kind string

// Resource kinds known to the bootstrapper. The manifest payload is opaque;
// the kind is used for reporting and for picking readiness defaults.
const (
	KindNamespace          Kind = "Namespace"
	KindConfigMap          Kind = "ConfigMap"
	KindDeployment         Kind = "Deployment"
	KindDaemonSet          Kind = "DaemonSet"
	KindService            Kind = "Service"
	KindIngress            Kind = "Ingress"
	KindClusterRoleBinding Kind = "ClusterRoleBinding"
)

// ReadinessType selects the polled predicate used to decide when a resource
// is operationally usable.
type ReadinessType string

const (
	// ReadinessNone skips the readiness barrier; the resource is Ready as
	// soon as the apply succeeds.
	ReadinessNone ReadinessType = "none"
	// ReadinessNamespaceExists waits until the namespace object exists.
	ReadinessNamespaceExists ReadinessType = "namespaceExists"
	// ReadinessDeploymentAvailable waits for the Deployment's Available
	// condition with all desired replicas updated and ready.
	ReadinessDeploymentAvailable ReadinessType = "deploymentAvailable"
	// ReadinessPodsReady waits for all pods matching a label selector to be
	// running and ready. At least one pod must match.
	ReadinessPodsReady ReadinessType = "podsReady"
	// ReadinessServiceEndpoints waits for a service to have at least one
	// ready endpoint address.
	ReadinessServiceEndpoints ReadinessType = "serviceEndpoints"
)

// Readiness is the polled readiness policy for one resource.
type Readiness struct {
	Type ReadinessType

	// Timeout bounds the total wait; zero means the run default.
	Timeout time.Duration
	// PollInterval is the sleep between polls; zero means the run default.
	PollInterval time.Duration

	// Namespace and Name identify the object to poll. For PodsReady the
	// Selector is used instead of Name.
	Namespace string
	Name      string
	Selector  string
}

// Resource is one deployable unit tracked by the bootstrapper.
type Resource struct {
	Name      string
	Kind      Kind
	DependsOn []string
	Readiness Readiness

	// Manifest is the rendered configuration payload, applied verbatim.
	// The plan layer never interprets its contents.
	Manifest []byte
}

// Validate checks structural plan invariants: unique resource names and
// dependency references that resolve to declared resources. It runs before
// ordering so that Order can assume a well-formed input.
func Validate(resources []Resource) error {
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if r.Name == "" {
			return ErrEmptyName
		}
		if _, dup := seen[r.Name]; dup {
			return DuplicateResourceError{Name: r.Name}
		}
		seen[r.Name] = struct{}{}
	}
	for _, r := range resources {
		for _, dep := range r.DependsOn {
			if _, ok := seen[dep]; !ok {
				return UnknownDependencyError{Resource: r.Name, Missing: dep}
			}
			if dep == r.Name {
				return CycleError{Path: []string{r.Name, r.Name}}
			}
		}
	}
	return nil
}
