// Package stack ships the built-in deployment plan: a single-node logging
// and monitoring stack (backend service, Elasticsearch, Logstash, Prometheus,
// Grafana, node-exporter). Manifests are embedded at build time; the plan
// wires them with the dependencies and readiness checks the stack needs to
// come up in order.
package stack

import (
	"embed"
	"fmt"
	"time"

	"github.com/obstack/obstack/internal/plan"
)

//go:embed manifests/*.yaml
var manifestsFS embed.FS

// Readiness defaults for the built-in plan. Elasticsearch gets a larger
// budget since it is the slowest component to start on a small node.
const (
	defaultTimeout       = 3 * time.Minute
	elasticsearchTimeout = 5 * time.Minute
	pollInterval         = 5 * time.Second
)

// Resources returns the built-in deployment plan.
func Resources() []plan.Resource {
	return []plan.Resource{
		{
			Name:     "logging-namespace",
			Kind:     plan.KindNamespace,
			Manifest: manifest("logging-namespace.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessNamespaceExists,
				Name:         "logging",
				Timeout:      30 * time.Second,
				PollInterval: 2 * time.Second,
			},
		},
		{
			Name:     "monitoring-namespace",
			Kind:     plan.KindNamespace,
			Manifest: manifest("monitoring-namespace.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessNamespaceExists,
				Name:         "monitoring",
				Timeout:      30 * time.Second,
				PollInterval: 2 * time.Second,
			},
		},
		{
			Name:      "elasticsearch",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"logging-namespace"},
			Manifest:  manifest("elasticsearch.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Namespace:    "logging",
				Name:         "elasticsearch",
				Timeout:      elasticsearchTimeout,
				PollInterval: pollInterval,
			},
		},
		{
			Name:      "logstash-config",
			Kind:      plan.KindConfigMap,
			DependsOn: []string{"logging-namespace"},
			Manifest:  manifest("logstash-config.yaml"),
		},
		{
			Name:      "logstash",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"logstash-config", "elasticsearch"},
			Manifest:  manifest("logstash.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessServiceEndpoints,
				Namespace:    "logging",
				Name:         "logstash",
				Timeout:      defaultTimeout,
				PollInterval: pollInterval,
			},
		},
		{
			Name:      "backend",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"logstash"},
			Manifest:  manifest("backend.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Namespace:    "default",
				Name:         "backend",
				Timeout:      defaultTimeout,
				PollInterval: pollInterval,
			},
		},
		{
			Name:      "backend-ingress",
			Kind:      plan.KindIngress,
			DependsOn: []string{"backend"},
			Manifest:  manifest("backend-ingress.yaml"),
		},
		{
			Name:      "prometheus-rbac",
			Kind:      plan.KindClusterRoleBinding,
			DependsOn: []string{"monitoring-namespace"},
			Manifest:  manifest("prometheus-rbac.yaml"),
		},
		{
			Name:      "prometheus-config",
			Kind:      plan.KindConfigMap,
			DependsOn: []string{"monitoring-namespace"},
			Manifest:  manifest("prometheus-config.yaml"),
		},
		{
			Name:      "prometheus",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"prometheus-rbac", "prometheus-config"},
			Manifest:  manifest("prometheus.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Namespace:    "monitoring",
				Name:         "prometheus",
				Timeout:      defaultTimeout,
				PollInterval: pollInterval,
			},
		},
		{
			Name:      "node-exporter",
			Kind:      plan.KindDaemonSet,
			DependsOn: []string{"monitoring-namespace"},
			Manifest:  manifest("node-exporter.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessPodsReady,
				Namespace:    "monitoring",
				Selector:     "app=node-exporter",
				Timeout:      defaultTimeout,
				PollInterval: pollInterval,
			},
		},
		{
			Name:      "grafana-datasources",
			Kind:      plan.KindConfigMap,
			DependsOn: []string{"monitoring-namespace"},
			Manifest:  manifest("grafana-datasources.yaml"),
		},
		{
			Name:      "grafana",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"grafana-datasources", "prometheus"},
			Manifest:  manifest("grafana.yaml"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Namespace:    "monitoring",
				Name:         "grafana",
				Timeout:      defaultTimeout,
				PollInterval: pollInterval,
			},
		},
	}
}

func manifest(name string) []byte {
	data, err := manifestsFS.ReadFile("manifests/" + name)
	if err != nil {
		// Embedded files are fixed at build time; a miss is a packaging bug.
		panic(fmt.Sprintf("embedded manifest %s: %v", name, err))
	}
	return data
}
