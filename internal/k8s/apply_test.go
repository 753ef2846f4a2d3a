package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/restmapper"
	ctrlfake "sigs.k8s.io/controller-runtime/pkg/client/fake"
)

// Note: Server-Side Apply needs a real API server or sophisticated fakes.
// These tests cover decoding, validation, and the dry-run path.

func TestApply_EmptyManifest(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	err := client.Apply(context.Background(), []byte(``))
	require.NoError(t, err)
}

func TestApply_InvalidYAML(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	err := client.Apply(context.Background(), []byte(`{invalid yaml: [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode manifest")
}

func TestApply_EmptyDocumentsSkipped(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	err := client.Apply(context.Background(), []byte("---\n---\n---\n"))
	require.NoError(t, err)
}

func TestApply_MissingName(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, WithDryRun(true))

	manifest := []byte(`apiVersion: v1
kind: ConfigMap
metadata:
  namespace: default
`)

	err := client.Apply(context.Background(), manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

func TestApply_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, WithDryRun(true))

	manifest := []byte(`apiVersion: v1
kind: ConfigMap
metadata:
  name: logstash-pipeline
  namespace: logging
data:
  pipeline.conf: "input { tcp { port => 5044 } }"
---
apiVersion: v1
kind: Namespace
metadata:
  name: logging
`)

	err := client.Apply(context.Background(), manifest)
	require.NoError(t, err)
}

func TestApply_DryRunStillValidatesDocuments(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, WithDryRun(true))

	// Second document is broken; dry-run must still surface it.
	manifest := []byte(`apiVersion: v1
kind: ConfigMap
metadata:
  name: ok
---
{broken: [
`)

	err := client.Apply(context.Background(), manifest)
	require.Error(t, err)
}

func TestNewFromKubeconfig_InvalidKubeconfig(t *testing.T) {
	t.Parallel()
	_, err := NewFromKubeconfig([]byte(`invalid kubeconfig content`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create REST config")
}

func TestNewFromKubeconfig_Empty(t *testing.T) {
	t.Parallel()
	_, err := NewFromKubeconfig(nil)
	require.Error(t, err)
}

// newTestClient builds a Client backed entirely by fakes.
func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()

	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, appsv1.AddToScheme(scheme))

	dynamicClient := dynamicfake.NewSimpleDynamicClient(scheme)
	reader := ctrlfake.NewClientBuilder().WithScheme(scheme).Build()

	return NewFromClients(dynamicClient, newTestMapper(), reader, opts...)
}

// newTestMapper covers the kinds the default stack uses.
func newTestMapper() meta.RESTMapper {
	resources := []*restmapper.APIGroupResources{
		{
			Group: metav1.APIGroup{
				Name: "",
				Versions: []metav1.GroupVersionForDiscovery{
					{GroupVersion: "v1", Version: "v1"},
				},
				PreferredVersion: metav1.GroupVersionForDiscovery{
					GroupVersion: "v1",
					Version:      "v1",
				},
			},
			VersionedResources: map[string][]metav1.APIResource{
				"v1": {
					{Name: "namespaces", Namespaced: false, Kind: "Namespace"},
					{Name: "configmaps", Namespaced: true, Kind: "ConfigMap"},
					{Name: "services", Namespaced: true, Kind: "Service"},
					{Name: "pods", Namespaced: true, Kind: "Pod"},
				},
			},
		},
		{
			Group: metav1.APIGroup{
				Name: "apps",
				Versions: []metav1.GroupVersionForDiscovery{
					{GroupVersion: "apps/v1", Version: "v1"},
				},
				PreferredVersion: metav1.GroupVersionForDiscovery{
					GroupVersion: "apps/v1",
					Version:      "v1",
				},
			},
			VersionedResources: map[string][]metav1.APIResource{
				"v1": {
					{Name: "deployments", Namespaced: true, Kind: "Deployment"},
					{Name: "daemonsets", Namespaced: true, Kind: "DaemonSet"},
				},
			},
		},
	}

	return restmapper.NewDiscoveryRESTMapper(resources)
}
