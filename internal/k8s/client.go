// Package k8s implements the cluster collaborator: Server-Side Apply of
// opaque manifest payloads and the status reads backing readiness checks.
package k8s

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// DefaultFieldManager identifies this tool as the Server-Side Apply actor.
const DefaultFieldManager = "obstack"

// Client applies manifests and answers readiness queries against one cluster.
type Client struct {
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
	reader        client.Reader

	fieldManager string
	dryRun       bool
	log          logr.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFieldManager overrides the Server-Side Apply field manager.
func WithFieldManager(name string) Option {
	return func(c *Client) { c.fieldManager = name }
}

// WithDryRun makes Apply decode and validate manifests without writing
// anything to the cluster.
func WithDryRun(enabled bool) Option {
	return func(c *Client) { c.dryRun = enabled }
}

// WithLogger sets the logger used for per-object apply traces.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewFromKubeconfig creates a Client from kubeconfig bytes, avoiding any
// temporary file on disk.
func NewFromKubeconfig(kubeconfig []byte, opts ...Option) (*Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}
	mapper := restmapper.NewDiscoveryRESTMapper(groupResources)

	reader, err := client.New(restConfig, client.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return newClient(dynamicClient, mapper, reader, opts...), nil
}

// NewFromClients creates a Client from pre-built clients. Used by tests with
// fake implementations.
func NewFromClients(dynamicClient dynamic.Interface, mapper meta.RESTMapper, reader client.Reader, opts ...Option) *Client {
	return newClient(dynamicClient, mapper, reader, opts...)
}

func newClient(dynamicClient dynamic.Interface, mapper meta.RESTMapper, reader client.Reader, opts ...Option) *Client {
	c := &Client{
		dynamicClient: dynamicClient,
		mapper:        mapper,
		reader:        reader,
		fieldManager:  DefaultFieldManager,
		log:           logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
