package k8s

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/obstack/obstack/internal/plan"
)

// CheckReady evaluates one readiness policy. It returns whether the target is
// ready right now; transient lookup failures report not-ready rather than an
// error so the poll loop keeps going until its timeout.
func (c *Client) CheckReady(ctx context.Context, r plan.Readiness) (bool, error) {
	switch r.Type {
	case plan.ReadinessNone:
		return true, nil
	case plan.ReadinessNamespaceExists:
		return c.namespaceExists(ctx, r.Name)
	case plan.ReadinessDeploymentAvailable:
		return c.deploymentAvailable(ctx, r.Namespace, r.Name)
	case plan.ReadinessPodsReady:
		return c.podsReady(ctx, r.Namespace, r.Selector)
	case plan.ReadinessServiceEndpoints:
		return c.hasReadyEndpoints(ctx, r.Namespace, r.Name)
	default:
		return false, fmt.Errorf("unknown readiness check type: %q", r.Type)
	}
}

func (c *Client) namespaceExists(ctx context.Context, name string) (bool, error) {
	ns := &corev1.Namespace{}
	if err := c.reader.Get(ctx, client.ObjectKey{Name: name}, ns); err != nil {
		return false, nil
	}
	return ns.Status.Phase != corev1.NamespaceTerminating, nil
}

func (c *Client) deploymentAvailable(ctx context.Context, namespace, name string) (bool, error) {
	deploy := &appsv1.Deployment{}
	if err := c.reader.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, deploy); err != nil {
		return false, nil
	}

	desired := int32(1)
	if deploy.Spec.Replicas != nil {
		desired = *deploy.Spec.Replicas
	}
	if deploy.Status.UpdatedReplicas < desired || deploy.Status.ReadyReplicas < desired {
		return false, nil
	}

	for _, cond := range deploy.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable && cond.Status == corev1.ConditionTrue {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) podsReady(ctx context.Context, namespace, selector string) (bool, error) {
	sel, err := labels.Parse(selector)
	if err != nil {
		return false, fmt.Errorf("invalid label selector %q: %w", selector, err)
	}

	pods := &corev1.PodList{}
	listOpts := []client.ListOption{client.MatchingLabelsSelector{Selector: sel}}
	if namespace != "" {
		listOpts = append(listOpts, client.InNamespace(namespace))
	}
	if err := c.reader.List(ctx, pods, listOpts...); err != nil {
		return false, nil
	}

	if len(pods.Items) == 0 {
		return false, nil
	}
	for i := range pods.Items {
		if !isPodReady(&pods.Items[i]) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Client) hasReadyEndpoints(ctx context.Context, namespace, serviceName string) (bool, error) {
	endpoints := &corev1.Endpoints{}
	if err := c.reader.Get(ctx, client.ObjectKey{Namespace: namespace, Name: serviceName}, endpoints); err != nil {
		return false, nil // Service doesn't exist yet
	}

	for _, subset := range endpoints.Subsets {
		if len(subset.Addresses) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// isPodReady checks if a pod is running with the Ready condition true.
func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
