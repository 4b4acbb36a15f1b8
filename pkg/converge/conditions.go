package converge

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/nais/promote/pkg/failure"
)

const progressDeadlineExceeded = "ProgressDeadlineExceeded"

// RolloutComplete holds once every desired replica of a deployment is updated and available.
// A rollout that exceeded its progress deadline fails the wait.
func RolloutComplete(client kubernetes.Interface, namespace, name string) Condition {
	return func(ctx context.Context) (bool, string, error) {
		deploy, err := client.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			return false, "deployment not found", nil
		} else if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}

		for _, condition := range deploy.Status.Conditions {
			if condition.Type == appsv1.DeploymentProgressing && condition.Reason == progressDeadlineExceeded {
				return false, "", failure.Errorf(failure.Rollout, "rollout of deployment %s/%s failed: %s", namespace, name, condition.Message)
			}
		}

		observed := fmt.Sprintf("%d/%d replicas updated, %d available, generation %d/%d",
			deploy.Status.UpdatedReplicas,
			desiredReplicas(deploy),
			deploy.Status.AvailableReplicas,
			deploy.Status.ObservedGeneration,
			deploy.Generation,
		)

		return deploymentComplete(deploy, &deploy.Status), observed, nil
	}
}

// PodGeneration holds once every pod of an application is running the given version.
func PodGeneration(client kubernetes.Interface, namespace, app, appLabel, versionLabel, version string) Condition {
	selector := labels.SelectorFromSet(labels.Set{appLabel: app}).String()

	return func(ctx context.Context) (bool, string, error) {
		pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: selector,
		})
		if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}

		generation := ObserveGeneration(pods.Items, versionLabel)
		return generation.ConvergedOn(version), generation.String(), nil
	}
}

// ServiceAddress holds once the load balancer of a service has an external address.
// The observation is the address.
func ServiceAddress(client kubernetes.Interface, namespace, name string) Condition {
	return func(ctx context.Context) (bool, string, error) {
		svc, err := client.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			return false, "service not found", nil
		} else if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}
		address := loadBalancerAddress(svc.Status.LoadBalancer.Ingress)
		return len(address) > 0, address, nil
	}
}

// IngressAddress holds once an ingress has an external address.
// The observation is the address.
func IngressAddress(client kubernetes.Interface, namespace, name string) Condition {
	return func(ctx context.Context) (bool, string, error) {
		ing, err := client.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			return false, "ingress not found", nil
		} else if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}
		address := ingressAddress(ing.Status.LoadBalancer.Ingress)
		return len(address) > 0, address, nil
	}
}

func loadBalancerAddress(ingress []corev1.LoadBalancerIngress) string {
	for _, lb := range ingress {
		if len(lb.IP) > 0 {
			return lb.IP
		}
		if len(lb.Hostname) > 0 {
			return lb.Hostname
		}
	}
	return ""
}

func ingressAddress(ingress []networkingv1.IngressLoadBalancerIngress) string {
	for _, lb := range ingress {
		if len(lb.IP) > 0 {
			return lb.IP
		}
		if len(lb.Hostname) > 0 {
			return lb.Hostname
		}
	}
	return ""
}

func desiredReplicas(deployment *appsv1.Deployment) int32 {
	if deployment.Spec.Replicas == nil {
		return 1
	}
	return *deployment.Spec.Replicas
}

// deploymentComplete considers a deployment to be complete once all of its desired replicas
// are updated and available, and no old pods are running.
//
// Adapted from
// https://github.com/kubernetes/kubernetes/blob/74bcefc8b2bf88a2f5816336999b524cc48cf6c0/pkg/controller/deployment/util/deployment_util.go#L745
func deploymentComplete(deployment *appsv1.Deployment, newStatus *appsv1.DeploymentStatus) bool {
	replicas := desiredReplicas(deployment)
	return newStatus.UpdatedReplicas == replicas &&
		newStatus.Replicas == replicas &&
		newStatus.AvailableReplicas == replicas &&
		newStatus.ObservedGeneration >= deployment.Generation
}
