package resources

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/nais/promote/pkg/environment"
)

func service(target environment.Target) *corev1.Service {
	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      target.App,
			Namespace: target.Namespace,
			Labels: map[string]string{
				AppLabel: target.App,
			},
		},
		Spec: corev1.ServiceSpec{
			Type: corev1.ServiceTypeLoadBalancer,
			Selector: map[string]string{
				AppLabel: target.App,
			},
			Ports: []corev1.ServicePort{
				{
					Name:       portName,
					Port:       ServicePort,
					TargetPort: intstr.FromInt32(int32(target.Port)),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}

	// Behind an ingress, the load balancer talks to the node ports and health checks
	// through the backend policy.
	if target.HasDomain() {
		svc.Spec.Type = corev1.ServiceTypeNodePort
		svc.Annotations = map[string]string{
			BackendConfigAnnotation: fmt.Sprintf(`{"default":"%s"}`, target.App),
		}
	}

	return svc
}

func ingress(target environment.Target) *networkingv1.Ingress {
	backend := networkingv1.IngressBackend{
		Service: &networkingv1.IngressServiceBackend{
			Name: target.App,
			Port: networkingv1.ServiceBackendPort{
				Number: ServicePort,
			},
		},
	}

	annotations := map[string]string{
		IngressClassAnnotation:        ingressClassGCE,
		ManagedCertificatesAnnotation: target.App,
	}
	if len(target.IngressIPName) > 0 {
		annotations[StaticIPAnnotation] = target.IngressIPName
	}

	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "networking.k8s.io/v1",
			Kind:       "Ingress",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        target.App,
			Namespace:   target.Namespace,
			Annotations: annotations,
			Labels: map[string]string{
				AppLabel: target.App,
			},
		},
		Spec: networkingv1.IngressSpec{
			DefaultBackend: backend.DeepCopy(),
			Rules: []networkingv1.IngressRule{
				{
					Host: target.Domain,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/*",
									PathType: ptr.To(networkingv1.PathTypeImplementationSpecific),
									Backend:  backend,
								},
							},
						},
					},
				},
			},
		},
	}
}

// There are no Go types for the GKE resources, so they are rendered as unstructured data.
// Numbers are int64 to survive deep copies.

func certificate(target environment.Target) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": CertificateGVR.GroupVersion().String(),
			"kind":       "ManagedCertificate",
			"metadata": map[string]any{
				"name":      target.App,
				"namespace": target.Namespace,
				"labels": map[string]any{
					AppLabel: target.App,
				},
			},
			"spec": map[string]any{
				"domains": []any{target.Domain},
			},
		},
	}
}

func backendPolicy(target environment.Target) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": BackendPolicyGVR.GroupVersion().String(),
			"kind":       "BackendConfig",
			"metadata": map[string]any{
				"name":      target.App,
				"namespace": target.Namespace,
				"labels": map[string]any{
					AppLabel: target.App,
				},
			},
			"spec": map[string]any{
				"healthCheck": map[string]any{
					"type":               "HTTP",
					"requestPath":        target.HealthPath,
					"checkIntervalSec":   int64(Seconds(Probes.Period)),
					"timeoutSec":         int64(Seconds(Probes.Timeout)),
					"healthyThreshold":   int64(Probes.SuccessThreshold),
					"unhealthyThreshold": int64(Probes.FailureThreshold),
				},
				"connectionDraining": map[string]any{
					"drainingTimeoutSec": int64(Seconds(preStopSleep)),
				},
			},
		},
	}
}
