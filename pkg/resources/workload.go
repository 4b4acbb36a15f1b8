package resources

import (
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
)

func namespace(target environment.Target) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Namespace",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: target.Namespace,
			Labels: map[string]string{
				AppLabel: target.App,
			},
		},
	}
}

func (b Builder) deployment(target environment.Target) (*appsv1.Deployment, error) {
	memory, err := resource.ParseQuantity(target.Memory)
	if err != nil {
		return nil, failure.Errorf(failure.Configuration, "memory %q: %w", target.Memory, err)
	}
	cpu, err := resource.ParseQuantity(target.CPU)
	if err != nil {
		return nil, failure.Errorf(failure.Configuration, "cpu %q: %w", target.CPU, err)
	}
	cpuLimit, err := resource.ParseQuantity(target.CPULimit)
	if err != nil {
		return nil, failure.Errorf(failure.Configuration, "cpu_limit %q: %w", target.CPULimit, err)
	}

	annotations := b.annotations()
	annotations[ChangeCauseAnnotation] = changeCause(target, b.Annotations)

	env := make([]corev1.EnvVar, 0, len(target.SecretNames))
	for _, name := range target.SecretNames {
		env = append(env, corev1.EnvVar{
			Name:  name,
			Value: target.Secrets[name],
		})
	}

	probe := &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: target.HealthPath,
				Port: intstr.FromString(portName),
			},
		},
		InitialDelaySeconds: Seconds(Probes.InitialDelay),
		PeriodSeconds:       Seconds(Probes.Period),
		TimeoutSeconds:      Seconds(Probes.Timeout),
		FailureThreshold:    Probes.FailureThreshold,
		SuccessThreshold:    Probes.SuccessThreshold,
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        target.App,
			Namespace:   target.Namespace,
			Annotations: annotations,
			Labels: map[string]string{
				AppLabel: target.App,
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(target.Replicas)),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{
					AppLabel: target.App,
				},
			},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxSurge:       ptr.To(intstr.FromInt32(maxSurge)),
					MaxUnavailable: ptr.To(intstr.FromInt32(maxUnavailable)),
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						AppLabel:     target.App,
						VersionLabel: target.Version,
					},
				},
				Spec: corev1.PodSpec{
					TerminationGracePeriodSeconds: ptr.To(int64(Seconds(terminationGracePeriod))),
					Containers: []corev1.Container{
						{
							Name:  containerName,
							Image: target.Image(),
							Ports: []corev1.ContainerPort{
								{
									Name:          portName,
									ContainerPort: int32(target.Port),
									Protocol:      corev1.ProtocolTCP,
								},
							},
							Env: env,
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory: memory,
									corev1.ResourceCPU:    cpu,
								},
								Limits: corev1.ResourceList{
									corev1.ResourceMemory: memory,
									corev1.ResourceCPU:    cpuLimit,
								},
							},
							LivenessProbe:  probe.DeepCopy(),
							ReadinessProbe: probe.DeepCopy(),
							Lifecycle: &corev1.Lifecycle{
								PreStop: &corev1.LifecycleHandler{
									Exec: &corev1.ExecAction{
										Command: []string{"sleep", strconv.Itoa(int(Seconds(preStopSleep)))},
									},
								},
							},
						},
					},
				},
			},
		},
	}, nil
}
