package cloudrun

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	run "google.golang.org/api/run/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/resources"
)

const (
	apiVersion = "serving.knative.dev/v1"
	kind       = "Service"

	minScaleAnnotation = "autoscaling.knative.dev/minScale"
	portName           = "http1"

	fingerprintLength = 8
)

var invalidRevisionCharacters = regexp.MustCompile("[^a-z0-9-]+")

// ServiceName is the Cloud Run service name of a target.
func ServiceName(target environment.Target) string {
	return environment.BaseName(target.App, target.Environment)
}

func parent(project string) string {
	return "namespaces/" + project
}

func serviceName(project, service string) string {
	return fmt.Sprintf("namespaces/%s/services/%s", project, service)
}

func iamResource(project, region, service string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", project, region, service)
}

// RevisionName returns the name of the revision serving a version.
// Cloud Run never changes a named revision, so the fingerprint of the revision
// template is part of the name.
func RevisionName(service, version, fingerprint string) string {
	suffix := strings.Trim(invalidRevisionCharacters.ReplaceAllString(strings.ToLower(version), "-"), "-")
	name := service + "-" + suffix
	maxLength := validation.DNS1035LabelMaxLength - len(fingerprint) - 1
	if len(name) > maxLength {
		name = strings.TrimRight(name[:maxLength], "-")
	}
	return name + "-" + fingerprint
}

func fingerprint(template *run.RevisionTemplate) (string, error) {
	data, err := json.Marshal(struct {
		Labels      map[string]string `json:"labels"`
		Annotations map[string]string `json:"annotations"`
		Spec        *run.RevisionSpec `json:"spec"`
	}{
		Labels:      template.Metadata.Labels,
		Annotations: template.Metadata.Annotations,
		Spec:        template.Spec,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLength], nil
}

// Build renders the Cloud Run service of a target.
// Probes follow the same policy as on Kubernetes.
func Build(target environment.Target, project string, annotations map[string]string) (*run.Service, error) {
	for _, quantity := range []string{target.Memory, target.CPULimit} {
		_, err := resource.ParseQuantity(quantity)
		if err != nil {
			return nil, failure.Errorf(failure.Configuration, "quantity %q: %w", quantity, err)
		}
	}

	name := ServiceName(target)

	env := make([]*run.EnvVar, 0, len(target.SecretNames))
	for _, secret := range target.SecretNames {
		env = append(env, &run.EnvVar{
			Name:  secret,
			Value: target.Secrets[secret],
		})
	}

	serviceAnnotations := make(map[string]string, len(annotations))
	for k, v := range annotations {
		serviceAnnotations[k] = v
	}

	template := &run.RevisionTemplate{
		Metadata: &run.ObjectMeta{
			Labels: map[string]string{
				resources.AppLabel:     target.App,
				resources.VersionLabel: target.Version,
			},
			Annotations: map[string]string{
				minScaleAnnotation: strconv.Itoa(target.Replicas),
			},
		},
		Spec: &run.RevisionSpec{
			Containers: []*run.Container{
				{
					Image: target.Image(),
					Env:   env,
					Ports: []*run.ContainerPort{
						{
							Name:          portName,
							ContainerPort: int64(target.Port),
						},
					},
					Resources: &run.ResourceRequirements{
						Limits: map[string]string{
							"memory": target.Memory,
							"cpu":    target.CPULimit,
						},
					},
					LivenessProbe: &run.Probe{
						HttpGet: &run.HTTPGetAction{
							Path: target.HealthPath,
						},
						InitialDelaySeconds: int64(resources.Seconds(resources.Probes.InitialDelay)),
						PeriodSeconds:       int64(resources.Seconds(resources.Probes.Period)),
						TimeoutSeconds:      int64(resources.Seconds(resources.Probes.Timeout)),
						FailureThreshold:    int64(resources.Probes.FailureThreshold),
					},
				},
			},
		},
	}

	fp, err := fingerprint(template)
	if err != nil {
		return nil, failure.Errorf(failure.Internal, "fingerprint revision template: %w", err)
	}
	template.Metadata.Name = RevisionName(name, target.Version, fp)

	return &run.Service{
		ApiVersion: apiVersion,
		Kind:       kind,
		Metadata: &run.ObjectMeta{
			Name:        name,
			Namespace:   project,
			Annotations: serviceAnnotations,
			Labels: map[string]string{
				resources.AppLabel: target.App,
			},
		},
		Spec: &run.ServiceSpec{
			Template: template,
		},
	}, nil
}
