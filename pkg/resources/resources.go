// Package resources renders the Kubernetes resources that make up one environment.
//
// Rendering has no side effects: the same target always yields byte-identical documents.
package resources

import (
	"fmt"
	"maps"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
)

// Description is a fully rendered resource, ready to be applied.
type Description struct {
	Kind      Kind
	Name      string
	Namespace string
	GVR       schema.GroupVersionResource
	Object    *unstructured.Unstructured
}

func (d Description) String() string {
	if len(d.Namespace) == 0 {
		return fmt.Sprintf("%s/%s", d.Kind, d.Name)
	}
	return fmt.Sprintf("%s/%s/%s", d.Kind, d.Namespace, d.Name)
}

// Builder renders resource descriptions.
type Builder struct {
	// Annotations are added to the Deployment.
	Annotations map[string]string
}

// Plan returns the kinds that make up a target, in the order they must be applied.
// The certificate and backend policy must exist before the service refers to them,
// and the ingress refers to the service.
func Plan(target environment.Target) []Kind {
	if target.HasDomain() {
		return []Kind{Namespace, Deployment, Certificate, BackendPolicy, Service, Ingress}
	}
	return []Kind{Namespace, Deployment, Service}
}

func (b Builder) Build(target environment.Target, kind Kind) (Description, error) {
	if kind.RequiresDomain() && !target.HasDomain() {
		return Description{}, failure.Errorf(failure.Configuration, "%s requires a domain, but none is configured for %s", kind, target.Name())
	}

	var obj *unstructured.Unstructured
	var err error

	switch kind {
	case Namespace:
		obj, err = toUnstructured(namespace(target))
	case Deployment:
		var deploy runtime.Object
		deploy, err = b.deployment(target)
		if err != nil {
			return Description{}, err
		}
		obj, err = toUnstructured(deploy)
	case Service:
		obj, err = toUnstructured(service(target))
	case Ingress:
		obj, err = toUnstructured(ingress(target))
	case Certificate:
		obj = certificate(target)
	case BackendPolicy:
		obj = backendPolicy(target)
	default:
		return Description{}, failure.Errorf(failure.Internal, "unknown resource kind %q", kind)
	}

	if err != nil {
		return Description{}, failure.Errorf(failure.Internal, "render %s: %w", kind, err)
	}

	return Description{
		Kind:      kind,
		Name:      obj.GetName(),
		Namespace: obj.GetNamespace(),
		GVR:       kind.GVR(),
		Object:    obj,
	}, nil
}

// BuildAll renders every resource of a target in apply order.
func (b Builder) BuildAll(target environment.Target) ([]Description, error) {
	kinds := Plan(target)
	descriptions := make([]Description, 0, len(kinds))
	for _, kind := range kinds {
		d, err := b.Build(target, kind)
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, d)
	}
	return descriptions, nil
}

func (b Builder) annotations() map[string]string {
	a := maps.Clone(b.Annotations)
	if a == nil {
		a = make(map[string]string)
	}
	return a
}

// toUnstructured drops the fields that only the server may set.
func toUnstructured(obj runtime.Object) (*unstructured.Unstructured, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, err
	}

	delete(content, "status")
	unstructured.RemoveNestedField(content, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(content, "spec", "template", "metadata", "creationTimestamp")

	return &unstructured.Unstructured{Object: content}, nil
}
