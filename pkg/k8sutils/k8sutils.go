package k8sutils

import (
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type Identifier struct {
	schema.GroupVersionKind
	Namespace string
	Name      string
	Cluster   string
}

func ResourceIdentifier(resource *unstructured.Unstructured, cluster string) Identifier {
	return Identifier{
		GroupVersionKind: resource.GroupVersionKind(),
		Namespace:        resource.GetNamespace(),
		Name:             resource.GetName(),
		Cluster:          cluster,
	}
}

func (id Identifier) String() string {
	s := id.Kind + " " + id.Name
	if len(id.Namespace) > 0 {
		s = id.Kind + " " + id.Namespace + "/" + id.Name
	}
	if len(id.Cluster) > 0 {
		s += " in cluster " + id.Cluster
	}
	return s
}

// LogFields returns the identifier as structured logging fields.
func (id Identifier) LogFields() log.Fields {
	fields := log.Fields{
		"kind": id.Kind,
		"name": id.Name,
		"gvk":  id.GroupVersionKind.String(),
	}
	if len(id.Namespace) > 0 {
		fields["namespace"] = id.Namespace
	}
	if len(id.Cluster) > 0 {
		fields["cluster"] = id.Cluster
	}
	return fields
}
