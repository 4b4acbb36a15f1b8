package resources

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type Kind string

const (
	Namespace     Kind = "Namespace"
	Deployment    Kind = "Deployment"
	Service       Kind = "Service"
	Ingress       Kind = "Ingress"
	Certificate   Kind = "Certificate"
	BackendPolicy Kind = "BackendPolicy"
)

var (
	NamespaceGVR     = schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}
	DeploymentGVR    = schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
	ServiceGVR       = schema.GroupVersionResource{Version: "v1", Resource: "services"}
	IngressGVR       = schema.GroupVersionResource{Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"}
	CertificateGVR   = schema.GroupVersionResource{Group: "networking.gke.io", Version: "v1", Resource: "managedcertificates"}
	BackendPolicyGVR = schema.GroupVersionResource{Group: "cloud.google.com", Version: "v1", Resource: "backendconfigs"}
)

// GVR returns the API resource a kind is stored as.
func (k Kind) GVR() schema.GroupVersionResource {
	switch k {
	case Namespace:
		return NamespaceGVR
	case Deployment:
		return DeploymentGVR
	case Service:
		return ServiceGVR
	case Ingress:
		return IngressGVR
	case Certificate:
		return CertificateGVR
	case BackendPolicy:
		return BackendPolicyGVR
	}
	return schema.GroupVersionResource{}
}

// Mutable kinds are patched when their configuration changes.
// The domain kinds are created once and never touched again.
func (k Kind) Mutable() bool {
	return !k.RequiresDomain()
}

// RequiresDomain is true for the kinds that only exist when a domain is configured.
func (k Kind) RequiresDomain() bool {
	switch k {
	case Ingress, Certificate, BackendPolicy:
		return true
	}
	return false
}
