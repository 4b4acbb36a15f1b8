package kubeclient

import (
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Needed for auth side effect
	"k8s.io/client-go/rest"
)

// Interface is a Kubernetes client bound to one cluster and namespace.
type Interface interface {
	// Return a Kubernetes client.
	Kubernetes() kubernetes.Interface

	// Return an object that knows how to do CRUD on the specified resource.
	// Cluster scoped resources are requested with an empty namespace.
	ResourceInterface(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface

	// Name of the cluster this client is bound to.
	Cluster() string

	// Namespace the application lives in.
	Namespace() string
}

type client struct {
	static    kubernetes.Interface
	dynamic   dynamic.Interface
	cluster   string
	namespace string
}

var _ Interface = &client{}

func (c *client) Kubernetes() kubernetes.Interface {
	return c.static
}

func (c *client) Cluster() string {
	return c.cluster
}

func (c *client) Namespace() string {
	return c.namespace
}

func (c *client) ResourceInterface(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	resourceInterface := c.dynamic.Resource(gvr)

	if len(namespace) == 0 {
		return resourceInterface
	}

	return resourceInterface.Namespace(namespace)
}

// New creates clients for a cluster. API server warnings are logged and counted.
func New(config *rest.Config, cluster, namespace string) (Interface, error) {
	config = rest.CopyConfig(config)
	config.WarningHandler = &warningHandler{
		cluster: cluster,
		logger:  log.WithField("cluster", cluster),
	}

	cli, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	return NewFromClients(cli, dyn, cluster, namespace), nil
}

// NewFromClients binds existing clients, e.g. fakes in tests.
func NewFromClients(static kubernetes.Interface, dyn dynamic.Interface, cluster, namespace string) Interface {
	return &client{
		static:    static,
		dynamic:   dyn,
		cluster:   cluster,
		namespace: namespace,
	}
}
