package binder

import (
	"context"

	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/kubeclient"
)

// Kubeconfig binds to the kubeconfig context named after the cluster.
type Kubeconfig struct {
	Path string
}

var _ Binder = Kubeconfig{}

func (k Kubeconfig) Bind(_ context.Context, location Location) (kubeclient.Interface, error) {
	path := k.Path
	if len(path) == 0 {
		path = kubeclient.KubeConfigPath()
	}

	config, err := kubeclient.ContextConfig(path, location.Cluster)
	if err != nil {
		return nil, failure.Wrap(failure.Binding, err)
	}

	client, err := kubeclient.New(config, location.Cluster, location.Namespace)
	if err != nil {
		return nil, failure.Wrap(failure.Binding, err)
	}

	return client, nil
}
