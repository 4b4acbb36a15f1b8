// Package binder resolves the cluster an environment is deployed to, and
// returns clients bound to that cluster and the environment's namespace.
package binder

import (
	"context"
	"sync"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/kubeclient"
)

// Location is the complete execution context of an environment.
type Location struct {
	Project   string
	Region    string
	Cluster   string
	Namespace string
}

func LocationOf(target environment.Target) Location {
	return Location{
		Project:   target.Project,
		Region:    target.Region,
		Cluster:   target.ClusterName,
		Namespace: target.Namespace,
	}
}

type Binder interface {
	Bind(ctx context.Context, location Location) (kubeclient.Interface, error)
}

type lazy struct {
	once   sync.Once
	create func(ctx context.Context) (Binder, error)
	binder Binder
	err    error
}

// Lazy defers creating a binder until the first environment is bound to it.
func Lazy(create func(ctx context.Context) (Binder, error)) Binder {
	return &lazy{create: create}
}

func (l *lazy) Bind(ctx context.Context, location Location) (kubeclient.Interface, error) {
	l.once.Do(func() {
		l.binder, l.err = l.create(ctx)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.binder.Bind(ctx, location)
}
