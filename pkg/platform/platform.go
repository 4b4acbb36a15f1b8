// Package platform abstracts the runtime an environment is deployed to,
// a Kubernetes cluster or a serverless service.
package platform

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
)

// Endpoint is where a converged environment can be reached.
type Endpoint struct {
	Address string
	Port    int
	// URL is set by platforms that serve a complete URL instead of a bare address.
	URL string
}

func (e Endpoint) String() string {
	if len(e.URL) > 0 {
		return e.URL
	}
	if len(e.Address) == 0 {
		return ""
	}
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Platform binds targets to stages that can be applied and converged.
type Platform interface {
	// Bind resolves the execution context of a target. No resources are changed.
	Bind(ctx context.Context, target environment.Target) (Stage, error)

	// Render writes every resource that would be applied to target, without contacting any API.
	Render(w io.Writer, target environment.Target) error
}

// Stage is one environment bound to its cluster or service API.
type Stage interface {
	// Apply submits all resources of the environment.
	Apply(ctx context.Context) error

	// Converge blocks until the environment is serving the target version, and returns its endpoint.
	Converge(ctx context.Context) (Endpoint, error)

	// Endpoint waits for and returns the externally reachable endpoint, without waiting for rollout.
	Endpoint(ctx context.Context) (Endpoint, error)
}

// Registry looks up platforms by the name used in environment configuration.
type Registry map[string]Platform

func (r Registry) For(target environment.Target) (Platform, error) {
	p, ok := r[target.Platform]
	if !ok {
		return nil, failure.Errorf(failure.Configuration, "platform %q is not supported", target.Platform)
	}
	return p, nil
}
