// Package cluster deploys environments to Kubernetes clusters.
package cluster

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/nais/promote/pkg/applier"
	"github.com/nais/promote/pkg/binder"
	"github.com/nais/promote/pkg/converge"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/kubeclient"
	"github.com/nais/promote/pkg/platform"
	"github.com/nais/promote/pkg/resources"
	"github.com/nais/promote/pkg/workdir"
)

const (
	conditionRollout       = "rollout"
	conditionPodGeneration = "pod generation"
	conditionAddress       = "address assignment"
)

type Platform struct {
	Binder  binder.Binder
	Builder resources.Builder
	Poller  converge.Poller
	Workdir *workdir.Workdir
	// PrintTo receives every rendered resource before it is applied, if set.
	PrintTo io.Writer
	Logger  *log.Entry
}

var _ platform.Platform = &Platform{}

func (p *Platform) Bind(ctx context.Context, target environment.Target) (platform.Stage, error) {
	client, err := p.Binder.Bind(ctx, binder.LocationOf(target))
	if err != nil {
		return nil, err
	}

	logger := p.Logger.WithFields(log.Fields{
		"environment": target.Name(),
		"cluster":     client.Cluster(),
		"namespace":   client.Namespace(),
	})
	logger.Infof("Bound to cluster %s", client.Cluster())

	poller := p.Poller
	poller.Logger = logger

	return &Stage{
		target:  target,
		client:  client,
		builder: p.Builder,
		poller:  poller,
		workdir: p.Workdir,
		printTo: p.PrintTo,
		logger:  logger,
	}, nil
}

func (p *Platform) Render(w io.Writer, target environment.Target) error {
	descriptions, err := p.Builder.BuildAll(target)
	if err != nil {
		return err
	}
	return p.Workdir.Print(w, descriptions)
}

// Stage is an environment bound to its cluster.
type Stage struct {
	target  environment.Target
	client  kubeclient.Interface
	builder resources.Builder
	poller  converge.Poller
	workdir *workdir.Workdir
	printTo io.Writer
	logger  *log.Entry
}

var _ platform.Stage = &Stage{}

func (s *Stage) Apply(ctx context.Context) error {
	descriptions, err := s.builder.BuildAll(s.target)
	if err != nil {
		return err
	}

	err = s.workdir.Write(s.target.Environment, descriptions)
	if err != nil {
		return err
	}

	if s.printTo != nil {
		err = s.workdir.Print(s.printTo, descriptions)
		if err != nil {
			return err
		}
	}

	_, err = applier.New(s.client, s.logger).ApplyAll(ctx, descriptions)
	return err
}

// Converge waits for the rollout to complete, for all pods to run the target version,
// and finally for the external address.
func (s *Stage) Converge(ctx context.Context) (platform.Endpoint, error) {
	static := s.client.Kubernetes()
	namespace := s.client.Namespace()

	observed, err := s.poller.WaitUntil(ctx, conditionRollout, converge.RolloutComplete(static, namespace, s.target.App))
	if err != nil {
		return platform.Endpoint{}, err
	}
	s.logger.Infof("Rollout complete: %s", observed)

	observed, err = s.poller.WaitUntil(ctx, conditionPodGeneration, converge.PodGeneration(static, namespace, s.target.App, resources.AppLabel, resources.VersionLabel, s.target.Version))
	if err != nil {
		return platform.Endpoint{}, err
	}
	s.logger.Infof("All pods running version %s: %s", s.target.Version, observed)

	return s.Endpoint(ctx)
}

// Endpoint waits for the load balancer address; the ingress when a domain is configured, otherwise the service.
func (s *Stage) Endpoint(ctx context.Context) (platform.Endpoint, error) {
	static := s.client.Kubernetes()
	namespace := s.client.Namespace()

	condition := converge.ServiceAddress(static, namespace, s.target.App)
	port := resources.ServicePort
	if s.target.HasDomain() {
		condition = converge.IngressAddress(static, namespace, s.target.App)
		port = resources.HTTPSPort
	}

	address, err := s.poller.WaitUntil(ctx, conditionAddress, condition)
	if err != nil {
		return platform.Endpoint{}, err
	}

	endpoint := platform.Endpoint{
		Address: address,
		Port:    port,
	}
	if s.target.HasDomain() {
		endpoint.URL = "https://" + s.target.Domain
	}

	s.logger.Infof("Environment %s is reachable at %s", s.target.Name(), endpoint)

	return endpoint, nil
}
