// Package cloudrun deploys environments as Cloud Run services.
package cloudrun

import (
	"context"
	"fmt"
	"io"
	"net/url"

	log "github.com/sirupsen/logrus"
	run "google.golang.org/api/run/v1"

	"github.com/nais/promote/pkg/applier"
	"github.com/nais/promote/pkg/converge"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/metrics"
	"github.com/nais/promote/pkg/platform"
	"github.com/nais/promote/pkg/workdir"
)

const (
	resourceKind = "CloudRunService"

	conditionReady    = "Ready"
	conditionAddress  = "service URL"
	conditionRevision = "revision rollout"

	httpsPort = 443
)

type Platform struct {
	API APIFactory
	// Annotations are added to the service.
	Annotations map[string]string
	// DefaultProject is used when the environment has no project configured.
	DefaultProject string
	DetectProject  func(ctx context.Context) (string, error)
	Poller         converge.Poller
	Workdir        *workdir.Workdir
	PrintTo        io.Writer
	Logger         *log.Entry
}

var _ platform.Platform = &Platform{}

func (p *Platform) project(ctx context.Context, target environment.Target) (string, error) {
	if len(target.Project) > 0 {
		return target.Project, nil
	}
	if len(p.DefaultProject) > 0 {
		return p.DefaultProject, nil
	}
	if p.DetectProject != nil {
		project, err := p.DetectProject(ctx)
		if err == nil {
			return project, nil
		}
		return "", failure.Errorf(failure.Binding, "no project configured, and auto-detection failed: %w", err)
	}
	return "", failure.Errorf(failure.Binding, "no project configured")
}

func (p *Platform) Bind(ctx context.Context, target environment.Target) (platform.Stage, error) {
	project, err := p.project(ctx, target)
	if err != nil {
		return nil, err
	}

	api, err := p.API(ctx, target.Region)
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "create Cloud Run client for region %s: %w", target.Region, err)
	}

	logger := p.Logger.WithFields(log.Fields{
		"environment": target.Name(),
		"project":     project,
		"region":      target.Region,
		"service":     ServiceName(target),
	})
	logger.Infof("Bound to Cloud Run in %s/%s", project, target.Region)

	poller := p.Poller
	poller.Logger = logger

	return &Stage{
		target:      target,
		project:     project,
		api:         api,
		annotations: p.Annotations,
		poller:      poller,
		workdir:     p.Workdir,
		printTo:     p.PrintTo,
		logger:      logger,
	}, nil
}

func (p *Platform) Render(w io.Writer, target environment.Target) error {
	project := target.Project
	if len(project) == 0 {
		project = p.DefaultProject
	}
	service, err := Build(target, project, p.Annotations)
	if err != nil {
		return err
	}
	return p.Workdir.PrintDocuments(w, service)
}

// Stage is an environment bound to a Cloud Run region.
type Stage struct {
	target      environment.Target
	project     string
	api         ServicesAPI
	annotations map[string]string
	poller      converge.Poller
	workdir     *workdir.Workdir
	printTo     io.Writer
	logger      *log.Entry
}

var _ platform.Stage = &Stage{}

func (s *Stage) name() string {
	return serviceName(s.project, ServiceName(s.target))
}

// Apply creates the service, or replaces it when the revision for this version and configuration does not exist yet.
func (s *Stage) Apply(ctx context.Context) error {
	service, err := Build(s.target, s.project, s.annotations)
	if err != nil {
		return err
	}

	err = s.workdir.WriteDocument(s.target.Environment, "01-service-"+service.Metadata.Name, service)
	if err != nil {
		return err
	}
	if s.printTo != nil {
		err = s.workdir.PrintDocuments(s.printTo, service)
		if err != nil {
			return err
		}
	}

	result, err := s.apply(ctx, service)
	metrics.ResourceApplied(resourceKind, result.String())
	if err != nil {
		return failure.Errorf(failure.Apply, "apply Cloud Run service %s: %w", s.name(), err)
	}
	s.logger.Infof("Cloud Run service %s %s", service.Metadata.Name, result)

	if s.target.AllowUnauthenticated {
		err = s.api.AllowUnauthenticated(ctx, iamResource(s.project, s.target.Region, service.Metadata.Name))
		if err != nil {
			return failure.Errorf(failure.Apply, "allow unauthenticated access to %s: %w", service.Metadata.Name, err)
		}
	}

	return nil
}

func (s *Stage) apply(ctx context.Context, service *run.Service) (applier.Result, error) {
	existing, err := s.api.Get(ctx, s.name())
	if IsNotFound(err) {
		_, err = s.api.Create(ctx, parent(s.project), service)
		if err != nil {
			return applier.Failed, fmt.Errorf("creating service: %w", err)
		}
		return applier.Created, nil
	} else if err != nil {
		return applier.Failed, fmt.Errorf("get existing service: %w", err)
	}

	if templateName(existing) == templateName(service) {
		return applier.AlreadyExists, nil
	}

	service.Metadata.ResourceVersion = existing.Metadata.ResourceVersion
	_, err = s.api.Replace(ctx, s.name(), service)
	if err != nil {
		return applier.Failed, fmt.Errorf("replacing service: %w", err)
	}

	return applier.Updated, nil
}

// Converge waits until the revision of the target version is ready and serving.
func (s *Stage) Converge(ctx context.Context) (platform.Endpoint, error) {
	service, err := Build(s.target, s.project, s.annotations)
	if err != nil {
		return platform.Endpoint{}, err
	}
	revision := templateName(service)

	observed, err := s.poller.WaitUntil(ctx, conditionRevision, func(ctx context.Context) (bool, string, error) {
		service, err := s.api.Get(ctx, s.name())
		if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}
		return revisionReady(service, revision)
	})
	if err != nil {
		return platform.Endpoint{}, err
	}
	s.logger.Infof("Revision %s is serving: %s", revision, observed)

	return s.Endpoint(ctx)
}

func (s *Stage) Endpoint(ctx context.Context) (platform.Endpoint, error) {
	address, err := s.poller.WaitUntil(ctx, conditionAddress, func(ctx context.Context) (bool, string, error) {
		service, err := s.api.Get(ctx, s.name())
		if err != nil {
			return false, fmt.Sprintf("error: %s", err), nil
		}
		if service.Status == nil || len(service.Status.Url) == 0 {
			return false, "no URL assigned", nil
		}
		return len(service.Status.Url) > 0, service.Status.Url, nil
	})
	if err != nil {
		return platform.Endpoint{}, err
	}

	u, err := url.Parse(address)
	if err != nil {
		return platform.Endpoint{}, failure.Errorf(failure.Internal, "service URL %q: %w", address, err)
	}

	endpoint := platform.Endpoint{
		Address: u.Hostname(),
		Port:    httpsPort,
		URL:     address,
	}
	s.logger.Infof("Environment %s is reachable at %s", s.target.Name(), endpoint)

	return endpoint, nil
}

func templateName(service *run.Service) string {
	if service == nil || service.Spec == nil || service.Spec.Template == nil || service.Spec.Template.Metadata == nil {
		return ""
	}
	return service.Spec.Template.Metadata.Name
}

// revisionReady holds once the current generation is observed, ready, and served by revision.
// A Ready condition that turned False for the current generation fails the rollout.
func revisionReady(service *run.Service, revision string) (bool, string, error) {
	if service.Status == nil || service.Metadata == nil {
		return false, "no status", nil
	}
	status := service.Status

	if status.ObservedGeneration < service.Metadata.Generation {
		return false, fmt.Sprintf("generation %d/%d observed", status.ObservedGeneration, service.Metadata.Generation), nil
	}

	var ready *run.GoogleCloudRunV1Condition
	for _, condition := range status.Conditions {
		if condition.Type == conditionReady {
			ready = condition
		}
	}
	if ready == nil {
		return false, "ready condition missing", nil
	}

	observed := fmt.Sprintf("ready=%s latest ready revision %s", ready.Status, status.LatestReadyRevisionName)

	switch ready.Status {
	case "False":
		return false, observed, failure.Errorf(failure.Rollout, "revision %s failed: %s: %s", revision, ready.Reason, ready.Message)
	case "True":
		return status.LatestReadyRevisionName == revision, observed, nil
	default:
		return false, observed, nil
	}
}
