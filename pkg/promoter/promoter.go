// Package promoter drives a version through the environments of a promotion chain.
package promoter

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/gate"
	"github.com/nais/promote/pkg/metrics"
	"github.com/nais/promote/pkg/platform"
	"github.com/nais/promote/pkg/telemetry"
)

const (
	stepBind       = "bind"
	stepApply      = "apply"
	stepConverge   = "converge"
	stepAcceptance = "acceptance test"
	stepRender     = "render"
	stepQuery      = "address query"
)

type Promoter struct {
	Platforms platform.Registry
	// Gates returns the acceptance gate of a target. Defaults to gate.ForTarget.
	Gates  func(target environment.Target) gate.Gate
	Logger *log.Entry
}

func (p *Promoter) logger() *log.Entry {
	if p.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return p.Logger
}

func (p *Promoter) gateFor(target environment.Target) gate.Gate {
	if p.Gates == nil {
		return gate.ForTarget(target)
	}
	return p.Gates(target)
}

func (p *Promoter) bind(ctx context.Context, target environment.Target) (platform.Stage, error) {
	pl, err := p.Platforms.For(target)
	if err != nil {
		return nil, err
	}
	return pl.Bind(ctx, target)
}

// Run executes a session to completion. The first error aborts the session;
// environments later in the chain are never touched after a failure.
func (p *Promoter) Run(ctx context.Context, session *Session) error {
	logger := p.logger().WithFields(log.Fields{
		"session": session.ID,
		"version": session.Version,
	})

	ctx, span := telemetry.Tracer().Start(ctx, "promote", telemetry.SessionAttributes(session.ID, session.Version, session.Rollback))
	defer span.End()
	if traceID := telemetry.TraceID(ctx); len(traceID) > 0 {
		logger = logger.WithField("trace_id", traceID)
	}

	err := p.run(ctx, session, logger)
	if err != nil {
		state := session.State()
		session.abort()
		telemetry.Fail(span, err)
		logger.WithField("state", state.String()).Errorf("Promotion of version %s aborted", session.Version)
		return err
	}

	logger.Infof("Version %s is deployed to %s", session.Version, session.Stages[len(session.Stages)-1].Target.Name())
	return nil
}

func (p *Promoter) run(ctx context.Context, session *Session, logger *log.Entry) error {
	if len(session.Stages) == 0 || len(session.Stages) > 2 {
		return failure.Errorf(failure.Internal, "a promotion chain has one or two environments, got %d", len(session.Stages))
	}

	stages := make([]platform.Stage, len(session.Stages))
	for i, record := range session.Stages {
		stage, err := p.bind(ctx, record.Target)
		if err != nil {
			return p.fail(record, stepBind, err)
		}
		stages[i] = stage
	}

	err := session.transition(Bound)
	if err != nil {
		return err
	}

	if session.Rollback {
		return p.rollback(ctx, session, session.Stages[0], stages[0], logger)
	}

	first := session.Stages[0]
	err = p.deploy(ctx, session, first, stages[0], StagingApplied, StagingConverged, logger)
	if err != nil {
		return err
	}

	err = p.test(ctx, session, first, logger)
	if err != nil {
		return err
	}
	p.finish(first)

	if !session.TwoStage() {
		return session.transition(Done)
	}

	err = session.transition(LivePromotable)
	if err != nil {
		return err
	}
	logger.Infof("Version %s passed %s and is promotable", session.Version, first.Target.Name())

	live := session.Stages[1]
	err = p.deploy(ctx, session, live, stages[1], LiveApplied, LiveConverged, logger)
	if err != nil {
		return err
	}
	live.Outcome = OutcomePromoted
	p.finish(live)

	return session.transition(Done)
}

// rollback redeploys a version to the last environment of the chain without testing it.
func (p *Promoter) rollback(ctx context.Context, session *Session, record *StageRecord, stage platform.Stage, logger *log.Entry) error {
	logger.Warnf("Rolling back %s to version %s; acceptance tests are skipped", record.Target.Name(), session.Version)

	err := stage.Apply(ctx)
	if err != nil {
		return p.fail(record, stepApply, err)
	}
	err = session.transition(RollbackApplied)
	if err != nil {
		return err
	}

	if session.SkipWait {
		logger.Warnf("Not waiting for %s to converge", record.Target.Name())
		record.Outcome = OutcomeDeployed
		p.finish(record)
		return session.transition(Done)
	}

	endpoint, err := stage.Converge(ctx)
	if err != nil {
		return p.fail(record, stepConverge, err)
	}
	record.Endpoint = endpoint
	record.Outcome = OutcomeDeployed
	p.finish(record)

	err = session.transition(RollbackConverged)
	if err != nil {
		return err
	}
	return session.transition(Done)
}

func (p *Promoter) deploy(ctx context.Context, session *Session, record *StageRecord, stage platform.Stage, applied, converged State, logger *log.Entry) (err error) {
	name := record.Target.Name()
	ctx, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("deploy to %s", name), telemetry.StageAttributes(name, record.Target.Platform))
	defer func() {
		if err != nil {
			telemetry.Fail(span, err)
		}
		span.End()
	}()

	logger.Infof("Deploying version %s to %s", session.Version, name)

	err = stage.Apply(ctx)
	if err != nil {
		return p.fail(record, stepApply, err)
	}
	err = session.transition(applied)
	if err != nil {
		return err
	}

	endpoint, err := stage.Converge(ctx)
	if err != nil {
		return p.fail(record, stepConverge, err)
	}
	record.Endpoint = endpoint
	record.Outcome = OutcomeDeployed
	span.SetAttributes(telemetry.AttributeEndpoint.String(endpoint.String()))

	return session.transition(converged)
}

func (p *Promoter) test(ctx context.Context, session *Session, record *StageRecord, logger *log.Entry) error {
	if session.NoTest {
		logger.Warnf("Skipping acceptance tests of %s", record.Target.Name())
		return session.transition(TestSkipped)
	}

	ctx, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("test %s", record.Target.Name()))
	defer span.End()

	logger.Infof("Running acceptance tests against %s", record.Endpoint)
	err := p.gateFor(record.Target).Run(ctx, record.Endpoint.Address, record.Endpoint.Port)
	if err != nil {
		if failure.KindOf(err) == failure.Internal {
			err = failure.Wrap(failure.Acceptance, err)
		}
		telemetry.Fail(span, err)
		return p.fail(record, stepAcceptance, err)
	}
	record.Outcome = OutcomeTested
	logger.Infof("Acceptance tests of %s passed", record.Target.Name())

	return session.transition(Tested)
}

func (p *Promoter) finish(record *StageRecord) {
	metrics.StageFinished(record.Target.Name(), string(record.Outcome))
}

func (p *Promoter) fail(record *StageRecord, step string, err error) error {
	record.Outcome = OutcomeAborted
	p.finish(record)
	return failure.AtStage(err, record.Target.Name(), step, record.Endpoint.String())
}

// Render writes the resources of every target as one YAML stream, without binding to any platform.
func (p *Promoter) Render(w io.Writer, targets []environment.Target) error {
	for i, target := range targets {
		pl, err := p.Platforms.For(target)
		if err != nil {
			return failure.AtStage(err, target.Name(), stepRender, "")
		}
		if i > 0 {
			_, err = io.WriteString(w, "---\n")
			if err != nil {
				return err
			}
		}
		err = pl.Render(w, target)
		if err != nil {
			return failure.AtStage(err, target.Name(), stepRender, "")
		}
	}
	return nil
}

// Query returns the current endpoint of a target without changing anything.
func (p *Promoter) Query(ctx context.Context, target environment.Target) (platform.Endpoint, error) {
	stage, err := p.bind(ctx, target)
	if err != nil {
		return platform.Endpoint{}, failure.AtStage(err, target.Name(), stepBind, "")
	}

	endpoint, err := stage.Endpoint(ctx)
	if err != nil {
		return platform.Endpoint{}, failure.AtStage(err, target.Name(), stepQuery, "")
	}

	return endpoint, nil
}

// FormatAddress renders an endpoint as requested by an address query.
func FormatAddress(query Query, endpoint platform.Endpoint) string {
	if query == QueryIP {
		return endpoint.Address
	}
	if len(endpoint.URL) > 0 {
		return endpoint.URL
	}
	if endpoint.Port == 80 {
		return "http://" + endpoint.Address
	}
	return "http://" + endpoint.String()
}
