package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/nais/promote/pkg/binder"
	"github.com/nais/promote/pkg/cloudrun"
	"github.com/nais/promote/pkg/cluster"
	"github.com/nais/promote/pkg/conftools"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/logging"
	"github.com/nais/promote/pkg/metrics"
	"github.com/nais/promote/pkg/platform"
	"github.com/nais/promote/pkg/promoter"
	"github.com/nais/promote/pkg/resources"
	"github.com/nais/promote/pkg/telemetry"
	"github.com/nais/promote/pkg/version"
	"github.com/nais/promote/pkg/workdir"
)

func main() {
	err := run()
	if err == nil {
		return
	}
	if failure.KindOf(err) == failure.Invocation {
		flag.Usage()
	}
	log.Errorf("fatal: %s", err)
	os.Exit(failure.ExitCode(err))
}

func run() error {
	// Configuration and context
	cfg := promoter.NewConfig()
	err := promoter.InitConfig(cfg, flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	// Logging
	err = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return failure.Wrap(failure.Invocation, err)
	}

	err = cfg.Validate()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Welcome
	log.Infof("promote %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Debugf("This version was built %s", ts.Local())
	}

	printed, err := conftools.Format(flag.CommandLine, promoter.SecretKeys)
	if err != nil {
		return failure.Wrap(failure.Internal, err)
	}
	for _, line := range printed {
		log.Debug(line)
	}

	tracerProvider, err := telemetry.New(ctx, "promote", cfg.OpenTelemetryCollectorURL)
	if err != nil {
		return failure.Errorf(failure.Configuration, "set up tracing: %w", err)
	}
	defer func() {
		err := tracerProvider.Shutdown(context.Background())
		if err != nil {
			log.Errorf("flush traces: %s", err)
		}
	}()

	ctx = telemetry.WithTraceParent(ctx, cfg.Traceparent)

	if len(cfg.PushgatewayURL) > 0 {
		defer func() {
			err := metrics.Push(cfg.PushgatewayURL)
			if err != nil {
				log.Errorf("push metrics: %s", err)
			}
		}()
	}

	resolver, err := environment.NewFileResolver(cfg.ConfigFile)
	if err != nil {
		return err
	}

	w, err := workdir.New(cfg.Workdir, cfg.KeepWorkdir)
	if err != nil {
		return failure.Wrap(failure.Internal, err)
	}
	defer func() {
		err := w.Close()
		if err != nil {
			log.Errorf("remove working directory: %s", err)
		}
	}()

	p := &promoter.Promoter{
		Platforms: platforms(cfg, w, resources.BuildEnvironmentAnnotations(resources.OSLookup)),
		Logger:    log.NewEntry(log.StandardLogger()),
	}

	if query := cfg.Query(); query != promoter.QueryNone {
		target, err := cfg.QueryTarget(resolver)
		if err != nil {
			return err
		}
		endpoint, err := p.Query(ctx, target)
		if err != nil {
			return err
		}
		fmt.Println(promoter.FormatAddress(query, endpoint))
		return nil
	}

	targets, err := cfg.Targets(resolver, os.LookupEnv)
	if err != nil {
		return err
	}
	for _, target := range targets {
		w.Redact(target.SecretValues()...)
	}

	if cfg.DryRun {
		return p.Render(os.Stdout, targets)
	}

	session := promoter.NewSession(cfg.Version, targets, promoter.Options{
		Rollback: cfg.Rollback,
		NoTest:   cfg.NoTest,
		SkipWait: cfg.SkipWait,
	})
	log.WithField("session", session.ID).Infof("Promoting version %s through %v", cfg.Version, cfg.Chain())

	return p.Run(ctx, session)
}

func platforms(cfg *promoter.Config, w *workdir.Workdir, annotations map[string]string) platform.Registry {
	var printTo io.Writer
	if cfg.PrintResources {
		printTo = os.Stdout
	}
	logger := log.NewEntry(log.StandardLogger())

	kubernetes := func(b binder.Binder) *cluster.Platform {
		return &cluster.Platform{
			Binder:  b,
			Builder: resources.Builder{Annotations: annotations},
			Poller:  cfg.Poller(),
			Workdir: w,
			PrintTo: printTo,
			Logger:  logger,
		}
	}

	gke := binder.Lazy(func(ctx context.Context) (binder.Binder, error) {
		g, err := binder.NewGKE(ctx)
		if err != nil {
			return nil, err
		}
		if len(cfg.Project) > 0 {
			g.DefaultProject = cfg.Project
		}
		return g, nil
	})

	return platform.Registry{
		environment.PlatformGKE:        kubernetes(gke),
		environment.PlatformKubeconfig: kubernetes(binder.Kubeconfig{Path: cfg.Kubeconfig}),
		environment.PlatformCloudRun: &cloudrun.Platform{
			API: func(ctx context.Context, region string) (cloudrun.ServicesAPI, error) {
				return cloudrun.NewAPI(ctx, region)
			},
			Annotations:    annotations,
			DefaultProject: cfg.Project,
			DetectProject:  binder.MetadataProject,
			Poller:         cfg.Poller(),
			Workdir:        w,
			PrintTo:        printTo,
			Logger:         logger,
		},
	}
}
