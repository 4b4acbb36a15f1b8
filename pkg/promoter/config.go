package promoter

import (
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/nais/promote/pkg/converge"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/logging"
)

const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = logging.FormatText
	DefaultTimeout       = 0
	DefaultBackoffFactor = converge.DefaultFactor
)

// Query selects an address to print instead of deploying.
type Query int

const (
	QueryNone Query = iota
	QueryIP
	QueryLiveURL
	QueryStagingURL
)

// SecretKeys are flags whose values are redacted from the configuration printout.
var SecretKeys = []string{"pushgateway-url", "test-command"}

type Config struct {
	Version     string
	ConfigFile  string
	Environment string

	NoTest   bool
	Rollback bool
	SkipWait bool

	QueryIP         bool
	QueryLiveURL    bool
	QueryStagingURL bool

	Debug     bool
	LogLevel  string
	LogFormat string

	DryRun         bool
	PrintResources bool

	PollInterval  time.Duration
	Timeout       time.Duration
	BackoffFactor float64
	BackoffCap    time.Duration

	Workdir     string
	KeepWorkdir bool

	Kubeconfig  string
	Project     string
	TestCommand string

	PushgatewayURL            string
	OpenTelemetryCollectorURL string
	Traceparent               string
}

func NewConfig() *Config {
	return &Config{}
}

// InitConfig registers all flags on flags and parses args.
// Values are resolved with the following precedence: flags > environment variables > default values.
func InitConfig(cfg *Config, flags *flag.FlagSet, args []string) error {
	flags.StringVar(&cfg.ConfigFile, "config", getEnv("PROMOTE_CONFIG", environment.DefaultConfigFile), "Project configuration file. (env PROMOTE_CONFIG)")
	flags.StringVar(&cfg.Environment, "env", os.Getenv("PROMOTE_ENV"), "Deploy to this environment only, instead of promoting from staging to live. (env PROMOTE_ENV)")
	flags.BoolVar(&cfg.NoTest, "no-test", getEnvBool("PROMOTE_NO_TEST", false), "Skip acceptance tests. (env PROMOTE_NO_TEST)")
	flags.BoolVar(&cfg.Rollback, "rollback", getEnvBool("PROMOTE_ROLLBACK", false), "Deploy the version directly to the final environment without testing. (env PROMOTE_ROLLBACK)")
	flags.BoolVar(&cfg.SkipWait, "skip-wait", getEnvBool("PROMOTE_SKIP_WAIT", false), "Do not wait for a rollback to converge. (env PROMOTE_SKIP_WAIT)")
	flags.BoolVar(&cfg.QueryIP, "ip", false, "Print the address of the environment given by --env, or live, and exit.")
	flags.BoolVar(&cfg.QueryLiveURL, "live-url", false, "Print the URL of the live environment and exit.")
	flags.BoolVar(&cfg.QueryStagingURL, "staging-url", false, "Print the URL of the staging environment and exit.")
	flags.BoolVar(&cfg.Debug, "debug", getEnvBool("PROMOTE_DEBUG", false), "Verbose output; shorthand for --log-level=debug. (env PROMOTE_DEBUG)")
	flags.StringVar(&cfg.LogLevel, "log-level", getEnv("PROMOTE_LOG_LEVEL", DefaultLogLevel), "Logging verbosity level. (env PROMOTE_LOG_LEVEL)")
	flags.StringVar(&cfg.LogFormat, "log-format", getEnv("PROMOTE_LOG_FORMAT", DefaultLogFormat), "Log format, either 'text' or 'json'. (env PROMOTE_LOG_FORMAT)")
	flags.BoolVar(&cfg.DryRun, "dry-run", getEnvBool("PROMOTE_DRY_RUN", false), "Render and print all resources, but don't contact any API. (env PROMOTE_DRY_RUN)")
	flags.BoolVar(&cfg.PrintResources, "print-resources", getEnvBool("PROMOTE_PRINT_RESOURCES", false), "Print rendered resources to standard output before applying them. (env PROMOTE_PRINT_RESOURCES)")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", getEnvDuration("PROMOTE_POLL_INTERVAL", converge.DefaultInterval), "Time between each convergence check. (env PROMOTE_POLL_INTERVAL)")
	flags.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("PROMOTE_TIMEOUT", DefaultTimeout), "Maximum time to wait for each convergence condition; 0 waits forever. (env PROMOTE_TIMEOUT)")
	flags.Float64Var(&cfg.BackoffFactor, "backoff-factor", getEnvFloat("PROMOTE_BACKOFF_FACTOR", DefaultBackoffFactor), "Multiply the poll interval by this factor after each check. (env PROMOTE_BACKOFF_FACTOR)")
	flags.DurationVar(&cfg.BackoffCap, "backoff-cap", getEnvDuration("PROMOTE_BACKOFF_CAP", converge.DefaultCap), "Upper bound of the poll interval when backing off. (env PROMOTE_BACKOFF_CAP)")
	flags.StringVar(&cfg.Workdir, "workdir", os.Getenv("PROMOTE_WORKDIR"), "Directory for rendered resources; a temporary directory if empty. (env PROMOTE_WORKDIR)")
	flags.BoolVar(&cfg.KeepWorkdir, "keep-workdir", getEnvBool("PROMOTE_KEEP_WORKDIR", false), "Keep rendered resources after exiting. (env PROMOTE_KEEP_WORKDIR)")
	flags.StringVar(&cfg.Kubeconfig, "kubeconfig", os.Getenv("KUBECONFIG"), "Kubeconfig used by environments with platform 'kubeconfig'. (env KUBECONFIG)")
	flags.StringVar(&cfg.Project, "project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "Google Cloud project of environments that don't configure one. (env GOOGLE_CLOUD_PROJECT)")
	flags.StringVar(&cfg.TestCommand, "test-command", os.Getenv("PROMOTE_TEST_COMMAND"), "Acceptance test command; overrides test_command of the project configuration. (env PROMOTE_TEST_COMMAND)")
	flags.StringVar(&cfg.PushgatewayURL, "pushgateway-url", os.Getenv("PROMOTE_PUSHGATEWAY_URL"), "Push metrics to this Prometheus Pushgateway. (env PROMOTE_PUSHGATEWAY_URL)")
	flags.StringVar(&cfg.OpenTelemetryCollectorURL, "otel-collector-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OpenTelemetry collector endpoint. (env OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.StringVar(&cfg.Traceparent, "traceparent", os.Getenv("TRACEPARENT"), "The W3C Trace Context traceparent value for the workflow run. (env TRACEPARENT)")

	err := flags.Parse(args)
	if err != nil {
		return failure.Wrap(failure.Invocation, err)
	}

	if flags.NArg() > 1 {
		return failure.Errorf(failure.Invocation, "expected a single version argument, got %v", flags.Args())
	}
	cfg.Version = flags.Arg(0)

	if cfg.Debug && cfg.LogLevel != "trace" {
		cfg.LogLevel = "debug"
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}

	return b
}

// Query returns the address query requested on the command line, if any.
func (cfg *Config) Query() Query {
	switch {
	case cfg.QueryIP:
		return QueryIP
	case cfg.QueryLiveURL:
		return QueryLiveURL
	case cfg.QueryStagingURL:
		return QueryStagingURL
	default:
		return QueryNone
	}
}

// QueryEnvironment is the environment an address query is answered for.
func (cfg *Config) QueryEnvironment() string {
	switch cfg.Query() {
	case QueryStagingURL:
		return environment.Staging
	case QueryIP:
		if len(cfg.Environment) > 0 {
			return cfg.Environment
		}
	}
	return environment.Live
}

// Chain returns the environments to deploy to, in order.
// A rollback only touches the last environment of the chain.
func (cfg *Config) Chain() []string {
	chain := []string{environment.Staging, environment.Live}
	if len(cfg.Environment) > 0 {
		chain = []string{cfg.Environment}
	}
	if cfg.Rollback {
		chain = chain[len(chain)-1:]
	}
	return chain
}

func (cfg *Config) Validate() error {
	queries := 0
	for _, q := range []bool{cfg.QueryIP, cfg.QueryLiveURL, cfg.QueryStagingURL} {
		if q {
			queries++
		}
	}

	switch {
	case queries > 1:
		return failure.Errorf(failure.Invocation, "--ip, --live-url and --staging-url are mutually exclusive")
	case queries == 1 && (cfg.Rollback || cfg.DryRun):
		return failure.Errorf(failure.Invocation, "address queries can't be combined with --rollback or --dry-run")
	case queries == 1 && len(cfg.Environment) > 0 && !cfg.QueryIP:
		return failure.Errorf(failure.Invocation, "--env can only be combined with --ip")
	case queries == 0 && len(cfg.Version) == 0:
		return failure.Errorf(failure.Invocation, "version argument is required")
	case cfg.SkipWait && !cfg.Rollback:
		return failure.Errorf(failure.Invocation, "--skip-wait requires --rollback")
	case cfg.Timeout < 0:
		return failure.Errorf(failure.Invocation, "--timeout must not be negative")
	case cfg.PollInterval <= 0:
		return failure.Errorf(failure.Invocation, "--poll-interval must be positive")
	case cfg.BackoffFactor < 0:
		return failure.Errorf(failure.Invocation, "--backoff-factor must not be negative")
	case cfg.BackoffFactor > 1 && cfg.BackoffCap <= 0:
		return failure.Errorf(failure.Invocation, "--backoff-cap must be positive when --backoff-factor is greater than 1")
	}

	return nil
}

// Poller returns the convergence poller configured on the command line.
func (cfg *Config) Poller() converge.Poller {
	return converge.Poller{
		Interval: cfg.PollInterval,
		Timeout:  cfg.Timeout,
		Factor:   cfg.BackoffFactor,
		Cap:      cfg.BackoffCap,
	}
}

// Targets resolves every environment of the chain and the secrets they require.
// Nothing is deployed unless all environments resolve.
func (cfg *Config) Targets(resolver environment.Resolver, lookup environment.LookupFunc) ([]environment.Target, error) {
	chain := cfg.Chain()
	targets := make([]environment.Target, 0, len(chain))

	for _, env := range chain {
		settings, err := resolver.Resolve(env)
		if err != nil {
			return nil, err
		}

		secrets, err := environment.ResolveSecrets(settings.Secrets, lookup)
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", env, err)
		}

		target, err := environment.NewTarget(env, settings, cfg.Version, secrets)
		if err != nil {
			return nil, err
		}
		if len(cfg.TestCommand) > 0 {
			target.TestCommand = cfg.TestCommand
		}

		targets = append(targets, target)
	}

	return targets, nil
}

// QueryTarget resolves the environment of an address query. Secrets are not needed to look up an address.
func (cfg *Config) QueryTarget(resolver environment.Resolver) (environment.Target, error) {
	env := cfg.QueryEnvironment()
	settings, err := resolver.Resolve(env)
	if err != nil {
		return environment.Target{}, err
	}

	placeholders := make(map[string]string, len(settings.Secrets))
	for _, name := range settings.Secrets {
		placeholders[name] = ""
	}

	return environment.NewTarget(env, settings, "", placeholders)
}
