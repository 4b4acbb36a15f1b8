package promoter_test

import (
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/promoter"
)

func parse(t *testing.T, args ...string) (*promoter.Config, error) {
	cfg := promoter.NewConfig()
	flags := flag.NewFlagSet("promote", flag.ContinueOnError)
	err := promoter.InitConfig(cfg, flags, args)
	return cfg, err
}

func TestInitConfig(t *testing.T) {
	t.Setenv("PROMOTE_TIMEOUT", "10m")
	t.Setenv("PROMOTE_NO_TEST", "true")

	cfg, err := parse(t, "--env", "preview", "--debug", "--poll-interval=2s", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Version)
	assert.Equal(t, "preview", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.True(t, cfg.NoTest)
	assert.Equal(t, environment.DefaultConfigFile, cfg.ConfigFile)
	assert.NoError(t, cfg.Validate())
}

func TestInitConfigFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PROMOTE_LOG_LEVEL", "warning")

	cfg, err := parse(t, "--log-level", "trace", "--debug", "v1")
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestInitConfigInvocationErrors(t *testing.T) {
	_, err := parse(t, "--no-such-flag")
	assert.Equal(t, failure.Invocation, failure.KindOf(err))

	_, err = parse(t, "v1", "v2")
	assert.Equal(t, failure.Invocation, failure.KindOf(err))
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name  string
		args  []string
		valid bool
	}{
		{"promotion", []string{"v1"}, true},
		{"missing version", []string{}, false},
		{"query without version", []string{"--live-url"}, true},
		{"ip of environment", []string{"--ip", "--env", "preview"}, true},
		{"two queries", []string{"--ip", "--live-url"}, false},
		{"query and rollback", []string{"--staging-url", "--rollback"}, false},
		{"url query and env", []string{"--live-url", "--env", "preview"}, false},
		{"skip wait without rollback", []string{"--skip-wait", "v1"}, false},
		{"rollback skip wait", []string{"--rollback", "--skip-wait", "v1"}, true},
		{"negative timeout", []string{"--timeout=-1s", "v1"}, false},
		{"zero poll interval", []string{"--poll-interval=0s", "v1"}, false},
		{"exponential backoff", []string{"--backoff-factor=2", "--backoff-cap=30s", "v1"}, true},
		{"uncapped backoff", []string{"--backoff-factor=2", "--backoff-cap=0s", "v1"}, false},
		{"negative backoff factor", []string{"--backoff-factor=-1", "v1"}, false},
		{"fixed interval without cap", []string{"--backoff-factor=1", "--backoff-cap=0s", "v1"}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(t, tt.args...)
			require.NoError(t, err)
			err = cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, failure.Invocation, failure.KindOf(err))
			}
		})
	}
}

func TestChain(t *testing.T) {
	cfg := &promoter.Config{}
	assert.Equal(t, []string{environment.Staging, environment.Live}, cfg.Chain())

	cfg.Rollback = true
	assert.Equal(t, []string{environment.Live}, cfg.Chain())

	cfg = &promoter.Config{Environment: "preview"}
	assert.Equal(t, []string{"preview"}, cfg.Chain())

	cfg.Rollback = true
	assert.Equal(t, []string{"preview"}, cfg.Chain())
}

func TestQueryEnvironment(t *testing.T) {
	assert.Equal(t, environment.Live, (&promoter.Config{QueryIP: true}).QueryEnvironment())
	assert.Equal(t, "preview", (&promoter.Config{QueryIP: true, Environment: "preview"}).QueryEnvironment())
	assert.Equal(t, environment.Live, (&promoter.Config{QueryLiveURL: true}).QueryEnvironment())
	assert.Equal(t, environment.Staging, (&promoter.Config{QueryStagingURL: true}).QueryEnvironment())
	assert.Equal(t, promoter.QueryStagingURL, (&promoter.Config{QueryStagingURL: true}).Query())
	assert.Equal(t, promoter.QueryNone, (&promoter.Config{}).Query())
}

type staticResolver map[string]*environment.Settings

func (r staticResolver) Resolve(env string) (*environment.Settings, error) {
	settings, ok := r[env]
	if !ok {
		return nil, failure.Errorf(failure.Configuration, "environment %q is not configured", env)
	}
	copied := *settings
	return &copied, nil
}

func settings(domain string, secrets ...string) *environment.Settings {
	return &environment.Settings{
		Name:       "helloworld",
		DockerRepo: "eu.gcr.io/acme",
		Platform:   environment.PlatformGKE,
		Memory:     "512Mi",
		CPU:        "250m",
		CPULimit:   "1",
		Replicas:   1,
		Port:       8080,
		HealthPath: "/ping",
		Domain:     domain,
		Secrets:    secrets,
	}
}

func TestTargets(t *testing.T) {
	resolver := staticResolver{
		environment.Staging: settings("", "API_TOKEN"),
		environment.Live:    settings("hello.example.com", "API_TOKEN", "DATABASE_PASSWORD"),
	}
	lookup := environment.MapLookup(map[string]string{
		"API_TOKEN":         "t0ken",
		"DATABASE_PASSWORD": "hunter2",
	})

	cfg := &promoter.Config{Version: "abc123", TestCommand: "make acceptance"}
	targets, err := cfg.Targets(resolver, lookup)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "helloworld-staging", targets[0].ClusterName)
	assert.Equal(t, "helloworld-live", targets[1].ClusterName)
	assert.Equal(t, "hello.example.com", targets[1].Domain)
	assert.Equal(t, "hunter2", targets[1].Secrets["DATABASE_PASSWORD"])
	assert.Equal(t, "make acceptance", targets[0].TestCommand)
	assert.Equal(t, "abc123", targets[1].Version)
}

func TestTargetsMissingSecret(t *testing.T) {
	resolver := staticResolver{
		environment.Staging: settings(""),
		environment.Live:    settings("", "DATABASE_PASSWORD"),
	}

	cfg := &promoter.Config{Version: "abc123"}
	_, err := cfg.Targets(resolver, environment.MapLookup(nil))
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
	assert.Contains(t, err.Error(), "DATABASE_PASSWORD")
}

func TestQueryTargetNeedsNoSecrets(t *testing.T) {
	resolver := staticResolver{
		environment.Live: settings("hello.example.com", "DATABASE_PASSWORD"),
	}

	target, err := (&promoter.Config{QueryLiveURL: true}).QueryTarget(resolver)
	require.NoError(t, err)
	assert.Equal(t, "helloworld-live", target.Namespace)
	assert.True(t, target.HasDomain())
}
