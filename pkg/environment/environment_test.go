package environment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
)

func resolver(t *testing.T) *environment.FileResolver {
	r, err := environment.NewFileResolver("testdata/promote.yaml")
	require.NoError(t, err)
	return r
}

func TestResolveBase(t *testing.T) {
	settings, err := resolver(t).Resolve("")
	require.NoError(t, err)

	assert.Equal(t, "helloworld", settings.Name)
	assert.Equal(t, environment.PlatformGKE, settings.Platform)
	assert.Equal(t, "1Gi", settings.Memory)
	assert.Equal(t, "2", settings.CPULimit)
	assert.Equal(t, 2, settings.Replicas)
	assert.Equal(t, environment.DefaultPort, settings.Port)
	assert.Equal(t, environment.DefaultHealthPath, settings.HealthPath)
	assert.Equal(t, []string{"DATABASE_PASSWORD", "API_TOKEN"}, settings.Secrets)
	assert.Empty(t, settings.Domain)
}

func TestResolveOverrides(t *testing.T) {
	r := resolver(t)

	staging, err := r.Resolve(environment.Staging)
	require.NoError(t, err)
	assert.Equal(t, 1, staging.Replicas)
	assert.Empty(t, staging.Domain)

	live, err := r.Resolve(environment.Live)
	require.NoError(t, err)
	assert.Equal(t, 2, live.Replicas)
	assert.Equal(t, "hello.example.com", live.Domain)
	assert.Equal(t, "helloworld-live-ip", live.IngressIPName)

	preview, err := r.Resolve("preview")
	require.NoError(t, err)
	assert.Equal(t, environment.PlatformCloudRun, preview.Platform)
	assert.True(t, preview.AllowUnauthenticated)
	assert.Empty(t, preview.Secrets)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := resolver(t)
	a, err := r.Resolve(environment.Live)
	require.NoError(t, err)
	b, err := r.Resolve(environment.Live)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolveUnknownEnvironment(t *testing.T) {
	_, err := resolver(t).Resolve("qa")
	assert.Error(t, err)
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
	assert.Contains(t, err.Error(), "known environments are [live preview staging]")
}

func TestResolveInvalid(t *testing.T) {
	r, err := environment.NewFileResolver("testdata/invalid.yaml")
	require.NoError(t, err)

	_, err = r.Resolve("")
	require.Error(t, err)
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
	assert.Contains(t, err.Error(), `name "Hello_World"`)
	assert.Contains(t, err.Error(), `platform "openshift"`)
	assert.Contains(t, err.Error(), `memory "lots"`)
}

func TestMissingConfigurationFile(t *testing.T) {
	_, err := environment.NewFileResolver("testdata/missing.yaml")
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
}

func TestNewTarget(t *testing.T) {
	live, err := resolver(t).Resolve(environment.Live)
	require.NoError(t, err)

	secrets := map[string]string{
		"DATABASE_PASSWORD": "hunter2",
		"API_TOKEN":         "t0ken",
	}

	target, err := environment.NewTarget(environment.Live, live, "abc123", secrets)
	require.NoError(t, err)

	assert.Equal(t, "helloworld-live", target.ClusterName)
	assert.Equal(t, "helloworld-live", target.Namespace)
	assert.Equal(t, "eu.gcr.io/acme-prod/helloworld:abc123", target.Image())
	assert.True(t, target.HasDomain())
	assert.Equal(t, []string{"hunter2", "t0ken"}, target.SecretValues())

	base, err := resolver(t).Resolve("")
	require.NoError(t, err)
	single, err := environment.NewTarget("", base, "abc123", secrets)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", single.ClusterName)
	assert.Equal(t, "helloworld", single.Name())
}

func TestNewTargetMissingSecret(t *testing.T) {
	live, err := resolver(t).Resolve(environment.Live)
	require.NoError(t, err)

	_, err = environment.NewTarget(environment.Live, live, "abc123", map[string]string{"API_TOKEN": "x"})
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
	assert.Contains(t, err.Error(), "DATABASE_PASSWORD")
}

func TestNewTargetInvalidVersion(t *testing.T) {
	settings, err := resolver(t).Resolve("preview")
	require.NoError(t, err)

	_, err = environment.NewTarget("preview", settings, "not a/valid tag", nil)
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
}

func TestResolveSecrets(t *testing.T) {
	lookup := environment.MapLookup(map[string]string{"A": "1", "C": ""})

	secrets, err := environment.ResolveSecrets([]string{"A", "C"}, lookup)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "C": ""}, secrets)

	_, err = environment.ResolveSecrets([]string{"Z", "A", "B"}, lookup)
	assert.EqualError(t, err, "required secret variables are not set: B, Z")
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
}
