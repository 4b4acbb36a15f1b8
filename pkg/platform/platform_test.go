package platform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/platform"
)

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "10.0.0.1:80", platform.Endpoint{Address: "10.0.0.1", Port: 80}.String())
	assert.Equal(t, "[::1]:443", platform.Endpoint{Address: "::1", Port: 443}.String())
	assert.Equal(t, "https://hello-abc.a.run.app", platform.Endpoint{Address: "hello-abc.a.run.app", Port: 443, URL: "https://hello-abc.a.run.app"}.String())
	assert.Empty(t, platform.Endpoint{}.String())
}

func TestRegistry(t *testing.T) {
	gke := &platform.MockPlatform{}
	registry := platform.Registry{environment.PlatformGKE: gke}

	p, err := registry.For(environment.Target{Platform: environment.PlatformGKE})
	assert.NoError(t, err)
	assert.Equal(t, gke, p)

	_, err = registry.For(environment.Target{Platform: environment.PlatformCloudRun})
	assert.Equal(t, failure.Configuration, failure.KindOf(err))
}
