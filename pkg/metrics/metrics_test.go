package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/nais/promote/pkg/metrics"
)

func TestResourceApplied(t *testing.T) {
	metrics.ResourceApplied("Deployment", "created")
	metrics.ResourceApplied("Deployment", "created")
	metrics.ResourceApplied("Deployment", "already_exists")

	expected := `
# HELP promote_resources_applied_total number of resources submitted to a cluster, by apply result
# TYPE promote_resources_applied_total counter
promote_resources_applied_total{kind="Deployment",result="already_exists"} 1
promote_resources_applied_total{kind="Deployment",result="created"} 2
`
	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "promote_resources_applied_total")
	assert.NoError(t, err)
}

func TestObserveConvergence(t *testing.T) {
	metrics.ObserveConvergence("rollout", 3*time.Second)
	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "promote_convergence_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPush(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics.StageFinished("staging", "deployed")
	err := metrics.Push(server.URL)
	assert.NoError(t, err)
	assert.Equal(t, "/metrics/job/promote", path)
}
