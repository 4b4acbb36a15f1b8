package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "promote"

	labelKind        = "kind"
	labelResult      = "result"
	labelEnvironment = "environment"
	labelOutcome     = "outcome"
	labelCondition   = "condition"
	labelCluster     = "cluster"

	pushJob = "promote"
)

var (
	resourcesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "resources_applied_total",
		Help:      "number of resources submitted to a cluster, by apply result",
		Namespace: namespace,
	},
		[]string{
			labelKind,
			labelResult,
		},
	)

	stages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "stages_total",
		Help:      "number of finished promotion stages, by outcome",
		Namespace: namespace,
	},
		[]string{
			labelEnvironment,
			labelOutcome,
		},
	)

	convergence = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "convergence_seconds",
		Help:      "time spent waiting for cluster state to converge",
		Namespace: namespace,
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
		[]string{
			labelCondition,
		},
	)

	apiWarnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "api_warnings_total",
		Help:      "number of warnings returned by the Kubernetes API server",
		Namespace: namespace,
	},
		[]string{
			labelCluster,
		},
	)
)

func ResourceApplied(kind, result string) {
	resourcesApplied.With(prometheus.Labels{
		labelKind:   kind,
		labelResult: result,
	}).Inc()
}

func StageFinished(environment, outcome string) {
	stages.With(prometheus.Labels{
		labelEnvironment: environment,
		labelOutcome:     outcome,
	}).Inc()
}

func ObserveConvergence(condition string, elapsed time.Duration) {
	convergence.With(prometheus.Labels{
		labelCondition: condition,
	}).Observe(elapsed.Seconds())
}

func APIWarning(cluster string) {
	apiWarnings.With(prometheus.Labels{
		labelCluster: cluster,
	}).Inc()
}

// Push sends all metrics of this run to a Prometheus Pushgateway.
// A short-lived CLI has no scrape endpoint.
func Push(url string) error {
	return push.New(url, pushJob).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}

func init() {
	prometheus.MustRegister(resourcesApplied)
	prometheus.MustRegister(stages)
	prometheus.MustRegister(convergence)
	prometheus.MustRegister(apiWarnings)
}
