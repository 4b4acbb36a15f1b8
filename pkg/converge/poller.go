package converge

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/metrics"
)

const (
	DefaultInterval = time.Second
	DefaultFactor   = 1.0
	DefaultCap      = time.Minute
)

// Condition reports whether the cluster has converged, along with a short
// description of what it observed.
// Transient API failures must be reported as observations, not errors; any
// returned error ends the wait immediately.
type Condition func(ctx context.Context) (done bool, observed string, err error)

// Poller evaluates conditions until they hold.
type Poller struct {
	Interval time.Duration
	// Timeout bounds each wait. Zero waits until the condition holds or the context is cancelled.
	Timeout time.Duration
	// Factor greater than one makes the interval grow exponentially, up to Cap.
	Factor float64
	Cap    time.Duration
	Logger *log.Entry
}

func (p Poller) backoff() wait.Backoff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	b := wait.Backoff{
		Duration: interval,
		Steps:    math.MaxInt32,
	}
	if p.Factor > 1 {
		b.Factor = p.Factor
		b.Cap = p.Cap
	}
	return b
}

func (p Poller) logger() *log.Entry {
	if p.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return p.Logger
}

// WaitUntil blocks until condition is done, and returns the last observation.
func (p Poller) WaitUntil(ctx context.Context, what string, condition Condition) (string, error) {
	var observed string
	var cancel context.CancelFunc

	parent := ctx
	if p.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	logger := p.logger().WithField("condition", what)
	backoff := p.backoff()
	start := time.Now()

	for {
		done, obs, err := condition(ctx)
		// An observation made while the context ended only describes the cancelled request.
		if ctx.Err() != nil {
			return observed, p.expired(parent, what, observed)
		}
		if len(obs) > 0 {
			observed = obs
		}
		if err != nil {
			return observed, err
		}
		if done {
			elapsed := time.Since(start)
			metrics.ObserveConvergence(what, elapsed)
			logger.Debugf("%s converged after %s: %s", what, elapsed.Round(time.Second), observed)
			return observed, nil
		}

		logger.WithField("observed", observed).Infof("Still waiting for %s...", what)

		timer := time.NewTimer(backoff.Step())
		select {
		case <-ctx.Done():
			timer.Stop()
			return observed, p.expired(parent, what, observed)
		case <-timer.C:
		}
	}
}

func (p Poller) expired(parent context.Context, what, observed string) error {
	if parent.Err() != nil {
		return failure.Wrap(failure.Interrupted, fmt.Errorf("waiting for %s: %w", what, parent.Err()))
	}
	if len(observed) == 0 {
		observed = "nothing"
	}
	return failure.Errorf(failure.ConvergenceTimeout, "%s did not converge within %s; last observed %s", what, p.Timeout, observed)
}
