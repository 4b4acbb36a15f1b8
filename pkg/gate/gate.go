// Package gate runs acceptance tests against a freshly deployed environment.
package gate

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/nais/promote/pkg/environment"
)

// Gate passes when the environment at address:port is fit for promotion.
// Any error blocks the promotion.
type Gate interface {
	Run(ctx context.Context, address string, port int) error
}

// ForTarget returns the configured test command of a target, or the health check gate if there is none.
func ForTarget(target environment.Target) Gate {
	return forTarget(target, os.Stdout, os.Stderr)
}

func forTarget(target environment.Target, stdout, stderr io.Writer) Gate {
	if len(target.TestCommand) > 0 {
		return &CommandGate{
			Command: target.TestCommand,
			Stdout:  stdout,
			Stderr:  stderr,
		}
	}
	return &HealthGate{
		Path:     target.HealthPath,
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
	}
}

const (
	DefaultAttempts = 6
	DefaultDelay    = 10 * time.Second
)
