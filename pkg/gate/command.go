package gate

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/aymerick/raymond"
	log "github.com/sirupsen/logrus"

	"github.com/nais/promote/pkg/failure"
)

// CommandGate runs a shell command. The command is a handlebars template
// where {{host}} and {{port}} expand to the address under test.
// The same values are exported as TEST_HOST and TEST_PORT.
type CommandGate struct {
	Command string
	Stdout  io.Writer
	Stderr  io.Writer
}

var _ Gate = &CommandGate{}

// Render expands the command template for an address.
func (g *CommandGate) Render(address string, port int) (string, error) {
	template, err := raymond.Parse(g.Command)
	if err != nil {
		return "", failure.Errorf(failure.Configuration, "parse test command: %w", err)
	}

	output, err := template.Exec(map[string]any{
		"host": address,
		"port": port,
	})
	if err != nil {
		return "", failure.Errorf(failure.Configuration, "execute test command template: %w", err)
	}

	return output, nil
}

func (g *CommandGate) Run(ctx context.Context, address string, port int) error {
	command, err := g.Render(address, port)
	if err != nil {
		return err
	}

	log.Infof("Running acceptance tests: %s", command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = g.Stdout
	cmd.Stderr = g.Stderr
	cmd.Env = append(os.Environ(),
		"TEST_HOST="+address,
		"TEST_PORT="+strconv.Itoa(port),
	)

	err = cmd.Run()
	if ctx.Err() != nil {
		return failure.Wrap(failure.Interrupted, ctx.Err())
	}
	if err != nil {
		return failure.Errorf(failure.Acceptance, "acceptance tests failed: %w", err)
	}

	return nil
}

func (g *CommandGate) String() string {
	return fmt.Sprintf("command %q", g.Command)
}
