package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind int

// Keep in this order; the exit code of a kind is its position.
const (
	None Kind = iota
	Configuration
	Binding
	Apply
	Rollout
	ConvergenceTimeout
	Acceptance
	Invocation
	Internal
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case None:
		return "success"
	case Configuration:
		return "configuration error"
	case Binding:
		return "binding error"
	case Apply:
		return "apply error"
	case Rollout:
		return "rollout failure"
	case ConvergenceTimeout:
		return "convergence timeout"
	case Acceptance:
		return "acceptance failure"
	case Invocation:
		return "invocation error"
	case Interrupted:
		return "interrupted"
	default:
		return "internal error"
	}
}

// Error is a fatal condition that terminates a promotion.
//
// Stage and Address are filled in by the promotion controller once the error
// has travelled up to the stage that triggered it.
type Error struct {
	Kind        Kind
	Environment string
	Stage       string
	Address     string
	Err         error
}

func (err *Error) Error() string {
	s := &strings.Builder{}
	if len(err.Environment) > 0 {
		s.WriteString(err.Environment)
		s.WriteString(" ")
	}
	if len(err.Stage) > 0 {
		s.WriteString(err.Stage)
		s.WriteString(": ")
	}
	s.WriteString(err.Err.Error())
	if len(err.Address) > 0 {
		s.WriteString(" (address ")
		s.WriteString(err.Address)
		s.WriteString(")")
	}
	return s.String()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

// KindOf returns the kind of the outermost failure in the error chain.
// Context cancellation is reported as Interrupted, anything else unclassified as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	return Internal
}

// AtStage annotates an error with the environment, stage and address it occurred at.
// Fields that are already set are left untouched.
func AtStage(err error, environment, stage, address string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(KindOf(err), err)
	} else {
		copied := *e
		e = &copied
	}
	if len(e.Environment) == 0 {
		e.Environment = environment
	}
	if len(e.Stage) == 0 {
		e.Stage = stage
	}
	if len(e.Address) == 0 {
		e.Address = address
	}
	return e
}

func ExitCode(err error) int {
	return int(KindOf(err))
}
