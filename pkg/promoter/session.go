package promoter

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/platform"
)

type State int

const (
	Init State = iota
	Bound
	StagingApplied
	StagingConverged
	Tested
	TestSkipped
	LivePromotable
	LiveApplied
	LiveConverged
	RollbackApplied
	RollbackConverged
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case Bound:
		return "Bound"
	case StagingApplied:
		return "StagingApplied"
	case StagingConverged:
		return "StagingConverged"
	case Tested:
		return "Tested"
	case TestSkipped:
		return "TestSkipped"
	case LivePromotable:
		return "LivePromotable"
	case LiveApplied:
		return "LiveApplied"
	case LiveConverged:
		return "LiveConverged"
	case RollbackApplied:
		return "RollbackApplied"
	case RollbackConverged:
		return "RollbackConverged"
	case Done:
		return "Done"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Aborted is reachable from every state except Done, and is not listed here.
var transitions = map[State][]State{
	Init:              {Bound},
	Bound:             {StagingApplied, RollbackApplied},
	StagingApplied:    {StagingConverged},
	StagingConverged:  {Tested, TestSkipped},
	Tested:            {LivePromotable, Done},
	TestSkipped:       {LivePromotable, Done},
	LivePromotable:    {LiveApplied},
	LiveApplied:       {LiveConverged},
	LiveConverged:     {Done},
	RollbackApplied:   {RollbackConverged, Done},
	RollbackConverged: {Done},
}

type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeDeployed Outcome = "deployed"
	OutcomeTested   Outcome = "tested"
	OutcomePromoted Outcome = "promoted"
	OutcomeAborted  Outcome = "aborted"
)

// StageRecord is the progress of one environment of the chain.
type StageRecord struct {
	Target   environment.Target
	Outcome  Outcome
	Endpoint platform.Endpoint
}

type Options struct {
	Rollback bool
	NoTest   bool
	SkipWait bool
}

// Session is the state of a single promotion. It lives as long as the process and is never persisted.
type Session struct {
	ID      string
	Version string
	Stages  []*StageRecord
	Options

	state   State
	history []State
}

func NewSession(version string, targets []environment.Target, options Options) *Session {
	stages := make([]*StageRecord, 0, len(targets))
	for _, target := range targets {
		stages = append(stages, &StageRecord{
			Target:  target,
			Outcome: OutcomePending,
		})
	}

	return &Session{
		ID:      uuid.New().String(),
		Version: version,
		Stages:  stages,
		Options: options,
		state:   Init,
		history: []State{Init},
	}
}

func (s *Session) State() State {
	return s.state
}

// History returns every state the session has been in, in order.
func (s *Session) History() []State {
	return append([]State(nil), s.history...)
}

// TwoStage reports whether the session promotes from one environment to another.
func (s *Session) TwoStage() bool {
	return len(s.Stages) > 1
}

func (s *Session) transition(to State) error {
	if !s.allowed(to) {
		return failure.Errorf(failure.Internal, "illegal state transition from %s to %s", s.state, to)
	}
	s.state = to
	s.history = append(s.history, to)
	return nil
}

func (s *Session) allowed(to State) bool {
	if s.state == Aborted || s.state == Done {
		return false
	}
	if to == Aborted {
		return true
	}
	for _, next := range transitions[s.state] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Session) abort() {
	_ = s.transition(Aborted)
}
