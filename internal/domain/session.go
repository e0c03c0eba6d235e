package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a benchmark session
type SessionState string

const (
	SessionPending           SessionState = "pending"
	SessionBaselineCaptured  SessionState = "baseline_captured"
	SessionCandidateCaptured SessionState = "candidate_captured"
	SessionVerdicted         SessionState = "verdicted"
	SessionIncomplete        SessionState = "incomplete"
)

// Verdict is the categorical outcome of a baseline/candidate comparison
type Verdict string

const (
	VerdictPending      Verdict = "pending"
	VerdictImproved     Verdict = "improved"
	VerdictRegressed    Verdict = "regressed"
	VerdictInconclusive Verdict = "inconclusive"
)

// SampleLabel tags a sample as belonging to the baseline or candidate set
type SampleLabel string

const (
	LabelBaseline  SampleLabel = "baseline"
	LabelCandidate SampleLabel = "candidate"
)

// Sample is a single timing measurement
type Sample struct {
	Label SampleLabel
	Value float64
	Unit  string
	At    time.Time
}

// sessionTransitions is the fixed transition table for session states.
// Incomplete is reachable from any non-terminal state via controller teardown
// or a configured timeout, and is terminal like Verdicted.
var sessionTransitions = map[SessionState][]SessionState{
	SessionPending:           {SessionBaselineCaptured, SessionIncomplete},
	SessionBaselineCaptured:  {SessionCandidateCaptured, SessionIncomplete},
	SessionCandidateCaptured: {SessionVerdicted, SessionIncomplete},
	SessionVerdicted:         {},
	SessionIncomplete:        {},
}

// CanTransitionTo reports whether the transition s -> next is legal
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the session can make no further progress
func (s SessionState) Terminal() bool {
	return len(sessionTransitions[s]) == 0
}

// BenchmarkSession records a baseline-vs-candidate comparison for one
// workspace and benchmark target. Samples are append-only.
type BenchmarkSession struct {
	ID           string
	WorkspaceID  string
	Target       string
	State        SessionState
	Verdict      Verdict
	Delta        float64
	ThresholdPct float64
	Samples      []Sample
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBenchmarkSession creates a session in Pending state
func NewBenchmarkSession(workspaceID, target string) *BenchmarkSession {
	now := time.Now()
	return &BenchmarkSession{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Target:      target,
		State:       SessionPending,
		Verdict:     VerdictPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the session to next, or returns an InvalidStateError
func (s *BenchmarkSession) Transition(next SessionState) error {
	if !s.State.CanTransitionTo(next) {
		return &InvalidStateError{
			Component: "bench",
			ID:        s.ID,
			From:      string(s.State),
			To:        string(next),
		}
	}
	s.State = next
	s.UpdatedAt = time.Now()
	return nil
}

// SamplesFor returns the samples carrying the given label, in append order
func (s *BenchmarkSession) SamplesFor(label SampleLabel) []Sample {
	var out []Sample
	for _, sm := range s.Samples {
		if sm.Label == label {
			out = append(out, sm)
		}
	}
	return out
}

// Clone returns a snapshot copy safe to hand to callers
func (s *BenchmarkSession) Clone() *BenchmarkSession {
	c := *s
	c.Samples = make([]Sample, len(s.Samples))
	copy(c.Samples, s.Samples)
	return &c
}
