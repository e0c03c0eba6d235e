package domain

import (
	"errors"
	"testing"
)

func TestWorkspaceState_Transitions(t *testing.T) {
	tests := []struct {
		from WorkspaceState
		to   WorkspaceState
		ok   bool
	}{
		{WorkspaceCreated, WorkspaceActive, true},
		{WorkspaceActive, WorkspaceStale, true},
		{WorkspaceStale, WorkspaceActive, true},
		{WorkspaceStale, WorkspaceReclaimed, true},
		{WorkspaceCreated, WorkspaceReclaimed, false},
		{WorkspaceActive, WorkspaceReclaimed, false},
		{WorkspaceReclaimed, WorkspaceActive, false},
		{WorkspaceReclaimed, WorkspaceStale, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestWorkspaceRecord_Transition(t *testing.T) {
	rec := NewWorkspaceRecord("/repos/api", "feat/cache")
	if rec.State != WorkspaceCreated {
		t.Fatalf("State = %s, want created", rec.State)
	}
	if rec.ID == "" {
		t.Fatal("ID is empty")
	}

	if err := rec.Transition(WorkspaceActive); err != nil {
		t.Fatal(err)
	}

	// Active -> Reclaimed is illegal: must go stale first
	err := rec.Transition(WorkspaceReclaimed)
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
	if ise.From != "active" || ise.To != "reclaimed" {
		t.Errorf("got %s -> %s", ise.From, ise.To)
	}
	if rec.State != WorkspaceActive {
		t.Errorf("failed transition mutated state to %s", rec.State)
	}
}

func TestWorkspaceRecord_Key(t *testing.T) {
	rec := NewWorkspaceRecord("/repos/api", "feat/cache")
	if got := rec.Key(); got != "/repos/api#feat/cache" {
		t.Errorf("Key() = %q", got)
	}
}

func TestSessionState_Transitions(t *testing.T) {
	tests := []struct {
		from SessionState
		to   SessionState
		ok   bool
	}{
		{SessionPending, SessionBaselineCaptured, true},
		{SessionBaselineCaptured, SessionCandidateCaptured, true},
		{SessionCandidateCaptured, SessionVerdicted, true},
		{SessionPending, SessionCandidateCaptured, false},
		{SessionPending, SessionVerdicted, false},
		{SessionBaselineCaptured, SessionVerdicted, false},
		{SessionVerdicted, SessionIncomplete, false},
		{SessionPending, SessionIncomplete, true},
		{SessionBaselineCaptured, SessionIncomplete, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestSessionState_Terminal(t *testing.T) {
	if !SessionVerdicted.Terminal() {
		t.Error("verdicted should be terminal")
	}
	if !SessionIncomplete.Terminal() {
		t.Error("incomplete should be terminal")
	}
	if SessionPending.Terminal() {
		t.Error("pending should not be terminal")
	}
}

func TestBenchmarkSession_SamplesFor(t *testing.T) {
	s := NewBenchmarkSession("ws-1", "pkg/codec")
	s.Samples = append(s.Samples,
		Sample{Label: LabelBaseline, Value: 100, Unit: "ms"},
		Sample{Label: LabelCandidate, Value: 80, Unit: "ms"},
		Sample{Label: LabelBaseline, Value: 102, Unit: "ms"},
	)

	base := s.SamplesFor(LabelBaseline)
	if len(base) != 2 {
		t.Fatalf("baseline count = %d, want 2", len(base))
	}
	if base[1].Value != 102 {
		t.Errorf("append order not preserved: %v", base)
	}
}

func TestBenchmarkSession_CloneIsIndependent(t *testing.T) {
	s := NewBenchmarkSession("ws-1", "pkg/codec")
	s.Samples = append(s.Samples, Sample{Label: LabelBaseline, Value: 1, Unit: "ms"})

	c := s.Clone()
	c.Samples[0].Value = 99
	c.State = SessionVerdicted

	if s.Samples[0].Value != 1 {
		t.Error("clone shares sample backing array")
	}
	if s.State != SessionPending {
		t.Error("clone shares state")
	}
}
