package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkspaceState represents the lifecycle state of a workspace
type WorkspaceState string

const (
	WorkspaceCreated   WorkspaceState = "created"
	WorkspaceActive    WorkspaceState = "active"
	WorkspaceStale     WorkspaceState = "stale"
	WorkspaceReclaimed WorkspaceState = "reclaimed"
)

// workspaceTransitions is the fixed transition table for workspace states.
// Reclaimed is terminal: reclaimed records are retained for audit only.
var workspaceTransitions = map[WorkspaceState][]WorkspaceState{
	WorkspaceCreated:   {WorkspaceActive},
	WorkspaceActive:    {WorkspaceStale},
	WorkspaceStale:     {WorkspaceActive, WorkspaceReclaimed},
	WorkspaceReclaimed: {},
}

// CanTransitionTo reports whether the transition s -> next is legal
func (s WorkspaceState) CanTransitionTo(next WorkspaceState) bool {
	for _, allowed := range workspaceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WorkspaceRecord tracks one isolated workspace copy of a base repository
type WorkspaceRecord struct {
	ID          string
	BaseRepo    string
	Branch      string
	Path        string
	State       WorkspaceState
	CreatedAt   time.Time
	LastTouched time.Time
}

// NewWorkspaceRecord creates a record in Created state
func NewWorkspaceRecord(baseRepo, branch string) *WorkspaceRecord {
	now := time.Now()
	return &WorkspaceRecord{
		ID:          uuid.NewString(),
		BaseRepo:    baseRepo,
		Branch:      branch,
		State:       WorkspaceCreated,
		CreatedAt:   now,
		LastTouched: now,
	}
}

// Key returns the (baseRepo, branch) claim key for uniqueness checks
func (w *WorkspaceRecord) Key() string {
	return fmt.Sprintf("%s#%s", w.BaseRepo, w.Branch)
}

// Transition moves the record to next, or returns an InvalidStateError
func (w *WorkspaceRecord) Transition(next WorkspaceState) error {
	if !w.State.CanTransitionTo(next) {
		return &InvalidStateError{
			Component: "registry",
			ID:        w.ID,
			From:      string(w.State),
			To:        string(next),
		}
	}
	w.State = next
	w.LastTouched = time.Now()
	return nil
}

// Clone returns a snapshot copy safe to hand to callers
func (w *WorkspaceRecord) Clone() *WorkspaceRecord {
	c := *w
	return &c
}
