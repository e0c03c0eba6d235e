// Package bench drives the baseline -> candidate -> verdict state machine
// for benchmark sessions and owns all verdict arithmetic. Every number it
// reports is computed from recorded samples; nothing is ever estimated.
package bench

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/workstore"
)

// Controller manages benchmark sessions. Sessions are held in memory for
// fast access and flushed to the store on every mutation.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*domain.BenchmarkSession
	store    *workstore.Store
}

// NewController creates a Controller and loads persisted sessions
func NewController(store *workstore.Store) (*Controller, error) {
	c := &Controller{
		sessions: make(map[string]*domain.BenchmarkSession),
		store:    store,
	}

	all, err := store.ListSessions(workstore.SessionListOptions{})
	if err != nil {
		return nil, err
	}
	for _, sess := range all {
		c.sessions[sess.ID] = sess
	}

	return c, nil
}

// StartSession creates a new Pending session for the given workspace and target
func (c *Controller) StartSession(workspaceID, target string) (*domain.BenchmarkSession, error) {
	sess := domain.NewBenchmarkSession(workspaceID, target)

	if err := c.store.UpsertSession(sess); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()

	return sess.Clone(), nil
}

// RecordBaseline appends baseline samples and moves the session from Pending
// to BaselineCaptured
func (c *Controller) RecordBaseline(sessionID string, samples []domain.Sample) error {
	return c.record(sessionID, domain.LabelBaseline, samples, domain.SessionPending, domain.SessionBaselineCaptured)
}

// RecordCandidate appends candidate samples and moves the session from
// BaselineCaptured to CandidateCaptured. The state machine, not caller
// discipline, guarantees the baseline was recorded first.
func (c *Controller) RecordCandidate(sessionID string, samples []domain.Sample) error {
	return c.record(sessionID, domain.LabelCandidate, samples, domain.SessionBaselineCaptured, domain.SessionCandidateCaptured)
}

func (c *Controller) record(sessionID string, label domain.SampleLabel, samples []domain.Sample, from, to domain.SessionState) error {
	if len(samples) == 0 {
		return &domain.ConfigError{Component: "bench", Key: string(label), Reason: "empty sample set"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return &domain.NotFoundError{Component: "bench", ID: sessionID}
	}
	if sess.State != from {
		return &domain.InvalidStateError{
			Component: "bench",
			ID:        sessionID,
			From:      string(sess.State),
			To:        string(to),
		}
	}

	stamped := make([]domain.Sample, len(samples))
	for i, sm := range samples {
		sm.Label = label
		if sm.At.IsZero() {
			sm.At = time.Now()
		}
		stamped[i] = sm
	}

	for _, sm := range stamped {
		if err := c.store.AppendSample(sessionID, sm); err != nil {
			return err
		}
	}

	sess.Samples = append(sess.Samples, stamped...)
	if err := sess.Transition(to); err != nil {
		return err
	}
	return c.store.UpsertSession(sess)
}

// ComputeVerdict compares baseline and candidate medians and moves the
// session to Verdicted. The median is used rather than the mean for
// robustness to timing outliers. The relative delta is persisted alongside
// the verdict.
func (c *Controller) ComputeVerdict(sessionID string, thresholdPct float64) (*domain.BenchmarkSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{Component: "bench", ID: sessionID}
	}
	if sess.State != domain.SessionCandidateCaptured {
		return nil, &domain.InvalidStateError{
			Component: "bench",
			ID:        sessionID,
			From:      string(sess.State),
			To:        string(domain.SessionVerdicted),
		}
	}

	baseline := values(sess.SamplesFor(domain.LabelBaseline))
	candidate := values(sess.SamplesFor(domain.LabelCandidate))
	if len(baseline) == 0 || len(candidate) == 0 {
		// Unreachable through the state machine, but never verdict without
		// both sample sets.
		return nil, fmt.Errorf("bench: session %s is missing samples", sessionID)
	}

	baseMedian := median(baseline)
	candMedian := median(candidate)
	if baseMedian == 0 {
		// A relative delta against a zero baseline is undefined; refuse to
		// verdict rather than report Inf/NaN. The session stays
		// CandidateCaptured until the timeout policy marks it Incomplete.
		return nil, fmt.Errorf("bench: session %s has a zero baseline median, relative delta undefined", sessionID)
	}
	delta := (candMedian - baseMedian) / baseMedian

	verdict := domain.VerdictInconclusive
	if abs(delta) >= thresholdPct/100 {
		if delta > 0 {
			verdict = domain.VerdictRegressed
		} else {
			verdict = domain.VerdictImproved
		}
	}

	sess.Delta = delta
	sess.ThresholdPct = thresholdPct
	sess.Verdict = verdict
	if err := sess.Transition(domain.SessionVerdicted); err != nil {
		return nil, err
	}
	if err := c.store.UpsertSession(sess); err != nil {
		return nil, err
	}

	return sess.Clone(), nil
}

// Get returns a snapshot of the session with the given id
func (c *Controller) Get(sessionID string) (*domain.BenchmarkSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{Component: "bench", ID: sessionID}
	}
	return sess.Clone(), nil
}

// List returns snapshots of all sessions, ordered by creation time
func (c *Controller) List() []*domain.BenchmarkSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*domain.BenchmarkSession, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkIncomplete forcibly moves a non-terminal session to Incomplete.
// Used by the maintenance sweeper when a session timeout is configured.
func (c *Controller) MarkIncomplete(sessionID string) (*domain.BenchmarkSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{Component: "bench", ID: sessionID}
	}
	if err := sess.Transition(domain.SessionIncomplete); err != nil {
		return nil, err
	}
	if err := c.store.UpsertSession(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Teardown marks every session that never reached a terminal state as
// Incomplete and returns them. Sessions are reported, never dropped.
func (c *Controller) Teardown() ([]*domain.BenchmarkSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var incomplete []*domain.BenchmarkSession
	for _, sess := range c.sessions {
		if sess.State.Terminal() {
			continue
		}
		if err := sess.Transition(domain.SessionIncomplete); err != nil {
			return incomplete, err
		}
		if err := c.store.UpsertSession(sess); err != nil {
			return incomplete, err
		}
		incomplete = append(incomplete, sess.Clone())
	}

	sort.Slice(incomplete, func(i, j int) bool { return incomplete[i].ID < incomplete[j].ID })
	return incomplete, nil
}

func values(samples []domain.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, sm := range samples {
		out[i] = sm.Value
	}
	return out
}

// median returns the middle value of vs, averaging the two central values
// for even-sized inputs
func median(vs []float64) float64 {
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
