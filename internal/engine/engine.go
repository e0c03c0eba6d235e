// Package engine is the orchestration facade: it composes the workspace
// registry, benchmark controller, and policy validator into named flows.
// The facade performs no business logic of its own beyond sequencing and
// error aggregation, and never rolls back steps that already succeeded.
package engine

import (
	"context"
	"strconv"

	"github.com/benchwright/benchwright/internal/bench"
	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/policy"
	"github.com/benchwright/benchwright/internal/registry"
)

// Flow names accepted by Run
const (
	FlowPrepareWorkspace    = "prepare-workspace"
	FlowPrepareAndBenchmark = "prepare-and-benchmark"
	FlowFinalizeMessage     = "finalize-message"
)

// HarnessRunner abstracts the external benchmark harness invocation.
// bench.Runner is the real implementation; tests substitute a fake.
type HarnessRunner interface {
	Run(ctx context.Context, dir, target string) ([]domain.Sample, error)
}

var _ HarnessRunner = (*bench.Runner)(nil)

// Engine wires the components together for flow execution
type Engine struct {
	Registry            *registry.Registry
	Bench               *bench.Controller
	Runner              HarnessRunner
	Policy              *policy.Policy
	DefaultThresholdPct float64
}

// Request is a flow invocation: a flow name plus a configuration map.
// Options a flow does not recognize are ignored; required-but-missing
// options fail fast with a ConfigError naming the key.
type Request struct {
	Flow    string
	Options map[string]string
}

// Result aggregates the sub-results of one flow. Completed reports whether
// the flow ran to the end; Conformant reports policy conformance. The two
// are deliberately separate: a finished validation that found violations is
// a completed flow, not a failed one.
type Result struct {
	Flow       string                   `json:"flow"`
	Completed  bool                     `json:"completed"`
	Conformant bool                     `json:"conformant"`
	Component  string                   `json:"component,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Workspace  *domain.WorkspaceRecord  `json:"workspace,omitempty"`
	Session    *domain.BenchmarkSession `json:"session,omitempty"`
	Violations []policy.Violation       `json:"violations,omitempty"`

	Err error `json:"-"`
}

func (r *Result) fail(component string, err error) *Result {
	r.Completed = false
	r.Component = component
	r.Err = err
	r.Error = err.Error()
	return r
}

// Run executes the named flow. Errors from components surface verbatim with
// the originating component tagged; sub-results of steps that completed
// before the failure stay populated.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	res := &Result{Flow: req.Flow, Conformant: true}

	switch req.Flow {
	case FlowPrepareWorkspace:
		return e.prepareWorkspace(req, res)
	case FlowPrepareAndBenchmark:
		return e.prepareAndBenchmark(ctx, req, res)
	case FlowFinalizeMessage:
		return e.finalizeMessage(req, res)
	default:
		return res.fail("engine", &domain.ConfigError{
			Component: "engine",
			Key:       "flow",
			Reason:    "unknown flow " + strconv.Quote(req.Flow),
		})
	}
}

func (e *Engine) prepareWorkspace(req Request, res *Result) *Result {
	baseRepo, err := requireOption(req, "baseRepo")
	if err != nil {
		return res.fail("engine", err)
	}
	branch, err := requireOption(req, "branchName")
	if err != nil {
		return res.fail("engine", err)
	}

	rec, err := e.Registry.Create(baseRepo, branch)
	if err != nil {
		return res.fail("registry", err)
	}
	res.Workspace = rec

	rec, err = e.Registry.Activate(rec.ID)
	if err != nil {
		return res.fail("registry", err)
	}
	res.Workspace = rec

	res.Completed = true
	return res
}

func (e *Engine) prepareAndBenchmark(ctx context.Context, req Request, res *Result) *Result {
	res = e.prepareWorkspace(req, res)
	if !res.Completed {
		return res
	}
	res.Completed = false

	target, err := requireOption(req, "benchmarkTarget")
	if err != nil {
		return res.fail("engine", err)
	}
	threshold, err := e.thresholdPct(req)
	if err != nil {
		return res.fail("engine", err)
	}

	sess, err := e.Bench.StartSession(res.Workspace.ID, target)
	if err != nil {
		return res.fail("bench", err)
	}
	res.Session = sess

	if err := e.Capture(ctx, sess.ID, domain.LabelBaseline); err != nil {
		return res.fail("bench", err)
	}
	if err := e.Capture(ctx, sess.ID, domain.LabelCandidate); err != nil {
		return res.fail("bench", err)
	}

	verdicted, err := e.Bench.ComputeVerdict(sess.ID, threshold)
	if err != nil {
		return res.fail("bench", err)
	}
	res.Session = verdicted

	res.Completed = true
	return res
}

func (e *Engine) finalizeMessage(req Request, res *Result) *Result {
	draftText, err := requireOption(req, "messageDraft")
	if err != nil {
		return res.fail("engine", err)
	}

	draft, err := policy.ParseDraft([]byte(draftText))
	if err != nil {
		return res.fail("policy", err)
	}

	// Metadata options override what the draft's frontmatter carries; the
	// measured-via marker in particular is supplied by the benchmark
	// controller, not by the message author.
	if v, ok := req.Options["measuredVia"]; ok && v != "" {
		draft.MeasuredVia = v
	}
	if v, ok := req.Options["kind"]; ok && v != "" {
		draft.Kind = v
	}
	if v, ok := req.Options["diffSize"]; ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return res.fail("engine", &domain.ConfigError{
				Component: "engine",
				Key:       "diffSize",
				Reason:    "not an integer",
			})
		}
		draft.DiffSize = size
	}

	res.Violations = policy.Validate(e.Policy, draft)
	res.Conformant = policy.Conformant(res.Violations)
	res.Completed = true
	return res
}

// Capture runs the harness and records the samples under the given label.
// Baseline measurements run in the base repository; candidate measurements
// run in the workspace directory.
func (e *Engine) Capture(ctx context.Context, sessionID string, label domain.SampleLabel) error {
	sess, err := e.Bench.Get(sessionID)
	if err != nil {
		return err
	}
	ws, err := e.Registry.Get(sess.WorkspaceID)
	if err != nil {
		return err
	}

	dir := ws.BaseRepo
	if label == domain.LabelCandidate {
		dir = ws.Path
	}

	samples, err := e.Runner.Run(ctx, dir, sess.Target)
	if err != nil {
		return err
	}

	if label == domain.LabelBaseline {
		return e.Bench.RecordBaseline(sessionID, samples)
	}
	return e.Bench.RecordCandidate(sessionID, samples)
}

func (e *Engine) thresholdPct(req Request) (float64, error) {
	raw, ok := req.Options["thresholdPct"]
	if !ok || raw == "" {
		return e.DefaultThresholdPct, nil
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil || pct < 0 {
		return 0, &domain.ConfigError{
			Component: "engine",
			Key:       "thresholdPct",
			Reason:    "not a non-negative number",
		}
	}
	return pct, nil
}

func requireOption(req Request, key string) (string, error) {
	v, ok := req.Options[key]
	if !ok || v == "" {
		return "", &domain.ConfigError{Component: "engine", Key: key}
	}
	return v, nil
}
