package bench

import (
	"errors"
	"testing"

	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/workstore"
)

func newTestController(t *testing.T) (*Controller, *workstore.Store) {
	t.Helper()
	store, err := workstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctrl, err := NewController(store)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl, store
}

func ms(vs ...float64) []domain.Sample {
	out := make([]domain.Sample, len(vs))
	for i, v := range vs {
		out[i] = domain.Sample{Value: v, Unit: "ms"}
	}
	return out
}

func TestController_ImprovedVerdict(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}

	if err := ctrl.RecordBaseline(sess.ID, ms(100, 102, 98)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordCandidate(sess.ID, ms(80, 79, 81)); err != nil {
		t.Fatal(err)
	}

	got, err := ctrl.ComputeVerdict(sess.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Verdict != domain.VerdictImproved {
		t.Errorf("Verdict = %s, want improved", got.Verdict)
	}
	if got.Delta != -0.20 {
		t.Errorf("Delta = %v, want -0.20", got.Delta)
	}
	if got.State != domain.SessionVerdicted {
		t.Errorf("State = %s, want verdicted", got.State)
	}
}

func TestController_InconclusiveVerdict(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(sess.ID, ms(100)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordCandidate(sess.ID, ms(102)); err != nil {
		t.Fatal(err)
	}

	got, err := ctrl.ComputeVerdict(sess.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Verdict != domain.VerdictInconclusive {
		t.Errorf("Verdict = %s, want inconclusive", got.Verdict)
	}
	if got.Delta != 0.02 {
		t.Errorf("Delta = %v, want 0.02", got.Delta)
	}
}

func TestController_RegressedVerdict(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(sess.ID, ms(100, 100, 100)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordCandidate(sess.ID, ms(130, 128, 131)); err != nil {
		t.Fatal(err)
	}

	got, err := ctrl.ComputeVerdict(sess.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Verdict != domain.VerdictRegressed {
		t.Errorf("Verdict = %s, want regressed", got.Verdict)
	}
	if got.Delta != 0.30 {
		t.Errorf("Delta = %v, want 0.30", got.Delta)
	}
}

func TestController_StateOrderEnforced(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}

	var ise *domain.InvalidStateError

	// Candidate before baseline
	if err := ctrl.RecordCandidate(sess.ID, ms(80)); !errors.As(err, &ise) {
		t.Errorf("candidate-first err = %v, want InvalidStateError", err)
	}

	// Verdict before any samples
	if _, err := ctrl.ComputeVerdict(sess.ID, 5); !errors.As(err, &ise) {
		t.Errorf("early verdict err = %v, want InvalidStateError", err)
	}

	if err := ctrl.RecordBaseline(sess.ID, ms(100)); err != nil {
		t.Fatal(err)
	}

	// Double baseline
	if err := ctrl.RecordBaseline(sess.ID, ms(101)); !errors.As(err, &ise) {
		t.Errorf("double baseline err = %v, want InvalidStateError", err)
	}

	// Verdict before candidate
	if _, err := ctrl.ComputeVerdict(sess.ID, 5); !errors.As(err, &ise) {
		t.Errorf("verdict before candidate err = %v, want InvalidStateError", err)
	}
}

func TestController_EmptySamplesRejected(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	var ce *domain.ConfigError
	if err := ctrl.RecordBaseline(sess.ID, nil); !errors.As(err, &ce) {
		t.Errorf("err = %v, want ConfigError", err)
	}
	if ce.Key != string(domain.LabelBaseline) {
		t.Errorf("Key = %q, want baseline", ce.Key)
	}

	// Session stays Pending after the rejected call
	got, err := ctrl.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.SessionPending {
		t.Errorf("State = %s, want pending", got.State)
	}
}

func TestController_ZeroBaselineMedianRejected(t *testing.T) {
	ctrl, _ := newTestController(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(sess.ID, ms(0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordCandidate(sess.ID, ms(5)); err != nil {
		t.Fatal(err)
	}

	// A relative delta against zero is undefined, never Inf/NaN
	if _, err := ctrl.ComputeVerdict(sess.ID, 5); err == nil {
		t.Fatal("zero baseline median should not produce a verdict")
	}

	got, err := ctrl.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.SessionCandidateCaptured {
		t.Errorf("State = %s, want candidate_captured", got.State)
	}
	if got.Verdict != domain.VerdictPending {
		t.Errorf("Verdict = %s, want pending", got.Verdict)
	}
}

func TestController_UnknownSession(t *testing.T) {
	ctrl, _ := newTestController(t)

	var nfe *domain.NotFoundError
	if err := ctrl.RecordBaseline("nope", ms(1)); !errors.As(err, &nfe) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
	if _, err := ctrl.ComputeVerdict("nope", 5); !errors.As(err, &nfe) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

func TestController_TeardownReportsIncomplete(t *testing.T) {
	ctrl, store := newTestController(t)

	pending, err := ctrl.StartSession("ws-1", "pkg/a")
	if err != nil {
		t.Fatal(err)
	}
	halfway, err := ctrl.StartSession("ws-1", "pkg/b")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(halfway.ID, ms(100)); err != nil {
		t.Fatal(err)
	}
	done, err := ctrl.StartSession("ws-1", "pkg/c")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(done.ID, ms(100)); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordCandidate(done.ID, ms(50)); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.ComputeVerdict(done.ID, 5); err != nil {
		t.Fatal(err)
	}

	incomplete, err := ctrl.Teardown()
	if err != nil {
		t.Fatal(err)
	}
	if len(incomplete) != 2 {
		t.Fatalf("incomplete count = %d, want 2", len(incomplete))
	}
	for _, sess := range incomplete {
		if sess.State != domain.SessionIncomplete {
			t.Errorf("session %s state = %s, want incomplete", sess.ID, sess.State)
		}
		if sess.ID == done.ID {
			t.Error("verdicted session reported as incomplete")
		}
	}

	// Teardown state is durable
	got, err := store.GetSession(pending.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.SessionIncomplete {
		t.Errorf("persisted state = %s, want incomplete", got.State)
	}
}

func TestController_LoadsPersistedSessions(t *testing.T) {
	store, err := workstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctrl, err := NewController(store)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(sess.ID, ms(100, 102, 98)); err != nil {
		t.Fatal(err)
	}

	// A fresh controller over the same store resumes mid-session
	reloaded, err := NewController(store)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.RecordCandidate(sess.ID, ms(80, 79, 81)); err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.ComputeVerdict(sess.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Verdict != domain.VerdictImproved {
		t.Errorf("Verdict = %s, want improved", got.Verdict)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		vs   []float64
		want float64
	}{
		{"odd", []float64{100, 102, 98}, 100},
		{"even", []float64{10, 20, 30, 40}, 25},
		{"single", []float64{7}, 7},
		{"unsorted", []float64{3, 1, 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.vs); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.vs, got, tt.want)
			}
		})
	}
}
