package policy

import (
	"reflect"
	"strings"
	"testing"

	"github.com/benchwright/benchwright/internal/domain"
)

func findViolation(vs []Violation, rule string) *Violation {
	for i := range vs {
		if vs[i].Rule == rule {
			return &vs[i]
		}
	}
	return nil
}

func TestValidate_ConformantDraft(t *testing.T) {
	d := &Draft{
		Kind:        "perf",
		Title:       "perf(codec): speed up varint decoding",
		Body:        "Replace the byte-at-a-time loop with a table lookup.",
		DiffSize:    120,
		MeasuredVia: "",
	}
	vs := Validate(Default(), d)
	if len(vs) != 0 {
		t.Errorf("violations = %v, want none", vs)
	}
	if !Conformant(vs) {
		t.Error("draft should be conformant")
	}
}

func TestValidate_TitleRules(t *testing.T) {
	p := Default()
	tests := []struct {
		name  string
		title string
		rule  string
	}{
		{"no prefix", "speed up varint decoding", "title-prefix"},
		{"unknown prefix", "wip: speed up varint decoding", "title-prefix"},
		{"trailing period", "fix: handle empty input.", "title-trailing-period"},
		{"too long", "fix: " + strings.Repeat("x", 80), "title-length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := Validate(p, &Draft{Title: tt.title})
			v := findViolation(vs, tt.rule)
			if v == nil {
				t.Fatalf("missing %s violation in %v", tt.rule, vs)
			}
			if v.Severity != SeverityError {
				t.Errorf("severity = %s, want error", v.Severity)
			}
		})
	}
}

func TestValidate_ImperativeMoodIsAdvisory(t *testing.T) {
	vs := Validate(Default(), &Draft{Title: "fix: fixed the decoder"})
	v := findViolation(vs, "title-imperative-mood")
	if v == nil {
		t.Fatal("missing imperative-mood warning")
	}
	if v.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", v.Severity)
	}
	// A warning alone never makes the draft non-conformant
	if !Conformant(vs) {
		t.Error("warnings must not flip conformance")
	}
}

func TestValidate_RequiredBody(t *testing.T) {
	p := Default()

	missing := Validate(p, &Draft{Kind: "perf", Title: "perf: speed up decode", DiffSize: 200})
	if findViolation(missing, "missing-body") == nil {
		t.Errorf("missing-body not reported: %v", missing)
	}

	// Small diffs do not require a body
	small := Validate(p, &Draft{Kind: "perf", Title: "perf: speed up decode", DiffSize: 10})
	if findViolation(small, "missing-body") != nil {
		t.Error("missing-body reported for small diff")
	}

	// Kinds outside the required set do not require a body
	docs := Validate(p, &Draft{Kind: "docs", Title: "docs: expand readme", DiffSize: 500})
	if findViolation(docs, "missing-body") != nil {
		t.Error("missing-body reported for docs kind")
	}
}

func TestValidate_UnverifiedMetric(t *testing.T) {
	p := Default()
	body := "~3x faster, before 120ms after 40ms"

	unverified := Validate(p, &Draft{
		Kind:  "perf",
		Title: "perf: speed up decode",
		Body:  body,
	})
	v := findViolation(unverified, "unverified-metric")
	if v == nil {
		t.Fatalf("unverified-metric not reported: %v", unverified)
	}
	if v.Severity != SeverityError {
		t.Errorf("severity = %s, want error", v.Severity)
	}

	// The same text with a measured-via source is fine
	verified := Validate(p, &Draft{
		Kind:        "perf",
		Title:       "perf: speed up decode",
		Body:        body,
		MeasuredVia: "benchmark run X",
	})
	if findViolation(verified, "unverified-metric") != nil {
		t.Errorf("unverified-metric reported despite measured-via: %v", verified)
	}
}

func TestValidate_MetricPatternShapes(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"latency dropped to 40ms", true},
		{"throughput is 1.2 gb/s now", true},
		{"about 30% fewer allocations", true},
		{"roughly 2x speedup", true},
		{"took 5 seconds before", true},
		{"restructure the decode loop", false},
		{"see the 3 steps below", false},
	}
	for _, tt := range tests {
		vs := Validate(Default(), &Draft{Title: "perf: tune decode", Body: tt.body})
		got := findViolation(vs, "unverified-metric") != nil
		if got != tt.want {
			t.Errorf("body %q flagged = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestValidate_Deterministic(t *testing.T) {
	p := Default()
	d := &Draft{
		Kind:     "perf",
		Title:    "merged the decode paths and improved things.",
		Body:     "now 2x faster",
		DiffSize: 300,
	}

	first := Validate(p, d)
	second := Validate(p, d)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("validation not deterministic:\n%v\n%v", first, second)
	}
	if len(first) < 3 {
		t.Errorf("expected multiple violations, got %v", first)
	}
}

func TestParseDraft(t *testing.T) {
	content := []byte(`---
kind: perf
diff_size: 240
measured_via: benchmark session 7f3a
---
perf(codec): speed up varint decoding

Median decode latency went from 120ms to 40ms.
`)
	d, err := ParseDraft(content)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != "perf" || d.DiffSize != 240 {
		t.Errorf("meta = %q/%d", d.Kind, d.DiffSize)
	}
	if d.MeasuredVia != "benchmark session 7f3a" {
		t.Errorf("MeasuredVia = %q", d.MeasuredVia)
	}
	if d.Title != "perf(codec): speed up varint decoding" {
		t.Errorf("Title = %q", d.Title)
	}
	if !strings.Contains(d.Body, "120ms to 40ms") {
		t.Errorf("Body = %q", d.Body)
	}

	if vs := Validate(Default(), d); len(vs) != 0 {
		t.Errorf("violations = %v, want none", vs)
	}
}

func TestParseDraft_NoFrontmatter(t *testing.T) {
	d, err := ParseDraft([]byte("fix: handle empty input\n\nGuard the nil case."))
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "fix: handle empty input" {
		t.Errorf("Title = %q", d.Title)
	}
	if d.Body != "Guard the nil case." {
		t.Errorf("Body = %q", d.Body)
	}
	if d.Kind != "" {
		t.Errorf("Kind = %q, want empty", d.Kind)
	}
}

func TestBuildBody(t *testing.T) {
	sess := domain.NewBenchmarkSession("ws-1", "pkg/codec")
	sess.Samples = []domain.Sample{
		{Label: domain.LabelBaseline, Value: 100, Unit: "ms"},
		{Label: domain.LabelBaseline, Value: 102, Unit: "ms"},
		{Label: domain.LabelCandidate, Value: 80, Unit: "ms"},
	}
	sess.Verdict = domain.VerdictImproved
	sess.Delta = -0.20

	body := BuildBody("Speed up varint decoding", sess)
	if !strings.Contains(body, "Measured via benchmark session "+sess.ID) {
		t.Errorf("body missing measured-via marker:\n%s", body)
	}
	if !strings.Contains(body, "-20.0%") {
		t.Errorf("body missing delta:\n%s", body)
	}
	if !strings.Contains(body, "2 baseline / 1 candidate") {
		t.Errorf("body missing sample counts:\n%s", body)
	}
}

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		delta float64
		want  string
	}{
		{-0.20, "-20.0%"},
		{0.02, "+2.0%"},
		{0, "+0.0%"},
	}
	for _, tt := range tests {
		if got := FormatDelta(tt.delta); got != tt.want {
			t.Errorf("FormatDelta(%v) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}
