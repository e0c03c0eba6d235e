// Package policy validates commit/PR message drafts against a declarative
// rule set. Validation is a pure function: the same (policy, draft) input
// always yields the identical violation list, in rule-table order, with no
// I/O and no hidden state.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity classifies a violation. Only error-severity violations make a
// draft non-conformant; warnings are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a single reported non-conformance. Violations are values,
// never errors: callers inspect the full list rather than stopping at the
// first.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Draft is a candidate message plus the metadata the rules evaluate against
type Draft struct {
	Kind        string
	Title       string
	Body        string
	DiffSize    int
	MeasuredVia string
}

// Policy is the declarative rule configuration. New rules are added by
// extending the rule table below, not by branching logic elsewhere.
type Policy struct {
	AllowedPrefixes       []string `yaml:"allowed_prefixes"`
	TitleMaxLength        int      `yaml:"title_max_length"`
	BodyRequiredKinds     []string `yaml:"body_required_kinds"`
	BodyRequiredAboveDiff int      `yaml:"body_required_above_diff"`
}

// Default returns the built-in policy
func Default() *Policy {
	return &Policy{
		AllowedPrefixes:       []string{"feat", "fix", "perf", "refactor", "docs", "test", "chore", "ci", "build"},
		TitleMaxLength:        72,
		BodyRequiredKinds:     []string{"perf", "fix", "refactor"},
		BodyRequiredAboveDiff: 50,
	}
}

// Load reads a policy from a YAML file, falling back to defaults for a
// missing file
func Load(path string) (*Policy, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

type rule struct {
	name  string
	check func(*Policy, *Draft) *Violation
}

// rules is the ordered rule table. Order is fixed so that repeated
// validation of the same input yields byte-identical violation lists.
var rules = []rule{
	{"title-prefix", checkTitlePrefix},
	{"title-length", checkTitleLength},
	{"title-trailing-period", checkTrailingPeriod},
	{"title-imperative-mood", checkImperativeMood},
	{"missing-body", checkRequiredBody},
	{"unverified-metric", checkUnverifiedMetric},
}

// Validate evaluates every rule against the draft and returns the ordered
// violation list. An empty list means the draft is conformant.
func Validate(p *Policy, d *Draft) []Violation {
	var violations []Violation
	for _, r := range rules {
		if v := r.check(p, d); v != nil {
			v.Rule = r.name
			violations = append(violations, *v)
		}
	}
	return violations
}

// Conformant reports whether the violation list contains no errors.
// Warnings alone do not make a draft non-conformant.
func Conformant(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return false
		}
	}
	return true
}

var titlePrefixPattern = regexp.MustCompile(`^([a-z]+)(\([^)]*\))?: \S`)

func checkTitlePrefix(p *Policy, d *Draft) *Violation {
	if len(p.AllowedPrefixes) == 0 {
		return nil
	}

	m := titlePrefixPattern.FindStringSubmatch(d.Title)
	if m == nil {
		return &Violation{
			Severity: SeverityError,
			Message:  fmt.Sprintf("title %q does not match <prefix>: <summary>", d.Title),
		}
	}
	for _, prefix := range p.AllowedPrefixes {
		if m[1] == prefix {
			return nil
		}
	}
	return &Violation{
		Severity: SeverityError,
		Message:  fmt.Sprintf("prefix %q is not allowed (want one of %s)", m[1], strings.Join(p.AllowedPrefixes, ", ")),
	}
}

func checkTitleLength(p *Policy, d *Draft) *Violation {
	if p.TitleMaxLength <= 0 || len(d.Title) <= p.TitleMaxLength {
		return nil
	}
	return &Violation{
		Severity: SeverityError,
		Message:  fmt.Sprintf("title is %d characters, max %d", len(d.Title), p.TitleMaxLength),
	}
}

func checkTrailingPeriod(p *Policy, d *Draft) *Violation {
	if !strings.HasSuffix(d.Title, ".") {
		return nil
	}
	return &Violation{
		Severity: SeverityError,
		Message:  "title ends with a period",
	}
}

// checkImperativeMood is advisory only: a crude suffix heuristic on the
// first word of the summary, never enforced mechanically as an error.
func checkImperativeMood(p *Policy, d *Draft) *Violation {
	summary := d.Title
	if idx := strings.Index(summary, ": "); idx >= 0 {
		summary = summary[idx+2:]
	}
	first := strings.ToLower(strings.SplitN(strings.TrimSpace(summary), " ", 2)[0])
	pastTense := strings.HasSuffix(first, "ed") && !strings.HasSuffix(first, "eed") // "speed", "exceed"
	if pastTense || strings.HasSuffix(first, "ing") {
		return &Violation{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("summary starts with %q; prefer the imperative mood", first),
		}
	}
	return nil
}

func checkRequiredBody(p *Policy, d *Draft) *Violation {
	if strings.TrimSpace(d.Body) != "" {
		return nil
	}
	required := false
	for _, kind := range p.BodyRequiredKinds {
		if d.Kind == kind {
			required = true
			break
		}
	}
	if !required || d.DiffSize <= p.BodyRequiredAboveDiff {
		return nil
	}
	return &Violation{
		Severity: SeverityError,
		Message:  fmt.Sprintf("kind %q with diff size %d requires a body", d.Kind, d.DiffSize),
	}
}

// metricPattern matches numeric performance claims: a number followed by a
// time or throughput unit, a percentage, or a multiplier ("3x faster").
var metricPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:(?:ns|µs|us|ms|s|sec|seconds|qps|rps|ops/s|[kmg]b/s|x)\b|%)`)

// checkUnverifiedMetric operationalizes the never-fabricate-numbers rule:
// any measured-value token in the body must co-occur with a "measured via"
// marker supplied as metadata by the benchmark session controller.
func checkUnverifiedMetric(p *Policy, d *Draft) *Violation {
	claims := metricPattern.FindAllString(d.Body, -1)
	if len(claims) == 0 || d.MeasuredVia != "" {
		return nil
	}
	return &Violation{
		Severity: SeverityError,
		Message:  fmt.Sprintf("numeric claim %q has no measured-via source", strings.TrimSpace(claims[0])),
	}
}
