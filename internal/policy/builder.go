package policy

import (
	"fmt"

	"github.com/benchwright/benchwright/internal/domain"
)

const prBodyTemplate = `## Summary
%s

## Benchmark
- Target: %s
- Verdict: %s
- Delta: %s (median over %d baseline / %d candidate samples)

Measured via benchmark session %s
`

// BuildBody renders a conformant PR body from a verdicted session. The
// delta figure comes straight from the session record, and the trailing
// measured-via line is the marker the unverified-metric rule looks for.
func BuildBody(summary string, sess *domain.BenchmarkSession) string {
	return fmt.Sprintf(prBodyTemplate,
		summary,
		sess.Target,
		sess.Verdict,
		FormatDelta(sess.Delta),
		len(sess.SamplesFor(domain.LabelBaseline)),
		len(sess.SamplesFor(domain.LabelCandidate)),
		sess.ID,
	)
}

// FormatDelta renders a relative delta as a signed percentage
func FormatDelta(delta float64) string {
	return fmt.Sprintf("%+.1f%%", delta*100)
}
