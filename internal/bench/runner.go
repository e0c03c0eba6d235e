package bench

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benchwright/benchwright/internal/domain"
)

// sampleLine matches a timing figure in harness output, e.g. "1234 ns/op"
// from go test -bench or a bare "42.5 ms" line from a custom harness.
var sampleLine = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ns/op|ns|µs|us|ms|s)\b`)

// Runner invokes an external benchmark harness and parses its output into
// samples. The harness's timing methodology is opaque to the engine: the
// runner only captures the numbers the harness prints.
type Runner struct {
	Command []string      // harness argv; the benchmark target is appended
	Timeout time.Duration // zero means no timeout
}

// NewRunner creates a Runner for the given harness command
func NewRunner(command []string, timeout time.Duration) *Runner {
	return &Runner{Command: command, Timeout: timeout}
}

// Run executes the harness in dir against target and returns the parsed
// samples, unlabeled. The caller decides whether they are baseline or
// candidate measurements.
func (r *Runner) Run(ctx context.Context, dir, target string) ([]domain.Sample, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("bench: no harness command configured")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.Command[1:]...), target)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("harness %s: %s: %w", r.Command[0], strings.TrimSpace(string(out)), err)
	}

	samples := ParseSamples(string(out))
	if len(samples) == 0 {
		return nil, fmt.Errorf("harness %s produced no samples for %s", r.Command[0], target)
	}
	return samples, nil
}

// ParseSamples extracts one sample per output line carrying a timing figure
func ParseSamples(output string) []domain.Sample {
	var samples []domain.Sample
	now := time.Now()

	for _, line := range strings.Split(output, "\n") {
		m := sampleLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		samples = append(samples, domain.Sample{
			Value: value,
			Unit:  m[2],
			At:    now,
		})
	}

	return samples
}
