// Package maintenance runs the periodic stale sweep: Active workspaces idle
// past a configured age are marked Stale, and, when a session timeout is
// configured, unverdicted benchmark sessions past it are marked Incomplete.
package maintenance

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/benchwright/benchwright/internal/bench"
	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/registry"
)

// Config holds sweeper settings
type Config struct {
	Cron           string        // standard 5-field cron expression
	StaleAfter     time.Duration // idle age after which Active workspaces go Stale
	SessionTimeout time.Duration // zero disables session expiry
}

// Report summarizes one sweep
type Report struct {
	MarkedStale      []string
	MarkedIncomplete []string
	SweptAt          time.Time
}

// Sweeper periodically applies the staleness policy
type Sweeper struct {
	config   Config
	schedule cron.Schedule
	registry *registry.Registry
	bench    *bench.Controller

	mu      sync.Mutex
	lastRun time.Time

	onReport func(Report)
}

// NewSweeper creates a Sweeper from the given config
func NewSweeper(config Config, reg *registry.Registry, ctrl *bench.Controller) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(config.Cron)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		config:   config,
		schedule: schedule,
		registry: reg,
		bench:    ctrl,
	}, nil
}

// OnReport registers a callback invoked after each sweep that changed state
func (s *Sweeper) OnReport(fn func(Report)) {
	s.onReport = fn
}

// NextRun returns the next scheduled sweep time
func (s *Sweeper) NextRun() time.Time {
	return s.schedule.Next(time.Now())
}

// Run executes sweeps on the cron schedule until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			report := s.Sweep()
			if len(report.MarkedStale) > 0 || len(report.MarkedIncomplete) > 0 {
				log.Printf("sweep: %d workspaces marked stale, %d sessions marked incomplete",
					len(report.MarkedStale), len(report.MarkedIncomplete))
				if s.onReport != nil {
					s.onReport(report)
				}
			}
		}
	}
}

// Sweep applies the staleness policy once and returns what changed
func (s *Sweeper) Sweep() Report {
	now := time.Now()
	report := Report{SweptAt: now}

	cutoff := now.Add(-s.config.StaleAfter)
	idle := s.registry.Find(func(w *domain.WorkspaceRecord) bool {
		return w.State == domain.WorkspaceActive && w.LastTouched.Before(cutoff)
	})
	for ws := range idle {
		if _, err := s.registry.MarkStale(ws.ID); err != nil {
			log.Printf("sweep: mark stale %s: %v", ws.ID, err)
			continue
		}
		report.MarkedStale = append(report.MarkedStale, ws.ID)
	}

	if s.config.SessionTimeout > 0 {
		sessCutoff := now.Add(-s.config.SessionTimeout)
		for _, sess := range s.bench.List() {
			if sess.State.Terminal() || !sess.UpdatedAt.Before(sessCutoff) {
				continue
			}
			if _, err := s.bench.MarkIncomplete(sess.ID); err != nil {
				log.Printf("sweep: mark incomplete %s: %v", sess.ID, err)
				continue
			}
			report.MarkedIncomplete = append(report.MarkedIncomplete, sess.ID)
		}
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	return report
}

// LastRun returns the time of the most recent sweep
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
