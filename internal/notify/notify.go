// Package notify delivers benchmark verdicts and sweep results to the
// configured channels (Slack webhook, desktop notifications).
package notify

import (
	"fmt"

	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/policy"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title     string
	Message   string
	Type      NotificationType
	SessionID string // Optional benchmark session reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// ForVerdict builds the notification announcing a session's verdict
func ForVerdict(sess *domain.BenchmarkSession) Notification {
	n := Notification{
		Title:     fmt.Sprintf("Benchmark %s: %s", sess.Target, sess.Verdict),
		Message:   fmt.Sprintf("median delta %s against a %.1f%% threshold", policy.FormatDelta(sess.Delta), sess.ThresholdPct),
		SessionID: sess.ID,
	}
	switch sess.Verdict {
	case domain.VerdictImproved:
		n.Type = NotifySuccess
	case domain.VerdictRegressed:
		n.Type = NotifyError
	default:
		n.Type = NotifyInfo
	}
	return n
}

// ForSweep builds the notification summarizing a maintenance sweep
func ForSweep(markedStale, markedIncomplete int) Notification {
	return Notification{
		Title:   "Stale sweep",
		Message: fmt.Sprintf("%d workspaces marked stale, %d sessions marked incomplete", markedStale, markedIncomplete),
		Type:    NotifyWarning,
	}
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
