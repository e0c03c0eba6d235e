package domain

import "fmt"

// ConflictError reports an invariant-violating concurrent state, such as a
// second workspace claiming a branch that already has a live workspace.
type ConflictError struct {
	Component string
	Key       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict on %s", e.Component, e.Key)
}

// NotFoundError reports an unknown id
type NotFoundError struct {
	Component string
	ID        string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Component, e.ID)
}

// InvalidStateError reports an illegal state transition attempt
type InvalidStateError struct {
	Component string
	ID        string
	From      string
	To        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s cannot transition %s -> %s", e.Component, e.ID, e.From, e.To)
}

// ConfigError reports malformed or missing flow input
type ConfigError struct {
	Component string
	Key       string
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: option %q: %s", e.Component, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: missing required option %q", e.Component, e.Key)
}
