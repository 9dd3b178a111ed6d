package domain

import "time"

// Action describes what a reconciliation cycle did to the home rule.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionUpdated   Action = "updated"
	ActionFailed    Action = "failed"
)

// Outcome is the result of a successful reconciliation.
type Outcome struct {
	Action     Action       `json:"action"`
	Rule       FirewallRule `json:"rule"`
	OldAddress string       `json:"old_address,omitempty"`
	NewAddress string       `json:"new_address,omitempty"`
}

// Unchanged builds the outcome for a rule that already permits the current address.
func Unchanged(rule FirewallRule) *Outcome {
	return &Outcome{Action: ActionUnchanged, Rule: rule}
}

// Updated builds the outcome for a replaced rule.
func Updated(old, replacement FirewallRule) *Outcome {
	return &Outcome{
		Action:     ActionUpdated,
		Rule:       replacement,
		OldAddress: old.SourceAddress,
		NewAddress: replacement.SourceAddress,
	}
}

// CycleResult records a single pass of the scheduler loop.
// Only the most recent result is kept, in memory.
type CycleResult struct {
	ID         string        `json:"id"`
	GroupID    string        `json:"group_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Address    string        `json:"address,omitempty"`
	Action     Action        `json:"action"`
	OldAddress string        `json:"old_address,omitempty"`
	Error      string        `json:"error,omitempty"`
	NextDelay  time.Duration `json:"next_delay_ns"`
}
