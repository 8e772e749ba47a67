package models

import "time"

// ActionStatus tracks the lifecycle of a healing action. Transitions only
// move forward: pending -> in_progress -> {completed, failed}.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// HealOutcome classifies the result of a heal request. Only OutcomeExecuted
// produces a persisted action.
type HealOutcome string

const (
	OutcomeExecuted     HealOutcome = "executed"
	OutcomeDisabled     HealOutcome = "disabled"
	OutcomeUnknownIssue HealOutcome = "unknown_issue"
	OutcomeDryRun       HealOutcome = "dry_run"
)

// HealingAction is the audit record of one remediation attempt. Actions are
// never deleted and never resurrected; a retry is a new action.
type HealingAction struct {
	ActionID     string            `json:"action_id"`
	IssueType    string            `json:"issue_type"`
	Service      string            `json:"service"`
	Status       ActionStatus      `json:"status"`
	ActionTaken  string            `json:"action_taken"`
	Success      *bool             `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HealResult is the structured outcome returned to every heal caller.
// Strategy failures surface as a failed Action, never as an error.
type HealResult struct {
	Outcome HealOutcome    `json:"outcome"`
	Message string         `json:"message"`
	Action  *HealingAction `json:"action,omitempty"`
}
