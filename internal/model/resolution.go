package model

// Action is the suggested next step for a dispute.
type Action string

// Resolution actions.
const (
	ActionAutoRefund     Action = "Auto-refund"
	ActionManualReview   Action = "Manual review"
	ActionEscalateToBank Action = "Escalate to bank"
	ActionFlagFraud      Action = "Flag as potential fraud"
	ActionAskMoreInfo    Action = "Ask for more info"
)

// Priority is the handling priority of a resolution.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Resolution is the suggested action for one classified dispute.
type Resolution struct {
	DisputeID               string
	Action                  Action
	Justification           string
	Priority                Priority
	EstimatedResolutionTime string
}
