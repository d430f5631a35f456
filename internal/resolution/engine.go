// Package resolution maps classified disputes to suggested actions.
package resolution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// FailedAutoRefundConfidence is the minimum confidence for auto-refunding a failed transaction.
const FailedAutoRefundConfidence = 0.7

var resolutionTimes = map[model.Action]string{
	model.ActionAutoRefund:     "24 hours",
	model.ActionManualReview:   "3-5 business days",
	model.ActionEscalateToBank: "7-10 business days",
	model.ActionFlagFraud:      "48 hours",
	model.ActionAskMoreInfo:    "Pending customer response",
}

// EstimatedTime returns the fixed resolution time for an action.
func EstimatedTime(a model.Action) string {
	if t, ok := resolutionTimes[a]; ok {
		return t
	}
	return "Unknown"
}

// Config tunes the resolution table.
type Config struct {
	// EscalationThreshold escalates fraud disputes above this amount to the bank.
	// Zero disables escalation.
	EscalationThreshold decimal.Decimal
}

// DefaultConfig returns the default resolution settings. Escalation is off, so
// every FRAUD classification is flagged for the risk team.
func DefaultConfig() Config {
	return Config{EscalationThreshold: decimal.Zero}
}

// Engine produces a Resolution for each classification. It is stateless.
type Engine struct {
	cfg Config
}

// NewEngine creates a resolution engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Resolve maps a classification and the disputed amount to a resolution.
func (e *Engine) Resolve(c model.ClassificationResult, amount decimal.Decimal) model.Resolution {
	action, priority, reason := e.decide(c, amount)

	return model.Resolution{
		DisputeID:               c.DisputeID,
		Action:                  action,
		Priority:                priority,
		EstimatedResolutionTime: EstimatedTime(action),
		Justification: fmt.Sprintf("%s classified with confidence %.2f; %s.",
			c.Category, c.Confidence, reason),
	}
}

func (e *Engine) decide(c model.ClassificationResult, amount decimal.Decimal) (model.Action, model.Priority, string) {
	switch c.Category {
	case model.CategoryDuplicateCharge:
		return model.ActionAutoRefund, model.PriorityHigh, "duplicate charge is refunded automatically"
	case model.CategoryFraud:
		if e.escalates(amount) {
			return model.ActionEscalateToBank, model.PriorityHigh,
				fmt.Sprintf("amount %s exceeds escalation threshold %s", amount.StringFixed(2), e.cfg.EscalationThreshold.StringFixed(2))
		}
		return model.ActionFlagFraud, model.PriorityHigh, "potential fraud flagged for the risk team"
	case model.CategoryFailedTransaction:
		if c.Confidence >= FailedAutoRefundConfidence {
			return model.ActionAutoRefund, model.PriorityMedium, "failed transaction with debit is refunded automatically"
		}
		return model.ActionManualReview, model.PriorityMedium, "failed transaction needs manual verification"
	case model.CategoryRefundPending:
		return model.ActionManualReview, model.PriorityMedium, "refund status needs manual verification"
	default:
		return model.ActionAskMoreInfo, model.PriorityLow, "dispute unclear, customer clarification required"
	}
}

func (e *Engine) escalates(amount decimal.Decimal) bool {
	return e.cfg.EscalationThreshold.IsPositive() && amount.GreaterThan(e.cfg.EscalationThreshold)
}
