package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Fallback explanations.
const (
	ExplanationOutputInvalid = "unclassified: model output invalid"
	explanationUnavailable   = "unclassified: model unavailable (%s)"
)

const classificationSystemPrompt = "You are a payment dispute classifier. You MUST respond with ONLY a valid JSON object. " +
	"Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with { and end with }."

var categoryDescriptions = map[model.Category]string{
	model.CategoryDuplicateCharge:   "the customer was charged more than once for the same purchase",
	model.CategoryFailedTransaction: "the payment failed or was cancelled but money left the account",
	model.CategoryFraud:             "the customer did not authorize the transaction",
	model.CategoryRefundPending:     "a refund was promised or requested but has not arrived",
	model.CategoryOthers:            "anything else, or not enough information",
}

// Classifier categorizes disputes the rules could not decide.
type Classifier struct {
	completer Completer
	logger    *slog.Logger
}

// NewClassifier creates a model classifier. A nil completer yields the fallback for every dispute.
func NewClassifier(completer Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{completer: completer, logger: logger}
}

// Classify asks the model for a category. It never fails: provider errors
// and invalid answers become the OTHERS fallback.
func (c *Classifier) Classify(ctx context.Context, d model.Dispute, linked *model.Transaction) model.ClassificationResult {
	if c.completer == nil {
		return model.Fallback(d.ID, fmt.Sprintf(explanationUnavailable, "no model configured"))
	}

	content, err := c.completer.Complete(ctx, Request{
		System: classificationSystemPrompt,
		Prompt: buildClassificationPrompt(d, linked),
	})
	if err != nil {
		c.logger.Warn("model classification unavailable",
			"dispute_id", d.ID,
			"error", err)
		return model.Fallback(d.ID, fmt.Sprintf(explanationUnavailable, unavailableReason(err)))
	}

	category, confidence, explanation, err := parseClassification(content)
	if err != nil {
		c.logger.Warn("model output rejected",
			"dispute_id", d.ID,
			"error", err)
		return model.Fallback(d.ID, ExplanationOutputInvalid)
	}

	return model.ClassificationResult{
		DisputeID:   d.ID,
		Category:    category,
		Confidence:  confidence,
		Explanation: explanation,
		Source:      model.SourceModel,
	}
}

func unavailableReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, common.ErrRateLimit):
		return "rate limited"
	default:
		return "api error"
	}
}

func buildClassificationPrompt(d model.Dispute, linked *model.Transaction) string {
	var sb strings.Builder

	sb.WriteString("Classify this payment dispute into exactly one category.\n\nCATEGORIES:\n")
	for _, cat := range model.AllCategories() {
		fmt.Fprintf(&sb, "- %s: %s\n", cat, categoryDescriptions[cat])
	}

	sb.WriteString("\nDISPUTE:\n")
	fmt.Fprintf(&sb, "- ID: %s\n", d.ID)
	fmt.Fprintf(&sb, "- Description: %q\n", d.Description)
	fmt.Fprintf(&sb, "- Amount: %s\n", d.Amount.StringFixed(2))
	if d.Channel != "" {
		fmt.Fprintf(&sb, "- Channel: %s\n", d.Channel)
	}

	if linked != nil {
		sb.WriteString("\nTRANSACTION:\n")
		fmt.Fprintf(&sb, "- ID: %s\n", linked.ID)
		fmt.Fprintf(&sb, "- Merchant: %s\n", linked.Merchant)
		fmt.Fprintf(&sb, "- Amount: %s\n", linked.Amount.StringFixed(2))
		fmt.Fprintf(&sb, "- Status: %s\n", linked.Status)
		fmt.Fprintf(&sb, "- Timestamp: %s\n", linked.Timestamp.Format("2006-01-02 15:04:05"))
	} else {
		sb.WriteString("\nTRANSACTION: none linked\n")
	}

	sb.WriteString(`
RESPONSE FORMAT:
{"category": "<one of the categories above>", "confidence": <number between 0 and 1>, "explanation": "<one sentence>"}`)

	return sb.String()
}
