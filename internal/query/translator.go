package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/dispute-assistant/internal/llm"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

const translatorSystemPrompt = "You translate analytics questions about payment disputes into JSON query plans. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text or markdown formatting."

// ModelTranslator asks the language model for a plan.
type ModelTranslator struct {
	completer llm.Completer
}

// NewModelTranslator wraps a completer. The completer handles retries and caching.
func NewModelTranslator(completer llm.Completer) *ModelTranslator {
	return &ModelTranslator{completer: completer}
}

// Translate returns the model's raw JSON plan for question.
func (t *ModelTranslator) Translate(ctx context.Context, question string, now time.Time) ([]byte, error) {
	content, err := t.completer.Complete(ctx, llm.Request{
		System: translatorSystemPrompt,
		Prompt: buildPlanPrompt(question, now),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to translate question: %w", err)
	}
	return []byte(stripFences(content)), nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func buildPlanPrompt(question string, now time.Time) string {
	categories := make([]string, 0, 5)
	for _, c := range model.AllCategories() {
		categories = append(categories, string(c))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today is %s.\n\n", now.Format("2006-01-02"))
	sb.WriteString(`PLAN FORMAT:
{"filters": [{"field": "...", "op": "...", "value": "..."}], "group_by": "...", "aggregate": "rows" or "count", "sort": {"field": "...", "desc": true}, "limit": 0}

RULES:
- filter fields: category, confidence, amount, merchant, channel, customer_id, suggested_action, priority, created_at, dispute_id
- ops: eq, ne for any field; gt, gte, lt, lte only for confidence, amount, created_at
- group_by (optional): category, merchant, channel, suggested_action, priority; requires aggregate "count"
- created_at values: today, yesterday, Nd (N days ago) or YYYY-MM-DD
`)
	fmt.Fprintf(&sb, "- category values: %s\n", strings.Join(categories, ", "))
	fmt.Fprintf(&sb, "- suggested_action values: %s, %s, %s, %s, %s\n",
		model.ActionAutoRefund, model.ActionManualReview, model.ActionEscalateToBank, model.ActionFlagFraud, model.ActionAskMoreInfo)
	sb.WriteString("- omit keys you do not need; never add other keys\n")
	sb.WriteString(`
EXAMPLES:
- "How many fraud disputes today?" -> {"filters":[{"field":"category","op":"eq","value":"FRAUD"},{"field":"created_at","op":"eq","value":"today"}],"aggregate":"count"}
- "Disputes by channel" -> {"group_by":"channel","aggregate":"count"}
- "Top 5 largest disputes" -> {"aggregate":"rows","sort":{"field":"amount","desc":true},"limit":5}
`)
	fmt.Fprintf(&sb, "\nQUESTION: %q\n", question)
	return sb.String()
}
