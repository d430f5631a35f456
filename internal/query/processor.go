package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Translator turns a question into a JSON plan.
type Translator interface {
	Translate(ctx context.Context, question string, now time.Time) ([]byte, error)
}

// Processor answers questions over classified records.
type Processor struct {
	translator Translator
	validate   *validatorv10.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithLogger sets the processor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// NewProcessor creates a processor. A nil translator skips straight to templates.
func NewProcessor(translator Translator, opts ...Option) *Processor {
	p := &Processor{
		translator: translator,
		validate:   newValidator(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer resolves question against records. It tries the model plan first,
// then the templates, and returns an empty answer when neither applies.
func (p *Processor) Answer(ctx context.Context, question string, records []model.Record) Answer {
	now := p.now()

	if plan, ok := p.translate(ctx, question, now); ok {
		answer, err := Execute(plan, records, now)
		if err == nil {
			answer.Source = SourceModel
			answer.Summary = summarize(answer)
			return answer
		}
		p.logger.Warn("model plan failed to execute", "question", question, "error", err)
	}

	plan, name, ok := MatchTemplate(question)
	if ok {
		if err := ValidatePlan(p.validate, plan); err != nil {
			p.logger.Error("template produced invalid plan", "template", name, "error", err)
		} else if answer, err := Execute(plan, records, now); err == nil {
			answer.Source = SourceTemplate
			answer.Summary = summarize(answer)
			return answer
		}
	}

	return Answer{
		Source: SourceNone,
		Summary: fmt.Sprintf("Could not interpret %q. Try questions like \"how many fraud disputes today\", "+
			"\"show duplicate charges\", \"break down by merchant\" or \"high value disputes above 5000\".", question),
	}
}

func (p *Processor) translate(ctx context.Context, question string, now time.Time) (Plan, bool) {
	if p.translator == nil {
		return Plan{}, false
	}

	raw, err := p.translator.Translate(ctx, question, now)
	if err != nil {
		p.logger.Warn("query translation unavailable, using templates", "error", err)
		return Plan{}, false
	}

	plan, err := ParsePlan(p.validate, raw)
	if err != nil {
		p.logger.Warn("model plan rejected, using templates", "error", err)
		return Plan{}, false
	}
	return plan, true
}

// summarize describes an answer in one line.
func summarize(a Answer) string {
	var where string
	if a.Plan != nil && len(a.Plan.Filters) > 0 {
		parts := make([]string, len(a.Plan.Filters))
		for i, f := range a.Plan.Filters {
			parts[i] = f.String()
		}
		where = " where " + strings.Join(parts, " and ")
	}

	noun := "disputes"
	if a.Count == 1 {
		noun = "dispute"
	}

	switch {
	case a.Plan != nil && a.Plan.GroupBy != "":
		return fmt.Sprintf("%d %s%s grouped by %s into %d groups", a.Count, noun, where, a.Plan.GroupBy, len(a.Groups))
	case a.Plan != nil && a.Plan.Aggregate == AggregateCount:
		return fmt.Sprintf("%d %s%s", a.Count, noun, where)
	case len(a.Rows) < a.Count:
		return fmt.Sprintf("showing %d of %d %s%s", len(a.Rows), a.Count, noun, where)
	default:
		return fmt.Sprintf("%d %s%s", a.Count, noun, where)
	}
}
