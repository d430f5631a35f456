package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// ModelClassifier categorizes disputes the rules deferred. It must not fail;
// provider problems are reported through the fallback result.
type ModelClassifier interface {
	Classify(ctx context.Context, d model.Dispute, linked *model.Transaction) model.ClassificationResult
}

// Resolver maps a classification to a suggested action.
type Resolver interface {
	Resolve(c model.ClassificationResult, amount decimal.Decimal) model.Resolution
}

// Reporter observes pipeline progress. Calls are serialized.
type Reporter interface {
	Start(total int)
	Advance(rec model.Record)
	Finish()
}

type noopReporter struct{}

func (noopReporter) Start(int)            {}
func (noopReporter) Advance(model.Record) {}
func (noopReporter) Finish()              {}
