package resolution

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

func TestEngine_Resolve(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name         string
		category     model.Category
		confidence   float64
		wantAction   model.Action
		wantPriority model.Priority
		wantETA      string
	}{
		{"duplicate", model.CategoryDuplicateCharge, 1.0, model.ActionAutoRefund, model.PriorityHigh, "24 hours"},
		{"duplicate low confidence", model.CategoryDuplicateCharge, 0.3, model.ActionAutoRefund, model.PriorityHigh, "24 hours"},
		{"fraud", model.CategoryFraud, 0.85, model.ActionFlagFraud, model.PriorityHigh, "48 hours"},
		{"failed high confidence", model.CategoryFailedTransaction, 0.9, model.ActionAutoRefund, model.PriorityMedium, "24 hours"},
		{"failed at boundary", model.CategoryFailedTransaction, 0.7, model.ActionAutoRefund, model.PriorityMedium, "24 hours"},
		{"failed low confidence", model.CategoryFailedTransaction, 0.69, model.ActionManualReview, model.PriorityMedium, "3-5 business days"},
		{"refund pending", model.CategoryRefundPending, 0.8, model.ActionManualReview, model.PriorityMedium, "3-5 business days"},
		{"others", model.CategoryOthers, 0.5, model.ActionAskMoreInfo, model.PriorityLow, "Pending customer response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.ClassificationResult{DisputeID: "D1", Category: tt.category, Confidence: tt.confidence}
			got := e.Resolve(c, decimal.NewFromInt(100000))

			assert.Equal(t, "D1", got.DisputeID)
			assert.Equal(t, tt.wantAction, got.Action)
			assert.Equal(t, tt.wantPriority, got.Priority)
			assert.Equal(t, tt.wantETA, got.EstimatedResolutionTime)
			assert.Contains(t, got.Justification, string(tt.category))
		})
	}
}

func TestEngine_FraudIgnoresAmountByDefault(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := model.ClassificationResult{DisputeID: "D1", Category: model.CategoryFraud, Confidence: 0.85}

	for _, amount := range []int64{0, 100, 5001, 100000} {
		got := e.Resolve(c, decimal.NewFromInt(amount))
		assert.Equal(t, model.ActionFlagFraud, got.Action, "amount %d", amount)
		assert.Equal(t, model.PriorityHigh, got.Priority, "amount %d", amount)
		assert.Equal(t, "48 hours", got.EstimatedResolutionTime, "amount %d", amount)
	}
}

func TestEngine_FraudEscalation(t *testing.T) {
	e := NewEngine(Config{EscalationThreshold: decimal.NewFromInt(5000)})
	c := model.ClassificationResult{DisputeID: "D1", Category: model.CategoryFraud, Confidence: 0.85}

	high := e.Resolve(c, decimal.NewFromInt(12000))
	assert.Equal(t, model.ActionEscalateToBank, high.Action)
	assert.Equal(t, model.PriorityHigh, high.Priority)
	assert.Contains(t, high.Justification, "12000.00")

	low := e.Resolve(c, decimal.NewFromInt(5000))
	assert.Equal(t, model.ActionFlagFraud, low.Action)
}

func TestEngine_DoesNotMutateClassification(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := model.ClassificationResult{DisputeID: "D1", Category: model.CategoryOthers, Confidence: 0.5, Explanation: "x"}
	before := c
	_ = e.Resolve(c, decimal.Zero)
	assert.Equal(t, before, c)
}

func TestEngine_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	properties := gopter.NewProperties(nil)

	categories := gen.OneConstOf(
		model.CategoryDuplicateCharge,
		model.CategoryFailedTransaction,
		model.CategoryFraud,
		model.CategoryRefundPending,
		model.CategoryOthers,
	)

	properties.Property("same input yields identical resolution", prop.ForAll(
		func(category model.Category, confidence float64, cents int64) bool {
			c := model.ClassificationResult{DisputeID: "D", Category: category, Confidence: confidence}
			amount := decimal.New(cents, -2)
			return e.Resolve(c, amount) == e.Resolve(c, amount)
		},
		categories, gen.Float64Range(0, 1), gen.Int64Range(0, 2000000),
	))

	properties.Property("amount does not change the default resolution", prop.ForAll(
		func(category model.Category, confidence float64, a, b int64) bool {
			c := model.ClassificationResult{DisputeID: "D", Category: category, Confidence: confidence}
			return e.Resolve(c, decimal.New(a, -2)) == e.Resolve(c, decimal.New(b, -2))
		},
		categories, gen.Float64Range(0, 1), gen.Int64Range(0, 2000000), gen.Int64Range(0, 2000000),
	))

	properties.Property("every action has a known resolution time", prop.ForAll(
		func(category model.Category, confidence float64) bool {
			r := e.Resolve(model.ClassificationResult{Category: category, Confidence: confidence}, decimal.Zero)
			return r.EstimatedResolutionTime != "Unknown" && r.Justification != ""
		},
		categories, gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
