package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// MockModelClassifier is a test implementation of ModelClassifier.
// It returns deterministic results based on the dispute description.
type MockModelClassifier struct {
	panicOn map[string]bool
	calls   []string
	mu      sync.Mutex
}

// NewMockModelClassifier creates a mock that panics for the given dispute ids.
func NewMockModelClassifier(panicOn ...string) *MockModelClassifier {
	m := &MockModelClassifier{panicOn: make(map[string]bool)}
	for _, id := range panicOn {
		m.panicOn[id] = true
	}
	return m
}

// Classify returns FRAUD for "compromised", REFUND_PENDING for "return" and the fallback otherwise.
func (m *MockModelClassifier) Classify(_ context.Context, d model.Dispute, _ *model.Transaction) model.ClassificationResult {
	m.mu.Lock()
	m.calls = append(m.calls, d.ID)
	shouldPanic := m.panicOn[d.ID]
	m.mu.Unlock()

	if shouldPanic {
		panic("mock model failure for " + d.ID)
	}

	desc := strings.ToLower(d.Description)
	switch {
	case strings.Contains(desc, "compromised"):
		return model.ClassificationResult{DisputeID: d.ID, Category: model.CategoryFraud, Confidence: 0.75, Explanation: "account compromise", Source: model.SourceModel}
	case strings.Contains(desc, "return"):
		return model.ClassificationResult{DisputeID: d.ID, Category: model.CategoryRefundPending, Confidence: 0.65, Explanation: "returned item", Source: model.SourceModel}
	default:
		return model.Fallback(d.ID, "unclassified: model unavailable (no model configured)")
	}
}

// Calls returns the dispute ids sent to the model, in call order.
func (m *MockModelClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}
