package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

type stubCompleter struct {
	err      error
	content  string
	requests []Request
}

func (s *stubCompleter) Complete(_ context.Context, req Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.content, s.err
}

func TestClassifier_Classify(t *testing.T) {
	dispute := model.Dispute{ID: "D9", Description: "something odd happened", Amount: decimal.NewFromInt(250)}

	tests := []struct {
		name            string
		stub            *stubCompleter
		wantCategory    model.Category
		wantSource      model.ClassificationSource
		wantConfidence  float64
		wantExplanation string
	}{
		{
			name:            "valid answer",
			stub:            &stubCompleter{content: `{"category":"REFUND_PENDING","confidence":0.66,"explanation":"awaiting refund"}`},
			wantCategory:    model.CategoryRefundPending,
			wantSource:      model.SourceModel,
			wantConfidence:  0.66,
			wantExplanation: "awaiting refund",
		},
		{
			name:            "category outside the allowed set",
			stub:            &stubCompleter{content: `{"category":"CHARGEBACK","confidence":0.9,"explanation":"x"}`},
			wantCategory:    model.CategoryOthers,
			wantSource:      model.SourceFallback,
			wantConfidence:  0.5,
			wantExplanation: "unclassified: model output invalid",
		},
		{
			name:            "garbage output",
			stub:            &stubCompleter{content: "I think it's fraud"},
			wantCategory:    model.CategoryOthers,
			wantSource:      model.SourceFallback,
			wantConfidence:  0.5,
			wantExplanation: "unclassified: model output invalid",
		},
		{
			name:            "provider failure",
			stub:            &stubCompleter{err: fmt.Errorf("%w: boom", common.ErrModelUnavailable)},
			wantCategory:    model.CategoryOthers,
			wantSource:      model.SourceFallback,
			wantConfidence:  0.5,
			wantExplanation: "unclassified: model unavailable (api error)",
		},
		{
			name:            "provider timeout",
			stub:            &stubCompleter{err: fmt.Errorf("%w: %w", common.ErrModelUnavailable, context.DeadlineExceeded)},
			wantCategory:    model.CategoryOthers,
			wantSource:      model.SourceFallback,
			wantConfidence:  0.5,
			wantExplanation: "unclassified: model unavailable (timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.stub, nil)
			got := c.Classify(context.Background(), dispute, nil)

			assert.Equal(t, "D9", got.DisputeID)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.wantExplanation, got.Explanation)
			assert.Len(t, tt.stub.requests, 1)
		})
	}
}

func TestClassifier_NoModelConfigured(t *testing.T) {
	c := NewClassifier(nil, nil)
	got := c.Classify(context.Background(), model.Dispute{ID: "D1"}, nil)

	assert.Equal(t, model.CategoryOthers, got.Category)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
	assert.Equal(t, "unclassified: model unavailable (no model configured)", got.Explanation)
}

func TestClassifier_EndToEndThroughGateway(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{{block: true}}}
	cfg := testGatewayConfig()
	cfg.Timeout = 10 * time.Millisecond
	gw := NewGateway(client, cfg, nil)
	defer gw.Close()

	got := NewClassifier(gw, nil).Classify(context.Background(), model.Dispute{ID: "D2"}, nil)
	assert.Equal(t, model.CategoryOthers, got.Category)
	assert.Equal(t, "unclassified: model unavailable (timeout)", got.Explanation)
	assert.Equal(t, 2, client.callCount())
}

func TestBuildClassificationPrompt(t *testing.T) {
	linked := &model.Transaction{
		ID:        "T1",
		Merchant:  "Swiggy",
		Amount:    decimal.RequireFromString("499.00"),
		Status:    model.StatusFailed,
		Timestamp: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}
	prompt := buildClassificationPrompt(model.Dispute{ID: "D1", Description: "where is my money", Amount: decimal.NewFromInt(499)}, linked)

	for _, cat := range model.AllCategories() {
		assert.Contains(t, prompt, string(cat))
	}
	assert.Contains(t, prompt, "Swiggy")
	assert.Contains(t, prompt, "FAILED")
	assert.Contains(t, prompt, "499.00")
	assert.Contains(t, prompt, `"where is my money"`)

	require.Contains(t, buildClassificationPrompt(model.Dispute{ID: "D2"}, nil), "none linked")
}
