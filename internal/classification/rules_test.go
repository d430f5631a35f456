package classification

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

func newClassifier(t *testing.T, order ...string) *RuleClassifier {
	t.Helper()
	rc, err := NewRuleClassifier(order, nil)
	require.NoError(t, err)
	return rc
}

func linkedTxn(status model.TransactionStatus, amount string) *model.Transaction {
	return &model.Transaction{
		ID:        "T1",
		Merchant:  "Amazon",
		Amount:    decimal.RequireFromString(amount),
		Timestamp: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		Status:    status,
	}
}

func evidence() *model.DuplicateEvidence {
	return &model.DuplicateEvidence{TxnID: "T1", MatchedTxnID: "T2", Score: 0.9}
}

func TestRuleClassifier_Classify(t *testing.T) {
	rc := newClassifier(t)

	tests := []struct {
		name           string
		in             Input
		wantCategory   model.Category
		wantConfidence float64
		wantRule       string
		wantDeferred   bool
	}{
		{
			name: "duplicate evidence",
			in: Input{
				Dispute:  model.Dispute{ID: "D1", Description: "charged twice for same order", TxnID: "T1"},
				Evidence: evidence(),
				Linked:   linkedTxn(model.StatusSuccess, "499"),
			},
			wantCategory:   model.CategoryDuplicateCharge,
			wantConfidence: 1.0,
			wantRule:       RuleDuplicate,
		},
		{
			name: "duplicate evidence outranks fraud keywords",
			in: Input{
				Dispute:  model.Dispute{ID: "D2", Description: "unauthorized and I didn't make this second payment", TxnID: "T1"},
				Evidence: evidence(),
				Linked:   linkedTxn(model.StatusSuccess, "499"),
			},
			wantCategory:   model.CategoryDuplicateCharge,
			wantConfidence: 1.0,
			wantRule:       RuleDuplicate,
		},
		{
			name: "failed transaction with debit signal",
			in: Input{
				Dispute: model.Dispute{ID: "D3", Description: "payment failed but money was debited", TxnID: "T1"},
				Linked:  linkedTxn(model.StatusFailed, "1200"),
			},
			wantCategory:   model.CategoryFailedTransaction,
			wantConfidence: 0.9,
			wantRule:       RuleFailedTransaction,
		},
		{
			name: "failed transaction with matching amount",
			in: Input{
				Dispute: model.Dispute{ID: "D4", Description: "where is my money", TxnID: "T1", Amount: decimal.RequireFromString("1200")},
				Linked:  linkedTxn(model.StatusFailed, "1200.00"),
			},
			wantCategory:   model.CategoryFailedTransaction,
			wantConfidence: 0.9,
			wantRule:       RuleFailedTransaction,
		},
		{
			name: "failed status without debit defers",
			in: Input{
				Dispute: model.Dispute{ID: "D5", Description: "please check", TxnID: "T1", Amount: decimal.RequireFromString("10")},
				Linked:  linkedTxn(model.StatusFailed, "1200"),
			},
			wantDeferred: true,
		},
		{
			name: "fraud keyword",
			in: Input{
				Dispute: model.Dispute{ID: "D6", Description: "I didn’t make this transaction, looks Unauthorized"},
			},
			wantCategory:   model.CategoryFraud,
			wantConfidence: 0.85,
			wantRule:       RuleFraud,
		},
		{
			name: "refund keyword",
			in: Input{
				Dispute: model.Dispute{ID: "D7", Description: "Order cancelled, still waiting for refund"},
			},
			wantCategory:   model.CategoryRefundPending,
			wantConfidence: 0.8,
			wantRule:       RuleRefundPending,
		},
		{
			name: "nothing matches",
			in: Input{
				Dispute: model.Dispute{ID: "D8", Description: "the app is slow"},
			},
			wantDeferred: true,
		},
		{
			name: "duplicate phrase alone defers by default",
			in: Input{
				Dispute: model.Dispute{ID: "D9", Description: "charged twice"},
			},
			wantDeferred: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := rc.Classify(tt.in)
			result, ok := decision.Result()
			if tt.wantDeferred {
				assert.False(t, ok)
				assert.False(t, decision.Decided())
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.in.Dispute.ID, result.DisputeID)
			assert.Equal(t, tt.wantCategory, result.Category)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
			assert.Equal(t, tt.wantRule, result.Rule)
			assert.Equal(t, model.SourceRule, result.Source)
			assert.NotEmpty(t, result.Explanation)
		})
	}
}

func TestRuleClassifier_ConfigurableOrder(t *testing.T) {
	in := Input{
		Dispute:  model.Dispute{ID: "D1", Description: "unauthorized second charge", TxnID: "T1"},
		Evidence: evidence(),
		Linked:   linkedTxn(model.StatusSuccess, "499"),
	}

	rc := newClassifier(t, RuleFraud, RuleDuplicate)
	result, ok := rc.Classify(in).Result()
	require.True(t, ok)
	assert.Equal(t, model.CategoryFraud, result.Category)
	assert.Equal(t, []string{RuleFraud, RuleDuplicate}, rc.Order())
}

func TestRuleClassifier_DuplicateKeywordRule(t *testing.T) {
	rc := newClassifier(t, append(DefaultOrder(), RuleDuplicateKeyword)...)
	result, ok := rc.Classify(Input{Dispute: model.Dispute{ID: "D1", Description: "I was double charged"}}).Result()
	require.True(t, ok)
	assert.Equal(t, model.CategoryDuplicateCharge, result.Category)
	assert.InDelta(t, DuplicateKeywordConfidence, result.Confidence, 1e-9)
}

func TestRuleClassifier_RefundIgnoredWithFraudSignal(t *testing.T) {
	rc := newClassifier(t, RuleRefundPending)
	_, ok := rc.Classify(Input{Dispute: model.Dispute{ID: "D1", Description: "fraud charge, want refund"}}).Result()
	assert.False(t, ok)
}

func TestNewRuleClassifier_InvalidOrder(t *testing.T) {
	_, err := NewRuleClassifier([]string{"duplicate", "vibes"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = NewRuleClassifier([]string{"fraud", "fraud"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestKeywordDetector_Find(t *testing.T) {
	d, err := NewKeywordDetector([]KeywordSet{{Name: "x", Phrases: []string{"charged twice", "scam", " "}}})
	require.NoError(t, err)

	kw, ok := d.Find("x", "I was CHARGED   twice yesterday")
	assert.True(t, ok)
	assert.Equal(t, "charged twice", kw)

	_, ok = d.Find("x", "scammer")
	assert.False(t, ok, "phrases match on word boundaries")

	_, ok = d.Find("missing", "scam")
	assert.False(t, ok)
}
