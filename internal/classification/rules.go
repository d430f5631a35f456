package classification

import (
	"fmt"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Rule names accepted in a precedence order.
const (
	RuleDuplicate         = "duplicate"
	RuleFailedTransaction = "failed_transaction"
	RuleFraud             = "fraud"
	RuleRefundPending     = "refund_pending"
	RuleDuplicateKeyword  = "duplicate_keyword"
)

// Rule confidences.
const (
	DuplicateConfidence         = 1.0
	FailedTransactionConfidence = 0.9
	FraudConfidence             = 0.85
	RefundPendingConfidence     = 0.8
	DuplicateKeywordConfidence  = 0.7
)

// DefaultOrder is the rule precedence used when none is configured.
// Transaction-backed signals come before keyword heuristics.
func DefaultOrder() []string {
	return []string{RuleDuplicate, RuleFailedTransaction, RuleFraud, RuleRefundPending}
}

// Input is everything a rule may look at for one dispute.
type Input struct {
	Evidence *model.DuplicateEvidence
	Linked   *model.Transaction
	Dispute  model.Dispute
}

type ruleFunc func(in Input) (model.ClassificationResult, bool)

type namedRule struct {
	apply ruleFunc
	name  string
}

// RuleClassifier evaluates rules in precedence order; the first match wins.
type RuleClassifier struct {
	detector *KeywordDetector
	rules    []namedRule
}

// NewRuleClassifier builds a classifier with the given precedence order.
// An empty order selects DefaultOrder.
func NewRuleClassifier(order []string, sets []KeywordSet) (*RuleClassifier, error) {
	if len(sets) == 0 {
		sets = DefaultKeywordSets()
	}
	detector, err := NewKeywordDetector(sets)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		order = DefaultOrder()
	}

	rc := &RuleClassifier{detector: detector}
	available := map[string]ruleFunc{
		RuleDuplicate:         rc.duplicate,
		RuleFailedTransaction: rc.failedTransaction,
		RuleFraud:             rc.fraud,
		RuleRefundPending:     rc.refundPending,
		RuleDuplicateKeyword:  rc.duplicateKeyword,
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		fn, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown rule %q", common.ErrInvalidConfig, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: rule %q listed twice", common.ErrInvalidConfig, name)
		}
		seen[name] = true
		rc.rules = append(rc.rules, namedRule{name: name, apply: fn})
	}

	return rc, nil
}

// Order returns the effective rule precedence.
func (rc *RuleClassifier) Order() []string {
	names := make([]string, len(rc.rules))
	for i, r := range rc.rules {
		names[i] = r.name
	}
	return names
}

// Classify returns the first rule decision for the dispute, or a deferral.
func (rc *RuleClassifier) Classify(in Input) Decision {
	for _, r := range rc.rules {
		if result, ok := r.apply(in); ok {
			result.DisputeID = in.Dispute.ID
			result.Source = model.SourceRule
			result.Rule = r.name
			return Decide(result)
		}
	}
	return Defer()
}

func (rc *RuleClassifier) duplicate(in Input) (model.ClassificationResult, bool) {
	if in.Evidence == nil {
		return model.ClassificationResult{}, false
	}
	return model.ClassificationResult{
		Category:   model.CategoryDuplicateCharge,
		Confidence: DuplicateConfidence,
		Explanation: fmt.Sprintf("Transaction %s duplicated by %s (match score %.2f)",
			in.Evidence.TxnID, in.Evidence.MatchedTxnID, in.Evidence.Score),
	}, true
}

func (rc *RuleClassifier) failedTransaction(in Input) (model.ClassificationResult, bool) {
	if in.Linked == nil || !in.Linked.Status.IsFailed() {
		return model.ClassificationResult{}, false
	}

	signal, debited := rc.detector.Find(SetDebit, in.Dispute.Description)
	if !debited && in.Dispute.Amount.IsPositive() && in.Dispute.Amount.Equal(in.Linked.Amount) {
		signal, debited = "disputed amount matches transaction", true
	}
	if !debited {
		return model.ClassificationResult{}, false
	}

	return model.ClassificationResult{
		Category:    model.CategoryFailedTransaction,
		Confidence:  FailedTransactionConfidence,
		Explanation: fmt.Sprintf("Transaction status %s with amount debited (%s)", in.Linked.Status, signal),
	}, true
}

func (rc *RuleClassifier) fraud(in Input) (model.ClassificationResult, bool) {
	kw, ok := rc.detector.Find(SetFraud, in.Dispute.Description)
	if !ok {
		return model.ClassificationResult{}, false
	}
	return model.ClassificationResult{
		Category:    model.CategoryFraud,
		Confidence:  FraudConfidence,
		Explanation: fmt.Sprintf("Fraud keyword match: '%s'", kw),
	}, true
}

func (rc *RuleClassifier) refundPending(in Input) (model.ClassificationResult, bool) {
	if in.Evidence != nil {
		return model.ClassificationResult{}, false
	}
	if _, fraud := rc.detector.Find(SetFraud, in.Dispute.Description); fraud {
		return model.ClassificationResult{}, false
	}
	kw, ok := rc.detector.Find(SetRefund, in.Dispute.Description)
	if !ok {
		return model.ClassificationResult{}, false
	}
	return model.ClassificationResult{
		Category:    model.CategoryRefundPending,
		Confidence:  RefundPendingConfidence,
		Explanation: fmt.Sprintf("Refund keyword match: '%s'", kw),
	}, true
}

func (rc *RuleClassifier) duplicateKeyword(in Input) (model.ClassificationResult, bool) {
	kw, ok := rc.detector.Find(SetDuplicate, in.Dispute.Description)
	if !ok {
		return model.ClassificationResult{}, false
	}
	return model.ClassificationResult{
		Category:    model.CategoryDuplicateCharge,
		Confidence:  DuplicateKeywordConfidence,
		Explanation: fmt.Sprintf("Duplicate keyword match: '%s' (not confirmed in transactions)", kw),
	}, true
}
