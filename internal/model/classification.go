// Package model defines the core domain models used throughout the application.
package model

import "time"

// ClassificationSource indicates which stage of the pipeline decided a category.
type ClassificationSource string

// Classification source constants.
const (
	SourceRule     ClassificationSource = "RULE"
	SourceModel    ClassificationSource = "MODEL"
	SourceFallback ClassificationSource = "FALLBACK"
)

// FallbackConfidence is assigned when neither rules nor the model could decide.
const FallbackConfidence = 0.5

// ClassificationResult is the category decision for a single dispute.
type ClassificationResult struct {
	DisputeID   string
	Category    Category
	Explanation string
	Source      ClassificationSource
	Rule        string // Name of the rule that fired, empty for model results
	Confidence  float64
}

// Fallback returns the OTHERS result used when classification cannot decide.
func Fallback(disputeID, explanation string) ClassificationResult {
	return ClassificationResult{
		DisputeID:   disputeID,
		Category:    CategoryOthers,
		Confidence:  FallbackConfidence,
		Explanation: explanation,
		Source:      SourceFallback,
	}
}

// DuplicateEvidence describes a transaction that likely duplicates the disputed one.
type DuplicateEvidence struct {
	MatchedAt     time.Time
	TxnID         string
	MatchedTxnID  string
	Score         float64
	MerchantScore float64
}
