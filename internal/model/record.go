package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is the joined read model of a dispute, its classification and its resolution.
type Record struct {
	CreatedAt     time.Time
	DisputeID     string
	Description   string
	TxnID         string
	CustomerID    string
	Channel       string
	Merchant      string
	Category      Category
	Explanation   string
	Source        ClassificationSource
	Action        Action
	Justification string
	Priority      Priority
	ETA           string
	Amount        decimal.Decimal
	Confidence    float64
}

// NewRecord joins a dispute with its classification, resolution and linked transaction.
func NewRecord(d Dispute, linked *Transaction, c ClassificationResult, r Resolution) Record {
	rec := Record{
		DisputeID:     d.ID,
		Description:   d.Description,
		TxnID:         d.TxnID,
		CustomerID:    d.CustomerID,
		Channel:       d.Channel,
		Amount:        d.Amount,
		Category:      c.Category,
		Confidence:    c.Confidence,
		Explanation:   c.Explanation,
		Source:        c.Source,
		Action:        r.Action,
		Justification: r.Justification,
		Priority:      r.Priority,
		ETA:           r.EstimatedResolutionTime,
	}
	if d.CreatedAt != nil {
		rec.CreatedAt = *d.CreatedAt
	}
	if linked != nil {
		rec.Merchant = linked.Merchant
		if rec.Channel == "" {
			rec.Channel = linked.Channel
		}
		if rec.CustomerID == "" {
			rec.CustomerID = linked.CustomerID
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = linked.Timestamp
		}
	}
	return rec
}
