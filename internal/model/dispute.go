package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dispute is a customer-raised complaint about a transaction.
// Disputes are read once from input and never mutated.
type Dispute struct {
	CreatedAt   *time.Time
	ID          string
	Description string
	TxnID       string // Optional link to the disputed transaction
	CustomerID  string
	Channel     string
	Amount      decimal.Decimal
}

// HasTransaction reports whether the dispute references a transaction.
func (d Dispute) HasTransaction() bool {
	return d.TxnID != ""
}
