package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

// Known transaction statuses. Other values are kept verbatim.
const (
	StatusSuccess   TransactionStatus = "SUCCESS"
	StatusFailed    TransactionStatus = "FAILED"
	StatusPending   TransactionStatus = "PENDING"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusReversed  TransactionStatus = "REVERSED"
)

// ParseTransactionStatus upper-cases and trims s.
func ParseTransactionStatus(s string) TransactionStatus {
	return TransactionStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// IsFailed reports whether money movement did not complete.
func (s TransactionStatus) IsFailed() bool {
	return s == StatusFailed || s == StatusCancelled
}

// Transaction is a payment record used as read-only context for disputes.
type Transaction struct {
	Timestamp  time.Time
	ID         string
	Merchant   string
	Status     TransactionStatus
	CustomerID string
	Channel    string
	Amount     decimal.Decimal
}

// TransactionIndex looks transactions up by id.
type TransactionIndex map[string]Transaction

// NewTransactionIndex builds an index. Later duplicates of an id are ignored.
func NewTransactionIndex(txns []Transaction) TransactionIndex {
	idx := make(TransactionIndex, len(txns))
	for _, t := range txns {
		if _, exists := idx[t.ID]; exists {
			continue
		}
		idx[t.ID] = t
	}
	return idx
}

// Lookup returns the transaction with the given id, if any.
func (idx TransactionIndex) Lookup(id string) (Transaction, bool) {
	if id == "" {
		return Transaction{}, false
	}
	t, ok := idx[id]
	return t, ok
}
