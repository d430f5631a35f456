// Package testutil provides shared helpers for tests that need a database or sample records.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
	"github.com/Veraticus/dispute-assistant/internal/storage"
)

// SetupTestDB creates a migrated in-memory database that is closed when the test ends.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// RecordBuilder assembles records for storage and query tests.
type RecordBuilder struct {
	base    time.Time
	records []model.Record
}

// NewRecordBuilder starts a builder whose records are stamped relative to base.
func NewRecordBuilder(base time.Time) *RecordBuilder {
	return &RecordBuilder{base: base}
}

// Add appends a record with the given category, action and amount. The record is
// created offset before the builder's base time.
func (b *RecordBuilder) Add(category model.Category, action model.Action, amount string, offset time.Duration) *RecordBuilder {
	n := len(b.records) + 1
	b.records = append(b.records, model.Record{
		DisputeID:     fmt.Sprintf("D%03d", n),
		Description:   fmt.Sprintf("dispute %d", n),
		TxnID:         fmt.Sprintf("T%03d", n),
		CustomerID:    fmt.Sprintf("C%03d", n%3+1),
		Channel:       "UPI",
		Merchant:      "Amazon",
		Amount:        decimal.RequireFromString(amount),
		CreatedAt:     b.base.Add(-offset),
		Category:      category,
		Confidence:    0.9,
		Explanation:   "test",
		Source:        model.SourceRule,
		Action:        action,
		Justification: "test",
		Priority:      model.PriorityMedium,
		ETA:           "24 hours",
	})
	return b
}

// With lets a test adjust the most recently added record.
func (b *RecordBuilder) With(fn func(r *model.Record)) *RecordBuilder {
	if len(b.records) > 0 {
		fn(&b.records[len(b.records)-1])
	}
	return b
}

// Build returns a copy of the records.
func (b *RecordBuilder) Build() []model.Record {
	out := make([]model.Record, len(b.records))
	copy(out, b.records)
	return out
}
