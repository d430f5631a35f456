package model

import (
	"fmt"
	"strings"
)

// Category is the dispute category assigned by classification.
type Category string

// Dispute categories.
const (
	CategoryDuplicateCharge   Category = "DUPLICATE_CHARGE"
	CategoryFailedTransaction Category = "FAILED_TRANSACTION"
	CategoryFraud             Category = "FRAUD"
	CategoryRefundPending     Category = "REFUND_PENDING"
	CategoryOthers            Category = "OTHERS"
)

// AllCategories lists every category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryDuplicateCharge,
		CategoryFailedTransaction,
		CategoryFraud,
		CategoryRefundPending,
		CategoryOthers,
	}
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDuplicateCharge, CategoryFailedTransaction, CategoryFraud, CategoryRefundPending, CategoryOthers:
		return true
	}
	return false
}

// ParseCategory normalizes s and returns the matching category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
