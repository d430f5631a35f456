// Package storage persists pipeline runs and their joined dispute records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidRecord = errors.New("invalid record")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecords checks that each record is complete and that dispute ids are unique.
func validateRecords(records []model.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}

	seen := make(map[string]bool, len(records))
	for i, r := range records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
		if seen[r.DisputeID] {
			return fmt.Errorf("record at index %d: %w: duplicate dispute id %s", i, ErrInvalidRecord, r.DisputeID)
		}
		seen[r.DisputeID] = true
	}
	return nil
}

func validateRecord(r model.Record) error {
	if strings.TrimSpace(r.DisputeID) == "" {
		return fmt.Errorf("%w: dispute id is required", ErrInvalidRecord)
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRecord, r.Category)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidRecord, r.Confidence)
	}
	if r.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	}
	return nil
}
