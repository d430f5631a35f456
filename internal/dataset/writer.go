package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Output file names.
const (
	ClassifiedFile  = "classified_disputes.csv"
	ResolutionsFile = "resolutions.csv"
)

// Output columns.
var (
	ClassifiedColumns  = []string{"dispute_id", "predicted_category", "confidence", "explanation", "amount", "merchant"}
	ResolutionsColumns = []string{"dispute_id", "suggested_action", "justification", "priority", "estimated_resolution_time"}
)

// WriteClassified writes one classified_disputes row per record.
func WriteClassified(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClassifiedColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.DisputeID,
			string(r.Category),
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.Explanation,
			r.Amount.StringFixed(2),
			r.Merchant,
		}); err != nil {
			return fmt.Errorf("failed to write dispute %s: %w", r.DisputeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResolutions writes one resolutions row per record.
func WriteResolutions(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResolutionsColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.DisputeID,
			string(r.Action),
			r.Justification,
			string(r.Priority),
			r.ETA,
		}); err != nil {
			return fmt.Errorf("failed to write resolution %s: %w", r.DisputeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOutputs writes both output tables into dir. Each file is written to a
// temporary name and renamed, so readers never see a partial table.
func WriteOutputs(dir string, records []model.Record) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ClassifiedFile), records, WriteClassified); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, ResolutionsFile), records, WriteResolutions)
}

func writeAtomic(path string, records []model.Record, write func(io.Writer, []model.Record) error) error {
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f, records); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// ReadOutputs joins previously written output tables back into records.
// When disputes is non-empty, dispute-only fields are merged in by id.
func ReadOutputs(dir string, disputes []model.Dispute) ([]model.Record, error) {
	classified, err := readRows(filepath.Join(dir, ClassifiedFile), ClassifiedColumns)
	if err != nil {
		return nil, err
	}
	resolutions, err := readRows(filepath.Join(dir, ResolutionsFile), ResolutionsColumns)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]map[string]string, len(resolutions))
	for _, r := range resolutions {
		byID[r["dispute_id"]] = r
	}
	disputeByID := make(map[string]model.Dispute, len(disputes))
	for _, d := range disputes {
		disputeByID[d.ID] = d
	}

	records := make([]model.Record, 0, len(classified))
	var errs []error
	for _, c := range classified {
		rec, err := joinRow(c, byID[c["dispute_id"]])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if d, ok := disputeByID[rec.DisputeID]; ok {
			rec.Description = d.Description
			rec.TxnID = d.TxnID
			rec.CustomerID = d.CustomerID
			rec.Channel = d.Channel
			if d.CreatedAt != nil {
				rec.CreatedAt = *d.CreatedAt
			}
		}
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return records, errors.Join(errs...)
	}
	return records, nil
}

func joinRow(c, r map[string]string) (model.Record, error) {
	id := c["dispute_id"]
	if r == nil {
		return model.Record{}, fmt.Errorf("%w: no resolution for dispute %s", common.ErrNotFound, id)
	}

	category, err := model.ParseCategory(c["predicted_category"])
	if err != nil {
		return model.Record{}, fmt.Errorf("dispute %s: %w", id, err)
	}
	confidence, err := strconv.ParseFloat(c["confidence"], 64)
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: dispute %s confidence %q", common.ErrInvalidInput, id, c["confidence"])
	}
	amount, err := ParseAmount(c["amount"])
	if err != nil {
		return model.Record{}, fmt.Errorf("dispute %s: %w", id, err)
	}

	return model.Record{
		DisputeID:     id,
		Category:      category,
		Confidence:    confidence,
		Explanation:   c["explanation"],
		Amount:        amount,
		Merchant:      c["merchant"],
		Action:        model.Action(r["suggested_action"]),
		Justification: r["justification"],
		Priority:      model.Priority(r["priority"]),
		ETA:           r["estimated_resolution_time"],
	}, nil
}

func readRows(path string, required []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := openTable(f, path, required)
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	for {
		row, _, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		m := make(map[string]string, len(t.columns))
		for col := range t.columns {
			m[col] = t.get(row, col)
		}
		rows = append(rows, m)
	}
	return rows, nil
}
