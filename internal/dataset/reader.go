// Package dataset reads the dispute and transaction tables and writes the
// classification and resolution outputs as CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Required input columns.
var (
	DisputeColumns     = []string{"dispute_id", "description", "txn_id", "amount"}
	TransactionColumns = []string{"txn_id"}
)

// timestampLayouts are tried in order when parsing timestamp cells.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04",
}

// RowError describes one input row that was skipped.
type RowError struct {
	Err  error
	File string
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// table is a CSV file with its header indexed by lower-cased column name.
type table struct {
	reader  *csv.Reader
	columns map[string]int
	name    string
}

func openTable(r io.Reader, name string, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", common.ErrInvalidInput, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", name, err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columns[h]; !dup {
			columns[h] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", common.ErrMissingColumns, name, strings.Join(missing, ", "))
	}

	return &table{reader: reader, columns: columns, name: name}, nil
}

var errFatalRead = errors.New("unreadable input")

// next returns the next row and its line number. io.EOF ends the table;
// errFatalRead means the underlying reader failed and no more rows follow.
func (t *table) next() ([]string, int, error) {
	row, err := t.reader.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, pe.StartLine, err
		}
		if !errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: failed to read %s: %w", errFatalRead, t.name, err)
		}
		return nil, 0, err
	}
	line, _ := t.reader.FieldPos(0)
	return row, line, nil
}

func (t *table) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadDisputes parses a disputes table. Unparseable rows and repeated
// dispute ids are skipped and reported as RowErrors.
func ReadDisputes(r io.Reader, name string) ([]model.Dispute, []RowError, error) {
	t, err := openTable(r, name, DisputeColumns)
	if err != nil {
		return nil, nil, err
	}

	var (
		disputes []model.Dispute
		rowErrs  []RowError
		seen     = make(map[string]struct{})
	)

	for {
		row, line, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errFatalRead) {
			return nil, rowErrs, err
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{File: name, Line: line, Err: err})
			continue
		}

		d, err := parseDispute(t, row)
		if err == nil {
			if _, dup := seen[d.ID]; dup {
				err = fmt.Errorf("%w: dispute %s", common.ErrDuplicateEntry, d.ID)
			}
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{File: name, Line: line, Err: err})
			continue
		}

		seen[d.ID] = struct{}{}
		disputes = append(disputes, d)
	}

	return disputes, rowErrs, nil
}

func parseDispute(t *table, row []string) (model.Dispute, error) {
	d := model.Dispute{
		ID:          t.get(row, "dispute_id"),
		Description: t.get(row, "description"),
		TxnID:       t.get(row, "txn_id"),
		CustomerID:  t.get(row, "customer_id"),
		Channel:     t.get(row, "channel"),
	}
	if d.ID == "" {
		return model.Dispute{}, fmt.Errorf("%w: empty dispute_id", common.ErrInvalidInput)
	}

	amount, err := ParseAmount(t.get(row, "amount"))
	if err != nil {
		return model.Dispute{}, err
	}
	d.Amount = amount

	if raw := t.get(row, "created_at"); raw != "" {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return model.Dispute{}, err
		}
		d.CreatedAt = &ts
	}

	return d, nil
}

// ReadTransactions parses a transactions table. Only txn_id is required.
func ReadTransactions(r io.Reader, name string) ([]model.Transaction, []RowError, error) {
	t, err := openTable(r, name, TransactionColumns)
	if err != nil {
		return nil, nil, err
	}

	var (
		txns    []model.Transaction
		rowErrs []RowError
	)

	for {
		row, line, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errFatalRead) {
			return nil, rowErrs, err
		}
		if err == nil {
			var txn model.Transaction
			if txn, err = parseTransaction(t, row); err == nil {
				txns = append(txns, txn)
				continue
			}
		}
		rowErrs = append(rowErrs, RowError{File: name, Line: line, Err: err})
	}

	return txns, rowErrs, nil
}

func parseTransaction(t *table, row []string) (model.Transaction, error) {
	txn := model.Transaction{
		ID:         t.get(row, "txn_id"),
		Merchant:   t.get(row, "merchant"),
		Status:     model.ParseTransactionStatus(t.get(row, "status")),
		CustomerID: t.get(row, "customer_id"),
		Channel:    t.get(row, "channel"),
	}
	if txn.ID == "" {
		return model.Transaction{}, fmt.Errorf("%w: empty txn_id", common.ErrInvalidInput)
	}

	if raw := t.get(row, "amount"); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil {
			return model.Transaction{}, err
		}
		txn.Amount = amount
	}

	if raw := t.get(row, "timestamp"); raw != "" {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return model.Transaction{}, err
		}
		txn.Timestamp = ts
	}

	return txn, nil
}

// ParseAmount parses a money cell, tolerating thousands separators and a currency prefix.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "₹$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", common.ErrInvalidInput)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", common.ErrInvalidInput, raw)
	}
	return amount, nil
}

// ParseTimestamp parses a timestamp cell in any of the accepted layouts. Zone-less values are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", common.ErrInvalidInput, raw)
}

// LoadDisputes reads a disputes file.
func LoadDisputes(path string) ([]model.Dispute, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open disputes file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadDisputes(f, path)
}

// LoadTransactions reads a transactions file. An empty path yields no transactions.
func LoadTransactions(path string) ([]model.Transaction, []RowError, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open transactions file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadTransactions(f, path)
}
