package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Run describes one recorded pipeline execution.
type Run struct {
	StartedAt        time.Time
	ID               string
	DisputesPath     string
	TransactionsPath string
	Duration         time.Duration
	Total            int
	Skipped          int
}

// SaveRun stores run and its records in one transaction. A run without an id
// gets a fresh UUID; the stored run is returned.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run Run, records []model.Record) (Run, error) {
	if err := validateContext(ctx); err != nil {
		return Run{}, err
	}
	if err := validateRecords(records); err != nil {
		return Run{}, err
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Total = len(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, disputes_path, transactions_path, total, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Duration.Milliseconds(), run.DisputesPath, run.TransactionsPath, run.Total, run.Skipped)
	if err != nil {
		if isConstraintError(err) {
			return Run{}, fmt.Errorf("%w: run %s", common.ErrDuplicateEntry, run.ID)
		}
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (
			run_id, position, dispute_id, description, txn_id, customer_id, channel, merchant,
			amount, created_at, category, confidence, explanation, source,
			action, justification, priority, eta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		var createdAt sql.NullTime
		if !r.CreatedAt.IsZero() {
			createdAt = sql.NullTime{Time: r.CreatedAt.UTC(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			run.ID, i, r.DisputeID, r.Description, r.TxnID, r.CustomerID, r.Channel, r.Merchant,
			r.Amount.String(), createdAt, string(r.Category), r.Confidence, r.Explanation, string(r.Source),
			string(r.Action), r.Justification, string(r.Priority), r.ETA,
		)
		if err != nil {
			return Run{}, fmt.Errorf("failed to insert record %s: %w", r.DisputeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// GetRun returns the run with id, or common.ErrNotFound.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (Run, error) {
	if err := validateContext(ctx); err != nil {
		return Run{}, err
	}
	if err := validateString(id, "id"); err != nil {
		return Run{}, err
	}
	return s.getRun(ctx, s.db, `WHERE id = ?`, id)
}

// LatestRun returns the most recently started run, or common.ErrNotFound when
// nothing has been recorded.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (Run, error) {
	if err := validateContext(ctx); err != nil {
		return Run{}, err
	}
	return s.getRun(ctx, s.db, `ORDER BY started_at DESC, rowid DESC LIMIT 1`)
}

func (s *SQLiteStorage) getRun(ctx context.Context, q queryable, clause string, args ...any) (Run, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, disputes_path, transactions_path, total, skipped
		FROM runs `+clause, args...)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: run", common.ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first. A limit of zero returns all runs.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, disputes_path, transactions_path, total, skipped
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadRecords returns the records of a run in their original order.
func (s *SQLiteStorage) LoadRecords(ctx context.Context, runID string) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	if _, err := s.getRun(ctx, s.db, `WHERE id = ?`, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT dispute_id, description, txn_id, customer_id, channel, merchant,
		       amount, created_at, category, confidence, explanation, source,
		       action, justification, priority, eta
		FROM records
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		var (
			r         model.Record
			amount    string
			createdAt sql.NullTime
			category  string
			source    string
			action    string
			priority  string
		)
		if err := rows.Scan(
			&r.DisputeID, &r.Description, &r.TxnID, &r.CustomerID, &r.Channel, &r.Merchant,
			&amount, &createdAt, &category, &r.Confidence, &r.Explanation, &source,
			&action, &r.Justification, &priority, &r.ETA,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		r.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("record %s has invalid amount %q: %w", r.DisputeID, amount, err)
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time.UTC()
		}
		r.Category = model.Category(category)
		r.Source = model.ClassificationSource(source)
		r.Action = model.Action(action)
		r.Priority = model.Priority(priority)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run              Run
		durationMS       int64
		disputesPath     sql.NullString
		transactionsPath sql.NullString
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &durationMS, &disputesPath, &transactionsPath, &run.Total, &run.Skipped); err != nil {
		return Run{}, err
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.DisputesPath = disputesPath.String
	run.TransactionsPath = transactionsPath.String
	return run, nil
}
