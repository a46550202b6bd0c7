/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists payroll periods with their runs and the wage ledger in one
  database so a period transition and its ledger entries commit in the same
  SQL transaction.

INTERFACES IMPLEMENTED:
  generic.TxStore:     Wage ledger persistence
  payroll.PeriodStore: Periods, runs, deductions and taxes

APPEND-ONLY ENFORCEMENT:
  The transactions table is never updated or deleted from. Corrections
  are reversal transactions. Run rows, in contrast, are replaced on every
  SavePeriod while the period moves through its lifecycle.

KEY TABLES:
  transactions:       Immutable wage ledger (year-to-date capped wages)
  payroll_periods:    One row per period, with an optimistic-lock version
  payroll_runs:       One row per employee per period
  payroll_deductions: Child rows of a run
  payroll_taxes:      Child rows of a run

INDEXES:
  - idx_transactions_entity_accumulator_date: Year-to-date reads (hot path)
  - idx_runs_period_employee: One run per employee per period
  - idx_periods_start: Ordered listing and overlap checks

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection: SQLite has
  one writer anyway, and ":memory:" databases exist per connection.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  manager := payroll.NewManager(store, builder)

SEE ALSO:
  - payroll/store.go: PeriodStore contract
  - generic/store.go: Ledger store interface
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Wage ledger (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		accumulator_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_accumulator_date
		ON transactions(entity_id, accumulator_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Payroll periods
	CREATE TABLE IF NOT EXISTS payroll_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		status TEXT NOT NULL,
		currency TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT,
		updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_periods_start
		ON payroll_periods(start_date);

	-- Payroll runs
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES payroll_periods(id) ON DELETE CASCADE,
		employee_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		gross_pay TEXT NOT NULL,
		net_pay TEXT NOT NULL,
		taxable_wages TEXT NOT NULL,
		regular_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		regular_rate TEXT NOT NULL,
		overtime_rate TEXT NOT NULL,
		bonuses TEXT NOT NULL,
		commissions TEXT NOT NULL,
		warnings_json TEXT,
		capped_wages_json TEXT,
		disbursement_ref TEXT,
		paid_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_period_employee
		ON payroll_runs(period_id, employee_id);

	CREATE TABLE IF NOT EXISTS payroll_deductions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		deduction_type TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		pre_tax BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deductions_run
		ON payroll_deductions(run_id);

	CREATE TABLE IF NOT EXISTS payroll_taxes (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		tax_type TEXT NOT NULL,
		description TEXT,
		rate TEXT NOT NULL,
		amount TEXT NOT NULL,
		taxable_wages TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_taxes_run
		ON payroll_taxes(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db querier, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("transaction %s metadata: %w", tx.ID, err)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = generic.Today()
	}

	query := `
		INSERT INTO transactions
		(id, entity_id, accumulator_id, effective_at, delta_value, currency,
		 tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		tx.ID,
		tx.EntityID,
		tx.AccumulatorID,
		tx.EffectiveAt.String(),
		tx.Delta.Value.String(),
		tx.Delta.Currency,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		createdAt.String(),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendBatch(ctx, sqlTx, txs); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func appendBatch(ctx context.Context, db querier, txs []generic.Transaction) error {
	// Check for duplicate idempotency keys within the batch first
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}

	for _, tx := range txs {
		if err := appendTx(ctx, db, tx); err != nil {
			return err
		}
	}
	return nil
}

const selectTransactions = `
	SELECT id, entity_id, accumulator_id, effective_at, delta_value, currency,
	       tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at
	FROM transactions
`

// Load returns all transactions for an entity+accumulator.
func (s *Store) Load(ctx context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadRange(ctx, s.db, entityID, accumulatorID, nil, nil)
}

// LoadRange returns transactions in [from, to].
func (s *Store) LoadRange(ctx context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadRange(ctx, s.db, entityID, accumulatorID, &from, &to)
}

func loadRange(ctx context.Context, db querier, entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to *generic.TimePoint) ([]generic.Transaction, error) {
	query := selectTransactions + ` WHERE entity_id = ? AND accumulator_id = ?`
	args := []any{entityID, accumulatorID}
	if from != nil && to != nil {
		// Dates are stored as YYYY-MM-DD, so string order is date order.
		query += ` AND effective_at >= ? AND effective_at <= ?`
		args = append(args, from.String(), to.String())
	}
	query += ` ORDER BY effective_at ASC, created_at ASC`

	return queryTransactions(ctx, db, query, args...)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return exists(ctx, s.db, idempotencyKey)
}

func exists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// Transactions returns the most recent ledger entries across all employees,
// newest first.
func (s *Store) Transactions(ctx context.Context, limit int) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	return queryTransactions(ctx, s.db, selectTransactions+` ORDER BY effective_at DESC, created_at DESC LIMIT ?`, limit)
}

func queryTransactions(ctx context.Context, db querier, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		effectiveAt    string
		deltaValue     decimal.Decimal
		currency       string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.EntityID, &tx.AccumulatorID,
		&effectiveAt, &deltaValue, &currency, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if tx.EffectiveAt, err = generic.ParseDate(effectiveAt); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = generic.ParseDate(createdAt); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.Delta = generic.NewAmountFromDecimal(deltaValue, generic.Currency(currency))
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("transaction %s metadata: %w", tx.ID, err)
		}
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction. The parent lock is
// already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	return appendBatch(ctx, ts.tx, txs)
}

func (ts *txStore) Load(ctx context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID) ([]generic.Transaction, error) {
	return loadRange(ctx, ts.tx, entityID, accumulatorID, nil, nil)
}

func (ts *txStore) LoadRange(ctx context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return loadRange(ctx, ts.tx, entityID, accumulatorID, &from, &to)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return exists(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// PERIOD STORE (payroll.PeriodStore interface)
// =============================================================================

// Wages returns the store itself: the wage ledger lives in the same database.
func (s *Store) Wages() generic.Store { return s }

// CreatePeriod inserts a period and any runs it already carries.
func (s *Store) CreatePeriod(ctx context.Context, p payroll.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO payroll_periods (id, start_date, end_date, pay_date, status, currency, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err = sqlTx.ExecContext(ctx, query,
		p.ID, p.Start.String(), p.End.String(), p.PayDate.String(),
		p.Status, p.Currency, nullDate(p.CreatedAt), nullDate(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("period %s already exists", p.ID)
		}
		return fmt.Errorf("failed to create period: %w", err)
	}
	if err := insertRuns(ctx, sqlTx, p); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// GetPeriod returns the period with its runs.
func (s *Store) GetPeriod(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := getPeriod(ctx, s.db, id)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	p.Runs, err = loadRuns(ctx, s.db, id)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	return p, nil
}

// ListPeriods returns every period ordered by start date, without runs.
func (s *Store) ListPeriods(ctx context.Context) ([]payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectPeriods+` ORDER BY start_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	periods := []payroll.PayrollPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// SavePeriod swaps the stored period for p, replaces its runs and appends
// the wage ledger entries in one SQL transaction.
func (s *Store) SavePeriod(ctx context.Context, p payroll.PayrollPeriod, wages []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	current, err := getPeriod(ctx, sqlTx, p.ID)
	if err != nil {
		return err
	}
	if current.Status == payroll.PeriodPaid {
		return &payroll.InvalidTransitionError{PeriodID: p.ID, From: current.Status, To: p.Status}
	}

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE payroll_periods
		SET status = ?, pay_date = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, p.Status, p.PayDate.String(), nullDate(p.UpdatedAt), p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("period %s at version %d, save from %d: %w", p.ID, current.Version, p.Version, generic.ErrConcurrentModification)
	}

	// Child rows cascade from payroll_runs.
	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM payroll_runs WHERE period_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to replace runs: %w", err)
	}
	if err := insertRuns(ctx, sqlTx, p); err != nil {
		return err
	}
	if err := appendBatch(ctx, sqlTx, wages); err != nil {
		return fmt.Errorf("append wages: %w", err)
	}

	return sqlTx.Commit()
}

const selectPeriods = `
	SELECT id, start_date, end_date, pay_date, status, currency, version, created_at, updated_at
	FROM payroll_periods
`

func getPeriod(ctx context.Context, db querier, id string) (payroll.PayrollPeriod, error) {
	rows, err := db.QueryContext(ctx, selectPeriods+` WHERE id = ?`, id)
	if err != nil {
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to query period: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return payroll.PayrollPeriod{}, err
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, id)
	}
	return scanPeriod(rows)
}

func scanPeriod(rows *sql.Rows) (payroll.PayrollPeriod, error) {
	var (
		p                    payroll.PayrollPeriod
		start, end, payDate  string
		createdAt, updatedAt sql.NullString
	)
	err := rows.Scan(&p.ID, &start, &end, &payDate, &p.Status, &p.Currency, &p.Version, &createdAt, &updatedAt)
	if err != nil {
		return p, fmt.Errorf("failed to scan period: %w", err)
	}
	if p.Start, err = generic.ParseDate(start); err != nil {
		return p, err
	}
	if p.End, err = generic.ParseDate(end); err != nil {
		return p, err
	}
	if p.PayDate, err = generic.ParseDate(payDate); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseNullDate(createdAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseNullDate(updatedAt); err != nil {
		return p, err
	}
	return p, nil
}

// =============================================================================
// RUNS
// =============================================================================

func insertRuns(ctx context.Context, db querier, p payroll.PayrollPeriod) error {
	for i, r := range p.Runs {
		warnings, err := json.Marshal(r.Warnings)
		if err != nil {
			return fmt.Errorf("run %s warnings: %w", r.ID, err)
		}
		capped, err := json.Marshal(r.CappedWages)
		if err != nil {
			return fmt.Errorf("run %s capped wages: %w", r.ID, err)
		}

		var ref, paidAt sql.NullString
		if r.Disbursement != nil {
			ref = nullString(r.Disbursement.Reference)
			paidAt = nullDate(r.Disbursement.PaidAt)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO payroll_runs
			(id, period_id, employee_id, position, status, gross_pay, net_pay, taxable_wages,
			 regular_hours, overtime_hours, regular_rate, overtime_rate, bonuses, commissions,
			 warnings_json, capped_wages_json, disbursement_ref, paid_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, p.ID, r.EmployeeID, i, r.Status,
			r.GrossPay.String(), r.NetPay.String(), r.TaxableWages.String(),
			r.RegularHours.String(), r.OvertimeHours.String(),
			r.RegularRate.String(), r.OvertimeRate.String(),
			r.Bonuses.String(), r.Commissions.String(),
			string(warnings), string(capped), ref, paidAt,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &payroll.InvalidInputError{EmployeeID: r.EmployeeID, Field: "runs", Reason: "duplicate run in period"}
			}
			return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
		}

		for j, d := range r.Deductions {
			_, err := db.ExecContext(ctx, `
				INSERT INTO payroll_deductions (id, run_id, position, deduction_type, description, amount, pre_tax)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, d.ID, r.ID, j, d.Type, nullString(d.Description), d.Amount.String(), d.PreTax)
			if err != nil {
				return fmt.Errorf("failed to insert deduction %s: %w", d.ID, err)
			}
		}
		for j, t := range r.Taxes {
			_, err := db.ExecContext(ctx, `
				INSERT INTO payroll_taxes (id, run_id, position, tax_type, description, rate, amount, taxable_wages)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, r.ID, j, t.Type, nullString(t.Description), t.Rate.String(), t.Amount.String(), t.TaxableWages.String())
			if err != nil {
				return fmt.Errorf("failed to insert tax %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

func loadRuns(ctx context.Context, db querier, periodID string) ([]payroll.PayrollRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, status, gross_pay, net_pay, taxable_wages,
		       regular_hours, overtime_hours, regular_rate, overtime_rate, bonuses, commissions,
		       warnings_json, capped_wages_json, disbursement_ref, paid_at
		FROM payroll_runs
		WHERE period_id = ?
		ORDER BY position ASC
	`, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := []payroll.PayrollRun{}
	index := make(map[string]int)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		r.PeriodID = periodID
		r.Deductions = []payroll.PayrollDeduction{}
		r.Taxes = []payroll.PayrollTax{}
		index[r.ID] = len(runs)
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadDeductions(ctx, db, periodID, runs, index); err != nil {
		return nil, err
	}
	if err := loadTaxes(ctx, db, periodID, runs, index); err != nil {
		return nil, err
	}
	return runs, nil
}

// scanRun reads one payroll_runs row. Money columns are scanned straight into
// decimals so a corrupt value is an error, never a zero.
func scanRun(rows *sql.Rows) (payroll.PayrollRun, error) {
	var (
		r                             payroll.PayrollRun
		warnings, capped, ref, paidAt sql.NullString
	)
	err := rows.Scan(&r.ID, &r.EmployeeID, &r.Status, &r.GrossPay, &r.NetPay, &r.TaxableWages,
		&r.RegularHours, &r.OvertimeHours, &r.RegularRate, &r.OvertimeRate, &r.Bonuses, &r.Commissions,
		&warnings, &capped, &ref, &paidAt)
	if err != nil {
		return r, fmt.Errorf("failed to scan run: %w", err)
	}
	if warnings.Valid && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &r.Warnings); err != nil {
			return r, fmt.Errorf("run %s warnings: %w", r.ID, err)
		}
	}
	if capped.Valid && capped.String != "null" {
		if err := json.Unmarshal([]byte(capped.String), &r.CappedWages); err != nil {
			return r, fmt.Errorf("run %s capped wages: %w", r.ID, err)
		}
	}
	if ref.Valid {
		paid, err := parseNullDate(paidAt)
		if err != nil {
			return r, fmt.Errorf("run %s: %w", r.ID, err)
		}
		r.Disbursement = &payroll.Disbursement{Reference: ref.String, PaidAt: paid}
	}
	return r, nil
}

func loadDeductions(ctx context.Context, db querier, periodID string, runs []payroll.PayrollRun, index map[string]int) error {
	rows, err := db.QueryContext(ctx, `
		SELECT d.id, d.run_id, d.deduction_type, d.description, d.amount, d.pre_tax
		FROM payroll_deductions d
		JOIN payroll_runs r ON r.id = d.run_id
		WHERE r.period_id = ?
		ORDER BY r.position ASC, d.position ASC
	`, periodID)
	if err != nil {
		return fmt.Errorf("failed to query deductions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d           payroll.PayrollDeduction
			description sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.RunID, &d.Type, &description, &d.Amount, &d.PreTax); err != nil {
			return fmt.Errorf("failed to scan deduction: %w", err)
		}
		d.Description = description.String
		i := index[d.RunID]
		runs[i].Deductions = append(runs[i].Deductions, d)
	}
	return rows.Err()
}

func loadTaxes(ctx context.Context, db querier, periodID string, runs []payroll.PayrollRun, index map[string]int) error {
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.run_id, t.tax_type, t.description, t.rate, t.amount, t.taxable_wages
		FROM payroll_taxes t
		JOIN payroll_runs r ON r.id = t.run_id
		WHERE r.period_id = ?
		ORDER BY r.position ASC, t.position ASC
	`, periodID)
	if err != nil {
		return fmt.Errorf("failed to query taxes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t           payroll.PayrollTax
			description sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.RunID, &t.Type, &description, &t.Rate, &t.Amount, &t.TaxableWages); err != nil {
			return fmt.Errorf("failed to scan tax: %w", err)
		}
		t.Description = description.String
		i := index[t.RunID]
		runs[i].Taxes = append(runs[i].Taxes, t)
	}
	return rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payroll_taxes", "payroll_deductions", "payroll_runs", "payroll_periods", "transactions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (generic.TimePoint, error) {
	if !ns.Valid {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(ns.String)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ generic.TxStore     = (*Store)(nil)
	_ payroll.PeriodStore = (*Store)(nil)
)
