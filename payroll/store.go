/*
store.go - Persistence and collaborator interfaces used by the Manager

PURPOSE:
  The engine computes; these interfaces are how its results reach storage
  and how it signals the time-tracking system.

PERIOD STORE CONTRACT:
  - SavePeriod is a compare-and-swap on Version. The stored period must
    carry the same Version as the one passed in; on success the store holds
    p with Version+1.
  - The period row, every run with its child rows, and the wage-ledger
    entries passed alongside are written in ONE transaction. A failure
    leaves the previous state untouched.
  - A period whose stored status is paid can no longer be saved.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and dry runs
  - store/sqlite: SQLite
*/
package payroll

import (
	"context"

	"github.com/warp/payroll-engine/generic"
)

type PeriodStore interface {
	// CreatePeriod inserts a new period at Version 0.
	CreatePeriod(ctx context.Context, p PayrollPeriod) error

	// GetPeriod returns the period with its runs, or ErrPeriodNotFound.
	GetPeriod(ctx context.Context, id string) (PayrollPeriod, error)

	// ListPeriods returns all periods ordered by start date, without runs.
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)

	// SavePeriod replaces the stored period and its runs and appends wages to
	// the wage ledger atomically. See the contract above.
	SavePeriod(ctx context.Context, p PayrollPeriod, wages []generic.Transaction) error

	// Wages is the ledger store holding year-to-date taxable wages.
	Wages() generic.Store
}

// TimeLocker is the time-tracking collaborator. Lock freezes time entries in
// a date range while the period is being computed.
type TimeLocker interface {
	Lock(ctx context.Context, periodID string, r generic.Period) error
	Unlock(ctx context.Context, periodID string, r generic.Period) error
}

// NoopTimeLocker is used when no time-tracking system is connected.
type NoopTimeLocker struct{}

func (NoopTimeLocker) Lock(context.Context, string, generic.Period) error   { return nil }
func (NoopTimeLocker) Unlock(context.Context, string, generic.Period) error { return nil }
