/*
ledger.go - Append-only accumulation log

PURPOSE:
  The Ledger is the source of truth for running totals that span pay
  periods, most importantly year-to-date taxable wages per employee and
  tax type. Flat-rate taxes with an annual wage base (Social Security, for
  example) stop accruing once the year-to-date total reaches the cap, so the
  payroll engine reads these totals before computing a period and appends
  to them when the period commits.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same transaction (no duplicates).
     Period commits use "<run id>:<accumulator>" keys so a retried commit
     can never double-count toward a cap.

CORRECTIONS:
  Mistakes are corrected with a TxReversal of opposite sign; the original
  entry stays in the ledger.

SEE ALSO:
  - store.go: Low-level persistence interface
  - payroll/manager.go: Reads and extends year-to-date wages
*/
package generic

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is the source of truth for accumulated amounts.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+accumulator, chronologically.
	Transactions(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID) ([]Transaction, error)

	// TaxYear returns the transactions effective in the calendar year.
	TaxYear(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, year int) ([]Transaction, error)

	// BalanceAt sums every transaction effective on or before at.
	BalanceAt(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, at TimePoint, currency Currency) (Amount, error)

	// YearToDate sums transactions effective in [Jan 1 of at's year, at].
	YearToDate(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, at TimePoint, currency Currency) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, accumulatorID)
}

func (l *DefaultLedger) TaxYear(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, year int) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, entityID, accumulatorID, StartOfYear(year), EndOfYear(year))
}

func (l *DefaultLedger) BalanceAt(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, at TimePoint, currency Currency) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, accumulatorID)
	if err != nil {
		return Amount{}, err
	}
	return sum(txs, at, currency)
}

func (l *DefaultLedger) YearToDate(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, at TimePoint, currency Currency) (Amount, error) {
	txs, err := l.Store.LoadRange(ctx, entityID, accumulatorID, StartOfYear(at.Year()), at)
	if err != nil {
		return Amount{}, err
	}
	return sum(txs, at, currency)
}

func sum(txs []Transaction, at TimePoint, currency Currency) (Amount, error) {
	total := NewAmountFromDecimal(decimal.Zero, currency)
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		if tx.Delta.Currency != "" && tx.Delta.Currency != currency {
			return Amount{}, fmt.Errorf("%w: %s entry %s in %s ledger", ErrCurrencyMismatch, tx.Delta.Currency, tx.ID, currency)
		}
		total = total.Add(NewAmountFromDecimal(tx.Delta.Value, currency))
	}
	return total, nil
}
