/*
store.go - Persistence interface for the wage ledger

PURPOSE:
  The boundary between the Ledger and whatever keeps its entries. Entries
  are keyed by (employee, accumulator) and read back ordered by effective
  date, so year-to-date sums are a range scan.

APPEND-ONLY CONTRACT:
  - Append(): one entry, e.g. a manual wage adjustment
  - AppendBatch(): every wage entry of a period commit, all or nothing
  - There is no Update or Delete. Corrections are new entries.

IDEMPOTENCY:
  An entry whose key was already written is refused with
  ErrDuplicateIdempotencyKey, including a key repeated inside one batch.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: transactions table
  - generic/store/memory.go: maps guarded by a mutex
*/
package generic

import "context"

// Store persists ledger entries.
type Store interface {
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch writes every entry or none of them.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns the entries for one accumulator, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID) ([]Transaction, error)

	// LoadRange is Load restricted to EffectiveAt in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, accumulatorID AccumulatorID, from, to TimePoint) ([]Transaction, error)

	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore is a Store that can group writes with other work. The period
// store commits a period's runs and their wage entries in one WithTx.
type TxStore interface {
	Store

	// WithTx runs fn against a transactional view. An error from fn rolls
	// back everything fn wrote.
	WithTx(ctx context.Context, fn func(Store) error) error
}
