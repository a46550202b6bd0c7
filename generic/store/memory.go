// Package store provides in-memory generic.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

type key struct {
	EntityID      generic.EntityID
	AccumulatorID generic.AccumulatorID
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[key][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendBatchLocked(txs)
}

func (m *Memory) appendBatchLocked(txs []generic.Transaction) error {
	// Check all idempotency keys first, including duplicates inside the batch
	batch := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || batch[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}

	k := key{EntityID: tx.EntityID, AccumulatorID: tx.AccumulatorID}
	txs := m.transactions[k]

	// Binary search for insertion point keeps the slice ordered by EffectiveAt
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(entityID, accumulatorID), nil
}

func (m *Memory) loadLocked(entityID generic.EntityID, accumulatorID generic.AccumulatorID) []generic.Transaction {
	k := key{EntityID: entityID, AccumulatorID: accumulatorID}
	result := make([]generic.Transaction, len(m.transactions[k]))
	copy(result, m.transactions[k])
	return result
}

func (m *Memory) LoadRange(_ context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadRangeLocked(entityID, accumulatorID, from, to), nil
}

func (m *Memory) loadRangeLocked(entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to generic.TimePoint) []generic.Transaction {
	k := key{EntityID: entityID, AccumulatorID: accumulatorID}
	var result []generic.Transaction
	for _, tx := range m.transactions[k] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txsCopy := make(map[key][]generic.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]generic.Transaction{}, v...)
	}
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return memorySnapshot{transactions: txsCopy, idempotency: idempCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

// txMemoryView runs with the parent's lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	return tv.parent.appendBatchLocked(txs)
}

func (tv *txMemoryView) Load(_ context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID) ([]generic.Transaction, error) {
	return tv.parent.loadLocked(entityID, accumulatorID), nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, entityID generic.EntityID, accumulatorID generic.AccumulatorID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return tv.parent.loadRangeLocked(entityID, accumulatorID, from, to), nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
