// Package memory provides an in-memory payroll.PeriodStore for tests and
// dry runs. Wage ledger entries live in a generic/store.TxMemory and are
// written inside the same critical section as the period.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/payroll"
)

type Store struct {
	mu      sync.RWMutex
	periods map[string]payroll.PayrollPeriod
	wages   *store.TxMemory
}

func New() *Store {
	return &Store{
		periods: make(map[string]payroll.PayrollPeriod),
		wages:   store.NewTxMemory(),
	}
}

func (s *Store) Wages() generic.Store { return s.wages }

func (s *Store) CreatePeriod(_ context.Context, p payroll.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.periods[p.ID]; ok {
		return fmt.Errorf("period %s already exists", p.ID)
	}
	p.Version = 0
	s.periods[p.ID] = p.Clone()
	return nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[id]
	if !ok {
		return payroll.PayrollPeriod{}, fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, id)
	}
	return p.Clone(), nil
}

func (s *Store) ListPeriods(_ context.Context) ([]payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payroll.PayrollPeriod, 0, len(s.periods))
	for _, p := range s.periods {
		p.Runs = nil
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// SavePeriod swaps in p and appends wages, or changes nothing.
func (s *Store) SavePeriod(ctx context.Context, p payroll.PayrollPeriod, wages []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.periods[p.ID]
	if !ok {
		return fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, p.ID)
	}
	if current.Status == payroll.PeriodPaid {
		return &payroll.InvalidTransitionError{PeriodID: p.ID, From: current.Status, To: p.Status}
	}
	if current.Version != p.Version {
		return fmt.Errorf("period %s at version %d, save from %d: %w", p.ID, current.Version, p.Version, generic.ErrConcurrentModification)
	}

	if len(wages) > 0 {
		err := s.wages.WithTx(ctx, func(tx generic.Store) error {
			return tx.AppendBatch(ctx, wages)
		})
		if err != nil {
			return fmt.Errorf("append wages: %w", err)
		}
	}

	next := p.Clone()
	next.Version = current.Version + 1
	s.periods[p.ID] = next
	return nil
}
