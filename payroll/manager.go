/*
manager.go - Payroll Period Manager

PURPOSE:
  Owns the lifecycle of a payroll period and the batch of runs inside it.

STATE MACHINE:
    open ──Process──▶ processing ──Close──▶ closed ──MarkPaid──▶ paid

  Transitions only move forward. Every transition is a single SavePeriod
  call, so the period and all of its runs change together or not at all.

PROCESS (open → processing), two phases:
  Concurrent Process calls for one period are refused with
  ErrConcurrentModification; only the first one locks time entries.
  1. Compute (parallel, no side effects)
       - lock the period's time entries
       - read each employee's year-to-date capped wages
       - Builder.Build per employee into a staging slice
       - ineligible employees are skipped and reported
       - any other error cancels the batch: nothing is written, the time
         lock is released and the period stays open
  2. Commit (serialized)
       - re-read year-to-date wages; if another commit moved them since
         phase 1 the batch fails with *generic.ConflictError (retryable)
       - SavePeriod(period + runs + wage ledger entries)

WAGE LEDGER:
  Each run appends one TxWages entry per capped tax, effective on the pay
  date, with idempotency key "<run id>:<tax type>". A replayed commit can
  never count the same wages twice. AdjustWages appends TxAdjustment
  entries to the same accumulators.

SEE ALSO:
  - builder.go: Per-employee computation
  - store.go: PeriodStore contract
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 8

type Manager struct {
	store   PeriodStore
	ledger  generic.Ledger
	locker  TimeLocker
	builder *Builder
	workers int
	log     zerolog.Logger
	now     func() generic.TimePoint

	// commitMu serializes every write so YTD re-validation and SavePeriod
	// see a stable ledger. It also guards inFlight.
	commitMu sync.Mutex
	inFlight map[string]bool
}

type Option func(*Manager)

func WithTimeLocker(l TimeLocker) Option { return func(m *Manager) { m.locker = l } }
func WithWorkers(n int) Option           { return func(m *Manager) { m.workers = n } }
func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides the clock used for CreatedAt/UpdatedAt stamps.
func WithClock(now func() generic.TimePoint) Option { return func(m *Manager) { m.now = now } }

func NewManager(store PeriodStore, builder *Builder, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		ledger:  generic.NewLedger(store.Wages()),
		locker:  NoopTimeLocker{},
		builder: builder,
		workers: DefaultWorkers,
		log:     zerolog.Nop(),
		now:     generic.Today,

		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

// Ledger exposes the wage ledger for year-to-date queries.
func (m *Manager) Ledger() generic.Ledger { return m.ledger }

// =============================================================================
// OPENING PERIODS
// =============================================================================

// OpenPeriod creates a new open period. It may not overlap an existing one.
func (m *Manager) OpenPeriod(ctx context.Context, r generic.Period, payDate generic.TimePoint, currency generic.Currency) (PayrollPeriod, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	p := PayrollPeriod{
		ID:        uuid.NewString(),
		Start:     r.Start,
		End:       r.End,
		PayDate:   payDate,
		Status:    PeriodOpen,
		Currency:  currency,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	if err := p.Validate(); err != nil {
		return PayrollPeriod{}, err
	}
	if !currency.Valid() {
		return PayrollPeriod{}, &InvalidInputError{Field: "currency", Reason: fmt.Sprintf("invalid currency %q", currency)}
	}

	existing, err := m.store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, fmt.Errorf("list periods: %w", err)
	}
	for _, e := range existing {
		if e.Range().Overlaps(r) {
			return PayrollPeriod{}, fmt.Errorf("%w: %s overlaps period %s %s", generic.ErrInvalidPeriod, r, e.ID, e.Range())
		}
	}

	if err := m.store.CreatePeriod(ctx, p); err != nil {
		return PayrollPeriod{}, fmt.Errorf("create period: %w", err)
	}
	m.log.Info().Str("period_id", p.ID).Str("range", r.String()).Str("pay_date", payDate.String()).Msg("period opened")
	return p, nil
}

// OpenNextPeriod opens the period following the latest existing one, or the
// period starting at first when none exist. The pay date is the period end
// plus the settings' default offset.
func (m *Manager) OpenNextPeriod(ctx context.Context, settings CompanySettings, first generic.TimePoint) (PayrollPeriod, error) {
	if err := settings.Validate(); err != nil {
		return PayrollPeriod{}, err
	}
	existing, err := m.store.ListPeriods(ctx)
	if err != nil {
		return PayrollPeriod{}, fmt.Errorf("list periods: %w", err)
	}

	var r generic.Period
	if len(existing) == 0 {
		if first.IsZero() {
			return PayrollPeriod{}, &InvalidInputError{Field: "first", Reason: "required when no period exists"}
		}
		r, err = settings.PayrollFrequency.PeriodStarting(first)
	} else {
		last := existing[len(existing)-1]
		r, err = settings.PayrollFrequency.NextPeriod(last.Range())
	}
	if err != nil {
		return PayrollPeriod{}, err
	}
	return m.OpenPeriod(ctx, r, r.End.AddDays(settings.DefaultPayDateOffset), settings.Currency)
}

// =============================================================================
// PROCESS: open → processing
// =============================================================================

type ProcessResult struct {
	Period   PayrollPeriod               `json:"period"`
	Skipped  []EmployeeFailure           `json:"skipped"`
	Warnings []DeductionShortfallWarning `json:"warnings"`
	Totals   PeriodTotals                `json:"totals"`
}

// staged is one employee's phase 1 output.
type staged struct {
	run     *PayrollRun
	skipped *EmployeeFailure
	ytd     map[TaxType]decimal.Decimal
}

// Process computes a run for every eligible employee and moves the period
// to processing. On any fatal error the period is left open and nothing is
// written; the error is a *BatchAbortedError wrapping the cause.
func (m *Manager) Process(ctx context.Context, periodID string, settings CompanySettings, inputs []EmployeeInput) (ProcessResult, error) {
	// Only one Process per period may hold the time lock. A second caller
	// is refused before it can lock, so it can never unlock the winner's
	// entries.
	if !m.claim(periodID) {
		return ProcessResult{}, fmt.Errorf("%w: period %s is already being processed", generic.ErrConcurrentModification, periodID)
	}
	defer m.release(periodID)

	period, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return ProcessResult{}, err
	}
	if period.Status != PeriodOpen {
		return ProcessResult{}, &InvalidTransitionError{PeriodID: periodID, From: period.Status, To: PeriodProcessing}
	}
	if err := m.validateBatch(period, settings, inputs); err != nil {
		return ProcessResult{}, m.abort(periodID, "", err)
	}

	r := period.Range()
	if err := m.locker.Lock(ctx, periodID, r); err != nil {
		return ProcessResult{}, fmt.Errorf("lock time entries: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		// The batch never reached the store; release the entries for editing.
		if err := m.locker.Unlock(context.WithoutCancel(ctx), periodID, r); err != nil {
			m.log.Error().Err(err).Str("period_id", periodID).Msg("unlock time entries")
		}
	}()

	stage, err := m.compute(ctx, period, settings, inputs)
	if err != nil {
		return ProcessResult{}, err
	}

	result, err := m.commitProcessing(ctx, period, stage)
	if err != nil {
		return ProcessResult{}, err
	}
	committed = true
	return result, nil
}

func (m *Manager) claim(periodID string) bool {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	if m.inFlight[periodID] {
		return false
	}
	m.inFlight[periodID] = true
	return true
}

func (m *Manager) release(periodID string) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	delete(m.inFlight, periodID)
}

func (m *Manager) validateBatch(period PayrollPeriod, settings CompanySettings, inputs []EmployeeInput) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.Currency != period.Currency {
		return fmt.Errorf("%w: settings use %s, period %s uses %s", generic.ErrCurrencyMismatch, settings.Currency, period.ID, period.Currency)
	}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		id := in.Employee.ID
		if id == "" {
			return &InvalidInputError{Field: "employee.id", Reason: "required"}
		}
		if seen[id] {
			return &InvalidInputError{EmployeeID: id, Field: "employee.id", Reason: "appears more than once in batch"}
		}
		seen[id] = true
	}
	return nil
}

// compute is phase 1. It has no side effects.
func (m *Manager) compute(ctx context.Context, period PayrollPeriod, settings CompanySettings, inputs []EmployeeInput) ([]staged, error) {
	stage := make([]staged, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i := range inputs {
		g.Go(func() error {
			in := inputs[i]
			ytd, err := m.yearToDate(gctx, in.Employee.ID, period.PayDate.Year(), period.Currency)
			if err != nil {
				return &BatchAbortedError{PeriodID: period.ID, EmployeeID: in.Employee.ID, Cause: err}
			}
			run, err := m.builder.Build(gctx, RunInput{
				PeriodID:      period.ID,
				Period:        period.Range(),
				PayDate:       period.PayDate,
				Settings:      settings,
				EmployeeInput: in,
				YearToDate:    ytd,
			})
			var inel *EmployeeIneligibleError
			switch {
			case errors.As(err, &inel):
				stage[i] = staged{skipped: &EmployeeFailure{EmployeeID: in.Employee.ID, Reason: inel.Reason}}
				return nil
			case err != nil:
				return &BatchAbortedError{PeriodID: period.ID, EmployeeID: in.Employee.ID, Cause: err}
			}
			stage[i] = staged{run: &run, ytd: ytd}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ba *BatchAbortedError
		if errors.As(err, &ba) {
			m.logAbort(ba)
			return nil, err
		}
		return nil, m.abort(period.ID, "", err)
	}
	// A cancellation after the last worker finished still aborts the batch.
	if err := ctx.Err(); err != nil {
		return nil, m.abort(period.ID, "", err)
	}
	return stage, nil
}

// yearToDate reads the capped wages already counted in year.
func (m *Manager) yearToDate(ctx context.Context, employeeID string, year int, currency generic.Currency) (map[TaxType]decimal.Decimal, error) {
	ytd := make(map[TaxType]decimal.Decimal)
	end := generic.EndOfYear(year)
	for _, f := range m.builder.Withholding.Rules.FlatTaxes {
		if !f.Capped() {
			continue
		}
		amt, err := m.ledger.YearToDate(ctx, generic.EntityID(employeeID), f.Type.Accumulator(), end, currency)
		if err != nil {
			return nil, fmt.Errorf("year-to-date %s wages: %w", f.Type, err)
		}
		ytd[f.Type] = amt.Value
	}
	return ytd, nil
}

// commitProcessing is phase 2.
func (m *Manager) commitProcessing(ctx context.Context, period PayrollPeriod, stage []staged) (ProcessResult, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	result := ProcessResult{Skipped: []EmployeeFailure{}, Warnings: []DeductionShortfallWarning{}}
	next := period.Clone()
	next.Runs = next.Runs[:0]
	var wages []generic.Transaction

	for _, s := range stage {
		if s.skipped != nil {
			result.Skipped = append(result.Skipped, *s.skipped)
			continue
		}
		run := *s.run
		current, err := m.yearToDate(ctx, run.EmployeeID, period.PayDate.Year(), period.Currency)
		if err != nil {
			return ProcessResult{}, m.abort(period.ID, run.EmployeeID, err)
		}
		for tt, before := range s.ytd {
			if !current[tt].Equal(before) {
				conflict := &generic.ConflictError{
					EntityID:      generic.EntityID(run.EmployeeID),
					AccumulatorID: tt.Accumulator(),
					Expected:      generic.NewAmountFromDecimal(before, period.Currency),
					Actual:        generic.NewAmountFromDecimal(current[tt], period.Currency),
				}
				return ProcessResult{}, m.abort(period.ID, run.EmployeeID, conflict)
			}
		}
		wages = append(wages, m.wageTransactions(period, run)...)
		result.Warnings = append(result.Warnings, run.Warnings...)
		next.Runs = append(next.Runs, run)
	}

	if err := ctx.Err(); err != nil {
		return ProcessResult{}, m.abort(period.ID, "", err)
	}
	if err := m.advance(&next, PeriodProcessing); err != nil {
		return ProcessResult{}, err
	}
	if err := m.store.SavePeriod(ctx, next, wages); err != nil {
		return ProcessResult{}, m.abort(period.ID, "", err)
	}
	next.Version++

	result.Period = next
	result.Totals = next.Totals()
	m.log.Info().
		Str("period_id", period.ID).
		Str("from", string(PeriodOpen)).
		Str("to", string(PeriodProcessing)).
		Int("runs", len(next.Runs)).
		Int("skipped", len(result.Skipped)).
		Int("warnings", len(result.Warnings)).
		Msg("period transitioned")
	return result, nil
}

func (m *Manager) wageTransactions(period PayrollPeriod, run PayrollRun) []generic.Transaction {
	types := make([]TaxType, 0, len(run.CappedWages))
	for tt, w := range run.CappedWages {
		if w.IsPositive() {
			types = append(types, tt)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	txs := make([]generic.Transaction, 0, len(types))
	for _, tt := range types {
		txs = append(txs, generic.Transaction{
			ID:             generic.TransactionID(uuid.NewString()),
			EntityID:       generic.EntityID(run.EmployeeID),
			AccumulatorID:  tt.Accumulator(),
			EffectiveAt:    period.PayDate,
			Delta:          generic.NewAmountFromDecimal(run.CappedWages[tt], period.Currency),
			Type:           generic.TxWages,
			ReferenceID:    run.ID,
			Reason:         "payroll period " + period.ID,
			IdempotencyKey: run.ID + ":" + string(tt),
			CreatedBy:      "payroll",
			CreatedAt:      m.now(),
		})
	}
	return txs
}

func (m *Manager) abort(periodID, employeeID string, cause error) error {
	ba := &BatchAbortedError{PeriodID: periodID, EmployeeID: employeeID, Cause: cause}
	m.logAbort(ba)
	return ba
}

func (m *Manager) logAbort(ba *BatchAbortedError) {
	ev := m.log.Warn().Err(ba.Cause).Str("period_id", ba.PeriodID)
	if ba.EmployeeID != "" {
		ev = ev.Str("employee_id", ba.EmployeeID)
	}
	var nab *NoApplicableBracketError
	if errors.As(ba.Cause, &nab) {
		ev = ev.Str("bracket_key", nab.Key.String()).
			Str("jurisdiction", string(nab.Key.Jurisdiction)).
			Int("year", nab.Key.Year)
	}
	ev.Msg("payroll batch aborted")
}

// =============================================================================
// REVIEW AND CLOSE: processing → closed
// =============================================================================

// ApproveRun marks one employee's run approved. Runs can only be approved
// while the period is processing. Approving an approved run is a no-op.
func (m *Manager) ApproveRun(ctx context.Context, periodID, employeeID string) (PayrollRun, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	p, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PayrollRun{}, err
	}
	if p.Status != PeriodProcessing {
		return PayrollRun{}, fmt.Errorf("%w: period %s is %s, runs are approved while processing", ErrInvalidTransition, periodID, p.Status)
	}
	run, ok := p.Run(employeeID)
	if !ok {
		return PayrollRun{}, fmt.Errorf("%w: employee %s in period %s", ErrRunNotFound, employeeID, periodID)
	}
	if run.Status == RunApproved {
		return *run, nil
	}
	run.Status = RunApproved
	p.UpdatedAt = m.now()
	if err := m.store.SavePeriod(ctx, p, nil); err != nil {
		return PayrollRun{}, fmt.Errorf("approve run: %w", err)
	}
	m.log.Debug().Str("period_id", periodID).Str("employee_id", employeeID).Msg("run approved")
	return *run, nil
}

// Close moves a processing period to closed. Every run must be approved.
func (m *Manager) Close(ctx context.Context, periodID string) (PayrollPeriod, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	p, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PayrollPeriod{}, err
	}
	if err := m.checkTransition(p, PeriodClosed); err != nil {
		return PayrollPeriod{}, err
	}
	if ids := unapproved(p); len(ids) > 0 {
		return PayrollPeriod{}, &UnapprovedRunsError{PeriodID: periodID, EmployeeIDs: ids}
	}
	return m.save(ctx, p, PeriodClosed)
}

// =============================================================================
// DISBURSEMENT: closed → paid
// =============================================================================

// MarkPaid records the disbursement confirmations and moves the period and
// all of its runs to paid in one write. confirmations is keyed by employee.
func (m *Manager) MarkPaid(ctx context.Context, periodID string, confirmations map[string]Disbursement) (PayrollPeriod, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	p, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PayrollPeriod{}, err
	}
	if err := m.checkTransition(p, PeriodPaid); err != nil {
		return PayrollPeriod{}, err
	}
	if ids := unapproved(p); len(ids) > 0 {
		return PayrollPeriod{}, &UnapprovedRunsError{PeriodID: periodID, EmployeeIDs: ids}
	}

	var missing []string
	for _, r := range p.Runs {
		if c, ok := confirmations[r.EmployeeID]; !ok || c.Reference == "" {
			missing = append(missing, r.EmployeeID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return PayrollPeriod{}, &MissingDisbursementError{PeriodID: periodID, EmployeeIDs: missing}
	}

	for i := range p.Runs {
		d := confirmations[p.Runs[i].EmployeeID]
		if d.PaidAt.IsZero() {
			d.PaidAt = m.now()
		}
		p.Runs[i].Disbursement = &d
		p.Runs[i].Status = RunPaid
	}
	return m.save(ctx, p, PeriodPaid)
}

// =============================================================================
// WAGE LEDGER
// =============================================================================

// WageAdjustment records wages counted outside a payroll run against a capped
// tax's wage base, such as wages paid by a prior employer earlier in the
// year. A negative Amount corrects an earlier over-count.
type WageAdjustment struct {
	EmployeeID     string            `json:"employee_id"`
	Tax            TaxType           `json:"tax"`
	Amount         decimal.Decimal   `json:"amount"`
	EffectiveAt    generic.TimePoint `json:"effective_at"`
	Currency       generic.Currency  `json:"currency"`
	Reason         string            `json:"reason"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

func (a WageAdjustment) Validate() error {
	switch {
	case a.EmployeeID == "":
		return &InvalidInputError{Field: "employee_id", Reason: "required"}
	case !a.Tax.IsFlatRate():
		return &InvalidInputError{EmployeeID: a.EmployeeID, Field: "tax", Reason: fmt.Sprintf("%q is not a flat-rate tax", a.Tax)}
	case a.Amount.IsZero():
		return &InvalidInputError{EmployeeID: a.EmployeeID, Field: "amount", Reason: "must not be zero"}
	case a.EffectiveAt.IsZero():
		return &InvalidInputError{EmployeeID: a.EmployeeID, Field: "effective_at", Reason: "required"}
	case !a.Currency.Valid():
		return &InvalidInputError{EmployeeID: a.EmployeeID, Field: "currency", Reason: fmt.Sprintf("invalid currency %q", a.Currency)}
	case a.Reason == "":
		return &InvalidInputError{EmployeeID: a.EmployeeID, Field: "reason", Reason: "required"}
	}
	return nil
}

// AdjustWages appends an adjustment to the wage ledger. It is serialized
// with period commits, so a batch computed before the adjustment fails its
// year-to-date check instead of overshooting the wage base.
func (m *Manager) AdjustWages(ctx context.Context, adj WageAdjustment) (generic.Transaction, error) {
	if err := adj.Validate(); err != nil {
		return generic.Transaction{}, err
	}
	key := adj.IdempotencyKey
	if key == "" {
		key = "adjustment:" + uuid.NewString()
	}
	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       generic.EntityID(adj.EmployeeID),
		AccumulatorID:  adj.Tax.Accumulator(),
		EffectiveAt:    adj.EffectiveAt,
		Delta:          generic.NewAmountFromDecimal(adj.Amount, adj.Currency),
		Type:           generic.TxAdjustment,
		Reason:         adj.Reason,
		IdempotencyKey: key,
		CreatedBy:      "adjustment",
		CreatedAt:      m.now(),
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	if err := m.ledger.Append(ctx, tx); err != nil {
		return generic.Transaction{}, fmt.Errorf("adjust wages: %w", err)
	}
	m.log.Info().
		Str("employee_id", adj.EmployeeID).
		Str("tax", string(adj.Tax)).
		Str("amount", adj.Amount.String()).
		Msg("wage adjustment recorded")
	return tx, nil
}

// YearToDateWages returns the wages counted toward each capped tax's wage
// base for the employee in year.
func (m *Manager) YearToDateWages(ctx context.Context, employeeID string, year int, currency generic.Currency) (map[TaxType]decimal.Decimal, error) {
	return m.yearToDate(ctx, employeeID, year, currency)
}

// =============================================================================
// QUERIES
// =============================================================================

func (m *Manager) GetPeriod(ctx context.Context, periodID string) (PayrollPeriod, error) {
	return m.store.GetPeriod(ctx, periodID)
}

func (m *Manager) ListPeriods(ctx context.Context) ([]PayrollPeriod, error) {
	return m.store.ListPeriods(ctx)
}

// Totals returns the aggregate figures of a period for reporting and
// disbursement.
func (m *Manager) Totals(ctx context.Context, periodID string) (PeriodTotals, error) {
	p, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PeriodTotals{}, err
	}
	return p.Totals(), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Manager) checkTransition(p PayrollPeriod, to PeriodStatus) error {
	next, ok := p.Status.next()
	if !ok || next != to {
		return &InvalidTransitionError{PeriodID: p.ID, From: p.Status, To: to}
	}
	return nil
}

func (m *Manager) advance(p *PayrollPeriod, to PeriodStatus) error {
	if err := m.checkTransition(*p, to); err != nil {
		return err
	}
	p.Status = to
	p.UpdatedAt = m.now()
	return nil
}

func (m *Manager) save(ctx context.Context, p PayrollPeriod, to PeriodStatus) (PayrollPeriod, error) {
	from := p.Status
	if err := m.advance(&p, to); err != nil {
		return PayrollPeriod{}, err
	}
	if err := m.store.SavePeriod(ctx, p, nil); err != nil {
		return PayrollPeriod{}, fmt.Errorf("save period %s: %w", p.ID, err)
	}
	p.Version++
	m.log.Info().
		Str("period_id", p.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("runs", len(p.Runs)).
		Msg("period transitioned")
	return p, nil
}

func unapproved(p PayrollPeriod) []string {
	var ids []string
	for _, r := range p.Runs {
		if r.Status != RunApproved && r.Status != RunPaid {
			ids = append(ids, r.EmployeeID)
		}
	}
	sort.Strings(ids)
	return ids
}
