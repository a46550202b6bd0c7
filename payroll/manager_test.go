package payroll_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type recordingLocker struct {
	mu     sync.Mutex
	locked map[string]bool
	calls  []string
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{locked: make(map[string]bool)}
}

func (l *recordingLocker) Lock(_ context.Context, id string, _ generic.Period) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[id] = true
	l.calls = append(l.calls, "lock")
	return nil
}

func (l *recordingLocker) Unlock(_ context.Context, id string, _ generic.Period) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[id] = false
	l.calls = append(l.calls, "unlock")
	return nil
}

// gatedLocker holds the first Lock call until release is closed.
type gatedLocker struct {
	*recordingLocker
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLocker) Lock(ctx context.Context, id string, r generic.Period) error {
	if err := l.recordingLocker.Lock(ctx, id, r); err != nil {
		return err
	}
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
	return nil
}

// racingStore simulates another commit landing between compute and commit:
// the first year-to-date read of each employee triggers a foreign write.
type racingStore struct {
	*memory.Store
	wages *racingWages
}

func (s *racingStore) Wages() generic.Store { return s.wages }

type racingWages struct {
	generic.Store
	once sync.Once
}

func (w *racingWages) LoadRange(ctx context.Context, e generic.EntityID, a generic.AccumulatorID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	txs, err := w.Store.LoadRange(ctx, e, a, from, to)
	w.once.Do(func() {
		_ = w.Store.Append(ctx, generic.Transaction{
			ID:            "foreign",
			EntityID:      e,
			AccumulatorID: a,
			EffectiveAt:   from,
			Delta:         generic.NewAmount(100, generic.CurrencyUSD),
			Type:          generic.TxWages,
		})
	})
	return txs, err
}

// =============================================================================
// SETUP
// =============================================================================

type fixture struct {
	store    *memory.Store
	manager  *payroll.Manager
	locker   *recordingLocker
	settings payroll.CompanySettings
}

func newFixture(t *testing.T, rules payroll.WithholdingRules) *fixture {
	t.Helper()
	st := memory.New()
	locker := newRecordingLocker()
	builder := payroll.NewBuilder(testTable(t), rules, payroll.DefaultDeductionPolicy())
	return &fixture{
		store:    st,
		locker:   locker,
		settings: weeklySettings(),
		manager: payroll.NewManager(st, builder,
			payroll.WithTimeLocker(locker),
			payroll.WithWorkers(4),
			payroll.WithClock(func() generic.TimePoint { return date("2025-01-20") })),
	}
}

func (f *fixture) open(t *testing.T, start string) payroll.PayrollPeriod {
	t.Helper()
	r, err := generic.FrequencyWeekly.PeriodStarting(date(start))
	require.NoError(t, err)
	p, err := f.manager.OpenPeriod(context.Background(), r, r.End.AddDays(5), generic.CurrencyUSD)
	require.NoError(t, err)
	return p
}

func inputs(emps ...payroll.Employee) []payroll.EmployeeInput {
	out := make([]payroll.EmployeeInput, len(emps))
	for i, e := range emps {
		out[i] = payroll.EmployeeInput{Employee: e}
		if e.PayType == payroll.PayHourly {
			out[i].Hours = payroll.HoursSummary{RegularHours: dec("40"), OvertimeHours: dec("5")}
		}
	}
	return out
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestManager_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	terminated := salaried("emp-3", "1500")
	terminated.Status = payroll.EmploymentTerminated

	// open → processing
	res, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "2000"), hourly("emp-2", "20"), terminated))
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodProcessing, res.Period.Status)
	assert.Len(t, res.Period.Runs, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "emp-3", res.Skipped[0].EmployeeID)
	assert.Equal(t, 2, res.Totals.EmployeeCount)
	assert.Equal(t, "2950.00", res.Totals.TotalGross.StringFixed(2))
	assert.True(t, f.locker.locked[p.ID], "time entries stay locked after processing")

	// processing → closed requires approvals
	_, err = f.manager.Close(ctx, p.ID)
	var unapproved *payroll.UnapprovedRunsError
	require.ErrorAs(t, err, &unapproved)
	assert.Equal(t, []string{"emp-1", "emp-2"}, unapproved.EmployeeIDs)

	for _, id := range []string{"emp-1", "emp-2"} {
		run, err := f.manager.ApproveRun(ctx, p.ID, id)
		require.NoError(t, err)
		assert.Equal(t, payroll.RunApproved, run.Status)
	}
	closed, err := f.manager.Close(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodClosed, closed.Status)

	// closed → paid requires a confirmation per run
	_, err = f.manager.MarkPaid(ctx, p.ID, map[string]payroll.Disbursement{"emp-1": {Reference: "ach-1"}})
	var missing *payroll.MissingDisbursementError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"emp-2"}, missing.EmployeeIDs)

	paid, err := f.manager.MarkPaid(ctx, p.ID, map[string]payroll.Disbursement{
		"emp-1": {Reference: "ach-1"},
		"emp-2": {Reference: "ach-2", PaidAt: date("2025-01-17")},
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodPaid, paid.Status)
	for _, r := range paid.Runs {
		assert.Equal(t, payroll.RunPaid, r.Status)
		require.NotNil(t, r.Disbursement)
	}

	stored, err := f.manager.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodPaid, stored.Status)

	totals, err := f.manager.Totals(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, totals.TotalGross.Equal(res.Totals.TotalGross))
	assert.True(t, totals.TotalNet.Equal(res.Totals.TotalNet))
}

func TestManager_NoBackwardTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	// Cannot close or pay an open period
	_, err := f.manager.Close(ctx, p.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
	_, err = f.manager.MarkPaid(ctx, p.ID, nil)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	_, err = f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000")))
	require.NoError(t, err)

	// Cannot process twice
	_, err = f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000")))
	var ite *payroll.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, payroll.PeriodProcessing, ite.From)
	assert.True(t, payroll.IsConflict(err))
}

func TestManager_ApproveRunRequiresProcessing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	_, err := f.manager.ApproveRun(ctx, p.ID, "emp-1")
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	_, err = f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000")))
	require.NoError(t, err)

	_, err = f.manager.ApproveRun(ctx, p.ID, "nobody")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
	assert.True(t, payroll.IsNotFound(err))
}

// =============================================================================
// ATOMIC PROCESSING
// =============================================================================

func TestManager_MissingBracketsAbortWholeBatch(t *testing.T) {
	// GIVEN: State income tax configured; one employee lives in a state with
	//        no loaded brackets
	ctx := context.Background()
	rules := payrollTaxRules()
	rules.IncomeTaxes = []payroll.Jurisdiction{payroll.JurisdictionFederal, payroll.JurisdictionState}
	rules.FlatTaxes[0].WageBase = dec("100000")
	f := newFixture(t, rules)
	p := f.open(t, "2025-01-06")

	ok1 := salaried("emp-1", "2000")
	ok1.Tax.State = "CA"
	bad := salaried("emp-2", "2000")
	bad.Tax.State = "NY"

	// WHEN: Processing
	_, err := f.manager.Process(ctx, p.ID, f.settings, inputs(ok1, hourly("emp-3", "20"), bad))

	// THEN: The batch aborts with the bracket key, nothing persists
	var ba *payroll.BatchAbortedError
	require.ErrorAs(t, err, &ba)
	assert.Equal(t, "emp-2", ba.EmployeeID)
	var nab *payroll.NoApplicableBracketError
	require.ErrorAs(t, err, &nab)
	assert.Equal(t, "NY", nab.Key.State)
	assert.ErrorIs(t, err, payroll.ErrBatchAborted)

	stored, err := f.store.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodOpen, stored.Status)
	assert.Empty(t, stored.Runs)

	ytd, err := f.manager.Ledger().YearToDate(ctx, "emp-1", payroll.TaxSocialSecurity.Accumulator(), date("2025-12-31"), generic.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, ytd.IsZero())

	assert.False(t, f.locker.locked[p.ID], "time entries released after abort")
	assert.Equal(t, []string{"lock", "unlock"}, f.locker.calls)
}

func TestManager_DuplicateEmployeeAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	_, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000"), salaried("emp-1", "1200")))
	assert.ErrorIs(t, err, payroll.ErrBatchAborted)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	stored, _ := f.store.GetPeriod(ctx, p.ID)
	assert.Equal(t, payroll.PeriodOpen, stored.Status)
}

func TestManager_CurrencyMismatchAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	settings := f.settings
	settings.Currency = generic.CurrencyEUR
	_, err := f.manager.Process(ctx, p.ID, settings, inputs(salaried("emp-1", "1000")))
	assert.ErrorIs(t, err, generic.ErrCurrencyMismatch)
}

func TestManager_CanceledBatchLeavesPeriodOpen(t *testing.T) {
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000"), salaried("emp-2", "1000")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	stored, err := f.store.GetPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodOpen, stored.Status)
	assert.False(t, f.locker.locked[p.ID])
}

func TestManager_ProcessAfterAbortSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := f.open(t, "2025-01-06")

	_, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000"), salaried("emp-2", "0")))
	require.ErrorIs(t, err, payroll.ErrInvalidPayRate)

	res, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "1000"), salaried("emp-2", "900")))
	require.NoError(t, err)
	assert.Len(t, res.Period.Runs, 2)
}

func TestManager_ConcurrentWageCommitIsDetected(t *testing.T) {
	ctx := context.Background()
	rules := payrollTaxRules()
	rules.FlatTaxes[0].WageBase = dec("5000")

	mem := memory.New()
	st := &racingStore{Store: mem, wages: &racingWages{Store: mem.Wages()}}
	m := payroll.NewManager(st, payroll.NewBuilder(testTable(t), rules, payroll.DefaultDeductionPolicy()))

	r, _ := generic.FrequencyWeekly.PeriodStarting(date("2025-01-06"))
	p, err := m.OpenPeriod(ctx, r, r.End.AddDays(5), generic.CurrencyUSD)
	require.NoError(t, err)

	_, err = m.Process(ctx, p.ID, weeklySettings(), inputs(salaried("emp-1", "1000")))
	var conflict *generic.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, generic.IsRetryable(err))

	stored, _ := mem.GetPeriod(ctx, p.ID)
	assert.Equal(t, payroll.PeriodOpen, stored.Status)

	// A retry sees the new year-to-date and commits
	_, err = m.Process(ctx, p.ID, weeklySettings(), inputs(salaried("emp-1", "1000")))
	assert.NoError(t, err)
}

// =============================================================================
// WAGE-BASE CAP ACROSS PERIODS
// =============================================================================

func TestManager_WageBaseCapStopsAccrualForTheYear(t *testing.T) {
	// GIVEN: Social Security capped at 5000 of annual wages, 2000 per week
	ctx := context.Background()
	rules := payrollTaxRules()
	rules.FlatTaxes[0].WageBase = dec("5000")
	f := newFixture(t, rules)

	starts := []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27"}
	wantSubject := []string{"2000", "2000", "1000", "0"}
	wantAmount := []string{"124.00", "124.00", "62.00", "0.00"}

	for i, s := range starts {
		p := f.open(t, s)
		res, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "2000")))
		require.NoError(t, err)

		run := res.Period.Runs[0]
		ss, ok := taxByType(run.Taxes, payroll.TaxSocialSecurity)
		require.True(t, ok)
		assert.True(t, ss.TaxableWages.Equal(dec(wantSubject[i])), "period %d subject %s", i, ss.TaxableWages)
		assert.Equal(t, wantAmount[i], ss.Amount.StringFixed(2), "period %d", i)

		med, _ := taxByType(run.Taxes, payroll.TaxMedicare)
		assert.Equal(t, "29.00", med.Amount.StringFixed(2))
	}

	ytd, err := f.manager.Ledger().YearToDate(ctx, "emp-1", payroll.TaxSocialSecurity.Accumulator(), date("2025-12-31"), generic.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", ytd.Value.StringFixed(2))

	// The next tax year starts from zero
	p := f.open(t, "2025-12-29")
	res, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "2000")))
	require.NoError(t, err)
	ss, _ := taxByType(res.Period.Runs[0].Taxes, payroll.TaxSocialSecurity)
	assert.Equal(t, "124.00", ss.Amount.StringFixed(2), "pay date in 2026 resets the cap")
}

// =============================================================================
// TRANSITION GUARDS
// =============================================================================

func TestManager_WageAdjustmentCountsTowardWageBase(t *testing.T) {
	// GIVEN: A mid-year hire who already earned 4000 at a prior employer
	ctx := context.Background()
	rules := payrollTaxRules()
	rules.FlatTaxes[0].WageBase = dec("5000")
	f := newFixture(t, rules)

	tx, err := f.manager.AdjustWages(ctx, payroll.WageAdjustment{
		EmployeeID:     "emp-1",
		Tax:            payroll.TaxSocialSecurity,
		Amount:         dec("4000"),
		EffectiveAt:    date("2025-01-02"),
		Currency:       generic.CurrencyUSD,
		Reason:         "prior employer W-2",
		IdempotencyKey: "prior:emp-1:2025",
	})
	require.NoError(t, err)
	assert.Equal(t, generic.TxAdjustment, tx.Type)

	// Replaying the same adjustment is rejected
	_, err = f.manager.AdjustWages(ctx, payroll.WageAdjustment{
		EmployeeID: "emp-1", Tax: payroll.TaxSocialSecurity, Amount: dec("4000"),
		EffectiveAt: date("2025-01-02"), Currency: generic.CurrencyUSD,
		Reason: "prior employer W-2", IdempotencyKey: "prior:emp-1:2025",
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// WHEN: Processing a 2000 week
	p := f.open(t, "2025-01-06")
	res, err := f.manager.Process(ctx, p.ID, f.settings, inputs(salaried("emp-1", "2000")))
	require.NoError(t, err)

	// THEN: Only the remaining 1000 of the base is taxed
	ss, ok := taxByType(res.Period.Runs[0].Taxes, payroll.TaxSocialSecurity)
	require.True(t, ok)
	assert.Equal(t, "62.00", ss.Amount.StringFixed(2))

	ytd, err := f.manager.YearToDateWages(ctx, "emp-1", 2025, generic.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", ytd[payroll.TaxSocialSecurity].StringFixed(2))
	_, tracked := ytd[payroll.TaxMedicare]
	assert.False(t, tracked, "uncapped taxes have no accumulator")
}

func TestWageAdjustment_Validate(t *testing.T) {
	valid := payroll.WageAdjustment{
		EmployeeID: "emp-1", Tax: payroll.TaxSocialSecurity, Amount: dec("-100"),
		EffectiveAt: date("2025-03-01"), Currency: generic.CurrencyUSD, Reason: "correction",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*payroll.WageAdjustment)
	}{
		{"missing employee", func(a *payroll.WageAdjustment) { a.EmployeeID = "" }},
		{"income tax", func(a *payroll.WageAdjustment) { a.Tax = payroll.TaxFederalIncome }},
		{"zero amount", func(a *payroll.WageAdjustment) { a.Amount = dec("0") }},
		{"no date", func(a *payroll.WageAdjustment) { a.EffectiveAt = generic.TimePoint{} }},
		{"bad currency", func(a *payroll.WageAdjustment) { a.Currency = "usd" }},
		{"no reason", func(a *payroll.WageAdjustment) { a.Reason = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := valid
			tt.mutate(&adj)
			assert.ErrorIs(t, adj.Validate(), payroll.ErrInvalidInput)
		})
	}
}

func TestManager_PayingWithDraftRunIsRejected(t *testing.T) {
	// GIVEN: A closed period that still holds a draft run
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := payroll.PayrollPeriod{
		ID:       "closed-1",
		Start:    date("2025-01-06"),
		End:      date("2025-01-12"),
		PayDate:  date("2025-01-17"),
		Status:   payroll.PeriodClosed,
		Currency: generic.CurrencyUSD,
		Runs: []payroll.PayrollRun{
			{ID: "r1", EmployeeID: "emp-1", Status: payroll.RunApproved},
			{ID: "r2", EmployeeID: "emp-2", Status: payroll.RunDraft},
		},
	}
	require.NoError(t, f.store.CreatePeriod(ctx, p))

	// WHEN: Marking paid
	_, err := f.manager.MarkPaid(ctx, p.ID, map[string]payroll.Disbursement{
		"emp-1": {Reference: "a"},
		"emp-2": {Reference: "b"},
	})

	// THEN: Rejected naming the draft run's employee; period remains closed
	var unapproved *payroll.UnapprovedRunsError
	require.ErrorAs(t, err, &unapproved)
	assert.Equal(t, []string{"emp-2"}, unapproved.EmployeeIDs)

	stored, err := f.store.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodClosed, stored.Status)
	for _, r := range stored.Runs {
		assert.NotEqual(t, payroll.RunPaid, r.Status)
	}
}

func TestManager_PaidPeriodIsImmutable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	p := payroll.PayrollPeriod{
		ID: "paid-1", Start: date("2025-01-06"), End: date("2025-01-12"), PayDate: date("2025-01-17"),
		Status: payroll.PeriodPaid, Currency: generic.CurrencyUSD,
	}
	require.NoError(t, f.store.CreatePeriod(ctx, p))

	_, err := f.manager.MarkPaid(ctx, p.ID, nil)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
	_, err = f.manager.Process(ctx, p.ID, f.settings, nil)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
	assert.ErrorIs(t, f.store.SavePeriod(ctx, p, nil), payroll.ErrInvalidTransition)
}

// =============================================================================
// OPENING PERIODS
// =============================================================================

func TestManager_OpenPeriodValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())
	f.open(t, "2025-01-06")

	tests := []struct {
		name    string
		r       generic.Period
		payDate generic.TimePoint
	}{
		{"overlap", generic.Period{Start: date("2025-01-10"), End: date("2025-01-16")}, date("2025-01-20")},
		{"end before start", generic.Period{Start: date("2025-02-10"), End: date("2025-02-01")}, date("2025-02-20")},
		{"pay date before end", generic.Period{Start: date("2025-02-03"), End: date("2025-02-09")}, date("2025-02-08")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.OpenPeriod(ctx, tt.r, tt.payDate, generic.CurrencyUSD)
			assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
		})
	}
}

func TestManager_OpenNextPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payrollTaxRules())

	_, err := f.manager.OpenNextPeriod(ctx, f.settings, generic.TimePoint{})
	assert.ErrorIs(t, err, payroll.ErrInvalidInput, "the first period needs a start date")

	first, err := f.manager.OpenNextPeriod(ctx, f.settings, date("2025-01-06"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", first.Start.String())
	assert.Equal(t, "2025-01-12", first.End.String())
	assert.Equal(t, "2025-01-17", first.PayDate.String())

	second, err := f.manager.OpenNextPeriod(ctx, f.settings, date("2025-01-06"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-13", second.Start.String())
	assert.Equal(t, "2025-01-19", second.End.String())

	periods, err := f.manager.ListPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, first.ID, periods[0].ID)
}

func TestManager_ConcurrentProcessKeepsTimeLock(t *testing.T) {
	// GIVEN: A first Process holding the time lock mid-batch
	ctx := context.Background()
	st := memory.New()
	locker := &gatedLocker{
		recordingLocker: newRecordingLocker(),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	builder := payroll.NewBuilder(testTable(t), payrollTaxRules(), payroll.DefaultDeductionPolicy())
	m := payroll.NewManager(st, builder, payroll.WithTimeLocker(locker))
	r, err := generic.FrequencyWeekly.PeriodStarting(date("2025-01-06"))
	require.NoError(t, err)
	p, err := m.OpenPeriod(ctx, r, r.End.AddDays(5), generic.CurrencyUSD)
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := m.Process(ctx, p.ID, weeklySettings(), inputs(salaried("emp-1", "2000")))
		first <- err
	}()
	<-locker.entered

	// WHEN: A second Process for the same period arrives
	_, err = m.Process(ctx, p.ID, weeklySettings(), inputs(salaried("emp-1", "2000")))

	// THEN: It is refused without touching the lock, and the first commits
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, payroll.IsConflict(err))
	close(locker.release)
	require.NoError(t, <-first)

	got, err := m.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodProcessing, got.Status)
	assert.True(t, locker.locked[p.ID], "time entries stay locked")
	assert.Equal(t, []string{"lock"}, locker.calls)

	// A later call sees the committed status
	_, err = m.Process(ctx, p.ID, weeklySettings(), inputs(salaried("emp-1", "2000")))
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
}
