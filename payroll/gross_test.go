package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func TestGross_HourlyWithOvertime(t *testing.T) {
	// GIVEN: 20/h, 45 hours worked, 40h threshold, 1.5x overtime
	calc := payroll.NewGrossPayCalculator(weeklySettings())
	hours := payroll.HoursSummary{RegularHours: dec("40"), OvertimeHours: dec("5")}

	// WHEN: Calculating gross pay
	gp, err := calc.Calculate(hourly("emp-1", "20"), hours, decimal.Zero, decimal.Zero, week)

	// THEN: 40×20 + 5×20×1.5 = 950
	require.NoError(t, err)
	assert.Equal(t, "950.00", gp.Gross.StringFixed(2))
	assert.True(t, gp.OvertimeRate.Equal(dec("30")))
}

func TestGross_OvertimeIsPaidAtRateTimesMultiplier(t *testing.T) {
	settings := weeklySettings()
	settings.OvertimeMultiplier = dec("2")
	calc := payroll.NewGrossPayCalculator(settings)

	for _, rate := range []string{"12.50", "18", "33.33"} {
		for _, ot := range []string{"1", "2.5", "10"} {
			base, err := calc.Calculate(hourly("e", rate), payroll.HoursSummary{RegularHours: dec("40")}, decimal.Zero, decimal.Zero, week)
			require.NoError(t, err)
			withOT, err := calc.Calculate(hourly("e", rate), payroll.HoursSummary{RegularHours: dec("40"), OvertimeHours: dec(ot)}, decimal.Zero, decimal.Zero, week)
			require.NoError(t, err)

			want := generic.Cents(dec(rate).Mul(dec("2")).Mul(dec(ot)))
			got := withOT.Gross.Sub(base.Gross)
			assert.True(t, got.Sub(want).Abs().LessThanOrEqual(dec("0.01")), "rate %s ot %s: got %s want %s", rate, ot, got, want)
		}
	}
}

func TestGross_HourlyAddsBonusesAndCommissions(t *testing.T) {
	calc := payroll.NewGrossPayCalculator(weeklySettings())
	gp, err := calc.Calculate(hourly("emp-1", "20"), payroll.HoursSummary{RegularHours: dec("10")}, dec("100"), dec("50.255"), week)
	require.NoError(t, err)
	// 200 + 100 + 50.26 (banker's rounding of .255 → .26)
	assert.Equal(t, "350.26", gp.Gross.StringFixed(2))
}

func TestGross_SalaryIsInvariantAcrossEqualPeriods(t *testing.T) {
	calc := payroll.NewGrossPayCalculator(weeklySettings())
	emp := salaried("emp-1", "2000")

	p := week
	var first decimal.Decimal
	for i := 0; i < 10; i++ {
		hours := payroll.HoursSummary{RegularHours: decimal.NewFromInt(int64(30 + i))}
		gp, err := calc.Calculate(emp, hours, decimal.Zero, decimal.Zero, p)
		require.NoError(t, err)
		if i == 0 {
			first = gp.Gross
		}
		assert.True(t, gp.Gross.Equal(first), "period %s", p)

		p, err = generic.FrequencyWeekly.NextPeriod(p)
		require.NoError(t, err)
	}
	assert.Equal(t, "2000.00", first.StringFixed(2))
}

func TestGross_SalaryProratesUnpaidLeave(t *testing.T) {
	// GIVEN: Monthly salary 3100 for January (31 days), 2 unpaid days
	calc := payroll.NewGrossPayCalculator(weeklySettings())
	jan := generic.Period{Start: date("2025-01-01"), End: date("2025-01-31")}

	gp, err := calc.Calculate(salaried("emp-1", "3100"), payroll.HoursSummary{UnpaidLeaveDays: dec("2")}, decimal.Zero, decimal.Zero, jan)

	// THEN: 3100 / 31 × 2 = 200 is withheld
	require.NoError(t, err)
	assert.Equal(t, "200.00", gp.LeaveReduction.StringFixed(2))
	assert.Equal(t, "2900.00", gp.Gross.StringFixed(2))
}

func TestGross_UnpaidLeaveNeverExceedsSalary(t *testing.T) {
	calc := payroll.NewGrossPayCalculator(weeklySettings())
	gp, err := calc.Calculate(salaried("emp-1", "700"), payroll.HoursSummary{UnpaidLeaveDays: dec("10")}, decimal.Zero, decimal.Zero, week)
	require.NoError(t, err)
	assert.True(t, gp.Gross.IsZero())
}

func TestGross_RejectsInvalidInput(t *testing.T) {
	calc := payroll.NewGrossPayCalculator(weeklySettings())

	t.Run("zero rate", func(t *testing.T) {
		_, err := calc.Calculate(hourly("emp-1", "0"), payroll.HoursSummary{}, decimal.Zero, decimal.Zero, week)
		var ipr *payroll.InvalidPayRateError
		assert.ErrorAs(t, err, &ipr)
		assert.True(t, payroll.IsFatalToBatch(err))
	})

	t.Run("negative rate", func(t *testing.T) {
		_, err := calc.Calculate(salaried("emp-1", "-10"), payroll.HoursSummary{}, decimal.Zero, decimal.Zero, week)
		assert.ErrorIs(t, err, payroll.ErrInvalidPayRate)
	})

	t.Run("negative hours", func(t *testing.T) {
		_, err := calc.Calculate(hourly("emp-1", "20"), payroll.HoursSummary{RegularHours: dec("-1")}, decimal.Zero, decimal.Zero, week)
		assert.ErrorIs(t, err, payroll.ErrInvalidInput)
	})

	t.Run("negative bonus", func(t *testing.T) {
		_, err := calc.Calculate(hourly("emp-1", "20"), payroll.HoursSummary{}, dec("-5"), decimal.Zero, week)
		assert.ErrorIs(t, err, payroll.ErrInvalidInput)
	})
}

func TestAggregateHours(t *testing.T) {
	// Two weeks: Mon 2025-01-06 .. Sun 2025-01-19
	period := generic.Period{Start: date("2025-01-06"), End: date("2025-01-19")}
	entry := func(d, h string, st payroll.TimeEntryStatus) payroll.TimeEntry {
		return payroll.TimeEntry{Date: date(d), TotalHours: dec(h), Status: st}
	}

	entries := []payroll.TimeEntry{
		// Week 1: 5 × 9h = 45h → 40 regular + 5 overtime
		entry("2025-01-06", "9", payroll.TimeEntryApproved),
		entry("2025-01-07", "9", payroll.TimeEntryApproved),
		entry("2025-01-08", "9", payroll.TimeEntryApproved),
		entry("2025-01-09", "9", payroll.TimeEntryApproved),
		entry("2025-01-10", "9", payroll.TimeEntryApproved),
		// Week 2: 30h regular
		entry("2025-01-13", "10", payroll.TimeEntryApproved),
		entry("2025-01-14", "10", payroll.TimeEntryApproved),
		entry("2025-01-15", "10", payroll.TimeEntryApproved),
		// Ignored: not approved, outside period
		entry("2025-01-16", "8", payroll.TimeEntryRejected),
		entry("2025-01-17", "8", payroll.TimeEntryCompleted),
		entry("2025-01-20", "8", payroll.TimeEntryApproved),
	}
	leaves := []payroll.LeaveRequest{
		{Type: payroll.LeaveUnpaid, Status: payroll.LeaveApproved, Start: date("2025-01-17"), End: date("2025-01-22")},
		{Type: payroll.LeaveUnpaid, Status: payroll.LeavePending, Start: date("2025-01-08"), End: date("2025-01-08")},
		{Type: payroll.LeavePTO, Status: payroll.LeaveApproved, Start: date("2025-01-09"), End: date("2025-01-09")},
	}

	sum := payroll.AggregateHours(entries, leaves, period, dec("40"))

	assert.True(t, sum.RegularHours.Equal(dec("70")), "regular %s", sum.RegularHours)
	assert.True(t, sum.OvertimeHours.Equal(dec("5")), "overtime %s", sum.OvertimeHours)
	// 17, 18, 19 fall inside the period
	assert.True(t, sum.UnpaidLeaveDays.Equal(dec("3")), "unpaid %s", sum.UnpaidLeaveDays)
}

func TestAggregateHours_WeeksStartWithThePeriod(t *testing.T) {
	// GIVEN: A weekly period running Wednesday to Tuesday, 45h across the
	// calendar week boundary
	period := generic.Period{Start: date("2025-01-08"), End: date("2025-01-14")}
	entries := []payroll.TimeEntry{
		{Date: date("2025-01-08"), TotalHours: dec("11"), Status: payroll.TimeEntryApproved},
		{Date: date("2025-01-10"), TotalHours: dec("11"), Status: payroll.TimeEntryApproved},
		{Date: date("2025-01-13"), TotalHours: dec("12"), Status: payroll.TimeEntryApproved},
		{Date: date("2025-01-14"), TotalHours: dec("11"), Status: payroll.TimeEntryApproved},
	}

	// WHEN: Aggregating
	sum := payroll.AggregateHours(entries, nil, period, dec("40"))

	// THEN: The period is one overtime week
	assert.True(t, sum.RegularHours.Equal(dec("40")), "regular %s", sum.RegularHours)
	assert.True(t, sum.OvertimeHours.Equal(dec("5")), "overtime %s", sum.OvertimeHours)
}
