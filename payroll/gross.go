/*
gross.go - Gross Pay Calculator

PURPOSE:
  Derives gross pay from pay type, hours, bonuses and commissions.

SALARIED:
  gross = payRate − unpaidLeaveReduction + bonuses + commissions

  payRate is already a per-period amount, so gross does not depend on hours.
  Unpaid leave is prorated over the calendar days of the period:
    reduction = payRate / calendarDays × unpaidLeaveDays   (capped at payRate)

HOURLY:
  gross = regular × rate + overtime × rate × multiplier + bonuses + commissions

  Overtime hours arrive already split by the time-tracking collaborator.
  AggregateHours performs that split from raw entries when the caller does
  not have it.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// GrossPay is the earnings breakdown of one run.
type GrossPay struct {
	Gross          decimal.Decimal
	RegularHours   decimal.Decimal
	OvertimeHours  decimal.Decimal
	RegularRate    decimal.Decimal
	OvertimeRate   decimal.Decimal
	Bonuses        decimal.Decimal
	Commissions    decimal.Decimal
	LeaveReduction decimal.Decimal
}

type GrossPayCalculator struct {
	OvertimeMultiplier decimal.Decimal
}

func NewGrossPayCalculator(settings CompanySettings) *GrossPayCalculator {
	return &GrossPayCalculator{OvertimeMultiplier: settings.OvertimeMultiplier}
}

// Calculate returns the gross pay of emp for period.
func (c *GrossPayCalculator) Calculate(emp Employee, hours HoursSummary, bonuses, commissions decimal.Decimal, period generic.Period) (GrossPay, error) {
	if !emp.PayRate.IsPositive() {
		return GrossPay{}, &InvalidPayRateError{EmployeeID: emp.ID, Rate: emp.PayRate}
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"regular_hours", hours.RegularHours},
		{"overtime_hours", hours.OvertimeHours},
		{"unpaid_leave_days", hours.UnpaidLeaveDays},
		{"bonuses", bonuses},
		{"commissions", commissions},
	} {
		if f.v.IsNegative() {
			return GrossPay{}, &InvalidInputError{EmployeeID: emp.ID, Field: f.name, Reason: "must not be negative"}
		}
	}

	gp := GrossPay{
		RegularHours:   hours.RegularHours,
		OvertimeHours:  hours.OvertimeHours,
		Bonuses:        generic.Cents(bonuses),
		Commissions:    generic.Cents(commissions),
		LeaveReduction: decimal.Zero,
	}

	var base decimal.Decimal
	switch emp.PayType {
	case PaySalary:
		gp.RegularRate = emp.PayRate
		gp.OvertimeRate = decimal.Zero
		gp.LeaveReduction = unpaidLeaveReduction(emp.PayRate, hours.UnpaidLeaveDays, period)
		base = emp.PayRate.Sub(gp.LeaveReduction)
	case PayHourly:
		multiplier := c.OvertimeMultiplier
		if multiplier.IsZero() {
			multiplier = decimal.NewFromInt(1)
		}
		gp.RegularRate = emp.PayRate
		gp.OvertimeRate = emp.PayRate.Mul(multiplier)
		base = hours.RegularHours.Mul(gp.RegularRate).Add(hours.OvertimeHours.Mul(gp.OvertimeRate))
	default:
		return GrossPay{}, &InvalidInputError{EmployeeID: emp.ID, Field: "pay_type", Reason: fmt.Sprintf("unknown pay type %q", emp.PayType)}
	}

	gp.Gross = generic.Cents(base).Add(gp.Bonuses).Add(gp.Commissions)
	return gp, nil
}

func unpaidLeaveReduction(salary, unpaidDays decimal.Decimal, period generic.Period) decimal.Decimal {
	days := period.CalendarDays()
	if !unpaidDays.IsPositive() || days <= 0 {
		return decimal.Zero
	}
	reduction := salary.Div(decimal.NewFromInt(int64(days))).Mul(unpaidDays)
	return generic.Cents(decimal.Min(reduction, salary))
}

// =============================================================================
// HOURS AGGREGATION
// =============================================================================

type TimeEntryStatus string

const (
	TimeEntryActive    TimeEntryStatus = "active"
	TimeEntryCompleted TimeEntryStatus = "completed"
	TimeEntryApproved  TimeEntryStatus = "approved"
	TimeEntryRejected  TimeEntryStatus = "rejected"
)

// TimeEntry is one clocked shift as recorded by the time-tracking system.
type TimeEntry struct {
	ID         string            `json:"id" yaml:"id"`
	EmployeeID string            `json:"employee_id" yaml:"employee_id"`
	Date       generic.TimePoint `json:"date" yaml:"date"`
	TotalHours decimal.Decimal   `json:"total_hours" yaml:"total_hours"`
	Status     TimeEntryStatus   `json:"status" yaml:"status"`
}

type LeaveType string

const (
	LeavePTO         LeaveType = "pto"
	LeaveSick        LeaveType = "sick"
	LeavePersonal    LeaveType = "personal"
	LeaveBereavement LeaveType = "bereavement"
	LeaveJuryDuty    LeaveType = "jury_duty"
	LeaveUnpaid      LeaveType = "unpaid"
)

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveDenied   LeaveStatus = "denied"
)

type LeaveRequest struct {
	ID         string            `json:"id" yaml:"id"`
	EmployeeID string            `json:"employee_id" yaml:"employee_id"`
	Type       LeaveType         `json:"type" yaml:"type"`
	Start      generic.TimePoint `json:"start" yaml:"start"`
	End        generic.TimePoint `json:"end" yaml:"end"`
	Status     LeaveStatus       `json:"status" yaml:"status"`
}

// AggregateHours summarizes approved time entries and leave that fall in
// period. The period is cut into 7-day weeks counted from its start day, and
// hours beyond threshold within one of those weeks are overtime. Unpaid
// leave counts the calendar days of approved unpaid requests that overlap
// the period.
func AggregateHours(entries []TimeEntry, leaves []LeaveRequest, period generic.Period, threshold decimal.Decimal) HoursSummary {
	weekly := make([]decimal.Decimal, period.CalendarDays()/7+1)
	for _, e := range entries {
		if e.Status != TimeEntryApproved || !period.Contains(e.Date) || !e.TotalHours.IsPositive() {
			continue
		}
		w := generic.DaysBetween(period.Start, e.Date) / 7
		weekly[w] = weekly[w].Add(e.TotalHours)
	}

	sum := HoursSummary{RegularHours: decimal.Zero, OvertimeHours: decimal.Zero, UnpaidLeaveDays: decimal.Zero}
	for _, total := range weekly {
		regular := decimal.Min(total, threshold)
		sum.RegularHours = sum.RegularHours.Add(regular)
		sum.OvertimeHours = sum.OvertimeHours.Add(total.Sub(regular))
	}

	for _, l := range leaves {
		if l.Type != LeaveUnpaid || l.Status != LeaveApproved {
			continue
		}
		overlap, ok := period.Intersect(generic.Period{Start: l.Start, End: l.End})
		if !ok {
			continue
		}
		sum.UnpaidLeaveDays = sum.UnpaidLeaveDays.Add(decimal.NewFromInt(int64(overlap.CalendarDays())))
	}
	return sum
}

