/*
builder.go - Payroll Run Builder

PURPOSE:
  Produces one employee's PayrollRun for one period. Build is pure: it reads
  its inputs, never touches a store, and can run concurrently for different
  employees.

STEPS:
  1. Eligibility       employment overlaps the period, status allows pay
  2. Validation        master data invariants (pay rate, allowances, ...)
  3. Gross pay         gross.go
  4. Pre-tax           deductions.go, reduces taxable wages
  5. Withholding       withholding.go, using YTD for wage-base caps
  6. Post-tax + net    deductions.go, clamp and shortfall warnings
  7. Assemble          IDs, child rows, status draft

ERRORS:
  *EmployeeIneligibleError   skip this employee
  anything else              fatal for the batch
*/
package payroll

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// RunInput is everything Build needs for one employee.
type RunInput struct {
	PeriodID string
	Period   generic.Period
	PayDate  generic.TimePoint
	Settings CompanySettings
	EmployeeInput

	// YearToDate holds capped taxable wages already accumulated this year.
	YearToDate map[TaxType]decimal.Decimal
}

type Builder struct {
	Withholding *WithholdingCalculator
	Deductions  *DeductionApplier

	// NewID generates row identifiers. Defaults to random UUIDs.
	NewID func() string
}

func NewBuilder(table *TaxTable, rules WithholdingRules, policy DeductionPolicy) *Builder {
	return &Builder{
		Withholding: NewWithholdingCalculator(table, rules),
		Deductions:  NewDeductionApplier(policy),
		NewID:       uuid.NewString,
	}
}

// CheckEligibility returns *EmployeeIneligibleError when emp cannot be paid
// for period.
func CheckEligibility(emp Employee, period generic.Period, settings CompanySettings) error {
	switch emp.Status {
	case EmploymentActive:
	case EmploymentOnLeave:
		if !settings.AllowOnLeavePay {
			return &EmployeeIneligibleError{EmployeeID: emp.ID, Status: emp.Status, Period: period, Reason: "on leave without pay"}
		}
	default:
		return &EmployeeIneligibleError{EmployeeID: emp.ID, Status: emp.Status, Period: period, Reason: "not active"}
	}
	if emp.HireDate.IsZero() || !emp.Employment().Overlaps(period) {
		return &EmployeeIneligibleError{EmployeeID: emp.ID, Status: emp.Status, Period: period, Reason: "employment does not overlap period"}
	}
	return nil
}

// Build computes the run for in. The returned run is in draft status.
func (b *Builder) Build(ctx context.Context, in RunInput) (PayrollRun, error) {
	if err := ctx.Err(); err != nil {
		return PayrollRun{}, err
	}
	emp := in.Employee

	if err := CheckEligibility(emp, in.Period, in.Settings); err != nil {
		return PayrollRun{}, err
	}
	if err := emp.Validate(); err != nil {
		return PayrollRun{}, err
	}

	gross, err := NewGrossPayCalculator(in.Settings).Calculate(emp, in.Hours, in.Bonuses, in.Commissions, in.Period)
	if err != nil {
		return PayrollRun{}, err
	}

	pre, post, err := b.Deductions.Split(emp.ID, in.Enrollments, in.Period)
	if err != nil {
		return PayrollRun{}, err
	}
	pre, taxable, warnings := b.Deductions.ApplyPreTax(emp.ID, gross.Gross, pre)

	withheld, err := b.Withholding.Compute(WithholdingInput{
		EmployeeID:   emp.ID,
		Tax:          emp.Tax,
		TaxableWages: taxable,
		Frequency:    in.Settings.PayrollFrequency,
		Year:         taxYear(in),
		YearToDate:   in.YearToDate,
	})
	if err != nil {
		return PayrollRun{}, err
	}

	warnings = append(warnings, b.Deductions.CoverTaxes(emp.ID, taxable, withheld.Taxes)...)
	net := b.Deductions.ApplyPostTax(emp.ID, taxable, withheld.Total(), post)
	warnings = append(warnings, net.Warnings...)

	run := PayrollRun{
		ID:            b.newID(),
		EmployeeID:    emp.ID,
		PeriodID:      in.PeriodID,
		GrossPay:      gross.Gross,
		NetPay:        net.Net,
		TaxableWages:  taxable,
		RegularHours:  gross.RegularHours,
		OvertimeHours: gross.OvertimeHours,
		RegularRate:   gross.RegularRate,
		OvertimeRate:  gross.OvertimeRate,
		Bonuses:       gross.Bonuses,
		Commissions:   gross.Commissions,
		Warnings:      warnings,
		Status:        RunDraft,
		CappedWages:   withheld.CappedWages,
	}

	run.Deductions = make([]PayrollDeduction, 0, len(pre)+len(net.Deductions))
	for _, d := range append(pre, net.Deductions...) {
		d.ID = b.newID()
		d.RunID = run.ID
		run.Deductions = append(run.Deductions, d)
	}
	run.Taxes = make([]PayrollTax, 0, len(withheld.Taxes))
	for _, t := range withheld.Taxes {
		t.ID = b.newID()
		t.RunID = run.ID
		run.Taxes = append(run.Taxes, t)
	}
	return run, nil
}

func (b *Builder) newID() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

// taxYear is the year wages are taxed in: the pay date's year, or the
// period end's when no pay date is known.
func taxYear(in RunInput) int {
	if !in.PayDate.IsZero() {
		return in.PayDate.Year()
	}
	return in.Period.End.Year()
}
