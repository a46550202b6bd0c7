/*
deductions.go - Deduction Applier

PURPOSE:
  Turns benefit enrollments into deduction rows and computes net pay.

ORDERING:
  1. Pre-tax rows are taken from gross and reduce taxable wages.
  2. Taxes are computed on taxable wages (withholding.go).
  3. Post-tax rows are taken from whatever remains, in enrollment order.

  net = gross − preTax − taxes − postTax, never below zero.

SHORTFALL:
  When a row cannot be covered in full, the row's Amount is what was
  actually withheld and a DeductionShortfallWarning records the rest. Taxes
  that exceed taxable wages are reported the same way (CoverTaxes). The run
  is still produced in draft for review; nothing is silently dropped.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// DeductionPolicy decides the deduction type and tax treatment of each
// enrollment.
type DeductionPolicy struct {
	Types  map[BenefitType]DeductionType `json:"types" yaml:"types"`
	PreTax map[DeductionType]bool        `json:"pre_tax" yaml:"pre_tax"`
}

// DefaultDeductionPolicy treats retirement and medical premiums as pre-tax
// and everything else as post-tax.
func DefaultDeductionPolicy() DeductionPolicy {
	return DeductionPolicy{
		Types: map[BenefitType]DeductionType{
			BenefitHealth:     DeductionHealthInsurance,
			BenefitDental:     DeductionDental,
			BenefitVision:     DeductionVision,
			BenefitLife:       DeductionLifeInsurance,
			Benefit401k:       Deduction401k,
			BenefitDisability: DeductionDisability,
			BenefitOther:      DeductionOther,
		},
		PreTax: map[DeductionType]bool{
			Deduction401k:            true,
			DeductionHealthInsurance: true,
			DeductionDental:          true,
			DeductionVision:          true,
		},
	}
}

// Classify returns the deduction type and whether it is taken pre-tax. An
// explicit DeductionType on the enrollment wins over its benefit type.
func (p DeductionPolicy) Classify(be BenefitEnrollment) (DeductionType, bool) {
	dt := be.DeductionType
	if dt == "" {
		if t, ok := p.Types[be.BenefitType]; ok {
			dt = t
		} else {
			dt = DeductionOther
		}
	}
	return dt, p.PreTax[dt]
}

type DeductionApplier struct {
	Policy DeductionPolicy
}

func NewDeductionApplier(policy DeductionPolicy) *DeductionApplier {
	return &DeductionApplier{Policy: policy}
}

// Split returns the requested pre-tax and post-tax rows for the enrollments
// active during period. Amounts are the full contributions; the Apply calls
// reduce them if pay runs out.
func (a *DeductionApplier) Split(employeeID string, enrollments []BenefitEnrollment, period generic.Period) (pre, post []PayrollDeduction, err error) {
	for _, be := range enrollments {
		if be.EmployeeID != "" && be.EmployeeID != employeeID {
			continue
		}
		if !be.IsActiveDuring(period) {
			continue
		}
		if be.EmployeeContribution.IsNegative() {
			return nil, nil, &InvalidInputError{EmployeeID: employeeID, Field: "employee_contribution", Reason: fmt.Sprintf("enrollment %s is negative", be.ID)}
		}
		if be.EmployeeContribution.IsZero() {
			continue
		}
		dt, preTax := a.Policy.Classify(be)
		if !dt.Valid() {
			return nil, nil, &InvalidInputError{EmployeeID: employeeID, Field: "deduction_type", Reason: fmt.Sprintf("unknown deduction type %q", dt)}
		}
		row := PayrollDeduction{
			Type:        dt,
			Description: deductionDescription(be, dt),
			Amount:      generic.Cents(be.EmployeeContribution),
			PreTax:      preTax,
		}
		if preTax {
			pre = append(pre, row)
		} else {
			post = append(post, row)
		}
	}
	return pre, post, nil
}

// ApplyPreTax caps pre-tax rows at gross and returns the taxable wages left.
func (a *DeductionApplier) ApplyPreTax(employeeID string, gross decimal.Decimal, pre []PayrollDeduction) ([]PayrollDeduction, decimal.Decimal, []DeductionShortfallWarning) {
	return take(employeeID, gross, pre)
}

// NetPay is the outcome of applying post-tax rows.
type NetPay struct {
	Net        decimal.Decimal
	Deductions []PayrollDeduction
	Warnings   []DeductionShortfallWarning
}

// ApplyPostTax takes post-tax rows from taxable wages after taxes and clamps
// net at zero.
func (a *DeductionApplier) ApplyPostTax(employeeID string, taxable, taxes decimal.Decimal, post []PayrollDeduction) NetPay {
	afterTax := decimal.Max(taxable.Sub(taxes), decimal.Zero)
	rows, net, warnings := take(employeeID, afterTax, post)
	return NetPay{Net: net, Deductions: rows, Warnings: warnings}
}

// CoverTaxes reports the tax rows, in order, that taxable wages cannot pay
// for. The rows keep their computed amounts; the uncovered part is owed by
// the employee and must be settled outside the run.
func (a *DeductionApplier) CoverTaxes(employeeID string, taxable decimal.Decimal, taxes []PayrollTax) []DeductionShortfallWarning {
	var warnings []DeductionShortfallWarning
	remaining := decimal.Max(taxable, decimal.Zero)
	for _, t := range taxes {
		applied := decimal.Min(t.Amount, remaining)
		remaining = remaining.Sub(applied)
		if applied.LessThan(t.Amount) {
			warnings = append(warnings, DeductionShortfallWarning{
				EmployeeID: employeeID,
				Tax:        t.Type,
				Requested:  t.Amount,
				Applied:    applied,
				Shortfall:  t.Amount.Sub(applied),
			})
		}
	}
	return warnings
}

// take withholds each row in order from available, reducing rows that
// cannot be covered.
func take(employeeID string, available decimal.Decimal, rows []PayrollDeduction) ([]PayrollDeduction, decimal.Decimal, []DeductionShortfallWarning) {
	out := make([]PayrollDeduction, 0, len(rows))
	var warnings []DeductionShortfallWarning
	remaining := decimal.Max(available, decimal.Zero)
	for _, r := range rows {
		requested := r.Amount
		applied := decimal.Min(requested, remaining)
		remaining = remaining.Sub(applied)
		if applied.LessThan(requested) {
			warnings = append(warnings, DeductionShortfallWarning{
				EmployeeID: employeeID,
				Type:       r.Type,
				Requested:  requested,
				Applied:    applied,
				Shortfall:  requested.Sub(applied),
			})
		}
		r.Amount = applied
		out = append(out, r)
	}
	return out, remaining, warnings
}

func deductionDescription(be BenefitEnrollment, dt DeductionType) string {
	if be.Description != "" {
		return be.Description
	}
	switch dt {
	case Deduction401k:
		return "401(k) contribution"
	case DeductionHealthInsurance:
		return "Health insurance"
	case DeductionDental:
		return "Dental insurance"
	case DeductionVision:
		return "Vision insurance"
	case DeductionLifeInsurance:
		return "Life insurance"
	case DeductionDisability:
		return "Disability insurance"
	case DeductionGarnishment:
		return "Wage garnishment"
	default:
		return "Other deduction"
	}
}
