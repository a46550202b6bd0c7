/*
withholding.go - Withholding Calculator

PURPOSE:
  Computes the tax rows of a run from its taxable wages: marginal income tax
  per jurisdiction and flat-rate payroll taxes with annual wage-base caps.

INCOME TAX:
    annual   = taxable × periodsPerYear
    annual  -= allowances × allowanceExemption        (floored at 0)
    perYear  = Evaluate(brackets, annual)
    perRun   = round(perYear / periodsPerYear) (+ additional withholding, federal)

FLAT-RATE TAXES:
    subject = taxable                                 (no wage base)
    subject = min(taxable, max(0, wageBase − YTD))    (capped)
    amount  = round(rate × subject)

  YTD is an input. The calculator never reads or writes the wage ledger; it
  returns the capped subject wages so the caller can accumulate them after
  the period commits.

REFERENCE DATA:
  Allowance exemption, wage bases and rates are jurisdiction constants and
  come from WithholdingRules, loaded by factory/. None are hardcoded here.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// FlatTax is a flat-rate payroll tax such as Social Security or Medicare.
type FlatTax struct {
	Type        TaxType         `json:"type" yaml:"type"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Rate        decimal.Decimal `json:"rate" yaml:"rate"`
	WageBase    decimal.Decimal `json:"wage_base,omitempty" yaml:"wage_base,omitempty"` // zero = uncapped
}

func (f FlatTax) Capped() bool { return f.WageBase.IsPositive() }

// WithholdingRules are the per-jurisdiction constants the calculator needs.
type WithholdingRules struct {
	// AllowanceExemption is the annual income excluded per allowance.
	AllowanceExemption decimal.Decimal `json:"allowance_exemption" yaml:"allowance_exemption"`

	// IncomeTaxes lists the jurisdictions whose brackets are applied.
	// State and local taxes use the employee's state code and are skipped
	// for employees without one.
	IncomeTaxes []Jurisdiction `json:"income_taxes" yaml:"income_taxes"`

	FlatTaxes []FlatTax `json:"flat_taxes" yaml:"flat_taxes"`

	// PeriodsPerYear overrides the conventional annualization factor.
	PeriodsPerYear map[generic.PayFrequency]int `json:"periods_per_year,omitempty" yaml:"periods_per_year,omitempty"`
}

func (r WithholdingRules) Validate() error {
	if r.AllowanceExemption.IsNegative() {
		return &InvalidInputError{Field: "allowance_exemption", Reason: "must not be negative"}
	}
	seen := make(map[Jurisdiction]bool)
	for _, j := range r.IncomeTaxes {
		if !j.Valid() {
			return &InvalidInputError{Field: "income_taxes", Reason: fmt.Sprintf("unknown jurisdiction %q", j)}
		}
		if seen[j] {
			return &InvalidInputError{Field: "income_taxes", Reason: fmt.Sprintf("duplicate jurisdiction %q", j)}
		}
		seen[j] = true
	}
	types := make(map[TaxType]bool)
	for _, f := range r.FlatTaxes {
		if !f.Type.IsFlatRate() {
			return &InvalidInputError{Field: "flat_taxes", Reason: fmt.Sprintf("%q is not a flat-rate tax", f.Type)}
		}
		if types[f.Type] {
			return &InvalidInputError{Field: "flat_taxes", Reason: fmt.Sprintf("duplicate tax %q", f.Type)}
		}
		types[f.Type] = true
		if f.Rate.IsNegative() || f.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return &InvalidInputError{Field: "flat_taxes", Reason: fmt.Sprintf("%s rate must be between 0 and 1", f.Type)}
		}
		if f.WageBase.IsNegative() {
			return &InvalidInputError{Field: "flat_taxes", Reason: fmt.Sprintf("%s wage base must not be negative", f.Type)}
		}
	}
	for freq, n := range r.PeriodsPerYear {
		if !freq.Valid() || n <= 0 {
			return &InvalidInputError{Field: "periods_per_year", Reason: fmt.Sprintf("invalid entry %s=%d", freq, n)}
		}
	}
	return nil
}

func (r WithholdingRules) periodsPerYear(f generic.PayFrequency) int {
	if n, ok := r.PeriodsPerYear[f]; ok && n > 0 {
		return n
	}
	return f.PeriodsPerYear()
}

// =============================================================================
// CALCULATOR
// =============================================================================

type WithholdingCalculator struct {
	Table *TaxTable
	Rules WithholdingRules
}

func NewWithholdingCalculator(table *TaxTable, rules WithholdingRules) *WithholdingCalculator {
	return &WithholdingCalculator{Table: table, Rules: rules}
}

type WithholdingInput struct {
	EmployeeID   string
	Tax          TaxProfile
	TaxableWages decimal.Decimal
	Frequency    generic.PayFrequency
	Year         int

	// YearToDate is the taxable wages already counted toward each capped
	// tax this year, before this run.
	YearToDate map[TaxType]decimal.Decimal
}

type WithholdingResult struct {
	Taxes       []PayrollTax
	CappedWages map[TaxType]decimal.Decimal
}

func (r WithholdingResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

// Compute returns the tax rows for one run. A missing bracket set for any
// configured jurisdiction is returned as *NoApplicableBracketError.
func (c *WithholdingCalculator) Compute(in WithholdingInput) (WithholdingResult, error) {
	ppy := c.Rules.periodsPerYear(in.Frequency)
	if ppy <= 0 {
		return WithholdingResult{}, &InvalidInputError{EmployeeID: in.EmployeeID, Field: "frequency", Reason: fmt.Sprintf("unknown pay frequency %q", in.Frequency)}
	}
	taxable := decimal.Max(in.TaxableWages, decimal.Zero)

	res := WithholdingResult{CappedWages: make(map[TaxType]decimal.Decimal)}

	for _, j := range c.Rules.IncomeTaxes {
		if j != JurisdictionFederal && in.Tax.State == "" {
			continue
		}
		row, err := c.incomeTax(j, in, taxable, ppy)
		if err != nil {
			return WithholdingResult{}, err
		}
		res.Taxes = append(res.Taxes, row)
	}

	for _, f := range c.Rules.FlatTaxes {
		subject := taxable
		if f.Capped() {
			remaining := decimal.Max(f.WageBase.Sub(in.YearToDate[f.Type]), decimal.Zero)
			subject = decimal.Min(taxable, remaining)
			res.CappedWages[f.Type] = subject
		}
		res.Taxes = append(res.Taxes, PayrollTax{
			Type:         f.Type,
			Description:  flatDescription(f),
			Rate:         f.Rate,
			Amount:       generic.Cents(f.Rate.Mul(subject)),
			TaxableWages: subject,
		})
	}
	return res, nil
}

func (c *WithholdingCalculator) incomeTax(j Jurisdiction, in WithholdingInput, taxable decimal.Decimal, ppy int) (PayrollTax, error) {
	key := BracketKey{Jurisdiction: j, State: in.Tax.State, FilingStatus: in.Tax.FilingStatus, Year: in.Year}
	if c.Table == nil {
		return PayrollTax{}, &NoApplicableBracketError{Key: key}
	}
	brackets, err := c.Table.Resolve(key)
	if err != nil {
		return PayrollTax{}, err
	}

	periods := decimal.NewFromInt(int64(ppy))
	annual := taxable.Mul(periods)
	exempt := c.Rules.AllowanceExemption.Mul(decimal.NewFromInt(int64(in.Tax.Allowances)))
	annual = decimal.Max(annual.Sub(exempt), decimal.Zero)

	amount := generic.Cents(Evaluate(brackets, annual).Div(periods))
	if j == JurisdictionFederal {
		amount = amount.Add(generic.Cents(in.Tax.AdditionalWithholding))
	}

	rate := decimal.Zero
	if taxable.IsPositive() {
		rate = amount.Div(taxable).Round(4)
	}
	return PayrollTax{
		Type:         incomeTaxType(j),
		Description:  incomeDescription(j, in.Tax.State),
		Rate:         rate,
		Amount:       amount,
		TaxableWages: taxable,
	}, nil
}

func incomeDescription(j Jurisdiction, state string) string {
	switch j {
	case JurisdictionState:
		return fmt.Sprintf("State income tax (%s)", normalizeState(j, state))
	case JurisdictionLocal:
		return fmt.Sprintf("Local income tax (%s)", normalizeState(j, state))
	default:
		return "Federal income tax"
	}
}

func flatDescription(f FlatTax) string {
	if f.Description != "" {
		return f.Description
	}
	switch f.Type {
	case TaxSocialSecurity:
		return "Social Security"
	case TaxMedicare:
		return "Medicare"
	case TaxUnemployment:
		return "Unemployment insurance"
	case TaxDisability:
		return "Disability insurance"
	default:
		return string(f.Type)
	}
}
