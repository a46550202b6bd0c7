package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// FIXTURES - Illustrative reference data, not real jurisdiction values
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func band(j payroll.Jurisdiction, state string, fs payroll.FilingStatus, year int, min, max, rate string) payroll.TaxBracket {
	return payroll.TaxBracket{
		Jurisdiction: j,
		State:        state,
		FilingStatus: fs,
		Year:         year,
		MinIncome:    dec(min),
		MaxIncome:    dec(max),
		Rate:         dec(rate),
		IsActive:     true,
	}
}

// federal single 2025: 10% to 10k, 20% to 40k, 30% above.
func federalBrackets(year int) []payroll.TaxBracket {
	return []payroll.TaxBracket{
		band(payroll.JurisdictionFederal, "", payroll.FilingSingle, year, "0", "10000", "0.10"),
		band(payroll.JurisdictionFederal, "", payroll.FilingSingle, year, "10000", "40000", "0.20"),
		band(payroll.JurisdictionFederal, "", payroll.FilingSingle, year, "40000", "0", "0.30"),
	}
}

func testTable(t *testing.T, brackets ...payroll.TaxBracket) *payroll.TaxTable {
	t.Helper()
	if len(brackets) == 0 {
		brackets = append(federalBrackets(2025),
			band(payroll.JurisdictionState, "CA", payroll.FilingSingle, 2025, "0", "0", "0.05"))
	}
	table, err := payroll.NewTaxTable(brackets)
	require.NoError(t, err)
	return table
}

// payrollTaxRules are flat taxes only: 6.2% + 1.45% = 7.65%.
func payrollTaxRules() payroll.WithholdingRules {
	return payroll.WithholdingRules{
		FlatTaxes: []payroll.FlatTax{
			{Type: payroll.TaxSocialSecurity, Rate: dec("0.062")},
			{Type: payroll.TaxMedicare, Rate: dec("0.0145")},
		},
	}
}

func weeklySettings() payroll.CompanySettings {
	s := payroll.DefaultSettings()
	s.Name = "Acme"
	return s
}

func salaried(id string, rate string) payroll.Employee {
	return payroll.Employee{
		ID:        id,
		FirstName: "Sal",
		LastName:  id,
		Status:    payroll.EmploymentActive,
		PayType:   payroll.PaySalary,
		PayRate:   dec(rate),
		Tax:       payroll.TaxProfile{FilingStatus: payroll.FilingSingle},
		HireDate:  date("2020-01-01"),
	}
}

func hourly(id string, rate string) payroll.Employee {
	e := salaried(id, rate)
	e.FirstName = "Hal"
	e.PayType = payroll.PayHourly
	return e
}

func enrollment(id string, bt payroll.BenefitType, amount string) payroll.BenefitEnrollment {
	return payroll.BenefitEnrollment{
		ID:                   id,
		BenefitType:          bt,
		EnrollmentDate:       date("2024-01-01"),
		EmployeeContribution: dec(amount),
		Status:               payroll.EnrollmentActive,
	}
}

func garnishment(id string, amount string) payroll.BenefitEnrollment {
	e := enrollment(id, payroll.BenefitOther, amount)
	e.DeductionType = payroll.DeductionGarnishment
	return e
}

var week = generic.Period{Start: date("2025-01-06"), End: date("2025-01-12")}

// sumRows returns Σ deductions and Σ taxes of a run.
func sumRows(r payroll.PayrollRun) (decimal.Decimal, decimal.Decimal) {
	return r.TotalDeductions(), r.TotalTaxes()
}
