package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func TestDeductionPolicy_Classify(t *testing.T) {
	policy := payroll.DefaultDeductionPolicy()

	tests := []struct {
		name       string
		enrollment payroll.BenefitEnrollment
		wantType   payroll.DeductionType
		wantPreTax bool
	}{
		{"401k", enrollment("a", payroll.Benefit401k, "1"), payroll.Deduction401k, true},
		{"health", enrollment("a", payroll.BenefitHealth, "1"), payroll.DeductionHealthInsurance, true},
		{"dental", enrollment("a", payroll.BenefitDental, "1"), payroll.DeductionDental, true},
		{"vision", enrollment("a", payroll.BenefitVision, "1"), payroll.DeductionVision, true},
		{"life", enrollment("a", payroll.BenefitLife, "1"), payroll.DeductionLifeInsurance, false},
		{"disability", enrollment("a", payroll.BenefitDisability, "1"), payroll.DeductionDisability, false},
		{"garnishment", garnishment("a", "1"), payroll.DeductionGarnishment, false},
		{"unknown benefit", enrollment("a", payroll.BenefitType("gym"), "1"), payroll.DeductionOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, pre := policy.Classify(tt.enrollment)
			assert.Equal(t, tt.wantType, dt)
			assert.Equal(t, tt.wantPreTax, pre)
		})
	}
}

func TestDeductionApplier_SplitSkipsInactiveEnrollments(t *testing.T) {
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())

	ended := enrollment("ended", payroll.BenefitDental, "10")
	end := date("2025-01-05")
	ended.EndDate = &end

	future := enrollment("future", payroll.BenefitVision, "10")
	future.EnrollmentDate = date("2025-02-01")

	pending := enrollment("pending", payroll.BenefitHealth, "10")
	pending.Status = payroll.EnrollmentPending

	other := enrollment("other", payroll.BenefitHealth, "10")
	other.EmployeeID = "someone-else"

	pre, post, err := applier.Split("emp-1", []payroll.BenefitEnrollment{
		enrollment("401k", payroll.Benefit401k, "200"),
		ended, future, pending, other,
		enrollment("zero", payroll.BenefitLife, "0"),
		garnishment("garn", "75"),
	}, week)

	require.NoError(t, err)
	require.Len(t, pre, 1)
	require.Len(t, post, 1)
	assert.Equal(t, payroll.Deduction401k, pre[0].Type)
	assert.Equal(t, payroll.DeductionGarnishment, post[0].Type)
}

func TestDeductionApplier_SplitRejectsNegativeContribution(t *testing.T) {
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())
	_, _, err := applier.Split("emp-1", []payroll.BenefitEnrollment{enrollment("x", payroll.BenefitHealth, "-5")}, week)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}

func TestDeductionApplier_PostTaxShortfall(t *testing.T) {
	// GIVEN: 300 left after tax and a 500 garnishment
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())
	post := []payroll.PayrollDeduction{{Type: payroll.DeductionGarnishment, Amount: dec("500")}}

	// WHEN: Applying post-tax deductions
	net := applier.ApplyPostTax("emp-1", dec("400"), dec("100"), post)

	// THEN: Net clamps to zero and the 200 shortfall is reported
	assert.True(t, net.Net.IsZero())
	require.Len(t, net.Deductions, 1)
	assert.Equal(t, "300.00", net.Deductions[0].Amount.StringFixed(2))
	require.Len(t, net.Warnings, 1)
	w := net.Warnings[0]
	assert.Equal(t, payroll.DeductionGarnishment, w.Type)
	assert.Equal(t, "500.00", w.Requested.StringFixed(2))
	assert.Equal(t, "300.00", w.Applied.StringFixed(2))
	assert.Equal(t, "200.00", w.Shortfall.StringFixed(2))
}

func TestDeductionApplier_CoverTaxes(t *testing.T) {
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())
	taxes := []payroll.PayrollTax{
		{Type: payroll.TaxFederalIncome, Amount: dec("80")},
		{Type: payroll.TaxMedicare, Amount: dec("30")},
	}

	assert.Empty(t, applier.CoverTaxes("emp-1", dec("110"), taxes))

	warnings := applier.CoverTaxes("emp-1", dec("100"), taxes)
	require.Len(t, warnings, 1)
	assert.Equal(t, payroll.TaxMedicare, warnings[0].Tax)
	assert.Equal(t, "20.00", warnings[0].Applied.StringFixed(2))
	assert.Equal(t, "10.00", warnings[0].Shortfall.StringFixed(2))
	assert.Equal(t, "medicare tax short by 10.00 (requested 30.00, applied 20.00)", warnings[0].String())
}

func TestDeductionApplier_PostTaxInEnrollmentOrder(t *testing.T) {
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())
	post := []payroll.PayrollDeduction{
		{Type: payroll.DeductionGarnishment, Amount: dec("250")},
		{Type: payroll.DeductionLifeInsurance, Amount: dec("100")},
	}

	net := applier.ApplyPostTax("emp-1", dec("300"), decimal.Zero, post)

	assert.True(t, net.Net.IsZero())
	assert.Equal(t, "250.00", net.Deductions[0].Amount.StringFixed(2))
	assert.Equal(t, "50.00", net.Deductions[1].Amount.StringFixed(2))
	require.Len(t, net.Warnings, 1)
	assert.Equal(t, payroll.DeductionLifeInsurance, net.Warnings[0].Type)
}

func TestDeductionApplier_PreTaxCappedAtGross(t *testing.T) {
	applier := payroll.NewDeductionApplier(payroll.DefaultDeductionPolicy())
	rows, taxable, warnings := applier.ApplyPreTax("emp-1", dec("150"), []payroll.PayrollDeduction{
		{Type: payroll.Deduction401k, Amount: dec("200"), PreTax: true},
	})

	assert.True(t, taxable.IsZero())
	assert.Equal(t, "150.00", rows[0].Amount.StringFixed(2))
	require.Len(t, warnings, 1)
	assert.Equal(t, "50.00", warnings[0].Shortfall.StringFixed(2))
}
