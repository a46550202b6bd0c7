/*
Package payroll implements the payroll calculation engine.

PURPOSE:
  Turns an employee's recorded hours or salary, jurisdictional tax rules and
  enrolled deductions into a pay run for a period, and manages the lifecycle
  of a payroll period across many employees.

COMPONENTS (leaf first):
  brackets.go:    Tax Bracket Resolver (versioned, indexed tax table)
  withholding.go: Withholding Calculator (income + flat-rate taxes)
  gross.go:       Gross Pay Calculator (salary vs hourly, overtime)
  deductions.go:  Deduction Applier (pre-tax / post-tax ordering, net clamp)
  builder.go:     Payroll Run Builder (one employee, one period)
  manager.go:     Payroll Period Manager (open → processing → closed → paid)

DATA FLOW:
  Manager.Process
    └─ Builder.Build (per employee, in parallel)
         ├─ GrossPayCalculator.Calculate
         ├─ DeductionApplier.Split         (pre-tax and post-tax rows)
         ├─ DeductionApplier.ApplyPreTax   (pre-tax rows reduce taxable wages)
         ├─ WithholdingCalculator.Compute  (TaxTable.Resolve per jurisdiction)
         ├─ DeductionApplier.CoverTaxes    (taxes beyond taxable wages warn)
         └─ DeductionApplier.ApplyPostTax  (post-tax rows, net clamp, warnings)
    └─ PeriodStore.SavePeriod (runs and wage entries in one write)

MONEY:
  Every amount is a decimal.Decimal. Per-row amounts are rounded to cents
  with banker's rounding; totals are sums of rounded rows.

SEE ALSO:
  - generic/ledger.go: Year-to-date wage accumulation
  - factory/: YAML reference data for tax tables and settings
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type EmploymentStatus string

const (
	EmploymentActive     EmploymentStatus = "active"
	EmploymentInactive   EmploymentStatus = "inactive"
	EmploymentTerminated EmploymentStatus = "terminated"
	EmploymentOnLeave    EmploymentStatus = "on_leave"
)

func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentActive, EmploymentInactive, EmploymentTerminated, EmploymentOnLeave:
		return true
	}
	return false
}

type PayType string

const (
	PaySalary PayType = "salary"
	PayHourly PayType = "hourly"
)

func (p PayType) Valid() bool { return p == PaySalary || p == PayHourly }

type FilingStatus string

const (
	FilingSingle          FilingStatus = "single"
	FilingMarriedJoint    FilingStatus = "married_joint"
	FilingMarriedSeparate FilingStatus = "married_separate"
	FilingHeadOfHousehold FilingStatus = "head_of_household"
)

func (f FilingStatus) Valid() bool {
	switch f {
	case FilingSingle, FilingMarriedJoint, FilingMarriedSeparate, FilingHeadOfHousehold:
		return true
	}
	return false
}

type Jurisdiction string

const (
	JurisdictionFederal Jurisdiction = "federal"
	JurisdictionState   Jurisdiction = "state"
	JurisdictionLocal   Jurisdiction = "local"
)

func (j Jurisdiction) Valid() bool {
	switch j {
	case JurisdictionFederal, JurisdictionState, JurisdictionLocal:
		return true
	}
	return false
}

// PeriodStatus is the state of a PayrollPeriod. Transitions only move forward.
type PeriodStatus string

const (
	PeriodOpen       PeriodStatus = "open"
	PeriodProcessing PeriodStatus = "processing"
	PeriodClosed     PeriodStatus = "closed"
	PeriodPaid       PeriodStatus = "paid"
)

func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodOpen, PeriodProcessing, PeriodClosed, PeriodPaid:
		return true
	}
	return false
}

// next returns the only status s may move to.
func (s PeriodStatus) next() (PeriodStatus, bool) {
	switch s {
	case PeriodOpen:
		return PeriodProcessing, true
	case PeriodProcessing:
		return PeriodClosed, true
	case PeriodClosed:
		return PeriodPaid, true
	default:
		return "", false
	}
}

type RunStatus string

const (
	RunDraft    RunStatus = "draft"
	RunApproved RunStatus = "approved"
	RunPaid     RunStatus = "paid"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunDraft, RunApproved, RunPaid:
		return true
	}
	return false
}

type DeductionType string

const (
	DeductionHealthInsurance DeductionType = "health_insurance"
	Deduction401k            DeductionType = "401k"
	DeductionDental          DeductionType = "dental"
	DeductionVision          DeductionType = "vision"
	DeductionLifeInsurance   DeductionType = "life_insurance"
	DeductionDisability      DeductionType = "disability"
	DeductionGarnishment     DeductionType = "garnishment"
	DeductionOther           DeductionType = "other"
)

func (d DeductionType) Valid() bool {
	switch d {
	case DeductionHealthInsurance, Deduction401k, DeductionDental, DeductionVision,
		DeductionLifeInsurance, DeductionDisability, DeductionGarnishment, DeductionOther:
		return true
	}
	return false
}

type TaxType string

const (
	TaxFederalIncome  TaxType = "federal_income"
	TaxStateIncome    TaxType = "state_income"
	TaxLocalIncome    TaxType = "local_income"
	TaxSocialSecurity TaxType = "social_security"
	TaxMedicare       TaxType = "medicare"
	TaxUnemployment   TaxType = "unemployment"
	TaxDisability     TaxType = "disability"
)

func (t TaxType) Valid() bool {
	switch t {
	case TaxFederalIncome, TaxStateIncome, TaxLocalIncome,
		TaxSocialSecurity, TaxMedicare, TaxUnemployment, TaxDisability:
		return true
	}
	return false
}

// IsFlatRate reports whether the tax is a flat percentage of taxable wages.
func (t TaxType) IsFlatRate() bool {
	switch t {
	case TaxSocialSecurity, TaxMedicare, TaxUnemployment, TaxDisability:
		return true
	}
	return false
}

// Accumulator is the wage ledger key for this tax type's year-to-date wages.
func (t TaxType) Accumulator() generic.AccumulatorID {
	return generic.AccumulatorID("wages:" + string(t))
}

// incomeTaxType maps a jurisdiction to its income tax row type.
func incomeTaxType(j Jurisdiction) TaxType {
	switch j {
	case JurisdictionState:
		return TaxStateIncome
	case JurisdictionLocal:
		return TaxLocalIncome
	default:
		return TaxFederalIncome
	}
}

type BenefitType string

const (
	BenefitHealth     BenefitType = "health"
	BenefitDental     BenefitType = "dental"
	BenefitVision     BenefitType = "vision"
	BenefitLife       BenefitType = "life"
	Benefit401k       BenefitType = "401k"
	BenefitDisability BenefitType = "disability"
	BenefitOther      BenefitType = "other"
)

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentInactive EnrollmentStatus = "inactive"
	EnrollmentPending  EnrollmentStatus = "pending"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

// TaxProfile is the withholding information from the employee's tax forms.
type TaxProfile struct {
	FilingStatus          FilingStatus    `json:"filing_status" yaml:"filing_status"`
	State                 string          `json:"state,omitempty" yaml:"state,omitempty"`
	Allowances            int             `json:"allowances" yaml:"allowances"`
	AdditionalWithholding decimal.Decimal `json:"additional_withholding" yaml:"additional_withholding"`
}

type Employee struct {
	ID              string             `json:"id" yaml:"id"`
	EmployeeNumber  string             `json:"employee_number,omitempty" yaml:"employee_number,omitempty"`
	FirstName       string             `json:"first_name" yaml:"first_name"`
	LastName        string             `json:"last_name" yaml:"last_name"`
	Status          EmploymentStatus   `json:"status" yaml:"status"`
	PayType         PayType            `json:"pay_type" yaml:"pay_type"`
	PayRate         decimal.Decimal    `json:"pay_rate" yaml:"pay_rate"`
	Tax             TaxProfile         `json:"tax" yaml:"tax"`
	HireDate        generic.TimePoint  `json:"hire_date" yaml:"hire_date"`
	TerminationDate *generic.TimePoint `json:"termination_date,omitempty" yaml:"termination_date,omitempty"`
}

const maxAllowances = 20

// Validate checks the master-data invariants an upstream collaborator is
// expected to have enforced already.
func (e Employee) Validate() error {
	if e.ID == "" {
		return &InvalidInputError{Field: "id", Reason: "required"}
	}
	if !e.Status.Valid() {
		return &InvalidInputError{EmployeeID: e.ID, Field: "status", Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}
	if !e.PayType.Valid() {
		return &InvalidInputError{EmployeeID: e.ID, Field: "pay_type", Reason: fmt.Sprintf("unknown pay type %q", e.PayType)}
	}
	if !e.PayRate.IsPositive() {
		return &InvalidPayRateError{EmployeeID: e.ID, Rate: e.PayRate}
	}
	if !e.Tax.FilingStatus.Valid() {
		return &InvalidInputError{EmployeeID: e.ID, Field: "tax.filing_status", Reason: fmt.Sprintf("unknown filing status %q", e.Tax.FilingStatus)}
	}
	if e.Tax.Allowances < 0 || e.Tax.Allowances > maxAllowances {
		return &InvalidInputError{EmployeeID: e.ID, Field: "tax.allowances", Reason: fmt.Sprintf("must be between 0 and %d", maxAllowances)}
	}
	if e.Tax.AdditionalWithholding.IsNegative() {
		return &InvalidInputError{EmployeeID: e.ID, Field: "tax.additional_withholding", Reason: "must not be negative"}
	}
	if e.HireDate.IsZero() {
		return &InvalidInputError{EmployeeID: e.ID, Field: "hire_date", Reason: "required"}
	}
	if e.TerminationDate != nil && e.TerminationDate.Before(e.HireDate) {
		return &InvalidInputError{EmployeeID: e.ID, Field: "termination_date", Reason: "before hire date"}
	}
	return nil
}

// Employment returns the interval during which the employee was employed.
// An open-ended employment runs until the far future.
func (e Employee) Employment() generic.Period {
	end := generic.NewTimePoint(9999, 12, 31)
	if e.TerminationDate != nil {
		end = *e.TerminationDate
	}
	return generic.Period{Start: e.HireDate, End: end}
}

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// =============================================================================
// COMPANY SETTINGS
// =============================================================================

type CompanySettings struct {
	Name                 string               `json:"name" yaml:"name"`
	PayrollFrequency     generic.PayFrequency `json:"payroll_frequency" yaml:"payroll_frequency"`
	OvertimeThreshold    decimal.Decimal      `json:"overtime_threshold" yaml:"overtime_threshold"`
	OvertimeMultiplier   decimal.Decimal      `json:"overtime_multiplier" yaml:"overtime_multiplier"`
	DefaultPayDateOffset int                  `json:"default_pay_date_offset" yaml:"default_pay_date_offset"`
	Currency             generic.Currency     `json:"currency" yaml:"currency"`

	// AllowOnLeavePay lets employees with status on_leave receive a run.
	AllowOnLeavePay bool `json:"allow_on_leave_pay" yaml:"allow_on_leave_pay"`
}

var (
	maxWeeklyHours     = decimal.NewFromInt(168)
	maxOvertimeFactor  = decimal.NewFromInt(3)
	defaultOTThreshold = decimal.NewFromInt(40)
	defaultOTFactor    = decimal.RequireFromString("1.5")
)

// DefaultSettings returns a weekly USD schedule with 40h / 1.5x overtime.
func DefaultSettings() CompanySettings {
	return CompanySettings{
		PayrollFrequency:     generic.FrequencyWeekly,
		OvertimeThreshold:    defaultOTThreshold,
		OvertimeMultiplier:   defaultOTFactor,
		DefaultPayDateOffset: 5,
		Currency:             generic.CurrencyUSD,
	}
}

func (s CompanySettings) Validate() error {
	if !s.PayrollFrequency.Valid() {
		return &InvalidInputError{Field: "payroll_frequency", Reason: fmt.Sprintf("unknown frequency %q", s.PayrollFrequency)}
	}
	if s.OvertimeThreshold.IsNegative() || s.OvertimeThreshold.GreaterThan(maxWeeklyHours) {
		return &InvalidInputError{Field: "overtime_threshold", Reason: "must be between 0 and 168"}
	}
	if s.OvertimeMultiplier.LessThan(decimal.NewFromInt(1)) || s.OvertimeMultiplier.GreaterThan(maxOvertimeFactor) {
		return &InvalidInputError{Field: "overtime_multiplier", Reason: "must be between 1 and 3"}
	}
	if s.DefaultPayDateOffset < 1 || s.DefaultPayDateOffset > 31 {
		return &InvalidInputError{Field: "default_pay_date_offset", Reason: "must be between 1 and 31"}
	}
	if !s.Currency.Valid() {
		return &InvalidInputError{Field: "currency", Reason: fmt.Sprintf("invalid currency %q", s.Currency)}
	}
	return nil
}

// =============================================================================
// INPUTS FROM COLLABORATORS
// =============================================================================

// HoursSummary is the time-tracking aggregate for one employee and period.
type HoursSummary struct {
	RegularHours    decimal.Decimal `json:"regular_hours" yaml:"regular_hours"`
	OvertimeHours   decimal.Decimal `json:"overtime_hours" yaml:"overtime_hours"`
	UnpaidLeaveDays decimal.Decimal `json:"unpaid_leave_days" yaml:"unpaid_leave_days"`
}

// BenefitEnrollment is an employee's enrollment in a benefit or a standing
// deduction order such as a garnishment.
type BenefitEnrollment struct {
	ID                   string             `json:"id" yaml:"id"`
	EmployeeID           string             `json:"employee_id" yaml:"employee_id"`
	BenefitID            string             `json:"benefit_id,omitempty" yaml:"benefit_id,omitempty"`
	BenefitType          BenefitType        `json:"benefit_type,omitempty" yaml:"benefit_type,omitempty"`
	DeductionType        DeductionType      `json:"deduction_type,omitempty" yaml:"deduction_type,omitempty"`
	Description          string             `json:"description,omitempty" yaml:"description,omitempty"`
	EnrollmentDate       generic.TimePoint  `json:"enrollment_date" yaml:"enrollment_date"`
	EndDate              *generic.TimePoint `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	EmployeeContribution decimal.Decimal    `json:"employee_contribution" yaml:"employee_contribution"`
	Status               EnrollmentStatus   `json:"status" yaml:"status"`
}

// IsActiveDuring returns true if the enrollment is active and overlaps p.
func (be BenefitEnrollment) IsActiveDuring(p generic.Period) bool {
	if be.Status != EnrollmentActive {
		return false
	}
	if p.End.Before(be.EnrollmentDate) {
		return false
	}
	if be.EndDate != nil && be.EndDate.Before(p.Start) {
		return false
	}
	return true
}

// EmployeeInput bundles everything the engine needs for one employee.
type EmployeeInput struct {
	Employee    Employee            `json:"employee" yaml:"employee"`
	Hours       HoursSummary        `json:"hours" yaml:"hours"`
	Bonuses     decimal.Decimal     `json:"bonuses" yaml:"bonuses"`
	Commissions decimal.Decimal     `json:"commissions" yaml:"commissions"`
	Enrollments []BenefitEnrollment `json:"enrollments,omitempty" yaml:"enrollments,omitempty"`
}

// =============================================================================
// OUTPUTS
// =============================================================================

type PayrollDeduction struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	Type        DeductionType   `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PreTax      bool            `json:"pre_tax"`
}

type PayrollTax struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	Type         TaxType         `json:"type"`
	Description  string          `json:"description"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	TaxableWages decimal.Decimal `json:"taxable_wages"`
}

// Disbursement is the external confirmation that a run's net pay was sent.
type Disbursement struct {
	Reference string            `json:"reference"`
	PaidAt    generic.TimePoint `json:"paid_at"`
}

type PayrollRun struct {
	ID            string                      `json:"id"`
	EmployeeID    string                      `json:"employee_id"`
	PeriodID      string                      `json:"period_id"`
	GrossPay      decimal.Decimal             `json:"gross_pay"`
	NetPay        decimal.Decimal             `json:"net_pay"`
	TaxableWages  decimal.Decimal             `json:"taxable_wages"`
	RegularHours  decimal.Decimal             `json:"regular_hours"`
	OvertimeHours decimal.Decimal             `json:"overtime_hours"`
	RegularRate   decimal.Decimal             `json:"regular_rate"`
	OvertimeRate  decimal.Decimal             `json:"overtime_rate"`
	Bonuses       decimal.Decimal             `json:"bonuses"`
	Commissions   decimal.Decimal             `json:"commissions"`
	Deductions    []PayrollDeduction          `json:"deductions"`
	Taxes         []PayrollTax                `json:"taxes"`
	Warnings      []DeductionShortfallWarning `json:"warnings,omitempty"`
	Status        RunStatus                   `json:"status"`
	Disbursement  *Disbursement               `json:"disbursement,omitempty"`

	// CappedWages holds the wages counted toward each capped tax's annual
	// wage base; the manager appends them to the wage ledger on commit.
	CappedWages map[TaxType]decimal.Decimal `json:"-"`
}

func (r PayrollRun) TotalTaxes() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

func (r PayrollRun) PreTaxDeductions() decimal.Decimal  { return r.sumDeductions(true) }
func (r PayrollRun) PostTaxDeductions() decimal.Decimal { return r.sumDeductions(false) }

func (r PayrollRun) TotalDeductions() decimal.Decimal {
	return r.PreTaxDeductions().Add(r.PostTaxDeductions())
}

func (r PayrollRun) sumDeductions(preTax bool) decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Deductions {
		if d.PreTax == preTax {
			total = total.Add(d.Amount)
		}
	}
	return total
}

type PayrollPeriod struct {
	ID        string            `json:"id"`
	Start     generic.TimePoint `json:"start"`
	End       generic.TimePoint `json:"end"`
	PayDate   generic.TimePoint `json:"pay_date"`
	Status    PeriodStatus      `json:"status"`
	Currency  generic.Currency  `json:"currency"`
	Runs      []PayrollRun      `json:"runs"`
	CreatedAt generic.TimePoint `json:"created_at"`
	UpdatedAt generic.TimePoint `json:"updated_at"`

	// Version increases on every save; stores reject a save whose version
	// does not match the stored one.
	Version int `json:"version"`
}

// Range returns the period's dates as a generic.Period.
func (p PayrollPeriod) Range() generic.Period {
	return generic.Period{Start: p.Start, End: p.End}
}

// Validate enforces Start < End ≤ PayDate.
func (p PayrollPeriod) Validate() error {
	if err := p.Range().Validate(); err != nil {
		return err
	}
	if p.PayDate.Before(p.End) {
		return fmt.Errorf("%w: pay date %s is before period end %s", generic.ErrInvalidPeriod, p.PayDate, p.End)
	}
	return nil
}

// Run returns the run for employeeID, if any.
func (p *PayrollPeriod) Run(employeeID string) (*PayrollRun, bool) {
	for i := range p.Runs {
		if p.Runs[i].EmployeeID == employeeID {
			return &p.Runs[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers can stage changes without touching p.
func (p PayrollPeriod) Clone() PayrollPeriod {
	out := p
	out.Runs = make([]PayrollRun, len(p.Runs))
	for i, r := range p.Runs {
		rc := r
		rc.Deductions = append([]PayrollDeduction(nil), r.Deductions...)
		rc.Taxes = append([]PayrollTax(nil), r.Taxes...)
		rc.Warnings = append([]DeductionShortfallWarning(nil), r.Warnings...)
		if r.Disbursement != nil {
			d := *r.Disbursement
			rc.Disbursement = &d
		}
		if r.CappedWages != nil {
			rc.CappedWages = make(map[TaxType]decimal.Decimal, len(r.CappedWages))
			for k, v := range r.CappedWages {
				rc.CappedWages[k] = v
			}
		}
		out.Runs[i] = rc
	}
	return out
}

// PeriodTotals is the aggregate handed to reporting and disbursement.
type PeriodTotals struct {
	PeriodID        string          `json:"period_id"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalNet        decimal.Decimal `json:"total_net"`
	TotalTaxes      decimal.Decimal `json:"total_taxes"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	EmployeeCount   int             `json:"employee_count"`
	WarningCount    int             `json:"warning_count"`
}

// Totals aggregates the period's runs.
func (p PayrollPeriod) Totals() PeriodTotals {
	t := PeriodTotals{
		PeriodID:        p.ID,
		TotalGross:      decimal.Zero,
		TotalNet:        decimal.Zero,
		TotalTaxes:      decimal.Zero,
		TotalDeductions: decimal.Zero,
	}
	for _, r := range p.Runs {
		t.TotalGross = t.TotalGross.Add(r.GrossPay)
		t.TotalNet = t.TotalNet.Add(r.NetPay)
		t.TotalTaxes = t.TotalTaxes.Add(r.TotalTaxes())
		t.TotalDeductions = t.TotalDeductions.Add(r.TotalDeductions())
		t.EmployeeCount++
		t.WarningCount += len(r.Warnings)
	}
	return t
}
