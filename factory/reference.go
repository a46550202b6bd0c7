/*
Package factory provides YAML to Go reference-data conversion.

PURPOSE:
  Converts reference-data documents (tax brackets, withholding rules,
  deduction policy, company settings) and batch input files into the
  payroll package's types. Jurisdiction numbers change every year; keeping
  them in data files means a new tax year is a data change, not a release.

WHY YAML?
  - Payroll administrators can review bracket tables in a diff
  - Comments next to figures (source, effective date)
  - JSON documents are valid YAML, so API payloads parse the same way

REFERENCE SCHEMA:
  settings:
    name: Acme
    payroll_frequency: bi_weekly
    overtime_threshold: 40
    overtime_multiplier: 1.5
    default_pay_date_offset: 5
    currency: USD
  withholding:
    allowance_exemption: 4300
    income_taxes: [federal, state]
    flat_taxes:
      - {type: social_security, rate: 0.062, wage_base: 168600}
      - {type: medicare, rate: 0.0145}
  deductions:            # optional, merged over the default policy
    pre_tax: {life_insurance: true}
  brackets:
    - {jurisdiction: federal, filing_status: single, year: 2025,
       min_income: 0, max_income: 11600, rate: 0.10, is_active: true}

KEY FEATURES:
  - Missing settings keys keep DefaultSettings values
  - Every section is validated before a Reference is returned
  - The bracket list is indexed into an immutable payroll.TaxTable

USAGE:
  ref, err := factory.LoadReference("testdata/reference.yaml")
  builder := ref.Builder()
  manager := payroll.NewManager(store, builder)

SEE ALSO:
  - payroll/brackets.go: TaxTable construction rules
  - payroll/withholding.go: WithholdingRules
  - factory/batch.go: Batch input files
*/
package factory

import (
	"fmt"
	"os"

	"github.com/warp/payroll-engine/payroll"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// ReferenceYAML is the document layout of a reference-data file.
type ReferenceYAML struct {
	Settings    *payroll.CompanySettings `yaml:"settings,omitempty"`
	Withholding payroll.WithholdingRules `yaml:"withholding"`
	Deductions  *payroll.DeductionPolicy `yaml:"deductions,omitempty"`
	Brackets    []payroll.TaxBracket     `yaml:"brackets"`
}

// Reference is validated reference data, ready to drive a payroll.Builder.
type Reference struct {
	Settings payroll.CompanySettings
	Rules    payroll.WithholdingRules
	Policy   payroll.DeductionPolicy
	Table    *payroll.TaxTable
}

// Builder returns a run builder over this reference data.
func (r *Reference) Builder() *payroll.Builder {
	return payroll.NewBuilder(r.Table, r.Rules, r.Policy)
}

// =============================================================================
// REFERENCE FACTORY
// =============================================================================

// LoadReference reads and parses a reference-data file.
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	ref, err := ParseReference(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

// ParseReference converts a YAML (or JSON) reference document.
func ParseReference(data []byte) (*Reference, error) {
	settings := payroll.DefaultSettings()
	doc := ReferenceYAML{Settings: &settings}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid reference YAML: %w", err)
	}
	if doc.Settings == nil {
		// An explicit `settings:` with no body decodes to nil.
		doc.Settings = &settings
	}

	if err := doc.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if err := doc.Withholding.Validate(); err != nil {
		return nil, fmt.Errorf("withholding: %w", err)
	}
	if len(doc.Brackets) == 0 && len(doc.Withholding.IncomeTaxes) > 0 {
		return nil, fmt.Errorf("brackets: %w: income taxes configured without brackets", payroll.ErrInvalidInput)
	}

	table, err := payroll.NewTaxTable(doc.Brackets)
	if err != nil {
		return nil, fmt.Errorf("brackets: %w", err)
	}

	return &Reference{
		Settings: *doc.Settings,
		Rules:    doc.Withholding,
		Policy:   mergePolicy(payroll.DefaultDeductionPolicy(), doc.Deductions),
		Table:    table,
	}, nil
}

// mergePolicy overlays the document's entries on the default policy, so a
// file only lists what it changes.
func mergePolicy(base payroll.DeductionPolicy, override *payroll.DeductionPolicy) payroll.DeductionPolicy {
	if override == nil {
		return base
	}
	for bt, dt := range override.Types {
		base.Types[bt] = dt
	}
	for dt, pre := range override.PreTax {
		base.PreTax[dt] = pre
	}
	return base
}
