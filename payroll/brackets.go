/*
brackets.go - Tax Bracket Resolver

PURPOSE:
  Holds the marginal tax rules for every jurisdiction, filing status and
  year, and evaluates annual tax for an income.

VERSIONING:
  A TaxTable is immutable once built. Brackets are versioned by Year; a new
  tax year is a new set of rows, never an edit of an existing one. Lookups
  go through a map keyed by BracketKey, so resolution cost does not grow
  with the number of years or states loaded.

PARTITION INVARIANT:
  The active brackets of a key must partition [0, ∞):
    - the lowest band starts at 0
    - each band starts where the previous one ends
    - only the highest band may be unbounded (MaxIncome zero)
  NewTaxTable rejects tables that break this so evaluation never has to
  guess about gaps or overlaps.

EVALUATION:
  tax(income) = Σ rate_i × (min(income, max_i) − min_i)   over reached bands
              + flatAmount of the highest reached band

  FlatAmount is a fixed offset carried by the band itself (zero when the
  marginal sum alone is used). Offsets may not fall from one band to the
  next, so evaluation is monotonic in income.

SEE ALSO:
  - withholding.go: Annualizes wages and calls Evaluate
  - factory/reference.go: Loads brackets from YAML
*/
package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxBracket is one marginal band of a jurisdiction's tax schedule.
type TaxBracket struct {
	Jurisdiction Jurisdiction    `json:"jurisdiction" yaml:"jurisdiction"`
	State        string          `json:"state,omitempty" yaml:"state,omitempty"`
	FilingStatus FilingStatus    `json:"filing_status" yaml:"filing_status"`
	Year         int             `json:"year" yaml:"year"`
	MinIncome    decimal.Decimal `json:"min_income" yaml:"min_income"`
	MaxIncome    decimal.Decimal `json:"max_income" yaml:"max_income"` // zero = unbounded
	Rate         decimal.Decimal `json:"rate" yaml:"rate"`
	FlatAmount   decimal.Decimal `json:"flat_amount" yaml:"flat_amount"`
	IsActive     bool            `json:"is_active" yaml:"is_active"`
}

// Unbounded reports whether the band has no upper limit.
func (b TaxBracket) Unbounded() bool { return b.MaxIncome.IsZero() }

func (b TaxBracket) Key() BracketKey {
	return BracketKey{
		Jurisdiction: b.Jurisdiction,
		State:        normalizeState(b.Jurisdiction, b.State),
		FilingStatus: b.FilingStatus,
		Year:         b.Year,
	}
}

// BracketKey identifies one bracket set. State is empty for federal rules.
type BracketKey struct {
	Jurisdiction Jurisdiction
	State        string
	FilingStatus FilingStatus
	Year         int
}

func (k BracketKey) String() string {
	if k.State == "" {
		return fmt.Sprintf("%s/%s/%d", k.Jurisdiction, k.FilingStatus, k.Year)
	}
	return fmt.Sprintf("%s:%s/%s/%d", k.Jurisdiction, k.State, k.FilingStatus, k.Year)
}

func normalizeState(j Jurisdiction, state string) string {
	if j == JurisdictionFederal {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(state))
}

// =============================================================================
// TAX TABLE
// =============================================================================

// TaxTable is an immutable index of active bracket sets.
type TaxTable struct {
	sets map[BracketKey][]TaxBracket
}

// NewTaxTable indexes the active brackets and validates every set.
func NewTaxTable(brackets []TaxBracket) (*TaxTable, error) {
	sets := make(map[BracketKey][]TaxBracket)
	for _, b := range brackets {
		if !b.IsActive {
			continue
		}
		if !b.Jurisdiction.Valid() {
			return nil, fmt.Errorf("tax bracket: unknown jurisdiction %q", b.Jurisdiction)
		}
		if !b.FilingStatus.Valid() {
			return nil, fmt.Errorf("tax bracket: unknown filing status %q", b.FilingStatus)
		}
		if b.Jurisdiction != JurisdictionFederal && strings.TrimSpace(b.State) == "" {
			return nil, fmt.Errorf("tax bracket: %s bracket requires a state code", b.Jurisdiction)
		}
		if b.Rate.IsNegative() || b.FlatAmount.IsNegative() || b.MinIncome.IsNegative() {
			return nil, fmt.Errorf("tax bracket %s: negative rate, offset or bound", b.Key())
		}
		b.State = normalizeState(b.Jurisdiction, b.State)
		k := b.Key()
		sets[k] = append(sets[k], b)
	}

	for k, set := range sets {
		sort.Slice(set, func(i, j int) bool { return set[i].MinIncome.LessThan(set[j].MinIncome) })
		if err := validatePartition(k, set); err != nil {
			return nil, err
		}
	}
	return &TaxTable{sets: sets}, nil
}

func validatePartition(k BracketKey, set []TaxBracket) error {
	if !set[0].MinIncome.IsZero() {
		return fmt.Errorf("tax brackets %s: lowest band starts at %s, not 0", k, set[0].MinIncome)
	}
	for i, b := range set {
		last := i == len(set)-1
		if b.Unbounded() {
			if !last {
				return fmt.Errorf("tax brackets %s: unbounded band at %s is not the highest", k, b.MinIncome)
			}
			continue
		}
		if !b.MaxIncome.GreaterThan(b.MinIncome) {
			return fmt.Errorf("tax brackets %s: empty band [%s, %s)", k, b.MinIncome, b.MaxIncome)
		}
		if !last && !set[i+1].MinIncome.Equal(b.MaxIncome) {
			return fmt.Errorf("tax brackets %s: gap or overlap between %s and %s", k, b.MaxIncome, set[i+1].MinIncome)
		}
		// A falling offset would make tax drop when income crosses a band.
		if !last && set[i+1].FlatAmount.LessThan(b.FlatAmount) {
			return fmt.Errorf("tax brackets %s: flat amount decreases at %s", k, set[i+1].MinIncome)
		}
	}
	return nil
}

// Resolve returns the ordered bracket set for key.
func (t *TaxTable) Resolve(key BracketKey) ([]TaxBracket, error) {
	key.State = normalizeState(key.Jurisdiction, key.State)
	set, ok := t.sets[key]
	if !ok {
		return nil, &NoApplicableBracketError{Key: key}
	}
	out := make([]TaxBracket, len(set))
	copy(out, set)
	return out, nil
}

// Keys lists the loaded bracket sets in a stable order.
func (t *TaxTable) Keys() []BracketKey {
	keys := make([]BracketKey, 0, len(t.sets))
	for k := range t.sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Years returns the distinct years present in the table, ascending.
func (t *TaxTable) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for k := range t.sets {
		if !seen[k.Year] {
			seen[k.Year] = true
			years = append(years, k.Year)
		}
	}
	sort.Ints(years)
	return years
}

// Evaluate computes the annual tax owed on income under a bracket set
// ordered by MinIncome. Negative income is taxed as zero.
func Evaluate(brackets []TaxBracket, income decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	if !income.IsPositive() {
		return tax
	}
	var top *TaxBracket
	for i := range brackets {
		b := &brackets[i]
		if i > 0 && income.LessThanOrEqual(b.MinIncome) {
			break
		}
		upper := income
		if !b.Unbounded() && b.MaxIncome.LessThan(income) {
			upper = b.MaxIncome
		}
		tax = tax.Add(b.Rate.Mul(upper.Sub(b.MinIncome)))
		top = b
	}
	if top != nil {
		tax = tax.Add(top.FlatAmount)
	}
	return tax
}
