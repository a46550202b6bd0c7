/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that are
  already shaped for clients (PayrollPeriod, PayrollRun, PeriodTotals) are
  returned as-is; the types here cover request bodies and the few responses
  that need a different shape.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal strings ("1662.30") in both directions. Requests may
  also send JSON numbers; they are parsed without going through float64.

VALIDATION:
  Validation is done in handlers and the payroll package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/batch.go: BatchEmployee, the per-employee input shape
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PERIODS
// =============================================================================

// OpenPeriodRequest opens an explicit date range. PayDate defaults to End
// plus the company's pay-date offset; Currency defaults to the company's.
type OpenPeriodRequest struct {
	Start    generic.TimePoint  `json:"start"`
	End      generic.TimePoint  `json:"end"`
	PayDate  *generic.TimePoint `json:"pay_date,omitempty"`
	Currency generic.Currency   `json:"currency,omitempty"`
}

// OpenNextPeriodRequest opens the period after the latest one. First is
// only used when no period exists yet.
type OpenNextPeriodRequest struct {
	First generic.TimePoint `json:"first"`
}

// PeriodSummaryDTO is a period without its runs, for listings.
type PeriodSummaryDTO struct {
	ID        string               `json:"id"`
	Start     generic.TimePoint    `json:"start"`
	End       generic.TimePoint    `json:"end"`
	PayDate   generic.TimePoint    `json:"pay_date"`
	Status    payroll.PeriodStatus `json:"status"`
	Currency  generic.Currency     `json:"currency"`
	Version   int                  `json:"version"`
	UpdatedAt generic.TimePoint    `json:"updated_at"`
}

func toPeriodSummary(p payroll.PayrollPeriod) PeriodSummaryDTO {
	return PeriodSummaryDTO{
		ID:        p.ID,
		Start:     p.Start,
		End:       p.End,
		PayDate:   p.PayDate,
		Status:    p.Status,
		Currency:  p.Currency,
		Version:   p.Version,
		UpdatedAt: p.UpdatedAt,
	}
}

// ProcessRequest carries the collaborator data for one period.
type ProcessRequest struct {
	Employees []factory.BatchEmployee `json:"employees"`
}

// MarkPaidRequest maps employee IDs to disbursement confirmations.
type MarkPaidRequest struct {
	Disbursements map[string]payroll.Disbursement `json:"disbursements"`
}

// =============================================================================
// WAGE LEDGER
// =============================================================================

// WageAdjustmentRequest records wages counted outside a payroll run.
type WageAdjustmentRequest struct {
	Tax            payroll.TaxType   `json:"tax"`
	Amount         decimal.Decimal   `json:"amount"`
	EffectiveAt    generic.TimePoint `json:"effective_at"`
	Currency       generic.Currency  `json:"currency,omitempty"`
	Reason         string            `json:"reason"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// YearToDateDTO reports the wages counted toward each capped tax and the
// ledger entries behind them.
type YearToDateDTO struct {
	EmployeeID   string                              `json:"employee_id"`
	Year         int                                 `json:"year"`
	Currency     generic.Currency                    `json:"currency"`
	Wages        map[payroll.TaxType]decimal.Decimal `json:"wages"`
	Transactions []TransactionDTO                    `json:"transactions"`
}

// TransactionDTO represents a wage ledger entry.
type TransactionDTO struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entity_id"`
	AccumulatorID string          `json:"accumulator_id"`
	EffectiveAt   string          `json:"effective_at"`
	Delta         decimal.Decimal `json:"delta"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		EntityID:      string(tx.EntityID),
		AccumulatorID: string(tx.AccumulatorID),
		EffectiveAt:   tx.EffectiveAt.String(),
		Delta:         tx.Delta.Value,
		Currency:      string(tx.Delta.Currency),
		Type:          string(tx.Type),
		ReferenceID:   tx.ReferenceID,
		Reason:        tx.Reason,
		CreatedBy:     tx.CreatedBy,
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ReferenceDTO describes the loaded reference data.
type ReferenceDTO struct {
	Settings    payroll.CompanySettings  `json:"settings"`
	Withholding payroll.WithholdingRules `json:"withholding"`
	Brackets    []string                 `json:"bracket_sets"`
	Years       []int                    `json:"years"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
