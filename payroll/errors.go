/*
errors.go - Payroll error taxonomy

PURPOSE:
  Every failure the engine can report, grouped by what the caller should do
  about it.

CATEGORIES:
  1. Fatal-to-run: the employee is skipped, the batch continues
       EmployeeIneligibleError
  2. Fatal-to-batch: the period transition aborts, state is unchanged
       NoApplicableBracketError, InvalidPayRateError, BatchAbortedError
  3. Warning: the run is produced and flagged for review
       DeductionShortfallWarning
  4. Transition guards: rejected without mutation
       UnapprovedRunsError, MissingDisbursementError, InvalidTransitionError

USAGE:
    var nab *payroll.NoApplicableBracketError
    if errors.As(err, &nab) {
        log.Printf("missing rules for %s", nab.Key)
    }
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNoApplicableBracket = errors.New("no applicable tax brackets")
	ErrInvalidPayRate      = errors.New("invalid pay rate")
	ErrEmployeeIneligible  = errors.New("employee not eligible for period")
	ErrUnapprovedRuns      = errors.New("period has unapproved runs")
	ErrInvalidTransition   = errors.New("invalid period transition")
	ErrMissingDisbursement = errors.New("missing disbursement confirmation")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBatchAborted        = errors.New("payroll batch aborted")
	ErrPeriodNotFound      = fmt.Errorf("payroll period: %w", generic.ErrEntityNotFound)
	ErrRunNotFound         = fmt.Errorf("payroll run: %w", generic.ErrEntityNotFound)
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NoApplicableBracketError names the bracket set that could not be found.
type NoApplicableBracketError struct {
	Key BracketKey
}

func (e *NoApplicableBracketError) Error() string {
	return fmt.Sprintf("no active tax brackets for %s", e.Key)
}

func (e *NoApplicableBracketError) Unwrap() error { return ErrNoApplicableBracket }

type InvalidPayRateError struct {
	EmployeeID string
	Rate       decimal.Decimal
}

func (e *InvalidPayRateError) Error() string {
	return fmt.Sprintf("employee %s: invalid pay rate %s", e.EmployeeID, e.Rate)
}

func (e *InvalidPayRateError) Unwrap() error { return ErrInvalidPayRate }

type EmployeeIneligibleError struct {
	EmployeeID string
	Status     EmploymentStatus
	Period     generic.Period
	Reason     string
}

func (e *EmployeeIneligibleError) Error() string {
	return fmt.Sprintf("employee %s (%s) not eligible for %s: %s", e.EmployeeID, e.Status, e.Period, e.Reason)
}

func (e *EmployeeIneligibleError) Unwrap() error { return ErrEmployeeIneligible }

// InvalidInputError reports a malformed field in input records.
type InvalidInputError struct {
	EmployeeID string
	Field      string
	Reason     string
}

func (e *InvalidInputError) Error() string {
	if e.EmployeeID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("employee %s: invalid %s: %s", e.EmployeeID, e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// DeductionShortfallWarning records an amount that could not be fully
// withheld because net pay reached zero. Type is set for a deduction row,
// Tax for a tax row that pay did not cover. It is not an error: the run is
// still produced.
type DeductionShortfallWarning struct {
	EmployeeID string          `json:"employee_id"`
	Type       DeductionType   `json:"type,omitempty"`
	Tax        TaxType         `json:"tax,omitempty"`
	Requested  decimal.Decimal `json:"requested"`
	Applied    decimal.Decimal `json:"applied"`
	Shortfall  decimal.Decimal `json:"shortfall"`
}

func (w DeductionShortfallWarning) String() string {
	what := string(w.Type) + " deduction"
	if w.Tax != "" {
		what = string(w.Tax) + " tax"
	}
	return fmt.Sprintf("%s short by %s (requested %s, applied %s)",
		what, w.Shortfall.StringFixed(2), w.Requested.StringFixed(2), w.Applied.StringFixed(2))
}

type UnapprovedRunsError struct {
	PeriodID    string
	EmployeeIDs []string
}

func (e *UnapprovedRunsError) Error() string {
	return fmt.Sprintf("period %s: runs not approved for employees [%s]", e.PeriodID, strings.Join(e.EmployeeIDs, ", "))
}

func (e *UnapprovedRunsError) Unwrap() error { return ErrUnapprovedRuns }

type MissingDisbursementError struct {
	PeriodID    string
	EmployeeIDs []string
}

func (e *MissingDisbursementError) Error() string {
	return fmt.Sprintf("period %s: no disbursement confirmation for employees [%s]", e.PeriodID, strings.Join(e.EmployeeIDs, ", "))
}

func (e *MissingDisbursementError) Unwrap() error { return ErrMissingDisbursement }

type InvalidTransitionError struct {
	PeriodID string
	From     PeriodStatus
	To       PeriodStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("period %s: cannot move from %s to %s", e.PeriodID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// BatchAbortedError wraps the fatal error that stopped Process. The period
// is left in its prior state.
type BatchAbortedError struct {
	PeriodID   string
	EmployeeID string
	Cause      error
}

func (e *BatchAbortedError) Error() string {
	if e.EmployeeID == "" {
		return fmt.Sprintf("period %s: batch aborted: %v", e.PeriodID, e.Cause)
	}
	return fmt.Sprintf("period %s: batch aborted at employee %s: %v", e.PeriodID, e.EmployeeID, e.Cause)
}

func (e *BatchAbortedError) Unwrap() []error { return []error{ErrBatchAborted, e.Cause} }

// EmployeeFailure is one line of a batch summary.
type EmployeeFailure struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatalToBatch returns true if err must abort a whole period transition.
func IsFatalToBatch(err error) bool {
	return errors.Is(err, ErrNoApplicableBracket) ||
		errors.Is(err, ErrInvalidPayRate) ||
		errors.Is(err, ErrInvalidInput)
}

// IsClientError returns true if the error is due to the request rather than
// the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPayRate) ||
		generic.IsClientError(err)
}

// IsConflict returns true if the error is a rejected state transition.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUnapprovedRuns) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrMissingDisbursement) ||
		errors.Is(err, generic.ErrConcurrentModification)
}

func IsNotFound(err error) bool {
	return generic.IsNotFound(err)
}
