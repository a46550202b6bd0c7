/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll period manager via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the payroll
  package.

ENDPOINTS:
  Periods:
    GET    /api/periods                               List periods
    POST   /api/periods                               Open a period
    POST   /api/periods/next                          Open the next period
    GET    /api/periods/{id}                          Period with runs
    GET    /api/periods/{id}/totals                   Aggregate figures
    POST   /api/periods/{id}/process                  open → processing
    POST   /api/periods/{id}/runs/{employeeID}/approve  Approve one run
    POST   /api/periods/{id}/close                    processing → closed
    POST   /api/periods/{id}/pay                      closed → paid

  Wage ledger:
    GET    /api/employees/{id}/wages?year=YYYY        Year-to-date wages
    POST   /api/employees/{id}/wages/adjustments      Record outside wages

  Service:
    GET    /api/reference                             Loaded reference data
    GET    /api/health                                Liveness + store ping

ARCHITECTURE:
  Handler holds the dependencies:
  - Manager: every state change goes through it
  - Reference: company settings and rules loaded at startup

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error chain:
  - 400: Invalid input (malformed body, bad dates, invalid records)
  - 404: Period or run not found
  - 409: Rejected transition, stale version, concurrent wage commit
  - 422: Batch aborted on reference data (e.g. no applicable brackets)
  - 500: Anything else

SECURITY NOTE:
  No authentication or authorization. Run behind an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager   *payroll.Manager
	Reference *factory.Reference

	pinger Pinger
	log    zerolog.Logger
}

// NewHandler creates a handler. pinger may be nil.
func NewHandler(m *payroll.Manager, ref *factory.Reference, pinger Pinger, log zerolog.Logger) *Handler {
	return &Handler{Manager: m, Reference: ref, pinger: pinger, log: log}
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns all periods, oldest first, without runs.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Manager.ListPeriods(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list periods", err)
		return
	}
	dtos := make([]PeriodSummaryDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodSummary(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": dtos})
}

// OpenPeriod opens a period over an explicit date range.
// POST /api/periods
func (h *Handler) OpenPeriod(w http.ResponseWriter, r *http.Request) {
	var req OpenPeriodRequest
	if !decode(w, r, &req) {
		return
	}
	settings := h.Reference.Settings
	rng := generic.Period{Start: req.Start, End: req.End}

	payDate := rng.End.AddDays(settings.DefaultPayDateOffset)
	if req.PayDate != nil {
		payDate = *req.PayDate
	}
	currency := settings.Currency
	if req.Currency != "" {
		currency = req.Currency
	}

	p, err := h.Manager.OpenPeriod(r.Context(), rng, payDate, currency)
	if err != nil {
		h.fail(w, r, "Failed to open period", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// OpenNextPeriod opens the period following the latest one on the company's
// pay schedule.
// POST /api/periods/next
func (h *Handler) OpenNextPeriod(w http.ResponseWriter, r *http.Request) {
	var req OpenNextPeriodRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	p, err := h.Manager.OpenNextPeriod(r.Context(), h.Reference.Settings, req.First)
	if err != nil {
		h.fail(w, r, "Failed to open next period", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Manager.GetPeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	t, err := h.Manager.Totals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get totals", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// ProcessPeriod computes every employee's run and moves the period to
// processing. The body lists employees with hours or raw time entries.
// POST /api/periods/{id}/process
func (h *Handler) ProcessPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ProcessRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Manager.GetPeriod(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get period", err)
		return
	}
	inputs, err := factory.Inputs(req.Employees, p.Range(), h.Reference.Settings)
	if err != nil {
		h.fail(w, r, "Invalid employee input", err)
		return
	}

	res, err := h.Manager.Process(ctx, id, h.Reference.Settings, inputs)
	if err != nil {
		h.fail(w, r, "Failed to process period", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ApproveRun approves one employee's draft run.
// POST /api/periods/{id}/runs/{employeeID}/approve
func (h *Handler) ApproveRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Manager.ApproveRun(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, r, "Failed to approve run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ClosePeriod moves a fully approved period to closed.
// POST /api/periods/{id}/close
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Manager.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to close period", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// MarkPaid records a disbursement for every run and moves the period to
// paid.
// POST /api/periods/{id}/pay
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Manager.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.Disbursements)
	if err != nil {
		h.fail(w, r, "Failed to mark period paid", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// =============================================================================
// WAGE LEDGER HANDLERS
// =============================================================================

// GetYearToDate returns the capped wages counted for an employee in a year
// (default: the current one) and the ledger entries behind them.
// GET /api/employees/{id}/wages?year=2025
func (h *Handler) GetYearToDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID := chi.URLParam(r, "id")
	currency := h.Reference.Settings.Currency

	year := generic.Today().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = n
	}

	wages, err := h.Manager.YearToDateWages(ctx, employeeID, year, currency)
	if err != nil {
		h.fail(w, r, "Failed to read year-to-date wages", err)
		return
	}

	types := make([]payroll.TaxType, 0, len(wages))
	for tt := range wages {
		types = append(types, tt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	txs := []TransactionDTO{}
	for _, tt := range types {
		entries, err := h.Manager.Ledger().TaxYear(ctx, generic.EntityID(employeeID), tt.Accumulator(), year)
		if err != nil {
			h.fail(w, r, "Failed to load wage ledger", err)
			return
		}
		for _, tx := range entries {
			txs = append(txs, toTransactionDTO(tx))
		}
	}

	writeJSON(w, http.StatusOK, YearToDateDTO{
		EmployeeID:   employeeID,
		Year:         year,
		Currency:     currency,
		Wages:        wages,
		Transactions: txs,
	})
}

// AdjustWages records wages earned outside a payroll run.
// POST /api/employees/{id}/wages/adjustments
func (h *Handler) AdjustWages(w http.ResponseWriter, r *http.Request) {
	var req WageAdjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.Reference.Settings.Currency
	}
	tx, err := h.Manager.AdjustWages(r.Context(), payroll.WageAdjustment{
		EmployeeID:     chi.URLParam(r, "id"),
		Tax:            req.Tax,
		Amount:         req.Amount,
		EffectiveAt:    req.EffectiveAt,
		Currency:       currency,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.fail(w, r, "Failed to record wage adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request) {
	keys := h.Reference.Table.Keys()
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = k.String()
	}
	writeJSON(w, http.StatusOK, ReferenceDTO{
		Settings:    h.Reference.Settings,
		Withholding: h.Reference.Rules,
		Brackets:    sets,
		Years:       h.Reference.Table.Years(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps the payroll error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var ba *payroll.BatchAbortedError
	switch {
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	case payroll.IsConflict(err):
		return http.StatusConflict
	case errors.As(err, &ba) && errors.Is(err, payroll.ErrNoApplicableBracket):
		return http.StatusUnprocessableEntity
	case payroll.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side errors and writes the mapped status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
