/*
handlers.go - HTTP handlers for the hub admin API

PURPOSE:
  Exposes the supply ledger and valuation series over REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Ledger:
    GET    /hub               Current ledger state
    POST   /hub/issue         Mint points into reserve
    POST   /hub/burn          Destroy reserve points
    POST   /hub/circulate     Move reserve -> circulation
    POST   /hub/reserve       Move circulation -> reserve
    POST   /hub/max-supply    Set or clear the supply cap
    GET    /hub/logs          Supply log history (paginated)

  Reconciliation:
    GET    /hub/verify        Compare ledger vs account balances
    POST   /hub/reconcile     Correct drift (requires reason + actor)

  Valuation:
    POST   /hub/value           Update per-point value
    GET    /hub/value/history   Valuation snapshots, newest first
    POST   /hub/value/rates     Replace exchange rates
    GET    /hub/value/convert   Convert an amount between currencies

ERROR HANDLING:
  Domain errors are classified by hub.IsClientError / errors.Is and mapped:
  - 400: validation and supply-constraint errors
  - 403: failed admin gate (middleware.go)
  - 404: missing exchange rate / no valuation yet
  - 409: optimistic-lock conflict that exhausted its retries
  - 500: internal errors, consistency faults
  - 503: storage unavailable
  The body carries the stable code from hub.ErrorCode.

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
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/valuation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Hub       *hub.Service
	Valuation *valuation.Series

	log zerolog.Logger
}

// NewHandler creates a handler around the hub service and valuation series.
func NewHandler(hubService *hub.Service, series *valuation.Series, log zerolog.Logger) *Handler {
	return &Handler{Hub: hubService, Valuation: series, log: log}
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetHub returns the current ledger state.
func (h *Handler) GetHub(w http.ResponseWriter, r *http.Request) {
	state, err := h.Hub.State(r.Context())
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(state))
}

// Issue mints new points into the reserve.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	h.supplyOp(w, r, h.Hub.Issue)
}

// Burn destroys points held in reserve.
func (h *Handler) Burn(w http.ResponseWriter, r *http.Request) {
	h.supplyOp(w, r, h.Hub.Burn)
}

// Circulate moves points from reserve into circulation.
func (h *Handler) Circulate(w http.ResponseWriter, r *http.Request) {
	h.supplyOp(w, r, h.Hub.MoveToCirculation)
}

// Reserve moves points from circulation back into reserve.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.supplyOp(w, r, h.Hub.MoveToReserve)
}

// supplyFn is the shared shape of Issue/Burn/MoveToCirculation/MoveToReserve.
type supplyFn func(ctx context.Context, amount int64, reason string, op hub.OpContext) (*hub.LedgerState, error)

func (h *Handler) supplyOp(w http.ResponseWriter, r *http.Request, fn supplyFn) {
	var req SupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	op := hub.OpContext{
		ActorID:        ActorID(r, req.AdminID),
		Metadata:       req.Metadata,
		TransactionRef: req.TransactionRef,
	}
	state, err := fn(r.Context(), req.Amount, req.Reason, op)
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(state))
}

// =============================================================================
// MAX SUPPLY / VALUE
// =============================================================================

// SetMaxSupply sets or clears the hard supply cap.
func (h *Handler) SetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req MaxSupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	state, err := h.Hub.AdjustMaxSupply(r.Context(), req.MaxSupply, req.Reason, ActorID(r, req.AdminID))
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(state))
}

// SetValue updates the per-point value and records a valuation snapshot.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	op := hub.OpContext{ActorID: ActorID(r, req.AdminID)}
	state, err := h.Hub.UpdateValuePerUnit(r.Context(), req.Value, req.Reason, op)
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(state))
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Verify compares the ledger against the account balance store.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.Hub.VerifySystemConsistency(r.Context())
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newConsistencyReportDTO(report))
}

// Reconcile corrects drift between the ledger and the account balances.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	result, err := h.Hub.ReconcileSupply(r.Context(), req.Reason, ActorID(r, req.AdminID))
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReconcileResultDTO(result))
}

// =============================================================================
// SUPPLY LOG
// =============================================================================

// GetLogs returns one page of supply log history.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := hub.LogFilter{
		Action:  hub.SupplyAction(q.Get("action")),
		ActorID: q.Get("adminId"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if t, err := time.Parse(time.RFC3339, q.Get("startDate")); err == nil {
		filter.StartDate = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("endDate")); err == nil {
		filter.EndDate = &t
	}

	page, err := h.Hub.Logs(r.Context(), filter)
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLogPageDTO(page))
}

// =============================================================================
// VALUATION HANDLERS
// =============================================================================

// GetValueHistory returns valuation snapshots, newest first.
func (h *Handler) GetValueHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	snaps, err := h.Valuation.HistoricalValues(r.Context(), limit)
	if err != nil {
		h.writeValuationError(w, err)
		return
	}
	dtos := make([]SnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = newSnapshotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetRates replaces the exchange rate list on a new valuation snapshot.
func (h *Handler) SetRates(w http.ResponseWriter, r *http.Request) {
	var req RatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if len(req.Rates) == 0 {
		writeError(w, http.StatusBadRequest, "at least one rate is required", "INVALID_REQUEST")
		return
	}

	state, err := h.Hub.State(r.Context())
	if err != nil {
		h.writeHubError(w, err)
		return
	}
	rates := make([]valuation.ExchangeRate, len(req.Rates))
	for i, rr := range req.Rates {
		rates[i] = valuation.ExchangeRate{Currency: rr.Currency, Rate: rr.Rate, Symbol: rr.Symbol}
	}
	snap, err := h.Valuation.UpdateExchangeRates(r.Context(), rates, state.TotalSupply)
	if err != nil {
		h.writeValuationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotDTO(*snap))
}

// Convert converts a monetary amount between two currencies.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", "INVALID_REQUEST")
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to currencies are required", "INVALID_REQUEST")
		return
	}

	converted, err := h.Valuation.ConvertAmount(r.Context(), amount, from, to)
	if err != nil {
		h.writeValuationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConversionDTO{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Converted: converted.String(),
	})
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func (h *Handler) writeHubError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case hub.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, hub.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, hub.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		h.log.Error().Err(err).Msg("hub operation failed")
	}
	writeError(w, status, err.Error(), hub.ErrorCode(err))
}

func (h *Handler) writeValuationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, valuation.ErrExchangeRateNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "EXCHANGE_RATE_NOT_FOUND")
	case errors.Is(err, valuation.ErrNoValuation):
		writeError(w, http.StatusNotFound, err.Error(), "NO_VALUATION")
	case errors.Is(err, valuation.ErrInvalidRate):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
	default:
		h.log.Error().Err(err).Msg("valuation operation failed")
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
