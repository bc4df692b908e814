/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for the admin API. These types decouple the
  internal domain model from the external contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

ENVELOPE:
  Every response is wrapped:
    success: { "success": true,  "data": ... }
    failure: { "success": false, "message": "...", "code": "..." }
  Codes are the stable machine-readable kinds from hub.ErrorCode.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONETARY FIELDS:
  Per-point values, rates and converted amounts are serialized as JSON
  strings (decimal.Decimal), never floats.

SEE ALSO:
  - handlers.go: Uses these types
  - hub/errors.go: Error codes
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/valuation"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// writeJSON writes a success envelope.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError writes a failure envelope with a stable error code.
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message, Code: code})
}

// =============================================================================
// LEDGER STATE
// =============================================================================

// StateDTO is the ledger state as seen by clients.
type StateDTO struct {
	TotalSupply       int64  `json:"totalSupply"`
	CirculatingSupply int64  `json:"circulatingSupply"`
	ReserveSupply     int64  `json:"reserveSupply"`
	MaxSupply         *int64 `json:"maxSupply"`
	ValuePerMyPt      string `json:"valuePerMyPt"`
	Version           int64  `json:"version"`
	LastAdjustment    string `json:"lastAdjustment"`
	UpdatedAt         string `json:"updatedAt"`
}

func newStateDTO(s *hub.LedgerState) StateDTO {
	return StateDTO{
		TotalSupply:       s.TotalSupply,
		CirculatingSupply: s.CirculatingSupply,
		ReserveSupply:     s.ReserveSupply,
		MaxSupply:         s.MaxSupply,
		ValuePerMyPt:      s.ValuePerUnit.String(),
		Version:           s.Version,
		LastAdjustment:    s.LastAdjustment.Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// MUTATION REQUESTS
// =============================================================================

// SupplyRequest is the body of issue/burn/circulate/reserve calls.
type SupplyRequest struct {
	Amount         int64             `json:"amount"`
	Reason         string            `json:"reason"`
	AdminID        string            `json:"adminId,omitempty"`
	TransactionRef string            `json:"transactionRef,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// MaxSupplyRequest sets or clears the supply cap. A null maxSupply removes it.
type MaxSupplyRequest struct {
	MaxSupply *int64 `json:"maxSupply"`
	Reason    string `json:"reason"`
	AdminID   string `json:"adminId,omitempty"`
}

// ValueRequest updates the per-point value. Accepts a JSON number or string.
type ValueRequest struct {
	Value   decimal.Decimal `json:"value"`
	Reason  string          `json:"reason,omitempty"`
	AdminID string          `json:"adminId,omitempty"`
}

// ReconcileRequest triggers drift correction.
type ReconcileRequest struct {
	Reason  string `json:"reason"`
	AdminID string `json:"adminId,omitempty"`
}

// RatesRequest replaces the exchange rate list.
type RatesRequest struct {
	Rates []RateRequest `json:"rates"`
}

// RateRequest is one currency rate against the base currency.
type RateRequest struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Symbol   string          `json:"symbol,omitempty"`
}

// =============================================================================
// SUPPLY LOG
// =============================================================================

// BalancesDTO is the three-pool snapshot after a mutation.
type BalancesDTO struct {
	TotalSupply       int64 `json:"totalSupply"`
	CirculatingSupply int64 `json:"circulatingSupply"`
	ReserveSupply     int64 `json:"reserveSupply"`
}

// LogEntryDTO is one supply log entry.
type LogEntryDTO struct {
	ID             string            `json:"id"`
	Action         string            `json:"action"`
	Amount         int64             `json:"amount"`
	Reason         string            `json:"reason"`
	ActorID        string            `json:"actorId,omitempty"`
	TransactionRef string            `json:"transactionRef,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	BalancesAfter  BalancesDTO       `json:"balancesAfter"`
	CreatedAt      string            `json:"createdAt"`
}

func newLogEntryDTO(e hub.SupplyLogEntry) LogEntryDTO {
	return LogEntryDTO{
		ID:             e.ID,
		Action:         string(e.Action),
		Amount:         e.Amount,
		Reason:         e.Reason,
		ActorID:        e.ActorID,
		TransactionRef: e.TransactionRef,
		Metadata:       e.Metadata,
		BalancesAfter: BalancesDTO{
			TotalSupply:       e.BalancesAfter.TotalSupply,
			CirculatingSupply: e.BalancesAfter.CirculatingSupply,
			ReserveSupply:     e.BalancesAfter.ReserveSupply,
		},
		CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
	}
}

// LogPageDTO is one page of supply log history, newest first.
type LogPageDTO struct {
	Logs       []LogEntryDTO `json:"logs"`
	Pagination PaginationDTO `json:"pagination"`
}

// PaginationDTO describes the page window of a list response.
type PaginationDTO struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newLogPageDTO(p *hub.LogPage) LogPageDTO {
	logs := make([]LogEntryDTO, len(p.Entries))
	for i, e := range p.Entries {
		logs[i] = newLogEntryDTO(e)
	}
	return LogPageDTO{
		Logs:       logs,
		Pagination: PaginationDTO{Total: p.Total, Limit: p.Limit, Offset: p.Offset},
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ConsistencyReportDTO is the result of a verification run.
type ConsistencyReportDTO struct {
	HubCirculatingSupply    int64  `json:"hubCirculatingSupply"`
	ActualCirculatingSupply int64  `json:"actualCirculatingSupply"`
	Difference              int64  `json:"difference"`
	IsConsistent            bool   `json:"isConsistent"`
	CheckedAt               string `json:"checkedAt"`
}

func newConsistencyReportDTO(r *hub.ConsistencyReport) ConsistencyReportDTO {
	return ConsistencyReportDTO{
		HubCirculatingSupply:    r.HubCirculatingSupply,
		ActualCirculatingSupply: r.ActualCirculatingSupply,
		Difference:              r.Difference,
		IsConsistent:            r.IsConsistent,
		CheckedAt:               r.CheckedAt.Format(time.RFC3339),
	}
}

// ReconcileResultDTO is the outcome of a reconciliation run.
type ReconcileResultDTO struct {
	PreviousCirculating int64  `json:"previousCirculating"`
	ActualCirculating   int64  `json:"actualCirculating"`
	Difference          int64  `json:"difference"`
	Action              string `json:"action"`
	LogEntryID          string `json:"logEntryId,omitempty"`
}

func newReconcileResultDTO(r *hub.ReconcileResult) ReconcileResultDTO {
	return ReconcileResultDTO{
		PreviousCirculating: r.PreviousCirculating,
		ActualCirculating:   r.ActualCirculating,
		Difference:          r.Difference,
		Action:              string(r.Action),
		LogEntryID:          r.LogEntryID,
	}
}

// =============================================================================
// VALUATION
// =============================================================================

// RateDTO is one exchange rate in responses.
type RateDTO struct {
	Currency  string `json:"currency"`
	Rate      string `json:"rate"`
	Symbol    string `json:"symbol,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// SnapshotDTO is one valuation snapshot.
type SnapshotDTO struct {
	ID               string    `json:"id"`
	ValuePerMyPt     string    `json:"valuePerMyPt"`
	BaseCurrency     string    `json:"baseCurrency"`
	BaseSymbol       string    `json:"baseSymbol"`
	ExchangeRates    []RateDTO `json:"exchangeRates,omitempty"`
	EffectiveDate    string    `json:"effectiveDate"`
	PreviousValue    string    `json:"previousValue,omitempty"`
	ChangePercentage string    `json:"changePercentage,omitempty"`
	TotalSupply      int64     `json:"totalSupply"`
	TotalValue       string    `json:"totalValue"`
}

func newSnapshotDTO(s valuation.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		ID:            s.ID,
		ValuePerMyPt:  s.BaseValue.String(),
		BaseCurrency:  s.BaseCurrency,
		BaseSymbol:    s.BaseSymbol,
		EffectiveDate: s.EffectiveDate.Format(time.RFC3339Nano),
		TotalSupply:   s.TotalSupply,
		TotalValue:    s.TotalValueInBaseCurrency.String(),
	}
	if !s.PreviousValue.IsZero() {
		dto.PreviousValue = s.PreviousValue.String()
		dto.ChangePercentage = s.ChangePercentage.String()
	}
	for _, r := range s.ExchangeRates {
		dto.ExchangeRates = append(dto.ExchangeRates, RateDTO{
			Currency:  r.Currency,
			Rate:      r.Rate.String(),
			Symbol:    r.Symbol,
			UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
		})
	}
	return dto
}

// ConversionDTO is the result of a currency conversion.
type ConversionDTO struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Converted string `json:"converted"`
}
