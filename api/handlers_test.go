/*
handlers_test.go - HTTP tests for the hub admin API

Covers the admin gate, the response envelope, error-code mapping and the
happy paths of the ledger, reconciliation and valuation endpoints, running
against the in-memory store.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-hub/api"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/hub/store"
	"github.com/warp/points-hub/valuation"
)

const testToken = "test-admin-token"

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	router http.Handler
	mem    *store.Memory
	hub    *hub.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	series := valuation.NewSeries(mem, "USD", "$", valuation.SeriesOptions{})
	svc := hub.NewService(mem, mem, hub.ServiceOptions{Valuation: series})
	require.NoError(t, svc.Initialize(context.Background()))

	handler := api.NewHandler(svc, series, zerolog.Nop())
	router := api.NewRouter(handler, api.RouterOptions{AdminToken: testToken})
	return &testServer{router: router, mem: mem, hub: svc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set(api.HeaderAdminID, "admin-1")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, "expected success envelope, got %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// =============================================================================
// ADMIN GATE
// =============================================================================

func TestHubRoutes_RequireAdminToken(t *testing.T) {
	// GIVEN: A router gated by a bearer token
	// WHEN: A request arrives without (or with the wrong) token
	// THEN: 403 with a FORBIDDEN envelope; nothing reaches the service
	ts := newTestServer(t)

	for _, auth := range []string{"", "Bearer wrong-token"} {
		req := httptest.NewRequest(http.MethodGet, "/hub", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "FORBIDDEN", env.Code)
	}
}

func TestHealthz_IsUngated(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

func TestGetHub(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/hub", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state api.StateDTO
	decodeData(t, rec, &state)
	assert.Equal(t, int64(0), state.TotalSupply)
	assert.Equal(t, "0.024", state.ValuePerMyPt)
	assert.Nil(t, state.MaxSupply)
}

func TestIssueEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{
		Amount: 1000, Reason: "initial mint",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state api.StateDTO
	decodeData(t, rec, &state)
	assert.Equal(t, int64(1000), state.TotalSupply)
	assert.Equal(t, int64(1000), state.ReserveSupply)

	// The actor from X-Admin-Id lands on the log entry.
	rec = ts.do(t, http.MethodGet, "/hub/logs?action=ISSUE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page api.LogPageDTO
	decodeData(t, rec, &page)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, "admin-1", page.Logs[0].ActorID)
	assert.Equal(t, int64(1000), page.Logs[0].BalancesAfter.TotalSupply)
}

func TestIssueEndpoint_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{Amount: -5, Reason: "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "INVALID_AMOUNT", env.Code)

	rec = ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{Amount: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeEnvelope(t, rec).Code)
}

func TestCirculateEndpoint_InsufficientReserve(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/hub/circulate", api.SupplyRequest{
		Amount: 100, Reason: "purchase",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_RESERVE", decodeEnvelope(t, rec).Code)
}

func TestMaxSupplyEndpoint(t *testing.T) {
	ts := newTestServer(t)

	cap := int64(1_000_000)
	rec := ts.do(t, http.MethodPost, "/hub/max-supply", api.MaxSupplyRequest{
		MaxSupply: &cap, Reason: "launch cap",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state api.StateDTO
	decodeData(t, rec, &state)
	require.NotNil(t, state.MaxSupply)
	assert.Equal(t, int64(1_000_000), *state.MaxSupply)

	// Issuing past the cap maps to MAX_SUPPLY_EXCEEDED.
	rec = ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{
		Amount: 2_000_000, Reason: "too much",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MAX_SUPPLY_EXCEEDED", decodeEnvelope(t, rec).Code)
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

func TestVerifyAndReconcileEndpoints(t *testing.T) {
	// GIVEN: A ledger drifted 200 points below the account balances
	// WHEN: /hub/verify and /hub/reconcile run
	// THEN: The drift is reported, then corrected
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{Amount: 1000, Reason: "mint"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/hub/circulate", api.SupplyRequest{Amount: 500, Reason: "purchases"})
	require.Equal(t, http.StatusOK, rec.Code)
	ts.mem.SetAccountBalance("profile-1", 700)

	rec = ts.do(t, http.MethodGet, "/hub/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report api.ConsistencyReportDTO
	decodeData(t, rec, &report)
	assert.False(t, report.IsConsistent)
	assert.Equal(t, int64(200), report.Difference)

	// Reason is mandatory.
	rec = ts.do(t, http.MethodPost, "/hub/reconcile", api.ReconcileRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeEnvelope(t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/hub/reconcile", api.ReconcileRequest{Reason: "audit"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result api.ReconcileResultDTO
	decodeData(t, rec, &result)
	assert.Equal(t, "issued_to_circulation", result.Action)
	assert.Equal(t, int64(200), result.Difference)
	assert.NotEmpty(t, result.LogEntryID)

	rec = ts.do(t, http.MethodGet, "/hub/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &report)
	assert.True(t, report.IsConsistent)
}

// =============================================================================
// VALUATION ENDPOINTS
// =============================================================================

func TestValueEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/hub/issue", api.SupplyRequest{Amount: 1000, Reason: "mint"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Update the per-point value; a snapshot is recorded.
	rec = ts.do(t, http.MethodPost, "/hub/value", map[string]any{"value": "0.03", "reason": "repricing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state api.StateDTO
	decodeData(t, rec, &state)
	assert.Equal(t, "0.03", state.ValuePerMyPt)

	rec = ts.do(t, http.MethodPost, "/hub/value", map[string]any{"value": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VALUE", decodeEnvelope(t, rec).Code)

	// Exchange rates.
	rec = ts.do(t, http.MethodPost, "/hub/value/rates", api.RatesRequest{Rates: []api.RateRequest{
		{Currency: "EUR", Rate: mustDecimal("0.9"), Symbol: "€"},
		{Currency: "GBP", Rate: mustDecimal("0.8")},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap api.SnapshotDTO
	decodeData(t, rec, &snap)
	assert.Equal(t, "0.03", snap.ValuePerMyPt)
	assert.Len(t, snap.ExchangeRates, 2)

	// History is newest first.
	rec = ts.do(t, http.MethodGet, "/hub/value/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []api.SnapshotDTO
	decodeData(t, rec, &history)
	require.Len(t, history, 2)
	assert.Len(t, history[0].ExchangeRates, 2)

	// Conversion routes through the base currency.
	rec = ts.do(t, http.MethodGet, "/hub/value/convert?amount=90&from=EUR&to=GBP", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv api.ConversionDTO
	decodeData(t, rec, &conv)
	assert.True(t, mustDecimal(conv.Converted).Equal(mustDecimal("80")), "got %s", conv.Converted)

	// A missing rate is a 404 with the stable code.
	rec = ts.do(t, http.MethodGet, "/hub/value/convert?amount=90&from=JPY&to=USD", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "EXCHANGE_RATE_NOT_FOUND", decodeEnvelope(t, rec).Code)
}
