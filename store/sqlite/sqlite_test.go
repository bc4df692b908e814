package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/store/sqlite"
	"github.com/warp/points-hub/valuation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bootstrappedStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s := newTestStore(t)
	state := hub.NewLedgerState(time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.InitState(context.Background(), state))
	return s
}

func logEntry(id string, action hub.SupplyAction, amount int64, at time.Time) hub.SupplyLogEntry {
	return hub.SupplyLogEntry{
		ID:        id,
		Action:    action,
		Amount:    amount,
		Reason:    "test",
		ActorID:   "admin-1",
		CreatedAt: at,
	}
}

// =============================================================================
// LEDGER STATE
// =============================================================================

func TestState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Absent before bootstrap.
	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	boot := hub.NewLedgerState(now)
	cap := int64(5000)
	boot.MaxSupply = &cap
	boot.TotalSupply = 1000
	boot.ReserveSupply = 600
	boot.CirculatingSupply = 400
	require.NoError(t, s.InitState(ctx, boot))

	loaded, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(1000), loaded.TotalSupply)
	assert.Equal(t, int64(400), loaded.CirculatingSupply)
	assert.Equal(t, int64(600), loaded.ReserveSupply)
	require.NotNil(t, loaded.MaxSupply)
	assert.Equal(t, int64(5000), *loaded.MaxSupply)
	assert.True(t, loaded.ValuePerUnit.Equal(hub.DefaultValuePerUnit))
	assert.Equal(t, int64(0), loaded.Version)
	assert.True(t, loaded.LastAdjustment.Equal(now))
}

func TestInitState_FailsWhenStateExists(t *testing.T) {
	s := bootstrappedStore(t)
	err := s.InitState(context.Background(), hub.NewLedgerState(time.Now()))
	assert.ErrorIs(t, err, hub.ErrConcurrentModification)
}

func TestSaveState_OptimisticLocking(t *testing.T) {
	// GIVEN: Two copies of version 0
	// WHEN: Both try to save
	// THEN: The first wins and bumps the version; the second gets a conflict
	s := bootstrappedStore(t)
	ctx := context.Background()

	first, err := s.LoadState(ctx)
	require.NoError(t, err)
	second := first.Clone()

	first.TotalSupply = 100
	first.ReserveSupply = 100
	require.NoError(t, s.SaveState(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second.TotalSupply = 999
	err = s.SaveState(ctx, second)
	assert.ErrorIs(t, err, hub.ErrConcurrentModification)

	loaded, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), loaded.TotalSupply)
	assert.Equal(t, int64(1), loaded.Version)

	// Reload and retry succeeds.
	second = loaded.Clone()
	second.TotalSupply = 150
	second.ReserveSupply = 150
	require.NoError(t, s.SaveState(ctx, second))
	assert.Equal(t, int64(2), second.Version)
}

func TestSaveState_ClearsMaxSupply(t *testing.T) {
	s := bootstrappedStore(t)
	ctx := context.Background()

	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	cap := int64(1000)
	state.MaxSupply = &cap
	require.NoError(t, s.SaveState(ctx, state))

	state, err = s.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.MaxSupply)

	state.MaxSupply = nil
	require.NoError(t, s.SaveState(ctx, state))
	state, err = s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.MaxSupply)
}

// =============================================================================
// SUPPLY LOG
// =============================================================================

func TestLogs_AppendQueryCount(t *testing.T) {
	s := bootstrappedStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	entries := []hub.SupplyLogEntry{
		logEntry("log-1", hub.ActionIssue, 1000, base),
		logEntry("log-2", hub.ActionMoveToCirculation, 300, base.Add(time.Minute)),
		logEntry("log-3", hub.ActionMoveToCirculation, 200, base.Add(2*time.Minute)),
	}
	entries[0].Metadata = map[string]string{"batch": "launch"}
	entries[2].ActorID = "admin-2"
	entries[2].TransactionRef = "tx-42"
	for _, e := range entries {
		require.NoError(t, s.AppendLog(ctx, e))
	}

	// Unfiltered, newest first.
	got, err := s.QueryLogs(ctx, hub.LogFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "log-3", got[0].ID)
	assert.Equal(t, "log-1", got[2].ID)
	assert.Equal(t, map[string]string{"batch": "launch"}, got[2].Metadata)
	assert.Equal(t, "tx-42", got[0].TransactionRef)

	// Action filter.
	got, err = s.QueryLogs(ctx, hub.LogFilter{Action: hub.ActionMoveToCirculation})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Actor filter.
	got, err = s.QueryLogs(ctx, hub.LogFilter{ActorID: "admin-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "log-3", got[0].ID)

	// Date range.
	start := base.Add(30 * time.Second)
	end := base.Add(90 * time.Second)
	got, err = s.QueryLogs(ctx, hub.LogFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "log-2", got[0].ID)

	// Pagination and counting.
	got, err = s.QueryLogs(ctx, hub.LogFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "log-2", got[0].ID)

	count, err := s.CountLogs(ctx, hub.LogFilter{Action: hub.ActionMoveToCirculation, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_CommitsStateAndLogTogether(t *testing.T) {
	s := bootstrappedStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(hs hub.HubStore) error {
		state, err := hs.LoadState(ctx)
		if err != nil {
			return err
		}
		state.TotalSupply = 500
		state.ReserveSupply = 500
		if err := hs.SaveState(ctx, state); err != nil {
			return err
		}
		return hs.AppendLog(ctx, logEntry("log-tx", hub.ActionIssue, 500, time.Now()))
	})
	require.NoError(t, err)

	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), state.TotalSupply)
	count, err := s.CountLogs(ctx, hub.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes state and a log entry, then fails
	// WHEN: It returns an error
	// THEN: Neither write survives
	s := bootstrappedStore(t)
	ctx := context.Background()

	failure := errors.New("boom")
	err := s.WithTx(ctx, func(hs hub.HubStore) error {
		state, err := hs.LoadState(ctx)
		if err != nil {
			return err
		}
		state.TotalSupply = 500
		state.ReserveSupply = 500
		if err := hs.SaveState(ctx, state); err != nil {
			return err
		}
		if err := hs.AppendLog(ctx, logEntry("log-rollback", hub.ActionIssue, 500, time.Now())); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.TotalSupply)
	assert.Equal(t, int64(0), state.Version)
	count, err := s.CountLogs(ctx, hub.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// ACCOUNT BALANCES
// =============================================================================

func TestAccountBalances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sum, err := s.SumAccountBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	require.NoError(t, s.SetAccountBalance(ctx, "profile-1", 300))
	require.NoError(t, s.SetAccountBalance(ctx, "profile-2", 200))
	require.NoError(t, s.CreditAccount(ctx, "profile-1", 50))
	require.NoError(t, s.CreditAccount(ctx, "profile-3", 100))
	require.NoError(t, s.CreditAccount(ctx, "profile-2", -150))

	sum, err = s.SumAccountBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sum)
}

// =============================================================================
// VALUATION SNAPSHOTS
// =============================================================================

func TestSnapshots_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := valuation.Snapshot{
		ID:                       "snap-1",
		BaseValue:                decimal.RequireFromString("0.024"),
		BaseCurrency:             "USD",
		BaseSymbol:               "$",
		EffectiveDate:            base,
		TotalSupply:              1000,
		TotalValueInBaseCurrency: decimal.RequireFromString("24"),
	}
	second := valuation.Snapshot{
		ID:           "snap-2",
		BaseValue:    decimal.RequireFromString("0.03"),
		BaseCurrency: "USD",
		BaseSymbol:   "$",
		ExchangeRates: []valuation.ExchangeRate{
			{Currency: "EUR", Rate: decimal.RequireFromString("0.9"), Symbol: "€", UpdatedAt: base},
		},
		EffectiveDate:            base.Add(time.Hour),
		PreviousValue:            decimal.RequireFromString("0.024"),
		ChangePercentage:         decimal.RequireFromString("25"),
		TotalSupply:              1000,
		TotalValueInBaseCurrency: decimal.RequireFromString("30"),
	}
	require.NoError(t, s.AppendSnapshot(ctx, first))
	require.NoError(t, s.AppendSnapshot(ctx, second))

	latest, err = s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "snap-2", latest.ID)
	assert.True(t, latest.BaseValue.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, latest.PreviousValue.Equal(decimal.RequireFromString("0.024")))
	require.Len(t, latest.ExchangeRates, 1)
	assert.Equal(t, "EUR", latest.ExchangeRates[0].Currency)
	assert.True(t, latest.ExchangeRates[0].Rate.Equal(decimal.RequireFromString("0.9")))

	snaps, err := s.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-2", snaps[0].ID)

	snaps, err = s.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	// First snapshot round-trips its null previous value.
	assert.True(t, snaps[0].EffectiveDate.Equal(base.Add(time.Hour)))
	all, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.True(t, all[1].PreviousValue.IsZero())
}
