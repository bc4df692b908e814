package valuation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-hub/hub/store"
	"github.com/warp/points-hub/valuation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestSeries(t *testing.T) *valuation.Series {
	t.Helper()
	current := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	return valuation.NewSeries(store.NewMemory(), "USD", "$", valuation.SeriesOptions{Clock: clock})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rate(currency, value string) valuation.ExchangeRate {
	return valuation.ExchangeRate{Currency: currency, Rate: dec(value)}
}

// =============================================================================
// RECORDING
// =============================================================================

func TestRecordValueChange_FirstSnapshot(t *testing.T) {
	// GIVEN: An empty series
	// WHEN: The first value is recorded
	// THEN: The snapshot has no previous value and no change percentage
	series := newTestSeries(t)
	ctx := context.Background()

	require.NoError(t, series.RecordValueChange(ctx, dec("0.024"), 0))

	snap, err := series.CurrentValue(ctx)
	require.NoError(t, err)
	assert.True(t, snap.BaseValue.Equal(dec("0.024")))
	assert.Equal(t, "USD", snap.BaseCurrency)
	assert.True(t, snap.PreviousValue.IsZero())
	assert.True(t, snap.ChangePercentage.IsZero())
	assert.NotEmpty(t, snap.ID)
}

func TestRecordValueChange_TracksChangeAndTotalValue(t *testing.T) {
	// GIVEN: A series at 0.02 per point
	// WHEN: The value moves to 0.03 with a billion points outstanding
	// THEN: Change is +50% and the denormalized total value is 30,000,000
	series := newTestSeries(t)
	ctx := context.Background()

	require.NoError(t, series.RecordValueChange(ctx, dec("0.02"), 500_000_000))
	require.NoError(t, series.RecordValueChange(ctx, dec("0.03"), 1_000_000_000))

	snap, err := series.CurrentValue(ctx)
	require.NoError(t, err)
	assert.True(t, snap.BaseValue.Equal(dec("0.03")))
	assert.True(t, snap.PreviousValue.Equal(dec("0.02")))
	assert.True(t, snap.ChangePercentage.Equal(dec("50")), "got %s", snap.ChangePercentage)
	assert.Equal(t, int64(1_000_000_000), snap.TotalSupply)
	assert.True(t, snap.TotalValueInBaseCurrency.Equal(dec("30000000")), "got %s", snap.TotalValueInBaseCurrency)
}

func TestRecordValueChange_RejectsNonPositive(t *testing.T) {
	series := newTestSeries(t)
	err := series.RecordValueChange(context.Background(), dec("0"), 0)
	assert.ErrorIs(t, err, valuation.ErrInvalidRate)
}

func TestRecordValueChange_CarriesRatesForward(t *testing.T) {
	// GIVEN: A snapshot carrying exchange rates
	// WHEN: Only the base value changes
	// THEN: The rates survive on the new snapshot
	series := newTestSeries(t)
	ctx := context.Background()

	require.NoError(t, series.RecordValueChange(ctx, dec("0.02"), 100))
	_, err := series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{rate("EUR", "0.9")}, 100)
	require.NoError(t, err)

	require.NoError(t, series.RecordValueChange(ctx, dec("0.025"), 100))

	snap, err := series.CurrentValue(ctx)
	require.NoError(t, err)
	r, err := snap.Rate("EUR")
	require.NoError(t, err)
	assert.True(t, r.Equal(dec("0.9")))
}

// =============================================================================
// EXCHANGE RATES
// =============================================================================

func TestUpdateExchangeRates(t *testing.T) {
	series := newTestSeries(t)
	ctx := context.Background()

	// No base value yet: nothing to anchor the rates to.
	_, err := series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{rate("EUR", "0.9")}, 0)
	assert.ErrorIs(t, err, valuation.ErrNoValuation)

	require.NoError(t, series.RecordValueChange(ctx, dec("0.024"), 1000))

	// Invalid rates are rejected wholesale.
	_, err = series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{rate("EUR", "-1")}, 1000)
	assert.ErrorIs(t, err, valuation.ErrInvalidRate)
	_, err = series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{rate("", "1")}, 1000)
	assert.ErrorIs(t, err, valuation.ErrInvalidRate)

	snap, err := series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{
		rate("EUR", "0.9"),
		rate("GBP", "0.8"),
	}, 1000)
	require.NoError(t, err)
	// The base value carries forward unchanged.
	assert.True(t, snap.BaseValue.Equal(dec("0.024")))
	assert.Len(t, snap.ExchangeRates, 2)
	assert.False(t, snap.ExchangeRates[0].UpdatedAt.IsZero())
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func TestValueInCurrency(t *testing.T) {
	series := newTestSeries(t)
	ctx := context.Background()

	require.NoError(t, series.RecordValueChange(ctx, dec("0.024"), 1000))
	_, err := series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{rate("EUR", "0.5")}, 1000)
	require.NoError(t, err)

	// Base currency is the base value itself.
	v, err := series.ValueInCurrency(ctx, "USD")
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("0.024")))

	v, err = series.ValueInCurrency(ctx, "EUR")
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("0.012")))

	_, err = series.ValueInCurrency(ctx, "JPY")
	assert.ErrorIs(t, err, valuation.ErrExchangeRateNotFound)
	var missing *valuation.RateNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "JPY", missing.Currency)
}

func TestConvertAmount_RoutesThroughBase(t *testing.T) {
	// GIVEN: EUR at 0.9 and GBP at 0.8 per dollar
	// WHEN: 90 EUR is converted to GBP
	// THEN: 90 / 0.9 * 0.8 = 80
	series := newTestSeries(t)
	ctx := context.Background()

	require.NoError(t, series.RecordValueChange(ctx, dec("0.024"), 1000))
	_, err := series.UpdateExchangeRates(ctx, []valuation.ExchangeRate{
		rate("EUR", "0.9"),
		rate("GBP", "0.8"),
	}, 1000)
	require.NoError(t, err)

	got, err := series.ConvertAmount(ctx, dec("90"), "EUR", "GBP")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("80")), "got %s", got)

	// Same-currency conversion is the identity, even without a rate.
	got, err = series.ConvertAmount(ctx, dec("42"), "JPY", "JPY")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("42")))

	// Converting to the base currency needs only the source rate.
	got, err = series.ConvertAmount(ctx, dec("90"), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100")))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestCurrentValue_EmptySeries(t *testing.T) {
	series := newTestSeries(t)
	_, err := series.CurrentValue(context.Background())
	assert.ErrorIs(t, err, valuation.ErrNoValuation)
}

func TestHistoricalValues_NewestFirst(t *testing.T) {
	series := newTestSeries(t)
	ctx := context.Background()

	for _, v := range []string{"0.02", "0.025", "0.03"} {
		require.NoError(t, series.RecordValueChange(ctx, dec(v), 100))
	}

	snaps, err := series.HistoricalValues(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].BaseValue.Equal(dec("0.03")))
	assert.True(t, snaps[1].BaseValue.Equal(dec("0.025")))

	// A non-positive limit falls back to the default.
	snaps, err = series.HistoricalValues(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
}
