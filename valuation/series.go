/*
series.go - The valuation series: recording, queries, conversions

RECORDING:
  RecordValueChange appends a snapshot when the base value changes (called
  by the hub on UpdateValuePerUnit); UpdateExchangeRates appends one when
  rates change. Both carry forward whatever the new snapshot does not
  replace (rates on a value change, base value on a rate change).

QUERIES:
  CurrentValue:     snapshot with the latest effective date
  HistoricalValues: most recent N snapshots, descending

CONVERSIONS:
  ValueInCurrency and ConvertAmount route through the base currency using
  the rate convention documented in types.go. A missing rate fails with
  ErrExchangeRateNotFound; nothing is ever guessed.
*/
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit is the history page size when none is requested.
const DefaultHistoryLimit = 30

var oneHundred = decimal.NewFromInt(100)

// Series is the valuation time series for one point currency.
type Series struct {
	store        SnapshotStore
	baseCurrency string
	baseSymbol   string
	log          zerolog.Logger
	now          func() time.Time
}

// SeriesOptions holds the optional collaborators of a Series.
type SeriesOptions struct {
	Logger *zerolog.Logger
	Clock  func() time.Time
}

// NewSeries creates a valuation series denominated in baseCurrency.
func NewSeries(store SnapshotStore, baseCurrency, baseSymbol string, opts SeriesOptions) *Series {
	s := &Series{
		store:        store,
		baseCurrency: baseCurrency,
		baseSymbol:   baseSymbol,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if opts.Clock != nil {
		s.now = opts.Clock
	}
	return s
}

// =============================================================================
// QUERIES
// =============================================================================

// CurrentValue returns the snapshot with the latest effective date.
func (s *Series) CurrentValue(ctx context.Context) (*Snapshot, error) {
	snap, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap == nil {
		return nil, ErrNoValuation
	}
	return snap, nil
}

// HistoricalValues returns the most recent limit snapshots, newest first.
func (s *Series) HistoricalValues(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	snaps, err := s.store.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordValueChange appends a snapshot for a new base value, carrying the
// previous snapshot's exchange rates forward. Implements hub.ValuationRecorder.
func (s *Series) RecordValueChange(ctx context.Context, newValue decimal.Decimal, totalSupply int64) error {
	if !newValue.IsPositive() {
		return fmt.Errorf("%w: base value must be positive, got %s", ErrInvalidRate, newValue)
	}

	previous, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	snap := Snapshot{
		ID:            uuid.NewString(),
		BaseValue:     newValue,
		BaseCurrency:  s.baseCurrency,
		BaseSymbol:    s.baseSymbol,
		EffectiveDate: s.now().UTC(),
		TotalSupply:   totalSupply,
		TotalValueInBaseCurrency: newValue.Mul(decimal.NewFromInt(totalSupply)),
	}
	if previous != nil {
		snap.ExchangeRates = previous.ExchangeRates
		snap.PreviousValue = previous.BaseValue
		if previous.BaseValue.IsPositive() {
			snap.ChangePercentage = newValue.Sub(previous.BaseValue).
				Div(previous.BaseValue).Mul(oneHundred)
		}
	}

	if err := s.store.AppendSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	s.log.Info().
		Str("value", newValue.String()).
		Int64("totalSupply", totalSupply).
		Str("totalValue", snap.TotalValueInBaseCurrency.String()).
		Msg("valuation snapshot recorded")
	return nil
}

// UpdateExchangeRates appends a snapshot with a new rate list, carrying the
// current base value forward. totalSupply is denormalized as of now.
func (s *Series) UpdateExchangeRates(ctx context.Context, rates []ExchangeRate, totalSupply int64) (*Snapshot, error) {
	now := s.now().UTC()
	for i, r := range rates {
		if r.Currency == "" || !r.Rate.IsPositive() {
			return nil, fmt.Errorf("%w: currency %q rate %s", ErrInvalidRate, r.Currency, r.Rate)
		}
		if r.UpdatedAt.IsZero() {
			rates[i].UpdatedAt = now
		}
	}

	previous, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	baseValue := decimal.Decimal{}
	if previous != nil {
		baseValue = previous.BaseValue
	}
	if !baseValue.IsPositive() {
		return nil, ErrNoValuation
	}

	snap := Snapshot{
		ID:            uuid.NewString(),
		BaseValue:     baseValue,
		BaseCurrency:  s.baseCurrency,
		BaseSymbol:    s.baseSymbol,
		ExchangeRates: rates,
		EffectiveDate: now,
		PreviousValue: previous.BaseValue,
		TotalSupply:   totalSupply,
		TotalValueInBaseCurrency: baseValue.Mul(decimal.NewFromInt(totalSupply)),
	}

	if err := s.store.AppendSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}
	s.log.Info().Int("rates", len(rates)).Msg("exchange rates updated")
	return &snap, nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ValueInCurrency returns the value of one point in the given currency,
// based on the current snapshot.
func (s *Series) ValueInCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	snap, err := s.CurrentValue(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate, err := snap.Rate(currency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return snap.BaseValue.Mul(rate), nil
}

// ConvertAmount converts a monetary amount between two currencies, routing
// through the base currency.
func (s *Series) ConvertAmount(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	snap, err := s.CurrentValue(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	fromRate, err := snap.Rate(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := snap.Rate(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Div(fromRate).Mul(toRate), nil
}
