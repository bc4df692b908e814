/*
Package valuation maintains the append-only time series of point value.

PURPOSE:
  Every change to the point's base value or to its exchange rates appends an
  immutable Snapshot. "Current value" is purely the snapshot with the latest
  effective date; history is never rewritten. Snapshots deliberately
  denormalize the total supply and total value at the moment they are taken,
  so historical queries need no joins against the ledger.

RATE CONVENTION:
  A rate is "units of currency per one base-currency unit". The base
  currency's own rate is implicitly 1. Conversions always route through the
  base: amountInTarget = (amountInSource / sourceRate) * targetRate.

KEY TYPES:
  Snapshot:      one immutable valuation record
  ExchangeRate:  one currency's rate against the base
  SnapshotStore: append-only persistence interface

SEE ALSO:
  - series.go: the query/conversion/recording surface
  - hub/service.go: UpdateValuePerUnit triggers RecordValueChange
*/
package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SNAPSHOT - Immutable valuation record
// =============================================================================

// ExchangeRate is one currency's rate against the base currency.
type ExchangeRate struct {
	Currency  string
	Rate      decimal.Decimal // units of Currency per one base-currency unit
	Symbol    string
	UpdatedAt time.Time
}

// Snapshot is one immutable point-valuation record. Appended whenever the
// base value or the exchange rates change; never mutated afterwards.
type Snapshot struct {
	ID                       string
	BaseValue                decimal.Decimal // value of one point in the base currency
	BaseCurrency             string
	BaseSymbol               string
	ExchangeRates            []ExchangeRate
	EffectiveDate            time.Time
	PreviousValue            decimal.Decimal
	ChangePercentage         decimal.Decimal
	TotalSupply              int64 // denormalized at snapshot time
	TotalValueInBaseCurrency decimal.Decimal
}

// Rate returns the snapshot's rate for currency. The base currency's rate is
// implicitly 1.
func (s *Snapshot) Rate(currency string) (decimal.Decimal, error) {
	if currency == s.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}
	for _, r := range s.ExchangeRates {
		if r.Currency == currency {
			return r.Rate, nil
		}
	}
	return decimal.Decimal{}, &RateNotFoundError{Currency: currency}
}

// =============================================================================
// STORE - Append-only persistence
// =============================================================================

// SnapshotStore persists valuation snapshots. APPEND-ONLY.
type SnapshotStore interface {
	// AppendSnapshot persists one snapshot. The only write operation.
	AppendSnapshot(ctx context.Context, snap Snapshot) error

	// LatestSnapshot returns the snapshot with the latest effective date,
	// or (nil, nil) when none exist yet.
	LatestSnapshot(ctx context.Context) (*Snapshot, error)

	// ListSnapshots returns up to limit snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrExchangeRateNotFound is returned when a conversion references a
	// currency with no recorded rate.
	ErrExchangeRateNotFound = errors.New("exchange rate not found")

	// ErrNoValuation is returned when no snapshot has been recorded yet.
	ErrNoValuation = errors.New("no valuation recorded")

	// ErrInvalidRate is returned when a rate update carries a non-positive
	// rate or an empty currency code.
	ErrInvalidRate = errors.New("invalid exchange rate")
)

// RateNotFoundError reports the missing currency.
type RateNotFoundError struct {
	Currency string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no exchange rate recorded for %q", e.Currency)
}

func (e *RateNotFoundError) Unwrap() error { return ErrExchangeRateNotFound }
