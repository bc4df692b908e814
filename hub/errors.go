/*
errors.go - Centralized error types for the supply ledger

PURPOSE:
  One place for every error kind the hub can surface, so callers (the HTTP
  layer, admin tooling) can classify failures with errors.Is/errors.As and
  map them to stable machine-readable codes.

ERROR CATEGORIES:
  1. Validation errors  - rejected before any state is touched
  2. Supply errors      - operation would violate a pool constraint
  3. Consistency faults - conservation invariant broken (a bug, never input)
  4. Storage errors     - transient persistence failures, retryable

USAGE:
  if errors.Is(err, hub.ErrInsufficientReserve) { ... }

  var fault *hub.ConsistencyFaultError
  if errors.As(err, &fault) { ... }

SEE ALSO:
  - service.go: where these are raised
  - api/handlers.go: HTTP status mapping via ErrorCode/IsClientError
*/
package hub

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an operation amount is <= 0.
	ErrInvalidAmount = errors.New("amount must be a positive number of points")

	// ErrInvalidValue is returned when a per-unit value is <= 0.
	ErrInvalidValue = errors.New("value per point must be positive")

	// ErrInvalidMaxSupply is returned when a new cap is <= 0 or below the
	// current total supply.
	ErrInvalidMaxSupply = errors.New("invalid max supply")

	// ErrMaxSupplyExceeded is returned when an issuance would push total
	// supply past the configured cap.
	ErrMaxSupplyExceeded = errors.New("issuance would exceed max supply")

	// ErrInsufficientReserve is returned when a burn or circulation move
	// asks for more points than the reserve holds.
	ErrInsufficientReserve = errors.New("insufficient reserve supply")

	// ErrInsufficientCirculation is returned when a reserve move asks for
	// more points than are circulating.
	ErrInsufficientCirculation = errors.New("insufficient circulating supply")

	// ErrReasonRequired is returned when a mutation is submitted without a
	// non-empty reason. Every audit entry must explain itself.
	ErrReasonRequired = errors.New("reason is required")

	// ErrActorRequired is returned when reconciliation is attempted without
	// an explicit actor. Reconciliation never runs anonymously.
	ErrActorRequired = errors.New("actor is required")

	// ErrConsistencyFault indicates the conservation invariant was violated.
	// This is an internal fault, not a caller mistake.
	ErrConsistencyFault = errors.New("supply conservation invariant violated")

	// ErrConcurrentModification is returned when optimistic locking detects
	// a conflicting write to the ledger state.
	ErrConcurrentModification = errors.New("concurrent ledger modification detected")

	// ErrStorageUnavailable wraps transient persistence failures. Callers
	// should retry; initialization is retried automatically on next call.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientSupplyError reports a pool shortage.
type InsufficientSupplyError struct {
	Action    SupplyAction
	Available int64
	Requested int64
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("%s: requested %d points but only %d available",
		e.Action, e.Requested, e.Available)
}

func (e *InsufficientSupplyError) Unwrap() error {
	if e.Action == ActionMoveToReserve {
		return ErrInsufficientCirculation
	}
	return ErrInsufficientReserve
}

// MaxSupplyExceededError reports a cap violation on issuance.
type MaxSupplyExceededError struct {
	MaxSupply   int64
	TotalSupply int64
	Requested   int64
}

func (e *MaxSupplyExceededError) Error() string {
	return fmt.Sprintf("issuing %d points would raise total supply to %d, above the cap of %d",
		e.Requested, e.TotalSupply+e.Requested, e.MaxSupply)
}

func (e *MaxSupplyExceededError) Unwrap() error { return ErrMaxSupplyExceeded }

// ConsistencyFaultError reports a broken conservation invariant with the
// offending pool values.
type ConsistencyFaultError struct {
	TotalSupply       int64
	CirculatingSupply int64
	ReserveSupply     int64
}

func (e *ConsistencyFaultError) Error() string {
	return fmt.Sprintf("consistency fault: total=%d circulating=%d reserve=%d (circulating+reserve=%d)",
		e.TotalSupply, e.CirculatingSupply, e.ReserveSupply,
		e.CirculatingSupply+e.ReserveSupply)
}

func (e *ConsistencyFaultError) Unwrap() error { return ErrConsistencyFault }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// a supply constraint the caller can act on (HTTP 400-class).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidMaxSupply) ||
		errors.Is(err, ErrMaxSupplyExceeded) ||
		errors.Is(err, ErrInsufficientReserve) ||
		errors.Is(err, ErrInsufficientCirculation) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrActorRequired)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrStorageUnavailable)
}

// ErrorCode maps an error to its stable machine-readable kind.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidValue):
		return "INVALID_VALUE"
	case errors.Is(err, ErrInvalidMaxSupply):
		return "INVALID_MAX_SUPPLY"
	case errors.Is(err, ErrMaxSupplyExceeded):
		return "MAX_SUPPLY_EXCEEDED"
	case errors.Is(err, ErrInsufficientReserve):
		return "INSUFFICIENT_RESERVE"
	case errors.Is(err, ErrInsufficientCirculation):
		return "INSUFFICIENT_CIRCULATION"
	case errors.Is(err, ErrReasonRequired), errors.Is(err, ErrActorRequired):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrConsistencyFault):
		return "INTERNAL_CONSISTENCY_FAULT"
	case errors.Is(err, ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
