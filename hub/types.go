/*
Package hub implements the supply ledger for the platform point currency.

PURPOSE:
  The hub is the single authoritative record of how many MyPts exist,
  how many are held in reserve by the platform, and how many circulate
  among user account balances. Every mutation goes through the Service
  facade, is validated against the conservation invariant, and leaves
  exactly one entry in the append-only supply log.

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerState: the single row of truth (total/circulating/reserve/max/value)
  - Balances: a point-in-time snapshot of the three supply pools
  - SupplyAction + SupplyLogEntry: the audit trail vocabulary
  - LogFilter/LogPage: query surface over the supply log
  - ConsistencyReport/ReconcileResult: drift detection and correction results

CONSERVATION INVARIANT:
  totalSupply == circulatingSupply + reserveSupply, after every operation.
  A violation is never expected in normal operation; it indicates a bug or
  an uncontrolled write and is surfaced as ErrConsistencyFault.

DESIGN PRINCIPLES:
  1. Supplies are integral units (int64). Points are never fractional.
  2. Monetary values (valuePerUnit) use decimal.Decimal, never float64.
  3. The supply log is append-only. Corrections are new entries.
  4. maxSupply is optional (*int64); nil means uncapped.

SEE ALSO:
  - service.go: the facade exposing all mutation/query operations
  - store.go: persistence interfaces
  - reconcile.go: drift detection against the account balance store
*/
package hub

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultValuePerUnit is the launch valuation of one MyPt in the base
// currency. Used only when the ledger state is bootstrapped from zero.
var DefaultValuePerUnit = decimal.NewFromFloat(0.024)

// =============================================================================
// LEDGER STATE - Single authoritative supply record
// =============================================================================

// LedgerState is the one-per-deployment supply record.
//
// INVARIANTS:
//   - TotalSupply == CirculatingSupply + ReserveSupply
//   - All three pools are >= 0
//   - TotalSupply <= *MaxSupply when MaxSupply is set
//   - ValuePerUnit > 0
//
// Version implements optimistic concurrency control: every successful
// SaveState increments it, and a save against a stale version fails with
// ErrConcurrentModification so the caller can reload and retry.
type LedgerState struct {
	TotalSupply       int64
	CirculatingSupply int64
	ReserveSupply     int64
	MaxSupply         *int64
	ValuePerUnit      decimal.Decimal
	Version           int64
	LastAdjustment    time.Time
	UpdatedAt         time.Time
}

// NewLedgerState returns the bootstrap state: zero supply, default valuation,
// no cap. Created exactly once per deployment.
func NewLedgerState(now time.Time) *LedgerState {
	return &LedgerState{
		ValuePerUnit:   DefaultValuePerUnit,
		LastAdjustment: now,
		UpdatedAt:      now,
	}
}

// Balances returns the current three-pool snapshot.
func (s *LedgerState) Balances() Balances {
	return Balances{
		TotalSupply:       s.TotalSupply,
		CirculatingSupply: s.CirculatingSupply,
		ReserveSupply:     s.ReserveSupply,
	}
}

// CheckInvariant verifies conservation and non-negativity.
// Returns a *ConsistencyFaultError on violation.
func (s *LedgerState) CheckInvariant() error {
	if s.TotalSupply < 0 || s.CirculatingSupply < 0 || s.ReserveSupply < 0 ||
		s.TotalSupply != s.CirculatingSupply+s.ReserveSupply {
		return &ConsistencyFaultError{
			TotalSupply:       s.TotalSupply,
			CirculatingSupply: s.CirculatingSupply,
			ReserveSupply:     s.ReserveSupply,
		}
	}
	return nil
}

// Clone returns a deep copy. Mutation operations work on a copy so a failed
// transaction never leaves a half-mutated state in memory.
func (s *LedgerState) Clone() *LedgerState {
	out := *s
	if s.MaxSupply != nil {
		v := *s.MaxSupply
		out.MaxSupply = &v
	}
	return &out
}

// Balances is a snapshot of the three supply pools, recorded on every
// supply log entry as balancesAfter.
type Balances struct {
	TotalSupply       int64
	CirculatingSupply int64
	ReserveSupply     int64
}

// =============================================================================
// SUPPLY LOG - Append-only audit trail
// =============================================================================

// SupplyAction identifies what a supply log entry records.
type SupplyAction string

const (
	ActionIssue             SupplyAction = "ISSUE"
	ActionBurn              SupplyAction = "BURN"
	ActionMoveToCirculation SupplyAction = "MOVE_TO_CIRCULATION"
	ActionMoveToReserve     SupplyAction = "MOVE_TO_RESERVE"
	ActionAdjustMaxSupply   SupplyAction = "ADJUST_MAX_SUPPLY"
	ActionUpdateValue       SupplyAction = "UPDATE_VALUE"
	ActionReconcile         SupplyAction = "RECONCILE"
)

// SupplyLogEntry is one immutable audit record. Created atomically with the
// ledger state mutation it describes; never updated or deleted.
type SupplyLogEntry struct {
	ID             string
	Action         SupplyAction
	Amount         int64
	Reason         string
	ActorID        string // empty for system-automatic actions
	TransactionRef string
	Metadata       map[string]string
	BalancesAfter  Balances
	CreatedAt      time.Time
}

// LogFilter narrows supply log queries. Zero values mean "no filter".
type LogFilter struct {
	Action    SupplyAction
	ActorID   string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// LogPage is one page of supply log history, newest first.
type LogPage struct {
	Entries []SupplyLogEntry
	Total   int
	Limit   int
	Offset  int
}

// =============================================================================
// RECONCILIATION RESULTS
// =============================================================================

// ConsistencyReport compares the ledger's recorded circulating supply with
// the actual sum of account balances. Produced by VerifySystemConsistency;
// never mutates state.
type ConsistencyReport struct {
	HubCirculatingSupply    int64
	ActualCirculatingSupply int64
	Difference              int64 // actual - recorded
	IsConsistent            bool
	CheckedAt               time.Time
}

// ReconcileAction describes what a reconciliation run did.
type ReconcileAction string

const (
	ReconcileNone                 ReconcileAction = "none"
	ReconcileIssuedToCirculation  ReconcileAction = "issued_to_circulation"
	ReconcileReturnedToReserve    ReconcileAction = "returned_to_reserve"
)

// ReconcileResult is the outcome of an admin-triggered reconciliation.
type ReconcileResult struct {
	PreviousCirculating int64
	ActualCirculating   int64
	Difference          int64
	Action              ReconcileAction
	LogEntryID          string // empty when Action == ReconcileNone
}

// OpContext carries the optional audit attributes of a mutation: the admin
// performing it, free-form metadata, and an external transaction reference
// (e.g. the purchase that moved points into circulation).
type OpContext struct {
	ActorID        string
	Metadata       map[string]string
	TransactionRef string
}
