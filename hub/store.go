/*
store.go - Persistence interfaces for the supply ledger

PURPOSE:
  Defines the boundary between the hub's domain logic and the database.
  Implementations exist for SQLite (store/sqlite) and in-memory
  (hub/store, used by tests).

KEY INTERFACES:
  StateStore:    the single ledger state row, with optimistic locking
  LogStore:      append-only supply log (no Update, no Delete)
  BalanceSource: read-only view of the external account balance store
  TxStore:       all-or-nothing transactions across state + log

OPTIMISTIC LOCKING:
  SaveState succeeds only when the stored version matches the version the
  caller loaded, and increments it. A mismatch returns
  ErrConcurrentModification and the service reloads and retries. This closes
  the read-modify-write race between concurrent admin calls.

APPEND-ONLY CONTRACT:
  LogStore has AppendLog and read methods only. Supply log entries are
  never updated or deleted; they are the audit trail.

BALANCE OWNERSHIP:
  The account balance store belongs to the profile services. The hub only
  SUMs it during verification/reconciliation and never writes to it;
  crediting a specific account is the caller's job, done alongside
  MoveToCirculation/MoveToReserve.

SEE ALSO:
  - service.go: how the interfaces compose into operations
  - store/sqlite/sqlite.go: production implementation
  - hub/store/memory.go: test implementation
*/
package hub

import "context"

// =============================================================================
// STATE STORE - The single ledger state row
// =============================================================================

// StateStore persists the LedgerState.
type StateStore interface {
	// LoadState returns the current state, or (nil, nil) if the ledger has
	// never been bootstrapped.
	LoadState(ctx context.Context) (*LedgerState, error)

	// SaveState writes the mutated state if and only if the stored version
	// still equals state.Version. On success the stored (and passed) version
	// is incremented. Returns ErrConcurrentModification on a stale version.
	SaveState(ctx context.Context, state *LedgerState) error

	// InitState inserts the bootstrap state. Fails if a state already exists.
	InitState(ctx context.Context, state *LedgerState) error
}

// =============================================================================
// LOG STORE - Append-only audit trail
// =============================================================================

// LogStore persists supply log entries. APPEND-ONLY: no update, no delete.
type LogStore interface {
	// AppendLog persists one entry. This is the only write operation.
	AppendLog(ctx context.Context, entry SupplyLogEntry) error

	// QueryLogs returns entries matching the filter, newest first.
	QueryLogs(ctx context.Context, filter LogFilter) ([]SupplyLogEntry, error)

	// CountLogs returns the number of entries matching the filter,
	// ignoring Limit/Offset. Used for pagination.
	CountLogs(ctx context.Context, filter LogFilter) (int, error)
}

// HubStore combines the stores every mutation touches.
type HubStore interface {
	StateStore
	LogStore
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic state + log writes
// =============================================================================

// TxStore wraps HubStore with transaction support. Every mutation runs its
// state write and log append inside one WithTx call so they commit or roll
// back together.
type TxStore interface {
	HubStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and that error is returned unchanged.
	WithTx(ctx context.Context, fn func(HubStore) error) error
}

// =============================================================================
// BALANCE SOURCE - External account balance store (read-only here)
// =============================================================================

// BalanceSource exposes the one aggregate the hub needs from the account
// balance store: the sum of every profile's balance. Pure read.
type BalanceSource interface {
	SumAccountBalances(ctx context.Context) (int64, error)
}
