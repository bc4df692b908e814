/*
service.go - The supply ledger facade

PURPOSE:
  Single entry point for every hub operation. Owns lazy initialization
  (bootstrapping the zero-supply state on first use), guarantees the state
  is loaded exactly once per process even under a concurrent first call,
  and funnels every mutation through one transactional path.

INITIALIZATION (single-flight):
  The first caller starts the load; concurrent callers wait on the same
  in-flight attempt instead of loading twice. On failure the attempt is
  cleared, the error goes to the waiting callers, and the next call retries.
  Initialization also runs a non-fatal consistency check: drift is logged
  as a warning, never auto-corrected.

MUTATION PATH:
  read state -> validate -> apply -> re-check conservation invariant ->
  persist state + append supply log entry in ONE transaction.
  Concurrent writers are handled with optimistic locking: a version
  conflict reloads and retries, so two admins racing on the same state
  cannot produce lost updates or a transient invariant violation.

OPERATIONS:
  Issue, Burn, MoveToCirculation, MoveToReserve, AdjustMaxSupply,
  UpdateValuePerUnit, plus the reconciliation operations in reconcile.go.

SEE ALSO:
  - types.go: LedgerState and the supply log vocabulary
  - store.go: TxStore/BalanceSource interfaces
  - reconcile.go: drift detection and correction
*/
package hub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultLogLimit is the supply log page size when none is requested.
	DefaultLogLimit = 50
	// MaxLogLimit caps a single supply log page.
	MaxLogLimit = 500

	defaultMaxRetries = 3
)

// ValuationRecorder receives value changes so the valuation series can
// append a snapshot. Implemented by valuation.Series.
type ValuationRecorder interface {
	RecordValueChange(ctx context.Context, newValue decimal.Decimal, totalSupply int64) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the hub facade. Construct one per process and inject it into
// callers; it holds no global state.
type Service struct {
	store     TxStore
	balances  BalanceSource
	valuation ValuationRecorder
	metrics   *Metrics
	log       zerolog.Logger
	now       func() time.Time

	maxRetries int

	mu          sync.Mutex
	initialized bool
	inflight    *initCall
}

// initCall is one in-flight initialization attempt shared by all callers
// that arrive while it runs.
type initCall struct {
	done chan struct{}
	err  error
}

// ServiceOptions holds the optional collaborators of a Service.
type ServiceOptions struct {
	Valuation  ValuationRecorder
	Metrics    *Metrics
	Logger     *zerolog.Logger
	Clock      func() time.Time
	MaxRetries int
}

// NewService creates the hub facade. The store and balance source are
// required; everything else defaults to a no-op.
func NewService(store TxStore, balances BalanceSource, opts ServiceOptions) *Service {
	s := &Service{
		store:      store,
		balances:   balances,
		valuation:  opts.Valuation,
		metrics:    opts.Metrics,
		log:        zerolog.Nop(),
		now:        time.Now,
		maxRetries: opts.MaxRetries,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if opts.Clock != nil {
		s.now = opts.Clock
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}
	return s
}

// =============================================================================
// INITIALIZATION - Single-flight lazy load
// =============================================================================

// Initialize loads (or bootstraps) the ledger state. Idempotent: once it has
// succeeded, it returns immediately. Concurrent callers share one attempt.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		<-call.done
		return call.err
	}
	call := &initCall{done: make(chan struct{})}
	s.inflight = call
	s.mu.Unlock()

	call.err = s.load(ctx)

	s.mu.Lock()
	if call.err == nil {
		s.initialized = true
	}
	// Clear the attempt either way: a failed one must not be cached.
	s.inflight = nil
	s.mu.Unlock()
	close(call.done)

	if call.err == nil {
		s.verifyOnInit(ctx)
	}
	return call.err
}

// load fetches the state, bootstrapping the zero-supply record on first run.
func (s *Service) load(ctx context.Context) error {
	state, err := s.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("%w: load ledger state: %w", ErrStorageUnavailable, err)
	}
	if state == nil {
		boot := NewLedgerState(s.now().UTC())
		if err := s.store.InitState(ctx, boot); err != nil {
			return fmt.Errorf("%w: bootstrap ledger state: %w", ErrStorageUnavailable, err)
		}
		s.log.Info().Msg("ledger state bootstrapped with zero supply")
		state = boot
	}
	if err := state.CheckInvariant(); err != nil {
		return err
	}
	s.observeState(state)
	s.log.Info().
		Int64("total", state.TotalSupply).
		Int64("circulating", state.CirculatingSupply).
		Int64("reserve", state.ReserveSupply).
		Msg("ledger state loaded")
	return nil
}

// verifyOnInit runs the non-fatal consistency check after a successful load.
func (s *Service) verifyOnInit(ctx context.Context) {
	report, err := s.VerifySystemConsistency(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("initial consistency check failed")
		return
	}
	if !report.IsConsistent {
		s.log.Warn().
			Int64("recorded", report.HubCirculatingSupply).
			Int64("actual", report.ActualCirculatingSupply).
			Int64("difference", report.Difference).
			Msg("circulating supply drift detected at startup; reconciliation required")
	}
}

// ensureInitialized runs at the top of every public operation.
func (s *Service) ensureInitialized(ctx context.Context) error {
	return s.Initialize(ctx)
}

// =============================================================================
// QUERIES
// =============================================================================

// State returns the current ledger state.
func (s *Service) State(ctx context.Context) (*LedgerState, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	state, err := s.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: ledger state missing after initialization", ErrStorageUnavailable)
	}
	return state, nil
}

// Logs returns one page of supply log history, newest first.
func (s *Service) Logs(ctx context.Context, filter LogFilter) (*LogPage, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultLogLimit
	}
	if filter.Limit > MaxLogLimit {
		filter.Limit = MaxLogLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	entries, err := s.store.QueryLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	total, err := s.store.CountLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &LogPage{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// =============================================================================
// MUTATION OPERATIONS
// =============================================================================

// Issue mints amount new points into the reserve, growing total supply.
func (s *Service) Issue(ctx context.Context, amount int64, reason string, op OpContext) (*LedgerState, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return s.mutate(ctx, ActionIssue, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		if state.MaxSupply != nil && state.TotalSupply+amount > *state.MaxSupply {
			return 0, nil, &MaxSupplyExceededError{
				MaxSupply:   *state.MaxSupply,
				TotalSupply: state.TotalSupply,
				Requested:   amount,
			}
		}
		state.TotalSupply += amount
		state.ReserveSupply += amount
		return amount, nil, nil
	})
}

// Burn destroys amount points held in reserve, shrinking total supply.
func (s *Service) Burn(ctx context.Context, amount int64, reason string, op OpContext) (*LedgerState, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return s.mutate(ctx, ActionBurn, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		if state.ReserveSupply < amount {
			return 0, nil, &InsufficientSupplyError{Action: ActionBurn, Available: state.ReserveSupply, Requested: amount}
		}
		state.TotalSupply -= amount
		state.ReserveSupply -= amount
		return amount, nil, nil
	})
}

// MoveToCirculation moves amount points from reserve into circulation.
// The caller credits the receiving account balance in the same logical
// transaction; the hub only moves the pool totals.
func (s *Service) MoveToCirculation(ctx context.Context, amount int64, reason string, op OpContext) (*LedgerState, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return s.mutate(ctx, ActionMoveToCirculation, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		if state.ReserveSupply < amount {
			return 0, nil, &InsufficientSupplyError{Action: ActionMoveToCirculation, Available: state.ReserveSupply, Requested: amount}
		}
		state.ReserveSupply -= amount
		state.CirculatingSupply += amount
		return amount, nil, nil
	})
}

// MoveToReserve moves amount points from circulation back into reserve.
func (s *Service) MoveToReserve(ctx context.Context, amount int64, reason string, op OpContext) (*LedgerState, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return s.mutate(ctx, ActionMoveToReserve, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		if state.CirculatingSupply < amount {
			return 0, nil, &InsufficientSupplyError{Action: ActionMoveToReserve, Available: state.CirculatingSupply, Requested: amount}
		}
		state.CirculatingSupply -= amount
		state.ReserveSupply += amount
		return amount, nil, nil
	})
}

// AdjustMaxSupply sets or clears the hard supply cap. The cap can never be
// set below the points already issued.
func (s *Service) AdjustMaxSupply(ctx context.Context, newMax *int64, reason, actorID string) (*LedgerState, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if newMax != nil && *newMax <= 0 {
		return nil, fmt.Errorf("%w: must be positive or null, got %d", ErrInvalidMaxSupply, *newMax)
	}
	op := OpContext{ActorID: actorID}
	return s.mutate(ctx, ActionAdjustMaxSupply, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		if newMax != nil && *newMax < state.TotalSupply {
			return 0, nil, fmt.Errorf("%w: cap %d is below current total supply %d",
				ErrInvalidMaxSupply, *newMax, state.TotalSupply)
		}
		meta := map[string]string{
			"previousMaxSupply": formatOptionalInt(state.MaxSupply),
			"newMaxSupply":      formatOptionalInt(newMax),
		}
		var amount int64
		if newMax != nil {
			v := *newMax
			state.MaxSupply = &v
			amount = v
		} else {
			state.MaxSupply = nil
		}
		return amount, meta, nil
	})
}

// UpdateValuePerUnit sets the USD-equivalent value of one point and records
// a new valuation snapshot reflecting the updated total value.
func (s *Service) UpdateValuePerUnit(ctx context.Context, newValue decimal.Decimal, reason string, op OpContext) (*LedgerState, error) {
	if !newValue.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidValue, newValue)
	}
	if reason == "" {
		reason = "value per point update"
	}
	state, err := s.mutate(ctx, ActionUpdateValue, reason, op, func(state *LedgerState) (int64, map[string]string, error) {
		meta := map[string]string{
			"previousValue": state.ValuePerUnit.String(),
			"newValue":      newValue.String(),
		}
		state.ValuePerUnit = newValue
		return 0, meta, nil
	})
	if err != nil {
		return nil, err
	}
	// The snapshot lives in its own append-only series outside the state
	// transaction; a failure here leaves the committed value in place and is
	// surfaced so the admin can re-run the update.
	if s.valuation != nil {
		if err := s.valuation.RecordValueChange(ctx, newValue, state.TotalSupply); err != nil {
			return state, fmt.Errorf("record valuation snapshot: %w", err)
		}
	}
	return state, nil
}

// =============================================================================
// MUTATION CORE - One transactional path for every operation
// =============================================================================

// mutate runs one ledger mutation: load, apply, invariant check, persist,
// log, all inside a single transaction, retrying on version conflicts.
func (s *Service) mutate(ctx context.Context, action SupplyAction, reason string, op OpContext,
	apply func(*LedgerState) (int64, map[string]string, error)) (*LedgerState, error) {

	if reason == "" {
		return nil, ErrReasonRequired
	}
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	var result *LedgerState
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.store.WithTx(ctx, func(hs HubStore) error {
			state, err := hs.LoadState(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
			if state == nil {
				return fmt.Errorf("%w: ledger state missing", ErrStorageUnavailable)
			}

			work := state.Clone()
			amount, meta, err := apply(work)
			if err != nil {
				return err
			}
			if err := work.CheckInvariant(); err != nil {
				return err
			}

			now := s.now().UTC()
			work.UpdatedAt = now
			work.LastAdjustment = now
			if err := hs.SaveState(ctx, work); err != nil {
				return err
			}

			entry := SupplyLogEntry{
				ID:             uuid.NewString(),
				Action:         action,
				Amount:         amount,
				Reason:         reason,
				ActorID:        op.ActorID,
				TransactionRef: op.TransactionRef,
				Metadata:       mergeMetadata(op.Metadata, meta),
				BalancesAfter:  work.Balances(),
				CreatedAt:      now,
			}
			if err := hs.AppendLog(ctx, entry); err != nil {
				return fmt.Errorf("append supply log: %w", err)
			}

			result = work
			return nil
		})
		if err == nil {
			s.observeOp(action, result)
			s.log.Info().
				Str("action", string(action)).
				Str("actor", op.ActorID).
				Str("reason", reason).
				Int64("total", result.TotalSupply).
				Int64("circulating", result.CirculatingSupply).
				Int64("reserve", result.ReserveSupply).
				Msg("ledger mutated")
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		s.metrics.ConflictRetried()
		s.log.Debug().Int("attempt", attempt+1).Msg("version conflict on ledger state, retrying")
	}
	return nil, lastErr
}

func (s *Service) observeOp(action SupplyAction, state *LedgerState) {
	s.metrics.OperationApplied(action)
	s.observeState(state)
}

func (s *Service) observeState(state *LedgerState) {
	s.metrics.SetSupply(state.TotalSupply, state.CirculatingSupply, state.ReserveSupply)
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatInt(*v, 10)
}
