/*
reconcile.go - Drift detection and correction

PURPOSE:
  The ledger's circulatingSupply must always equal the sum of every account
  balance. Drift can still arise from bugs, partial failures, or manual
  database edits. This file holds the three reconciliation operations:

  CalculateActualCirculatingSupply: sum of account balances. Pure read.
  VerifySystemConsistency:          compare and report. Never mutates.
  ReconcileSupply:                  correct the ledger to match reality,
                                    inside a single all-or-nothing transaction.

CORRECTION SEMANTICS:
  difference = actual - recorded
  difference > 0: accounts hold more than the ledger believes. Issue the
                  difference into reserve, then move it straight to
                  circulation; total and circulating both grow to match.
  difference < 0: accounts hold less. Move |difference| from circulation
                  back to reserve; total is unchanged.
  difference == 0: no-op, returns immediately. Calling reconcile twice in a
                  row is therefore idempotent.

SAFETY:
  Reconciliation is corrective and admin-triggered ONLY. It requires an
  explicit actor and reason, because running it silently could mask real
  accounting bugs. The whole correction commits or rolls back as one
  transaction, and produces exactly one RECONCILE supply log entry carrying
  previousCirculating / actualCirculating / difference.

SEE ALSO:
  - monitor.go: periodic verification (never correction)
  - service.go: the transactional mutation core this reuses
*/
package hub

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// CalculateActualCirculatingSupply sums every account balance. Pure read,
// no side effects.
func (s *Service) CalculateActualCirculatingSupply(ctx context.Context) (int64, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return 0, err
	}
	sum, err := s.balances.SumAccountBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: sum account balances: %w", ErrStorageUnavailable, err)
	}
	return sum, nil
}

// VerifySystemConsistency compares the recorded circulating supply with the
// actual account balance sum. Logs a warning on drift; never mutates state.
func (s *Service) VerifySystemConsistency(ctx context.Context) (*ConsistencyReport, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	actual, err := s.CalculateActualCirculatingSupply(ctx)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		HubCirculatingSupply:    state.CirculatingSupply,
		ActualCirculatingSupply: actual,
		Difference:              actual - state.CirculatingSupply,
		IsConsistent:            actual == state.CirculatingSupply,
		CheckedAt:               s.now().UTC(),
	}
	s.metrics.SetDrift(report.Difference)
	if !report.IsConsistent {
		s.log.Warn().
			Int64("recorded", report.HubCirculatingSupply).
			Int64("actual", report.ActualCirculatingSupply).
			Int64("difference", report.Difference).
			Msg("circulating supply inconsistent with account balances")
	}
	return report, nil
}

// ReconcileSupply corrects ledger drift against the account balance store.
// Requires an explicit reason and actor; the correction and its RECONCILE
// log entry commit in one transaction or not at all.
func (s *Service) ReconcileSupply(ctx context.Context, reason, actorID string) (*ReconcileResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	var result *ReconcileResult
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

			actual, err := s.balances.SumAccountBalances(ctx)
			if err != nil {
				return fmt.Errorf("%w: sum account balances: %w", ErrStorageUnavailable, err)
			}

			previous := state.CirculatingSupply
			difference := actual - previous
			if difference == 0 {
				result = &ReconcileResult{
					PreviousCirculating: previous,
					ActualCirculating:   actual,
					Action:              ReconcileNone,
				}
				return nil
			}

			work := state.Clone()
			var action ReconcileAction
			if difference > 0 {
				// Issue into reserve, then move straight to circulation.
				work.TotalSupply += difference
				work.ReserveSupply += difference
				work.ReserveSupply -= difference
				work.CirculatingSupply += difference
				action = ReconcileIssuedToCirculation
			} else {
				deficit := -difference
				if work.CirculatingSupply < deficit {
					return &InsufficientSupplyError{Action: ActionMoveToReserve, Available: work.CirculatingSupply, Requested: deficit}
				}
				work.CirculatingSupply -= deficit
				work.ReserveSupply += deficit
				action = ReconcileReturnedToReserve
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
				ID:      uuid.NewString(),
				Action:  ActionReconcile,
				Amount:  difference,
				Reason:  reason,
				ActorID: actorID,
				Metadata: map[string]string{
					"previousCirculating": strconv.FormatInt(previous, 10),
					"actualCirculating":   strconv.FormatInt(actual, 10),
					"difference":          strconv.FormatInt(difference, 10),
				},
				BalancesAfter: work.Balances(),
				CreatedAt:     now,
			}
			if err := hs.AppendLog(ctx, entry); err != nil {
				return fmt.Errorf("append supply log: %w", err)
			}

			result = &ReconcileResult{
				PreviousCirculating: previous,
				ActualCirculating:   actual,
				Difference:          difference,
				Action:              action,
				LogEntryID:          entry.ID,
			}
			s.observeOp(ActionReconcile, work)
			return nil
		})
		if err == nil {
			s.metrics.Reconciled(result.Action)
			s.metrics.SetDrift(0)
			s.log.Info().
				Str("actor", actorID).
				Str("reason", reason).
				Int64("difference", result.Difference).
				Str("correction", string(result.Action)).
				Msg("supply reconciled")
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		s.metrics.ConflictRetried()
	}
	return nil, lastErr
}
