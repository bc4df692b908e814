// Package store provides in-memory implementations of the hub and valuation
// persistence interfaces, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/valuation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements hub.TxStore, hub.BalanceSource and
// valuation.SnapshotStore.
//
// Account balances live behind their own mutex: they model the EXTERNAL
// account balance store, and the hub reads them while a ledger transaction
// is open.
type Memory struct {
	mu    sync.RWMutex
	state *hub.LedgerState
	logs  []hub.SupplyLogEntry
	snaps []valuation.Snapshot

	balMu    sync.RWMutex
	balances map[string]int64
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// =============================================================================
// STATE STORE
// =============================================================================

func (m *Memory) LoadState(_ context.Context) (*hub.LedgerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadStateLocked()
}

func (m *Memory) loadStateLocked() (*hub.LedgerState, error) {
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

func (m *Memory) SaveState(_ context.Context, state *hub.LedgerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveStateLocked(state)
}

func (m *Memory) saveStateLocked(state *hub.LedgerState) error {
	if m.state == nil || m.state.Version != state.Version {
		return hub.ErrConcurrentModification
	}
	stored := state.Clone()
	stored.Version++
	m.state = stored
	state.Version = stored.Version
	return nil
}

func (m *Memory) InitState(_ context.Context, state *hub.LedgerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initStateLocked(state)
}

func (m *Memory) initStateLocked(state *hub.LedgerState) error {
	if m.state != nil {
		return hub.ErrConcurrentModification
	}
	m.state = state.Clone()
	return nil
}

// =============================================================================
// LOG STORE - Append-only
// =============================================================================

func (m *Memory) AppendLog(_ context.Context, entry hub.SupplyLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLogLocked(entry)
}

func (m *Memory) appendLogLocked(entry hub.SupplyLogEntry) error {
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) QueryLogs(_ context.Context, filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLogsLocked(filter)
}

func (m *Memory) queryLogsLocked(filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	matched := m.matchLocked(filter)

	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *Memory) CountLogs(_ context.Context, filter hub.LogFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matchLocked(filter)), nil
}

func (m *Memory) matchLocked(filter hub.LogFilter) []hub.SupplyLogEntry {
	var matched []hub.SupplyLogEntry
	for _, e := range m.logs {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.StartDate != nil && e.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && e.CreatedAt.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

// WithTx executes fn against a view of the store, rolling back every change
// if fn returns an error.
func (m *Memory) WithTx(_ context.Context, fn func(hub.HubStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&txView{parent: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	state *hub.LedgerState
	logs  []hub.SupplyLogEntry
}

func (m *Memory) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{logs: append([]hub.SupplyLogEntry(nil), m.logs...)}
	if m.state != nil {
		snap.state = m.state.Clone()
	}
	return snap
}

func (m *Memory) restoreLocked(snap memorySnapshot) {
	m.state = snap.state
	m.logs = snap.logs
}

// txView routes store calls to the locked internals while WithTx holds the
// write lock.
type txView struct {
	parent *Memory
}

func (v *txView) LoadState(context.Context) (*hub.LedgerState, error) {
	return v.parent.loadStateLocked()
}

func (v *txView) SaveState(_ context.Context, state *hub.LedgerState) error {
	return v.parent.saveStateLocked(state)
}

func (v *txView) InitState(_ context.Context, state *hub.LedgerState) error {
	return v.parent.initStateLocked(state)
}

func (v *txView) AppendLog(_ context.Context, entry hub.SupplyLogEntry) error {
	return v.parent.appendLogLocked(entry)
}

func (v *txView) QueryLogs(_ context.Context, filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	return v.parent.queryLogsLocked(filter)
}

func (v *txView) CountLogs(_ context.Context, filter hub.LogFilter) (int, error) {
	return len(v.parent.matchLocked(filter)), nil
}

// =============================================================================
// ACCOUNT BALANCES - The external collaborator, simulated
// =============================================================================

// SumAccountBalances implements hub.BalanceSource.
func (m *Memory) SumAccountBalances(context.Context) (int64, error) {
	m.balMu.RLock()
	defer m.balMu.RUnlock()

	var sum int64
	for _, b := range m.balances {
		sum += b
	}
	return sum, nil
}

// SetAccountBalance sets a profile's balance, as the profile services would.
func (m *Memory) SetAccountBalance(profileID string, balance int64) {
	m.balMu.Lock()
	defer m.balMu.Unlock()
	m.balances[profileID] = balance
}

// CreditAccount adds delta to a profile's balance (negative to debit).
func (m *Memory) CreditAccount(profileID string, delta int64) {
	m.balMu.Lock()
	defer m.balMu.Unlock()
	m.balances[profileID] += delta
}

// =============================================================================
// VALUATION SNAPSHOTS
// =============================================================================

// AppendSnapshot implements valuation.SnapshotStore.
func (m *Memory) AppendSnapshot(_ context.Context, snap valuation.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *Memory) LatestSnapshot(context.Context) (*valuation.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *valuation.Snapshot
	for i := range m.snaps {
		s := &m.snaps[i]
		if latest == nil || !s.EffectiveDate.Before(latest.EffectiveDate) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *Memory) ListSnapshots(_ context.Context, limit int) ([]valuation.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]valuation.Snapshot(nil), m.snaps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate.After(out[j].EffectiveDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
