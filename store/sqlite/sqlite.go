/*
Package sqlite provides the SQLite-backed implementation of the hub's
storage interfaces.

INTERFACES IMPLEMENTED:
  hub.TxStore:             Ledger state + supply log, transactional
  hub.BalanceSource:       Aggregate over the account_balances table
  valuation.SnapshotStore: Valuation history

APPEND-ONLY ENFORCEMENT:
  supply_logs and valuation_snapshots have INSERT and SELECT paths only.
  No UPDATE or DELETE statements exist for either table.

OPTIMISTIC LOCKING:
  ledger_state is a single row (id = 1) with a version column. SaveState
  issues UPDATE ... WHERE id = 1 AND version = ?, and a zero row count
  maps to hub.ErrConcurrentModification. Combined with the service's
  retry loop this serializes concurrent admin mutations without holding
  a lock across the read-modify-write cycle.

TABLE OWNERSHIP:
  account_balances is written by the profile services (the hub's
  callers); the ledger only SUMs it. The balance helpers here exist for
  those callers and for tests, and deliberately bypass the ledger mutex:
  the balance table is a separate consistency domain and must stay
  readable while a ledger transaction is open.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/hub.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  service := hub.NewService(store, store, hub.ServiceOptions{...})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - hub/store.go: Interface definitions
  - hub/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/valuation"
)

// Store implements the hub and valuation storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- The single authoritative supply record (one row, id = 1)
	CREATE TABLE IF NOT EXISTS ledger_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_supply INTEGER NOT NULL DEFAULT 0,
		circulating_supply INTEGER NOT NULL DEFAULT 0,
		reserve_supply INTEGER NOT NULL DEFAULT 0,
		max_supply INTEGER,
		value_per_unit TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		last_adjustment TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Supply log: immutable audit trail of every mutation
	CREATE TABLE IF NOT EXISTS supply_logs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT,
		transaction_ref TEXT,
		metadata_json TEXT,
		total_after INTEGER NOT NULL,
		circulating_after INTEGER NOT NULL,
		reserve_after INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_supply_logs_created_at
		ON supply_logs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_supply_logs_action
		ON supply_logs(action, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_supply_logs_actor
		ON supply_logs(actor_id) WHERE actor_id IS NOT NULL;

	-- Valuation history (append-only)
	CREATE TABLE IF NOT EXISTS valuation_snapshots (
		id TEXT PRIMARY KEY,
		base_value TEXT NOT NULL,
		base_currency TEXT NOT NULL,
		base_symbol TEXT NOT NULL,
		rates_json TEXT,
		effective_date TEXT NOT NULL,
		previous_value TEXT,
		change_percentage TEXT,
		total_supply INTEGER NOT NULL,
		total_value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_valuation_effective
		ON valuation_snapshots(effective_date DESC);

	-- Account balances: owned by the profile services, summed by the hub
	CREATE TABLE IF NOT EXISTS account_balances (
		profile_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		lifetime_earned INTEGER NOT NULL DEFAULT 0,
		last_transaction_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STATE STORE (hub.StateStore interface)
// =============================================================================

// LoadState returns the ledger state, or (nil, nil) before bootstrap.
func (s *Store) LoadState(ctx context.Context) (*hub.LedgerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadState(ctx, s.db)
}

func loadState(ctx context.Context, db dbtx) (*hub.LedgerState, error) {
	var (
		state          hub.LedgerState
		maxSupply      sql.NullInt64
		valuePerUnit   string
		lastAdjustment string
		updatedAt      string
	)

	err := db.QueryRowContext(ctx, `
		SELECT total_supply, circulating_supply, reserve_supply, max_supply,
		       value_per_unit, version, last_adjustment, updated_at
		FROM ledger_state WHERE id = 1
	`).Scan(&state.TotalSupply, &state.CirculatingSupply, &state.ReserveSupply,
		&maxSupply, &valuePerUnit, &state.Version, &lastAdjustment, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	if maxSupply.Valid {
		v := maxSupply.Int64
		state.MaxSupply = &v
	}
	state.ValuePerUnit, err = decimal.NewFromString(valuePerUnit)
	if err != nil {
		return nil, fmt.Errorf("corrupt value_per_unit %q: %w", valuePerUnit, err)
	}
	state.LastAdjustment, _ = time.Parse(time.RFC3339, lastAdjustment)
	state.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &state, nil
}

// SaveState writes the state if the stored version still matches, and bumps
// the version on success.
func (s *Store) SaveState(ctx context.Context, state *hub.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveState(ctx, s.db, state)
}

func saveState(ctx context.Context, db dbtx, state *hub.LedgerState) error {
	res, err := db.ExecContext(ctx, `
		UPDATE ledger_state
		SET total_supply = ?, circulating_supply = ?, reserve_supply = ?,
		    max_supply = ?, value_per_unit = ?, version = version + 1,
		    last_adjustment = ?, updated_at = ?
		WHERE id = 1 AND version = ?
	`,
		state.TotalSupply, state.CirculatingSupply, state.ReserveSupply,
		nullInt(state.MaxSupply), state.ValuePerUnit.String(),
		state.LastAdjustment.UTC().Format(time.RFC3339),
		state.UpdatedAt.UTC().Format(time.RFC3339),
		state.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save ledger state: %w", err)
	}
	if affected == 0 {
		return hub.ErrConcurrentModification
	}
	state.Version++
	return nil
}

// InitState inserts the bootstrap state. Fails if a state already exists.
func (s *Store) InitState(ctx context.Context, state *hub.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return initState(ctx, s.db, state)
}

func initState(ctx context.Context, db dbtx, state *hub.LedgerState) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_state
		(id, total_supply, circulating_supply, reserve_supply, max_supply,
		 value_per_unit, version, last_adjustment, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		state.TotalSupply, state.CirculatingSupply, state.ReserveSupply,
		nullInt(state.MaxSupply), state.ValuePerUnit.String(), state.Version,
		state.LastAdjustment.UTC().Format(time.RFC3339),
		state.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return hub.ErrConcurrentModification
		}
		return fmt.Errorf("failed to init ledger state: %w", err)
	}
	return nil
}

// =============================================================================
// LOG STORE (hub.LogStore interface) - Append-only
// =============================================================================

// AppendLog inserts one supply log entry. The only write path for the table.
func (s *Store) AppendLog(ctx context.Context, entry hub.SupplyLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLog(ctx, s.db, entry)
}

func appendLog(ctx context.Context, db dbtx, entry hub.SupplyLogEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO supply_logs
		(id, action, amount, reason, actor_id, transaction_ref, metadata_json,
		 total_after, circulating_after, reserve_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, string(entry.Action), entry.Amount, entry.Reason,
		nullString(entry.ActorID), nullString(entry.TransactionRef),
		string(metadataJSON),
		entry.BalancesAfter.TotalSupply,
		entry.BalancesAfter.CirculatingSupply,
		entry.BalancesAfter.ReserveSupply,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append supply log: %w", err)
	}
	return nil
}

// QueryLogs returns entries matching the filter, newest first.
func (s *Store) QueryLogs(ctx context.Context, filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryLogs(ctx, s.db, filter)
}

func queryLogs(ctx context.Context, db dbtx, filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	where, args := logFilterClause(filter)
	query := `
		SELECT id, action, amount, reason, actor_id, transaction_ref,
		       metadata_json, total_after, circulating_after, reserve_after, created_at
		FROM supply_logs` + where + `
		ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query supply logs: %w", err)
	}
	defer rows.Close()

	var entries []hub.SupplyLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountLogs returns the number of matching entries, ignoring pagination.
func (s *Store) CountLogs(ctx context.Context, filter hub.LogFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countLogs(ctx, s.db, filter)
}

func countLogs(ctx context.Context, db dbtx, filter hub.LogFilter) (int, error) {
	where, args := logFilterClause(filter)
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM supply_logs"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count supply logs: %w", err)
	}
	return count, nil
}

func logFilterClause(filter hub.LogFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.StartDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.StartDate.UTC().Format(time.RFC3339Nano))
	}
	if filter.EndDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.EndDate.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanLogEntry(rows *sql.Rows) (hub.SupplyLogEntry, error) {
	var (
		entry          hub.SupplyLogEntry
		action         string
		actorID        sql.NullString
		transactionRef sql.NullString
		metadataJSON   sql.NullString
		createdAt      string
	)

	err := rows.Scan(&entry.ID, &action, &entry.Amount, &entry.Reason,
		&actorID, &transactionRef, &metadataJSON,
		&entry.BalancesAfter.TotalSupply,
		&entry.BalancesAfter.CirculatingSupply,
		&entry.BalancesAfter.ReserveSupply,
		&createdAt)
	if err != nil {
		return entry, fmt.Errorf("failed to scan supply log: %w", err)
	}

	entry.Action = hub.SupplyAction(action)
	entry.ActorID = actorID.String
	entry.TransactionRef = transactionRef.String
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
			return entry, fmt.Errorf("corrupt log metadata for %s: %w", entry.ID, err)
		}
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return entry, nil
}

// =============================================================================
// TRANSACTIONS (hub.TxStore interface)
// =============================================================================

// WithTx executes fn within one database transaction. State write and log
// append either both commit or both roll back.
func (s *Store) WithTx(ctx context.Context, fn func(hub.HubStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore routes store calls through an open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LoadState(ctx context.Context) (*hub.LedgerState, error) {
	return loadState(ctx, ts.tx)
}

func (ts *txStore) SaveState(ctx context.Context, state *hub.LedgerState) error {
	return saveState(ctx, ts.tx, state)
}

func (ts *txStore) InitState(ctx context.Context, state *hub.LedgerState) error {
	return initState(ctx, ts.tx, state)
}

func (ts *txStore) AppendLog(ctx context.Context, entry hub.SupplyLogEntry) error {
	return appendLog(ctx, ts.tx, entry)
}

func (ts *txStore) QueryLogs(ctx context.Context, filter hub.LogFilter) ([]hub.SupplyLogEntry, error) {
	return queryLogs(ctx, ts.tx, filter)
}

func (ts *txStore) CountLogs(ctx context.Context, filter hub.LogFilter) (int, error) {
	return countLogs(ctx, ts.tx, filter)
}

// =============================================================================
// ACCOUNT BALANCES (hub.BalanceSource + caller helpers)
// =============================================================================

// SumAccountBalances returns the total points held across all accounts.
// Deliberately not guarded by the ledger mutex: the hub calls this while a
// ledger transaction is open, and the balance table belongs to the external
// collaborators' consistency domain.
func (s *Store) SumAccountBalances(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(balance), 0) FROM account_balances",
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum account balances: %w", err)
	}
	return sum, nil
}

// SetAccountBalance upserts a profile's balance. Used by the profile
// services and by tests; the ledger itself never writes this table.
func (s *Store) SetAccountBalance(ctx context.Context, profileID string, balance int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_balances (profile_id, balance, lifetime_earned, last_transaction_at)
		VALUES (?, ?, MAX(?, 0), ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			balance = excluded.balance,
			lifetime_earned = MAX(account_balances.lifetime_earned, excluded.balance),
			last_transaction_at = excluded.last_transaction_at
	`, profileID, balance, balance, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set account balance: %w", err)
	}
	return nil
}

// CreditAccount adds delta to a profile's balance (negative to debit).
func (s *Store) CreditAccount(ctx context.Context, profileID string, delta int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_balances (profile_id, balance, lifetime_earned, last_transaction_at)
		VALUES (?, ?, MAX(?, 0), ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			balance = account_balances.balance + excluded.balance,
			lifetime_earned = account_balances.lifetime_earned + MAX(excluded.balance, 0),
			last_transaction_at = excluded.last_transaction_at
	`, profileID, delta, delta, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

// =============================================================================
// VALUATION SNAPSHOTS (valuation.SnapshotStore interface) - Append-only
// =============================================================================

type rateRecord struct {
	Currency  string `json:"currency"`
	Rate      string `json:"rate"`
	Symbol    string `json:"symbol,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// AppendSnapshot inserts one valuation snapshot. The only write path.
func (s *Store) AppendSnapshot(ctx context.Context, snap valuation.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]rateRecord, len(snap.ExchangeRates))
	for i, r := range snap.ExchangeRates {
		records[i] = rateRecord{
			Currency:  r.Currency,
			Rate:      r.Rate.String(),
			Symbol:    r.Symbol,
			UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	ratesJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange rates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO valuation_snapshots
		(id, base_value, base_currency, base_symbol, rates_json, effective_date,
		 previous_value, change_percentage, total_supply, total_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID, snap.BaseValue.String(), snap.BaseCurrency, snap.BaseSymbol,
		string(ratesJSON), snap.EffectiveDate.UTC().Format(time.RFC3339Nano),
		nullDecimal(snap.PreviousValue), nullDecimal(snap.ChangePercentage),
		snap.TotalSupply, snap.TotalValueInBaseCurrency.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to append valuation snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the snapshot with the latest effective date, or
// (nil, nil) when none exist yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*valuation.Snapshot, error) {
	snaps, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]valuation.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, base_value, base_currency, base_symbol, rates_json,
		       effective_date, previous_value, change_percentage, total_supply, total_value
		FROM valuation_snapshots
		ORDER BY effective_date DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list valuation snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []valuation.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (valuation.Snapshot, error) {
	var (
		snap          valuation.Snapshot
		baseValue     string
		ratesJSON     sql.NullString
		effectiveDate string
		previousValue sql.NullString
		changePct     sql.NullString
		totalValue    string
	)

	err := rows.Scan(&snap.ID, &baseValue, &snap.BaseCurrency, &snap.BaseSymbol,
		&ratesJSON, &effectiveDate, &previousValue, &changePct,
		&snap.TotalSupply, &totalValue)
	if err != nil {
		return snap, fmt.Errorf("failed to scan valuation snapshot: %w", err)
	}

	snap.BaseValue, err = decimal.NewFromString(baseValue)
	if err != nil {
		return snap, fmt.Errorf("corrupt base_value %q: %w", baseValue, err)
	}
	snap.TotalValueInBaseCurrency, _ = decimal.NewFromString(totalValue)
	if previousValue.Valid {
		snap.PreviousValue, _ = decimal.NewFromString(previousValue.String)
	}
	if changePct.Valid {
		snap.ChangePercentage, _ = decimal.NewFromString(changePct.String)
	}
	snap.EffectiveDate, _ = time.Parse(time.RFC3339Nano, effectiveDate)

	if ratesJSON.Valid && ratesJSON.String != "" {
		var records []rateRecord
		if err := json.Unmarshal([]byte(ratesJSON.String), &records); err != nil {
			return snap, fmt.Errorf("corrupt rates_json for %s: %w", snap.ID, err)
		}
		for _, r := range records {
			rate, err := decimal.NewFromString(r.Rate)
			if err != nil {
				return snap, fmt.Errorf("corrupt rate %q for %s: %w", r.Rate, snap.ID, err)
			}
			updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
			snap.ExchangeRates = append(snap.ExchangeRates, valuation.ExchangeRate{
				Currency:  r.Currency,
				Rate:      rate,
				Symbol:    r.Symbol,
				UpdatedAt: updatedAt,
			})
		}
	}
	return snap, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullDecimal(d decimal.Decimal) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
