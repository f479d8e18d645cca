package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chainops/agentdash/pkg/types"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB

	// ID reservation is serialized here rather than relying on SQLite
	// autoincrement, so a record carries its final ID before Append.
	idMu   sync.Mutex
	lastID int64
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrent performance
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_cache_size=10000&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := s.loadLastID(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load last record id: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY,
		operation_type TEXT NOT NULL,
		wallet_id TEXT NOT NULL,
		tx_hash TEXT,
		status TEXT NOT NULL,
		gas_used INTEGER,
		timestamp DATETIME NOT NULL,
		error_detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions(timestamp DESC, id ASC);
	CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id);

	CREATE TABLE IF NOT EXISTS wallets (
		address TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// loadLastID seeds the ID counter from the highest persisted record.
func (s *SQLiteStorage) loadLastID() error {
	var last sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM transactions`).Scan(&last); err != nil {
		return err
	}
	if last.Valid {
		s.lastID = last.Int64
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// NextID reserves the next monotonic record ID.
func (s *SQLiteStorage) NextID(ctx context.Context) (int64, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.lastID++
	return s.lastID, nil
}

// Append stores one terminal record.
func (s *SQLiteStorage) Append(ctx context.Context, rec *types.TransactionRecord) error {
	var gasUsed sql.NullInt64
	if rec.GasUsed != nil {
		gasUsed = sql.NullInt64{Int64: int64(*rec.GasUsed), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, operation_type, wallet_id, tx_hash, status, gas_used, timestamp, error_detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Type, rec.WalletID, nullString(rec.Hash), rec.Status, gasUsed,
		rec.Timestamp.UTC(), nullString(rec.ErrorDetail))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %d", ErrDuplicateID, rec.ID)
		}
		return fmt.Errorf("failed to append record: %w", err)
	}

	return nil
}

// Query returns records most-recent-first, ties broken by ascending ID.
func (s *SQLiteStorage) Query(ctx context.Context, f Filter, limit, offset int) ([]types.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, operation_type, wallet_id, tx_hash, status, gas_used, timestamp, error_detail FROM transactions`
	var conds []string
	var args []any

	if f.WalletID != "" {
		conds = append(conds, "wallet_id = ?")
		args = append(args, f.WalletID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY timestamp DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []types.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// All streams every record to fn, for aggregate recomputation at startup.
func (s *SQLiteStorage) All(ctx context.Context, fn func(rec *types.TransactionRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation_type, wallet_id, tx_hash, status, gas_used, timestamp, error_detail
		FROM transactions ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to scan ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	return rows.Err()
}

// SaveWallet upserts the wallet row.
func (s *SQLiteStorage) SaveWallet(ctx context.Context, w *types.WalletInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (address, network, balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET network = excluded.network,
			balance = excluded.balance, updated_at = excluded.updated_at
	`, w.Address, w.Network, w.Balance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// GetWallet returns the wallet row, or nil if not found.
func (s *SQLiteStorage) GetWallet(ctx context.Context, address string) (*types.WalletInfo, error) {
	w := &types.WalletInfo{}
	err := s.db.QueryRowContext(ctx, `
		SELECT address, network, balance FROM wallets WHERE address = ?
	`, address).Scan(&w.Address, &w.Network, &w.Balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// scanRecord reads one record from the current row.
func scanRecord(rows *sql.Rows) (*types.TransactionRecord, error) {
	rec := &types.TransactionRecord{}
	var hash, errorDetail sql.NullString
	var gasUsed sql.NullInt64

	if err := rows.Scan(&rec.ID, &rec.Type, &rec.WalletID, &hash, &rec.Status,
		&gasUsed, &rec.Timestamp, &errorDetail); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Hash = hash.String
	rec.ErrorDetail = errorDetail.String
	if gasUsed.Valid {
		gas := uint64(gasUsed.Int64)
		rec.GasUsed = &gas
	}

	return rec, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
