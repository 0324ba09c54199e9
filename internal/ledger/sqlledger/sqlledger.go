// Package sqlledger provides an embedded ledger backed by SQLite.
//
// It implements the same positional contract as the Bug smart contract so the
// engine can run without a chain node:
//
//   - Database file: any path, e.g. .bugledger/ledger.db
//   - WAL mode: concurrent readers during writes
//   - Schema: a single records table ordered by seq
//   - Position: a record's rank by seq, so deleting position i shifts every
//     later record down by one
//
// Criticality codes are stored as written. Codes outside 0..2 inserted by
// other tools are returned unchanged.
package sqlledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Mschirtzinger/bugledger/internal/ledger"
)

// DefaultIdentities are offered when a Dialer is created without any.
var DefaultIdentities = []ledger.Identity{"0xA"}

// DB is an embedded ledger connection.
type DB struct {
	conn       *sql.DB
	path       string
	identities []ledger.Identity

	// writeMu serializes writers; SQLite allows one at a time anyway and this
	// keeps busy retries out of the picture.
	writeMu sync.Mutex
}

var _ ledger.Conn = (*DB)(nil)

// Open opens or creates the ledger at path and initializes its schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := sqlledger.Open(".bugledger/ledger.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string, identities []ledger.Identity) (*DB, error) {
	return OpenContext(context.Background(), path, identities)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string, identities []ledger.Identity) (*DB, error) {
	path = strings.TrimPrefix(path, "file:")
	if path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if len(identities) == 0 {
		identities = DefaultIdentities
	}

	db := &DB{
		conn:       conn,
		path:       path,
		identities: append([]ledger.Identity(nil), identities...),
	}

	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// busyTimeout is how long a connection waits on another process's lock.
const busyTimeout = 5000 * time.Millisecond

// dsn builds the connection string. Pragmas in the DSN are applied by the
// driver to every pooled connection, not just the first.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(wal)", path, busyTimeout.Milliseconds())
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the ledger. Performs a WAL checkpoint first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchemaContext creates the records table if it doesn't exist.
// This is idempotent.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		bug_id TEXT NOT NULL,
		description TEXT NOT NULL,
		criticality INTEGER NOT NULL,
		is_resolved INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Identities implements ledger.Conn.
func (db *DB) Identities(ctx context.Context) ([]ledger.Identity, error) {
	if db.conn == nil {
		return nil, ledger.ErrClosed
	}
	return append([]ledger.Identity(nil), db.identities...), nil
}

// RecordCount implements ledger.Reader.
func (db *DB) RecordCount(ctx context.Context, opts ledger.CallOpts) (int, error) {
	if db.conn == nil {
		return 0, ledger.ErrClosed
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Record implements ledger.Reader.
func (db *DB) Record(ctx context.Context, opts ledger.CallOpts, index int) (ledger.Record, error) {
	if db.conn == nil {
		return ledger.Record{}, ledger.ErrClosed
	}
	if index < 0 {
		return ledger.Record{}, outOfRange(index)
	}

	query := `
	SELECT bug_id, description, criticality, is_resolved
	FROM records
	ORDER BY seq
	LIMIT 1 OFFSET ?
	`

	var (
		rec      ledger.Record
		resolved int
	)
	err := db.conn.QueryRowContext(ctx, query, index).Scan(&rec.ID, &rec.Description, &rec.CriticalityCode, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, outOfRange(index)
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to read record %d: %w", index, err)
	}
	rec.IsResolved = resolved != 0
	return rec, nil
}

// AddRecord implements ledger.Writer.
func (db *DB) AddRecord(ctx context.Context, opts ledger.CallOpts, id, description string, criticality uint8) error {
	if err := db.checkWriter(opts); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	query := `
	INSERT INTO records (bug_id, description, criticality, is_resolved, created_by, created_at)
	VALUES (?, ?, ?, 0, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		id,
		description,
		int64(criticality),
		string(opts.From),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add record %s: %w", id, err)
	}
	return nil
}

// SetResolved implements ledger.Writer.
func (db *DB) SetResolved(ctx context.Context, opts ledger.CallOpts, index int, resolved bool) error {
	if err := db.checkWriter(opts); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	flag := 0
	if resolved {
		flag = 1
	}

	query := `
	UPDATE records SET is_resolved = ?
	WHERE seq = (SELECT seq FROM records ORDER BY seq LIMIT 1 OFFSET ?)
	`
	return db.execAt(ctx, index, query, flag, index)
}

// RemoveRecord implements ledger.Writer.
//
// Later records keep their relative order, so their positions shift down by
// one.
func (db *DB) RemoveRecord(ctx context.Context, opts ledger.CallOpts, index int) error {
	if err := db.checkWriter(opts); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	query := `
	DELETE FROM records
	WHERE seq = (SELECT seq FROM records ORDER BY seq LIMIT 1 OFFSET ?)
	`
	return db.execAt(ctx, index, query, index)
}

// execAt runs a single-row statement inside a transaction and reverts if it
// did not touch exactly one record.
func (db *DB) execAt(ctx context.Context, index int, query string, args ...any) error {
	if index < 0 {
		return outOfRange(index)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write record %d: %w", index, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check write of record %d: %w", index, err)
	}
	if n != 1 {
		return outOfRange(index)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkWriter rejects writes from identities this ledger does not offer.
func (db *DB) checkWriter(opts ledger.CallOpts) error {
	if db.conn == nil {
		return ledger.ErrClosed
	}
	for _, id := range db.identities {
		if id == opts.From {
			return nil
		}
	}
	return ledger.Revert(fmt.Errorf("unknown sender %q", opts.From))
}

func outOfRange(index int) error {
	return ledger.Revert(fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, index))
}

// Dialer opens embedded ledgers. The endpoint is the database path.
type Dialer struct {
	Identities []ledger.Identity
}

// Dial implements ledger.Dialer.
func (d Dialer) Dial(ctx context.Context, endpoint string) (ledger.Conn, error) {
	db, err := OpenContext(ctx, endpoint, d.Identities)
	if err != nil {
		return nil, err
	}
	return db, nil
}
