package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/util"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Mode selects whether a session may persist its writes
type Mode int

const (
	// ReadWrite commits on Commit and Close
	ReadWrite Mode = iota
	// DryRun never commits; all writes are discarded on Close
	DryRun
)

func (m Mode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "read-write"
}

// Store is a transactional session over the history database.
// A Store always holds an open transaction between Open and Close and must
// not be shared across goroutines.
type Store struct {
	db      *sql.DB
	tx      *sql.Tx
	path    string
	mode    Mode
	changes int64
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	Mode Mode

	// LockTimeout is how long to wait for another writer. Zero fails fast.
	LockTimeout time.Duration

	NetworkOptimized bool // Apply network-optimized pragmas
}

// Row is one result row in column order
type Row []attr.Value

// Open opens or creates the history database at path, applies pending
// migrations and starts the session transaction. Any error is fatal for the
// run.
func Open(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", util.ErrStoreOpen, path, err)
		}
	}

	// Read-write sessions take the write lock when their transaction starts,
	// so a second writer is rejected at open instead of mid-run.
	txlock := "immediate"
	if opts.Mode == DryRun {
		txlock = "deferred"
	}

	dsn := fmt.Sprintf("file:%s?_txlock=%s", path, txlock)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", util.ErrStoreOpen, path, err)
	}

	// One connection: the session transaction owns it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path, mode: opts.Mode}

	if err := s.applyPragmas(opts); err != nil {
		db.Close()
		return nil, classifyOpenError(path, err)
	}

	if err := s.begin(); err != nil {
		db.Close()
		return nil, classifyOpenError(path, err)
	}

	if err := s.migrate(); err != nil {
		if s.tx != nil {
			s.tx.Rollback()
		}
		db.Close()
		if errors.Is(err, util.ErrSchemaMismatch) {
			return nil, err
		}
		return nil, classifyOpenError(path, fmt.Errorf("migration failed: %w", err))
	}

	util.DebugLog("Opened store %s (%s)", path, s.mode)
	return s, nil
}

func (s *Store) applyPragmas(opts *OpenOptions) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.LockTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
	}

	if opts.NetworkOptimized {
		pragmas = append(pragmas,
			// NORMAL is safe with WAL and only syncs at checkpoints
			"PRAGMA synchronous = NORMAL",
			"PRAGMA temp_store = MEMORY",
			"PRAGMA cache_size = -64000",
		)
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (s *Store) begin() error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func classifyOpenError(path string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %s: %w", util.ErrLocked, path, err)
	}
	return fmt.Errorf("%w: %s: %w", util.ErrStoreOpen, path, err)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Mode returns the session access mode
func (s *Store) Mode() Mode {
	return s.mode
}

// Changes returns the number of rows modified during this session
func (s *Store) Changes() int64 {
	return s.changes
}

// Query runs a statement and returns all rows. A failed statement yields a
// nil slice and an error; a valid empty result is a non-nil empty slice.
func (s *Store) Query(query string, args ...any) ([]Row, error) {
	rows, err := s.tx.Query(query, args...)
	if err != nil {
		util.ErrorLog("Query failed: %v [%s]", err, compact(query))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]Row, 0)
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, src := range raw {
			v, ok := attr.FromDriver(src)
			if !ok {
				err := fmt.Errorf("%w: column %s holds %T", util.ErrUnsupported, cols[i], src)
				util.ErrorLog("Query failed: %v [%s]", err, compact(query))
				return nil, err
			}
			row[i] = v
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		util.ErrorLog("Query failed: %v [%s]", err, compact(query))
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return result, nil
}

// Exec runs a mutating statement and returns the number of rows affected
func (s *Store) Exec(query string, args ...any) (int64, error) {
	res, err := s.tx.Exec(query, args...)
	if err != nil {
		util.ErrorLog("Statement failed: %v [%s]", err, compact(query))
		return 0, fmt.Errorf("statement failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	s.changes += n
	util.DebugLog("%s -> %d row(s)", compact(query), n)
	return n, nil
}

// Scalar runs a query expected to produce at most one value. Zero rows give
// Absent. More than one row or column is a programming error: it is logged
// and reported as ErrNotScalar.
func (s *Store) Scalar(query string, args ...any) (attr.Value, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return attr.Absent(), err
	}

	if len(rows) == 0 {
		return attr.Absent(), nil
	}
	if len(rows) > 1 {
		util.ErrorLog("Scalar query returned %d rows [%s]", len(rows), compact(query))
		return attr.Absent(), fmt.Errorf("%w: %d rows", util.ErrNotScalar, len(rows))
	}

	row := rows[0]
	if len(row) == 0 {
		return attr.Absent(), nil
	}
	if len(row) > 1 {
		util.ErrorLog("Scalar query returned %d columns [%s]", len(row), compact(query))
		return attr.Absent(), fmt.Errorf("%w: %d columns", util.ErrNotScalar, len(row))
	}

	return row[0], nil
}

// ExecDDL runs a schema statement. Unlike Exec it does not count rows; the
// error is returned for the caller to decide whether it is fatal.
func (s *Store) ExecDDL(stmt string) error {
	if _, err := s.tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute %q: %w", compact(stmt), err)
	}
	return nil
}

// Commit persists the writes made so far and starts a new transaction.
// In dry-run mode the transaction stays open, so the session keeps seeing
// its own writes while nothing reaches the file.
func (s *Store) Commit() error {
	if s.mode == DryRun {
		util.DebugLog("Dry run: commit skipped")
		return nil
	}

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.tx = nil

	return s.begin()
}

// Close logs the session summary, ends the transaction (commit for
// read-write, rollback for dry run) and releases the database.
func (s *Store) Close() error {
	var txErr error
	if s.tx != nil {
		s.logSummary()

		if s.mode == ReadWrite {
			txErr = s.tx.Commit()
		} else {
			txErr = s.tx.Rollback()
		}
		s.tx = nil
	}

	return errors.Join(txErr, s.db.Close())
}

func (s *Store) logSummary() {
	parts := make([]string, 0, len(Tables))
	for _, table := range Tables {
		n, err := s.CountRows(table)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", table, n))
	}

	util.InfoLog("Closing %s (%s): %s, %d row(s) changed",
		s.path, s.mode, strings.Join(parts, " "), s.changes)
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	v, err := s.Scalar("PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result, _ := v.AsString(); result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// compact collapses whitespace so statements fit on one log line
func compact(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}
