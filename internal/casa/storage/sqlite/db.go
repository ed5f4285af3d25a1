package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/you112ef/Sky-CASA/internal/timeutil"
)

// pragmas applied to every connection opened by Open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store persists analysis runs. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	clock  timeutil.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path. The schema
// is not touched; call MigrateUp before first use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// A single writer connection keeps the per-connection PRAGMAs in force.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, multierr.Append(fmt.Errorf("execute %q: %w", pragma, err), db.Close())
		}
	}
	s := NewStore(db, logger)
	s.path = path
	return s, nil
}

// NewStore wraps an already configured database handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, clock: timeutil.RealClock{}, logger: logger}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Path returns the database file path, empty for stores built by NewStore.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for the admin SQL console.
func (s *Store) DB() *sql.DB { return s.db }

// Close runs a final optimize pass and closes the database.
func (s *Store) Close() error {
	_, optErr := s.db.Exec("PRAGMA optimize")
	return multierr.Combine(optErr, s.db.Close())
}

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy runs fn, retrying with linear backoff while SQLite reports
// the database as locked or busy.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
