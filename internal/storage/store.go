package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a query matches no row.
var ErrNotFound = errors.New("storage: not found")

const schema = `
CREATE TABLE IF NOT EXISTS members (
	name  TEXT PRIMARY KEY,
	phone TEXT NOT NULL UNIQUE,
	admin INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rsvps (
	id          TEXT PRIMARY KEY,
	game_time   INTEGER NOT NULL,
	member_name TEXT NOT NULL,
	reply       TEXT NOT NULL,
	sub_count   INTEGER NOT NULL DEFAULT 0,
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rsvps_effective
	ON rsvps (game_time, member_name, recorded_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS polls (
	game_time INTEGER PRIMARY KEY,
	opened_at INTEGER NOT NULL
);
`

// Store wraps the sqlite database holding the roster, the RSVP ledger and
// the poll markers.
type Store struct {
	db *sql.DB

	members *MembersRepo
	rsvps   *RSVPsRepo
	polls   *PollsRepo
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps sqlite happy under concurrent handlers and
	// makes the in-memory DSN usable from multiple goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	s.members = &MembersRepo{db: db}
	s.rsvps = newRSVPsRepo(db)
	s.polls = &PollsRepo{db: db}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Members() *MembersRepo { return s.members }
func (s *Store) RSVPs() *RSVPsRepo     { return s.rsvps }
func (s *Store) Polls() *PollsRepo     { return s.polls }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
