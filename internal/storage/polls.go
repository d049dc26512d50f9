package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPollExists is returned when opening a poll for a game that already
// has one.
var ErrPollExists = errors.New("storage: poll already open")

// PollsRepo tracks which games have had their poll opened.
type PollsRepo struct {
	db *sql.DB
}

// Open marks the poll for a game as open. Returns ErrPollExists if it
// already was.
func (r *PollsRepo) Open(ctx context.Context, gameTime time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO polls (game_time, opened_at) VALUES (?, ?)`,
		gameTime.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to open poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPollExists
	}
	return nil
}

// IsOpen reports whether the poll for a game has been opened.
func (r *PollsRepo) IsOpen(ctx context.Context, gameTime time.Time) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM polls WHERE game_time = ?`, gameTime.Unix()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
