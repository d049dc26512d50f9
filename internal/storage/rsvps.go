package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"hoops-sms/internal/models"
)

// RSVPsRepo is the append-only RSVP ledger. Records are only ever inserted;
// "latest wins" reads pick the effective record per (game, member) pair.
type RSVPsRepo struct {
	db *sql.DB

	// Monotonic ULID source: ids generated in one process are strictly
	// increasing, so they break recorded_at ties in append order.
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	// Per-(game, member) locks serializing read-latest-then-append, so two
	// near-simultaneous replies from the same member each compare against
	// a consistent predecessor.
	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

func newRSVPsRepo(db *sql.DB) *RSVPsRepo {
	return &RSVPsRepo{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		keys:    make(map[string]*sync.Mutex),
	}
}

func (r *RSVPsRepo) newID(t time.Time) string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.UTC()), r.entropy).String()
}

func (r *RSVPsRepo) keyLock(gameTime time.Time, memberName string) *sync.Mutex {
	key := fmt.Sprintf("%d|%s", gameTime.Unix(), memberName)

	r.keyMu.Lock()
	defer r.keyMu.Unlock()
	mu, ok := r.keys[key]
	if !ok {
		mu = &sync.Mutex{}
		r.keys[key] = mu
	}
	return mu
}

// Append inserts a record without consulting history. This is the bulk
// import path; interactive submissions go through AppendWithLatest.
func (r *RSVPsRepo) Append(ctx context.Context, rec models.RSVPRecord) error {
	if rec.ID == "" {
		rec.ID = r.newID(rec.RecordedAt)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rsvps (id, game_time, member_name, reply, sub_count, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GameTime.Unix(), rec.MemberName, string(rec.Reply), rec.SubCount, rec.RecordedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append rsvp: %w", err)
	}
	return nil
}

// AppendWithLatest atomically reads the previous effective record for the
// record's (game, member) pair and appends the new record. It returns the
// previous record and whether one existed.
func (r *RSVPsRepo) AppendWithLatest(ctx context.Context, rec models.RSVPRecord) (models.RSVPRecord, bool, error) {
	mu := r.keyLock(rec.GameTime, rec.MemberName)
	mu.Lock()
	defer mu.Unlock()

	prev, err := r.Latest(ctx, rec.GameTime, rec.MemberName)
	hadPrev := true
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return models.RSVPRecord{}, false, err
		}
		hadPrev = false
	}

	if err := r.Append(ctx, rec); err != nil {
		return models.RSVPRecord{}, false, err
	}
	return prev, hadPrev, nil
}

// Latest returns the effective record for a (game, member) pair, or
// ErrNotFound when the member has not responded for that game.
func (r *RSVPsRepo) Latest(ctx context.Context, gameTime time.Time, memberName string) (models.RSVPRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, game_time, member_name, reply, sub_count, recorded_at
		 FROM rsvps
		 WHERE game_time = ? AND member_name = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		gameTime.Unix(), memberName)

	rec, err := scanRecord(row)
	if err != nil {
		return models.RSVPRecord{}, mapNotFound(err)
	}
	return rec, nil
}

// ListByGame returns every record for a game, full history included,
// in append order.
func (r *RSVPsRepo) ListByGame(ctx context.Context, gameTime time.Time) ([]models.RSVPRecord, error) {
	return r.query(ctx,
		`SELECT id, game_time, member_name, reply, sub_count, recorded_at
		 FROM rsvps
		 WHERE game_time = ?
		 ORDER BY recorded_at, id`,
		gameTime.Unix())
}

// EffectiveByGame returns the effective record of every member who has
// responded for a game, ordered by member name.
func (r *RSVPsRepo) EffectiveByGame(ctx context.Context, gameTime time.Time) ([]models.RSVPRecord, error) {
	return r.query(ctx,
		`SELECT id, game_time, member_name, reply, sub_count, recorded_at
		 FROM rsvps AS r
		 WHERE game_time = ?
		   AND id = (SELECT id FROM rsvps
		             WHERE game_time = r.game_time AND member_name = r.member_name
		             ORDER BY recorded_at DESC, id DESC
		             LIMIT 1)
		 ORDER BY member_name`,
		gameTime.Unix())
}

func (r *RSVPsRepo) query(ctx context.Context, q string, args ...any) ([]models.RSVPRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RSVPRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.RSVPRecord, error) {
	var (
		rec        models.RSVPRecord
		gameUnix   int64
		recordUnix int64
		reply      string
	)
	if err := row.Scan(&rec.ID, &gameUnix, &rec.MemberName, &reply, &rec.SubCount, &recordUnix); err != nil {
		return models.RSVPRecord{}, err
	}
	rec.GameTime = time.Unix(gameUnix, 0).UTC()
	rec.RecordedAt = time.Unix(recordUnix, 0).UTC()
	rec.Reply = models.Reply(reply)
	return rec, nil
}
