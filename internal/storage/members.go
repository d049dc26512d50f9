package storage

import (
	"context"
	"database/sql"
	"fmt"

	"hoops-sms/internal/models"
)

// MembersRepo reads and seeds the roster.
type MembersRepo struct {
	db *sql.DB
}

// FindByPhone returns the member registered under the given phone number.
// Returns ErrNotFound when the phone does not map to exactly one member;
// the UNIQUE constraint on phone rules out ambiguity.
func (r *MembersRepo) FindByPhone(ctx context.Context, phone string) (models.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, phone, admin FROM members WHERE phone = ?`, phone)

	var m models.Member
	if err := row.Scan(&m.Name, &m.Phone, &m.Admin); err != nil {
		return models.Member{}, mapNotFound(err)
	}
	return m, nil
}

// List returns the whole roster ordered by name.
func (r *MembersRepo) List(ctx context.Context) ([]models.Member, error) {
	return r.list(ctx, `SELECT name, phone, admin FROM members ORDER BY name`)
}

// ListAdmins returns the admin subset of the roster ordered by name.
func (r *MembersRepo) ListAdmins(ctx context.Context) ([]models.Member, error) {
	return r.list(ctx, `SELECT name, phone, admin FROM members WHERE admin = 1 ORDER BY name`)
}

func (r *MembersRepo) list(ctx context.Context, query string) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.Name, &m.Phone, &m.Admin); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Count returns the number of roster entries.
func (r *MembersRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a roster entry. Members are provisioned at setup time and
// immutable afterwards, so there is no update path.
func (r *MembersRepo) Create(ctx context.Context, m models.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (name, phone, admin) VALUES (?, ?, ?)`,
		m.Name, m.Phone, m.Admin)
	if err != nil {
		return fmt.Errorf("failed to create member %q: %w", m.Name, err)
	}
	return nil
}
