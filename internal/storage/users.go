package storage

import (
	"context"
	"time"

	"couple-diary/internal/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = "id, username, password_hash, created_at"

// CreateUser creates a new user with the given username and password hash.
// A taken username yields ErrDuplicate.
func (q *Queries) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	id, err := q.insert(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id",
		username, passwordHash, now,
	)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetUserByID retrieves a user by ID.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE username = ?", username); err != nil {
		return nil, err
	}
	return &u, nil
}

// LockUsers holds row locks on the given users until the surrounding
// transaction ends, so concurrent writers touching the same users queue up.
// SQLite already serialises writers and only gets the existence check.
// Any missing user yields ErrNotFound.
func (q *Queries) LockUsers(ctx context.Context, ids ...int64) error {
	query, args, err := sqlx.In("SELECT id FROM users WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	if q.q.DriverName() == DriverPostgres {
		query += " FOR UPDATE"
	}

	var locked []int64
	if err := q.selectAll(ctx, &locked, query, args...); err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	if len(locked) != len(want) {
		return ErrNotFound
	}
	return nil
}
