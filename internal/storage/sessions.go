package storage

import (
	"context"
	"time"

	"couple-diary/internal/models"
)

// CreateSession creates a new session for a user.
func (q *Queries) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := q.exec(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.UTC(), time.Now().UTC(),
	)
	return err
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
// Unknown and expired tokens both yield ErrNotFound.
func (q *Queries) ValidateSessionWithInfo(ctx context.Context, token string) (*models.SessionInfo, error) {
	var row struct {
		models.User
		LastActivity time.Time `db:"last_activity"`
		ExpiresAt    time.Time `db:"expires_at"`
	}
	err := q.get(ctx, &row, `
		SELECT u.id, u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	user := row.User
	return &models.SessionInfo{
		User:         &user,
		LastActivity: row.LastActivity,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (q *Queries) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	return q.execOne(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now().UTC(), newExpiresAt.UTC(), token,
	)
}

// DeleteSession removes a session by token.
func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.exec(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many were dropped.
func (q *Queries) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
