package storage

import (
	"context"
	"time"

	"couple-diary/internal/models"
)

// CreateCouple links two users.
func (q *Queries) CreateCouple(ctx context.Context, user1ID, user2ID int64) (*models.Couple, error) {
	now := time.Now().UTC()
	id, err := q.insert(ctx,
		"INSERT INTO couples (user1_id, user2_id, created_at) VALUES (?, ?, ?) RETURNING id",
		user1ID, user2ID, now,
	)
	if err != nil {
		return nil, err
	}
	return &models.Couple{ID: id, User1ID: user1ID, User2ID: user2ID, CreatedAt: now}, nil
}

// CoupleForUser returns the couple the user belongs to. If legacy data put
// the user in several couples, the oldest one wins.
func (q *Queries) CoupleForUser(ctx context.Context, userID int64) (*models.Couple, error) {
	var c models.Couple
	err := q.get(ctx, &c, `
		SELECT id, user1_id, user2_id, created_at
		FROM couples
		WHERE user1_id = ? OR user2_id = ?
		ORDER BY id
		LIMIT 1
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
