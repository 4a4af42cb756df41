package storage

import (
	"context"
	"time"

	"couple-diary/internal/models"
)

const entrySelect = `
	SELECT d.id, d.couple_id, d.author_id, u.username AS author_name,
		d.title, d.content, d.mood, d.location, d.image_url, d.created_at
	FROM diary_entries d
	JOIN users u ON d.author_id = u.id
	JOIN couples c ON d.couple_id = c.id
`

// CreateEntry inserts a new diary entry and sets its ID. A zero CreatedAt is
// replaced with the current time.
func (q *Queries) CreateEntry(ctx context.Context, e *models.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	id, err := q.insert(ctx, `
		INSERT INTO diary_entries (couple_id, author_id, title, content, mood, location, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		e.CoupleID, e.AuthorID, e.Title, e.Content, e.Mood, e.Location, e.ImageURL, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// GetEntryForUser retrieves an entry by ID, provided it belongs to a couple
// the user is a member of. Otherwise ErrNotFound is returned.
func (q *Queries) GetEntryForUser(ctx context.Context, id, userID int64) (*models.Entry, error) {
	var e models.Entry
	err := q.get(ctx, &e, entrySelect+"WHERE d.id = ? AND (c.user1_id = ? OR c.user2_id = ?)", id, userID, userID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntriesForUser retrieves the entries of every couple the user belongs
// to, newest first.
func (q *Queries) ListEntriesForUser(ctx context.Context, userID int64) ([]models.Entry, error) {
	var entries []models.Entry
	err := q.selectAll(ctx, &entries,
		entrySelect+"WHERE c.user1_id = ? OR c.user2_id = ? ORDER BY d.created_at DESC, d.id DESC",
		userID, userID,
	)
	return entries, err
}

// ListEntriesBetween is ListEntriesForUser restricted to entries created in [from, to).
func (q *Queries) ListEntriesBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Entry, error) {
	var entries []models.Entry
	err := q.selectAll(ctx, &entries,
		entrySelect+`WHERE (c.user1_id = ? OR c.user2_id = ?) AND d.created_at >= ? AND d.created_at < ?
		ORDER BY d.created_at DESC, d.id DESC`,
		userID, userID, from.UTC(), to.UTC(),
	)
	return entries, err
}

// MoodCounts returns how many entries of the user's couples were written with
// each mood in [from, to), most frequent first.
func (q *Queries) MoodCounts(ctx context.Context, userID int64, from, to time.Time) ([]models.MoodCount, error) {
	var counts []models.MoodCount
	err := q.selectAll(ctx, &counts, `
		SELECT d.mood AS mood, COUNT(*) AS total
		FROM diary_entries d
		JOIN couples c ON d.couple_id = c.id
		WHERE (c.user1_id = ? OR c.user2_id = ?) AND d.created_at >= ? AND d.created_at < ?
		GROUP BY d.mood
		ORDER BY total DESC, mood
	`, userID, userID, from.UTC(), to.UTC())
	return counts, err
}

// UpdateEntry overwrites the editable fields of an entry.
func (q *Queries) UpdateEntry(ctx context.Context, e *models.Entry) error {
	return q.execOne(ctx,
		"UPDATE diary_entries SET title = ?, content = ?, mood = ?, location = ?, image_url = ? WHERE id = ?",
		e.Title, e.Content, e.Mood, e.Location, e.ImageURL, e.ID,
	)
}

// DeleteEntry removes an entry by ID.
func (q *Queries) DeleteEntry(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM diary_entries WHERE id = ?", id)
}
