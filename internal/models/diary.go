package models

import "time"

// Entry represents a diary entry shared by the two members of a couple.
type Entry struct {
	ID         int64     `db:"id" json:"id"`
	CoupleID   int64     `db:"couple_id" json:"couple_id"`
	AuthorID   int64     `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Title      string    `db:"title" json:"title"`
	Content    string    `db:"content" json:"content"`
	Mood       string    `db:"mood" json:"mood"`
	Location   string    `db:"location" json:"location"`
	ImageURL   *string   `db:"image_url" json:"image_url"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HasImage reports whether a photo is attached to the entry.
func (e Entry) HasImage() bool {
	return e.ImageURL != nil && *e.ImageURL != ""
}

// Image returns the attached photo reference, or "" if there is none.
func (e Entry) Image() string {
	if e.ImageURL == nil {
		return ""
	}
	return *e.ImageURL
}

// User represents a user account.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Couple links the two users whose entries are mutually visible.
type Couple struct {
	ID        int64     `db:"id" json:"id"`
	User1ID   int64     `db:"user1_id" json:"user1_id"`
	User2ID   int64     `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Partner returns the other member of the couple. ok is false when userID
// is not a member.
func (c *Couple) Partner(userID int64) (id int64, ok bool) {
	switch userID {
	case c.User1ID:
		return c.User2ID, true
	case c.User2ID:
		return c.User1ID, true
	}
	return 0, false
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// MoodCount is the number of entries written with a given mood.
type MoodCount struct {
	Mood  string `db:"mood"`
	Count int    `db:"total"`
}
