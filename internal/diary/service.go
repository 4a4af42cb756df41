// Package diary implements the couple diary: accounts, couples, and the
// entries a couple shares.
//
// Every entry operation made on behalf of a user goes through the same
// ownership guard, so an entry is only ever visible to the two members of
// the couple it belongs to.
package diary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"couple-diary/internal/attachments"
	"couple-diary/internal/auth"
	"couple-diary/internal/models"
	"couple-diary/internal/storage"
)

// Upload is a file sent along with an entry form.
type Upload struct {
	Filename string
	Body     io.Reader
}

// EntryInput holds the user-editable fields of an entry.
type EntryInput struct {
	Title    string
	Content  string
	Mood     string
	Location string
}

// Service holds the diary's dependencies.
type Service struct {
	db     *storage.DB
	files  attachments.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(db *storage.DB, files attachments.Store, logger *slog.Logger) *Service {
	return &Service{db: db, files: files, logger: logger, now: time.Now}
}

// SignUp registers a new user.
func (s *Service) SignUp(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(q *storage.Queries) error {
		_, err := q.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			return fmt.Errorf("username %q: %w", username, ErrConflict)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		user, err = q.CreateUser(ctx, username, hash)
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("username %q: %w", username, ErrConflict)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Pair links two users into a couple. Each user may belong to one couple only.
func (s *Service) Pair(ctx context.Context, usernameA, usernameB string) (*models.Couple, error) {
	usernameA, usernameB = strings.TrimSpace(usernameA), strings.TrimSpace(usernameB)
	if usernameA == usernameB {
		return nil, fmt.Errorf("%w: a user cannot be paired with themselves", ErrValidation)
	}

	var couple *models.Couple
	err := s.db.WithTx(ctx, func(q *storage.Queries) error {
		names := []string{usernameA, usernameB}
		ids := make([]int64, 0, 2)
		for _, name := range names {
			u, err := q.GetUserByUsername(ctx, name)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %q: %w", name, ErrNotFound)
			}
			if err != nil {
				return err
			}
			ids = append(ids, u.ID)
		}

		// Concurrent pairings of either user wait here until this one commits.
		if err := q.LockUsers(ctx, ids...); err != nil {
			return fmt.Errorf("lock users: %w", err)
		}

		for i, id := range ids {
			_, err := q.CoupleForUser(ctx, id)
			switch {
			case err == nil:
				return fmt.Errorf("user %q is already paired: %w", names[i], ErrConflict)
			case !errors.Is(err, storage.ErrNotFound):
				return err
			}
		}

		var err error
		couple, err = q.CreateCouple(ctx, ids[0], ids[1])
		return err
	})
	if err != nil {
		return nil, err
	}
	return couple, nil
}

// Partner returns the user the caller shares a diary with.
func (s *Service) Partner(ctx context.Context, userID int64) (*models.User, error) {
	couple, err := s.db.CoupleForUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCouple
	}
	if err != nil {
		return nil, fmt.Errorf("resolve couple: %w", err)
	}
	partnerID, ok := couple.Partner(userID)
	if !ok {
		return nil, ErrNoCouple
	}
	partner, err := s.db.GetUserByID(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("get partner: %w", err)
	}
	return partner, nil
}

// List returns all entries visible to the user, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Entry, error) {
	entries, err := s.db.ListEntriesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Get returns a single entry visible to the user.
func (s *Service) Get(ctx context.Context, userID, entryID int64) (*models.Entry, error) {
	return authorize(ctx, s.db.Queries, userID, entryID)
}

// authorize loads an entry on behalf of a user. Entries of other couples are
// reported as missing.
func authorize(ctx context.Context, q *storage.Queries, userID, entryID int64) (*models.Entry, error) {
	e, err := q.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
		}
		return nil, fmt.Errorf("get entry %d: %w", entryID, err)
	}
	return e, nil
}

// Create adds an entry to the user's couple. The upload, if any, is stored
// only once the couple is known, and removed again if the insert fails.
func (s *Service) Create(ctx context.Context, userID int64, in EntryInput, upload *Upload) (*models.Entry, error) {
	if err := checkUpload(upload); err != nil {
		return nil, err
	}

	var saved string
	entry := &models.Entry{
		AuthorID: userID,
		Title:    in.Title,
		Content:  in.Content,
		Mood:     in.Mood,
		Location: in.Location,
	}

	err := s.db.WithTx(ctx, func(q *storage.Queries) error {
		couple, err := q.CoupleForUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoCouple
		}
		if err != nil {
			return fmt.Errorf("resolve couple: %w", err)
		}
		entry.CoupleID = couple.ID

		if upload != nil {
			saved, err = s.save(ctx, upload)
			if err != nil {
				return err
			}
			entry.ImageURL = &saved
		}

		entry.CreatedAt = s.now()
		if err := q.CreateEntry(ctx, entry); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	s.logger.InfoContext(ctx, "entry created", "entry_id", entry.ID, "couple_id", entry.CoupleID, "with_image", saved != "")
	return entry, nil
}

// Update replaces the text fields of an entry. removeImage drops the current
// photo and ignores any new upload; otherwise a new upload replaces it;
// otherwise it is kept.
func (s *Service) Update(ctx context.Context, userID, entryID int64, in EntryInput, upload *Upload, removeImage bool) (*models.Entry, error) {
	if err := checkUpload(upload); err != nil {
		return nil, err
	}

	var (
		saved    string
		previous string
		entry    *models.Entry
	)

	err := s.db.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		entry, err = authorize(ctx, q, userID, entryID)
		if err != nil {
			return err
		}

		previous = entry.Image()
		switch {
		case removeImage && entry.HasImage():
			entry.ImageURL = nil
		case upload != nil:
			saved, err = s.save(ctx, upload)
			if err != nil {
				return err
			}
			entry.ImageURL = &saved
		}

		entry.Title = in.Title
		entry.Content = in.Content
		entry.Mood = in.Mood
		entry.Location = in.Location

		if err := q.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("update entry %d: %w", entryID, err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	if previous != "" && previous != entry.Image() {
		s.discard(ctx, previous)
	}
	return entry, nil
}

// Delete removes an entry and its photo.
func (s *Service) Delete(ctx context.Context, userID, entryID int64) error {
	var image string
	err := s.db.WithTx(ctx, func(q *storage.Queries) error {
		entry, err := authorize(ctx, q, userID, entryID)
		if err != nil {
			return err
		}
		image = entry.Image()

		if err := q.DeleteEntry(ctx, entryID); err != nil {
			return fmt.Errorf("delete entry %d: %w", entryID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(ctx, image)
	s.logger.InfoContext(ctx, "entry deleted", "entry_id", entryID)
	return nil
}

// OpenAttachment returns a stored photo by name.
func (s *Service) OpenAttachment(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.files.Open(ctx, name)
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) || errors.Is(err, attachments.ErrInvalidName) {
			return nil, fmt.Errorf("attachment %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return rc, nil
}

func checkUpload(upload *Upload) error {
	if upload == nil {
		return nil
	}
	if _, err := attachments.CheckExtension(upload.Filename); err != nil {
		return fmt.Errorf("%w: photo must be a jpg, png, gif or webp image", ErrValidation)
	}
	return nil
}

func (s *Service) save(ctx context.Context, upload *Upload) (string, error) {
	ref, err := s.files.Save(ctx, upload.Filename, upload.Body)
	if err != nil {
		if errors.Is(err, attachments.ErrUnsupportedType) {
			return "", fmt.Errorf("%w: photo must be a jpg, png, gif or webp image", ErrValidation)
		}
		return "", fmt.Errorf("save attachment: %w", err)
	}
	return ref, nil
}

// discard removes a stored file that no entry references any more.
func (s *Service) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.files.Remove(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.WarnContext(ctx, "failed to remove attachment", "ref", ref, "error", err)
	}
}
