package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"couple-diary/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// DBTestSuite provides a test suite for diary operations
type DBTestSuite struct {
	suite.Suite
	db     *DB
	ctx    context.Context
	alice  *models.User
	bob    *models.User
	carol  *models.User
	couple *models.Couple
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	suite.alice = suite.createUser("alice")
	suite.bob = suite.createUser("bob")
	suite.carol = suite.createUser("carol")

	couple, err := suite.db.CreateCouple(suite.ctx, suite.alice.ID, suite.bob.ID)
	require.NoError(suite.T(), err, "failed to create couple")
	suite.couple = couple
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) createUser(name string) *models.User {
	user, err := suite.db.CreateUser(suite.ctx, name, "hash-"+name)
	require.NoError(suite.T(), err, "failed to create user %s", name)
	return user
}

func (suite *DBTestSuite) createEntry(author int64, title string, at time.Time) *models.Entry {
	e := &models.Entry{CoupleID: suite.couple.ID, AuthorID: author, Title: title, CreatedAt: at}
	require.NoError(suite.T(), suite.db.CreateEntry(suite.ctx, e), "failed to create entry %s", title)
	return e
}

func (suite *DBTestSuite) TestCreateUserDuplicate() {
	_, err := suite.db.CreateUser(suite.ctx, "alice", "other")
	assert.ErrorIs(suite.T(), err, ErrDuplicate)

	u, err := suite.db.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hash-alice", u.PasswordHash)
}

func (suite *DBTestSuite) TestGetUser() {
	u, err := suite.db.GetUserByID(suite.ctx, suite.bob.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob", u.Username)

	_, err = suite.db.GetUserByUsername(suite.ctx, "nobody")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	_, err = suite.db.GetUserByID(suite.ctx, 9999)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestLockUsers() {
	err := suite.db.WithTx(suite.ctx, func(q *Queries) error {
		return q.LockUsers(suite.ctx, suite.bob.ID, suite.alice.ID)
	})
	assert.NoError(suite.T(), err)

	err = suite.db.WithTx(suite.ctx, func(q *Queries) error {
		return q.LockUsers(suite.ctx, suite.alice.ID, 9999)
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestCoupleForUser() {
	partners := map[int64]int64{suite.alice.ID: suite.bob.ID, suite.bob.ID: suite.alice.ID}
	for id, want := range partners {
		c, err := suite.db.CoupleForUser(suite.ctx, id)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), suite.couple.ID, c.ID)
		partner, ok := c.Partner(id)
		assert.True(suite.T(), ok)
		assert.Equal(suite.T(), want, partner)
	}
	_, ok := suite.couple.Partner(suite.carol.ID)
	assert.False(suite.T(), ok)

	_, err := suite.db.CoupleForUser(suite.ctx, suite.carol.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestCreateCoupleRejectsSelfPairing() {
	_, err := suite.db.CreateCouple(suite.ctx, suite.carol.ID, suite.carol.ID)
	assert.Error(suite.T(), err)
}

func (suite *DBTestSuite) TestListEntriesForUser() {
	base := time.Now().Add(-time.Hour)

	// Create test entries
	entries := []struct {
		author int64
		title  string
		offset time.Duration
	}{
		{suite.alice.ID, "Picnic", time.Minute},
		{suite.bob.ID, "Concert", 2 * time.Minute},
		{suite.alice.ID, "Museum", 3 * time.Minute},
	}
	for _, e := range entries {
		suite.createEntry(e.author, e.title, base.Add(e.offset))
	}

	result, err := suite.db.ListEntriesForUser(suite.ctx, suite.bob.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 3, "expected 3 entries")

	// Check order (latest first)
	assert.Equal(suite.T(), "Museum", result[0].Title)
	assert.Equal(suite.T(), "alice", result[0].AuthorName)
	assert.Equal(suite.T(), "Concert", result[1].Title)
	assert.Equal(suite.T(), "bob", result[1].AuthorName)
	assert.Equal(suite.T(), "Picnic", result[2].Title)

	// Carol has no couple and sees nothing.
	result, err = suite.db.ListEntriesForUser(suite.ctx, suite.carol.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), result)
}

func (suite *DBTestSuite) TestListEntriesSameTimestampNewestIDFirst() {
	now := time.Now()
	first := suite.createEntry(suite.alice.ID, "First", now)
	second := suite.createEntry(suite.alice.ID, "Second", now)

	result, err := suite.db.ListEntriesForUser(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 2)
	assert.Equal(suite.T(), second.ID, result[0].ID)
	assert.Equal(suite.T(), first.ID, result[1].ID)
}

func (suite *DBTestSuite) TestGetEntryForUser() {
	image := "/uploads/1-abc.png"
	e := &models.Entry{
		CoupleID: suite.couple.ID, AuthorID: suite.alice.ID,
		Title: "Trip", Content: "Fun day", Mood: "happy", Location: "Beach",
		ImageURL: &image,
	}
	require.NoError(suite.T(), suite.db.CreateEntry(suite.ctx, e))
	assert.NotZero(suite.T(), e.ID)
	assert.False(suite.T(), e.CreatedAt.IsZero(), "CreatedAt should default to now")

	got, err := suite.db.GetEntryForUser(suite.ctx, e.ID, suite.bob.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Trip", got.Title)
	assert.Equal(suite.T(), "Fun day", got.Content)
	assert.Equal(suite.T(), "happy", got.Mood)
	assert.Equal(suite.T(), "Beach", got.Location)
	assert.Equal(suite.T(), "alice", got.AuthorName)
	assert.Equal(suite.T(), image, got.Image())
	assert.WithinDuration(suite.T(), e.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = suite.db.GetEntryForUser(suite.ctx, e.ID, suite.carol.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound, "outsiders must not see the entry")

	_, err = suite.db.GetEntryForUser(suite.ctx, e.ID+100, suite.alice.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestUpdateAndDeleteEntry() {
	e := suite.createEntry(suite.alice.ID, "Draft", time.Now())

	e.Title = "Final"
	e.ImageURL = nil
	require.NoError(suite.T(), suite.db.UpdateEntry(suite.ctx, e))

	got, err := suite.db.GetEntryForUser(suite.ctx, e.ID, suite.alice.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Final", got.Title)
	assert.Nil(suite.T(), got.ImageURL)

	require.NoError(suite.T(), suite.db.DeleteEntry(suite.ctx, e.ID))
	_, err = suite.db.GetEntryForUser(suite.ctx, e.ID, suite.alice.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	assert.ErrorIs(suite.T(), suite.db.DeleteEntry(suite.ctx, e.ID), ErrNotFound)
	assert.ErrorIs(suite.T(), suite.db.UpdateEntry(suite.ctx, e), ErrNotFound)
}

func (suite *DBTestSuite) TestMoodCountsAndMonthRange() {
	feb := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	mar := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	for i, mood := range []string{"happy", "calm", "happy"} {
		e := &models.Entry{CoupleID: suite.couple.ID, AuthorID: suite.alice.ID, Mood: mood, CreatedAt: feb.Add(time.Duration(i) * time.Hour)}
		require.NoError(suite.T(), suite.db.CreateEntry(suite.ctx, e))
	}
	e := &models.Entry{CoupleID: suite.couple.ID, AuthorID: suite.bob.ID, Mood: "sad", CreatedAt: mar}
	require.NoError(suite.T(), suite.db.CreateEntry(suite.ctx, e))

	from := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	counts, err := suite.db.MoodCounts(suite.ctx, suite.bob.ID, from, mar)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []models.MoodCount{{Mood: "happy", Count: 2}, {Mood: "calm", Count: 1}}, counts)

	entries, err := suite.db.ListEntriesBetween(suite.ctx, suite.bob.ID, from, mar)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), entries, 3, "the March entry is outside the range")
}

func (suite *DBTestSuite) TestWithTxRollsBack() {
	errBoom := errors.New("boom")
	err := suite.db.WithTx(suite.ctx, func(q *Queries) error {
		if _, err := q.CreateUser(suite.ctx, "dave", "hash"); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(suite.T(), err, errBoom)

	_, err = suite.db.GetUserByUsername(suite.ctx, "dave")
	assert.ErrorIs(suite.T(), err, ErrNotFound, "rolled back insert must not be visible")

	err = suite.db.WithTx(suite.ctx, func(q *Queries) error {
		_, err := q.CreateUser(suite.ctx, "dave", "hash")
		return err
	})
	require.NoError(suite.T(), err)
	_, err = suite.db.GetUserByUsername(suite.ctx, "dave")
	assert.NoError(suite.T(), err)
}

func (suite *DBTestSuite) TestWithTxRethrowsPanic() {
	assert.PanicsWithValue(suite.T(), "kaboom", func() {
		_ = suite.db.WithTx(suite.ctx, func(q *Queries) error {
			_, _ = q.CreateUser(suite.ctx, "erin", "hash")
			panic("kaboom")
		})
	})

	_, err := suite.db.GetUserByUsername(suite.ctx, "erin")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	// Create a test user
	user, err := suite.db.CreateUser(suite.ctx, "testuser", "hashed-password")
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token := uuid.NewString()

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Validate the session
	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token := uuid.NewString()

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Get session info
	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)
	assert.WithinDuration(suite.T(), expiresAt, info.ExpiresAt, time.Millisecond)

	// Check that last_activity is recent
	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestExpiredSessionIsInvalid() {
	token := uuid.NewString()

	err := suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(-time.Minute))
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSessionWithInfo(suite.ctx, token)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	n, err := suite.db.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)
}

func (suite *SessionTestSuite) TestRenewSession() {
	token := uuid.NewString()

	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, token, suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	// Get original session info
	originalInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)

	// Renew the session
	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(suite.ctx, token, newExpiry)
	require.NoError(suite.T(), err)

	// Get updated session info
	updatedInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)

	// Verify last_activity was updated
	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")

	// Verify expires_at was updated
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")

	assert.ErrorIs(suite.T(), suite.db.RenewSession(suite.ctx, "unknown", newExpiry), ErrNotFound)
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token := uuid.NewString()

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Verify session exists
	_, err = suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	// Delete session
	err = suite.db.DeleteSession(suite.ctx, token)
	require.NoError(suite.T(), err)

	// Verify session is gone
	_, err = suite.db.ValidateSessionWithInfo(suite.ctx, token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
