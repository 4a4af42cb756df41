package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"couple-diary/internal/models"
	"couple-diary/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "couple-diary"

// ErrInvalidSession is returned for cookies that fail signature checks,
// have expired, or reference a session the server no longer holds.
var ErrInvalidSession = errors.New("auth: invalid session")

// SessionStore persists server-side sessions. Unknown or expired tokens are
// reported as storage.ErrNotFound; any other error is a store failure.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	ValidateSessionWithInfo(ctx context.Context, token string) (*models.SessionInfo, error)
	RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Cookie is a signed session reference ready to be sent to the browser.
type Cookie struct {
	Value     string
	ExpiresAt time.Time
}

// SessionManager issues and validates sessions. The server keeps the session
// row; the browser only holds an HS256-signed token whose ID is the opaque
// session token.
//
// Sessions roll: once a session is past half of its lifetime, validating it
// extends it by a full duration.
type SessionManager struct {
	store    SessionStore
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewSessionManager creates a SessionManager signing with secret.
func NewSessionManager(store SessionStore, secret []byte, duration time.Duration) *SessionManager {
	return &SessionManager{store: store, secret: secret, duration: duration, now: time.Now}
}

// Duration returns the lifetime of a fresh or renewed session.
func (m *SessionManager) Duration() time.Duration {
	return m.duration
}

// Issue starts a new session for userID.
func (m *SessionManager) Issue(ctx context.Context, userID int64) (*Cookie, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	expiresAt := m.now().Add(m.duration)
	if err := m.store.CreateSession(ctx, token, userID, expiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return m.sign(token, userID, expiresAt)
}

// Validate resolves a cookie value to its user. When the session was renewed
// the returned Cookie is non-nil and should replace the browser's copy.
func (m *SessionManager) Validate(ctx context.Context, value string) (*models.User, *Cookie, error) {
	claims, err := m.parse(value)
	if err != nil {
		return nil, nil, err
	}

	info, err := m.store.ValidateSessionWithInfo(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if strconv.FormatInt(info.User.ID, 10) != claims.Subject {
		return nil, nil, ErrInvalidSession
	}

	now := m.now()
	if info.ExpiresAt.Sub(now) >= m.duration/2 {
		return info.User, nil, nil
	}

	newExpiresAt := now.Add(m.duration)
	if err := m.store.RenewSession(ctx, claims.ID, newExpiresAt); err != nil {
		// Renewal is opportunistic; the current session is still good.
		return info.User, nil, nil
	}
	cookie, err := m.sign(claims.ID, info.User.ID, newExpiresAt)
	if err != nil {
		return info.User, nil, nil
	}
	return info.User, cookie, nil
}

// Revoke deletes the session referenced by value. Expired cookies are still
// accepted so their rows can be dropped.
func (m *SessionManager) Revoke(ctx context.Context, value string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return m.store.DeleteSession(ctx, claims.ID)
}

func (m *SessionManager) sign(token string, userID int64, expiresAt time.Time) (*Cookie, error) {
	claims := jwt.RegisteredClaims{
		ID:        token,
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Cookie{Value: signed, ExpiresAt: expiresAt}, nil
}

func (m *SessionManager) parse(value string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func (m *SessionManager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}
