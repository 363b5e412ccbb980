// Package session replaces a process-wide "logged in" flag with explicit,
// expiring sessions carried as signed tokens.
package session

import (
	"errors"
	"time"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "mealcoach"

// Session is an authenticated session handed to every journal operation
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Check fails when the session is missing or expired at now
func (s *Session) Check(now time.Time) error {
	if s == nil {
		return &models.SessionError{Reason: "not logged in"}
	}
	if !now.Before(s.ExpiresAt) {
		return &models.SessionError{Reason: "session expired"}
	}
	return nil
}

// Manager checks the shared password and issues and verifies tokens
type Manager struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewManager needs an HMAC secret and a bcrypt hash of the journal password
func NewManager(secret, passwordHash string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, &models.ConfigError{Key: "auth.session_secret", Reason: "not set"}
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, &models.ConfigError{Key: "auth.password_hash", Reason: "not a bcrypt hash"}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Login starts a session when password matches
func (m *Manager) Login(password string) (*Session, error) {
	if err := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)); err != nil {
		return nil, &models.SessionError{Reason: "wrong password"}
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	return &Session{ID: claims.ID, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify turns a token back into a session
func (m *Manager) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, &models.SessionError{Reason: "not logged in"}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, &models.SessionError{Reason: "session expired"}
	}
	if err != nil {
		return nil, &models.SessionError{Reason: "invalid token"}
	}

	return &Session{ID: claims.ID, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
