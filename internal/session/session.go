// Package session issues and verifies the signed tokens that protect the
// write endpoints. Tokens are HS256 JWTs; revocation is an in-memory jti set,
// enough for a single-instance deployment.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleClerk Role = "clerk"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClerk
}

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenRevoked = errors.New("session token revoked")
	ErrInvalidRole  = errors.New("invalid role")
)

// Session is the verified identity attached to a request.
type Session struct {
	UserID string
	Role   Role
}

type claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs, verifies, and revokes session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

// Issue creates a signed token for the user.
func (m *Manager) Issue(userID string, role Role) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns the session it carries.
func (m *Manager) Verify(tokenString string) (Session, error) {
	c, err := m.parse(tokenString)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	_, revoked := m.revoked[c.ID]
	m.mu.Unlock()
	if revoked {
		return Session{}, ErrTokenRevoked
	}

	return Session{UserID: c.UserID, Role: Role(c.Role)}, nil
}

// Revoke invalidates a token for the remainder of its lifetime. Revoking an
// already invalid token is an error; revoking twice is not.
func (m *Manager) Revoke(tokenString string) error {
	c, err := m.parse(tokenString)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[c.ID] = c.ExpiresAt.Time
	m.purgeLocked()
	return nil
}

func (m *Manager) parse(tokenString string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !Role(c.Role).Valid() {
		return nil, ErrInvalidRole
	}
	return c, nil
}

// purgeLocked drops revocation entries for tokens that have expired anyway.
// Caller holds the mutex.
func (m *Manager) purgeLocked() {
	now := time.Now()
	for jti, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, jti)
		}
	}
}
