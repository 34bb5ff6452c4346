package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"helpdeskai/pkg/domain"
	"helpdeskai/pkg/store"
)

const defaultSessionTTL = 24 * time.Hour

var defaultLeeway = 30 * time.Second

// ErrInvalidSession covers missing, malformed, expired, and revoked tokens.
var ErrInvalidSession = errors.New("invalid session")

// SessionStore persists the records mirroring issued tokens.
type SessionStore interface {
	CreateSession(domain.Session) error
	GetSessionByToken(token string) (domain.Session, bool, error)
	DeleteSessionByToken(token string) error
}

// Identity is the resolved principal of a validated session.
type Identity struct {
	UserID string
	Role   domain.UserRole
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues, validates, and revokes bearer tokens. A token is
// valid only when its HS256 signature verifies AND the mirrored store record
// still exists with an unexpired expiry, so deleting the record revokes a
// token that would otherwise verify on its own.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	store  SessionStore

	newID func() string
}

// NewSessionManager builds a manager signing with the given secret.
func NewSessionManager(secret string, ttl time.Duration, sessions SessionStore, newID func() string) (*SessionManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret required")
	}
	if sessions == nil {
		return nil, errors.New("session store required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if newID == nil {
		return nil, errors.New("id generator required")
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: defaultLeeway,
		store:  sessions,
		newID:  newID,
	}, nil
}

// Issue signs a token embedding the user and role and persists the mirror
// record.
func (m *SessionManager) Issue(userID string, role domain.UserRole) (string, domain.Session, error) {
	now := time.Now().UTC()
	expiry := now.Add(m.ttl)
	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        m.newID(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign token: %w", err)
	}
	session := domain.Session{
		ID:        claims.ID,
		UserID:    userID,
		Token:     token,
		Role:      role,
		ExpiresAt: expiry,
		CreatedAt: now,
	}
	if err := m.store.CreateSession(session); err != nil {
		return "", domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	return token, session, nil
}

// Validate applies both predicates: signature (with embedded expiry) and a
// live store record whose expiry is still in the future.
func (m *SessionManager) Validate(token string) (Identity, error) {
	claims, err := m.parseAndVerify(token)
	if err != nil {
		return Identity{}, ErrInvalidSession
	}
	record, ok, err := m.store.GetSessionByToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return Identity{}, ErrInvalidSession
	}
	if !record.ExpiresAt.After(time.Now().UTC()) {
		return Identity{}, ErrInvalidSession
	}
	return Identity{UserID: claims.Subject, Role: domain.UserRole(claims.Role)}, nil
}

// Revoke deletes the mirror record; revoking an unknown token is a no-op.
func (m *SessionManager) Revoke(token string) error {
	return m.store.DeleteSessionByToken(token)
}

func (m *SessionManager) parseAndVerify(token string) (sessionClaims, error) {
	claims := sessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("empty token")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("token subject missing")
	}
	return claims, nil
}

var _ SessionStore = (store.Store)(nil)
