package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for tokens that are malformed, expired,
// wrongly signed or revoked.
var ErrInvalidSession = errors.New("invalid session")

const sessionIssuer = "mail-agent"

// Identity is the authenticated caller carried in a session.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SessionManager issues and verifies short-lived HS256 session tokens and
// keeps a revocation set of logged-out token ids until they expire.
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked sync.Map // jti -> expiry time.Time
}

// NewSessionManager creates a manager signing with secret. An empty secret
// is replaced by a random one, which invalidates sessions on restart.
func NewSessionManager(secret []byte, ttl time.Duration) (*SessionManager, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionManager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a session for id.
func (m *SessionManager) Issue(id Identity) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: id.Email,
		Name:  id.Name,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (m *SessionManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Verify returns the identity of a valid, unrevoked token.
func (m *SessionManager) Verify(tokenString string) (*Identity, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if _, revoked := m.revoked.Load(claims.ID); revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidSession)
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Revoke invalidates a token until its natural expiry.
func (m *SessionManager) Revoke(tokenString string) error {
	claims, err := m.parse(tokenString)
	if err != nil {
		return err
	}
	m.revoked.Store(claims.ID, claims.ExpiresAt.Time)
	m.prune()
	return nil
}

// prune drops revocations whose tokens have expired anyway.
func (m *SessionManager) prune() {
	now := m.now()
	m.revoked.Range(func(k, v any) bool {
		if exp, ok := v.(time.Time); ok && now.After(exp) {
			m.revoked.Delete(k)
		}
		return true
	})
}
