package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer token attached to REST calls and to the push
// channel handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Refresher is implemented by token sources that can obtain a newer token
// after the push channel rejected the current one.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically from AUTH_TOKEN.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// TokenStore persists the token between runs.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
}

// StoredToken caches the token from a TokenStore. Refresh re-reads the store
// so a login performed by another console process is picked up; Set is
// called after a login through this process.
type StoredToken struct {
	Store    TokenStore
	Fallback string

	mu     sync.Mutex
	cached string
}

func (s *StoredToken) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	return s.Refresh(ctx)
}

func (s *StoredToken) Refresh(ctx context.Context) (string, error) {
	tok := ""
	if s.Store != nil {
		v, err := s.Store.LoadToken(ctx)
		if err != nil {
			return "", err
		}
		tok = v
	}
	if tok == "" {
		tok = s.Fallback
	}
	if tok == "" {
		return "", ErrNoToken
	}
	s.mu.Lock()
	s.cached = tok
	s.mu.Unlock()
	return tok, nil
}

// Set stores a freshly issued token.
func (s *StoredToken) Set(ctx context.Context, token string) error {
	if s.Store != nil {
		if err := s.Store.SaveToken(ctx, token); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.cached = token
	s.mu.Unlock()
	return nil
}

// AccessToken is a signed HS256 token with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token carrying sub, role, name, exp and iat. The
// backend issues real tokens; this is used by local tooling and tests.
func NewAccessToken(secret string, id Identity, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  id.UserID,
		"role": string(id.Role),
		"name": id.Name,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
