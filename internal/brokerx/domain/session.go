package domain

import (
	"slices"
	"time"
)

type TokenType string

const (
	TokenJWT    TokenType = "jwt"
	TokenOpaque TokenType = "opaque"
)

// DefaultSessionTTL is the lifetime of a fresh or renewed session.
const DefaultSessionTTL = 2 * time.Hour

// Session is one successful authentication. Expiry is evaluated lazily.
type Session struct {
	ID        string
	ClientID  string
	TokenType TokenType
	TokenHash string // fingerprint of opaque tokens, empty for JWTs
	AMR       []string
	IP        string
	Device    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// NewSessionParams describe a session to open.
type NewSessionParams struct {
	ID        string
	ClientID  string
	TokenType TokenType
	AMR       []string
	IP        string
	Device    string
	TTL       time.Duration
	Now       time.Time
}

// NewSession issues a session valid for TTL from Now.
func NewSession(p NewSessionParams) Session {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	tt := p.TokenType
	if tt == "" {
		tt = TokenJWT
	}
	now := p.Now.UTC()
	return Session{
		ID:        p.ID,
		ClientID:  p.ClientID,
		TokenType: tt,
		AMR:       slices.Clone(p.AMR),
		IP:        p.IP,
		Device:    p.Device,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired is true once revoked or at/after the expiry.
func (s Session) IsExpired(now time.Time) bool {
	return s.Revoked || !now.Before(s.ExpiresAt)
}

// Check returns why the session can't be used at now, or nil.
func (s Session) Check(now time.Time) error {
	switch {
	case s.Revoked:
		return ErrSessionRevoked
	case s.IsExpired(now):
		return ErrSessionExpired
	}
	return nil
}

// Renew pushes the expiry to now+ttl. Revoked sessions stay dead.
func (s *Session) Renew(ttl time.Duration, now time.Time) error {
	if s.Revoked {
		return ErrSessionRevoked
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.ExpiresAt = now.UTC().Add(ttl)
	return nil
}

// Revoke is terminal. It reports false when already revoked.
func (s *Session) Revoke(now time.Time) bool {
	if s.Revoked {
		return false
	}
	at := now.UTC()
	s.Revoked = true
	s.RevokedAt = &at
	return true
}
