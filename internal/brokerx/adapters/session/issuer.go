// Package session issues and authenticates the bearer tokens handed out
// when a session opens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
)

// DefaultTokenLifetime bounds how long a JWT verifies. The session row is
// what renewal extends, so the token outlives a single session TTL.
const DefaultTokenLifetime = 24 * time.Hour

// JWTIssuer signs EdDSA session tokens carrying the session id in "sid".
type JWTIssuer struct {
	Keys        *jwtx.KeyManager
	Issuer      string
	Audience    []string
	Lifetime    time.Duration
	Revocations RevocationList
	Now         func() time.Time
}

func (i *JWTIssuer) Type() domain.TokenType { return domain.TokenJWT }

func (i *JWTIssuer) Issue(_ context.Context, req service.TokenRequest) (service.IssuedToken, error) {
	signer := i.Keys.GetSigner()
	if signer == nil {
		return service.IssuedToken{}, errors.New("no signing key loaded")
	}
	claims := jwtx.NewSessionClaims(jwtx.SessionClaimsParams{
		ClientID:  req.Session.ClientID,
		SessionID: req.Session.ID,
		Scopes:    req.Scopes,
		AMR:       req.Session.AMR,
		Email:     req.Email,
		Name:      req.Name,
		Issuer:    i.Issuer,
		Audience:  i.Audience,
		TTL:       i.lifetime(),
		Now:       req.Session.IssuedAt,
	})
	tok, err := signer.Sign(claims)
	if err != nil {
		return service.IssuedToken{}, fmt.Errorf("sign session token: %w", err)
	}
	return service.IssuedToken{Token: tok}, nil
}

// Revoke blacklists the session for as long as any of its tokens verify.
func (i *JWTIssuer) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if i.Revocations == nil {
		return nil
	}
	ttl := max(until.Sub(i.now()), i.lifetime())
	return i.Revocations.Revoke(ctx, sessionID, ttl)
}

func (i *JWTIssuer) lifetime() time.Duration {
	if i.Lifetime <= 0 {
		return DefaultTokenLifetime
	}
	return i.Lifetime
}

func (i *JWTIssuer) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}

// OpaqueIssuer hands out random tokens. Only their fingerprint is stored,
// and revocation lives on the session row.
type OpaqueIssuer struct{}

func (OpaqueIssuer) Type() domain.TokenType { return domain.TokenOpaque }

func (OpaqueIssuer) Issue(context.Context, service.TokenRequest) (service.IssuedToken, error) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return service.IssuedToken{}, err
	}
	return service.IssuedToken{Token: tok, Hash: cryptox.FingerprintToken(tok)}, nil
}

func (OpaqueIssuer) Revoke(context.Context, string, time.Time) error { return nil }
