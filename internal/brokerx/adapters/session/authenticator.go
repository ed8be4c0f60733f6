package session

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// ErrRevoked is returned for tokens whose session is on the revocation list.
var ErrRevoked = errors.New("session revoked")

// ErrSubjectMismatch is returned when a token's subject doesn't own its session.
var ErrSubjectMismatch = errors.New("token subject does not own the session")

// Sessions is the part of the auth service the authenticator consults.
type Sessions interface {
	CheckSession(ctx context.Context, sessionID string) (domain.Session, error)
	SessionByToken(ctx context.Context, token string) (domain.Session, error)
	GrantedScopes() []string
}

// Authenticator resolves bearer tokens of either kind into claims. JWTs
// are verified, checked against the revocation list and then against the
// session row; opaque tokens are looked up by fingerprint.
type Authenticator struct {
	Verifier    jwtx.Verifier
	Revocations RevocationList
	Sessions    Sessions
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (jwtx.Claims, error) {
	if a.Verifier != nil && looksLikeJWT(token) {
		return a.authenticateJWT(ctx, token)
	}

	sess, err := a.Sessions.SessionByToken(ctx, token)
	if err != nil {
		return jwtx.Claims{}, err
	}
	return a.claimsFor(sess), nil
}

func (a *Authenticator) authenticateJWT(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := a.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if a.Revocations != nil {
		revoked, err := a.Revocations.IsRevoked(ctx, claims.SID)
		if err != nil {
			return jwtx.Claims{}, err
		}
		if revoked {
			return jwtx.Claims{}, ErrRevoked
		}
	}

	sess, err := a.Sessions.CheckSession(ctx, claims.SID)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if sess.ClientID != claims.Subject {
		return jwtx.Claims{}, ErrSubjectMismatch
	}
	return claims, nil
}

func (a *Authenticator) claimsFor(sess domain.Session) jwtx.Claims {
	return jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.ClientID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		SID:    sess.ID,
		Scopes: a.Sessions.GrantedScopes(),
		AMR:    sess.AMR,
	}
}

// JWTs are three base64url segments; opaque tokens never contain a dot.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
