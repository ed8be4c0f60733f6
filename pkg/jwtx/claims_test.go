package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "brokerx"}}

	require.NoError(t, c.ValidateIssuer("brokerx"))
	require.NoError(t, c.ValidateIssuer(""))
	require.ErrorIs(t, c.ValidateIssuer("someone-else"), jwtx.ErrIssuer)
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Audience: []string{"brokerx-api", "brokerx-web"}}}

	tests := []struct {
		name     string
		expected []string
		wantErr  error
	}{
		{"single match", []string{"brokerx-api"}, nil},
		{"any match", []string{"foo", "brokerx-web"}, nil},
		{"no match", []string{"admin"}, jwtx.ErrAudience},
		{"nothing expected", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateAudience(tt.expected)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateTimes(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		claims  jwtx.Claims
		leeway  time.Duration
		wantErr error
	}{
		{
			name:   "valid",
			claims: jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}},
		},
		{
			name:    "expired",
			claims:  jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}},
			wantErr: jwtx.ErrExpired,
		},
		{
			name:   "expired within leeway",
			claims: jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second))}},
			leeway: 30 * time.Second,
		},
		{
			name:    "not yet valid",
			claims:  jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{NotBefore: jwt.NewNumericDate(now.Add(time.Minute))}},
			wantErr: jwtx.ErrNotYetValid,
		},
		{
			name: "no exp or nbf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.claims.ValidateTimes(now, tt.leeway)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewSessionClaims(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c := jwtx.NewSessionClaims(jwtx.SessionClaimsParams{
		ClientID:  "01JCLIENT",
		SessionID: "01JSESSION",
		Scopes:    []string{"deposit:write"},
		AMR:       []string{"pwd", "otp"},
		Issuer:    "brokerx",
		Now:       now,
	})

	require.Equal(t, "01JCLIENT", c.Subject)
	require.Equal(t, "01JSESSION", c.SID)
	require.Equal(t, now.Add(jwtx.DefaultSessionTTL), c.ExpiresAt.Time)
	require.NotEmpty(t, c.ID)
	require.True(t, c.HasScope("deposit:write"))
	require.False(t, c.HasScope("account:admin"))
}
