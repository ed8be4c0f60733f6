package brokersdk

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

// Session performs authenticated calls with a bearer token.
type Session struct {
	client *SDKClient

	mu    sync.RWMutex
	token string
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	return call[MeResponse](ctx, s.client, http.MethodGet, "/v1/me", s.Token(), nil, nil, http.StatusOK)
}

// Renew extends the session's expiry. The token itself is unchanged.
func (s *Session) Renew(ctx context.Context) (*SessionResponse, error) {
	return call[SessionResponse](ctx, s.client, http.MethodPost, "/v1/auth/renew", s.Token(), nil, nil, http.StatusOK)
}

// Logout revokes the session. Later calls with this Session fail.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.client.do(ctx, http.MethodPost, "/v1/auth/logout", s.Token(), nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func (s *Session) GetMFAPolicy(ctx context.Context) (*MFAPolicyResponse, error) {
	return call[MFAPolicyResponse](ctx, s.client, http.MethodGet, "/v1/me/mfa", s.Token(), nil, nil, http.StatusOK)
}

// SetMFAPolicy creates or changes the MFA policy.
func (s *Session) SetMFAPolicy(ctx context.Context, req SetMFARequest) (*MFAPolicyResponse, error) {
	return call[MFAPolicyResponse](ctx, s.client, http.MethodPut, "/v1/me/mfa", s.Token(), req, nil, http.StatusOK)
}

func (s *Session) DisableMFAPolicy(ctx context.Context) error {
	resp, err := s.client.do(ctx, http.MethodDelete, "/v1/me/mfa", s.Token(), nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Deposit requests funds into accountID. Replaying the same idempotency key
// returns the original transaction's current state.
func (s *Session) Deposit(ctx context.Context, accountID string, req DepositRequest) (*DepositResponse, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/deposit"
	return call[DepositResponse](ctx, s.client, http.MethodPost, path, s.Token(), req, headers, http.StatusAccepted)
}

// Ledger lists journal entries for accountID, newest first.
func (s *Session) Ledger(ctx context.Context, accountID string) (*LedgerResponse, error) {
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/ledger"
	return call[LedgerResponse](ctx, s.client, http.MethodGet, path, s.Token(), nil, nil, http.StatusOK)
}
