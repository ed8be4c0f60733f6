package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/otp"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/session"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	brokerhttp "github.com/aussiebroadwan/brokerx/internal/brokerx/http"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store/drivers/sqlite"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer    = "http://brokerx.test"
	webhookSecret = "whsec"
	password      = "correct horse"
)

func slogDiscard() *slog.Logger { return slog.New(slog.DiscardHandler) }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type server struct {
	t      *testing.T
	router *brokerhttp.Router
	signup *service.SignupService
	auth   *service.AuthService
	outbox *otp.Outbox
}

type option func(*brokerhttp.Router)

func newServer(t *testing.T, opts ...option) *server {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	rt := service.NewRuntime()
	rt.Metrics = metrics
	rt.Tasks = service.NewTaskGroup(4, metrics)
	t.Cleanup(func() {
		rt.Tasks.Wait()
		_ = st.Close()
	})

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)
	revocations := session.NewMemoryRevocationList(nil)
	outbox := otp.NewOutbox(0, nil)

	auth := &service.AuthService{
		Runtime: rt,
		Store:   st,
		OTP:     outbox,
		Tokens:  &session.JWTIssuer{Keys: km, Issuer: testIssuer, Revocations: revocations},
	}
	signup := &service.SignupService{Runtime: rt, Store: st, OTP: outbox}

	authn := &session.Authenticator{Verifier: km.Verifier, Revocations: revocations, Sessions: auth}
	r := brokerhttp.NewRouter(km.KeySet, authn, "test", st, slogDiscard())
	r.SignupService = signup
	r.AuthService = auth
	r.MFAService = &service.MFAService{Runtime: rt, Store: st, Issuer: "BrokerX"}
	r.AccountService = &service.AccountService{Runtime: rt, Store: st}
	r.DepositService = &service.DepositService{Runtime: rt, Store: st, WebhookSecret: webhookSecret}
	r.Outbox = outbox
	r.DevEndpoints = true
	r.Gatherer = reg
	for _, o := range opts {
		o(r)
	}
	r.ApplyRoutes()

	return &server{t: t, router: r, signup: signup, auth: auth, outbox: outbox}
}

// do sends a JSON request and decodes a JSON response into out when set.
func (s *server) do(method, path, token string, body any, headers map[string]string, out any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (s *server) errorCode(rec *httptest.ResponseRecorder) string {
	s.t.Helper()
	var body httpx.ErrorBody
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func (s *server) lastCode(clientID string) string {
	s.t.Helper()
	msgs := s.outbox.Messages(clientID)
	require.NotEmpty(s.t, msgs)
	return msgs[len(msgs)-1].Code
}

// activeClient signs up over HTTP, verifies the email code and marks KYC
// verified. It returns the signup response.
func (s *server) activeClient(email string) brokersdk.SignupResponse {
	s.t.Helper()
	var su brokersdk.SignupResponse
	rec := s.do(http.MethodPost, "/v1/signup", "", brokersdk.SignupRequest{
		Email: email, FullName: "Jane Doe", Password: password,
	}, nil, &su)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/v1/signup/"+su.ClientID+"/otp/verify", "",
		brokersdk.VerifyOTPRequest{Code: s.lastCode(su.ClientID)}, nil, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := s.signup.ApplyKYCOutcome(context.Background(), su.ClientID, domain.KYCVerified, "Basic")
	require.NoError(s.t, err)
	return su
}

func (s *server) login(email string) brokersdk.LoginResponse {
	s.t.Helper()
	var out brokersdk.LoginResponse
	rec := s.do(http.MethodPost, "/v1/auth/login", "", brokersdk.LoginRequest{Email: email, Password: password}, nil, &out)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return out
}

func TestRouter_SignupToSession(t *testing.T) {
	s := newServer(t)

	var su brokersdk.SignupResponse
	rec := s.do(http.MethodPost, "/v1/signup", "", brokersdk.SignupRequest{
		Email: "Jane@Example.com", FullName: "Jane Doe", Password: password, BirthDate: "1990-04-01",
	}, nil, &su)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, string(domain.ClientPending), su.Status)
	require.NotEmpty(t, su.AccountID)

	var dev brokersdk.DevOTPResponse
	rec = s.do(http.MethodGet, "/v1/dev/otp/"+su.ClientID, "", nil, nil, &dev)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dev.Messages, 1)
	require.Equal(t, "Email", dev.Latest().Channel)

	var verified brokersdk.VerifyOTPResponse
	rec = s.do(http.MethodPost, "/v1/signup/"+su.ClientID+"/otp/verify", "",
		brokersdk.VerifyOTPRequest{Code: dev.Latest().Code}, nil, &verified)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, verified.Activated, "kyc still pending")

	_, err := s.signup.ApplyKYCOutcome(context.Background(), su.ClientID, domain.KYCVerified, "Basic")
	require.NoError(t, err)

	lr := s.login("jane@example.com")
	require.False(t, lr.MFARequired)
	require.NotEmpty(t, lr.Token)
	require.Equal(t, su.ClientID, lr.ClientID)

	var me brokersdk.MeResponse
	rec = s.do(http.MethodGet, "/v1/me", lr.Token, nil, nil, &me)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, string(domain.ClientActive), me.Status)
	require.Equal(t, "Basic", me.KYCLevel)
	require.Len(t, me.Accounts, 1)
	require.Equal(t, "USD", me.Accounts[0].Currency)
	require.True(t, me.Accounts[0].Balance.IsZero())

	var renewed brokersdk.SessionResponse
	rec = s.do(http.MethodPost, "/v1/auth/renew", lr.Token, nil, nil, &renewed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, lr.SessionID, renewed.SessionID)

	rec = s.do(http.MethodPost, "/v1/auth/logout", lr.Token, nil, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/v1/me", lr.Token, nil, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_DepositSettleAndLedger(t *testing.T) {
	s := newServer(t)
	su := s.activeClient("ann@example.com")
	token := s.login("ann@example.com").Token

	path := "/v1/accounts/" + su.AccountID + "/deposit"
	body := brokersdk.DepositRequest{Amount: decimal.NewFromInt(250), IdempotencyKey: "ignored"}
	headers := map[string]string{brokerhttp.IdempotencyKeyHeader: "dep-1"}

	var first brokersdk.DepositResponse
	rec := s.do(http.MethodPost, path, token, body, headers, &first)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, string(domain.PayTxPending), first.Status)

	var replay brokersdk.DepositResponse
	rec = s.do(http.MethodPost, path, token, body, headers, &replay)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, first.PaymentTxID, replay.PaymentTxID)

	bad := brokersdk.WebhookRequest{PaymentTxID: first.PaymentTxID, Status: "Settled", Signature: "00"}
	rec = s.do(http.MethodPost, "/v1/payments/webhook", "", bad, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_signature", s.errorCode(rec))

	good := brokersdk.WebhookRequest{
		PaymentTxID: first.PaymentTxID,
		Status:      "Settled",
		Signature:   cryptox.SignPayload(webhookSecret, service.SettlementMessage(first.PaymentTxID, "Settled")),
	}
	var wh brokersdk.WebhookResponse
	rec = s.do(http.MethodPost, "/v1/payments/webhook", "", good, nil, &wh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, string(domain.PayTxSettled), wh.Status)

	rec = s.do(http.MethodPost, path, token, body, headers, &replay)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, string(domain.PayTxSettled), replay.Status)
	require.True(t, decimal.NewFromInt(250).Equal(replay.NewCashBalance))

	var ledger brokersdk.LedgerResponse
	rec = s.do(http.MethodGet, "/v1/accounts/"+su.AccountID+"/ledger", token, nil, nil, &ledger)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ledger.Entries, 1)
	require.Equal(t, first.PaymentTxID, ledger.Entries[0].RefID)
}

func TestRouter_AccountsOfOthersLookMissing(t *testing.T) {
	s := newServer(t)
	owner := s.activeClient("owner@example.com")
	s.activeClient("other@example.com")
	token := s.login("other@example.com").Token

	rec := s.do(http.MethodGet, "/v1/accounts/"+owner.AccountID+"/ledger", token, nil, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "account_not_found", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/v1/accounts/"+owner.AccountID+"/deposit", token,
		brokersdk.DepositRequest{Amount: decimal.NewFromInt(1), IdempotencyKey: "k"}, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newServer(t)
	s.activeClient("taken@example.com")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/v1/signup",
			body:     brokersdk.SignupRequest{Email: "taken@example.com", FullName: "X", Password: password},
			wantCode: http.StatusConflict,
			wantErr:  "email_taken",
		},
		{
			name:     "short password",
			method:   http.MethodPost,
			path:     "/v1/signup",
			body:     brokersdk.SignupRequest{Email: "new@example.com", FullName: "X", Password: "short"},
			wantCode: http.StatusBadRequest,
			wantErr:  "password_too_short",
		},
		{
			name:     "unknown field",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     map[string]string{"username": "x"},
			wantCode: http.StatusBadRequest,
			wantErr:  brokersdk.ErrorCodeInvalidRequest,
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     brokersdk.LoginRequest{Email: "taken@example.com", Password: "nope nope"},
			wantCode: http.StatusUnauthorized,
			wantErr:  "invalid_credentials",
		},
		{
			name:     "unknown client",
			method:   http.MethodPost,
			path:     "/v1/signup/nobody/otp/verify",
			body:     brokersdk.VerifyOTPRequest{Code: "123456"},
			wantCode: http.StatusNotFound,
			wantErr:  "client_not_found",
		},
		{
			name:     "unknown transaction",
			method:   http.MethodPost,
			path:     "/v1/payments/webhook",
			body:     brokersdk.WebhookRequest{PaymentTxID: "missing", Status: "Settled", Signature: cryptox.SignPayload(webhookSecret, service.SettlementMessage("missing", "Settled"))},
			wantCode: http.StatusNotFound,
			wantErr:  "unknown_transaction",
		},
		{
			name:     "missing bearer",
			method:   http.MethodGet,
			path:     "/v1/me",
			wantCode: http.StatusUnauthorized,
			wantErr:  brokersdk.ErrorCodeInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, "", tt.body, nil, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.Equal(t, tt.wantErr, s.errorCode(rec))
		})
	}
}

func TestRouter_MFAChallengeLogin(t *testing.T) {
	s := newServer(t)
	su := s.activeClient("mfa@example.com")
	token := s.login("mfa@example.com").Token

	var policy brokersdk.MFAPolicyResponse
	rec := s.do(http.MethodPut, "/v1/me/mfa", token, brokersdk.SetMFARequest{Type: "WebAuthn"}, nil, &policy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, policy.Active)
	require.Empty(t, policy.OtpauthURL)

	var lr brokersdk.LoginResponse
	rec = s.do(http.MethodPost, "/v1/auth/login", "", brokersdk.LoginRequest{Email: "mfa@example.com", Password: password}, nil, &lr)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, lr.MFARequired)
	require.Empty(t, lr.Token)
	require.NotEmpty(t, lr.ChallengeID)

	var answered brokersdk.LoginResponse
	rec = s.do(http.MethodPost, "/v1/auth/mfa/verify", "", brokersdk.VerifyMFARequest{
		ClientID:    su.ClientID,
		ChallengeID: lr.ChallengeID,
		Code:        s.lastCode(su.ClientID),
	}, nil, &answered)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, answered.Token)

	rec = s.do(http.MethodDelete, "/v1/me/mfa", answered.Token, nil, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/v1/me/mfa", answered.Token, nil, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ScopesEnforced(t *testing.T) {
	s := newServer(t)
	s.auth.Scopes = []string{service.ScopeProfileRead}
	su := s.activeClient("scoped@example.com")
	token := s.login("scoped@example.com").Token

	rec := s.do(http.MethodGet, "/v1/me", token, nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/v1/accounts/"+su.AccountID+"/deposit", token,
		brokersdk.DepositRequest{Amount: decimal.NewFromInt(1), IdempotencyKey: "k"}, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, brokersdk.ErrorCodeInsufficientScope, s.errorCode(rec))
}

func TestRouter_SystemEndpoints(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newServer(t, func(r *brokerhttp.Router) { r.Cache = pinger{} })

		var live brokersdk.HealthResponse
		rec := s.do(http.MethodGet, "/livez", "", nil, nil, &live)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "test", live.Version)

		var ready brokersdk.HealthResponse
		rec = s.do(http.MethodGet, "/readyz", "", nil, nil, &ready)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", ready.Checks.Cache)

		var jwks brokersdk.JWKSResponse
		rec = s.do(http.MethodGet, "/.well-known/jwks.json", "", nil, nil, &jwks)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "EdDSA", jwks.Keys[0].Alg)

		rec = s.do(http.MethodGet, "/metrics", "", nil, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("cache down", func(t *testing.T) {
		s := newServer(t, func(r *brokerhttp.Router) { r.Cache = pinger{err: errors.New("connection refused")} })

		var ready brokersdk.HealthResponse
		rec := s.do(http.MethodGet, "/readyz", "", nil, nil, &ready)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "degraded", ready.Status)
		require.Contains(t, ready.Checks.Cache, "connection refused")
	})

	t.Run("dev endpoints off", func(t *testing.T) {
		s := newServer(t, func(r *brokerhttp.Router) { r.DevEndpoints = false })
		rec := s.do(http.MethodGet, "/v1/dev/otp/anyone", "", nil, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
