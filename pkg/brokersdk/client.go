package brokersdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient talks to the public endpoints and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient returns a client with a 10s timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSession wraps a bearer token returned by Login or VerifyMFA.
func (c *SDKClient) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}

// Signup creates a Pending client with one account and wallet.
func (c *SDKClient) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	return call[SignupResponse](ctx, c, http.MethodPost, "/v1/signup", "", req, nil, http.StatusCreated)
}

// ResendContactOTP issues a new contact code on channel ("" for Email).
func (c *SDKClient) ResendContactOTP(ctx context.Context, clientID, channel string) (*ResendOTPResponse, error) {
	path := "/v1/signup/" + url.PathEscape(clientID) + "/otp/resend"
	return call[ResendOTPResponse](ctx, c, http.MethodPost, path, "", ResendOTPRequest{Channel: channel}, nil, http.StatusOK)
}

// VerifyContactOTP submits the latest contact code.
func (c *SDKClient) VerifyContactOTP(ctx context.Context, clientID, code string) (*VerifyOTPResponse, error) {
	path := "/v1/signup/" + url.PathEscape(clientID) + "/otp/verify"
	return call[VerifyOTPResponse](ctx, c, http.MethodPost, path, "", VerifyOTPRequest{Code: code}, nil, http.StatusOK)
}

// Login checks credentials. The response either carries a token or asks
// for an MFA challenge to be answered.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	return call[LoginResponse](ctx, c, http.MethodPost, "/v1/auth/login", "", req, nil, http.StatusOK)
}

// VerifyMFA answers a login challenge.
func (c *SDKClient) VerifyMFA(ctx context.Context, clientID, challengeID, code string) (*LoginResponse, error) {
	req := VerifyMFARequest{ClientID: clientID, ChallengeID: challengeID, Code: code}
	return call[LoginResponse](ctx, c, http.MethodPost, "/v1/auth/mfa/verify", "", req, nil, http.StatusOK)
}

// SendWebhook posts a settlement callback as the payment processor would.
func (c *SDKClient) SendWebhook(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	return call[WebhookResponse](ctx, c, http.MethodPost, "/v1/payments/webhook", "", req, nil, http.StatusOK)
}

// DevOTP reads back the codes sent to a client. Only mounted outside
// production.
func (c *SDKClient) DevOTP(ctx context.Context, clientID string) (*DevOTPResponse, error) {
	path := "/v1/dev/otp/" + url.PathEscape(clientID)
	return call[DevOTPResponse](ctx, c, http.MethodGet, path, "", nil, nil, http.StatusOK)
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, http.MethodGet, "/livez", "", nil, nil, http.StatusOK)
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return call[HealthResponse](ctx, c, http.MethodGet, "/readyz", "", nil, nil, http.StatusOK)
}

// JWKS fetches the public signing keys as raw JSON.
func (c *SDKClient) JWKS(ctx context.Context) (*JWKSResponse, error) {
	return call[JWKSResponse](ctx, c, http.MethodGet, "/.well-known/jwks.json", "", nil, nil, http.StatusOK)
}

// JWKSResponse mirrors the served key set.
type JWKSResponse struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Crv string `json:"crv"`
		X   string `json:"x"`
		Alg string `json:"alg"`
		Use string `json:"use"`
	} `json:"keys"`
}
