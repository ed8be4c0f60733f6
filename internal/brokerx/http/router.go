package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/otp"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/brokerx/api/brokerx" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is an optional dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	authn        httpx.Authenticator
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	SignupService  *service.SignupService
	AuthService    *service.AuthService
	MFAService     *service.MFAService
	AccountService *service.AccountService
	DepositService *service.DepositService

	// Outbox backs GET /v1/dev/otp/{clientId}. The route is only mounted
	// when DevEndpoints is set and Outbox is non-nil.
	Outbox       *otp.Outbox
	DevEndpoints bool

	Cache    Pinger              // Optional: revocation cache checked by /readyz
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
}

func NewRouter(
	keys *jwtx.KeySet,
	authn httpx.Authenticator,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		authn:        authn,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSignup()
	r.registerAuth()
	r.registerProfile()
	r.registerFunds()
	r.registerDev()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			BrokerX Onboarding & Funding API
//	@version		0.1.0
//	@description	Client signup with contact and KYC verification, MFA-protected sessions and idempotent deposits settled by a payment processor callback.
//	@description
//	@description				Session tokens are EdDSA-signed JWTs (verifiable with the JWKS endpoint) or opaque bearer tokens.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/brokerx
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps h with bearer authentication, a scope check and a per
// client rate limit.
func (r *Router) secured(h http.Handler, limit httpx.RateLimitConfig, scopes ...string) http.Handler {
	mws := []httpx.Middleware{httpx.AuthnMiddleware(r.authn)}
	if len(scopes) > 0 {
		mws = append(mws, httpx.RequireAnyScope(scopes...))
	}
	mws = append(mws, httpx.RateLimitByClient(limit))
	return httpx.Chain(h, mws...)
}

func (r *Router) registerSignup() {
	h := &SignupHandler{SignupService: r.SignupService}

	// Account creation is public, keep it tight per IP
	r.Mux.Handle("POST /v1/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/signup/{clientId}/otp/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIPAndPathValue(httpx.StrictLimit, "clientId"),
		),
	)
	r.Mux.Handle("POST /v1/signup/{clientId}/otp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIPAndPathValue(httpx.StrictLimit, "clientId"),
		),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential endpoints - strict rate limit by IP
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyMFA),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/renew", r.secured(http.HandlerFunc(h.HandleRenew), httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/auth/logout", r.secured(http.HandlerFunc(h.HandleLogout), httpx.ModerateLimit))
}

func (r *Router) registerProfile() {
	me := &ProfileHandler{AccountService: r.AccountService}
	r.Mux.Handle("GET /v1/me", r.secured(me, httpx.LenientLimit, service.ScopeProfileRead))

	h := &MFAHandler{MFAService: r.MFAService}
	r.Mux.Handle("GET /v1/me/mfa",
		r.secured(http.HandlerFunc(h.HandleGet), httpx.LenientLimit, service.ScopeProfileRead))
	r.Mux.Handle("PUT /v1/me/mfa",
		r.secured(http.HandlerFunc(h.HandlePut), httpx.ModerateLimit, service.ScopeMFAWrite))
	r.Mux.Handle("DELETE /v1/me/mfa",
		r.secured(http.HandlerFunc(h.HandleDelete), httpx.ModerateLimit, service.ScopeMFAWrite))
}

func (r *Router) registerFunds() {
	h := &FundsHandler{
		AccountService: r.AccountService,
		DepositService: r.DepositService,
	}

	r.Mux.Handle("POST /v1/accounts/{accountId}/deposit",
		r.secured(http.HandlerFunc(h.HandleDeposit), httpx.ModerateLimit, service.ScopeFundsWrite))
	r.Mux.Handle("GET /v1/accounts/{accountId}/ledger",
		r.secured(http.HandlerFunc(h.HandleLedger), httpx.LenientLimit, service.ScopeFundsRead))

	// Processor callbacks are authenticated by signature, not bearer token
	wh := &WebhookHandler{DepositService: r.DepositService}
	r.Mux.Handle("POST /v1/payments/webhook",
		httpx.Chain(wh,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerDev() {
	if !r.DevEndpoints || r.Outbox == nil {
		return
	}
	r.Mux.Handle("GET /v1/dev/otp/{clientId}",
		httpx.Chain(DevOTPHandler(r.Outbox),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Cache),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	gatherer := r.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
