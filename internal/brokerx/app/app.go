package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/auditlog"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/kycsim"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/otp"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/paysim"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/session"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	httpapi "github.com/aussiebroadwan/brokerx/internal/brokerx/http"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store/drivers/sqlite"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// taskLimit bounds concurrent background tasks.
	taskLimit = 32

	auditBuffer = 1024
)

// Application encapsulates the brokerx service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	keyManager  *jwtx.KeyManager
	runtime     *service.Runtime
	registry    prometheus.Registerer
	gatherer    prometheus.Gatherer
	auditFile   *auditlog.Sink
	redis       *redis.Client
	revocations session.RevocationList

	// Adapters
	outbox   *otp.Outbox
	kyc      *kycsim.Simulator
	payments *paysim.Simulator

	// Services
	signupService       *service.SignupService
	authService         *service.AuthService
	mfaService          *service.MFAService
	accountService      *service.AccountService
	depositService      *service.DepositService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Option adjusts an Application before it is wired. Tests use it to
// isolate metrics.
type Option func(*Application)

// WithRegistry registers metrics on reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(app *Application) {
		app.registry = reg
		app.gatherer = reg
	}
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "brokerx",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, o := range opts {
		o(app)
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	keyManager, err := InitSessionKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyManager = keyManager

	app.revocations, app.redis, err = InitRevocations(ctx, app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initRuntime(); err != nil {
		_ = app.closeStorage()
		return nil, err
	}
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("brokerx starting", "port", app.cfg.Port, "version", BuildVersion, "env", app.cfg.Env)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, cancels pending simulator callbacks,
// drains background work and the audit queue, then closes storage.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down brokerx...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.payments.Close()
	app.kyc.Close()
	app.housekeepingService.Stop()

	if err := app.runtime.Tasks.Shutdown(ctx); err != nil {
		app.logger.Warn("background tasks still running at shutdown", "error", err)
	}
	if err := app.runtime.Audit.Close(ctx); err != nil {
		app.logger.Warn("audit queue not fully drained", "error", err)
	}

	if err := app.closeStorage(); err != nil {
		app.logger.Error("error closing storage", "error", err)
		return err
	}

	app.logger.Info("brokerx stopped")
	return nil
}

func (app *Application) closeStorage() error {
	var errs []error
	if app.auditFile != nil {
		errs = append(errs, app.auditFile.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRuntime builds the shared service plumbing: metrics, the background
// task group and the audit pipeline with its sinks.
func (app *Application) initRuntime() error {
	metrics := service.NewMetrics(app.registry)

	rt := service.NewRuntime()
	rt.Metrics = metrics
	rt.Tasks = service.NewTaskGroup(taskLimit, metrics)
	rt.Audit = service.NewAuditor(app.logger, metrics, auditBuffer)
	rt.Audit.AddSink("store", service.StoreSink{Store: app.db})

	if app.cfg.AuditLogDir != "" {
		sink, err := auditlog.Open(app.cfg.AuditLogDir, app.cfg.AuditRetain)
		if err != nil {
			_ = rt.Audit.Close(context.Background())
			return err
		}
		app.auditFile = sink
		rt.Audit.AddSink("file", sink)
		app.logger.Info("audit file sink enabled", "dir", app.cfg.AuditLogDir)
	}

	app.runtime = rt
	return nil
}

// initServices initializes all business logic services and the simulated
// providers they talk to.
func (app *Application) initServices() {
	rt := app.runtime
	dev := !app.cfg.IsProduction()

	var dispatch service.OTPDispatcher = otp.LogDispatcher{Reveal: dev}
	if dev {
		app.outbox = otp.NewOutbox(otp.DefaultOutboxSize, nil)
		dispatch = otp.Multi{otp.LogDispatcher{Reveal: true}, app.outbox}
	}

	app.signupService = &service.SignupService{
		Runtime:         rt,
		Store:           app.db,
		OTP:             dispatch,
		OTPTTL:          app.cfg.OTPTTL,
		DefaultCurrency: app.cfg.DefaultCurrency,
	}
	app.kyc = kycsim.New(app.cfg.KYCDelay, func(ctx context.Context, clientID string, status domain.KYCStatus, level string) error {
		_, err := app.signupService.ApplyKYCOutcome(ctx, clientID, status, level)
		return err
	})
	app.signupService.KYC = app.kyc

	app.authService = &service.AuthService{
		Runtime:      rt,
		Store:        app.db,
		Tokens:       newTokenIssuer(app.cfg, app.keyManager, app.revocations),
		OTP:          dispatch,
		SessionTTL:   app.cfg.SessionTTL,
		ChallengeTTL: app.cfg.MFATTL,
	}
	app.mfaService = &service.MFAService{
		Runtime: rt,
		Store:   app.db,
		Issuer:  "BrokerX",
	}
	app.accountService = &service.AccountService{
		Runtime:         rt,
		Store:           app.db,
		DefaultCurrency: app.cfg.DefaultCurrency,
	}

	app.payments = paysim.New(app.cfg.PublicURL, app.cfg.WebhookSecret, app.cfg.PaymentDelay)
	app.depositService = &service.DepositService{
		Runtime:       rt,
		Store:         app.db,
		Payments:      app.payments,
		WebhookSecret: app.cfg.WebhookSecret,
	}

	app.housekeepingService = service.NewHousekeepingService(
		rt,
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SessionRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	authn := &session.Authenticator{
		Verifier:    app.keyManager.Verifier,
		Revocations: app.revocations,
		Sessions:    app.authService,
	}

	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		authn,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.SignupService = app.signupService
	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.AccountService = app.accountService
	router.DepositService = app.depositService
	router.Outbox = app.outbox
	router.DevEndpoints = !app.cfg.IsProduction()
	router.Gatherer = app.gatherer
	if p, ok := app.revocations.(httpapi.Pinger); ok {
		router.Cache = p
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
