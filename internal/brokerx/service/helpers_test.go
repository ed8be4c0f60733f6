package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service/mocks"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store/drivers/sqlite"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/idx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// env wires every service against an in-memory store and mocked ports.
// The port mocks record what they were given; payErr makes the payment
// processor fail.
type env struct {
	t     *testing.T
	ctx   context.Context
	store *sqlite.Store
	clock *fakeClock
	rt    *service.Runtime

	signup   *service.SignupService
	auth     *service.AuthService
	mfa      *service.MFAService
	deposits *service.DepositService
	accounts *service.AccountService

	mu        sync.Mutex
	sent      []service.OTPMessage
	submitted []string
	requested []service.DepositInstruction
	revoked   []string
	payErr    error
	kycStatus domain.KYCStatus
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	clock := &fakeClock{now: t0}
	metrics := service.NewMetrics(prometheus.NewRegistry())
	rt := &service.Runtime{
		Clock:   clock.Now,
		IDs:     idx.NewGenerator(nil, clock.Now),
		Locks:   service.NewKeyedMutex(),
		Tasks:   service.NewTaskGroup(4, metrics),
		Metrics: metrics,
	}
	rt.Audit = service.NewAuditor(nil, metrics, 256)
	rt.Audit.AddSink("store", service.StoreSink{Store: st})

	// Registered first so its Finish runs after the cleanup below.
	ctrl := gomock.NewController(t)

	e := &env{t: t, ctx: context.Background(), store: st, clock: clock, rt: rt, kycStatus: domain.KYCPending}
	t.Cleanup(func() {
		rt.Tasks.Wait()
		_ = rt.Audit.Close(context.Background())
		_ = st.Close()
	})

	otp := mocks.NewMockOTPDispatcher(ctrl)
	otp.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg service.OTPMessage) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sent = append(e.sent, msg)
		return nil
	}).AnyTimes()

	kyc := mocks.NewMockKYCVerifier(ctrl)
	kyc.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, clientID, _ string) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.submitted = append(e.submitted, clientID)
		return nil
	}).AnyTimes()
	kyc.EXPECT().Status(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (domain.KYCStatus, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.kycStatus, nil
	}).AnyTimes()

	pay := mocks.NewMockPaymentProcessor(ctrl)
	pay.EXPECT().RequestDeposit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, in service.DepositInstruction) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.requested = append(e.requested, in)
		return e.payErr
	}).AnyTimes()

	tokens := mocks.NewMockTokenIssuer(ctrl)
	tokens.EXPECT().Type().Return(domain.TokenOpaque).AnyTimes()
	tokens.EXPECT().Issue(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req service.TokenRequest) (service.IssuedToken, error) {
		tok := "tok-" + req.Session.ID
		return service.IssuedToken{Token: tok, Hash: cryptox.FingerprintToken(tok)}, nil
	}).AnyTimes()
	tokens.EXPECT().Revoke(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id string, _ time.Time) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.revoked = append(e.revoked, id)
		return nil
	}).AnyTimes()

	e.signup = &service.SignupService{Runtime: rt, Store: st, KYC: kyc, OTP: otp}
	e.auth = &service.AuthService{Runtime: rt, Store: st, Tokens: tokens, OTP: otp}
	e.mfa = &service.MFAService{Runtime: rt, Store: st, Issuer: "BrokerX"}
	e.deposits = &service.DepositService{Runtime: rt, Store: st, Payments: pay}
	e.accounts = &service.AccountService{Runtime: rt, Store: st}
	return e
}

// lastCode returns the most recent plaintext code sent to clientID.
func (e *env) lastCode(clientID string) service.OTPMessage {
	e.t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.sent) - 1; i >= 0; i-- {
		if e.sent[i].ClientID == clientID {
			return e.sent[i]
		}
	}
	e.t.Fatalf("no code sent to %s", clientID)
	return service.OTPMessage{}
}

func (e *env) depositRequests() []service.DepositInstruction {
	e.rt.Tasks.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]service.DepositInstruction(nil), e.requested...)
}

// auditEvents drains the auditor and returns everything it wrote. No
// events can be emitted afterwards.
func (e *env) auditEvents(f store.AuditFilter) []domain.AuditEvent {
	e.t.Helper()
	e.rt.Tasks.Wait()
	require.NoError(e.t, e.rt.Audit.Close(e.ctx))
	evs, err := e.store.Audit().ListEvents(e.ctx, f)
	require.NoError(e.t, err)
	return evs
}

func eventTypes(evs []domain.AuditEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

// signedUp creates a client through the signup service.
func (e *env) signedUp(email string) *service.SignupResult {
	e.t.Helper()
	res, err := e.signup.Signup(e.ctx, service.SignupInput{
		Email:    email,
		Phone:    "+61400000000",
		FullName: "Jane Doe",
		Password: "correct horse",
	})
	require.NoError(e.t, err)
	return res
}

// activated signs a client up and completes contact and KYC verification.
func (e *env) activated(email string) *service.SignupResult {
	e.t.Helper()
	res := e.signedUp(email)
	id := res.Client.ID()
	_, err := e.signup.VerifyContactOTP(e.ctx, id, e.lastCode(id).Code)
	require.NoError(e.t, err)
	out, err := e.signup.ApplyKYCOutcome(e.ctx, id, domain.KYCVerified, "")
	require.NoError(e.t, err)
	require.True(e.t, out.Activated)
	return res
}
