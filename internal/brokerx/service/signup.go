package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

const (
	// DefaultOTPTTL is how long a contact code stays usable.
	DefaultOTPTTL = 10 * time.Minute

	// OTPDigits is the length of contact and MFA codes.
	OTPDigits = 6
)

type SignupService struct {
	*Runtime

	Store store.Store
	KYC   KYCVerifier
	OTP   OTPDispatcher

	OTPTTL          time.Duration
	DefaultCurrency string
}

type SignupInput struct {
	Email     string
	Phone     string
	FullName  string
	Password  string
	BirthDate *time.Time
	Currency  string
}

type SignupResult struct {
	Client  *domain.Client
	Account domain.Account
	Wallet  domain.Wallet
	Code    domain.ContactCode
}

// Signup creates a Pending client with its KYC case, a first contact code,
// an account and an empty wallet in one transaction. The code is then sent
// and KYC submitted in the background.
func (s *SignupService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}
	currency, err := domain.NormalizeCurrency(firstNonEmpty(in.Currency, s.DefaultCurrency, domain.DefaultCurrency))
	if err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	client, err := domain.NewClient(domain.NewClientParams{
		ID:           s.newID(),
		Email:        in.Email,
		Phone:        in.Phone,
		FullName:     in.FullName,
		BirthDate:    in.BirthDate,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	client.StartKYCIfAbsent(s.newID(), now)

	plain, code, err := s.startCode(client, domain.ChannelEmail, now)
	if err != nil {
		return nil, err
	}

	res := &SignupResult{Client: client, Code: code}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().CreateClient(ctx, client); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return domain.ErrEmailTaken
			}
			return err
		}
		res.Account, res.Wallet, err = openAccount(ctx, s.Runtime, tx, client, currency, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics().signup()
	log.Info("client signed up", "client_id", client.ID(), "account_id", res.Account.ID)

	s.emit(ctx, domain.EventClientSignup, actorFor(client), res.Account.ID, map[string]any{
		"clientId": client.ID(),
		"email":    client.Email(),
	})
	s.emit(ctx, domain.EventAccountOpened, actorFor(client), res.Account.ID, map[string]any{
		"accountId": res.Account.ID,
		"number":    res.Account.Number,
		"currency":  res.Wallet.Currency,
	})

	s.dispatch(ctx, client, code, plain)

	if kyc, ok := client.KYC(); ok && s.KYC != nil {
		clientID := client.ID()
		s.detach(ctx, "kyc.submit", func(ctx context.Context) error {
			return s.KYC.Submit(ctx, clientID, kyc.ID)
		})
	}

	return res, nil
}

// ResendContactOTP issues a fresh contact code on channel ("" means Email).
// Older codes stay but are no longer the latest.
func (s *SignupService) ResendContactOTP(ctx context.Context, clientID, channel string) (domain.ContactCode, error) {
	ch, err := domain.ParseChannel(channel)
	if err != nil {
		return domain.ContactCode{}, err
	}

	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return domain.ContactCode{}, err
	}
	switch {
	case client.IsRejected():
		return domain.ContactCode{}, domain.ErrClientRejected
	case client.HasVerifiedContact():
		return domain.ContactCode{}, domain.ErrContactAlreadyVerified
	case ch == domain.ChannelSms && client.Phone() == "":
		return domain.ContactCode{}, domain.ErrNoPhone
	}

	now := s.now()
	plain, code, err := s.startCode(client, ch, now)
	if err != nil {
		return domain.ContactCode{}, err
	}
	if err := s.Store.Clients().SaveClient(ctx, client); err != nil {
		return domain.ContactCode{}, fmt.Errorf("save client: %w", err)
	}

	s.emit(ctx, domain.EventContactOTPResent, actorFor(client), "", map[string]any{
		"clientId": client.ID(),
		"codeId":   code.ID,
		"channel":  code.Channel,
	})
	s.dispatch(ctx, client, code, plain)
	return code, nil
}

type VerifyContactResult struct {
	Client    *domain.Client
	Activated bool
}

// VerifyContactOTP checks code against the client's latest pending contact
// code and activates the client when KYC is already verified.
func (s *SignupService) VerifyContactOTP(ctx context.Context, clientID, code string) (*VerifyContactResult, error) {
	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	activated, verr := client.VerifyContactCode(code, s.now(), cryptox.MatchesHash)
	persist := verr == nil ||
		!(errors.Is(verr, domain.ErrEmptyCode) || errors.Is(verr, domain.ErrNoActiveCode))
	if persist {
		if err := s.Store.Clients().SaveClient(ctx, client); err != nil {
			return nil, fmt.Errorf("save client: %w", err)
		}
	}

	if verr != nil {
		s.emit(ctx, domain.EventContactOTPFailed, actorFor(client), "", map[string]any{
			"clientId": client.ID(),
			"reason":   domain.CodeOf(verr),
		})
		return nil, verr
	}

	s.emit(ctx, domain.EventContactOTPVerified, actorFor(client), "", map[string]any{
		"clientId": client.ID(),
	})
	if activated {
		s.activated(ctx, client)
	}
	return &VerifyContactResult{Client: client, Activated: activated}, nil
}

type KYCOutcomeResult struct {
	Changed   bool
	Activated bool
	Status    domain.ClientStatus
}

// ApplyKYCOutcome records the verifier's decision. Verified tries to
// activate the client, Rejected rejects it. Repeating an outcome is a
// no-op.
func (s *SignupService) ApplyKYCOutcome(ctx context.Context, clientID string, status domain.KYCStatus, level string) (*KYCOutcomeResult, error) {
	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	changed, activated, err := client.ApplyKYCOutcome(status, level, s.now())
	if err != nil {
		return nil, err
	}
	res := &KYCOutcomeResult{Changed: changed, Activated: activated, Status: client.Status()}
	if !changed {
		return res, nil
	}
	if err := s.Store.Clients().SaveClient(ctx, client); err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}

	kyc, _ := client.KYC()
	payload := map[string]any{"clientId": client.ID(), "kycId": kyc.ID, "level": kyc.Level}
	switch status {
	case domain.KYCVerified:
		s.emit(ctx, domain.EventKYCVerified, domain.ActorKYC, "", payload)
	case domain.KYCRejected:
		s.emit(ctx, domain.EventKYCRejected, domain.ActorKYC, "", payload)
		s.emit(ctx, domain.EventClientRejected, domain.ActorKYC, "", map[string]any{"clientId": client.ID()})
		slogx.FromContext(ctx).Info("client rejected by kyc", "client_id", client.ID())
	}
	if activated {
		s.activated(ctx, client)
	}
	return res, nil
}

// RefreshKYC polls the verifier and applies a decided outcome. It is the
// pull counterpart of ApplyKYCOutcome for verifiers that never call back.
func (s *SignupService) RefreshKYC(ctx context.Context, clientID string) (*KYCOutcomeResult, error) {
	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	kyc, ok := client.KYC()
	if !ok || s.KYC == nil {
		return &KYCOutcomeResult{Status: client.Status()}, nil
	}
	status, err := s.KYC.Status(ctx, kyc.ID)
	if err != nil {
		return nil, fmt.Errorf("kyc status: %w", err)
	}
	if status == domain.KYCPending || status == kyc.Status {
		return &KYCOutcomeResult{Status: client.Status()}, nil
	}
	return s.ApplyKYCOutcome(ctx, clientID, status, "")
}

// Client returns the whole client aggregate.
func (s *SignupService) Client(ctx context.Context, clientID string) (*domain.Client, error) {
	return s.loadClient(ctx, clientID)
}

func (s *SignupService) activated(ctx context.Context, c *domain.Client) {
	s.metrics().activated()
	s.emit(ctx, domain.EventClientActivated, actorFor(c), "", map[string]any{"clientId": c.ID()})
	slogx.FromContext(ctx).Info("client activated", "client_id", c.ID())
}

func (s *SignupService) loadClient(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.Store.Clients().GetClientByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

// startCode generates a code, stores only its hash on the client and
// returns the plaintext for dispatch.
func (s *SignupService) startCode(c *domain.Client, ch domain.Channel, now time.Time) (string, domain.ContactCode, error) {
	plain, hash, err := newCode(s.entropy())
	if err != nil {
		return "", domain.ContactCode{}, err
	}
	ttl := s.OTPTTL
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	code := c.StartContactCode(domain.StartCodeParams{
		ID:       s.newID(),
		Channel:  ch,
		CodeHash: hash,
		TTL:      ttl,
		Now:      now,
	})
	return plain, code, nil
}

// dispatch sends a contact code. Delivery failures are logged; the client
// can always ask for a resend.
func (s *SignupService) dispatch(ctx context.Context, c *domain.Client, code domain.ContactCode, plain string) {
	if s.OTP == nil {
		return
	}
	dest := c.Email()
	if code.Channel == domain.ChannelSms {
		dest = c.Phone()
	}
	err := s.OTP.Send(ctx, OTPMessage{
		ClientID:    c.ID(),
		CodeID:      code.ID,
		Channel:     code.Channel,
		Destination: dest,
		Code:        plain,
	})
	if err != nil {
		slogx.FromContext(ctx).Error("contact code dispatch failed",
			slog.String("client_id", c.ID()),
			slog.String("code_id", code.ID),
			"err", err,
		)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
