package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type MFAService struct {
	*Runtime

	Store  store.Store
	Issuer string // shown by authenticator apps, e.g. "BrokerX"
}

// PolicyResult is a policy plus, right after a TOTP secret was minted, the
// otpauth URL to enroll it. The URL is never returned again.
type PolicyResult struct {
	Policy     domain.MFAPolicy
	OtpauthURL string
}

func (s *MFAService) GetPolicy(ctx context.Context, clientID string) (domain.MFAPolicy, error) {
	p, err := s.Store.MFA().GetPolicy(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAPolicy{}, domain.ErrMFANotConfigured
		}
		return domain.MFAPolicy{}, err
	}
	return p, nil
}

// SetPolicy creates or changes the client's policy. active nil means
// active. Switching to Totp, or enabling Totp without a secret, mints a
// new secret.
func (s *MFAService) SetPolicy(ctx context.Context, clientID, mfaType string, active *bool) (*PolicyResult, error) {
	t, err := domain.ParseMFAType(mfaType)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}

	now := s.now()
	policy, err := s.Store.MFA().GetPolicy(ctx, clientID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		policy = domain.MFAPolicy{ID: s.newID(), ClientID: clientID, CreatedAt: now}
	case err != nil:
		return nil, err
	}
	previous := policy

	policy.Active = active == nil || *active
	policy.UpdatedAt = now

	res := &PolicyResult{}
	if t == domain.MFATotp && (policy.Type != domain.MFATotp || policy.Secret == "") {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: client.Email(),
			Period:      totpValidateOpts.Period,
			Digits:      totpValidateOpts.Digits,
			Algorithm:   totpValidateOpts.Algorithm,
			Rand:        s.entropy(),
		})
		if err != nil {
			return nil, fmt.Errorf("generate totp key: %w", err)
		}
		policy.Secret = key.Secret()
		res.OtpauthURL = key.URL()
	}
	if t != domain.MFATotp {
		policy.Secret = ""
	}
	policy.Type = t

	if err := s.Store.MFA().UpsertPolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save mfa policy: %w", err)
	}
	res.Policy = policy

	s.emit(ctx, domain.EventMFAPolicyChanged, actorFor(client), "", map[string]any{
		"clientId":       clientID,
		"type":           policy.Type,
		"active":         policy.Active,
		"previousType":   previous.Type,
		"previousActive": previous.Active,
	})
	return res, nil
}

// DisablePolicy removes the policy; logins go back to password only.
func (s *MFAService) DisablePolicy(ctx context.Context, clientID string) error {
	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	if err := s.Store.MFA().DeletePolicy(ctx, clientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrMFANotConfigured
		}
		return err
	}
	s.emit(ctx, domain.EventMFAPolicyChanged, domain.ActorClient(clientID), "", map[string]any{
		"clientId": clientID,
		"removed":  true,
	})
	return nil
}
