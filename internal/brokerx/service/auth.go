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
	"github.com/pquerna/otp/totp"
)

// Scopes granted to every client session.
const (
	ScopeProfileRead = "profile:read"
	ScopeMFAWrite    = "mfa:write"
	ScopeFundsRead   = "funds:read"
	ScopeFundsWrite  = "funds:write"
)

// DefaultScopes is what a session gets when AuthService.Scopes is empty.
var DefaultScopes = []string{ScopeProfileRead, ScopeMFAWrite, ScopeFundsRead, ScopeFundsWrite}

// AMR values recorded on sessions.
const (
	AMRPassword = "pwd"
	AMRMFA      = "mfa"
)

type AuthService struct {
	*Runtime

	Store  store.Store
	Tokens TokenIssuer
	OTP    OTPDispatcher

	SessionTTL   time.Duration
	ChallengeTTL time.Duration
	Scopes       []string
}

type LoginInput struct {
	Email    string
	Password string
	IP       string
	Device   string
}

// LoginResult is either an issued session or a pending MFA challenge.
type LoginResult struct {
	ClientID    string
	MFARequired bool
	Challenge   *domain.MFAChallenge
	Session     *domain.Session
	Token       string
}

// Login checks the password and either opens a session or, when the
// client has an active MFA policy, raises a challenge.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	log := slogx.FromContext(ctx)

	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, s.loginFailed(ctx, in.Email, "malformed_email")
	}

	client, err := s.Store.Clients().GetClientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash anyway so unknown emails take as long as wrong
			// passwords.
			_, _ = cryptox.HashPassword(in.Password)
			return nil, s.loginFailed(ctx, email, "unknown_email")
		}
		return nil, err
	}
	if err := cryptox.VerifyPassword(in.Password, client.PasswordHash()); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			log.Error("stored password hash unreadable", "client_id", client.ID(), "err", err)
		}
		return nil, s.loginFailed(ctx, email, "bad_password")
	}

	policy, err := s.Store.MFA().GetPolicy(ctx, client.ID())
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	case policy.Active:
		return s.challenge(ctx, client, policy, in)
	}

	sess, token, err := s.openSession(ctx, client, []string{AMRPassword}, in.IP, in.Device)
	if err != nil {
		return nil, err
	}
	s.metrics().login("session")
	s.emit(ctx, domain.EventAuthLogin, actorFor(client), "", map[string]any{
		"clientId":  client.ID(),
		"sessionId": sess.ID,
		"ip":        in.IP,
	})
	log.Info("client logged in", "client_id", client.ID(), "session_id", sess.ID)
	return &LoginResult{ClientID: client.ID(), Session: &sess, Token: token}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) error {
	s.metrics().login("failed")
	s.emit(ctx, domain.EventAuthLoginFailed, domain.ActorUser(email), "", map[string]any{"reason": reason})
	slogx.FromContext(ctx).Info("login failed", slog.String("reason", reason))
	return domain.ErrInvalidCredentials
}

func (s *AuthService) challenge(ctx context.Context, c *domain.Client, p domain.MFAPolicy, in LoginInput) (*LoginResult, error) {
	method, ok := p.Type.Method()
	if !ok {
		return nil, domain.ErrUnknownMFAType
	}

	var plain, hash string
	if method.OutOfBand {
		var err error
		if plain, hash, err = newCode(s.entropy()); err != nil {
			return nil, err
		}
	}

	ttl := s.ChallengeTTL
	if ttl <= 0 {
		ttl = method.TTL
	}
	ch := domain.NewChallenge(domain.NewChallengeParams{
		ID:       s.newID(),
		ClientID: c.ID(),
		Type:     p.Type,
		CodeHash: hash,
		TTL:      ttl,
		IP:       in.IP,
		Device:   in.Device,
		Now:      s.now(),
	})
	if err := s.Store.MFA().CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	if method.OutOfBand && s.OTP != nil {
		channel, dest := method.Channel, c.Email()
		if channel == domain.ChannelSms {
			if c.Phone() != "" {
				dest = c.Phone()
			} else {
				channel = domain.ChannelEmail
			}
		}
		err := s.OTP.Send(ctx, OTPMessage{
			ClientID:    c.ID(),
			CodeID:      ch.ID,
			Channel:     channel,
			Destination: dest,
			Code:        plain,
		})
		if err != nil {
			slogx.FromContext(ctx).Error("mfa code dispatch failed", "client_id", c.ID(), "challenge_id", ch.ID, "err", err)
		}
	}

	s.metrics().login("mfa_required")
	s.metrics().mfaChallenge(string(p.Type), "issued")
	s.emit(ctx, domain.EventAuthMFAChallenge, actorFor(c), "", map[string]any{
		"clientId":    c.ID(),
		"challengeId": ch.ID,
		"type":        p.Type,
	})
	return &LoginResult{ClientID: c.ID(), MFARequired: true, Challenge: &ch}, nil
}

type VerifyMFAInput struct {
	ClientID    string
	ChallengeID string
	Code        string
	IP          string
	Device      string
}

// VerifyMFA answers a login challenge and opens a session on success.
func (s *AuthService) VerifyMFA(ctx context.Context, in VerifyMFAInput) (*LoginResult, error) {
	unlock := s.lock(challengeLockKey(in.ChallengeID))
	defer unlock()

	ch, err := s.Store.MFA().GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUnknownChallenge
		}
		return nil, err
	}
	if ch.ClientID != in.ClientID {
		return nil, domain.ErrUnknownChallenge
	}
	if strings.TrimSpace(in.Code) == "" {
		return nil, domain.ErrEmptyCode
	}

	check, err := s.codeCheck(ctx, ch)
	if err != nil {
		return nil, err
	}

	before := ch
	verr := ch.Verify(in.Code, s.now(), check)
	if ch.Status != before.Status || ch.Attempts != before.Attempts {
		if err := s.Store.MFA().UpdateChallenge(ctx, ch); err != nil {
			return nil, fmt.Errorf("update challenge: %w", err)
		}
	}

	client, err := s.Store.Clients().GetClientByID(ctx, ch.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrUnknownChallenge
		}
		return nil, err
	}

	if verr != nil {
		s.metrics().mfaChallenge(string(ch.Type), "failed")
		s.emit(ctx, domain.EventAuthMFAFailed, actorFor(client), "", map[string]any{
			"challengeId": ch.ID,
			"reason":      domain.CodeOf(verr),
			"attempts":    ch.Attempts,
		})
		return nil, verr
	}

	method, _ := ch.Type.Method()
	amr := []string{AMRPassword, method.AMR, AMRMFA}
	sess, token, err := s.openSession(ctx, client, amr, firstNonEmpty(in.IP, ch.IP), firstNonEmpty(in.Device, ch.Device))
	if err != nil {
		return nil, err
	}

	s.metrics().mfaChallenge(string(ch.Type), "passed")
	s.emit(ctx, domain.EventAuthMFAPassed, actorFor(client), "", map[string]any{
		"challengeId": ch.ID,
		"sessionId":   sess.ID,
	})
	return &LoginResult{ClientID: client.ID(), Session: &sess, Token: token}, nil
}

// codeCheck picks how a challenge's code is verified: TOTP against the
// policy secret, everything else against the dispatched code's hash.
func (s *AuthService) codeCheck(ctx context.Context, ch domain.MFAChallenge) (domain.CodeCheck, error) {
	method, ok := ch.Type.Method()
	if !ok {
		return nil, domain.ErrUnknownMFAType
	}
	if method.OutOfBand {
		hash := ch.CodeHash
		return func(code string) bool { return cryptox.MatchesHash(code, hash) }, nil
	}

	policy, err := s.Store.MFA().GetPolicy(ctx, ch.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return func(string) bool { return false }, nil
		}
		return nil, err
	}
	at := s.now()
	return func(code string) bool {
		ok, _ := totp.ValidateCustom(code, policy.Secret, at, totpValidateOpts)
		return ok
	}, nil
}

func (s *AuthService) openSession(ctx context.Context, c *domain.Client, amr []string, ip, device string) (domain.Session, string, error) {
	if s.Tokens == nil {
		return domain.Session{}, "", errors.New("no token issuer configured")
	}
	sess := domain.NewSession(domain.NewSessionParams{
		ID:        s.newID(),
		ClientID:  c.ID(),
		TokenType: s.Tokens.Type(),
		AMR:       amr,
		IP:        ip,
		Device:    device,
		TTL:       s.SessionTTL,
		Now:       s.now(),
	})

	tok, err := s.Tokens.Issue(ctx, TokenRequest{Session: sess, Email: c.Email(), Name: c.FullName(), Scopes: s.GrantedScopes()})
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("issue token: %w", err)
	}
	sess.TokenHash = tok.Hash

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.Session{}, "", fmt.Errorf("create session: %w", err)
	}
	return sess, tok.Token, nil
}

// GrantedScopes is the scope set every session receives.
func (s *AuthService) GrantedScopes() []string {
	if len(s.Scopes) == 0 {
		return DefaultScopes
	}
	return s.Scopes
}

// Renew extends a live session by the session TTL.
func (s *AuthService) Renew(ctx context.Context, sessionID string) (domain.Session, error) {
	unlock := s.lock("session:" + sessionID)
	defer unlock()

	sess, err := s.CheckSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := sess.Renew(s.SessionTTL, s.now()); err != nil {
		return domain.Session{}, err
	}
	if err := s.Store.Sessions().UpdateSession(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

// Logout revokes the session. Revoking twice is fine.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	unlock := s.lock("session:" + sessionID)
	defer unlock()

	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUnknownSession
		}
		return err
	}
	if !sess.Revoke(s.now()) {
		return nil
	}
	if err := s.Store.Sessions().UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if s.Tokens != nil {
		if err := s.Tokens.Revoke(ctx, sess.ID, sess.ExpiresAt); err != nil {
			slogx.FromContext(ctx).Warn("token revocation not recorded", "session_id", sess.ID, "err", err)
		}
	}

	s.emit(ctx, domain.EventAuthLogout, domain.ActorClient(sess.ClientID), "", map[string]any{"sessionId": sess.ID})
	return nil
}

// CheckSession returns the session if it is neither revoked nor expired.
func (s *AuthService) CheckSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrUnknownSession
		}
		return domain.Session{}, err
	}
	if err := sess.Check(s.now()); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// SessionByToken finds a live session from an opaque token.
func (s *AuthService) SessionByToken(ctx context.Context, token string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrUnknownSession
		}
		return domain.Session{}, err
	}
	if err := sess.Check(s.now()); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}
