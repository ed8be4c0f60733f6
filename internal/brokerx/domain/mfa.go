package domain

import (
	"strings"
	"time"
)

type MFAType string

const (
	MFATotp     MFAType = "Totp"
	MFASms      MFAType = "Sms"
	MFAWebAuthn MFAType = "WebAuthn"
)

// ParseMFAType accepts the three types case-insensitively.
func ParseMFAType(s string) (MFAType, error) {
	for _, t := range []MFAType{MFATotp, MFASms, MFAWebAuthn} {
		if equalFoldTrim(s, string(t)) {
			return t, nil
		}
	}
	return "", ErrUnknownMFAType
}

// MFAMethod is how a given MFA type is challenged.
type MFAMethod struct {
	// OutOfBand methods generate a code and send it through the OTP port.
	// The others verify against the policy secret.
	OutOfBand bool
	Channel   Channel
	TTL       time.Duration
	AMR       string
}

// DefaultChallengeTTL is how long a challenge stays answerable.
const DefaultChallengeTTL = 5 * time.Minute

// mfaMethods maps each policy type to how its challenge is answered.
// WebAuthn is a stand-in: no authenticator ceremony is run, the client
// gets an out-of-band code by email instead.
var mfaMethods = map[MFAType]MFAMethod{
	MFATotp:     {OutOfBand: false, TTL: DefaultChallengeTTL, AMR: "otp"},
	MFASms:      {OutOfBand: true, Channel: ChannelSms, TTL: DefaultChallengeTTL, AMR: "sms"},
	MFAWebAuthn: {OutOfBand: true, Channel: ChannelEmail, TTL: DefaultChallengeTTL, AMR: "hwk"},
}

// Method returns the challenge behaviour for t.
func (t MFAType) Method() (MFAMethod, bool) {
	m, ok := mfaMethods[t]
	return m, ok
}

// MFAPolicy says whether a client's logins need a second factor.
type MFAPolicy struct {
	ID        string
	ClientID  string
	Type      MFAType
	Active    bool
	Secret    string // base32 TOTP secret, Totp only
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChallengeStatus string

const (
	ChallengePending ChallengeStatus = "Pending"
	ChallengePassed  ChallengeStatus = "Passed"
	ChallengeFailed  ChallengeStatus = "Failed"
	ChallengeExpired ChallengeStatus = "Expired"
)

// MFAChallenge is one second-factor prompt raised at login.
type MFAChallenge struct {
	ID          string
	ClientID    string
	Type        MFAType
	Status      ChallengeStatus
	CodeHash    string // out-of-band types only
	Attempts    int
	IP          string
	Device      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// NewChallengeParams describe a challenge to open.
type NewChallengeParams struct {
	ID       string
	ClientID string
	Type     MFAType
	CodeHash string
	TTL      time.Duration
	IP       string
	Device   string
	Now      time.Time
}

// NewChallenge returns a Pending challenge.
func NewChallenge(p NewChallengeParams) MFAChallenge {
	now := p.Now.UTC()
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return MFAChallenge{
		ID:        p.ID,
		ClientID:  p.ClientID,
		Type:      p.Type,
		Status:    ChallengePending,
		CodeHash:  p.CodeHash,
		IP:        p.IP,
		Device:    p.Device,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether now is at or past the expiry.
func (c MFAChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *MFAChallenge) complete(status ChallengeStatus, now time.Time) {
	at := now.UTC()
	c.Status = status
	c.CompletedAt = &at
}

// CodeCheck verifies a submitted second-factor code.
type CodeCheck func(code string) bool

// Verify answers the challenge. Only a Pending, unexpired challenge can
// pass; an expired one is marked Expired. Wrong codes count attempts and
// the MaxCodeAttempts-th one fails the challenge for good.
func (c *MFAChallenge) Verify(code string, now time.Time, check CodeCheck) error {
	if c.Status != ChallengePending {
		return ErrChallengeNotPending
	}
	if c.IsExpired(now) {
		c.complete(ChallengeExpired, now)
		return ErrChallengeExpired
	}

	if !check(strings.TrimSpace(code)) {
		c.Attempts++
		if c.Attempts >= MaxCodeAttempts {
			c.complete(ChallengeFailed, now)
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	c.complete(ChallengePassed, now)
	return nil
}

// Fail ends a Pending challenge as Failed.
func (c *MFAChallenge) Fail(now time.Time) error {
	if c.Status != ChallengePending {
		return ErrChallengeNotPending
	}
	c.complete(ChallengeFailed, now)
	return nil
}

// ExpireIfStale marks a Pending challenge past its expiry as Expired.
func (c *MFAChallenge) ExpireIfStale(now time.Time) bool {
	if c.Status != ChallengePending || !c.IsExpired(now) {
		return false
	}
	c.complete(ChallengeExpired, now)
	return true
}
