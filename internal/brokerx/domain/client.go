package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

type ClientStatus string

const (
	ClientPending  ClientStatus = "Pending"
	ClientActive   ClientStatus = "Active"
	ClientRejected ClientStatus = "Rejected"
)

// MinPasswordLength applies at signup.
const MinPasswordLength = 8

// ClientRecord is the flat, persisted part of a Client.
type ClientRecord struct {
	ID           string
	Email        string
	Phone        string
	FullName     string
	BirthDate    *time.Time
	PasswordHash string
	Status       ClientStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Client is the identity aggregate root. Its KYC case and contact codes
// are only changed through its methods, which keeps the activation rule
// (KYC Verified and a Verified contact code) in one place.
type Client struct {
	rec        ClientRecord
	kyc        *KYCCase
	codes      []ContactCode
	accountIDs []string
}

// NewClientParams are the signup inputs. PasswordHash is already hashed.
type NewClientParams struct {
	ID           string
	Email        string
	Phone        string
	FullName     string
	BirthDate    *time.Time
	PasswordHash string
	Now          time.Time
}

// NewClient validates p and returns a Pending client.
func NewClient(p NewClientParams) (*Client, error) {
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		return nil, ErrFullNameRequired
	}

	now := p.Now.UTC()
	return &Client{rec: ClientRecord{
		ID:           p.ID,
		Email:        email,
		Phone:        strings.TrimSpace(p.Phone),
		FullName:     name,
		BirthDate:    p.BirthDate,
		PasswordHash: p.PasswordHash,
		Status:       ClientPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}, nil
}

// NormalizeEmail trims and lower-cases s and checks it has exactly one '@'
// with something either side.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Count(s, "@") != 1 {
		return "", ErrInvalidEmail
	}
	local, domain, _ := strings.Cut(s, "@")
	if local == "" || domain == "" {
		return "", ErrInvalidEmail
	}
	return s, nil
}

// ClientFromRecord rebuilds a Client loaded from storage.
func ClientFromRecord(rec ClientRecord, kyc *KYCCase, codes []ContactCode, accountIDs []string) *Client {
	c := &Client{rec: rec, codes: slices.Clone(codes), accountIDs: slices.Clone(accountIDs)}
	if kyc != nil {
		k := *kyc
		c.kyc = &k
	}
	return c
}

// Record returns a copy of the persisted fields.
func (c *Client) Record() ClientRecord { return c.rec }

func (c *Client) ID() string { return c.rec.ID }
func (c *Client) Email() string { return c.rec.Email }
func (c *Client) Phone() string { return c.rec.Phone }
func (c *Client) FullName() string { return c.rec.FullName }
func (c *Client) BirthDate() *time.Time { return c.rec.BirthDate }
func (c *Client) PasswordHash() string { return c.rec.PasswordHash }
func (c *Client) Status() ClientStatus { return c.rec.Status }
func (c *Client) Version() int64 { return c.rec.Version }
func (c *Client) AccountIDs() []string { return slices.Clone(c.accountIDs) }
func (c *Client) Codes() []ContactCode { return slices.Clone(c.codes) }
func (c *Client) IsActive() bool { return c.rec.Status == ClientActive }
func (c *Client) IsRejected() bool { return c.rec.Status == ClientRejected }
func (c *Client) UpdatedAt() time.Time { return c.rec.UpdatedAt }
func (c *Client) CreatedAt() time.Time { return c.rec.CreatedAt }
func (c *Client) touch(now time.Time) { c.rec.UpdatedAt = now.UTC() }
func (c *Client) HasKYC() bool { return c.kyc != nil }

// SetVersion is called by the store after a successful save.
func (c *Client) SetVersion(v int64) { c.rec.Version = v }

// KYC returns a copy of the KYC case.
func (c *Client) KYC() (KYCCase, bool) {
	if c.kyc == nil {
		return KYCCase{}, false
	}
	return *c.kyc, true
}

// StartKYCIfAbsent opens a Pending case at the default level. It reports
// false when a case already existed.
func (c *Client) StartKYCIfAbsent(id string, now time.Time) bool {
	if c.kyc != nil {
		return false
	}
	c.kyc = &KYCCase{
		ID:        id,
		ClientID:  c.rec.ID,
		Level:     DefaultKYCLevel,
		Status:    KYCPending,
		UpdatedAt: now.UTC(),
	}
	return true
}

// StartCodeParams describe a freshly generated contact code.
type StartCodeParams struct {
	ID       string
	Channel  Channel
	CodeHash string
	TTL      time.Duration
	Now      time.Time
}

// StartContactCode appends a Pending code. Earlier codes stay as they are,
// they simply stop being the latest.
func (c *Client) StartContactCode(p StartCodeParams) ContactCode {
	now := p.Now.UTC()
	code := ContactCode{
		ID:        p.ID,
		ClientID:  c.rec.ID,
		Channel:   p.Channel,
		Status:    CodePending,
		CodeHash:  p.CodeHash,
		ExpiresAt: now.Add(p.TTL),
		CreatedAt: now,
	}
	c.codes = append(c.codes, code)
	return code
}

// latestPending returns the index of the most recently created Pending
// code, or -1.
func (c *Client) latestPending() int {
	best := -1
	for i, code := range c.codes {
		if code.Status != CodePending {
			continue
		}
		if best == -1 || !code.CreatedAt.Before(c.codes[best].CreatedAt) {
			best = i
		}
	}
	return best
}

// HasVerifiedContact reports whether any contact code was verified.
func (c *Client) HasVerifiedContact() bool {
	return slices.ContainsFunc(c.codes, func(code ContactCode) bool {
		return code.Status == CodeVerified
	})
}

// CodeMatcher compares a submitted plaintext code with a stored hash.
type CodeMatcher func(code, hash string) bool

// VerifyContactCode checks submitted against the latest Pending code.
//
// An expired code is marked Expired and fails with ErrCodeExpired whatever
// was submitted. A wrong code counts an attempt and after MaxCodeAttempts
// the code is burned. On success the code is Verified and activation is
// attempted; activation preconditions that aren't met yet are not an error
// here. activated reports whether this call moved the client to Active.
//
// Failed attempts change the aggregate, so callers persist it on error too
// unless the error is ErrEmptyCode or ErrNoActiveCode.
func (c *Client) VerifyContactCode(submitted string, now time.Time, match CodeMatcher) (activated bool, err error) {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return false, ErrEmptyCode
	}

	i := c.latestPending()
	if i < 0 {
		return false, ErrNoActiveCode
	}
	code := &c.codes[i]

	if code.IsExpired(now) {
		code.Status = CodeExpired
		c.touch(now)
		return false, ErrCodeExpired
	}

	if !match(submitted, code.CodeHash) {
		code.Attempts++
		c.touch(now)
		if code.Attempts >= MaxCodeAttempts {
			code.Status = CodeExpired
			return false, ErrTooManyAttempts
		}
		return false, ErrInvalidCode
	}

	t := now.UTC()
	code.Status = CodeVerified
	code.VerifiedAt = &t
	c.touch(now)

	// A rejected client can still prove its contact, it just stays rejected.
	activated, err = c.TryActivate(now)
	if err != nil && !IsActivationPending(err) && !errors.Is(err, ErrClientRejected) {
		return false, err
	}
	return activated, nil
}

// ExpireStaleCodes marks every Pending code past its expiry as Expired and
// returns how many changed.
func (c *Client) ExpireStaleCodes(now time.Time) int {
	n := 0
	for i := range c.codes {
		if c.codes[i].Status == CodePending && c.codes[i].IsExpired(now) {
			c.codes[i].Status = CodeExpired
			n++
		}
	}
	if n > 0 {
		c.touch(now)
	}
	return n
}

// TryActivate moves a Pending client to Active once KYC is Verified and a
// contact code is Verified. Already Active is a no-op. changed reports
// whether the status moved.
func (c *Client) TryActivate(now time.Time) (changed bool, err error) {
	switch c.rec.Status {
	case ClientActive:
		return false, nil
	case ClientRejected:
		return false, ErrClientRejected
	}
	if c.kyc == nil || c.kyc.Status != KYCVerified {
		return false, ErrKYCNotVerified
	}
	if !c.HasVerifiedContact() {
		return false, ErrContactNotVerified
	}

	c.rec.Status = ClientActive
	c.touch(now)
	return true, nil
}

// IsActivationPending reports whether err only means "not yet": one of
// the activation preconditions is still outstanding.
func IsActivationPending(err error) bool {
	return errors.Is(err, ErrKYCNotVerified) || errors.Is(err, ErrContactNotVerified)
}

// ApplyKYCOutcome records the verifier's result. Verified attempts
// activation; Rejected also rejects the client. Repeating the current
// outcome is a no-op, flipping a decided case is ErrInvalidTransition.
func (c *Client) ApplyKYCOutcome(status KYCStatus, level string, now time.Time) (changed, activated bool, err error) {
	if c.kyc == nil {
		return false, false, ErrInvalidTransition
	}

	switch {
	case status == KYCPending:
		return false, false, ErrInvalidTransition
	case c.kyc.Status == status:
		return false, false, nil
	case c.kyc.Status != KYCPending:
		return false, false, ErrInvalidTransition
	}

	c.kyc.Status = status
	if level = strings.TrimSpace(level); level != "" {
		c.kyc.Level = level
	}
	c.kyc.UpdatedAt = now.UTC()
	c.touch(now)

	if status == KYCRejected {
		c.Reject(now)
		return true, false, nil
	}

	activated, err = c.TryActivate(now)
	if err != nil && !IsActivationPending(err) && !errors.Is(err, ErrClientRejected) {
		return true, false, err
	}
	return true, activated, nil
}

// Reject sets the client Rejected. It reports false if it already was.
func (c *Client) Reject(now time.Time) bool {
	if c.rec.Status == ClientRejected {
		return false
	}
	c.rec.Status = ClientRejected
	c.touch(now)
	return true
}

// OpenAccount creates an Active account for the client. Rejected clients
// can't open accounts.
func (c *Client) OpenAccount(id, number string, now time.Time) (Account, error) {
	if c.rec.Status == ClientRejected {
		return Account{}, ErrClientRejected
	}
	now = now.UTC()
	acct := Account{
		ID:        id,
		ClientID:  c.rec.ID,
		Number:    number,
		Status:    AccountActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.accountIDs = append(c.accountIDs, id)
	return acct, nil
}
