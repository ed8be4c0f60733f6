package domain

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "Email"
	ChannelSms   Channel = "Sms"
)

// ParseChannel accepts "email"/"sms" in any case. Empty means Email.
func ParseChannel(s string) (Channel, error) {
	switch {
	case strings.TrimSpace(s) == "", equalFoldTrim(s, string(ChannelEmail)):
		return ChannelEmail, nil
	case equalFoldTrim(s, string(ChannelSms)):
		return ChannelSms, nil
	}
	return "", ErrUnknownChannel
}

type CodeStatus string

const (
	CodePending  CodeStatus = "Pending"
	CodeVerified CodeStatus = "Verified"
	CodeExpired  CodeStatus = "Expired"
)

// MaxCodeAttempts is how many wrong guesses a code (or MFA challenge)
// tolerates before it is burned.
const MaxCodeAttempts = 5

// ContactCode is one dispatched contact verification code. Only the hash
// of the code is ever kept.
type ContactCode struct {
	ID         string
	ClientID   string
	Channel    Channel
	Status     CodeStatus
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

// IsExpired reports whether the code's TTL has elapsed at now.
func (c ContactCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}
