package brokersdk

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Signup & contact verification
// ============================================================================

// SignupRequest opens a client, its first account and wallet.
type SignupRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	FullName string `json:"fullName"`
	Password string `json:"password"`

	// BirthDate is YYYY-MM-DD.
	BirthDate string `json:"birthDate,omitempty"`

	// Currency of the first wallet, USD when empty.
	Currency string `json:"currency,omitempty"`
}

type SignupResponse struct {
	ClientID  string `json:"clientId"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// ResendOTPRequest asks for a fresh contact code. Channel is "Email"
// (default) or "Sms".
type ResendOTPRequest struct {
	Channel string `json:"channel,omitempty"`
}

type ResendOTPResponse struct {
	CodeID    string    `json:"codeId"`
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyOTPRequest struct {
	Code string `json:"code"`
}

type VerifyOTPResponse struct {
	ClientID  string `json:"clientId"`
	Status    string `json:"status"`
	Activated bool   `json:"activated"`
}

// ============================================================================
// Authentication
// ============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and MFA verification. When
// MFARequired is set the token is empty and ChallengeID must be answered.
type LoginResponse struct {
	Token       string     `json:"token"`
	MFARequired bool       `json:"mfaRequired"`
	ClientID    string     `json:"clientId"`
	ChallengeID string     `json:"challengeId,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type VerifyMFARequest struct {
	ClientID    string `json:"clientId"`
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ============================================================================
// Profile & MFA policy
// ============================================================================

type AccountView struct {
	AccountID string          `json:"accountId"`
	Number    string          `json:"number"`
	Status    string          `json:"status"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

type MeResponse struct {
	ClientID  string        `json:"clientId"`
	Email     string        `json:"email"`
	FullName  string        `json:"fullName"`
	Phone     string        `json:"phone,omitempty"`
	Status    string        `json:"status"`
	KYCStatus string        `json:"kycStatus,omitempty"`
	KYCLevel  string        `json:"kycLevel,omitempty"`
	Accounts  []AccountView `json:"accounts"`
}

// SetMFARequest creates or changes the policy. Active defaults to true.
type SetMFARequest struct {
	Type   string `json:"type"`
	Active *bool  `json:"active,omitempty"`
}

type MFAPolicyResponse struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`

	// OtpauthURL is only returned when a Totp secret was just generated.
	OtpauthURL string `json:"otpauthUrl,omitempty"`
}

// ============================================================================
// Funds
// ============================================================================

// DepositRequest asks for funds to be moved in. An Idempotency-Key header
// takes precedence over IdempotencyKey.
type DepositRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type DepositResponse struct {
	PaymentTxID    string          `json:"paymentTxId"`
	Status         string          `json:"status"`
	NewCashBalance decimal.Decimal `json:"newCashBalance"`
	FailureReason  string          `json:"failureReason,omitempty"`
}

type LedgerEntryView struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Kind      string          `json:"kind"`
	RefType   string          `json:"refType"`
	RefID     string          `json:"refId,omitempty"`
	Memo      string          `json:"memo,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type LedgerResponse struct {
	AccountID string            `json:"accountId"`
	Entries   []LedgerEntryView `json:"entries"`
}

// WebhookRequest is the payment processor's settlement callback.
type WebhookRequest struct {
	PaymentTxID string `json:"paymentTxId"`
	Status      string `json:"status"`
	Signature   string `json:"signature,omitempty"`
	ProviderRef string `json:"providerRef,omitempty"`
}

type WebhookResponse struct {
	PaymentTxID string `json:"paymentTxId"`
	Status      string `json:"status"`
}

// ============================================================================
// Dev & health
// ============================================================================

type OTPMessage struct {
	CodeID      string    `json:"codeId"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	SentAt      time.Time `json:"sentAt"`
}

// DevOTPResponse lists codes sent to a client, oldest first. Only
// available outside production.
type DevOTPResponse struct {
	ClientID string       `json:"clientId"`
	Messages []OTPMessage `json:"messages"`
}

// Latest returns the most recent message, or the zero value.
func (r *DevOTPResponse) Latest() OTPMessage {
	if len(r.Messages) == 0 {
		return OTPMessage{}
	}
	return r.Messages[len(r.Messages)-1]
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Cache    string `json:"cache,omitempty"`
}

// HealthResponse is returned by /livez and /readyz (Checks on readyz only).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
