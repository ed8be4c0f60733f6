package domain

import "errors"

// Kind sentinels. Every *Error unwraps to exactly one of these so the HTTP
// layer can map failures without knowing each individual error.
var (
	ErrInvalid      = errors.New("invalid")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a typed business failure.
type Error struct {
	Kind error  // one of the kind sentinels
	Code string // stable machine readable code, e.g. "code_expired"
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Validation
var (
	ErrInvalidEmail           = newError(ErrInvalid, "invalid_email", "email must look like local@domain")
	ErrFullNameRequired       = newError(ErrInvalid, "full_name_required", "full name is required")
	ErrPasswordTooShort       = newError(ErrInvalid, "password_too_short", "password must be at least 8 characters")
	ErrInvalidCurrency        = newError(ErrInvalid, "invalid_currency", "currency must be a three letter ISO code")
	ErrInvalidAmount          = newError(ErrInvalid, "invalid_amount", "amount must be greater than zero")
	ErrZeroLedgerAmount       = newError(ErrInvalid, "invalid_amount", "ledger amount must not be zero")
	ErrIdempotencyKeyRequired = newError(ErrInvalid, "idempotency_key_required", "idempotency key is required")
	ErrEmptyCode              = newError(ErrInvalid, "empty_code", "verification code is required")
	ErrInvalidCode            = newError(ErrInvalid, "invalid_code", "verification code does not match")
	ErrNoPhone                = newError(ErrInvalid, "no_phone", "client has no phone number on file")
	ErrUnknownMFAType         = newError(ErrInvalid, "unknown_mfa_type", "mfa type must be Totp, Sms or WebAuthn")
	ErrUnknownChannel         = newError(ErrInvalid, "unknown_channel", "channel must be Email or Sms")
	ErrInvalidSettlement      = newError(ErrInvalid, "invalid_settlement", "settlement status is required")
)

// Not found
var (
	ErrClientNotFound     = newError(ErrNotFound, "client_not_found", "client not found")
	ErrAccountNotFound    = newError(ErrNotFound, "account_not_found", "account not found")
	ErrWalletNotFound     = newError(ErrNotFound, "wallet_not_found", "wallet not found for account")
	ErrUnknownTransaction = newError(ErrNotFound, "unknown_transaction", "payment transaction not found")
	ErrUnknownChallenge   = newError(ErrNotFound, "unknown_challenge", "mfa challenge not found")
	ErrUnknownSession     = newError(ErrNotFound, "unknown_session", "session not found")
	ErrNoActiveCode       = newError(ErrNotFound, "no_active_code", "no active verification code")
	ErrMFANotConfigured   = newError(ErrNotFound, "mfa_not_configured", "no mfa policy for client")
)

// Conflict / precondition
var (
	ErrEmailTaken             = newError(ErrConflict, "email_taken", "email is already registered")
	ErrCodeExpired            = newError(ErrConflict, "code_expired", "verification code has expired")
	ErrTooManyAttempts        = newError(ErrConflict, "too_many_attempts", "too many failed attempts")
	ErrKYCNotVerified         = newError(ErrConflict, "kyc_not_verified", "kyc is not verified")
	ErrContactNotVerified     = newError(ErrConflict, "contact_not_verified", "contact is not verified")
	ErrContactAlreadyVerified = newError(ErrConflict, "contact_already_verified", "contact is already verified")
	ErrClientRejected         = newError(ErrConflict, "client_rejected", "client has been rejected")
	ErrChallengeNotPending    = newError(ErrConflict, "challenge_not_pending", "mfa challenge is no longer pending")
	ErrChallengeExpired       = newError(ErrConflict, "challenge_expired", "mfa challenge has expired")
	ErrAlreadySettled         = newError(ErrConflict, "already_settled", "transaction is already settled")
	ErrAlreadyFailed          = newError(ErrConflict, "already_failed", "transaction has already failed")
	ErrCurrencyMismatch       = newError(ErrConflict, "currency_mismatch", "currency does not match wallet")
	ErrInsufficientBalance    = newError(ErrConflict, "insufficient_balance", "insufficient balance")
	ErrAccountNotActive       = newError(ErrConflict, "account_not_active", "account is not active")
	ErrInvalidTransition      = newError(ErrConflict, "invalid_transition", "status transition not allowed")
	ErrIdempotencyKeyReused   = newError(ErrConflict, "idempotency_key_reused", "idempotency key was used for another account")
)

// Unauthorized
var (
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid_credentials", "invalid email or password")
	ErrSessionRevoked     = newError(ErrUnauthorized, "session_revoked", "session has been revoked")
	ErrSessionExpired     = newError(ErrUnauthorized, "session_expired", "session has expired")
	ErrInvalidSignature   = newError(ErrUnauthorized, "invalid_signature", "webhook signature does not match")
)

// CodeOf returns the machine code for err, or "" when err is not a domain
// error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
