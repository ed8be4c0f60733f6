package domain

import (
	"encoding/json"
	"time"
)

// Audit event types.
const (
	EventClientSignup         = "CLIENT_SIGNUP"
	EventContactOTPResent     = "CONTACT_OTP_RESENT"
	EventContactOTPVerified   = "CONTACT_OTP_VERIFIED"
	EventContactOTPFailed     = "CONTACT_OTP_VERIFICATION_FAILED"
	EventKYCVerified          = "KYC_VERIFIED"
	EventKYCRejected          = "KYC_REJECTED"
	EventClientActivated      = "CLIENT_ACTIVATED"
	EventClientRejected       = "CLIENT_REJECTED"
	EventAuthLogin            = "AUTH_LOGIN"
	EventAuthLoginFailed      = "AUTH_LOGIN_FAILED"
	EventAuthMFAChallenge     = "AUTH_MFA_CHALLENGE"
	EventAuthMFAPassed        = "AUTH_MFA_PASSED"
	EventAuthMFAFailed        = "AUTH_MFA_FAILED"
	EventAuthLogout           = "AUTH_LOGOUT"
	EventMFAPolicyChanged     = "MFA_POLICY_CHANGED"
	EventDepositRequested     = "DEPOSIT_REQUESTED"
	EventDepositSettled       = "DEPOSIT_SETTLED"
	EventDepositFailed        = "DEPOSIT_FAILED"
	EventAccountOpened        = "ACCOUNT_OPENED"
	EventAccountStatusChanged = "ACCOUNT_STATUS_CHANGED"
	EventAccountAdjusted      = "ACCOUNT_ADJUSTED"
)

// Well known actors.
const (
	ActorSystem     = "system"
	ActorPayWebhook = "webhook:pay-sim"
	ActorKYC        = "kyc:sim"
)

// ActorUser formats the actor for an end user.
func ActorUser(email string) string { return "user:" + email }

// ActorClient formats the actor for a client id.
func ActorClient(id string) string { return "client:" + id }

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	ID        string
	Type      string
	Actor     string
	AccountID string
	Payload   json.RawMessage
	CreatedAt time.Time
}
