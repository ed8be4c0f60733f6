package service

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks KYCVerifier,OTPDispatcher,PaymentProcessor,TokenIssuer,AuditSink

import (
	"context"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/shopspring/decimal"
)

// KYCVerifier is the external identity verification provider. Results come
// back out of band through SignupService.ApplyKYCOutcome.
type KYCVerifier interface {
	Submit(ctx context.Context, clientID, kycID string) error
	Status(ctx context.Context, kycID string) (domain.KYCStatus, error)
}

// OTPMessage is one code handed to a delivery channel. Code is plaintext
// and must not be logged outside a dev dispatcher.
type OTPMessage struct {
	ClientID    string
	CodeID      string
	Channel     domain.Channel
	Destination string
	Code        string
}

type OTPDispatcher interface {
	Send(ctx context.Context, msg OTPMessage) error
}

// DepositInstruction asks the processor to move funds for a PayTx. The
// processor reports back through DepositService.HandleSettlement with the
// same PaymentTxID.
type DepositInstruction struct {
	PaymentTxID string
	AccountID   string
	Amount      decimal.Decimal
	Currency    string
}

type PaymentProcessor interface {
	RequestDeposit(ctx context.Context, in DepositInstruction) error
}

// TokenRequest carries what a token issuer may embed in the token.
type TokenRequest struct {
	Session domain.Session
	Email   string
	Name    string
	Scopes  []string
}

// IssuedToken is the materialized bearer token. Hash is set for opaque
// tokens so the session can be found from the token later.
type IssuedToken struct {
	Token string
	Hash  string
}

// TokenIssuer turns a session record into a bearer token.
type TokenIssuer interface {
	Type() domain.TokenType
	Issue(ctx context.Context, req TokenRequest) (IssuedToken, error)
	Revoke(ctx context.Context, sessionID string, until time.Time) error
}

// AuditSink persists audit events. Writes happen on the auditor's worker,
// never on the request path.
type AuditSink interface {
	Write(ctx context.Context, ev domain.AuditEvent) error
}
