package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict means an optimistic version check failed: someone else
	// saved the row since it was read.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Sub-repositories hang off it so
// the same code runs against the database or inside a transaction.
type Store interface {
	Clients() Clients
	Accounts() Accounts
	Wallets() Wallets
	Payments() Payments
	Ledger() Ledger
	MFA() MFA
	Sessions() Sessions
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or
	// Rollback the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// CreateClient inserts the client with its KYC case and contact codes.
	// A taken email is ErrAlreadyExists.
	CreateClient(ctx context.Context, c *domain.Client) error

	// GetClientByID loads the whole aggregate: record, KYC case, contact
	// codes (oldest first) and account ids.
	GetClientByID(ctx context.Context, id string) (*domain.Client, error)

	// GetClientByEmail looks up by normalized email.
	GetClientByEmail(ctx context.Context, email string) (*domain.Client, error)

	// SaveClient writes the aggregate back if its version is unchanged,
	// else ErrConflict. On success the client's version is bumped.
	SaveClient(ctx context.Context, c *domain.Client) error

	// ExpireStaleCodes marks Pending codes past their expiry as Expired.
	ExpireStaleCodes(ctx context.Context, now time.Time) (int64, error)
}

type Accounts interface {
	// CreateAccount inserts an account. A duplicate number is
	// ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error
	GetAccount(ctx context.Context, id string) (domain.Account, error)

	// ListAccountsByClient returns accounts oldest first.
	ListAccountsByClient(ctx context.Context, clientID string) ([]domain.Account, error)
	UpdateAccountStatus(ctx context.Context, a domain.Account) error
}

type Wallets interface {
	CreateWallet(ctx context.Context, w domain.Wallet) error
	GetWalletByAccount(ctx context.Context, accountID string) (domain.Wallet, error)

	// SaveWallet writes the balance if the version is unchanged, else
	// ErrConflict. On success w.Version is bumped.
	SaveWallet(ctx context.Context, w *domain.Wallet) error
}

type Payments interface {
	// CreatePayTx inserts a Pending transaction. A reused idempotency key
	// is ErrAlreadyExists.
	CreatePayTx(ctx context.Context, tx domain.PayTx) error
	GetPayTx(ctx context.Context, id string) (domain.PayTx, error)
	GetPayTxByIdempotencyKey(ctx context.Context, key string) (domain.PayTx, error)

	// TransitionPayTx writes tx's status, settled time and failure reason
	// only if the stored status is still from. It reports whether the row
	// changed.
	TransitionPayTx(ctx context.Context, tx domain.PayTx, from domain.PayTxStatus) (bool, error)
}

type Ledger interface {
	// AppendEntry inserts an entry. A second DEPOSIT for the same
	// reference is ErrAlreadyExists.
	AppendEntry(ctx context.Context, e domain.LedgerEntry) error

	// ListEntries returns an account's entries newest first. limit <= 0
	// means all.
	ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error)

	CountByRef(ctx context.Context, refType domain.RefType, refID string) (int, error)
}

type MFA interface {
	GetPolicy(ctx context.Context, clientID string) (domain.MFAPolicy, error)

	// UpsertPolicy creates or replaces the client's policy.
	UpsertPolicy(ctx context.Context, p domain.MFAPolicy) error
	DeletePolicy(ctx context.Context, clientID string) error

	CreateChallenge(ctx context.Context, ch domain.MFAChallenge) error
	GetChallenge(ctx context.Context, id string) (domain.MFAChallenge, error)

	// UpdateChallenge writes status, attempts and completion time.
	UpdateChallenge(ctx context.Context, ch domain.MFAChallenge) error

	// ExpireStaleChallenges marks Pending challenges past expiry as Expired.
	ExpireStaleChallenges(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// UpdateSession writes expiry and revocation.
	UpdateSession(ctx context.Context, s domain.Session) error

	// DeleteDeadSessions removes sessions that were revoked or expired
	// before cutoff.
	DeleteDeadSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditFilter narrows ListEvents. Zero fields match everything.
type AuditFilter struct {
	AccountID string
	Type      string
	Limit     int
}

type Audit interface {
	AppendEvent(ctx context.Context, e domain.AuditEvent) error

	// ListEvents returns matching events newest first.
	ListEvents(ctx context.Context, f AuditFilter) ([]domain.AuditEvent, error)
}
