package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store/drivers/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedClient(t *testing.T, st store.Store, id, email string) *domain.Client {
	t.Helper()
	c, err := domain.NewClient(domain.NewClientParams{ID: id, Email: email, FullName: "Jane Doe", PasswordHash: "h", Now: t0})
	require.NoError(t, err)
	c.StartKYCIfAbsent("kyc-"+id, t0)
	c.StartContactCode(domain.StartCodeParams{ID: "otp-" + id, Channel: domain.ChannelEmail, CodeHash: "123456", TTL: 10 * time.Minute, Now: t0})
	require.NoError(t, st.Clients().CreateClient(context.Background(), c))
	return c
}

func seedAccount(t *testing.T, st store.Store, clientID, id string) domain.Account {
	t.Helper()
	ctx := context.Background()
	acct := domain.Account{ID: id, ClientID: clientID, Number: "BX-20250301-" + id, Status: domain.AccountActive, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, st.Accounts().CreateAccount(ctx, acct))
	w, err := domain.NewWallet("w-"+id, id, "USD", t0)
	require.NoError(t, err)
	require.NoError(t, st.Wallets().CreateWallet(ctx, w))
	return acct
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}

func TestClients_RoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "jane@example.com")
	seedAccount(t, st, "c1", "a1")

	got, err := st.Clients().GetClientByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID())
	require.Equal(t, domain.ClientPending, got.Status())
	require.Equal(t, []string{"a1"}, got.AccountIDs())

	kyc, ok := got.KYC()
	require.True(t, ok)
	require.Equal(t, domain.KYCPending, kyc.Status)

	codes := got.Codes()
	require.Len(t, codes, 1)
	require.Equal(t, "123456", codes[0].CodeHash)
	require.True(t, codes[0].ExpiresAt.Equal(t0.Add(10*time.Minute)))

	_, err = st.Clients().GetClientByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClients_DuplicateEmail(t *testing.T) {
	st := newStore(t)
	seedClient(t, st, "c1", "jane@example.com")

	c, err := domain.NewClient(domain.NewClientParams{ID: "c2", Email: "JANE@example.com", FullName: "J", Now: t0})
	require.NoError(t, err)
	require.ErrorIs(t, st.Clients().CreateClient(context.Background(), c), store.ErrAlreadyExists)
}

func TestClients_SaveIsVersionChecked(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "jane@example.com")

	first, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	second, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)

	_, err = first.VerifyContactCode("123456", t0.Add(time.Minute), func(c, h string) bool { return c == h })
	require.NoError(t, err)
	require.NoError(t, st.Clients().SaveClient(ctx, first))
	require.Equal(t, int64(1), first.Version())

	// A stale copy must not overwrite the verified code.
	second.Reject(t0)
	require.ErrorIs(t, st.Clients().SaveClient(ctx, second), store.ErrConflict)

	reloaded, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	require.True(t, reloaded.HasVerifiedContact())
	require.Equal(t, domain.ClientPending, reloaded.Status())
	require.NotNil(t, reloaded.Codes()[0].VerifiedAt)
}

func TestClients_SaveIsAllOrNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brokerx.db")
	st, err := sqlite.NewStore("file:" + path + "?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ctx := context.Background()
	seedClient(t, st, "c1", "jane@example.com")

	c, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	_, _, err = c.ApplyKYCOutcome(domain.KYCVerified, "Basic", t0)
	require.NoError(t, err)
	require.NoError(t, st.Clients().SaveClient(ctx, c))

	activated, err := c.VerifyContactCode("123456", t0.Add(time.Minute), func(code, hash string) bool { return code == hash })
	require.NoError(t, err)
	require.True(t, activated)

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `
		CREATE TRIGGER fail_code_update BEFORE UPDATE ON contact_codes
		BEGIN SELECT RAISE(ABORT, 'io'); END`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	require.Error(t, st.Clients().SaveClient(ctx, c))
	require.Equal(t, int64(1), c.Version(), "version only moves on commit")

	stored, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, domain.ClientPending, stored.Status())
	require.False(t, stored.HasVerifiedContact())
	require.Equal(t, int64(1), stored.Version())
}

func TestClients_ExpireStaleCodes(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")

	n, err := st.Clients().ExpireStaleCodes(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = st.Clients().ExpireStaleCodes(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	c, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, domain.CodeExpired, c.Codes()[0].Status)
}

func TestWallets_VersionedSave(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")
	seedAccount(t, st, "c1", "a1")

	w, err := st.Wallets().GetWalletByAccount(ctx, "a1")
	require.NoError(t, err)
	stale := w

	require.NoError(t, w.Credit(decimal.RequireFromString("100.25"), "USD", t0))
	require.NoError(t, st.Wallets().SaveWallet(ctx, &w))

	require.NoError(t, stale.Credit(decimal.NewFromInt(1), "USD", t0))
	require.ErrorIs(t, st.Wallets().SaveWallet(ctx, &stale), store.ErrConflict)

	got, err := st.Wallets().GetWalletByAccount(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "100.25", got.Balance.String())
	require.Equal(t, int64(1), got.Version)
}

func TestPayments_IdempotencyAndTransition(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")
	seedAccount(t, st, "c1", "a1")

	tx, err := domain.NewPayTx(domain.NewPayTxParams{ID: "tx1", AccountID: "a1", Amount: decimal.RequireFromString("100.00"), Currency: "USD", IdempotencyKey: "k1", Now: t0})
	require.NoError(t, err)
	require.NoError(t, st.Payments().CreatePayTx(ctx, tx))

	dup := tx
	dup.ID = "tx2"
	require.ErrorIs(t, st.Payments().CreatePayTx(ctx, dup), store.ErrAlreadyExists)

	byKey, err := st.Payments().GetPayTxByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "tx1", byKey.ID)
	require.True(t, byKey.Amount.Equal(decimal.NewFromInt(100)))

	settled := byKey
	_, err = settled.MarkSettled(t0.Add(time.Second))
	require.NoError(t, err)

	ok, err := st.Payments().TransitionPayTx(ctx, settled, domain.PayTxPending)
	require.NoError(t, err)
	require.True(t, ok)

	// The second writer loses the race.
	ok, err = st.Payments().TransitionPayTx(ctx, settled, domain.PayTxPending)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := st.Payments().GetPayTx(ctx, "tx1")
	require.NoError(t, err)
	require.Equal(t, domain.PayTxSettled, got.Status)
	require.NotNil(t, got.SettledAt)
}

func TestLedger_OneDepositPerTx(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")
	seedAccount(t, st, "c1", "a1")

	tx, err := domain.NewPayTx(domain.NewPayTxParams{ID: "tx1", AccountID: "a1", Amount: decimal.NewFromInt(5), Currency: "USD", IdempotencyKey: "k", Now: t0})
	require.NoError(t, err)

	e1, err := domain.DepositEntry("l1", tx, t0)
	require.NoError(t, err)
	require.NoError(t, st.Ledger().AppendEntry(ctx, e1))

	e2, err := domain.DepositEntry("l2", tx, t0)
	require.NoError(t, err)
	require.ErrorIs(t, st.Ledger().AppendEntry(ctx, e2), store.ErrAlreadyExists)

	adj, err := domain.NewLedgerEntry(domain.NewLedgerEntryParams{
		ID: "l3", AccountID: "a1", Amount: decimal.NewFromInt(-2), Currency: "USD",
		Kind: domain.EntryAdjustment, RefType: domain.RefOther, Memo: "fee refund reversal", Now: t0.Add(time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, st.Ledger().AppendEntry(ctx, adj))

	entries, err := st.Ledger().ListEntries(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "l3", entries[0].ID, "newest first")
	require.Equal(t, "-2", entries[0].Amount.String())

	n, err := st.Ledger().CountByRef(ctx, domain.RefPaymentTx, "tx1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	entries, err = st.Ledger().ListEntries(ctx, "a1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWithTx_RollsBack(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		acct := domain.Account{ID: "a1", ClientID: "c1", Number: "BX-1", Status: domain.AccountActive, CreatedAt: t0, UpdatedAt: t0}
		require.NoError(t, tx.Accounts().CreateAccount(ctx, acct))
		return store.ErrConflict
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = st.Accounts().GetAccount(ctx, "a1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMFA_PolicyAndChallenges(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")

	_, err := st.MFA().GetPolicy(ctx, "c1")
	require.ErrorIs(t, err, store.ErrNotFound)

	p := domain.MFAPolicy{ID: "p1", ClientID: "c1", Type: domain.MFATotp, Active: true, Secret: "JBSWY3DPEHPK3PXP", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, st.MFA().UpsertPolicy(ctx, p))
	p.ID = "p2" // replacement keeps the original row id
	p.Type = domain.MFASms
	p.Active = false
	require.NoError(t, st.MFA().UpsertPolicy(ctx, p))

	got, err := st.MFA().GetPolicy(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "p1", got.ID)
	require.Equal(t, domain.MFASms, got.Type)
	require.False(t, got.Active)

	require.NoError(t, st.MFA().DeletePolicy(ctx, "c1"))
	require.ErrorIs(t, st.MFA().DeletePolicy(ctx, "c1"), store.ErrNotFound)

	ch := domain.NewChallenge(domain.NewChallengeParams{ID: "ch1", ClientID: "c1", Type: domain.MFASms, CodeHash: "h", Now: t0})
	require.NoError(t, st.MFA().CreateChallenge(ctx, ch))

	n, err := st.MFA().ExpireStaleChallenges(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got2, err := st.MFA().GetChallenge(ctx, "ch1")
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeExpired, got2.Status)
	require.NotNil(t, got2.CompletedAt)
}

func TestSessions(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedClient(t, st, "c1", "a@example.com")

	s := domain.NewSession(domain.NewSessionParams{ID: "s1", ClientID: "c1", TokenType: domain.TokenOpaque, AMR: []string{"pwd", "otp"}, TTL: time.Hour, Now: t0})
	s.TokenHash = "fp"
	require.NoError(t, st.Sessions().CreateSession(ctx, s))

	got, err := st.Sessions().GetSessionByTokenHash(ctx, "fp")
	require.NoError(t, err)
	require.Equal(t, []string{"pwd", "otp"}, got.AMR)

	_, err = st.Sessions().GetSessionByTokenHash(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	got.Revoke(t0.Add(time.Minute))
	require.NoError(t, st.Sessions().UpdateSession(ctx, got))

	n, err := st.Sessions().DeleteDeadSessions(ctx, t0)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = st.Sessions().DeleteDeadSessions(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestAudit_ListFilters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	events := []domain.AuditEvent{
		{ID: "e1", Type: domain.EventDepositRequested, Actor: domain.ActorSystem, AccountID: "a1", Payload: []byte(`{"amount":"1"}`), CreatedAt: t0},
		{ID: "e2", Type: domain.EventDepositSettled, Actor: domain.ActorPayWebhook, AccountID: "a1", CreatedAt: t0.Add(time.Second)},
		{ID: "e3", Type: domain.EventClientSignup, Actor: domain.ActorUser("x@y.z"), CreatedAt: t0.Add(2 * time.Second)},
	}
	for _, e := range events {
		require.NoError(t, st.Audit().AppendEvent(ctx, e))
	}

	all, err := st.Audit().ListEvents(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "e3", all[0].ID)

	byAcct, err := st.Audit().ListEvents(ctx, store.AuditFilter{AccountID: "a1", Type: domain.EventDepositRequested})
	require.NoError(t, err)
	require.Len(t, byAcct, 1)
	require.JSONEq(t, `{"amount":"1"}`, string(byAcct[0].Payload))
}
