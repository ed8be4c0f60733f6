package service_test

import (
	"testing"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOpenAccount(t *testing.T) {
	e := newEnv(t)
	res := e.activated("a@b.com")
	id := res.Client.ID()

	eur, err := e.accounts.OpenAccount(e.ctx, id, "eur")
	require.NoError(t, err)
	require.Equal(t, "EUR", eur.Wallet.Currency)
	require.Equal(t, id, eur.Account.ClientID)
	require.NotEqual(t, res.Account.Number, eur.Account.Number)

	_, err = e.accounts.OpenAccount(e.ctx, id, "euro")
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)
	_, err = e.accounts.OpenAccount(e.ctx, "missing", "")
	require.ErrorIs(t, err, domain.ErrClientNotFound)

	ov, err := e.accounts.Overview(e.ctx, id)
	require.NoError(t, err)
	require.Len(t, ov.Accounts, 2)
	require.Equal(t, res.Account.ID, ov.Accounts[0].Account.ID)
	require.Equal(t, "USD", ov.Accounts[0].Wallet.Currency)
	require.Equal(t, "EUR", ov.Accounts[1].Wallet.Currency)
}

func TestAccountStatusTransitions(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	_, err := e.accounts.Resume(e.ctx, acct.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := e.accounts.Suspend(e.ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountSuspended, got.Status)

	got, err = e.accounts.Resume(e.ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountActive, got.Status)

	got, err = e.accounts.Close(e.ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountClosed, got.Status)
	got, err = e.accounts.Close(e.ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountClosed, got.Status)

	_, err = e.accounts.Suspend(e.ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	evs := e.auditEvents(store.AuditFilter{Type: domain.EventAccountStatusChanged})
	require.Len(t, evs, 3)
}

func TestAdjust(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	w, entry, err := e.accounts.Adjust(e.ctx, acct.ID, decimal.RequireFromString("12.34"), "goodwill")
	require.NoError(t, err)
	require.Equal(t, "12.34", w.Balance.String())
	require.Equal(t, domain.EntryAdjustment, entry.Kind)
	require.Equal(t, domain.RefOther, entry.RefType)
	require.Equal(t, "goodwill", entry.Memo)

	w, _, err = e.accounts.Adjust(e.ctx, acct.ID, decimal.RequireFromString("-2.34"), "fee")
	require.NoError(t, err)
	require.Equal(t, "10", w.Balance.String())

	_, _, err = e.accounts.Adjust(e.ctx, acct.ID, decimal.NewFromInt(-11), "too much")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, _, err = e.accounts.Adjust(e.ctx, acct.ID, decimal.Zero, "nothing")
	require.ErrorIs(t, err, domain.ErrZeroLedgerAmount)

	entries, err := e.accounts.Ledger(e.ctx, acct.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "failed adjustments leave no entries")

	_, err = e.accounts.Close(e.ctx, acct.ID)
	require.NoError(t, err)
	_, _, err = e.accounts.Adjust(e.ctx, acct.ID, decimal.NewFromInt(1), "late")
	require.ErrorIs(t, err, domain.ErrAccountNotActive)
}

func TestOwnedAccount(t *testing.T) {
	e := newEnv(t)
	a := e.activated("a@b.com")
	b := e.activated("b@b.com")

	got, err := e.accounts.OwnedAccount(e.ctx, a.Client.ID(), a.Account.ID)
	require.NoError(t, err)
	require.Equal(t, a.Account.ID, got.ID)

	_, err = e.accounts.OwnedAccount(e.ctx, b.Client.ID(), a.Account.ID)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
