package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func deposit(e *env, accountID, amount, key string) (*service.DepositResult, error) {
	return e.deposits.RequestDeposit(e.ctx, service.DepositInput{
		AccountID:      accountID,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "usd",
		IdempotencyKey: key,
	})
}

func settle(e *env, txID, status string) (*service.DepositResult, error) {
	return e.deposits.HandleSettlement(e.ctx, service.SettlementInput{PaymentTxID: txID, Status: status})
}

func TestDeposit_SettleAndReplay(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	first, err := deposit(e, acct.ID, "100.00", "k1")
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Equal(t, domain.PayTxPending, first.Tx.Status)
	require.Equal(t, "USD", first.Tx.Currency)
	require.True(t, first.Balance.IsZero())

	reqs := e.depositRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, first.Tx.ID, reqs[0].PaymentTxID)

	settled, err := settle(e, first.Tx.ID, "settled")
	require.NoError(t, err)
	require.Equal(t, domain.PayTxSettled, settled.Tx.Status)
	require.Equal(t, "100", settled.Balance.String())

	again, err := settle(e, first.Tx.ID, "Settled")
	require.NoError(t, err)
	require.Equal(t, "100", again.Balance.String())

	replay, err := deposit(e, acct.ID, "100.00", "k1")
	require.NoError(t, err)
	require.True(t, replay.Replayed)
	require.Equal(t, first.Tx.ID, replay.Tx.ID)
	require.Equal(t, domain.PayTxSettled, replay.Tx.Status)
	require.Equal(t, "100", replay.Balance.String())
	require.Len(t, e.depositRequests(), 1, "replays never reach the processor")

	n, err := e.store.Ledger().CountByRef(e.ctx, domain.RefPaymentTx, first.Tx.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	evs := e.auditEvents(store.AuditFilter{AccountID: acct.ID})
	require.Contains(t, eventTypes(evs), domain.EventDepositRequested)
	require.Contains(t, eventTypes(evs), domain.EventDepositSettled)
}

func TestDeposit_Validation(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	tests := []struct {
		name string
		in   service.DepositInput
		want error
	}{
		{"missing key", service.DepositInput{AccountID: acct.ID, Amount: decimal.NewFromInt(1)}, domain.ErrIdempotencyKeyRequired},
		{"zero amount", service.DepositInput{AccountID: acct.ID, Amount: decimal.Zero, IdempotencyKey: "z"}, domain.ErrInvalidAmount},
		{"negative amount", service.DepositInput{AccountID: acct.ID, Amount: decimal.NewFromInt(-5), IdempotencyKey: "n"}, domain.ErrInvalidAmount},
		{"bad currency", service.DepositInput{AccountID: acct.ID, Amount: decimal.NewFromInt(1), Currency: "DOLLARS", IdempotencyKey: "c"}, domain.ErrInvalidCurrency},
		{"other currency", service.DepositInput{AccountID: acct.ID, Amount: decimal.NewFromInt(1), Currency: "EUR", IdempotencyKey: "e"}, domain.ErrCurrencyMismatch},
		{"unknown account", service.DepositInput{AccountID: "nope", Amount: decimal.NewFromInt(1), IdempotencyKey: "u"}, domain.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.deposits.RequestDeposit(e.ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, e.depositRequests())
}

func TestDeposit_KeyBoundToAccount(t *testing.T) {
	e := newEnv(t)
	a := e.activated("a@b.com").Account
	b := e.activated("b@b.com").Account

	_, err := deposit(e, a.ID, "5", "shared")
	require.NoError(t, err)
	_, err = deposit(e, b.ID, "5", "shared")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyReused)
}

func TestDeposit_RefusedOnSuspendedAccount(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account
	_, err := e.accounts.Suspend(e.ctx, acct.ID)
	require.NoError(t, err)

	_, err = deposit(e, acct.ID, "5", "k")
	require.ErrorIs(t, err, domain.ErrAccountNotActive)
}

func TestDeposit_ConcurrentSameKeyCreatesOneTx(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	const n = 8
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := deposit(e, acct.ID, "10", "same-key")
			if err == nil {
				ids <- res.Tx.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, 1)
	require.Len(t, e.depositRequests(), 1)
}

func TestSettlement_ConflictsAndFailures(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	t.Run("failed after settled is a conflict and changes nothing", func(t *testing.T) {
		res, err := deposit(e, acct.ID, "25.50", "s1")
		require.NoError(t, err)
		_, err = settle(e, res.Tx.ID, "Settled")
		require.NoError(t, err)

		_, err = settle(e, res.Tx.ID, "Failed")
		require.ErrorIs(t, err, domain.ErrAlreadySettled)

		tx, err := e.store.Payments().GetPayTx(e.ctx, res.Tx.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PayTxSettled, tx.Status)
		w, err := e.store.Wallets().GetWalletByAccount(e.ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, "25.5", w.Balance.String())
	})

	t.Run("settled after failed is a conflict", func(t *testing.T) {
		res, err := deposit(e, acct.ID, "7", "s2")
		require.NoError(t, err)

		failed, err := settle(e, res.Tx.ID, "declined")
		require.NoError(t, err)
		require.Equal(t, domain.PayTxFailed, failed.Tx.Status)
		require.Equal(t, domain.FailureProviderDeclined, failed.Tx.FailureReason)

		_, err = settle(e, res.Tx.ID, "Failed")
		require.NoError(t, err)

		_, err = settle(e, res.Tx.ID, "Settled")
		require.ErrorIs(t, err, domain.ErrAlreadyFailed)
	})

	t.Run("unknown transaction and blank status", func(t *testing.T) {
		_, err := settle(e, "nope", "Settled")
		require.ErrorIs(t, err, domain.ErrUnknownTransaction)
		_, err = settle(e, "nope", " ")
		require.ErrorIs(t, err, domain.ErrInvalidSettlement)
	})
}

func TestSettlement_ConcurrentCallbacksCreditOnce(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account
	res, err := deposit(e, acct.ID, "40", "race")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = settle(e, res.Tx.ID, "Settled")
		}()
	}
	wg.Wait()

	w, err := e.store.Wallets().GetWalletByAccount(e.ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, "40", w.Balance.String())

	n, err := e.store.Ledger().CountByRef(e.ctx, domain.RefPaymentTx, res.Tx.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSettlement_Signature(t *testing.T) {
	e := newEnv(t)
	e.deposits.WebhookSecret = "s3cret"
	acct := e.activated("a@b.com").Account
	res, err := deposit(e, acct.ID, "1", "sig")
	require.NoError(t, err)

	_, err = e.deposits.HandleSettlement(e.ctx, service.SettlementInput{PaymentTxID: res.Tx.ID, Status: "Settled", Signature: "forged"})
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	sig := cryptox.SignPayload("s3cret", service.SettlementMessage(res.Tx.ID, "Settled"))
	out, err := e.deposits.HandleSettlement(e.ctx, service.SettlementInput{PaymentTxID: res.Tx.ID, Status: "Settled", Signature: sig})
	require.NoError(t, err)
	require.Equal(t, domain.PayTxSettled, out.Tx.Status)
}

func TestDeposit_ProcessorUnavailableFailsTx(t *testing.T) {
	e := newEnv(t)
	e.payErr = errors.New("connection refused")
	acct := e.activated("a@b.com").Account

	res, err := deposit(e, acct.ID, "3", "down")
	require.NoError(t, err, "the request itself succeeds")
	require.Len(t, e.depositRequests(), 1)

	got, err := e.deposits.Deposit(e.ctx, res.Tx.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayTxFailed, got.Tx.Status)
	require.Equal(t, domain.FailureProcessorUnavailable, got.Tx.FailureReason)
}

// racedStore lets another writer move a transaction just before the
// settlement transaction starts.
type racedStore struct {
	store.Store
	race func()
}

func (r *racedStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if race := r.race; race != nil {
		r.race = nil
		race()
	}
	return r.Store.WithTx(ctx, fn)
}

func TestSettlement_LosingRaceReportsStoredOutcome(t *testing.T) {
	tests := []struct {
		name     string
		stored   func(tx *domain.PayTx) (bool, error)
		callback string
		want     error
	}{
		{
			name:     "failed callback after settled elsewhere",
			stored:   func(tx *domain.PayTx) (bool, error) { return tx.MarkSettled(t0) },
			callback: "Failed",
			want:     domain.ErrAlreadySettled,
		},
		{
			name:     "settled callback after failed elsewhere",
			stored:   func(tx *domain.PayTx) (bool, error) { return tx.MarkFailed(domain.FailureProviderDeclined, t0) },
			callback: "Settled",
			want:     domain.ErrAlreadyFailed,
		},
		{
			name:     "same outcome recorded elsewhere",
			stored:   func(tx *domain.PayTx) (bool, error) { return tx.MarkSettled(t0) },
			callback: "Settled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			acct := e.activated("a@b.com").Account
			res, err := deposit(e, acct.ID, "10", "race")
			require.NoError(t, err)

			raced := &racedStore{Store: e.store, race: func() {
				tx, err := e.store.Payments().GetPayTx(e.ctx, res.Tx.ID)
				require.NoError(t, err)
				_, err = tt.stored(&tx)
				require.NoError(t, err)
				ok, err := e.store.Payments().TransitionPayTx(e.ctx, tx, domain.PayTxPending)
				require.NoError(t, err)
				require.True(t, ok)
			}}
			svc := &service.DepositService{Runtime: e.rt, Store: raced}

			got, err := svc.HandleSettlement(e.ctx, service.SettlementInput{PaymentTxID: res.Tx.ID, Status: tt.callback})
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			require.Equal(t, domain.PayTxSettled, got.Tx.Status)

			n, err := e.store.Ledger().CountByRef(e.ctx, domain.RefPaymentTx, res.Tx.ID)
			require.NoError(t, err)
			require.Zero(t, n, "the losing callback posts nothing")
		})
	}
}

type processorFunc func(ctx context.Context, in service.DepositInstruction) error

func (f processorFunc) RequestDeposit(ctx context.Context, in service.DepositInstruction) error {
	return f(ctx, in)
}

type walletOutage struct {
	store.Store
	down atomic.Bool
}

func (w *walletOutage) Wallets() store.Wallets {
	if w.down.Load() {
		return brokenWallets{w.Store.Wallets()}
	}
	return w.Store.Wallets()
}

type brokenWallets struct{ store.Wallets }

func (brokenWallets) GetWalletByAccount(context.Context, string) (domain.Wallet, error) {
	return domain.Wallet{}, errors.New("disk I/O error")
}

func TestDeposit_ProcessorUnavailableAuditOmitsUnknownBalance(t *testing.T) {
	e := newEnv(t)
	acct := e.activated("a@b.com").Account

	st := &walletOutage{Store: e.store}
	svc := &service.DepositService{
		Runtime: e.rt,
		Store:   st,
		Payments: processorFunc(func(context.Context, service.DepositInstruction) error {
			st.down.Store(true)
			return errors.New("connection refused")
		}),
	}
	res, err := svc.RequestDeposit(e.ctx, service.DepositInput{
		AccountID:      acct.ID,
		Amount:         decimal.NewFromInt(3),
		Currency:       "USD",
		IdempotencyKey: "outage",
	})
	require.NoError(t, err)

	evs := e.auditEvents(store.AuditFilter{Type: domain.EventDepositFailed})
	require.Len(t, evs, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
	require.Equal(t, res.Tx.ID, payload["paymentTxId"])
	require.Equal(t, domain.FailureProcessorUnavailable, payload["reason"])
	require.NotContains(t, payload, "balance")
}
