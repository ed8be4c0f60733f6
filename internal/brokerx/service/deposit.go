package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"github.com/shopspring/decimal"
)

type DepositService struct {
	*Runtime

	Store    store.Store
	Payments PaymentProcessor

	// WebhookSecret, when set, is the HMAC key settlement callbacks must
	// be signed with.
	WebhookSecret string
}

type DepositInput struct {
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// DepositResult is a snapshot of a PayTx and the wallet balance at the
// time it was read.
type DepositResult struct {
	Tx       domain.PayTx
	Balance  decimal.Decimal
	Replayed bool
}

// SettlementMessage is the string a settlement callback signs.
func SettlementMessage(paymentTxID, status string) string {
	return paymentTxID + "|" + status
}

// RequestDeposit opens a Pending PayTx and asks the processor to settle
// it. A key that was already used returns that transaction's current
// state and never reaches the processor a second time.
func (s *DepositService) RequestDeposit(ctx context.Context, in DepositInput) (*DepositResult, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}

	if res, err := s.replay(ctx, key, in.AccountID); !errors.Is(err, store.ErrNotFound) {
		return res, err
	}

	acct, err := s.Store.Accounts().GetAccount(ctx, in.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	if !acct.CanTransact() {
		return nil, domain.ErrAccountNotActive
	}
	wallet, err := s.wallet(ctx, s.Store, acct.ID)
	if err != nil {
		return nil, err
	}

	currency, err := domain.NormalizeCurrency(firstNonEmpty(in.Currency, wallet.Currency))
	if err != nil {
		return nil, err
	}
	if currency != wallet.Currency {
		return nil, domain.ErrCurrencyMismatch
	}

	tx, err := domain.NewPayTx(domain.NewPayTxParams{
		ID:             s.newID(),
		AccountID:      acct.ID,
		Amount:         in.Amount,
		Currency:       currency,
		IdempotencyKey: key,
		Now:            s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.Store.Payments().CreatePayTx(ctx, tx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// A concurrent request with the same key won the insert.
			return s.replay(ctx, key, in.AccountID)
		}
		return nil, fmt.Errorf("create payment tx: %w", err)
	}

	s.metrics().depositRequest("new")
	s.emit(ctx, domain.EventDepositRequested, domain.ActorSystem, acct.ID, map[string]any{
		"paymentTxId":    tx.ID,
		"amount":         tx.Amount.String(),
		"currency":       tx.Currency,
		"idempotencyKey": tx.IdempotencyKey,
	})
	slogx.FromContext(ctx).Info("deposit requested", "payment_tx_id", tx.ID, "account_id", acct.ID)

	if s.Payments != nil {
		instr := DepositInstruction{PaymentTxID: tx.ID, AccountID: tx.AccountID, Amount: tx.Amount, Currency: tx.Currency}
		s.detach(ctx, "payments.request_deposit", func(ctx context.Context) error {
			if err := s.Payments.RequestDeposit(ctx, instr); err != nil {
				if ferr := s.failUnavailable(ctx, instr.PaymentTxID); ferr != nil {
					return errors.Join(err, ferr)
				}
				return err
			}
			return nil
		})
	}

	return &DepositResult{Tx: tx, Balance: wallet.Balance}, nil
}

// replay returns the snapshot for an already used key, or store.ErrNotFound.
func (s *DepositService) replay(ctx context.Context, key, accountID string) (*DepositResult, error) {
	tx, err := s.Store.Payments().GetPayTxByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if tx.AccountID != accountID {
		return nil, domain.ErrIdempotencyKeyReused
	}
	s.metrics().depositRequest("replay")
	res, err := s.snapshot(ctx, tx)
	if err != nil {
		return nil, err
	}
	res.Replayed = true
	return res, nil
}

func (s *DepositService) snapshot(ctx context.Context, tx domain.PayTx) (*DepositResult, error) {
	w, err := s.wallet(ctx, s.Store, tx.AccountID)
	if err != nil {
		return nil, err
	}
	return &DepositResult{Tx: tx, Balance: w.Balance}, nil
}

type SettlementInput struct {
	PaymentTxID string
	Status      string
	Signature   string
}

// HandleSettlement applies the processor's callback. Settled credits the
// wallet and posts one DEPOSIT entry, once; any other status fails the
// transaction. Repeating the outcome already recorded is a no-op and the
// opposite outcome is a conflict.
func (s *DepositService) HandleSettlement(ctx context.Context, in SettlementInput) (*DepositResult, error) {
	start := time.Now()
	if s.WebhookSecret != "" && !cryptox.VerifySignature(s.WebhookSecret, SettlementMessage(in.PaymentTxID, in.Status), in.Signature) {
		return nil, domain.ErrInvalidSignature
	}
	if strings.TrimSpace(in.Status) == "" {
		return nil, domain.ErrInvalidSettlement
	}

	unlock := s.lock(payTxLockKey(in.PaymentTxID))
	defer unlock()

	tx, err := s.payTx(ctx, in.PaymentTxID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wallet(ctx, s.Store, tx.AccountID); err != nil {
		return nil, err
	}

	now := s.now()
	settled := domain.IsSettledStatus(in.Status)
	apply := func(t *domain.PayTx) (bool, error) {
		if settled {
			return t.MarkSettled(now)
		}
		return t.MarkFailed(domain.FailureProviderDeclined, now)
	}
	changed, err := apply(&tx)
	if err != nil {
		return nil, err
	}
	if !changed {
		return s.snapshot(ctx, tx)
	}

	unlockAcct := s.lock(accountLockKey(tx.AccountID))
	defer unlockAcct()

	var (
		won     bool
		balance decimal.Decimal
	)
	err = s.Store.WithTx(ctx, func(st store.Tx) error {
		ok, err := st.Payments().TransitionPayTx(ctx, tx, domain.PayTxPending)
		if err != nil || !ok {
			return err
		}
		won = true

		w, err := s.wallet(ctx, st, tx.AccountID)
		if err != nil {
			return err
		}
		balance = w.Balance
		if !settled {
			return nil
		}

		if err := w.Credit(tx.Amount, tx.Currency, now); err != nil {
			return err
		}
		if err := st.Wallets().SaveWallet(ctx, &w); err != nil {
			return err
		}
		entry, err := domain.DepositEntry(s.newID(), tx, now)
		if err != nil {
			return err
		}
		if err := st.Ledger().AppendEntry(ctx, entry); err != nil {
			return fmt.Errorf("append deposit entry: %w", err)
		}
		balance = w.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone outside this process moved it first. Judge the callback
		// against what is stored now.
		current, err := s.payTx(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		if _, err := apply(&current); err != nil {
			return nil, err
		}
		return s.snapshot(ctx, current)
	}

	s.metrics().settlement(string(tx.Status), time.Since(start))
	s.auditSettlement(ctx, tx, domain.ActorPayWebhook, &balance)
	slogx.FromContext(ctx).Info("deposit settled", "payment_tx_id", tx.ID, "status", tx.Status)
	return &DepositResult{Tx: tx, Balance: balance}, nil
}

// failUnavailable marks a PayTx Failed when the processor could not be
// reached. Already terminal transactions are left alone.
func (s *DepositService) failUnavailable(ctx context.Context, id string) error {
	unlock := s.lock(payTxLockKey(id))
	defer unlock()

	tx, err := s.payTx(ctx, id)
	if err != nil {
		return err
	}
	changed, err := tx.MarkFailed(domain.FailureProcessorUnavailable, s.now())
	if err != nil || !changed {
		return nil
	}
	ok, err := s.Store.Payments().TransitionPayTx(ctx, tx, domain.PayTxPending)
	if err != nil || !ok {
		return err
	}

	s.metrics().settlement(string(tx.Status), 0)
	var balance *decimal.Decimal
	if w, err := s.wallet(ctx, s.Store, tx.AccountID); err != nil {
		slogx.FromContext(ctx).Warn("deposit failed: wallet lookup for audit", "payment_tx_id", id, "err", err)
	} else {
		balance = &w.Balance
	}
	s.auditSettlement(ctx, tx, domain.ActorSystem, balance)
	return nil
}

// auditSettlement records the outcome. A nil balance is left out of the
// payload.
func (s *DepositService) auditSettlement(ctx context.Context, tx domain.PayTx, actor string, balance *decimal.Decimal) {
	payload := map[string]any{
		"paymentTxId": tx.ID,
		"amount":      tx.Amount.String(),
		"currency":    tx.Currency,
	}
	if balance != nil {
		payload["balance"] = balance.String()
	}
	if tx.Status == domain.PayTxSettled {
		s.emit(ctx, domain.EventDepositSettled, actor, tx.AccountID, payload)
		return
	}
	payload["reason"] = tx.FailureReason
	s.emit(ctx, domain.EventDepositFailed, actor, tx.AccountID, payload)
}

// Deposit returns a transaction and the current balance of its wallet.
func (s *DepositService) Deposit(ctx context.Context, paymentTxID string) (*DepositResult, error) {
	tx, err := s.payTx(ctx, paymentTxID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, tx)
}

func (s *DepositService) payTx(ctx context.Context, id string) (domain.PayTx, error) {
	tx, err := s.Store.Payments().GetPayTx(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PayTx{}, domain.ErrUnknownTransaction
		}
		return domain.PayTx{}, err
	}
	return tx, nil
}

func (s *DepositService) wallet(ctx context.Context, st store.Store, accountID string) (domain.Wallet, error) {
	w, err := st.Wallets().GetWalletByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, err
	}
	return w, nil
}
