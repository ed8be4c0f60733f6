package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/shopspring/decimal"
)

// accountNumberAttempts bounds retries when a random account number is
// already taken.
const accountNumberAttempts = 5

type AccountService struct {
	*Runtime

	Store           store.Store
	DefaultCurrency string
}

// AccountSummary is an account with its wallet.
type AccountSummary struct {
	Account domain.Account
	Wallet  domain.Wallet
}

// Overview is the profile view of a client.
type Overview struct {
	Client   *domain.Client
	Accounts []AccountSummary
}

// OpenAccount opens another account and wallet for a client that hasn't
// been rejected.
func (s *AccountService) OpenAccount(ctx context.Context, clientID, currency string) (*AccountSummary, error) {
	cur, err := domain.NormalizeCurrency(firstNonEmpty(currency, s.DefaultCurrency, domain.DefaultCurrency))
	if err != nil {
		return nil, err
	}

	unlock := s.lock(clientLockKey(clientID))
	defer unlock()

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}

	now := s.now()
	var out AccountSummary
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, wallet, err := openAccount(ctx, s.Runtime, tx, client, cur, now)
		out = AccountSummary{Account: acct, Wallet: wallet}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, domain.EventAccountOpened, actorFor(client), out.Account.ID, map[string]any{
		"accountId": out.Account.ID,
		"number":    out.Account.Number,
		"currency":  out.Wallet.Currency,
	})
	return &out, nil
}

// openAccount creates the account and its wallet on tx.
func openAccount(ctx context.Context, rt *Runtime, tx store.Tx, c *domain.Client, currency string, now time.Time) (domain.Account, domain.Wallet, error) {
	var (
		acct domain.Account
		err  error
	)
	for attempt := 0; ; attempt++ {
		n, rerr := cryptox.RandomIntRange(rt.entropy(), domain.AccountNumberMin, domain.AccountNumberMax)
		if rerr != nil {
			return domain.Account{}, domain.Wallet{}, fmt.Errorf("account number: %w", rerr)
		}
		acct, err = c.OpenAccount(rt.newID(), domain.FormatAccountNumber(now, n), now)
		if err != nil {
			return domain.Account{}, domain.Wallet{}, err
		}
		err = tx.Accounts().CreateAccount(ctx, acct)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) || attempt+1 >= accountNumberAttempts {
			return domain.Account{}, domain.Wallet{}, fmt.Errorf("create account: %w", err)
		}
	}

	wallet, err := domain.NewWallet(rt.newID(), acct.ID, currency, now)
	if err != nil {
		return domain.Account{}, domain.Wallet{}, err
	}
	if err := tx.Wallets().CreateWallet(ctx, wallet); err != nil {
		return domain.Account{}, domain.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return acct, wallet, nil
}

func (s *AccountService) Suspend(ctx context.Context, accountID string) (domain.Account, error) {
	return s.transition(ctx, accountID, func(a *domain.Account, now time.Time) (bool, error) {
		return true, a.Suspend(now)
	})
}

func (s *AccountService) Resume(ctx context.Context, accountID string) (domain.Account, error) {
	return s.transition(ctx, accountID, func(a *domain.Account, now time.Time) (bool, error) {
		return true, a.Resume(now)
	})
}

// Close is terminal; closing twice returns the closed account unchanged.
func (s *AccountService) Close(ctx context.Context, accountID string) (domain.Account, error) {
	return s.transition(ctx, accountID, func(a *domain.Account, now time.Time) (bool, error) {
		return a.Close(now), nil
	})
}

func (s *AccountService) transition(ctx context.Context, accountID string, apply func(*domain.Account, time.Time) (bool, error)) (domain.Account, error) {
	unlock := s.lock(accountLockKey(accountID))
	defer unlock()

	acct, err := s.account(ctx, s.Store, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	from := acct.Status

	changed, err := apply(&acct, s.now())
	if err != nil || !changed {
		return acct, err
	}
	if err := s.Store.Accounts().UpdateAccountStatus(ctx, acct); err != nil {
		return domain.Account{}, fmt.Errorf("update account: %w", err)
	}

	s.emit(ctx, domain.EventAccountStatusChanged, domain.ActorSystem, acct.ID, map[string]any{
		"accountId": acct.ID,
		"from":      from,
		"to":        acct.Status,
	})
	return acct, nil
}

// Adjust posts a manual ADJUSTMENT: positive amounts credit the wallet,
// negative ones debit it.
func (s *AccountService) Adjust(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (domain.Wallet, domain.LedgerEntry, error) {
	if amount.IsZero() {
		return domain.Wallet{}, domain.LedgerEntry{}, domain.ErrZeroLedgerAmount
	}

	unlock := s.lock(accountLockKey(accountID))
	defer unlock()

	now := s.now()
	var (
		wallet domain.Wallet
		entry  domain.LedgerEntry
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := s.account(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct.Status == domain.AccountClosed {
			return domain.ErrAccountNotActive
		}
		wallet, err = tx.Wallets().GetWalletByAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		if amount.IsPositive() {
			err = wallet.Credit(amount, wallet.Currency, now)
		} else {
			err = wallet.Debit(amount.Neg(), wallet.Currency, now)
		}
		if err != nil {
			return err
		}
		if err := tx.Wallets().SaveWallet(ctx, &wallet); err != nil {
			return err
		}

		entry, err = domain.NewLedgerEntry(domain.NewLedgerEntryParams{
			ID:        s.newID(),
			AccountID: accountID,
			Amount:    amount,
			Currency:  wallet.Currency,
			Kind:      domain.EntryAdjustment,
			RefType:   domain.RefOther,
			RefID:     s.newID(),
			Memo:      reason,
			Now:       now,
		})
		if err != nil {
			return err
		}
		return tx.Ledger().AppendEntry(ctx, entry)
	})
	if err != nil {
		return domain.Wallet{}, domain.LedgerEntry{}, err
	}

	s.emit(ctx, domain.EventAccountAdjusted, domain.ActorSystem, accountID, map[string]any{
		"accountId": accountID,
		"amount":    amount.String(),
		"currency":  wallet.Currency,
		"reason":    reason,
		"balance":   wallet.Balance.String(),
	})
	return wallet, entry, nil
}

// Overview returns the client with every account and wallet it owns.
func (s *AccountService) Overview(ctx context.Context, clientID string) (*Overview, error) {
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}

	accts, err := s.Store.Accounts().ListAccountsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	out := &Overview{Client: client, Accounts: make([]AccountSummary, 0, len(accts))}
	for _, a := range accts {
		w, err := s.Store.Wallets().GetWalletByAccount(ctx, a.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		out.Accounts = append(out.Accounts, AccountSummary{Account: a, Wallet: w})
	}
	return out, nil
}

// Ledger returns the account's journal newest first. limit <= 0 means all.
func (s *AccountService) Ledger(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if _, err := s.account(ctx, s.Store, accountID); err != nil {
		return nil, err
	}
	return s.Store.Ledger().ListEntries(ctx, accountID, limit)
}

// OwnedAccount loads accountID if clientID owns it. Accounts of other
// clients look missing.
func (s *AccountService) OwnedAccount(ctx context.Context, clientID, accountID string) (domain.Account, error) {
	acct, err := s.account(ctx, s.Store, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if acct.ClientID != clientID {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *AccountService) account(ctx context.Context, st store.Store, id string) (domain.Account, error) {
	acct, err := st.Accounts().GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return acct, nil
}
