package domain

import (
	"fmt"
	"time"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "Active"
	AccountSuspended AccountStatus = "Suspended"
	AccountClosed    AccountStatus = "Closed"
)

// Account numbers are BX-<yyyyMMdd>-<6 digits>.
const (
	AccountNumberMin = 100000
	AccountNumberMax = 999999
)

type Account struct {
	ID        string
	ClientID  string
	Number    string
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatAccountNumber renders the human readable number for serial n.
func FormatAccountNumber(now time.Time, n int64) string {
	return fmt.Sprintf("BX-%s-%06d", now.UTC().Format("20060102"), n)
}

// Suspend moves Active to Suspended.
func (a *Account) Suspend(now time.Time) error {
	if a.Status != AccountActive {
		return ErrInvalidTransition
	}
	a.Status = AccountSuspended
	a.UpdatedAt = now.UTC()
	return nil
}

// Resume moves Suspended back to Active.
func (a *Account) Resume(now time.Time) error {
	if a.Status != AccountSuspended {
		return ErrInvalidTransition
	}
	a.Status = AccountActive
	a.UpdatedAt = now.UTC()
	return nil
}

// Close is terminal. Closing a closed account is a no-op and reports false.
func (a *Account) Close(now time.Time) bool {
	if a.Status == AccountClosed {
		return false
	}
	a.Status = AccountClosed
	a.UpdatedAt = now.UTC()
	return true
}

// CanTransact reports whether money may move on the account.
func (a Account) CanTransact() bool { return a.Status == AccountActive }
