package domain

import "time"

type KYCStatus string

const (
	KYCPending  KYCStatus = "Pending"
	KYCVerified KYCStatus = "Verified"
	KYCRejected KYCStatus = "Rejected"
)

// DefaultKYCLevel is the level a case is opened at.
const DefaultKYCLevel = "Basic"

// KYCCase is the single identity verification case a client owns.
type KYCCase struct {
	ID        string
	ClientID  string
	Level     string
	Status    KYCStatus
	UpdatedAt time.Time
}

// ParseKYCStatus accepts the three statuses case-insensitively.
func ParseKYCStatus(s string) (KYCStatus, bool) {
	for _, st := range []KYCStatus{KYCPending, KYCVerified, KYCRejected} {
		if equalFoldTrim(s, string(st)) {
			return st, true
		}
	}
	return "", false
}
