package enums

import "fmt"

// EscrowLockStatus tracks funds held pending delivery.
type EscrowLockStatus string

const (
	EscrowLockStatusLocked   EscrowLockStatus = "locked"
	EscrowLockStatusReleased EscrowLockStatus = "released"
	EscrowLockStatusRefunded EscrowLockStatus = "refunded"
)

var validEscrowLockStatuses = []EscrowLockStatus{
	EscrowLockStatusLocked,
	EscrowLockStatusReleased,
	EscrowLockStatusRefunded,
}

// IsValid reports whether the value is a known EscrowLockStatus.
func (s EscrowLockStatus) IsValid() bool {
	for _, candidate := range validEscrowLockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEscrowLockStatus converts raw input into an EscrowLockStatus.
func ParseEscrowLockStatus(value string) (EscrowLockStatus, error) {
	for _, candidate := range validEscrowLockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow lock status %q", value)
}
