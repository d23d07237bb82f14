package enums

import "fmt"

// LedgerEntryType classifies the external rail a reconciliation entry tracks.
type LedgerEntryType string

const (
	LedgerEntryTypeOnramp           LedgerEntryType = "onramp"
	LedgerEntryTypeOfframp          LedgerEntryType = "offramp"
	LedgerEntryTypeInternalTransfer LedgerEntryType = "internal_transfer"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeOnramp,
	LedgerEntryTypeOfframp,
	LedgerEntryTypeInternalTransfer,
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// LedgerEntryStatus tracks reconciliation between the external payment leg and
// the internal mint leg.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending           LedgerEntryStatus = "pending"
	LedgerEntryStatusExternalCompleted LedgerEntryStatus = "external_completed"
	LedgerEntryStatusInternalCompleted LedgerEntryStatus = "internal_completed"
	LedgerEntryStatusReconciled        LedgerEntryStatus = "reconciled"
	LedgerEntryStatusFailed            LedgerEntryStatus = "failed"
	LedgerEntryStatusManualReview      LedgerEntryStatus = "requires_manual_review"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusExternalCompleted,
	LedgerEntryStatusInternalCompleted,
	LedgerEntryStatusReconciled,
	LedgerEntryStatusFailed,
	LedgerEntryStatusManualReview,
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the entry can no longer transition.
func (s LedgerEntryStatus) IsTerminal() bool {
	return s == LedgerEntryStatusReconciled || s == LedgerEntryStatusFailed
}

// CanTransitionTo enforces the reconciliation state machine. Entries only move
// forward along pending -> external_completed -> internal_completed ->
// reconciled; any non-terminal state may move to failed or manual review.
func (s LedgerEntryStatus) CanTransitionTo(next LedgerEntryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == LedgerEntryStatusFailed || next == LedgerEntryStatusManualReview {
		return true
	}
	switch s {
	case LedgerEntryStatusPending:
		return next == LedgerEntryStatusExternalCompleted
	case LedgerEntryStatusExternalCompleted:
		return next == LedgerEntryStatusInternalCompleted
	case LedgerEntryStatusInternalCompleted:
		return next == LedgerEntryStatusReconciled
	case LedgerEntryStatusManualReview:
		return next == LedgerEntryStatusReconciled
	default:
		return false
	}
}

// ParseLedgerEntryStatus converts raw input into a LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
