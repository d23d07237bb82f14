package enums

import "fmt"

// AskStatus tracks the lifecycle of an ask.
type AskStatus string

const (
	AskStatusOpen       AskStatus = "open"
	AskStatusInProgress AskStatus = "in_progress"
	AskStatusCompleted  AskStatus = "completed"
	AskStatusCancelled  AskStatus = "cancelled"
)

var validAskStatuses = []AskStatus{
	AskStatusOpen,
	AskStatusInProgress,
	AskStatusCompleted,
	AskStatusCancelled,
}

// String implements fmt.Stringer.
func (s AskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AskStatus.
func (s AskStatus) IsValid() bool {
	for _, candidate := range validAskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s AskStatus) IsTerminal() bool {
	return s == AskStatusCompleted || s == AskStatusCancelled
}

// CanTransitionTo enforces the ask state machine:
// open -> in_progress -> completed, and open -> cancelled.
func (s AskStatus) CanTransitionTo(next AskStatus) bool {
	switch s {
	case AskStatusOpen:
		return next == AskStatusInProgress || next == AskStatusCancelled
	case AskStatusInProgress:
		return next == AskStatusCompleted
	default:
		return false
	}
}

// ParseAskStatus converts raw input into an AskStatus.
func ParseAskStatus(value string) (AskStatus, error) {
	for _, candidate := range validAskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ask status %q", value)
}
