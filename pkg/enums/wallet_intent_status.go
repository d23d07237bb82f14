package enums

// WalletIntentStatus tracks the wallet provisioning saga for an agent.
type WalletIntentStatus string

const (
	WalletIntentStatusPending   WalletIntentStatus = "pending"
	WalletIntentStatusCompleted WalletIntentStatus = "completed"
	WalletIntentStatusFailed    WalletIntentStatus = "failed"
)

var validWalletIntentStatuses = []WalletIntentStatus{
	WalletIntentStatusPending,
	WalletIntentStatusCompleted,
	WalletIntentStatusFailed,
}

// IsValid reports whether the value is a known WalletIntentStatus.
func (s WalletIntentStatus) IsValid() bool {
	for _, candidate := range validWalletIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
