package enums

import "fmt"

// WalletStatus tracks whether a wallet may move funds.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusSuspended,
	WalletStatusClosed,
}

// IsValid reports whether the value is a known WalletStatus.
func (s WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// WalletKind distinguishes participant wallets from the two reserved platform
// wallets.
type WalletKind string

const (
	WalletKindAgent   WalletKind = "agent"
	WalletKindEscrow  WalletKind = "escrow"
	WalletKindRevenue WalletKind = "revenue"
)

var validWalletKinds = []WalletKind{
	WalletKindAgent,
	WalletKindEscrow,
	WalletKindRevenue,
}

// IsValid reports whether the value is a known WalletKind.
func (k WalletKind) IsValid() bool {
	for _, candidate := range validWalletKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseWalletKind converts raw input into a WalletKind.
func ParseWalletKind(value string) (WalletKind, error) {
	for _, candidate := range validWalletKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet kind %q", value)
}
