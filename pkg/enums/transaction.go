package enums

import "fmt"

// TransactionType classifies a fund movement record.
type TransactionType string

const (
	TransactionTypeMint          TransactionType = "mint"
	TransactionTypeTransfer      TransactionType = "transfer"
	TransactionTypeFee           TransactionType = "fee"
	TransactionTypeEscrowLock    TransactionType = "escrow_lock"
	TransactionTypeEscrowRelease TransactionType = "escrow_release"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeMint,
	TransactionTypeTransfer,
	TransactionTypeFee,
	TransactionTypeEscrowLock,
	TransactionTypeEscrowRelease,
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus tracks a fund movement through the custodial provider.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
