package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAsk         OutboxAggregateType = "ask"
	AggregateBid         OutboxAggregateType = "bid"
	AggregateEscrowLock  OutboxAggregateType = "escrow_lock"
	AggregateSettlement  OutboxAggregateType = "settlement"
	AggregateWallet      OutboxAggregateType = "wallet"
	AggregateLedgerEntry OutboxAggregateType = "ledger_entry"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAsk,
	AggregateBid,
	AggregateEscrowLock,
	AggregateSettlement,
	AggregateWallet,
	AggregateLedgerEntry,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAskCreated        OutboxEventType = "ask_created"
	EventAskCancelled      OutboxEventType = "ask_cancelled"
	EventAskCompleted      OutboxEventType = "ask_completed"
	EventBidPlaced         OutboxEventType = "bid_placed"
	EventBidAccepted       OutboxEventType = "bid_accepted"
	EventEscrowLocked      OutboxEventType = "escrow_locked"
	EventEscrowReleased    OutboxEventType = "escrow_released"
	EventDepositRecorded   OutboxEventType = "deposit_recorded"
	EventWalletProvisioned OutboxEventType = "wallet_provisioned"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAskCreated,
	EventAskCancelled,
	EventAskCompleted,
	EventBidPlaced,
	EventBidAccepted,
	EventEscrowLocked,
	EventEscrowReleased,
	EventDepositRecorded,
	EventWalletProvisioned,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
