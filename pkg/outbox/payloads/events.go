package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// AskCreatedEvent signals a new ask opened for bidding.
type AskCreatedEvent struct {
	AskID          uuid.UUID `json:"ask_id"`
	CreatorAgentID uuid.UUID `json:"creator_agent_id"`
	MinBudgetCents int64     `json:"min_budget_cents"`
	MaxBudgetCents int64     `json:"max_budget_cents"`
}

// AskCancelledEvent is emitted when a creator withdraws an open ask.
type AskCancelledEvent struct {
	AskID          uuid.UUID `json:"ask_id"`
	CreatorAgentID uuid.UUID `json:"creator_agent_id"`
	CancelledAt    time.Time `json:"cancelled_at"`
}

// AskCompletedEvent surfaces the final settlement figures when work is delivered.
type AskCompletedEvent struct {
	AskID        uuid.UUID `json:"ask_id"`
	SettlementID uuid.UUID `json:"settlement_id"`
	PayoutCents  int64     `json:"payout_cents"`
	RevenueCents int64     `json:"revenue_cents"`
}

// BidPlacedEvent is emitted for every new bid on an open ask.
type BidPlacedEvent struct {
	BidID         uuid.UUID `json:"bid_id"`
	AskID         uuid.UUID `json:"ask_id"`
	BidderAgentID uuid.UUID `json:"bidder_agent_id"`
	PriceCents    int64     `json:"price_cents"`
}

// BidAcceptedEvent reports the winning bid and the rejected sibling count.
type BidAcceptedEvent struct {
	BidID         uuid.UUID `json:"bid_id"`
	AskID         uuid.UUID `json:"ask_id"`
	BidderAgentID uuid.UUID `json:"bidder_agent_id"`
	PriceCents    int64     `json:"price_cents"`
	RejectedBids  int       `json:"rejected_bids"`
}

// EscrowLockedEvent is emitted when buyer funds land in the escrow wallet.
type EscrowLockedEvent struct {
	EscrowLockID     uuid.UUID `json:"escrow_lock_id"`
	AskID            uuid.UUID `json:"ask_id"`
	BidID            uuid.UUID `json:"bid_id"`
	BuyerWalletID    uuid.UUID `json:"buyer_wallet_id"`
	TotalAmountCents int64     `json:"total_amount_cents"`
}

// EscrowReleasedEvent is emitted once escrow funds split into payout and revenue.
type EscrowReleasedEvent struct {
	EscrowLockID   uuid.UUID `json:"escrow_lock_id"`
	SettlementID   uuid.UUID `json:"settlement_id"`
	SellerWalletID uuid.UUID `json:"seller_wallet_id"`
	PayoutCents    int64     `json:"payout_cents"`
	RevenueCents   int64     `json:"revenue_cents"`
}

// DepositRecordedEvent reports a reconciled external onramp.
type DepositRecordedEvent struct {
	LedgerEntryID uuid.UUID               `json:"ledger_entry_id"`
	WalletID      uuid.UUID               `json:"wallet_id"`
	AmountCents   int64                   `json:"amount_cents"`
	Status        enums.LedgerEntryStatus `json:"status"`
	ProviderRef   string                  `json:"provider_ref,omitempty"`
}

// WalletProvisionedEvent is emitted when an agent wallet becomes usable.
type WalletProvisionedEvent struct {
	WalletID uuid.UUID `json:"wallet_id"`
	AgentID  uuid.UUID `json:"agent_id"`
}
