package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// Settlement is the immutable record of one escrow release: who got paid
// what and which fees the platform retained. One settlement per lock.
type Settlement struct {
	ID                   uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowLockID         uuid.UUID      `gorm:"column:escrow_lock_id;type:uuid;not null;uniqueIndex:ux_settlements_escrow_lock_id"`
	AskID                uuid.UUID      `gorm:"column:ask_id;type:uuid;not null;index"`
	SellerWalletID       uuid.UUID      `gorm:"column:seller_wallet_id;type:uuid;not null"`
	BaseAmountCents      int64          `gorm:"column:base_amount_cents;not null"`
	BuyerFeeCents        int64          `gorm:"column:buyer_fee_cents;not null"`
	SellerFeeCents       int64          `gorm:"column:seller_fee_cents;not null"`
	PayoutCents          int64          `gorm:"column:payout_cents;not null"`
	RevenueCents         int64          `gorm:"column:revenue_cents;not null"`
	Currency             enums.Currency `gorm:"column:currency;not null;default:'USD'"`
	PayoutTransactionID  *uuid.UUID     `gorm:"column:payout_transaction_id;type:uuid"`
	RevenueTransactionID *uuid.UUID     `gorm:"column:revenue_transaction_id;type:uuid"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
}
