package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// EscrowLock records funds moved from a buyer wallet into the platform
// escrow wallet for one accepted bid. The unique bid_id constraint makes
// double-locking the same bid a conflict at the database level.
type EscrowLock struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AskID             uuid.UUID              `gorm:"column:ask_id;type:uuid;not null;index"`
	BidID             uuid.UUID              `gorm:"column:bid_id;type:uuid;not null;uniqueIndex:ux_escrow_locks_bid_id"`
	BuyerWalletID     uuid.UUID              `gorm:"column:buyer_wallet_id;type:uuid;not null"`
	BaseAmountCents   int64                  `gorm:"column:base_amount_cents;not null"`
	BuyerFeeCents     int64                  `gorm:"column:buyer_fee_cents;not null"`
	TotalAmountCents  int64                  `gorm:"column:total_amount_cents;not null"`
	Currency          enums.Currency         `gorm:"column:currency;not null;default:'USD'"`
	Status            enums.EscrowLockStatus `gorm:"column:status;type:escrow_lock_status_enum;not null;default:'locked'"`
	LockTransactionID *uuid.UUID             `gorm:"column:lock_transaction_id;type:uuid"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
