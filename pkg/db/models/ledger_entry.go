package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// LedgerEntry tracks an external money movement (onramp or offramp)
// through its reconciliation lifecycle against the provider rail.
type LedgerEntry struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID          uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type              enums.LedgerEntryType   `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	Status            enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status_enum;not null;default:'pending'"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency          `gorm:"column:currency;not null;default:'USD'"`
	ProviderRef       string                  `gorm:"column:provider_ref;index"`
	MintTransactionID *uuid.UUID              `gorm:"column:mint_transaction_id;type:uuid"`
	FailureReason     string                  `gorm:"column:failure_reason"`
	Notes             string                  `gorm:"column:notes"`
	ReconciledAt      *time.Time              `gorm:"column:reconciled_at"`
	Attempts          int                     `gorm:"column:attempts;not null;default:0"`
	Metadata          json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
