package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// Transaction is one row in the internal ledger. Balances are never
// stored on wallets; they are folded from completed transactions.
type Transaction struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type         enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	FromWalletID *uuid.UUID              `gorm:"column:from_wallet_id;type:uuid;index"`
	ToWalletID   *uuid.UUID              `gorm:"column:to_wallet_id;type:uuid;index"`
	AmountCents  int64                   `gorm:"column:amount_cents;not null"`
	Currency     enums.Currency          `gorm:"column:currency;not null;default:'USD'"`
	Status       enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`
	ExternalRef  string                  `gorm:"column:external_ref;index"`
	// IdempotencyKey dedupes retried transfers against the same custody
	// movement. Empty for one-shot rows like mints.
	IdempotencyKey string          `gorm:"column:idempotency_key"`
	Metadata       json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
