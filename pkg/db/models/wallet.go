package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// Wallet holds value for an agent, or for the platform itself when Kind
// is escrow or revenue. Platform wallets have a nil AgentID.
type Wallet struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID     *uuid.UUID         `gorm:"column:agent_id;type:uuid;uniqueIndex:ux_wallets_agent_id"`
	Kind        enums.WalletKind   `gorm:"column:kind;type:wallet_kind_enum;not null;default:'agent'"`
	Status      enums.WalletStatus `gorm:"column:status;type:wallet_status_enum;not null;default:'active'"`
	Currency    enums.Currency     `gorm:"column:currency;not null;default:'USD'"`
	ProviderRef string             `gorm:"column:provider_ref"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
