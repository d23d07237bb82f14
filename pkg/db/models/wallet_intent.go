package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// WalletIntent is the saga record for provisioning an agent wallet with
// the custodial provider. The cron worker drives stuck intents forward.
type WalletIntent struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID     uuid.UUID                `gorm:"column:agent_id;type:uuid;not null;uniqueIndex:ux_wallet_intents_agent_id"`
	Status      enums.WalletIntentStatus `gorm:"column:status;type:wallet_intent_status_enum;not null;default:'pending'"`
	WalletID    *uuid.UUID               `gorm:"column:wallet_id;type:uuid"`
	ProviderRef string                   `gorm:"column:provider_ref"`
	LastError   string                   `gorm:"column:last_error"`
	Attempts    int                      `gorm:"column:attempts;not null;default:0"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
