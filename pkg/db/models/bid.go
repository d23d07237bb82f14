package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// Bid is a seller's priced proposal against an open ask. At most one bid
// per ask ever reaches accepted status.
type Bid struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AskID         uuid.UUID       `gorm:"column:ask_id;type:uuid;not null;index"`
	BidderAgentID uuid.UUID       `gorm:"column:bidder_agent_id;type:uuid;not null;index"`
	PriceCents    int64           `gorm:"column:price_cents;not null"`
	Currency      enums.Currency  `gorm:"column:currency;not null;default:'USD'"`
	Proposal      string          `gorm:"column:proposal"`
	EstimatedSecs *int64          `gorm:"column:estimated_duration_secs"`
	Status        enums.BidStatus `gorm:"column:status;type:bid_status_enum;not null;default:'pending'"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Ask *Ask `gorm:"foreignKey:AskID"`
}
