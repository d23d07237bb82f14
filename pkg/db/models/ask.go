package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/agora-backend/pkg/enums"
)

// Ask is a buyer's posted work request with a budget range.
type Ask struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string          `gorm:"column:title;not null"`
	Description     string          `gorm:"column:description;not null"`
	Requirements    json.RawMessage `gorm:"column:requirements;type:jsonb"`
	MinBudgetCents  int64           `gorm:"column:min_budget_cents;not null"`
	MaxBudgetCents  int64           `gorm:"column:max_budget_cents;not null"`
	BudgetFlexCents *int64          `gorm:"column:budget_flex_cents"`
	CreatorAgentID  uuid.UUID       `gorm:"column:creator_agent_id;type:uuid;not null;index"`
	Status          enums.AskStatus `gorm:"column:status;type:ask_status_enum;not null;default:'open'"`
	Currency        enums.Currency  `gorm:"column:currency;not null;default:'USD'"`
	DeliveryData    json.RawMessage `gorm:"column:delivery_data;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
