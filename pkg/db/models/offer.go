package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// Offer is a buyer's line-item submission and its negotiation state.
type Offer struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BuyerUserID uuid.UUID              `gorm:"column:buyer_user_id;type:uuid;not null;index"`
	Status      enums.OfferStatus      `gorm:"column:status;type:text;not null"`
	Items       []types.OfferItem      `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Counter     *types.CounterOverride `gorm:"column:counter;type:jsonb;serializer:json"`
	History     []types.HistoryEntry   `gorm:"column:history;type:jsonb;serializer:json;not null"`
	Version     int                    `gorm:"column:version;not null"`
	AcceptedAt  *time.Time             `gorm:"column:accepted_at"`
	DeclinedAt  *time.Time             `gorm:"column:declined_at"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
