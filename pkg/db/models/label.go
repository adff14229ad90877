package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/enums"
)

// Label is a carrier shipping label stored as a blob.
type Label struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	CarrierLabelID *string           `gorm:"column:carrier_label_id"`
	TrackingNumber *string           `gorm:"column:tracking_number;index"`
	StoragePath    string            `gorm:"column:storage_path;not null"`
	Status         enums.LabelStatus `gorm:"column:status;type:text;not null"`
	TrackingStatus *string           `gorm:"column:tracking_status"`
	ExpiresAt      time.Time         `gorm:"column:expires_at;not null"`
	VoidedAt       *time.Time        `gorm:"column:voided_at"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at"`
}

func (Label) TableName() string { return "labels" }

func (l *Label) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
