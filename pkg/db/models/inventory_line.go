package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryLine is the stock held for one device/storage/grade combination.
type InventoryLine struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DeviceID       string          `gorm:"column:device_id;not null;uniqueIndex:idx_inventory_lines_identity"`
	StorageVariant string          `gorm:"column:storage_variant;not null;uniqueIndex:idx_inventory_lines_identity"`
	Grade          string          `gorm:"column:grade;not null;uniqueIndex:idx_inventory_lines_identity"`
	Stock          int             `gorm:"column:stock;not null;check:stock >= 0"`
	AskingPrice    decimal.Decimal `gorm:"column:asking_price;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryLine) TableName() string { return "inventory_lines" }

func (l *InventoryLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
