package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

// Identity addresses one inventory line.
type Identity struct {
	DeviceID       string `json:"device_id" validate:"required"`
	StorageVariant string `json:"storage_variant" validate:"required"`
	Grade          string `json:"grade" validate:"required"`
}

func (i Identity) key() string {
	return fmt.Sprintf("%s\x00%s\x00%s", i.DeviceID, i.StorageVariant, i.Grade)
}

func (i Identity) less(o Identity) bool {
	if i.DeviceID != o.DeviceID {
		return i.DeviceID < o.DeviceID
	}
	if i.StorageVariant != o.StorageVariant {
		return i.StorageVariant < o.StorageVariant
	}
	return i.Grade < o.Grade
}

// StockRequest asks for Quantity units of one line.
type StockRequest struct {
	DeviceID       string
	StorageVariant string
	Grade          string
	Quantity       int
}

// Identity returns the line the request targets.
func (r StockRequest) Identity() Identity {
	return Identity{DeviceID: r.DeviceID, StorageVariant: r.StorageVariant, Grade: r.Grade}
}

// Reservation reports what was taken from one line.
type Reservation struct {
	LineID    uuid.UUID `json:"line_id"`
	Identity  Identity  `json:"identity"`
	Quantity  int       `json:"quantity"`
	Remaining int       `json:"remaining"`
}

// InsufficientStockDetails is rendered in the error envelope.
type InsufficientStockDetails struct {
	DeviceID       string `json:"device_id"`
	StorageVariant string `json:"storage_variant"`
	Grade          string `json:"grade"`
	Requested      int    `json:"requested"`
	Available      int    `json:"available"`
}

// InsufficientStockError reports the first line that cannot cover a request.
func InsufficientStockError(id Identity, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(InsufficientStockDetails{
		DeviceID:       id.DeviceID,
		StorageVariant: id.StorageVariant,
		Grade:          id.Grade,
		Requested:      requested,
		Available:      available,
	})
}

// LineAvailability is the display-only stock read.
type LineAvailability struct {
	Identity
	Found       bool            `json:"found"`
	Stock       int             `json:"stock"`
	AskingPrice decimal.Decimal `json:"asking_price"`
}

// LineDTO is the admin listing row.
type LineDTO struct {
	ID             uuid.UUID       `json:"id"`
	DeviceID       string          `json:"device_id"`
	StorageVariant string          `json:"storage_variant"`
	Grade          string          `json:"grade"`
	Stock          int             `json:"stock"`
	AskingPrice    decimal.Decimal `json:"asking_price"`
}

func toLineDTO(line models.InventoryLine) LineDTO {
	return LineDTO{
		ID:             line.ID,
		DeviceID:       line.DeviceID,
		StorageVariant: line.StorageVariant,
		Grade:          line.Grade,
		Stock:          line.Stock,
		AskingPrice:    line.AskingPrice,
	}
}
