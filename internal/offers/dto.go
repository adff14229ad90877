package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// SubmitItem is one requested line in a new offer.
type SubmitItem struct {
	DeviceID       string          `json:"device_id" validate:"required"`
	StorageVariant string          `json:"storage_variant" validate:"required"`
	Grade          string          `json:"grade" validate:"required"`
	Quantity       int             `json:"quantity" validate:"required,gt=0"`
	OfferPrice     decimal.Decimal `json:"offer_price"`
}

// SubmitInput is the buyer's cart turned into an offer.
type SubmitInput struct {
	Items []SubmitItem `json:"items" validate:"required,min=1,dive"`
}

// CounterRequest is the admin counter with the optional version guard.
type CounterRequest struct {
	CounterInput
	ExpectedVersion *int
}

// ItemDTO renders one offer line with its effective price.
type ItemDTO struct {
	LineID         uuid.UUID        `json:"line_id"`
	DeviceID       string           `json:"device_id"`
	StorageVariant string           `json:"storage_variant"`
	Grade          string           `json:"grade"`
	Quantity       int              `json:"quantity"`
	OfferPrice     decimal.Decimal  `json:"offer_price"`
	CounterPrice   *decimal.Decimal `json:"counter_price,omitempty"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	LineTotal      decimal.Decimal  `json:"line_total"`
}

// OfferDTO is the API shape of an offer.
type OfferDTO struct {
	ID          uuid.UUID              `json:"id"`
	BuyerUserID uuid.UUID              `json:"buyer_user_id"`
	Status      enums.OfferStatus      `json:"status"`
	Items       []ItemDTO              `json:"items"`
	Counter     *types.CounterOverride `json:"counter"`
	History     []types.HistoryEntry   `json:"history"`
	Version     int                    `json:"version"`
	Totals      Totals                 `json:"totals"`
	AcceptedAt  *time.Time             `json:"accepted_at,omitempty"`
	DeclinedAt  *time.Time             `json:"declined_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ToDTO renders an offer.
func ToDTO(offer *models.Offer) OfferDTO {
	items := make([]ItemDTO, len(offer.Items))
	for i, item := range offer.Items {
		items[i] = ItemDTO{
			LineID:         item.LineID,
			DeviceID:       item.DeviceID,
			StorageVariant: item.StorageVariant,
			Grade:          item.Grade,
			Quantity:       item.Quantity,
			OfferPrice:     item.OfferPrice,
			CounterPrice:   item.CounterPrice,
			EffectivePrice: item.EffectivePrice(),
			LineTotal:      item.LineTotal(),
		}
	}
	return OfferDTO{
		ID:          offer.ID,
		BuyerUserID: offer.BuyerUserID,
		Status:      offer.Status,
		Items:       items,
		Counter:     offer.Counter,
		History:     offer.History,
		Version:     offer.Version,
		Totals:      EffectiveTotals(offer),
		AcceptedAt:  offer.AcceptedAt,
		DeclinedAt:  offer.DeclinedAt,
		CompletedAt: offer.CompletedAt,
		CreatedAt:   offer.CreatedAt,
		UpdatedAt:   offer.UpdatedAt,
	}
}
