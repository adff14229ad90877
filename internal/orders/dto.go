package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// CheckoutInput carries the buyer's shipping snapshot and payment choice.
type CheckoutInput struct {
	ShippingInfo  types.ShippingInfo  `json:"shipping_info" validate:"required"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=card wire"`
}

// ReOfferInput is an admin re-offer after inspection.
type ReOfferInput struct {
	NewPrice     decimal.Decimal `json:"new_price"`
	Reasons      []string        `json:"reasons" validate:"required,min=1,dive,required"`
	AutoAcceptAt *time.Time      `json:"auto_accept_at,omitempty"`
}

// ReOfferDTO renders the re-offer block. Accepted is true for both the buyer
// and the deadline outcome; ResolvedBy tells them apart.
type ReOfferDTO struct {
	NewPrice     decimal.Decimal          `json:"new_price"`
	Reasons      []string                 `json:"reasons"`
	CreatedAt    *time.Time               `json:"created_at,omitempty"`
	AutoAcceptAt *time.Time               `json:"auto_accept_at,omitempty"`
	Pending      bool                     `json:"pending"`
	Accepted     bool                     `json:"accepted"`
	Resolution   *enums.ReOfferResolution `json:"resolution,omitempty"`
	ResolvedBy   string                   `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time               `json:"resolved_at,omitempty"`
}

// PaymentDTO is the payment block of an order.
type PaymentDTO struct {
	Method          enums.PaymentMethod `json:"method"`
	Status          enums.PaymentStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID                   uuid.UUID            `json:"id"`
	OrderNumber          string               `json:"order_number"`
	OfferID              uuid.UUID            `json:"offer_id"`
	BuyerUserID          uuid.UUID            `json:"buyer_user_id"`
	Status               enums.OrderStatus    `json:"status"`
	EstimatedQuote       decimal.Decimal      `json:"estimated_quote"`
	EffectivePrice       decimal.Decimal      `json:"effective_price"`
	ReOffer              *ReOfferDTO          `json:"re_offer,omitempty"`
	ShippingInfo         *types.ShippingInfo  `json:"shipping_info,omitempty"`
	Payment              PaymentDTO           `json:"payment"`
	LastLabelGeneratedAt *time.Time           `json:"last_label_generated_at,omitempty"`
	LatestLabelID        *uuid.UUID           `json:"latest_label_id,omitempty"`
	History              []types.HistoryEntry `json:"history"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// PaymentIntentResult is handed to the buyer to confirm payment client side.
type PaymentIntentResult struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
	ClientSecret    *string             `json:"client_secret,omitempty"`
}

// ToDTO renders an order.
func ToDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		OfferID:        order.OfferID,
		BuyerUserID:    order.BuyerUserID,
		Status:         order.Status,
		EstimatedQuote: order.EstimatedQuote,
		EffectivePrice: order.EffectivePrice(),
		ShippingInfo:   order.ShippingInfo,
		Payment: PaymentDTO{
			Method:          order.PaymentMethod,
			Status:          order.PaymentStatus,
			Amount:          order.PaymentAmount,
			PaymentIntentID: order.PaymentIntentID,
		},
		LastLabelGeneratedAt: order.LastLabelGeneratedAt,
		LatestLabelID:        order.LatestLabelID,
		History:              order.History,
		CompletedAt:          order.CompletedAt,
		CancelledAt:          order.CancelledAt,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
	if order.HasReOffer() {
		re := &ReOfferDTO{
			NewPrice:     *order.ReOfferNewPrice,
			Reasons:      order.ReOfferReasons,
			CreatedAt:    order.ReOfferCreatedAt,
			AutoAcceptAt: order.ReOfferAutoAcceptAt,
			Pending:      order.Status == enums.OrderStatusReOfferedPending,
			Resolution:   order.ReOfferResolution,
			ResolvedAt:   order.ReOfferResolvedAt,
		}
		if order.ReOfferResolution != nil {
			re.Accepted = *order.ReOfferResolution != enums.ReOfferResolutionDeclined
			re.ResolvedBy = order.ReOfferResolution.ResolvedBy()
		}
		dto.ReOffer = re
	}
	return dto
}
