package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// Order is the fulfillment record created from an accepted offer.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string            `gorm:"column:order_number;not null;uniqueIndex"`
	OfferID        uuid.UUID         `gorm:"column:offer_id;type:uuid;not null;uniqueIndex"`
	BuyerUserID    uuid.UUID         `gorm:"column:buyer_user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;index"`
	EstimatedQuote decimal.Decimal   `gorm:"column:estimated_quote;type:numeric(12,2);not null"`

	ReOfferNewPrice     *decimal.Decimal         `gorm:"column:re_offer_new_price;type:numeric(12,2)"`
	ReOfferReasons      []string                 `gorm:"column:re_offer_reasons;type:jsonb;serializer:json"`
	ReOfferCreatedAt    *time.Time               `gorm:"column:re_offer_created_at"`
	ReOfferAutoAcceptAt *time.Time               `gorm:"column:re_offer_auto_accept_at;index"`
	ReOfferResolution   *enums.ReOfferResolution `gorm:"column:re_offer_resolution;type:text"`
	ReOfferResolvedAt   *time.Time               `gorm:"column:re_offer_resolved_at"`

	ShippingInfo        *types.ShippingInfo `gorm:"column:shipping_info;type:jsonb;serializer:json"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	PaymentAmount       decimal.Decimal     `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	PaymentIntentID     *string             `gorm:"column:payment_intent_id;index"`
	PaymentClientSecret *string             `gorm:"column:payment_client_secret"`

	LastLabelGeneratedAt *time.Time           `gorm:"column:last_label_generated_at"`
	LatestLabelID        *uuid.UUID           `gorm:"column:latest_label_id;type:uuid"`
	History              []types.HistoryEntry `gorm:"column:history;type:jsonb;serializer:json;not null"`
	CompletedAt          *time.Time           `gorm:"column:completed_at"`
	CancelledAt          *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt            time.Time            `gorm:"column:created_at"`
	UpdatedAt            time.Time            `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// HasReOffer reports whether an inspection re-offer was ever attached.
func (o Order) HasReOffer() bool {
	return o.ReOfferNewPrice != nil && o.ReOfferCreatedAt != nil
}

// EffectivePrice is the re-offer price once accepted (by the buyer or the
// deadline), the estimated quote otherwise.
func (o Order) EffectivePrice() decimal.Decimal {
	if o.ReOfferNewPrice == nil {
		return o.EstimatedQuote
	}
	if o.Status.IsReOfferAccepted() {
		return *o.ReOfferNewPrice
	}
	if o.ReOfferResolution != nil && *o.ReOfferResolution != enums.ReOfferResolutionDeclined {
		return *o.ReOfferNewPrice
	}
	return o.EstimatedQuote
}
