package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/pkg/enums"
)

// OfferEvent covers submit/counter/accept/decline transitions.
type OfferEvent struct {
	OfferID     uuid.UUID         `json:"offer_id"`
	BuyerUserID uuid.UUID         `json:"buyer_user_id"`
	Status      enums.OfferStatus `json:"status"`
	Units       int               `json:"units"`
	Total       decimal.Decimal   `json:"total"`
	Note        string            `json:"note,omitempty"`
}

// OrderStatusEvent reports an order lifecycle transition.
type OrderStatusEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OfferID     uuid.UUID         `json:"offer_id"`
	BuyerUserID uuid.UUID         `json:"buyer_user_id"`
	Status      enums.OrderStatus `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Reason      string            `json:"reason,omitempty"`
}

// ReOfferEvent is emitted when a re-offer is attached and when it resolves.
type ReOfferEvent struct {
	OrderID      uuid.UUID                `json:"order_id"`
	OrderNumber  string                   `json:"order_number"`
	BuyerUserID  uuid.UUID                `json:"buyer_user_id"`
	NewPrice     decimal.Decimal          `json:"new_price"`
	Reasons      []string                 `json:"reasons,omitempty"`
	AutoAcceptAt time.Time                `json:"auto_accept_at"`
	Status       enums.OrderStatus        `json:"status"`
	Resolution   *enums.ReOfferResolution `json:"resolution,omitempty"`
	ResolvedBy   string                   `json:"resolved_by,omitempty"`
}

// LabelEvent is emitted when a label is created or voided.
type LabelEvent struct {
	LabelID        uuid.UUID         `json:"label_id"`
	OrderID        uuid.UUID         `json:"order_id"`
	StoragePath    string            `json:"storage_path"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	Status         enums.LabelStatus `json:"status"`
}

// ShipmentEvent relays carrier tracking progress.
type ShipmentEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	LabelID        uuid.UUID         `json:"label_id"`
	TrackingNumber string            `json:"tracking_number"`
	TrackingStatus string            `json:"tracking_status"`
	OrderStatus    enums.OrderStatus `json:"order_status"`
}

// InventoryRestoredEvent reports stock returned by a cancelled order.
type InventoryRestoredEvent struct {
	OrderID uuid.UUID       `json:"order_id"`
	Lines   []RestoredStock `json:"lines"`
}

// RestoredStock is one line returned to inventory.
type RestoredStock struct {
	DeviceID       string `json:"device_id"`
	StorageVariant string `json:"storage_variant"`
	Grade          string `json:"grade"`
	Quantity       int    `json:"quantity"`
}
