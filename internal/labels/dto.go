package labels

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// ShippingDetails overrides what the carrier needs to buy an inbound label.
// A nil ShipFrom falls back to the shipping snapshot taken at checkout.
type ShippingDetails struct {
	ShipFrom *types.ShippingInfo `json:"ship_from,omitempty"`
	WeightOz float64             `json:"weight_oz" validate:"omitempty,gt=0"`
}

// LabelResult is returned when a label is created or re-read.
type LabelResult struct {
	LabelID        uuid.UUID         `json:"label_id"`
	OrderID        uuid.UUID         `json:"order_id"`
	Status         enums.LabelStatus `json:"status"`
	StoragePath    string            `json:"storage_path"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	TrackingStatus string            `json:"tracking_status,omitempty"`
	SignedURL      string            `json:"signed_url,omitempty"`
	ExpiresAt      time.Time         `json:"expires_at"`
	VoidedAt       *time.Time        `json:"voided_at,omitempty"`
}

func toResult(label *models.Label, signedURL string) LabelResult {
	result := LabelResult{
		LabelID:     label.ID,
		OrderID:     label.OrderID,
		Status:      label.Status,
		StoragePath: label.StoragePath,
		SignedURL:   signedURL,
		ExpiresAt:   label.ExpiresAt,
		VoidedAt:    label.VoidedAt,
	}
	if label.TrackingNumber != nil {
		result.TrackingNumber = *label.TrackingNumber
	}
	if label.TrackingStatus != nil {
		result.TrackingStatus = *label.TrackingStatus
	}
	return result
}
