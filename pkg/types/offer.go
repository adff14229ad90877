package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferItem is one line of a buyer offer.
type OfferItem struct {
	LineID         uuid.UUID        `json:"line_id"`
	DeviceID       string           `json:"device_id"`
	StorageVariant string           `json:"storage_variant"`
	Grade          string           `json:"grade"`
	Quantity       int              `json:"quantity"`
	OfferPrice     decimal.Decimal  `json:"offer_price"`
	CounterPrice   *decimal.Decimal `json:"counter_price,omitempty"`
}

// EffectivePrice returns the counter price when present, the offer price otherwise.
func (i OfferItem) EffectivePrice() decimal.Decimal {
	if i.CounterPrice != nil {
		return *i.CounterPrice
	}
	return i.OfferPrice
}

// LineTotal is EffectivePrice times Quantity.
func (i OfferItem) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CounterOverride is the admin counter attached to an offer. Items is keyed by
// line id and only holds the overridden lines.
type CounterOverride struct {
	Note  string                     `json:"note,omitempty"`
	Items map[string]decimal.Decimal `json:"items"`
}

// HistoryEntry records one applied status transition.
type HistoryEntry struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}
