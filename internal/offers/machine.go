package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

// CounterInput is an admin counter. Prices is keyed by line id.
type CounterInput struct {
	Note   string
	Prices map[uuid.UUID]decimal.Decimal
}

// Totals is the effective size and value of an offer.
type Totals struct {
	Units int             `json:"units"`
	Total decimal.Decimal `json:"total"`
}

// EffectiveTotals sums every line at its effective price. A counter price
// supersedes the offer price whatever the status.
func EffectiveTotals(offer *models.Offer) Totals {
	totals := Totals{Total: decimal.Zero}
	for _, item := range offer.Items {
		totals.Units += item.Quantity
		totals.Total = totals.Total.Add(item.LineTotal())
	}
	return totals
}

// Submit builds a new pending offer. Stock is reserved by the caller in the
// same transaction, and the caller binds each item's LineID to the inventory
// line it reserved from. Unbound items get a fresh id so counters can still
// address them.
func Submit(buyerID uuid.UUID, items []types.OfferItem, now time.Time) (*models.Offer, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	lines := make([]types.OfferItem, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"index": i})
		}
		if item.OfferPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer_price must not be negative").WithDetails(map[string]any{"index": i})
		}
		item.CounterPrice = nil
		if item.LineID == uuid.Nil {
			item.LineID = uuid.New()
		}
		lines[i] = item
	}
	now = now.UTC()
	return &models.Offer{
		BuyerUserID: buyerID,
		Status:      enums.OfferStatusPending,
		Items:       lines,
		History:     []types.HistoryEntry{{Status: string(enums.OfferStatusPending), At: now}},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// appendHistory moves offer to status and records it. An empty history is
// first seeded with the pending entry at creation time. Nothing is recorded
// when the status does not change.
func appendHistory(offer *models.Offer, status enums.OfferStatus, now time.Time) bool {
	if len(offer.History) == 0 {
		seedAt := offer.CreatedAt
		if seedAt.IsZero() {
			seedAt = now
		}
		offer.History = []types.HistoryEntry{{Status: string(enums.OfferStatusPending), At: seedAt.UTC()}}
	}
	if offer.Status == status {
		return false
	}
	offer.Status = status
	offer.History = append(offer.History, types.HistoryEntry{Status: string(status), At: now.UTC()})
	return true
}

func stateConflict(offer *models.Offer, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, action+" not allowed in current state").WithDetails(map[string]any{
		"offer_id": offer.ID,
		"status":   offer.Status,
	})
}

// ApplyCounter applies an admin counter and reports whether anything changed.
// Prices replace the counter wholesale; a note alone only annotates; an empty
// input withdraws an existing counter.
func ApplyCounter(offer *models.Offer, input CounterInput, now time.Time) (bool, error) {
	switch offer.Status {
	case enums.OfferStatusPending, enums.OfferStatusCounter, enums.OfferStatusDeclined, enums.OfferStatusAccepted:
	default:
		return false, stateConflict(offer, "counter")
	}

	known := make(map[uuid.UUID]struct{}, len(offer.Items))
	for _, item := range offer.Items {
		known[item.LineID] = struct{}{}
	}
	for lineID, price := range input.Prices {
		if _, ok := known[lineID]; !ok {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "counter references unknown line").WithDetails(map[string]any{"line_id": lineID})
		}
		if price.IsNegative() {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "counter price must not be negative").WithDetails(map[string]any{"line_id": lineID})
		}
	}

	switch {
	case len(input.Prices) > 0:
		overrides := make(map[string]decimal.Decimal, len(input.Prices))
		for i := range offer.Items {
			price, ok := input.Prices[offer.Items[i].LineID]
			if !ok {
				offer.Items[i].CounterPrice = nil
				continue
			}
			p := price
			offer.Items[i].CounterPrice = &p
			overrides[offer.Items[i].LineID.String()] = price
		}
		offer.Counter = &types.CounterOverride{Note: input.Note, Items: overrides}
		appendHistory(offer, enums.OfferStatusCounter, now)
	case input.Note != "":
		if offer.Counter == nil {
			offer.Counter = &types.CounterOverride{Items: map[string]decimal.Decimal{}}
		}
		offer.Counter.Note = input.Note
	case offer.Counter != nil:
		offer.Counter = nil
		for i := range offer.Items {
			offer.Items[i].CounterPrice = nil
		}
	default:
		return false, nil
	}
	offer.UpdatedAt = now.UTC()
	return true, nil
}

// Accept folds any counter into the lines and moves the offer to accepted.
// Each line keeps its offer price; the counter price stays on the line as the
// agreed price.
func Accept(offer *models.Offer, now time.Time) (bool, error) {
	switch offer.Status {
	case enums.OfferStatusPending, enums.OfferStatusCounter, enums.OfferStatusDeclined, enums.OfferStatusAccepted:
	default:
		return false, stateConflict(offer, "accept")
	}
	changed := false
	if offer.Counter != nil {
		for i := range offer.Items {
			if price, ok := offer.Counter.Items[offer.Items[i].LineID.String()]; ok {
				p := price
				offer.Items[i].CounterPrice = &p
			}
		}
		offer.Counter = nil
		changed = true
	}
	if offer.AcceptedAt == nil {
		at := now.UTC()
		offer.AcceptedAt = &at
		changed = true
	}
	if appendHistory(offer, enums.OfferStatusAccepted, now) {
		changed = true
	}
	if changed {
		offer.UpdatedAt = now.UTC()
	}
	return changed, nil
}

// Decline closes negotiation from the buyer side.
func Decline(offer *models.Offer, now time.Time) (bool, error) {
	switch offer.Status {
	case enums.OfferStatusPending, enums.OfferStatusCounter, enums.OfferStatusDeclined:
	default:
		return false, stateConflict(offer, "decline")
	}
	if !appendHistory(offer, enums.OfferStatusDeclined, now) {
		return false, nil
	}
	at := now.UTC()
	offer.DeclinedAt = &at
	offer.UpdatedAt = at
	return true, nil
}

// MarkProcessing is driven by the order once payment starts.
func MarkProcessing(offer *models.Offer, now time.Time) (bool, error) {
	switch offer.Status {
	case enums.OfferStatusAccepted, enums.OfferStatusProcessing:
	default:
		return false, stateConflict(offer, "processing")
	}
	if !appendHistory(offer, enums.OfferStatusProcessing, now) {
		return false, nil
	}
	offer.UpdatedAt = now.UTC()
	return true, nil
}

// MarkCompleted is driven by order completion.
func MarkCompleted(offer *models.Offer, now time.Time) (bool, error) {
	switch offer.Status {
	case enums.OfferStatusAccepted, enums.OfferStatusProcessing, enums.OfferStatusCompleted:
	default:
		return false, stateConflict(offer, "complete")
	}
	if !appendHistory(offer, enums.OfferStatusCompleted, now) {
		return false, nil
	}
	at := now.UTC()
	offer.CompletedAt = &at
	offer.UpdatedAt = at
	return true, nil
}
