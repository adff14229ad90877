package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	"github.com/angelmondragon/devicehub-backend/api/validators"
	"github.com/angelmondragon/devicehub-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

const maxAvailabilityLines = 50

// InventoryService is the stock surface exposed over HTTP.
type InventoryService interface {
	Availability(ctx context.Context, ids []inventory.Identity) ([]inventory.LineAvailability, error)
	List(ctx context.Context, params pagination.Params) (*pagination.Page[inventory.LineDTO], error)
	SetStock(ctx context.Context, id inventory.Identity, stock int, askingPrice decimal.Decimal) (*inventory.LineDTO, error)
	Restock(ctx context.Context, id inventory.Identity, delta int) (*inventory.LineDTO, error)
}

type setStockRequest struct {
	inventory.Identity
	Stock       *int            `json:"stock" validate:"required,min=0"`
	AskingPrice decimal.Decimal `json:"asking_price"`
}

type restockRequest struct {
	inventory.Identity
	Delta int `json:"delta" validate:"required,gt=0"`
}

// InventoryAvailability reads stock for the lines named by the aligned
// device_id, storage_variant and grade query values.
func InventoryAvailability(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices := validators.QueryList(r, "device_id")
		variants := validators.QueryList(r, "storage_variant")
		grades := validators.QueryList(r, "grade")
		if len(devices) == 0 || len(devices) != len(variants) || len(devices) != len(grades) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "device_id, storage_variant and grade must be given once per line"))
			return
		}
		if len(devices) > maxAvailabilityLines {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many lines requested").
				WithDetails(map[string]any{"max": maxAvailabilityLines}))
			return
		}
		ids := make([]inventory.Identity, len(devices))
		for i := range devices {
			ids[i] = inventory.Identity{
				DeviceID:       validators.SanitizeString(devices[i], 128),
				StorageVariant: validators.SanitizeString(variants[i], 64),
				Grade:          validators.SanitizeString(grades[i], 16),
			}
		}
		lines, err := svc.Availability(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lines)
	}
}

// AdminInventoryList pages through inventory lines.
func AdminInventoryList(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminSetStock creates a line or overwrites its stock and asking price.
func AdminSetStock(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, err := svc.SetStock(r.Context(), payload.Identity, *payload.Stock, payload.AskingPrice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, line)
	}
}

// AdminRestock adds units to an existing line.
func AdminRestock(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, err := svc.Restock(r.Context(), payload.Identity, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, line)
	}
}
