package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	"github.com/angelmondragon/devicehub-backend/api/validators"
	"github.com/angelmondragon/devicehub-backend/internal/labels"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

// LabelService is the admin label surface.
type LabelService interface {
	CreateLabel(ctx context.Context, orderID uuid.UUID, details labels.ShippingDetails) (*labels.LabelResult, error)
	GetLabel(ctx context.Context, labelID uuid.UUID) (*labels.LabelResult, error)
	VoidLabel(ctx context.Context, labelID uuid.UUID) error
}

// AdminCreateLabel buys an inbound label for an order.
func AdminCreateLabel(svc LabelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var details labels.ShippingDetails
		if err := validators.DecodeOptionalJSONBody(r, &details); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		label, err := svc.CreateLabel(r.Context(), orderID, details)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, label)
	}
}

// AdminGetLabel returns a label with a freshly signed download URL.
func AdminGetLabel(svc LabelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labelID, err := validators.ParseUUIDParam(r, "labelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		label, err := svc.GetLabel(r.Context(), labelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, label)
	}
}

// AdminVoidLabel voids a label. Voiding twice succeeds.
func AdminVoidLabel(svc LabelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labelID, err := validators.ParseUUIDParam(r, "labelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.VoidLabel(r.Context(), labelID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"label_id": labelID, "voided": true})
	}
}
