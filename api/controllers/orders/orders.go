package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicehub-backend/api/middleware"
	"github.com/angelmondragon/devicehub-backend/api/responses"
	"github.com/angelmondragon/devicehub-backend/api/validators"
	internalorders "github.com/angelmondragon/devicehub-backend/internal/orders"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

const maxReasonLength = 280

// Service is the slice of the order service the HTTP layer drives.
type Service interface {
	Checkout(ctx context.Context, buyerID, offerID uuid.UUID, input internalorders.CheckoutInput) (*internalorders.OrderDTO, error)
	CreatePaymentIntent(ctx context.Context, buyerID, orderID uuid.UUID) (*internalorders.PaymentIntentResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	Complete(ctx context.Context, adminID, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	Cancel(ctx context.Context, adminID, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	CreateReOffer(ctx context.Context, adminID, orderID uuid.UUID, input internalorders.ReOfferInput) (*internalorders.OrderDTO, error)
	RespondReOffer(ctx context.Context, buyerID, orderID uuid.UUID, accept bool) (*internalorders.OrderDTO, error)
}

type reOfferResponseRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// Checkout commits an accepted offer into a numbered order.
func Checkout(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalorders.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), buyerID, offerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// PaymentIntent creates or returns the order's payment intent.
func PaymentIntent(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreatePaymentIntent(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Detail returns an order owned by the buyer. A due re-offer is resolved
// before it is rendered.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForBuyer(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RespondReOffer records the buyer's answer to a pending re-offer.
func RespondReOffer(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reOfferResponseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RespondReOffer(r.Context(), buyerID, orderID, *payload.Accept)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminDetail returns any order.
func AdminDetail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminCreateReOffer proposes a new price after inspection.
func AdminCreateReOffer(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalorders.ReOfferInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		for i, reason := range input.Reasons {
			input.Reasons[i] = validators.SanitizeString(reason, maxReasonLength)
		}

		order, err := svc.CreateReOffer(r.Context(), adminID, orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// AdminComplete closes out an order.
func AdminComplete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc.Complete, logg)
}

// AdminCancel cancels an order and returns its stock.
func AdminCancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(svc.Cancel, logg)
}

type actionFunc func(ctx context.Context, adminID, orderID uuid.UUID) (*internalorders.OrderDTO, error)

func adminAction(apply actionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := apply(r.Context(), adminID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
