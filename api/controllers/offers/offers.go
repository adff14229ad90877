package offers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/devicehub-backend/api/middleware"
	"github.com/angelmondragon/devicehub-backend/api/responses"
	"github.com/angelmondragon/devicehub-backend/api/validators"
	internaloffers "github.com/angelmondragon/devicehub-backend/internal/offers"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

const maxNoteLength = 500

// Service is the slice of the offer service the HTTP layer drives.
type Service interface {
	Submit(ctx context.Context, buyerID uuid.UUID, input internaloffers.SubmitInput) (*internaloffers.OfferDTO, error)
	Get(ctx context.Context, offerID uuid.UUID) (*internaloffers.OfferDTO, error)
	GetForBuyer(ctx context.Context, buyerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*pagination.Page[internaloffers.OfferDTO], error)
	ListAll(ctx context.Context, status *enums.OfferStatus, params pagination.Params) (*pagination.Page[internaloffers.OfferDTO], error)
	Counter(ctx context.Context, adminID, offerID uuid.UUID, req internaloffers.CounterRequest) (*internaloffers.OfferDTO, error)
	Accept(ctx context.Context, buyerID, offerID uuid.UUID, expectedVersion *int) (*internaloffers.OfferDTO, error)
	Decline(ctx context.Context, buyerID, offerID uuid.UUID, expectedVersion *int) (*internaloffers.OfferDTO, error)
}

type versionRequest struct {
	ExpectedVersion *int `json:"expected_version" validate:"omitempty,min=1"`
}

type counterRequest struct {
	Note            string                     `json:"note"`
	Prices          map[string]decimal.Decimal `json:"prices"`
	ExpectedVersion *int                       `json:"expected_version" validate:"omitempty,min=1"`
}

// Submit creates an offer from the buyer's cart and reserves its stock.
func Submit(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input internaloffers.SubmitInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Submit(r.Context(), buyerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// List returns the buyer's offers, newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForBuyer(r.Context(), buyerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail returns one offer owned by the buyer.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
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
		offer, err := svc.GetForBuyer(r.Context(), buyerID, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// Accept accepts the offer at its effective prices.
func Accept(svc Service, logg *logger.Logger) http.HandlerFunc {
	return buyerDecision(svc.Accept, logg)
}

// Decline declines the offer.
func Decline(svc Service, logg *logger.Logger) http.HandlerFunc {
	return buyerDecision(svc.Decline, logg)
}

type decisionFunc func(ctx context.Context, buyerID, offerID uuid.UUID, expectedVersion *int) (*internaloffers.OfferDTO, error)

func buyerDecision(apply decisionFunc, logg *logger.Logger) http.HandlerFunc {
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
		var payload versionRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offer, err := apply(r.Context(), buyerID, offerID, payload.ExpectedVersion)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// AdminList pages through every offer with an optional status filter.
func AdminList(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.OfferStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOfferStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}
		page, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminCounter attaches a counter note and per-line prices to an offer.
func AdminCounter(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload counterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		prices := make(map[uuid.UUID]decimal.Decimal, len(payload.Prices))
		for rawLineID, price := range payload.Prices {
			lineID, err := uuid.Parse(rawLineID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line id").
					WithDetails(map[string]any{"line_id": rawLineID}))
				return
			}
			prices[lineID] = price
		}

		offer, err := svc.Counter(r.Context(), adminID, offerID, internaloffers.CounterRequest{
			CounterInput: internaloffers.CounterInput{
				Note:   validators.SanitizeString(payload.Note, maxNoteLength),
				Prices: prices,
			},
			ExpectedVersion: payload.ExpectedVersion,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}
