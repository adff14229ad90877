package webhooks

import (
	"context"
	"net/http"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	internalwebhooks "github.com/angelmondragon/devicehub-backend/internal/webhooks"
	carrierwebhook "github.com/angelmondragon/devicehub-backend/internal/webhooks/carrier"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

type CarrierWebhookService interface {
	HandleEvent(ctx context.Context, event *carrierwebhook.Event) error
}

type signatureVerifier interface {
	VerifySignature(rawBody []byte, headers http.Header) error
}

// CarrierWebhook verifies and applies ShipEngine tracking events. The
// signature is checked against the raw body before anything is decoded.
func CarrierWebhook(svc CarrierWebhookService, verifier signatureVerifier, guard IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "carrier webhook unavailable"))
			return
		}

		payload, err := readPayload(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := verifier.VerifySignature(payload, r.Header); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		event, err := carrierwebhook.DecodeEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"tracking_number": event.Data.TrackingNumber,
				"status_code":     event.Data.StatusCode,
			})
		}
		// ShipEngine deliveries carry no event id, so the body digest is the key.
		deliveryID := internalwebhooks.BodyKey(payload)
		if applyOnce(ctx, w, logg, guard, deliveryID, func() error { return svc.HandleEvent(ctx, event) }) && logg != nil {
			logg.Info(ctx, "carrier event processed")
		}
	}
}
