package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeEventVerifier authenticates a delivery and decodes its event.
type StripeEventVerifier interface {
	VerifyEvent(payload []byte, headers http.Header) (stripe.Event, error)
}

// StripeWebhook applies payment intent events, deduplicated by event id.
func StripeWebhook(svc StripeWebhookService, verifier StripeEventVerifier, guard IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		payload, err := readPayload(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		event, err := verifier.VerifyEvent(payload, r.Header)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}
		if applyOnce(ctx, w, logg, guard, event.ID, func() error { return svc.HandleEvent(ctx, &event) }) && logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
	}
}
