package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

// maxPayloadBytes caps provider deliveries; Stripe documents 256KB events.
const maxPayloadBytes = 512 << 10

// IdempotencyGuard dedupes webhook deliveries.
type IdempotencyGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

func readPayload(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(payload) > maxPayloadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large")
	}
	return payload, nil
}

// applyOnce runs apply unless deliveryID was already marked. A failed apply
// clears the mark so the provider's redelivery is processed. Duplicates and
// successes both answer 200. A nil guard applies every delivery.
func applyOnce(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, guard IdempotencyGuard, deliveryID string, apply func() error) bool {
	if guard != nil {
		seen, err := guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return false
		}
		if seen {
			responses.WriteSuccess(w, nil)
			return false
		}
	}

	if err := apply(); err != nil {
		if guard != nil {
			if delErr := guard.Delete(ctx, deliveryID); delErr != nil && logg != nil {
				logg.Error(ctx, "webhook.release_failed", delErr)
			}
		}
		responses.WriteError(ctx, logg, w, err)
		return false
	}
	responses.WriteSuccess(w, nil)
	return true
}
