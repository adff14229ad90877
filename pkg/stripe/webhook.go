package stripe

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

const (
	SignatureHeader = "Stripe-Signature"

	// signatureTolerance bounds replay of a captured delivery.
	signatureTolerance = 5 * time.Minute
)

// WebhookVerifier authenticates Stripe deliveries with the endpoint's signing
// secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}
	return &WebhookVerifier{secret: secret}, nil
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes the event. A missing header is CodeMissingSignature, anything else
// that fails verification is CodeInvalidSignature. Events rendered with a
// different API version are accepted because only the payment intent fields
// common to all versions are read.
func (v *WebhookVerifier) VerifyEvent(payload []byte, headers http.Header) (stripe.Event, error) {
	header := headers.Get(SignatureHeader)
	if header == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeMissingSignature, "stripe signature missing").
			WithDetails(map[string]any{"accepted_headers": []string{SignatureHeader}})
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "stripe signature invalid")
	}
	return event, nil
}
