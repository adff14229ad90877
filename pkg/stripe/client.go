// Package stripe holds the payment provider integration: API client
// bootstrap, payment intent creation and webhook verification.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes accepted per mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client is the configured Stripe API handle plus the webhook verifier for the
// same account.
type Client struct {
	api      *stripe.Client
	mode     string
	webhooks *WebhookVerifier
}

// NewClient validates the key against the configured mode, so a live key can
// never be used from a test deployment or the other way round.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe env %q is not one of test or live", mode)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe %s mode needs a key starting with %s", mode, strings.Join(prefixes, " or "))
	}

	webhooks, err := NewWebhookVerifier(cfg.Secret)
	if err != nil {
		return nil, err
	}

	// paymentintent.New reads the package level key.
	stripe.Key = apiKey

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client ready")
	}
	return &Client{api: stripe.NewClient(apiKey), mode: mode, webhooks: webhooks}, nil
}

func (c *Client) API() *stripe.Client {
	return c.api
}

// Mode is "test" or "live".
func (c *Client) Mode() string {
	return c.mode
}

func (c *Client) Webhooks() *WebhookVerifier {
	return c.webhooks
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}
