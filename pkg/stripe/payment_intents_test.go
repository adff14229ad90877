package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

func TestCreatePaymentIntentBuildsParams(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	client := &paymentIntentClient{create: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		captured = params
		return &stripe.PaymentIntent{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret",
			Amount:       *params.Amount,
			Currency:     stripe.Currency(*params.Currency),
		}, nil
	}}

	intent, err := client.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		AmountCents:    16000,
		Currency:       " USD ",
		Metadata:       map[string]string{"order_id": "o-1", "order_number": "ORD-0000001"},
		IdempotencyKey: "order-o-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pi_123", intent.ID)
	require.Equal(t, "pi_123_secret", intent.ClientSecret)
	require.Equal(t, int64(16000), intent.AmountCents)

	require.NotNil(t, captured)
	require.Equal(t, "usd", *captured.Currency)
	require.Equal(t, "o-1", captured.Metadata["order_id"])
	require.Equal(t, "ORD-0000001", captured.Metadata["order_number"])
	require.NotNil(t, captured.IdempotencyKey)
	require.Equal(t, "order-o-1", *captured.IdempotencyKey)
}

func TestCreatePaymentIntentValidates(t *testing.T) {
	client := &paymentIntentClient{create: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	}}

	_, err := client.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountCents: 0, Currency: "usd"})
	require.Error(t, err)

	_, err = client.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountCents: 100})
	require.Error(t, err)
}

func TestCreatePaymentIntentSurfacesProviderError(t *testing.T) {
	client := &paymentIntentClient{create: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, errors.New("card_declined")
	}}
	_, err := client.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountCents: 100, Currency: "usd"})
	require.EqualError(t, err, "card_declined")
}
