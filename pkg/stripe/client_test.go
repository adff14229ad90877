package stripe

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

func TestNewClientMatchesKeyToMode(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StripeConfig
		ok   bool
	}{
		{"test key in test", config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_1", Env: "test"}, true},
		{"restricted live key", config.StripeConfig{APIKey: "rk_live_abc", Secret: "whsec_1", Env: "LIVE"}, true},
		{"live key in test", config.StripeConfig{APIKey: "sk_live_abc", Secret: "whsec_1", Env: "test"}, false},
		{"unknown mode", config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_1", Env: "staging"}, false},
		{"no key", config.StripeConfig{Secret: "whsec_1"}, false},
		{"no webhook secret", config.StripeConfig{APIKey: "sk_test_abc"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client.API())
			require.NotNil(t, client.Webhooks())
			require.Equal(t, tc.cfg.Environment(), client.Mode())
		})
	}
}

func TestVerifyEventRequiresHeader(t *testing.T) {
	v, err := NewWebhookVerifier("whsec_test")
	require.NoError(t, err)

	_, err = v.VerifyEvent([]byte(`{}`), http.Header{})
	require.Equal(t, pkgerrors.CodeMissingSignature, pkgerrors.As(err).Code())

	headers := http.Header{}
	headers.Set(SignatureHeader, "t=1,v1=deadbeef")
	_, err = v.VerifyEvent([]byte(`{}`), headers)
	require.Equal(t, pkgerrors.CodeInvalidSignature, pkgerrors.As(err).Code())
}
