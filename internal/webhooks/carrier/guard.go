// Package carrierwebhook authenticates and applies ShipEngine tracking webhooks.
package carrierwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

const (
	HeaderShipEngineWebhook = "x-shipengine-webhook-signature"
	HeaderShipEngine        = "shipengine-signature"
	HeaderHub               = "x-hub-signature"

	signaturePrefix = "sha256="
)

// AcceptedHeaders lists the signature headers in the order they are consulted.
var AcceptedHeaders = []string{HeaderShipEngineWebhook, HeaderShipEngine, HeaderHub}

// Guard verifies HMAC-SHA256 signatures on carrier webhook bodies.
type Guard struct {
	secrets map[string]string
}

// NewGuard maps each accepted header to the secret configured for it. Headers
// without a secret are still recognized but never verify.
func NewGuard(cfg config.CarrierWebhookConfig) *Guard {
	return &Guard{secrets: map[string]string{
		HeaderShipEngineWebhook: strings.TrimSpace(cfg.ShipEngineSecret),
		HeaderShipEngine:        strings.TrimSpace(cfg.ShipEngineSecret),
		HeaderHub:               strings.TrimSpace(cfg.HubSecret),
	}}
}

// MissingSignatureError is returned when none of the accepted headers is set.
func MissingSignatureError() error {
	return pkgerrors.New(pkgerrors.CodeMissingSignature, "webhook signature header missing").
		WithDetails(map[string]any{"accepted_headers": AcceptedHeaders})
}

// InvalidSignatureError is returned when the signature in header does not match.
func InvalidSignatureError(header string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature invalid").
		WithDetails(map[string]any{"header": header})
}

// VerifySignature checks rawBody against the first accepted header present.
func (g *Guard) VerifySignature(rawBody []byte, headers http.Header) error {
	header, signature := pickHeader(headers)
	if header == "" {
		return MissingSignatureError()
	}
	secret := g.secrets[header]
	if secret == "" {
		return InvalidSignatureError(header)
	}

	provided := strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	expected := Sign(rawBody, secret)
	if len(provided) != len(expected) {
		return InvalidSignatureError(header)
	}
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return InvalidSignatureError(header)
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func pickHeader(headers http.Header) (string, string) {
	for _, name := range AcceptedHeaders {
		if value := headers.Get(name); strings.TrimSpace(value) != "" {
			return name, value
		}
	}
	return "", ""
}
