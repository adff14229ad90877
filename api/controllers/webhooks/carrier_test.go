package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	carrierwebhook "github.com/angelmondragon/devicehub-backend/internal/webhooks/carrier"
	"github.com/angelmondragon/devicehub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

const carrierSecret = "se-secret"

var trackingBody = []byte(`{"resource_url":"https://api.shipengine.com/v1/tracking?tracking_number=9400111","resource_type":"API_TRACK","data":{"tracking_number":"9400111","status_code":"IT","status_description":"In Transit"}}`)

type fakeCarrierService struct {
	events []*carrierwebhook.Event
	err    error
}

func (f *fakeCarrierService) HandleEvent(ctx context.Context, event *carrierwebhook.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func newCarrierHandler(t *testing.T, svc *fakeCarrierService) http.Handler {
	guard := carrierwebhook.NewGuard(config.CarrierWebhookConfig{ShipEngineSecret: carrierSecret, HubSecret: "hub-secret"})
	return CarrierWebhook(svc, guard, newGuard(t, "carrier-webhook"), nil)
}

func postCarrier(handler http.Handler, body []byte, header, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", bytes.NewReader(body))
	if header != "" {
		req.Header.Set(header, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestCarrierWebhookMissingHeaderIsBadRequest(t *testing.T) {
	svc := &fakeCarrierService{}
	rec := postCarrier(newCarrierHandler(t, svc), trackingBody, "", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	require.Equal(t, string(pkgerrors.CodeMissingSignature), apiErr.Code)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	require.Len(t, details["accepted_headers"], 3)
	require.Empty(t, svc.events)
}

func TestCarrierWebhookInvalidSignatureIsUnauthorized(t *testing.T) {
	svc := &fakeCarrierService{}
	rec := postCarrier(newCarrierHandler(t, svc), trackingBody, carrierwebhook.HeaderShipEngine, carrierwebhook.Sign(trackingBody, "wrong"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, string(pkgerrors.CodeInvalidSignature), decodeError(t, rec).Code)
	require.Empty(t, svc.events)
}

func TestCarrierWebhookAppliesVerifiedEventOnce(t *testing.T) {
	svc := &fakeCarrierService{}
	handler := newCarrierHandler(t, svc)
	signature := "sha256=" + carrierwebhook.Sign(trackingBody, "hub-secret")

	rec := postCarrier(handler, trackingBody, carrierwebhook.HeaderHub, signature)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.events, 1)
	require.Equal(t, "9400111", svc.events[0].Data.TrackingNumber)
	require.Equal(t, carrierwebhook.StatusInTransit, svc.events[0].Data.StatusCode)

	rec = postCarrier(handler, trackingBody, carrierwebhook.HeaderHub, signature)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
}

func TestCarrierWebhookServiceFailureAllowsRedelivery(t *testing.T) {
	svc := &fakeCarrierService{err: pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")}
	handler := newCarrierHandler(t, svc)
	signature := carrierwebhook.Sign(trackingBody, carrierSecret)

	rec := postCarrier(handler, trackingBody, carrierwebhook.HeaderShipEngineWebhook, signature)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	svc.err = nil
	rec = postCarrier(handler, trackingBody, carrierwebhook.HeaderShipEngineWebhook, signature)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 2)
}
