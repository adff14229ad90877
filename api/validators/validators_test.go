package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

type lineBody struct {
	DeviceID string `json:"device_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestDecodeJSONBody(t *testing.T) {
	var ok lineBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"device_id":"pixel-7","quantity":2}`))
	require.NoError(t, DecodeJSONBody(req, &ok))
	require.Equal(t, lineBody{DeviceID: "pixel-7", Quantity: 2}, ok)

	for name, body := range map[string]string{
		"unknown field": `{"device_id":"a","quantity":1,"extra":true}`,
		"trailing data": `{"device_id":"a","quantity":1}{"device_id":"b"}`,
		"wrong type":    `{"device_id":"a","quantity":"two"}`,
		"empty":         ``,
		"failed rule":   `{"device_id":"","quantity":0}`,
		"too large":     `{"device_id":"` + strings.Repeat("x", maxBodyBytes) + `","quantity":1}`,
	} {
		var dest lineBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
		require.Error(t, err, name)
		requireCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestDecodeOptionalJSONBodySkipsEmpty(t *testing.T) {
	dest := lineBody{DeviceID: "kept"}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeOptionalJSONBody(req, &dest))
	require.Equal(t, "kept", dest.DeviceID)
}

func TestParsePage(t *testing.T) {
	params, err := ParsePage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, pagination.DefaultLimit, params.Limit)

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	params, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=10&cursor="+cursor, nil))
	require.NoError(t, err)
	require.Equal(t, 10, params.Limit)
	require.Equal(t, cursor, params.Cursor)

	for _, query := range []string{"limit=0", "limit=abc", "limit=1000", "cursor=%%%"} {
		_, err := ParsePage(httptest.NewRequest(http.MethodGet, "/?"+strings.ReplaceAll(query, "%%%", "not-base64!"), nil))
		requireCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?grade=A,B&grade=%20C%20&grade=", nil)
	require.Equal(t, []string{"A", "B", "C"}, QueryList(req, "grade"))
	require.Empty(t, QueryList(req, "missing"))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "hello", SanitizeString("  hello  ", 0))
	require.Equal(t, "ab", SanitizeString("a\x00b", 0))
	require.Equal(t, "line\nnext", SanitizeString("line\nnext", 0))
	require.Equal(t, "héllo", SanitizeString("héllo wörld", 5))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("nope"), "orderId")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = ParseUUIDParam(withParam(""), "orderId")
	requireCode(t, err, pkgerrors.CodeValidation)
}
