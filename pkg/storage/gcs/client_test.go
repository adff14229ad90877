package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testSigner(t *testing.T) *urlSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &urlSigner{email: "signer@example.com", key: key, now: func() time.Time { return fixedNow }}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	return newClient(&http.Client{Transport: rt}, "https://"+storageHost, "bucket", time.Second, testSigner(t))
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func verifySignature(t *testing.T, signer *urlSigner, signed, method, contentType, resource string) {
	t.Helper()
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, storageHost, parsed.Host)
	require.Equal(t, resource, parsed.Path)

	values := parsed.Query()
	require.Equal(t, signer.email, values.Get("GoogleAccessId"))
	require.Equal(t, "1777640400", values.Get("Expires"))

	sig, err := base64.StdEncoding.DecodeString(values.Get("Signature"))
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(canonicalV2(method, contentType, values.Get("Expires"), resource)))
	require.NoError(t, rsa.VerifyPKCS1v15(&signer.key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestSignedReadURL(t *testing.T) {
	client := newTestClient(t, nil)
	object := "labels/order-1/label-1.pdf"

	signed, err := client.SignedReadURL("", object, time.Hour)
	require.NoError(t, err)
	verifySignature(t, client.signer, signed, http.MethodGet, "", "/bucket/"+object)
}

func TestSignedURLIncludesContentType(t *testing.T) {
	client := newTestClient(t, nil)

	signed, err := client.SignedURL("other", "labels/a.pdf", "application/pdf", time.Hour)
	require.NoError(t, err)
	verifySignature(t, client.signer, signed, http.MethodPut, "application/pdf", "/other/labels/a.pdf")
}

func TestSignedURLErrors(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.SignedURL("bucket", "", "application/pdf", time.Minute)
	require.Error(t, err)
	_, err = client.SignedURL("bucket", "object", "", time.Minute)
	require.Error(t, err)
	_, err = client.SignedURL("bucket", "object", "application/pdf", -time.Minute)
	require.Error(t, err)

	noBucket := newClient(&http.Client{}, "https://"+storageHost, "", time.Second, client.signer)
	_, err = noBucket.SignedReadURL("", "object", time.Minute)
	require.ErrorContains(t, err, "bucket name is required")

	unsigned := newClient(&http.Client{}, "https://"+storageHost, "bucket", time.Second, nil)
	_, err = unsigned.SignedReadURL("", "object", time.Minute)
	require.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestUploadSendsMediaRequest(t *testing.T) {
	var captured *http.Request
	var body string
	client := newTestClient(t, func(req *http.Request) *http.Response {
		captured = req
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		return response(http.StatusOK, `{"name":"labels/o/l.pdf"}`)
	})

	require.NoError(t, client.Upload(context.Background(), "", "labels/o/l.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "/upload/storage/v1/b/bucket/o", captured.URL.Path)
	require.Equal(t, "media", captured.URL.Query().Get("uploadType"))
	require.Equal(t, "labels/o/l.pdf", captured.URL.Query().Get("name"))
	require.Equal(t, "application/pdf", captured.Header.Get("Content-Type"))
	require.Equal(t, "%PDF-1.4", body)
}

func TestUploadSurfacesFailure(t *testing.T) {
	client := newTestClient(t, func(*http.Request) *http.Response {
		return response(http.StatusForbidden, "denied")
	})
	err := client.Upload(context.Background(), "", "labels/o/l.pdf", "application/pdf", []byte("x"))
	require.ErrorContains(t, err, "denied")
}

func TestListObjectsFollowsPages(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(req *http.Request) *http.Response {
		calls++
		if req.URL.Query().Get("prefix") != "labels/" {
			t.Errorf("unexpected prefix %q", req.URL.Query().Get("prefix"))
		}
		if req.URL.Query().Get("pageToken") == "" {
			return response(http.StatusOK, `{"items":[{"name":"labels/a/1.pdf","size":"10"}],"nextPageToken":"p2"}`)
		}
		return response(http.StatusOK, `{"items":[{"name":"labels/b/2.pdf","size":"20","contentType":"application/pdf"}]}`)
	})

	objects, err := client.ListObjects(context.Background(), "", "labels/")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []ObjectAttrs{
		{Name: "labels/a/1.pdf", Size: 10},
		{Name: "labels/b/2.pdf", ContentType: "application/pdf", Size: 20},
	}, objects)
}

func TestDeleteObject(t *testing.T) {
	statuses := []int{http.StatusNoContent, http.StatusNotFound, http.StatusInternalServerError}
	for _, status := range statuses {
		client := newTestClient(t, func(req *http.Request) *http.Response {
			if req.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", req.Method)
			}
			if !strings.HasSuffix(req.URL.EscapedPath(), "/o/labels%2Fo%2Fl.pdf") {
				t.Errorf("object name not escaped: %s", req.URL.EscapedPath())
			}
			return response(status, "")
		})
		err := client.DeleteObject(context.Background(), "bucket", "labels/o/l.pdf")
		if status == http.StatusInternalServerError {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err, "status %d", status)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	require.ErrorIs(t, client.Upload(context.Background(), "b", "o", "", nil), errNotInitialized)
	require.Empty(t, client.DefaultBucket())
}

func serviceAccountJSON(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "labels@devicehub.iam.gserviceaccount.com",
		"private_key_id": "key-1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(t, err)
	return raw
}

func TestNewSignerFromServiceAccount(t *testing.T) {
	signer, err := newSigner(serviceAccountJSON(t))
	require.NoError(t, err)
	require.Equal(t, "labels@devicehub.iam.gserviceaccount.com", signer.email)
	require.NotNil(t, signer.key)

	none, err := newSigner(nil)
	require.NoError(t, err)
	require.Nil(t, none)

	userCreds, err := newSigner([]byte(`{"type":"authorized_user","client_id":"x","client_secret":"y","refresh_token":"z"}`))
	require.NoError(t, err)
	require.Nil(t, userCreds)
}

func TestCredentialsJSONPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	raw, err := credentialsJSON(config.GCPConfig{CredentialsJSON: `{"from":"inline"}`, ApplicationCredentials: path})
	require.NoError(t, err)
	require.JSONEq(t, `{"from":"inline"}`, string(raw))

	raw, err = credentialsJSON(config.GCPConfig{ApplicationCredentials: path})
	require.NoError(t, err)
	require.JSONEq(t, `{"from":"file"}`, string(raw))

	raw, err = credentialsJSON(config.GCPConfig{})
	require.NoError(t, err)
	require.Nil(t, raw)

	_, err = credentialsJSON(config.GCPConfig{ApplicationCredentials: filepath.Join(t.TempDir(), "missing.json")})
	require.True(t, errors.Is(err, os.ErrNotExist))
}
