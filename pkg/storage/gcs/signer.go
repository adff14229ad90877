package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/google"
)

// ErrSigningUnavailable is returned when the client runs without a service
// account key, for example on metadata-server credentials.
var ErrSigningUnavailable = errors.New("gcs signed urls require service account credentials")

// urlSigner produces V2 signed URLs with a service account key.
type urlSigner struct {
	email string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// newSigner returns nil without error when raw is absent or is not a service
// account key; signing is then unavailable but storage calls still work.
func newSigner(raw []byte) (*urlSigner, error) {
	if raw == nil {
		return nil, nil
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw)
	if err != nil {
		return nil, nil
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(jwtCfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &urlSigner{email: jwtCfg.Email, key: key, now: time.Now}, nil
}

func (s *urlSigner) sign(method, contentType, bucket, object string, ttl time.Duration) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrSigningUnavailable
	}
	if object == "" {
		return "", errors.New("object name is required")
	}
	if ttl <= 0 {
		return "", errors.New("expiry must be positive")
	}

	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	resource := "/" + bucket + "/" + object
	digest := sha256.Sum256([]byte(canonicalV2(method, contentType, expires, resource)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	signed := url.URL{
		Scheme: "https",
		Host:   storageHost,
		Path:   resource,
		RawQuery: url.Values{
			"GoogleAccessId": {s.email},
			"Expires":        {expires},
			"Signature":      {base64.StdEncoding.EncodeToString(sig)},
		}.Encode(),
	}
	return signed.String(), nil
}

// canonicalV2 is the V2 string-to-sign with an empty Content-MD5 line.
func canonicalV2(method, contentType, expires, resource string) string {
	return strings.Join([]string{method, "", contentType, expires, resource}, "\n")
}
