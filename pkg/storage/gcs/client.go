// Package gcs stores shipping label PDFs in Google Cloud Storage through the
// JSON API and hands out signed download links.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

const (
	storageHost    = "storage.googleapis.com"
	defaultTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
	maxErrorBody   = 512
)

var errNotInitialized = errors.New("gcs client not initialized")

type Client struct {
	http   *resty.Client
	bucket string
	signer *urlSigner
}

// ObjectAttrs is the subset of object metadata returned by listings.
type ObjectAttrs struct {
	Name        string
	ContentType string
	Size        int64
}

// NewClient authenticates with the configured credentials (inline JSON, key
// file, then application defaults) and checks bucket access before returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	raw, err := credentialsJSON(gcp)
	if err != nil {
		return nil, err
	}
	creds, err := loadCredentials(ctx, raw)
	if err != nil {
		return nil, err
	}
	signer, err := newSigner(raw)
	if err != nil {
		return nil, err
	}

	authed := oauth2.NewClient(context.WithoutCancel(ctx), creds.TokenSource)
	client := newClient(authed, "https://"+storageHost, bucket, cfg.RequestTimeout, signer)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check: %w", err)
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{"bucket": bucket, "signing": signer != nil})
		if signer == nil {
			logg.Warn(logCtx, "gcs client has no service account key; signed urls disabled")
		}
		logg.Info(logCtx, "gcs client ready")
	}
	return client, nil
}

func newClient(httpClient *http.Client, baseURL, bucket string, timeout time.Duration, signer *urlSigner) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:   resty.NewWithClient(httpClient).SetBaseURL(baseURL).SetTimeout(timeout),
		bucket: bucket,
		signer: signer,
	}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Close is a no-op; the HTTP transport is shared.
func (c *Client) Close() error { return nil }

// Ping lists at most one object, which needs storage.objects.list on the
// default bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("bucket", c.bucket).
		SetQueryParam("maxResults", "1").
		Get("/storage/v1/b/{bucket}/o")
	return checkResponse("ping", resp, err)
}

// Upload writes body to object, replacing any existing object.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, body []byte) error {
	bucket, err := c.target(bucket, object)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("bucket", bucket).
		SetQueryParams(map[string]string{"uploadType": "media", "name": object}).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post("/upload/storage/v1/b/{bucket}/o")
	return checkResponse("upload", resp, err)
}

type listPage struct {
	Items []struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Size        string `json:"size"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListObjects returns every object under prefix, following page tokens.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectAttrs, error) {
	bucket, err := c.resolveBucket(bucket)
	if err != nil {
		return nil, err
	}

	var objects []ObjectAttrs
	token := ""
	for {
		req := c.http.R().SetContext(ctx).SetPathParam("bucket", bucket)
		if prefix != "" {
			req.SetQueryParam("prefix", prefix)
		}
		if token != "" {
			req.SetQueryParam("pageToken", token)
		}
		resp, err := req.Get("/storage/v1/b/{bucket}/o")
		if err := checkResponse("list", resp, err); err != nil {
			return nil, err
		}

		var page listPage
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, fmt.Errorf("decode gcs listing: %w", err)
		}
		for _, item := range page.Items {
			size, _ := strconv.ParseInt(item.Size, 10, 64)
			objects = append(objects, ObjectAttrs{Name: item.Name, ContentType: item.ContentType, Size: size})
		}
		if page.NextPageToken == "" {
			return objects, nil
		}
		token = page.NextPageToken
	}
}

// DeleteObject removes object; an object that is already gone counts as
// deleted.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	bucket, err := c.target(bucket, object)
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"bucket": bucket, "object": object}).
		Delete("/storage/v1/b/{bucket}/o/{object}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return checkResponse("delete", resp, err)
}

// SignedURL permits a PUT of contentType until the TTL elapses.
func (c *Client) SignedURL(bucket, object, contentType string, ttl time.Duration) (string, error) {
	if contentType == "" {
		return "", errors.New("content type is required")
	}
	bucket, err := c.resolveBucket(bucket)
	if err != nil {
		return "", err
	}
	return c.signerOrNil().sign(http.MethodPut, contentType, bucket, object, ttl)
}

// SignedReadURL permits a GET until the TTL elapses.
func (c *Client) SignedReadURL(bucket, object string, ttl time.Duration) (string, error) {
	bucket, err := c.resolveBucket(bucket)
	if err != nil {
		return "", err
	}
	return c.signerOrNil().sign(http.MethodGet, "", bucket, object, ttl)
}

func (c *Client) signerOrNil() *urlSigner {
	if c == nil {
		return nil
	}
	return c.signer
}

func (c *Client) resolveBucket(bucket string) (string, error) {
	if bucket == "" && c != nil {
		bucket = c.bucket
	}
	if bucket == "" {
		return "", errors.New("bucket name is required")
	}
	return bucket, nil
}

func (c *Client) target(bucket, object string) (string, error) {
	if c == nil || c.http == nil {
		return "", errNotInitialized
	}
	if object == "" {
		return "", errors.New("object name is required")
	}
	return c.resolveBucket(bucket)
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("gcs %s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	body := strings.TrimSpace(resp.String())
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if body == "" {
		return fmt.Errorf("gcs %s failed: %s", op, resp.Status())
	}
	return fmt.Errorf("gcs %s failed: %s: %s", op, resp.Status(), body)
}
