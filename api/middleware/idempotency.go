package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/devicehub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/devicehub-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255

	standardReplayTTL = 24 * time.Hour
	moneyReplayTTL    = 7 * 24 * time.Hour

	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = 2 * time.Minute
)

// idempotentRoute matches POST paths of the form prefix + {id} + suffix.
// An empty suffix means the path must equal prefix exactly.
type idempotentRoute struct {
	prefix string
	suffix string
	ttl    time.Duration
}

func (r idempotentRoute) matches(path string) bool {
	if r.suffix == "" {
		return path == r.prefix
	}
	if !strings.HasPrefix(path, r.prefix) || !strings.HasSuffix(path, r.suffix) {
		return false
	}
	return len(path) > len(r.prefix)+len(r.suffix)
}

var idempotentRoutes = []idempotentRoute{
	{prefix: "/api/v1/offers", ttl: standardReplayTTL},
	{prefix: "/api/v1/orders/", suffix: "/re-offer/respond", ttl: standardReplayTTL},
	{prefix: "/api/v1/admin/orders/", suffix: "/re-offer", ttl: standardReplayTTL},
	{prefix: "/api/v1/admin/orders/", suffix: "/labels", ttl: standardReplayTTL},
	{prefix: "/api/v1/admin/inventory/restock", ttl: standardReplayTTL},
	{prefix: "/api/v1/offers/", suffix: "/checkout", ttl: moneyReplayTTL},
	{prefix: "/api/v1/orders/", suffix: "/payment-intent", ttl: moneyReplayTTL},
	{prefix: "/api/v1/admin/orders/", suffix: "/complete", ttl: moneyReplayTTL},
	{prefix: "/api/v1/admin/orders/", suffix: "/cancel", ttl: moneyReplayTTL},
}

// replayTTL reports how long a response on path stays replayable. Only POST
// routes participate.
func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(path) {
			return route.ttl, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	BodyHash    string `json:"body_hash"`
}

// Idempotency replays the first response recorded for an Idempotency-Key on
// mutating routes. A key reused with a different body is rejected, and a key
// whose first request is still running answers 409. Server errors are not
// recorded so the client can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		if logg == nil {
			logg = logger.Nop()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Group middleware runs before chi resolves the full pattern, so the
			// concrete path is tried first.
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok {
				ttl, ok = replayTTL(r.Method, resolvedPattern(r))
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			bodyHash := digest(body)

			key := store.IdempotencyKey(strings.Join([]string{actorScope(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			pending, _ := json.Marshal(storedResponse{Pending: true, BodyHash: bodyHash})
			claimed, err := store.SetNX(ctx, key, string(pending), pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(w, r, store, key, bodyHash, logg)
				return
			}

			capture := &responseCapture{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			if err := store.Del(ctx, key); err != nil {
				logg.Error(ctx, "idempotency.release_failed", err)
				return
			}
			if capture.code() >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      capture.code(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    bodyHash,
			})
			if err != nil {
				logg.Error(ctx, "idempotency.encode_failed", err)
				return
			}
			if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, bodyHash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.BodyHash != bodyHash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func resolvedPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// responseCapture tees the response body so it can be stored for replay.
type responseCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}

// actorScope keeps keys from different callers apart; unauthenticated routes
// share the empty scope.
func actorScope(ctx context.Context) string {
	if actor, ok := ActorFrom(ctx); ok {
		return actor.ID.String()
	}
	return ""
}
