package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/resqlink/resqlink-backend/api/responses"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	pkgredis "github.com/resqlink/resqlink-backend/pkg/redis"
)

// A replayed panic submission or assignment claim must return the original
// response instead of raising a second dispatch, so those keys live a full
// week. Operator retries of status and provisioning calls only need a day.
const (
	operatorRetryTTL = 24 * time.Hour
	intakeReplayTTL  = 7 * 24 * time.Hour
)

// idempotentRoutes maps "METHOD pattern" to the replay window. Everything
// else passes through untouched.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/panics":                   intakeReplayTTL,
	http.MethodPost + " /api/v1/assignments":              intakeReplayTTL,
	http.MethodPost + " /api/v1/panics/{panicId}/status":  operatorRetryTTL,
	http.MethodPost + " /api/v1/firms/{firmId}/providers": operatorRetryTTL,
}

// storedResponse is what a replay sends back: the first response verbatim,
// plus the hash that ties the key to the original request body.
type storedResponse struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency enforces the Idempotency-Key contract on the intake routes.
// The key is scoped per caller, so two members reusing "1" never collide.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if headerKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := hashBody(body)
			key := store.IdempotencyKey(callerScope(r), headerKey)

			stored, err := store.Get(r.Context(), key)
			if err != nil && !errors.Is(err, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if stored != "" {
				replayStored(r.Context(), logg, w, stored, bodyHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			persistResponse(r.Context(), logg, store, key, capture, bodyHash, ttl)
		})
	}
}

// replayStored writes the recorded first response, unless the caller reused
// the key with a different body.
func replayStored(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, stored, bodyHash string) {
	var record storedResponse
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != bodyHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// persistResponse records the handler's response for later replays. Storage
// failures only log: the caller already has their response, and a lost
// record merely costs one replay.
func persistResponse(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string, capture *responseCapture, bodyHash string, ttl time.Duration) {
	record := storedResponse{
		Status:      capture.statusOr(http.StatusOK),
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		RequestHash: bodyHash,
	}
	if ct := capture.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		logError(ctx, logg, "marshal idempotency record", err)
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

// callerScope pins the key to the authenticated identity and route, so keys
// never leak responses across members, groups, or firms.
func callerScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		GroupIDFromContext(r.Context()),
		FirmIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	// chi reports nested handler patterns with a trailing slash.
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOr(fallback int) int {
	if r.status == 0 {
		return fallback
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
