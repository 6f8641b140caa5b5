package guards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
)

const rateLimitScopePrefix = "panic:"

type limiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimiter caps how many panics a single phone can raise per window.
type RateLimiter struct {
	store  limiterStore
	max    int64
	window time.Duration
}

// NewRateLimiter builds the per-phone submission limiter.
func NewRateLimiter(store limiterStore, max int, window time.Duration) (*RateLimiter, error) {
	if store == nil {
		return nil, errors.New("redis store is required")
	}
	if max <= 0 {
		return nil, fmt.Errorf("rate limit max must be positive, got %d", max)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	return &RateLimiter{store: store, max: int64(max), window: window}, nil
}

// Allow consumes one submission slot for the phone. Returns a rate-limit
// error once the window budget is spent.
func (g *RateLimiter) Allow(ctx context.Context, phone string) error {
	scope := rateLimitScopePrefix + strings.TrimSpace(phone)
	allowed, count, err := g.store.FixedWindowAllow(ctx, scope, g.max, g.window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many panic requests for this phone").
			WithDetails(map[string]any{
				"window_seconds": int(g.window.Seconds()),
				"max_requests":   g.max,
				"count":          count,
			})
	}
	return nil
}

type recentStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	RecentPanicsKey(phone string) string
}

type recentEntry struct {
	RequestID uuid.UUID `json:"request_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	At        time.Time `json:"at"`
}

// DuplicateGuard rejects repeat submissions from the same phone close to a
// location it already panicked from inside the window. The recent list lives
// in Redis under the phone's key and ages out with the window TTL.
type DuplicateGuard struct {
	store   recentStore
	window  time.Duration
	radiusM float64
	now     func() time.Time
}

// NewDuplicateGuard builds the proximity duplicate guard.
func NewDuplicateGuard(store recentStore, window time.Duration, radiusM float64) (*DuplicateGuard, error) {
	if store == nil {
		return nil, errors.New("redis store is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("duplicate window must be positive, got %s", window)
	}
	if radiusM <= 0 {
		return nil, fmt.Errorf("duplicate radius must be positive, got %v", radiusM)
	}
	return &DuplicateGuard{store: store, window: window, radiusM: radiusM, now: time.Now}, nil
}

// Check fails when the phone already raised a panic within the radius during
// the window. A missing or corrupt recent list never blocks an emergency.
func (g *DuplicateGuard) Check(ctx context.Context, phone string, point geo.Point) error {
	entries, err := g.load(ctx, phone)
	if err != nil {
		return err
	}
	cutoff := g.now().Add(-g.window)
	for _, entry := range entries {
		if entry.At.Before(cutoff) {
			continue
		}
		distance := geo.HaversineM(entry.Lat, entry.Lng, point.Lat, point.Lng)
		if distance <= g.radiusM {
			return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "a recent panic was already raised near this location").
				WithDetails(map[string]any{
					"conflicting_request_id": entry.RequestID.String(),
					"distance_m":             distance,
					"window_seconds":         int(g.window.Seconds()),
				})
		}
	}
	return nil
}

// Remember records an accepted submission, keyed by its request id, so later
// duplicates can name the request they conflict with.
func (g *DuplicateGuard) Remember(ctx context.Context, phone string, requestID uuid.UUID, point geo.Point) error {
	entries, err := g.load(ctx, phone)
	if err != nil {
		return err
	}
	now := g.now()
	cutoff := now.Add(-g.window)
	kept := make([]recentEntry, 0, len(entries)+1)
	for _, entry := range entries {
		if entry.At.Before(cutoff) {
			continue
		}
		kept = append(kept, entry)
	}
	kept = append(kept, recentEntry{RequestID: requestID, Lat: point.Lat, Lng: point.Lng, At: now})

	payload, err := json.Marshal(kept)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal recent panics")
	}
	key := g.store.RecentPanicsKey(phone)
	if err := g.store.Set(ctx, key, string(payload), g.window); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store recent panics")
	}
	return nil
}

func (g *DuplicateGuard) load(ctx context.Context, phone string) ([]recentEntry, error) {
	key := g.store.RecentPanicsKey(phone)
	raw, err := g.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent panics")
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []recentEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// Corrupt state should not block an emergency; treat as empty.
		return nil, nil
	}
	return entries, nil
}
