package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/comment-pulse/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRateLimit applies when no rate is configured
const DefaultRateLimit = "10-S"

// rateLimitPrefix namespaces limiter keys in the shared Redis
const rateLimitPrefix = "commentpulse:ratelimit"

// RateLimit returns ulule/limiter middleware backed by Redis. rate uses the
// limiter format, e.g. "10-S" or "600-M". Callers are keyed by RateLimitKey,
// so it must run after Auth to limit per user.
func RateLimit(client redis.UniversalClient, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRateLimit
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	instance := limiter.New(store, parsed)
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(RateLimitKey))
	return mw.Handler, nil
}

// RateLimitKey identifies the caller: the authenticated user when known,
// otherwise the client IP
func RateLimitKey(r *http.Request) string {
	if user := request.UserFromContext(r); user != nil && user.ID != "" {
		return "user:" + user.ID
	}
	return "ip:" + request.ClientIP(r)
}
