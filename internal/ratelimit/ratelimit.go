package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/kasirkita/backend-kasir/internal/common"
)

// KeyFunc derives the rate limit bucket for a request. The default
// buckets by authenticated cashier, falling back to the client IP.
type KeyFunc func(r *http.Request) string

// DefaultKey prefers the cashier identity over the network address so
// registers behind one NAT do not throttle each other.
func DefaultKey(r *http.Request) string {
	if cashier, ok := common.CashierFromContext(r.Context()); ok && cashier.ID != "" {
		return "cashier:" + cashier.ID
	}
	return "ip:" + common.ClientIP(r)
}

// Middleware enforces a request rate per bucket, backed by Redis so
// the limit holds across API replicas.
type Middleware struct {
	limiter *limiter.Limiter
	key     KeyFunc
	logger  zerolog.Logger
}

// New builds the middleware from the shared Redis client. requests is
// the allowance per period.
func New(client *redis.Client, requests int64, period time.Duration, key KeyFunc, logger zerolog.Logger) (*Middleware, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
	if err != nil {
		return nil, err
	}
	if key == nil {
		key = DefaultKey
	}
	return &Middleware{
		limiter: limiter.New(store, limiter.Rate{Period: period, Limit: requests}),
		key:     key,
		logger:  logger,
	}, nil
}

// Handler implements the chi middleware contract. Limiter outages fail
// open: throttling is protection, not a dependency.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lctx, err := m.limiter.Get(r.Context(), m.key(r))
		if err != nil {
			m.logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := lctx.Reset - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "terlalu banyak permintaan, coba lagi nanti", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
