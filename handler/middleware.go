package handler

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const msgRateLimited = "rate limit exceeded, please try again later"

// RateLimitConfig defines the token bucket given to each client IP.
type RateLimitConfig struct {
	// Requests per second. Zero or less disables limiting.
	RPS float64
	// Number of requests that can be made in a single burst.
	Burst int
	// How long an idle client's bucket is remembered.
	TTL time.Duration
	// Most buckets kept at once; the least recently used is evicted first.
	MaxClients uint64
}

const defaultMaxClients = 10000

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	cfg      RateLimitConfig
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter starts the expiry loop of the bucket cache; call Stop to end it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = defaultMaxClients
	}

	limiters := ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](cfg.TTL),
		ttlcache.WithCapacity[string, *rate.Limiter](cfg.MaxClients),
	)
	go limiters.Start()

	return &RateLimiter{
		cfg:      cfg,
		limiters: limiters,
	}
}

// Stop ends the cache expiry loop.
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if rl == nil || rl.cfg.RPS <= 0 {
		return next
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		item, _ := rl.limiters.GetOrSet(clientIP(r), rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
		limiter := item.Value()

		if !limiter.Allow() {
			rw.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			respondErr(r.Context(), rw, http.StatusTooManyRequests, msgRateLimited)
			return
		}

		rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Burst))
		rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		next.ServeHTTP(rw, r)
	})
}

// retryAfter is the whole number of seconds until the next token.
func (rl *RateLimiter) retryAfter() int {
	secs := int(math.Ceil(1 / rl.cfg.RPS))
	if secs < 1 {
		return 1
	}
	return secs
}

// clientIP keys on RemoteAddr, which chi's RealIP rewrites only when the
// router trusts forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
