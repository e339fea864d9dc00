package server

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

// KeyExtractor groups requests for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// TrustedProxies holds the peers whose forwarding headers name the real client.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts addresses and CIDR ranges. Invalid entries are logged and skipped.
func ParseTrustedProxies(entries []string) TrustedProxies {
	var proxies TrustedProxies
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			log.Warn().Str("entry", entry).Msg("Ignoring invalid trusted proxy")
			continue
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies
}

func (t TrustedProxies) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// IPKeyExtractor keys requests by client IP. The peer address is used unless the peer is a
// trusted proxy, in which case X-Forwarded-For is walked from the right to the first address
// that is not itself a trusted proxy, falling back to X-Real-IP.
func IPKeyExtractor(trusted TrustedProxies) KeyExtractor {
	return func(r *http.Request) string {
		peer, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			peer = r.RemoteAddr
		}
		if !trusted.contains(peer) {
			return peer
		}

		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop == "" || trusted.contains(hop) {
					continue
				}
				return hop
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}
}

// rateLimiter keeps one token bucket per key.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	window   time.Duration
	clock    clock.Clock
	key      KeyExtractor

	mu          sync.Mutex
	lastCleanup time.Time
}

// newRateLimiter allows requests per window for each key, all of them available as a burst.
func newRateLimiter(requests int, window time.Duration, clk clock.Clock, key KeyExtractor) *rateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		rate:        rate.Limit(float64(requests) / window.Seconds()),
		burst:       requests,
		window:      window,
		clock:       clk,
		key:         key,
		lastCleanup: clk.Now(),
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters whose buckets have refilled, i.e. keys that went quiet.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if now.Sub(rl.lastCleanup) < limiterCleanupInterval {
		return
	}
	rl.lastCleanup = now

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// allow reports whether the request may proceed, and otherwise how long to wait.
func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.clock.Now()
	limiter := rl.getLimiter(key)
	if limiter.AllowN(now, 1) {
		return true, 0
	}

	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now) // Don't actually consume the reservation
	return false, delay
}

// RateLimitMiddleware answers 429 once a client exceeds the limiter's budget.
func (s *Server) RateLimitMiddleware(rl *rateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := rl.key(r)
			if key == "" {
				log.Warn().Str("path", r.URL.Path).Msg("Rate limit: unable to extract key, allowing request")
				next(w, r)
				return
			}

			allowed, delay := rl.allow(key)
			if !allowed {
				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
				w.Header().Set("X-RateLimit-Window", rl.window.String())

				log.Warn().Str("key", key).Str("path", r.URL.Path).Int("retry_after", retryAfter).Msg("Rate limit exceeded")
				s.renderError(w, r, http.StatusTooManyRequests, "Too many sign-in attempts. Please wait a moment and try again.", r.URL.RequestURI())
				return
			}

			next(w, r)
		}
	}
}
