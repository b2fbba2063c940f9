// Package ratelimit throttles callers per action with token buckets.
package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"insights/internal/auth"
	"insights/internal/logger"
	"insights/internal/web"
	"insights/pkg/config"
)

// maxBuckets caps the tracked callers. Callers are keyed by address or device id, both
// chosen by the client.
const maxBuckets = 10000

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one bucket per action and caller. A bucket left alone long enough to
// refill completely is dropped, a new one behaves the same.
type Limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	max       int
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// New returns nil when the config does not enable rate limiting.
func New(cfg config.RateLimitConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = int(math.Ceil(cfg.RequestsPerSecond))
	}
	return &Limiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		idle:    time.Duration(float64(burst) / cfg.RequestsPerSecond * float64(time.Second)),
		max:     maxBuckets,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// caller identifies who is asking: the token, else the device, else the client address.
func caller(token *auth.Token, device *auth.Device, r *http.Request) string {
	switch {
	case token != nil:
		return "user:" + token.Name
	case device != nil:
		return "device:" + device.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// sweep drops the buckets idle for longer than a full refill.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *Limiter) evictOldest() {
	var oldest string
	var seen time.Time
	for key, b := range l.buckets {
		if oldest == "" || b.seen.Before(seen) {
			oldest, seen = key, b.seen
		}
	}
	delete(l.buckets, oldest)
}

// allow takes a token from the bucket of key.
func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.max {
			l.sweep(now)
		}
		if len(l.buckets) >= l.max {
			l.evictOldest()
		}
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Check returns a 429 response when the caller exhausted its bucket for action.
func (l *Limiter) Check(action string, token *auth.Token, device *auth.Device, r *http.Request) *web.Response {
	key := action + ":" + caller(token, device, r)
	if l.allow(key) {
		return nil
	}
	logger.Warn("rate limit exceeded for %s", key)
	body, _ := json.Marshal(struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Context []string `json:"context"`
	}{http.StatusTooManyRequests, "Too many requests", []string{action}})
	res := web.NewResponse(http.StatusTooManyRequests, "application/json; charset=utf-8", body)
	res.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(l.limit)))))
	return res
}
