package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"weylus/pkg/config"
	"weylus/pkg/errors"
	"weylus/pkg/result"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// maxTrackedClients triggers eviction of idle limiters.
	maxTrackedClients = 1024
	limiterIdleTTL    = 10 * time.Minute
)

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore keeps one token bucket per client IP.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*trackedLimiter
	rate      rate.Limit
	burstSize int
	now       func() time.Time
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*trackedLimiter),
		rate:      r,
		burstSize: burst,
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if t, ok := s.limiters[key]; ok {
		t.lastSeen = now
		return t.limiter
	}
	if len(s.limiters) >= maxTrackedClients {
		for k, t := range s.limiters {
			if now.Sub(t.lastSeen) > limiterIdleTTL {
				delete(s.limiters, k)
			}
		}
	}
	t := &trackedLimiter{limiter: rate.NewLimiter(s.rate, s.burstSize), lastSeen: now}
	s.limiters[key] = t
	return t.limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies per-IP rate
// limiting to the control API.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	rl := cfg.Control.RateLimit
	if !rl.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	store := newRateLimiterStore(rate.Limit(rl.RequestsPerSecond), rl.Burst)

	var globalSem chan struct{}
	if rl.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, rl.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				appErr := errors.NewServiceUnavailableError("too many concurrent requests")
				c.AbortWithStatusJSON(appErr.HTTPStatus, result.Error[struct{}](appErr, appErr.Message))
				return
			}
		}

		limiter := store.getLimiter(clientIP(c.Request))
		if !limiter.Allow() {
			appErr := errors.NewRateLimitError()
			c.AbortWithStatusJSON(appErr.HTTPStatus, result.Error[struct{}](appErr, appErr.Message))
			return
		}
		c.Next()
	}
}
