package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zotairo/zotairo-server/internal/http/response"
	"github.com/zotairo/zotairo-server/internal/ratelimit"
)

const codeRateLimited = "RATE_LIMITED"

// NewQARateLimiter allows perMinute LLM calls per client, with a burst of the same size.
// Zero or negative disables limiting.
func NewQARateLimiter(perMinute int) *ratelimit.KeyedRateLimiter {
	rps := float64(perMinute) / time.Minute.Seconds()
	return ratelimit.New(rps, max(perMinute, 1))
}

// isQARoute matches the endpoints that forward to a paid LLM provider.
func isQARoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return strings.HasSuffix(r.URL.Path, "/chat") || strings.HasSuffix(r.URL.Path, "/process-pdf")
}

// qaRateLimit rejects QA requests over the per-client budget with 429.
func (s *Server) qaRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.QALimiter == nil || !isQARoute(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		if !s.opts.QALimiter.Allow(key) {
			s.logger.Warn("qa rate limit exceeded", "ip", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests, codeRateLimited, "too many requests, try again later", nil, s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. middleware.RealIP has already
// applied X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
