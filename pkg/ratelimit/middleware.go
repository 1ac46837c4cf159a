package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	Capacity   int     // Max burst per client IP
	RefillRate float64 // Requests per second per client IP
	BucketTTL  time.Duration
}

// DefaultConfig returns limits suited to login endpoints: 10 requests
// in a burst, refilling at 10 per minute per client IP.
func DefaultConfig() *Config {
	return &Config{
		Capacity:   10,
		RefillRate: 10.0 / 60.0,
		BucketTTL:  1 * time.Hour,
	}
}

// Middleware applies per-IP rate limiting
type Middleware struct {
	config  *Config
	limiter *RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}
	return &Middleware{
		config:  config,
		limiter: NewRateLimiter(config.Capacity, config.RefillRate, config.BucketTTL),
	}
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !m.limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error": "rate_limit_exceeded", "message": "Too many requests. Please try again later."}`)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP address from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
