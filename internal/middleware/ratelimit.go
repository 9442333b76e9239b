package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit caps requests per client IP with a token bucket refilled at
// limit tokens per the given window. Stale entries are dropped on a sweep
// so the map does not grow with every IP ever seen.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	type entry struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var mu sync.Mutex
	entries := make(map[string]*entry)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			mu.Lock()
			now := time.Now()
			if now.Sub(lastSweep) > 3*per {
				for key, e := range entries {
					if now.Sub(e.lastSeen) > 3*per {
						delete(entries, key)
					}
				}
				lastSweep = now
			}
			e, ok := entries[ip]
			if !ok {
				e = &entry{limiter: rate.NewLimiter(rate.Every(per/time.Duration(limit)), limit)}
				entries[ip] = e
			}
			e.lastSeen = now
			allowed := e.limiter.Allow()
			mu.Unlock()

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"rate_limited","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}
	return r.RemoteAddr
}
