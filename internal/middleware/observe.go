package middleware

import (
	"net/http"
	"strconv"
	"time"

	"framegate/internal/logging"
	"framegate/internal/metrics"
)

// Observe records metrics and an access log line for every request to route.
func Observe(route string, logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			dur := time.Since(start)
			metrics.ObserveRequest(route, r.Method, strconv.Itoa(sw.Status()), dur)
			logger.Info("request",
				"req_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", sw.Status(),
				"size", sw.size,
				"cache", w.Header().Get(CacheStatusHeader),
				"duration_ms", dur.Milliseconds(),
			)
		})
	}
}
