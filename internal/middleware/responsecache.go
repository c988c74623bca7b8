package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"framegate/internal/cache"
	"framegate/internal/metrics"
)

const CacheStatusHeader = "X-Cache"

// ResponseCacheConfig controls the per-route response cache. A zero TTL
// disables storing.
type ResponseCacheConfig struct {
	Cache        cache.Cache
	TTL          time.Duration
	MaxBodyBytes int64
}

// ResponseCache serves GET requests from c when a fresh rendering of the same
// request URI exists, and stores successful renderings for cfg.TTL. Error
// responses are never stored.
func ResponseCache(route string, cfg ResponseCacheConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg.Cache == nil || cfg.TTL <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := cacheKey(r)

			if cached, ok := cfg.Cache.Get(ctx, key); ok {
				metrics.IncResponseCacheHit(route)
				serveCached(w, cached)
				return
			}
			metrics.IncResponseCacheMiss(route)

			w.Header().Set(CacheStatusHeader, "MISS")
			rec := &recordingWriter{statusWriter: statusWriter{ResponseWriter: w}, limit: cfg.MaxBodyBytes}
			next.ServeHTTP(rec, r)

			if rec.Status() != http.StatusOK || rec.overflow {
				return
			}
			cfg.Cache.Set(ctx, key, &cache.CachedResponse{
				StatusCode: rec.Status(),
				Header:     storableHeader(w.Header()),
				Body:       rec.buf.Bytes(),
				ExpiresAt:  time.Now().Add(cfg.TTL),
			})
		})
	}
}

func cacheKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

func serveCached(w http.ResponseWriter, cached *cache.CachedResponse) {
	h := w.Header()
	for k, values := range cached.Header {
		h[k] = append([]string(nil), values...)
	}
	h.Set(CacheStatusHeader, "HIT")
	h.Set("Content-Length", strconv.Itoa(len(cached.Body)))
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// storableHeader drops headers that belong to a single exchange.
func storableHeader(src http.Header) http.Header {
	dst := src.Clone()
	dst.Del(RequestIDHeader)
	dst.Del(CacheStatusHeader)
	dst.Del("Content-Length")
	dst.Del("Date")
	return dst
}

// recordingWriter writes through and keeps a copy of the body up to limit
// bytes. Past the limit the copy is abandoned, not the response.
type recordingWriter struct {
	statusWriter
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	n, err := w.statusWriter.Write(b)
	if !w.overflow {
		if w.limit > 0 && int64(w.buf.Len()+n) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b[:n])
		}
	}
	return n, err
}
