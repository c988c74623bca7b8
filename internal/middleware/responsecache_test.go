package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framegate/internal/cache"
)

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"path":%q,"n":%d}`, r.URL.RequestURI(), n)
	})
}

func TestResponseCache_ServesRepeatRequestsFromCache(t *testing.T) {
	var calls atomic.Int32
	store := cache.NewInMemoryCache(10)
	h := Chain(countingHandler(&calls, http.StatusOK),
		RequestID(),
		ResponseCache("GET /games/{gameId}", ResponseCacheConfig{Cache: store, TTL: time.Hour}),
	)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/games/sf6", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(CacheStatusHeader))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/games/sf6", nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(CacheStatusHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.NotEqual(t, first.Header().Get(RequestIDHeader), second.Header().Get(RequestIDHeader),
		"request id belongs to the exchange, not the cached rendering")

	assert.Equal(t, int32(1), calls.Load())

	other := httptest.NewRecorder()
	h.ServeHTTP(other, httptest.NewRequest(http.MethodGet, "/games/ggst", nil))
	assert.Equal(t, "MISS", other.Header().Get(CacheStatusHeader))
	assert.Equal(t, int32(2), calls.Load())
}

func TestResponseCache_KeyIncludesQuery(t *testing.T) {
	var calls atomic.Int32
	h := ResponseCache("GET /games", ResponseCacheConfig{Cache: cache.NewInMemoryCache(10), TTL: time.Hour})(
		countingHandler(&calls, http.StatusOK))

	for _, target := range []string{"/games?a=1", "/games?a=2", "/games?a=1"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestResponseCache_DoesNotStoreErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			h := ResponseCache("r", ResponseCacheConfig{Cache: cache.NewInMemoryCache(10), TTL: time.Hour})(
				countingHandler(&calls, status))

			for i := 0; i < 3; i++ {
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/games/bogus", nil))
				assert.Equal(t, status, rr.Code)
			}
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestResponseCache_SkipsOversizedBodies(t *testing.T) {
	var calls atomic.Int32
	big := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	})
	h := ResponseCache("r", ResponseCacheConfig{Cache: cache.NewInMemoryCache(10), TTL: time.Hour, MaxBodyBytes: 10})(big)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/games/sf6", nil))
		assert.Equal(t, 100, rr.Body.Len(), "the client still gets the full body")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestResponseCache_DisabledOrNonGet(t *testing.T) {
	var calls atomic.Int32
	disabled := ResponseCache("r", ResponseCacheConfig{Cache: cache.NewInMemoryCache(10)})(countingHandler(&calls, http.StatusOK))
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		disabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/games", nil))
		assert.Empty(t, rr.Header().Get(CacheStatusHeader))
	}
	assert.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	enabled := ResponseCache("r", ResponseCacheConfig{Cache: cache.NewInMemoryCache(10), TTL: time.Hour})(countingHandler(&calls, http.StatusOK))
	for i := 0; i < 2; i++ {
		enabled.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil))
	}
	assert.Equal(t, int32(2), calls.Load())
}
