package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(dataCacheMisses.WithLabelValues("sf6"))
	IncDataCacheMiss("sf6")
	if got := testutil.ToFloat64(dataCacheMisses.WithLabelValues("sf6")); got != before+1 {
		t.Fatalf("data cache misses = %v, want %v", got, before+1)
	}

	ObserveUpstreamFetch("raw.githubusercontent.com", "ok", 20*time.Millisecond)
	if got := testutil.ToFloat64(upstreamFetches.WithLabelValues("raw.githubusercontent.com", "ok")); got < 1 {
		t.Fatalf("upstream fetches = %v, want >= 1", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	Init()
	ObserveRequest("GET /games", http.MethodGet, "200", time.Millisecond)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "framegate_http_requests_total") {
		t.Fatal("expected framegate_http_requests_total in metrics output")
	}
}
