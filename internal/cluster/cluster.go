// Package cluster balances upstream document fetches across one or more
// mirrors of the same base location.
package cluster

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Endpoint is one mirror base URL. State fields are guarded by the owning
// cluster's mutex.
type Endpoint struct {
	URL   *url.URL
	Alive bool

	cbFailures       int
	circuitOpenUntil time.Time
	hcFailures       int
	hcSuccesses      int
}

type HealthCheckConfig struct {
	Path               string
	Interval           time.Duration
	Timeout            time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures int
	Cooldown            time.Duration
}

type Cluster interface {
	Name() string
	PickEndpoint() (*Endpoint, error)
	ReportSuccess(ep *Endpoint)
	ReportFailure(ep *Endpoint)
	StartHealthChecks(ctx context.Context, client *http.Client)
}
