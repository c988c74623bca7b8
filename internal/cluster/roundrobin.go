package cluster

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"framegate/internal/metrics"
)

var (
	ErrNoEndpoints      = errors.New("cluster has no endpoints")
	ErrNoAliveEndpoints = errors.New("cluster has no alive endpoints")
)

type roundRobin struct {
	mu        sync.Mutex
	name      string
	endpoints []*Endpoint
	idx       int
	now       func() time.Time

	healthCfg *HealthCheckConfig
	cbCfg     *CircuitBreakerConfig
}

func NewRoundRobinCluster(name string, endpoints []*Endpoint, hc *HealthCheckConfig, cb *CircuitBreakerConfig) Cluster {
	for _, ep := range endpoints {
		ep.Alive = true
	}

	return &roundRobin{
		name:      name,
		endpoints: endpoints,
		now:       time.Now,
		healthCfg: hc,
		cbCfg:     cb,
	}
}

func (c *roundRobin) Name() string {
	return c.name
}

// PickEndpoint skips endpoints marked dead by health checks and endpoints
// whose circuit is still open.
func (c *roundRobin) PickEndpoint() (*Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.endpoints)
	if n == 0 {
		return nil, ErrNoEndpoints
	}

	now := c.now()

	for i := 0; i < n; i++ {
		ep := c.endpoints[c.idx]
		c.idx = (c.idx + 1) % n

		if !ep.Alive {
			continue
		}

		if !ep.circuitOpenUntil.IsZero() {
			if now.Before(ep.circuitOpenUntil) {
				continue
			}
			ep.circuitOpenUntil = time.Time{}
			ep.cbFailures = 0
		}
		return ep, nil
	}

	return nil, ErrNoAliveEndpoints
}

func (c *roundRobin) ReportSuccess(ep *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep.cbFailures = 0
}

func (c *roundRobin) ReportFailure(ep *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ep.cbFailures++
	if c.cbCfg != nil && c.cbCfg.ConsecutiveFailures > 0 && ep.cbFailures >= c.cbCfg.ConsecutiveFailures {
		ep.circuitOpenUntil = c.now().Add(c.cbCfg.Cooldown)
	}
}

func (c *roundRobin) StartHealthChecks(ctx context.Context, client *http.Client) {
	if c.healthCfg == nil {
		return
	}

	hc := withHealthDefaults(*c.healthCfg)
	ticker := time.NewTicker(hc.Interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runHealthChecks(ctx, client, hc)
			}
		}
	}()
}

func withHealthDefaults(hc HealthCheckConfig) HealthCheckConfig {
	if hc.Interval <= 0 {
		hc.Interval = 30 * time.Second
	}
	if hc.Timeout <= 0 {
		hc.Timeout = 5 * time.Second
	}
	if hc.UnhealthyThreshold <= 0 {
		hc.UnhealthyThreshold = 3
	}
	if hc.HealthyThreshold <= 0 {
		hc.HealthyThreshold = 1
	}
	return hc
}

func (c *roundRobin) runHealthChecks(ctx context.Context, client *http.Client, hc HealthCheckConfig) {
	c.mu.Lock()
	endpoints := append([]*Endpoint(nil), c.endpoints...)
	c.mu.Unlock()

	for _, ep := range endpoints {
		target := ep.URL.JoinPath(hc.Path)

		hctx, cancel := context.WithTimeout(ctx, hc.Timeout)
		req, err := http.NewRequestWithContext(hctx, http.MethodHead, target.String(), nil)
		if err != nil {
			cancel()
			continue
		}

		resp, err := client.Do(req)
		ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 400
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel()

		c.mu.Lock()
		if ok {
			ep.hcFailures = 0
			ep.hcSuccesses++
			if ep.hcSuccesses >= hc.HealthyThreshold {
				ep.Alive = true
			}
		} else {
			ep.hcSuccesses = 0
			ep.hcFailures++
			if ep.hcFailures >= hc.UnhealthyThreshold {
				ep.Alive = false
			}
		}
		c.mu.Unlock()
	}

	unhealthy := 0
	c.mu.Lock()
	for _, ep := range c.endpoints {
		if !ep.Alive {
			unhealthy++
		}
	}
	c.mu.Unlock()

	metrics.SetClusterUnhealthy(c.name, float64(unhealthy))
}
