// Package server assembles framegate from its configuration: the game
// registry, upstream mirrors, the data cache, the response cache and the
// HTTP listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"framegate/internal/api"
	"framegate/internal/cache"
	"framegate/internal/cluster"
	"framegate/internal/config"
	"framegate/internal/datacache"
	"framegate/internal/logging"
	"framegate/internal/metrics"
	"framegate/internal/middleware"
	"framegate/internal/registry"
	"framegate/internal/upstream"
)

type ListenerServer struct {
	Name   string
	Server *http.Server
	TLS    config.TLSConfig
}

// Gateway is a built framegate instance. Close releases the response cache
// backend.
type Gateway struct {
	Listeners []*ListenerServer
	Registry  *registry.Registry
	Store     *datacache.Store
	Responses cache.Cache
	Handler   http.Handler

	closers []io.Closer
}

func (g *Gateway) Close() error {
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type Builder struct {
	cfg    *config.Config
	logger logging.Logger
}

func NewBuilder(cfg *config.Config, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Builder{
		cfg:    cfg,
		logger: logger,
	}
}

// Build wires everything together. ctx bounds the mirror health checks, so
// cancel it on shutdown.
func (b *Builder) Build(ctx context.Context) (*Gateway, error) {
	reg, err := registry.New(b.cfg.Games)
	if err != nil {
		return nil, fmt.Errorf("games: %w", err)
	}

	store, err := b.BuildStore(ctx, reg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{Registry: reg, Store: store}

	responses, closer, err := b.buildResponseCache(ctx)
	if err != nil {
		return nil, err
	}
	gw.Responses = responses
	if closer != nil {
		gw.closers = append(gw.closers, closer)
	}

	gw.Handler, err = b.buildHandler(reg, store, responses)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	gw.Listeners = b.buildListeners(gw.Handler)
	return gw, nil
}

// BuildStore builds the upstream client and the data cache on top of it.
// The CLI uses it on its own for one-off fetches.
func (b *Builder) BuildStore(ctx context.Context, reg *registry.Registry) (*datacache.Store, error) {
	mirrors, err := b.buildCluster(ctx)
	if err != nil {
		return nil, err
	}

	up := b.cfg.Upstream
	client := upstream.NewClient(mirrors, upstream.NewTransport(up.InsecureSkipVerify), upstream.Config{
		Timeout:      up.Timeout,
		MaxBodyBytes: up.MaxBodyBytes,
		UserAgent:    up.UserAgent,
	}, b.logger)

	return datacache.New(reg, client, datacache.Options{
		TTL:    b.cfg.Cache.DataTTL,
		Logger: b.logger,
	}), nil
}

func (b *Builder) buildCluster(ctx context.Context) (cluster.Cluster, error) {
	up := b.cfg.Upstream

	var endpoints []*cluster.Endpoint
	for _, raw := range up.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse upstream base url %q: %w", raw, err)
		}
		endpoints = append(endpoints, &cluster.Endpoint{URL: u})
	}

	var hc *cluster.HealthCheckConfig
	if up.HealthCheck.Enabled {
		hc = &cluster.HealthCheckConfig{
			Path:               up.HealthCheck.Path,
			Interval:           up.HealthCheck.Interval,
			Timeout:            up.HealthCheck.Timeout,
			UnhealthyThreshold: up.HealthCheck.UnhealthyThreshold,
			HealthyThreshold:   up.HealthCheck.HealthyThreshold,
		}
	}

	var cb *cluster.CircuitBreakerConfig
	if up.CircuitBreaker.ConsecutiveFailures > 0 {
		cb = &cluster.CircuitBreakerConfig{
			ConsecutiveFailures: up.CircuitBreaker.ConsecutiveFailures,
			Cooldown:            up.CircuitBreaker.Cooldown,
		}
	}

	cl := cluster.NewRoundRobinCluster("upstream", endpoints, hc, cb)
	if hc != nil {
		client := &http.Client{Transport: upstream.NewTransport(up.InsecureSkipVerify)}
		cl.StartHealthChecks(ctx, client)
	}
	return cl, nil
}

func (b *Builder) buildResponseCache(ctx context.Context) (cache.Cache, io.Closer, error) {
	c := b.cfg.Cache
	switch c.Backend {
	case config.BackendRedis:
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
		}, b.logger)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("response cache: %w", err)
		}
		b.logger.Info("response cache backend ready", "backend", config.BackendRedis, "addr", c.Redis.Addr)
		return rc, rc, nil
	default:
		return cache.NewInMemoryCache(c.MaxEntries), nil, nil
	}
}

func (b *Builder) buildHandler(reg *registry.Registry, store *datacache.Store, responses cache.Cache) (http.Handler, error) {
	rcfg := middleware.ResponseCacheConfig{
		Cache:        responses,
		TTL:          b.cfg.Cache.ResponseTTL,
		MaxBodyBytes: b.cfg.Cache.MaxBodyBytes,
	}

	routes := api.NewHandler(reg, store, b.logger).Routes()
	if b.cfg.Admin.Enabled {
		routes = append(routes, api.NewAdmin(reg, store, responses, b.logger).Routes()...)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /healthz", api.Health(store))
	for _, rt := range routes {
		mws := []middleware.Middleware{middleware.Observe(rt.Pattern, b.logger)}
		if rt.Cacheable {
			mws = append(mws, middleware.ResponseCache(rt.Pattern, rcfg))
		}
		mux.Handle(rt.Pattern, middleware.Chain(rt.Handler, mws...))
	}

	mws := []middleware.Middleware{middleware.Recover(b.logger), middleware.RequestID()}
	if len(b.cfg.Server.IPBlockCIDRs) > 0 {
		ipMw, err := middleware.IPFilter(b.logger, b.cfg.Server.IPBlockCIDRs, b.cfg.Server.TrustProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid ipBlockCIDRs: %w", err)
		}
		mws = append(mws, ipMw)
	}
	return middleware.Chain(mux, mws...), nil
}

func (b *Builder) buildListeners(handler http.Handler) []*ListenerServer {
	srv := b.cfg.Server
	listeners := []*ListenerServer{{
		Name: "default",
		Server: &http.Server{
			Addr:              srv.Address,
			Handler:           handler,
			ReadHeaderTimeout: srv.ReadTimeout,
			ReadTimeout:       srv.ReadTimeout,
			WriteTimeout:      srv.WriteTimeout,
		},
		TLS: srv.TLS,
	}}

	if srv.TLS.Enabled && srv.TLS.RedirectAddress != "" {
		listeners = append(listeners, &ListenerServer{
			Name: "redirect",
			Server: &http.Server{
				Addr:              srv.TLS.RedirectAddress,
				Handler:           httpsRedirectHandler(srv.Address),
				ReadHeaderTimeout: srv.ReadTimeout,
			},
		})
	}
	return listeners
}

func httpsRedirectHandler(targetAddr string) http.Handler {
	port := extractPort(targetAddr)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetURL := *r.URL
		targetURL.Scheme = "https"

		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		if port == "" || port == "443" {
			targetURL.Host = host
		} else {
			targetURL.Host = net.JoinHostPort(host, port)
		}
		http.Redirect(w, r, targetURL.String(), http.StatusMovedPermanently)
	})
}

func extractPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return port
}
