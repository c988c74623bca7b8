package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"framegate/internal/cluster"
	"framegate/internal/document"
	"framegate/internal/logging"
	"framegate/internal/metrics"
)

const (
	// DefaultBaseURL is where the FAT project publishes its constants.
	DefaultBaseURL = "https://raw.githubusercontent.com/D4RKONION/FAT/main/src/js/constants"

	// DefaultTimeout bounds a single document fetch end to end.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps a document body. Frame data files are a few MiB.
	DefaultMaxBodyBytes int64 = 64 << 20

	UserAgent = "framegate (+https://github.com/D4RKONION/FAT)"
)

type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// Client fetches JSON documents from the upstream mirrors. It never retries;
// callers decide what to do with a failure.
type Client struct {
	mirrors      cluster.Cluster
	httpClient   *http.Client
	maxBodyBytes int64
	userAgent    string
	logger       logging.Logger
}

func NewClient(mirrors cluster.Cluster, rt http.RoundTripper, cfg Config, logger logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}
	if rt == nil {
		rt = NewTransport(false)
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Client{
		mirrors:      mirrors,
		httpClient:   &http.Client{Transport: rt, Timeout: cfg.Timeout},
		maxBodyBytes: cfg.MaxBodyBytes,
		userAgent:    cfg.UserAgent,
		logger:       logger,
	}
}

// Fetch resolves path against a mirror and decodes the response as a JSON
// object. Failures are *FetchError values of kind ErrFetchFailure or
// ErrInvalidPayload.
func (c *Client) Fetch(ctx context.Context, path string) (document.Document, error) {
	ep, err := c.mirrors.PickEndpoint()
	if err != nil {
		ferr := fetchFailure(path, 0, err)
		c.logger.Error("upstream unavailable", "cluster", c.mirrors.Name(), "path", path, "err", err)
		return nil, ferr
	}

	target := ep.URL.JoinPath(path)
	url := target.String()
	host := target.Host

	start := time.Now()
	doc, err := c.fetch(ctx, url)
	dur := time.Since(start)

	var ferr *FetchError
	switch {
	case err == nil:
		c.mirrors.ReportSuccess(ep)
		metrics.ObserveUpstreamFetch(host, "ok", dur)
		c.logger.Debug("upstream fetch ok", "url", url, "duration_ms", dur.Milliseconds())
		return doc, nil
	case errors.As(err, &ferr) && errors.Is(ferr, ErrInvalidPayload):
		c.mirrors.ReportSuccess(ep)
		metrics.ObserveUpstreamFetch(host, "invalid_payload", dur)
	default:
		if ferr == nil || ferr.StatusCode == 0 || ferr.StatusCode >= 500 {
			c.mirrors.ReportFailure(ep)
		}
		metrics.ObserveUpstreamFetch(host, "fetch_failure", dur)
	}

	c.logger.Error("upstream fetch failed", "url", url, "duration_ms", dur.Milliseconds(), "err", err)
	return nil, err
}

func (c *Client) fetch(ctx context.Context, url string) (document.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchFailure(url, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetchFailure(url, 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fetchFailure(url, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fetchFailure(url, 0, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, invalidPayload(url, fmt.Errorf("body exceeds %d bytes", c.maxBodyBytes))
	}

	doc, err := document.Parse(body)
	if err != nil {
		return nil, invalidPayload(url, err)
	}
	return doc, nil
}
