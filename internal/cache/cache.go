// Package cache stores rendered HTTP responses for the response-cache
// middleware. It knows nothing about games; keys are opaque request keys.
package cache

import (
	"context"
	"net/http"
	"time"
)

type CachedResponse struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// Expired reports whether the entry is past its expiry at now. A zero
// ExpiresAt never expires.
func (r *CachedResponse) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Cache implementations treat backend failures as misses; a broken cache
// must never fail a request.
type Cache interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, resp *CachedResponse)
	Delete(ctx context.Context, key string)
	Purge(ctx context.Context)
}
