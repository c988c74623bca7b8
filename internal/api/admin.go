package api

import (
	"context"
	"fmt"
	"net/http"

	"framegate/internal/cache"
	"framegate/internal/datacache"
	"framegate/internal/logging"
	"framegate/internal/registry"
)

// Invalidator is the data cache's manual refresh hook.
type Invalidator interface {
	Invalidate(gameID string) bool
	Purge()
	Games() []string
}

// Admin exposes cache maintenance. It is only mounted when enabled in
// config.
type Admin struct {
	registry  *registry.Registry
	data      Invalidator
	responses cache.Cache
	logger    logging.Logger
}

func NewAdmin(reg *registry.Registry, data Invalidator, responses cache.Cache, logger logging.Logger) *Admin {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Admin{registry: reg, data: data, responses: responses, logger: logger}
}

func (a *Admin) Routes() []Route {
	return []Route{
		{Pattern: "POST /admin/cache/purge", Handler: a.Purge},
		{Pattern: "POST /admin/games/{gameId}/refresh", Handler: a.Refresh},
	}
}

func (a *Admin) Purge(w http.ResponseWriter, r *http.Request) {
	a.data.Purge()
	a.purgeResponses(r.Context())
	a.logger.Info("caches purged")
	writeJSON(w, http.StatusOK, map[string]any{"purged": true})
}

// Refresh drops one game's bundle. Rendered responses are keyed by request
// URI, not by game, so the whole response cache goes with it.
func (a *Admin) Refresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("gameId")
	if _, ok := a.registry.Lookup(id); !ok {
		status, body := statusFor(fmt.Errorf("%w: %q", datacache.ErrUnknownGame, id))
		writeJSON(w, status, body)
		return
	}

	dropped := a.data.Invalidate(id)
	a.purgeResponses(r.Context())
	a.logger.Info("game data invalidated", "game", id, "was_cached", dropped)
	writeJSON(w, http.StatusOK, map[string]any{"gameId": id, "invalidated": dropped})
}

func (a *Admin) purgeResponses(ctx context.Context) {
	if a.responses != nil {
		a.responses.Purge(ctx)
	}
}

// Health reports liveness plus which games are warm.
func Health(data Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"cachedGames": data.Games(),
		})
	}
}
