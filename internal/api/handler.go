// Package api renders the public REST surface. Handlers only project fields
// out of the cached documents; fetching and caching live in datacache.
package api

import (
	"context"
	"fmt"
	"net/http"

	"framegate/internal/datacache"
	"framegate/internal/document"
	"framegate/internal/logging"
	"framegate/internal/registry"
)

// GameData is the part of the data cache the handlers need.
type GameData interface {
	GameData(ctx context.Context, gameID string) (*datacache.Bundle, error)
}

// Fields read from the details document and what they default to.
var (
	fieldFullName                = document.Scalar("fullName")
	fieldAbbrName                = document.Scalar("abbrName")
	fieldCharacterList           = document.List("characterList")
	fieldCharacterStates         = document.List("characterStates")
	fieldSpecificCharacterStates = document.Object("specificCharacterStates")
	fieldUniversalDataPoints     = document.Object("universalDataPoints")
	fieldStatsPoints             = document.Object("statsPoints")
	fieldMoves                   = document.Object("moves")
)

type Handler struct {
	registry *registry.Registry
	data     GameData
	logger   logging.Logger
}

func NewHandler(reg *registry.Registry, data GameData, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{registry: reg, data: data, logger: logger}
}

// Route is one endpoint. Cacheable routes go through the response cache.
type Route struct {
	Pattern   string
	Handler   http.HandlerFunc
	Cacheable bool
}

func (h *Handler) Routes() []Route {
	return []Route{
		{Pattern: "GET /games", Handler: h.ListGames, Cacheable: true},
		{Pattern: "GET /games/{gameId}", Handler: h.GetGame, Cacheable: true},
		{Pattern: "GET /games/{gameId}/characters", Handler: h.ListCharacters, Cacheable: true},
		{Pattern: "GET /games/{gameId}/characters/{characterName}/moves", Handler: h.GetCharacterMoves, Cacheable: true},
	}
}

type gameSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	AbbrName string `json:"abbrName"`
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	games := h.registry.List()
	out := make([]gameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, gameSummary{ID: g.ID, FullName: g.FullName, AbbrName: g.AbbrName})
	}
	writeJSON(w, http.StatusOK, out)
}

type gameDetails struct {
	ID                      string `json:"id"`
	FullName                any    `json:"fullName"`
	AbbrName                any    `json:"abbrName"`
	CharacterList           any    `json:"characterList"`
	CharacterStates         any    `json:"characterStates"`
	SpecificCharacterStates any    `json:"specificCharacterStates"`
	UniversalDataPoints     any    `json:"universalDataPoints"`
	StatsPoints             any    `json:"statsPoints"`
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, bundle, ok := h.load(w, r)
	if !ok {
		return
	}
	d := bundle.Details

	writeJSON(w, http.StatusOK, gameDetails{
		ID:                      game.ID,
		FullName:                orDefault(d.Get(fieldFullName), game.FullName),
		AbbrName:                orDefault(d.Get(fieldAbbrName), game.AbbrName),
		CharacterList:           d.Get(fieldCharacterList),
		CharacterStates:         d.Get(fieldCharacterStates),
		SpecificCharacterStates: d.Get(fieldSpecificCharacterStates),
		UniversalDataPoints:     d.Get(fieldUniversalDataPoints),
		StatsPoints:             d.Get(fieldStatsPoints),
	})
}

func (h *Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	_, bundle, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bundle.Details.Get(fieldCharacterList))
}

type characterMoves struct {
	GameID    string `json:"gameId"`
	Character string `json:"character"`
	Moves     any    `json:"moves"`
}

func (h *Handler) GetCharacterMoves(w http.ResponseWriter, r *http.Request) {
	game, bundle, ok := h.load(w, r)
	if !ok {
		return
	}

	name := r.PathValue("characterName")
	char, found := bundle.FrameData.Child(name)
	if !found {
		h.writeError(w, r, fmt.Errorf("%w: %q in %s", ErrCharacterNotFound, name, game.ID))
		return
	}

	writeJSON(w, http.StatusOK, characterMoves{
		GameID:    game.ID,
		Character: name,
		Moves:     char.Get(fieldMoves),
	})
}

// load resolves {gameId} against the registry and fetches its bundle. On
// failure it has already written the error response.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (registry.GameConfig, *datacache.Bundle, bool) {
	id := r.PathValue("gameId")
	game, ok := h.registry.Lookup(id)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: %q", datacache.ErrUnknownGame, id))
		return registry.GameConfig{}, nil, false
	}

	bundle, err := h.data.GameData(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return registry.GameConfig{}, nil, false
	}
	return game, bundle, true
}

func orDefault(v any, def string) any {
	if v == nil {
		return def
	}
	return v
}
