// Package registry holds the static table of supported games and where their
// documents live upstream.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// GameConfig describes one supported game. Paths are relative to the upstream
// base location.
type GameConfig struct {
	ID            string `yaml:"id"            json:"id"`
	FullName      string `yaml:"fullName"      json:"fullName"`
	AbbrName      string `yaml:"abbrName"      json:"abbrName"`
	DetailsPath   string `yaml:"detailsPath"   json:"detailsPath"`
	FrameDataPath string `yaml:"frameDataPath" json:"frameDataPath"`
}

// Registry is immutable after New.
type Registry struct {
	byID  map[string]GameConfig
	order []string
}

func New(games []GameConfig) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]GameConfig, len(games)),
		order: make([]string, 0, len(games)),
	}
	for i, g := range games {
		if strings.TrimSpace(g.ID) == "" {
			return nil, fmt.Errorf("game %d: empty id", i)
		}
		if _, dup := r.byID[g.ID]; dup {
			return nil, fmt.Errorf("game %q: duplicate id", g.ID)
		}
		if g.DetailsPath == "" || g.FrameDataPath == "" {
			return nil, fmt.Errorf("game %q: details and frame data paths are required", g.ID)
		}
		r.byID[g.ID] = g
		r.order = append(r.order, g.ID)
	}
	if len(r.order) == 0 {
		return nil, errors.New("registry: no games configured")
	}
	return r, nil
}

// MustNew is New for tables known to be valid at build time.
func MustNew(games []GameConfig) *Registry {
	r, err := New(games)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(id string) (GameConfig, bool) {
	g, ok := r.byID[id]
	return g, ok
}

// List returns the games in registration order.
func (r *Registry) List() []GameConfig {
	out := make([]GameConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

// DefaultGames is the table served when the config does not override it.
func DefaultGames() []GameConfig {
	return []GameConfig{
		{
			ID:            "sf6",
			FullName:      "Street Fighter 6",
			AbbrName:      "SF6",
			DetailsPath:   "gamedetails/SF6GameDetails.json",
			FrameDataPath: "framedata/SF6FrameData.json",
		},
		{
			ID:            "ggst",
			FullName:      "Guilty Gear Strive",
			AbbrName:      "GGST",
			DetailsPath:   "gamedetails/GGSTGameDetails.json",
			FrameDataPath: "framedata/GGSTFrameData.json",
		},
		{
			ID:            "2xko",
			FullName:      "2XKO",
			AbbrName:      "2XKO",
			DetailsPath:   "gamedetails/2XKOGameDetails.json",
			FrameDataPath: "framedata/2XKOFrameData.json",
		},
	}
}

func Default() *Registry {
	return MustNew(DefaultGames())
}
