// Package datacache loads each game's details and frame data documents from
// upstream once and keeps them in memory.
//
// A game either has a complete bundle cached or has none: both documents are
// fetched before anything is published, and a failure of either leaves the
// store untouched. Concurrent misses for the same game share a single fetch.
package datacache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"framegate/internal/document"
	"framegate/internal/logging"
	"framegate/internal/metrics"
	"framegate/internal/registry"
)

var ErrUnknownGame = errors.New("unknown game")

// Fetcher retrieves one upstream document by its path relative to the
// upstream base location.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (document.Document, error)
}

// Bundle is immutable once published.
type Bundle struct {
	GameID    string
	Details   document.Document
	FrameData document.Document
	FetchedAt time.Time
}

type Options struct {
	// TTL bounds how long a bundle is served before the next request refetches
	// it. Zero keeps bundles for the life of the process.
	TTL    time.Duration
	Logger logging.Logger
}

type Store struct {
	registry *registry.Registry
	fetcher  Fetcher
	ttl      time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*Bundle

	group singleflight.Group
}

func New(reg *registry.Registry, fetcher Fetcher, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	return &Store{
		registry: reg,
		fetcher:  fetcher,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		now:      time.Now,
		entries:  make(map[string]*Bundle),
	}
}

// GameData returns the bundle for gameID, fetching it on first use.
//
// Errors are ErrUnknownGame for ids missing from the registry, or the
// fetcher's error for the first document that failed.
func (s *Store) GameData(ctx context.Context, gameID string) (*Bundle, error) {
	if b, ok := s.cached(gameID); ok {
		metrics.IncDataCacheHit(gameID)
		return b, nil
	}

	game, ok := s.registry.Lookup(gameID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameID)
	}

	// Waiters share the leader's result. The fetch itself is detached from the
	// caller so one client going away does not fail everyone else; the
	// fetcher's timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(gameID, func() (any, error) {
		if b, ok := s.cached(gameID); ok {
			return b, nil
		}
		metrics.IncDataCacheMiss(gameID)
		return s.load(fetchCtx, game)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("game data shared with in-flight fetch", "game", gameID)
	}
	return v.(*Bundle), nil
}

func (s *Store) cached(gameID string) (*Bundle, bool) {
	s.mu.RLock()
	b, ok := s.entries[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(b.FetchedAt) >= s.ttl {
		return nil, false
	}
	return b, true
}

func (s *Store) load(ctx context.Context, game registry.GameConfig) (*Bundle, error) {
	start := s.now()

	var details, frameData document.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.fetcher.Fetch(gctx, game.DetailsPath)
		if err != nil {
			return err
		}
		details = doc
		return nil
	})
	g.Go(func() error {
		doc, err := s.fetcher.Fetch(gctx, game.FrameDataPath)
		if err != nil {
			return err
		}
		frameData = doc
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("game data not cached", "game", game.ID, "err", err)
		return nil, err
	}

	b := &Bundle{
		GameID:    game.ID,
		Details:   details,
		FrameData: frameData,
		FetchedAt: s.now(),
	}

	s.mu.Lock()
	s.entries[game.ID] = b
	s.mu.Unlock()

	s.logger.Info("game data cached",
		"game", game.ID,
		"duration_ms", b.FetchedAt.Sub(start).Milliseconds(),
	)
	return b, nil
}

// Warm loads the given games, or every registered game when ids is empty.
// It returns the errors joined; games that loaded stay cached.
func (s *Store) Warm(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		for _, g := range s.registry.List() {
			ids = append(ids, g.ID)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.GameData(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", id, err))
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Invalidate drops the cached bundle for gameID so the next request refetches
// it. It reports whether anything was cached.
func (s *Store) Invalidate(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[gameID]
	delete(s.entries, gameID)
	return ok
}

// Purge drops every cached bundle.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Bundle)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Games returns the ids with a cached bundle, sorted.
func (s *Store) Games() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
