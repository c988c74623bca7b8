package datacache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framegate/internal/document"
	"framegate/internal/registry"
	"framegate/internal/upstream"
)

var demoRegistry = registry.MustNew([]registry.GameConfig{
	{ID: "demo", FullName: "Demo Game", AbbrName: "DG", DetailsPath: "d.json", FrameDataPath: "f.json"},
	{ID: "other", FullName: "Other Game", AbbrName: "OG", DetailsPath: "od.json", FrameDataPath: "of.json"},
})

// fakeFetcher serves canned documents by path and counts calls. A path in
// fail returns that error instead. Every returned document is stamped with
// the per-path call number, so a bundle whose two documents carry different
// stamps was assembled from different fetch attempts.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]document.Document
	fail  map[string]error
	calls map[string]int
	total atomic.Int32
	gate  chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs: map[string]document.Document{
			"d.json":  {"fullName": "Demo Game", "characterList": []any{"Rex"}},
			"f.json":  {"Rex": map[string]any{"moves": map[string]any{}}},
			"od.json": {"fullName": "Other Game"},
			"of.json": {"Zed": map[string]any{}},
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, path string) (document.Document, error) {
	f.total.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++

	if err := f.fail[path]; err != nil {
		return nil, err
	}
	doc, ok := f.docs[path]
	if !ok {
		return nil, &upstream.FetchError{Kind: upstream.ErrFetchFailure, URL: path, StatusCode: 404}
	}
	out := document.Document{"attempt": f.calls[path]}
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (f *fakeFetcher) callsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeFetcher) setFail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, path)
		return
	}
	f.fail[path] = err
}

func TestGameData_FetchesOnceThenServesFromMemory(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})
	ctx := context.Background()

	first, err := s.GameData(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", first.GameID)
	assert.Equal(t, "Demo Game", first.Details["fullName"])
	assert.Contains(t, first.FrameData, "Rex")

	for i := 0; i < 5; i++ {
		again, err := s.GameData(ctx, "demo")
		require.NoError(t, err)
		assert.Same(t, first, again)
	}

	assert.Equal(t, 1, f.callsFor("d.json"))
	assert.Equal(t, 1, f.callsFor("f.json"))
	assert.Equal(t, 1, s.Len())
}

func TestGameData_UnknownGameMakesNoRequests(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})

	for _, id := range []string{"bogus", "", "DEMO", "sf6"} {
		_, err := s.GameData(context.Background(), id)
		assert.ErrorIs(t, err, ErrUnknownGame, "id %q", id)
	}
	assert.Equal(t, int32(0), f.total.Load())
	assert.Equal(t, 0, s.Len())
}

func TestGameData_PartialFailureCachesNothing(t *testing.T) {
	tests := []struct {
		name     string
		failPath string
		kind     error
	}{
		{"details fails", "d.json", upstream.ErrFetchFailure},
		{"frame data fails", "f.json", upstream.ErrFetchFailure},
		{"frame data invalid", "f.json", upstream.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.setFail(tt.failPath, &upstream.FetchError{Kind: tt.kind, URL: tt.failPath})
			s := New(demoRegistry, f, Options{})

			_, err := s.GameData(context.Background(), "demo")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, 0, s.Len())

			f.setFail(tt.failPath, nil)
			before := f.total.Load()

			b, err := s.GameData(context.Background(), "demo")
			require.NoError(t, err)
			assert.NotNil(t, b.Details)
			assert.NotNil(t, b.FrameData)
			assert.Equal(t, int32(2), f.total.Load()-before, "retry fetches both documents from scratch")
		})
	}
}

func TestGameData_ConcurrentMissesShareOneFetch(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := New(demoRegistry, f, Options{})

	const n = 32
	var wg sync.WaitGroup
	results := make([]*Bundle, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.GameData(context.Background(), "demo")
		}(i)
	}

	// Let the leader's two fetches through once all callers had a chance to
	// pile up behind it.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, f.callsFor("d.json"))
	assert.Equal(t, 1, f.callsFor("f.json"))
}

func TestGameData_BundlesNeverMixFetchAttempts(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var mixed atomic.Int32

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b, err := s.GameData(ctx, "demo")
				if err != nil {
					continue
				}
				if b.Details["attempt"] != b.FrameData["attempt"] {
					mixed.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		s.Invalidate("demo")
		time.Sleep(time.Millisecond)
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, mixed.Load())
}

func TestGameData_DifferentGamesDoNotContaminate(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range []string{"demo", "other"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = s.GameData(context.Background(), id)
			}(id)
		}
	}
	wg.Wait()

	demo, err := s.GameData(context.Background(), "demo")
	require.NoError(t, err)
	other, err := s.GameData(context.Background(), "other")
	require.NoError(t, err)

	assert.Equal(t, "Demo Game", demo.Details["fullName"])
	assert.Contains(t, demo.FrameData, "Rex")
	assert.Equal(t, "Other Game", other.Details["fullName"])
	assert.Contains(t, other.FrameData, "Zed")
	assert.Equal(t, []string{"demo", "other"}, s.Games())
}

func TestGameData_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := s.GameData(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", b.GameID)
}

func TestGameData_TTL(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{TTL: time.Hour})
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.GameData(ctx, "demo")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = s.GameData(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, f.callsFor("d.json"))

	now = now.Add(2 * time.Minute)
	_, err = s.GameData(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, f.callsFor("d.json"))
}

func TestInvalidateAndPurge(t *testing.T) {
	f := newFakeFetcher()
	s := New(demoRegistry, f, Options{})
	ctx := context.Background()

	require.NoError(t, s.Warm(ctx))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Invalidate("demo"))
	assert.False(t, s.Invalidate("demo"))
	assert.Equal(t, []string{"other"}, s.Games())

	_, err := s.GameData(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, f.callsFor("d.json"))

	s.Purge()
	assert.Equal(t, 0, s.Len())
}

func TestWarm_ReportsFailures(t *testing.T) {
	f := newFakeFetcher()
	f.setFail("of.json", errors.New("boom"))
	s := New(demoRegistry, f, Options{})

	err := s.Warm(context.Background(), "demo", "other", "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownGame)
	assert.Contains(t, err.Error(), "warm other")
	assert.Equal(t, []string{"demo"}, s.Games())
}

func ExampleStore_GameData() {
	reg := registry.MustNew([]registry.GameConfig{
		{ID: "demo", FullName: "Demo Game", AbbrName: "DG", DetailsPath: "d.json", FrameDataPath: "f.json"},
	})
	s := New(reg, newFakeFetcher(), Options{})

	b, err := s.GameData(context.Background(), "demo")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(b.Details["fullName"])
	// Output: Demo Game
}
