package trends

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synchub "moviedex/internal/sync"
	"moviedex/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []synchub.Event
}

func (r *recorder) Publish(v synchub.Event) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newAggregator(t *testing.T) (*Aggregator, *recorder) {
	t.Helper()
	rec := &recorder{}
	a := NewAggregator(NewRepo(testutil.NewDB(t)), rec, nil, nil)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return a, rec
}

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "the batman", NormalizeTerm("  The \t Batman "))
	assert.Equal(t, "", NormalizeTerm("   "))
}

func TestBatmanSupermanLeaderboard(t *testing.T) {
	a, _ := newAggregator(t)
	ctx := context.Background()

	batman := &TopResult{MovieID: 415, Title: "Batman", PosterURL: "https://image.test/w500/batman.jpg"}
	require.NoError(t, a.RecordSearch(ctx, "batman", batman))
	require.NoError(t, a.RecordSearch(ctx, "batman", batman))
	require.NoError(t, a.RecordSearch(ctx, "superman", &TopResult{MovieID: 1452, Title: "Superman Returns"}))

	top, err := a.TopTrending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "batman", top[0].SearchTerm)
	assert.Equal(t, int64(2), top[0].Count)
	assert.Equal(t, int64(415), top[0].MovieID)
	assert.Equal(t, "superman", top[1].SearchTerm)
	assert.Equal(t, int64(1), top[1].Count)
	assert.Equal(t, int64(1452), top[1].MovieID)
}

func TestLatestTopResultWins(t *testing.T) {
	a, _ := newAggregator(t)
	ctx := context.Background()

	require.NoError(t, a.RecordSearch(ctx, "joker", &TopResult{MovieID: 475557, Title: "Joker", PosterURL: "a.jpg"}))
	require.NoError(t, a.RecordSearch(ctx, "Joker ", &TopResult{MovieID: 889737, Title: "Joker: Folie à Deux", PosterURL: "b.jpg"}))

	got, err := a.Repo.Get(ctx, "joker")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, int64(2), got.Count)
	assert.Equal(t, int64(889737), got.MovieID)
	assert.Equal(t, "Joker: Folie à Deux", got.Title)
	assert.Equal(t, "b.jpg", got.PosterURL)
}

func TestNoResultIsNoop(t *testing.T) {
	a, rec := newAggregator(t)
	ctx := context.Background()

	require.NoError(t, a.RecordSearch(ctx, "zzzzqqq", nil))
	require.NoError(t, a.RecordSearch(ctx, "   ", &TopResult{MovieID: 1}))

	top, err := a.TopTrending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.Zero(t, rec.len())
}

func TestTiesPreferMostRecentlyUpdated(t *testing.T) {
	a, _ := newAggregator(t)
	ctx := context.Background()

	require.NoError(t, a.RecordSearch(ctx, "alien", &TopResult{MovieID: 348, Title: "Alien"}))
	require.NoError(t, a.RecordSearch(ctx, "aliens", &TopResult{MovieID: 679, Title: "Aliens"}))

	top, err := a.TopTrending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "aliens", top[0].SearchTerm)
	assert.Equal(t, "alien", top[1].SearchTerm)
}

func TestTopTrendingLimits(t *testing.T) {
	a, _ := newAggregator(t)
	ctx := context.Background()

	for _, term := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, a.RecordSearch(ctx, term, &TopResult{MovieID: 1, Title: term}))
	}

	top, err := a.TopTrending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultLimit)

	top, err = a.TopTrending(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, top, 7)
}

func TestConcurrentSearchesKeepEveryIncrement(t *testing.T) {
	a, _ := newAggregator(t)
	a.now = func() time.Time { return time.Now().UTC() }
	ctx := context.Background()

	const n = 25
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			assert.NoError(t, a.RecordSearch(ctx, "dune", &TopResult{MovieID: 438631, Title: "Dune"}))
		})
	}
	wg.Wait()

	got, err := a.Repo.Get(ctx, "dune")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(n), got.Count)
}

func TestRecordSearchBroadcasts(t *testing.T) {
	a, rec := newAggregator(t)

	require.NoError(t, a.RecordSearch(context.Background(), "heat", &TopResult{MovieID: 949, Title: "Heat"}))

	require.Equal(t, 1, rec.len())
	rec.mu.Lock()
	ev, ok := rec.events[0].(synchub.TrendEvent)
	rec.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, synchub.EventTrendUpdated, ev.Type)
	assert.Equal(t, int64(1), ev.Count)
}
