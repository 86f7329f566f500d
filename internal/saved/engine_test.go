package saved

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviedex/internal/apperr"
	synchub "moviedex/internal/sync"
	"moviedex/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []synchub.SavedEvent
}

func (r *recorder) Publish(v synchub.Event) {
	if ev, ok := v.(synchub.SavedEvent); ok {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	engine *Engine
	user   string
	events *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &recorder{}
	e := NewEngine(NewRepo(db), rec, nil, nil)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	e.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return fixture{engine: e, user: testutil.CreateUser(t, db), events: rec}
}

func batman() FavoriteInput {
	return FavoriteInput{
		TMDBMovieID: 415,
		Title:       "Batman",
		PosterPath:  "/batman.jpg",
		ReleaseDate: "1989-06-23",
		VoteAverage: 7.2,
	}
}

func TestGetStatusDefaultsToAbsent(t *testing.T) {
	f := newFixture(t)

	st, err := f.engine.GetStatus(context.Background(), f.user, 415)
	require.NoError(t, err)

	assert.Equal(t, int64(415), st.TMDBMovieID)
	assert.False(t, st.IsFavorite)
	assert.False(t, st.IsWatched)
	assert.Nil(t, st.Movie)
}

func TestFavoriteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	assert.False(t, first.IsWatched)

	_, err = f.engine.SetWatched(ctx, f.user, 415, true)
	require.NoError(t, err)

	again := batman()
	again.Title = "Batman (Remastered)"
	second, err := f.engine.Favorite(ctx, f.user, again)
	require.NoError(t, err)

	assert.True(t, second.IsWatched, "re-favorite keeps watched state")
	assert.Equal(t, "Batman", second.Title, "re-favorite keeps the original snapshot")
	assert.Equal(t, first.SavedAt, second.SavedAt)

	list, err := f.engine.ListSaved(ctx, f.user, FilterAll)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUnfavoriteClearsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	_, err = f.engine.SetWatched(ctx, f.user, 415, true)
	require.NoError(t, err)

	require.NoError(t, f.engine.Unfavorite(ctx, f.user, 415))

	st, err := f.engine.GetStatus(ctx, f.user, 415)
	require.NoError(t, err)
	assert.False(t, st.IsFavorite)
	assert.False(t, st.IsWatched)
}

func TestUnfavoriteAbsentSucceeds(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.engine.Unfavorite(context.Background(), f.user, 999))
	assert.Empty(t, f.events.types())
}

func TestWatchedRequiresFavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SetWatched(ctx, f.user, 415, true)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "favorited")

	st, err := f.engine.GetStatus(ctx, f.user, 415)
	require.NoError(t, err)
	assert.False(t, st.IsFavorite)
}

func TestUnwatchAbsentIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SetWatched(context.Background(), f.user, 415, false)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestWatchedDoesNotSurviveRefavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	snap, err := f.engine.SetWatched(ctx, f.user, 415, true)
	require.NoError(t, err)
	require.True(t, snap.IsWatched)
	require.NoError(t, f.engine.Unfavorite(ctx, f.user, 415))

	snap, err = f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	assert.False(t, snap.IsWatched)
}

func TestSetWatchedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		snap, err := f.engine.SetWatched(ctx, f.user, 415, false)
		require.NoError(t, err)
		assert.False(t, snap.IsWatched)
	}
	for i := 0; i < 2; i++ {
		snap, err := f.engine.SetWatched(ctx, f.user, 415, true)
		require.NoError(t, err)
		assert.True(t, snap.IsWatched)
	}
}

func TestListSavedFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []FavoriteInput{
		{TMDBMovieID: 415, Title: "Batman", PosterPath: "/a.jpg", ReleaseDate: "1989-06-23", VoteAverage: 7.2},
		{TMDBMovieID: 1452, Title: "Superman Returns", PosterPath: "/b.jpg", ReleaseDate: "2006-06-28", VoteAverage: 5.7},
		{TMDBMovieID: 268, Title: "Batman Returns", PosterPath: "/c.jpg", ReleaseDate: "1992-06-19", VoteAverage: 6.9},
	} {
		_, err := f.engine.Favorite(ctx, f.user, in)
		require.NoError(t, err)
	}
	_, err := f.engine.SetWatched(ctx, f.user, 268, true)
	require.NoError(t, err)
	_, err = f.engine.SetWatched(ctx, f.user, 415, true)
	require.NoError(t, err)

	all, err := f.engine.ListSaved(ctx, f.user, FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{415, 1452, 268}, []int64{all[0].TMDBMovieID, all[1].TMDBMovieID, all[2].TMDBMovieID})

	watched, err := f.engine.ListSaved(ctx, f.user, FilterWatchedOnly)
	require.NoError(t, err)
	require.Len(t, watched, 2)
	assert.Equal(t, int64(415), watched[0].TMDBMovieID)
	assert.Equal(t, int64(268), watched[1].TMDBMovieID)
}

func TestListSavedIsScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)

	other := testutil.CreateUser(t, f.engine.Repo.DB)
	list, err := f.engine.ListSaved(ctx, other, FilterAll)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestConcurrentFavoriteLeavesOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 8
	var wg conc.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Go(func() {
			snap, err := f.engine.Favorite(ctx, f.user, batman())
			assert.NoError(t, err)
			assert.Equal(t, int64(415), snap.TMDBMovieID)
		})
	}
	wg.Wait()

	var n int
	require.NoError(t, f.engine.Repo.DB.QueryRow(
		`SELECT COUNT(*) FROM saved_movies WHERE user_id = ? AND tmdb_movie_id = ?`, f.user, 415,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestFavoriteValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Favorite(context.Background(), f.user, FavoriteInput{TMDBMovieID: 415, Title: "  "})
	require.Error(t, err)

	var aerr *apperr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, apperr.KindValidation, aerr.Kind)

	fields := make([]string, 0, len(aerr.Fields))
	for _, fe := range aerr.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"title", "posterPath", "releaseDate"}, fields)

	_, err = f.engine.Favorite(context.Background(), f.user, FavoriteInput{TMDBMovieID: 0, Title: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.engine.Favorite(context.Background(), "", batman())
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestTransitionsEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	_, err = f.engine.Favorite(ctx, f.user, batman())
	require.NoError(t, err)
	_, err = f.engine.SetWatched(ctx, f.user, 415, true)
	require.NoError(t, err)
	require.NoError(t, f.engine.Unfavorite(ctx, f.user, 415))

	assert.Equal(t,
		[]string{synchub.EventSavedFavorite, synchub.EventSavedWatched, synchub.EventSavedUnfavorite},
		f.events.types())
}

func TestStoreFailureIsInternal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE saved_movies").WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("DELETE FROM saved_movies").WillReturnError(errors.New("disk I/O error"))

	e := NewEngine(NewRepo(db), nil, nil, nil)

	_, err = e.SetWatched(context.Background(), "u1", 415, true)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	err = e.Unfavorite(context.Background(), "u1", 415)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFavoriteRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO saved_movies").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	e := NewEngine(NewRepo(db), nil, nil, nil)
	_, err = e.Favorite(context.Background(), "u1", batman())

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
