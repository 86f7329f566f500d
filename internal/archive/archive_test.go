package archive

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviedex/internal/saved"
	"moviedex/internal/testutil"
	"moviedex/internal/trends"
	"moviedex/pkg/models"
)

func insertUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		id, "Copy", id+"@example.test", "x")
	require.NoError(t, err)
}

func TestSavedRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewDB(t)
	user := testutil.CreateUser(t, src)

	repo := saved.NewRepo(src)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"Batman", "Heat, the Director's Cut"} {
		_, _, err := repo.InsertIfAbsent(ctx, models.SavedMovie{
			UserID: user, TMDBMovieID: int64(100 + i), Title: title,
			PosterPath: "/p.jpg", ReleaseDate: "1995-12-15", VoteAverage: 7.9,
			CreatedAt: at.Add(time.Duration(i) * time.Minute), UpdatedAt: at,
		})
		require.NoError(t, err)
	}
	_, err := repo.UpdateWatched(ctx, user, 101, true, at.Add(time.Hour))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := ExportSaved(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := testutil.NewDB(t)
	insertUser(t, dst, user)

	data := buf.String()
	for i := 0; i < 2; i++ {
		n, err = ImportSaved(ctx, dst, strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	got, err := saved.NewRepo(dst).List(ctx, user, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Batman", got[0].Title)
	assert.False(t, got[0].IsWatched)
	assert.Equal(t, "Heat, the Director's Cut", got[1].Title)
	assert.True(t, got[1].IsWatched)
	assert.True(t, got[1].CreatedAt.Equal(at.Add(time.Minute)))
}

func TestImportSavedRollsBackOnBadRow(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db)

	in := "user_id,tmdb_movie_id,title,poster_path,release_date,is_watched\n" +
		user + ",1,Alien,/a.jpg,1979-05-25,false\n" +
		user + ",2,Aliens,/b.jpg,1986-07-18,sometimes\n"

	_, err := ImportSaved(ctx, db, strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	got, err := saved.NewRepo(db).List(ctx, user, false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestImportSavedUnknownUserFails(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := ImportSaved(context.Background(), db,
		strings.NewReader("user_id,tmdb_movie_id,title,poster_path,release_date\nghost,1,Alien,/a.jpg,1979-05-25\n"))
	assert.Error(t, err)
}

func TestImportSavedRejectsBlankRequiredFields(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db)
	head := "user_id,tmdb_movie_id,title,poster_path,release_date,vote_average\n"

	cases := map[string]struct {
		row   string
		field string
	}{
		"blank poster":  {user + ",1,Alien,,1979-05-25,8.5", "poster_path"},
		"blank release": {user + ",1,Alien,/a.jpg,,8.5", "release_date"},
		"blank title":   {user + ",2,,/x.jpg,1979,7", "title"},
		"blank user":    {",3,Heat,/h.jpg,1995-12-15,8", "user_id"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := head + user + ",9,Heat,/h.jpg,1995-12-15,8.3\n" + tc.row + "\n"

			n, err := ImportSaved(ctx, db, strings.NewReader(in))
			require.Error(t, err)
			assert.Zero(t, n)
			assert.Contains(t, err.Error(), "line 3")
			assert.Contains(t, err.Error(), tc.field)

			got, err := saved.NewRepo(db).List(ctx, user, false)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestTrendsRoundTripKeepsLargerCount(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewDB(t)
	repo := trends.NewRepo(src)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	top := trends.TopResult{MovieID: 415, Title: "Batman", PosterURL: "https://img.test/b.jpg"}
	for i := 0; i < 3; i++ {
		_, err := repo.Upsert(ctx, "batman", top, at)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	n, err := ExportTrends(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dst := testutil.NewDB(t)
	dstRepo := trends.NewRepo(dst)
	for i := 0; i < 5; i++ {
		_, err := dstRepo.Upsert(ctx, "batman", top, at)
		require.NoError(t, err)
	}

	n, err = ImportTrends(ctx, dst, strings.NewReader(buf.String()+"  Alien   Covenant ,126889,Alien: Covenant,,2,\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := dstRepo.Get(ctx, "batman")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(5), b.Count)

	a, err := dstRepo.Get(ctx, "alien covenant")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(2), a.Count)
}

func TestImportTrendsRejectsZeroCount(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := ImportTrends(context.Background(), db,
		strings.NewReader("search_term,movie_id,count\nbatman,415,0\n"))
	assert.Error(t, err)
}

func TestImportTrendsRejectsBlankTerm(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	_, err := ImportTrends(ctx, db,
		strings.NewReader("search_term,movie_id,title,count\nheat,949,Heat,2\n   ,415,Batman,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	got, err := trends.NewRepo(db).Get(ctx, "heat")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestImportTrendsKeepsNewerTopResult(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := trends.NewRepo(db)
	recent := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Upsert(ctx, "batman", trends.TopResult{MovieID: 272, Title: "Batman Begins", PosterURL: "/begins.jpg"}, recent)
	require.NoError(t, err)

	_, err = ImportTrends(ctx, db, strings.NewReader(
		"search_term,movie_id,title,poster_url,count,updated_at\n"+
			"batman,415,Batman,/old.jpg,4,2020-01-01T00:00:00Z\n"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, "batman")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(272), got.MovieID)
	assert.Equal(t, "Batman Begins", got.Title)
	assert.Equal(t, "/begins.jpg", got.PosterURL)
	assert.Equal(t, int64(4), got.Count)
	assert.True(t, got.UpdatedAt.Equal(recent))

	_, err = ImportTrends(ctx, db, strings.NewReader(
		"search_term,movie_id,title,poster_url,count,updated_at\n"+
			"batman,268,Batman Returns,/returns.jpg,1,2026-06-01T00:00:00Z\n"))
	require.NoError(t, err)

	got, err = repo.Get(ctx, "batman")
	require.NoError(t, err)
	assert.Equal(t, int64(268), got.MovieID)
	assert.Equal(t, "Batman Returns", got.Title)
	assert.Equal(t, int64(4), got.Count)
}
