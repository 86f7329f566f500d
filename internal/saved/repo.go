package saved

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moviedex/pkg/database"
	"moviedex/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const savedColumns = `id, user_id, tmdb_movie_id, title, poster_path, release_date,
	vote_average, is_watched, created_at, updated_at`

func (r *Repo) Get(ctx context.Context, userID string, movieID int64) (*models.SavedMovie, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+savedColumns+`
		FROM saved_movies
		WHERE user_id = ? AND tmdb_movie_id = ?
	`, userID, movieID)

	m, err := scanSaved(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get saved movie: %w", err)
	}
	return m, nil
}

// List returns the user's rows oldest first.
func (r *Repo) List(ctx context.Context, userID string, watchedOnly bool) ([]models.SavedMovie, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if watchedOnly {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+savedColumns+`
			FROM saved_movies
			WHERE user_id = ? AND is_watched = 1
			ORDER BY created_at ASC, id ASC
		`, userID)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+savedColumns+`
			FROM saved_movies
			WHERE user_id = ?
			ORDER BY created_at ASC, id ASC
		`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list saved movies: %w", err)
	}
	defer rows.Close()

	out := make([]models.SavedMovie, 0)
	for rows.Next() {
		m, err := scanSaved(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved movie: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// InsertIfAbsent stores m unless the user already saved that movie, and
// returns whatever row is stored afterwards. inserted reports whether this
// call created it.
func (r *Repo) InsertIfAbsent(ctx context.Context, m models.SavedMovie) (_ *models.SavedMovie, inserted bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin favorite: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO saved_movies (user_id, tmdb_movie_id, title, poster_path, release_date,
			vote_average, is_watched, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(user_id, tmdb_movie_id) DO NOTHING
	`, m.UserID, m.TMDBMovieID, m.Title, m.PosterPath, m.ReleaseDate,
		m.VoteAverage, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert saved movie: %w", err)
	}
	n, _ := res.RowsAffected()

	row := tx.QueryRowContext(ctx, `
		SELECT `+savedColumns+`
		FROM saved_movies
		WHERE user_id = ? AND tmdb_movie_id = ?
	`, m.UserID, m.TMDBMovieID)
	stored, err := scanSaved(row)
	if err != nil {
		return nil, false, fmt.Errorf("reload saved movie: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit favorite: %w", err)
	}
	return stored, n > 0, nil
}

// UpdateWatched sets the watched flag in one statement. A nil result means
// the user has not saved the movie.
func (r *Repo) UpdateWatched(ctx context.Context, userID string, movieID int64, watched bool, at time.Time) (*models.SavedMovie, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE saved_movies
		SET is_watched = ?, updated_at = ?
		WHERE user_id = ? AND tmdb_movie_id = ?
		RETURNING `+savedColumns,
		watched, at.UTC(), userID, movieID)

	m, err := scanSaved(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update watched: %w", err)
	}
	return m, nil
}

func (r *Repo) Delete(ctx context.Context, userID string, movieID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM saved_movies
		WHERE user_id = ? AND tmdb_movie_id = ?
	`, userID, movieID)
	if err != nil {
		return false, fmt.Errorf("delete saved movie: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSaved(s scanner) (*models.SavedMovie, error) {
	var (
		m                models.SavedMovie
		created, updated database.Time
	)
	err := s.Scan(&m.ID, &m.UserID, &m.TMDBMovieID, &m.Title, &m.PosterPath, &m.ReleaseDate,
		&m.VoteAverage, &m.IsWatched, &created, &updated)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = created.Time
	m.UpdatedAt = updated.Time
	return &m, nil
}
