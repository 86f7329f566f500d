package trends

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

const trendColumns = `id, search_term, movie_id, title, poster_url, count, updated_at`

// Upsert counts one more search for term and replaces the snapshot with the
// given top result. The increment happens inside the statement so concurrent
// searches for the same term never lose a count.
func (r *Repo) Upsert(ctx context.Context, term string, top TopResult, at time.Time) (*models.SearchTrend, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO search_trends (search_term, movie_id, title, poster_url, count, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(search_term) DO UPDATE SET
			movie_id = excluded.movie_id,
			title = excluded.title,
			poster_url = excluded.poster_url,
			count = search_trends.count + 1,
			updated_at = excluded.updated_at
		RETURNING `+trendColumns,
		term, top.MovieID, top.Title, top.PosterURL, at.UTC())

	t, err := scanTrend(row)
	if err != nil {
		return nil, fmt.Errorf("upsert search trend: %w", err)
	}
	return t, nil
}

// Top returns the most searched terms, most recently updated first on ties.
func (r *Repo) Top(ctx context.Context, limit int) ([]models.SearchTrend, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+trendColumns+`
		FROM search_trends
		ORDER BY count DESC, updated_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list search trends: %w", err)
	}
	defer rows.Close()

	out := make([]models.SearchTrend, 0, limit)
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search trend: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, term string) (*models.SearchTrend, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+trendColumns+`
		FROM search_trends
		WHERE search_term = ?
	`, term)

	t, err := scanTrend(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get search trend: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrend(s scanner) (*models.SearchTrend, error) {
	var (
		t       models.SearchTrend
		updated database.Time
	)
	if err := s.Scan(&t.ID, &t.SearchTerm, &t.MovieID, &t.Title, &t.PosterURL, &t.Count, &updated); err != nil {
		return nil, err
	}
	t.UpdatedAt = updated.Time
	return &t, nil
}
