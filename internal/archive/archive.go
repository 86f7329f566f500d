// Package archive moves saved movies and search trends between the database
// and CSV files. Imports are idempotent: rows are keyed the same way the live
// tables are, so re-importing a file does not duplicate anything.
package archive

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"moviedex/internal/trends"
	"moviedex/pkg/database"
)

var (
	SavedHeader  = []string{"user_id", "tmdb_movie_id", "title", "poster_path", "release_date", "vote_average", "is_watched", "created_at", "updated_at"}
	TrendsHeader = []string{"search_term", "movie_id", "title", "poster_url", "count", "updated_at"}
)

func ExportSaved(ctx context.Context, db *sql.DB, w io.Writer) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, tmdb_movie_id, title, poster_path, release_date, vote_average,
		       is_watched, created_at, updated_at
		FROM saved_movies
		ORDER BY user_id, created_at, id
	`)
	if err != nil {
		return 0, fmt.Errorf("query saved movies: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(SavedHeader); err != nil {
		return 0, err
	}

	n := 0
	for rows.Next() {
		var (
			userID, title, poster, release string
			movieID                        int64
			vote                           float64
			watched                        bool
			created, updated               database.Time
		)
		if err := rows.Scan(&userID, &movieID, &title, &poster, &release, &vote, &watched, &created, &updated); err != nil {
			return n, fmt.Errorf("scan saved movie: %w", err)
		}
		if err := cw.Write([]string{
			userID,
			strconv.FormatInt(movieID, 10),
			title,
			poster,
			release,
			strconv.FormatFloat(vote, 'f', -1, 64),
			strconv.FormatBool(watched),
			created.Format(time.RFC3339Nano),
			updated.Format(time.RFC3339Nano),
		}); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate saved movies: %w", err)
	}
	cw.Flush()
	return n, cw.Error()
}

func ExportTrends(ctx context.Context, db *sql.DB, w io.Writer) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT search_term, movie_id, title, poster_url, count, updated_at
		FROM search_trends
		ORDER BY count DESC, updated_at DESC, id DESC
	`)
	if err != nil {
		return 0, fmt.Errorf("query search trends: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(TrendsHeader); err != nil {
		return 0, err
	}

	n := 0
	for rows.Next() {
		var (
			term, title, poster string
			movieID, count      int64
			updated             database.Time
		)
		if err := rows.Scan(&term, &movieID, &title, &poster, &count, &updated); err != nil {
			return n, fmt.Errorf("scan search trend: %w", err)
		}
		if err := cw.Write([]string{
			term,
			strconv.FormatInt(movieID, 10),
			title,
			poster,
			strconv.FormatInt(count, 10),
			updated.Format(time.RFC3339Nano),
		}); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate search trends: %w", err)
	}
	cw.Flush()
	return n, cw.Error()
}

// ImportSaved upserts favorites keyed by (user_id, tmdb_movie_id). Users must
// already exist.
func ImportSaved(ctx context.Context, db *sql.DB, r io.Reader) (n int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			n = 0
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO saved_movies (user_id, tmdb_movie_id, title, poster_path, release_date,
		                          vote_average, is_watched, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tmdb_movie_id) DO UPDATE SET
			title = excluded.title,
			poster_path = excluded.poster_path,
			release_date = excluded.release_date,
			vote_average = excluded.vote_average,
			is_watched = excluded.is_watched,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare saved import: %w", err)
	}
	defer stmt.Close()

	line := 1
	for {
		row, rerr := cr.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return n, rerr
		}
		line++

		userID := valueAt(header, row, "user_id")
		title := valueAt(header, row, "title")
		poster := valueAt(header, row, "poster_path")
		release := valueAt(header, row, "release_date")
		for _, f := range []struct{ name, value string }{
			{"user_id", userID}, {"title", title}, {"poster_path", poster}, {"release_date", release},
		} {
			if f.value == "" {
				return n, fmt.Errorf("line %d: %s is required", line, f.name)
			}
		}
		movieID, perr := strconv.ParseInt(valueAt(header, row, "tmdb_movie_id"), 10, 64)
		if perr != nil || movieID <= 0 {
			return n, fmt.Errorf("line %d: bad tmdb_movie_id", line)
		}
		vote, perr := parseFloat(valueAt(header, row, "vote_average"))
		if perr != nil {
			return n, fmt.Errorf("line %d: vote_average: %w", line, perr)
		}
		watched, perr := parseBool(valueAt(header, row, "is_watched"))
		if perr != nil {
			return n, fmt.Errorf("line %d: is_watched: %w", line, perr)
		}
		created, perr := parseTime(valueAt(header, row, "created_at"))
		if perr != nil {
			return n, fmt.Errorf("line %d: created_at: %w", line, perr)
		}
		updated, perr := parseTime(valueAt(header, row, "updated_at"))
		if perr != nil {
			return n, fmt.Errorf("line %d: updated_at: %w", line, perr)
		}
		if updated.Before(created) {
			updated = created
		}

		if _, err = stmt.ExecContext(ctx,
			userID, movieID, title, poster, release,
			vote, watched, created, updated,
		); err != nil {
			return n, fmt.Errorf("line %d: upsert saved movie: %w", line, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

// ImportTrends restores leaderboard rows. An existing term keeps the larger
// of the two counts, and its top result only changes when the imported row
// is at least as recent as the stored one.
func ImportTrends(ctx context.Context, db *sql.DB, r io.Reader) (n int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			n = 0
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO search_trends (search_term, movie_id, title, poster_url, count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(search_term) DO UPDATE SET
			movie_id = CASE WHEN excluded.updated_at >= search_trends.updated_at
				THEN excluded.movie_id ELSE search_trends.movie_id END,
			title = CASE WHEN excluded.updated_at >= search_trends.updated_at
				THEN excluded.title ELSE search_trends.title END,
			poster_url = CASE WHEN excluded.updated_at >= search_trends.updated_at
				THEN excluded.poster_url ELSE search_trends.poster_url END,
			count = MAX(search_trends.count, excluded.count),
			updated_at = MAX(search_trends.updated_at, excluded.updated_at)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare trends import: %w", err)
	}
	defer stmt.Close()

	line := 1
	for {
		row, rerr := cr.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return n, rerr
		}
		line++

		term := trends.NormalizeTerm(valueAt(header, row, "search_term"))
		if term == "" {
			return n, fmt.Errorf("line %d: search_term is required", line)
		}
		movieID, perr := strconv.ParseInt(valueAt(header, row, "movie_id"), 10, 64)
		if perr != nil {
			return n, fmt.Errorf("line %d: bad movie_id", line)
		}
		count, perr := strconv.ParseInt(valueAt(header, row, "count"), 10, 64)
		if perr != nil || count < 1 {
			return n, fmt.Errorf("line %d: count must be a positive integer", line)
		}
		updated, perr := parseTime(valueAt(header, row, "updated_at"))
		if perr != nil {
			return n, fmt.Errorf("line %d: updated_at: %w", line, perr)
		}

		if _, err = stmt.ExecContext(ctx,
			term, movieID,
			valueAt(header, row, "title"),
			valueAt(header, row, "poster_url"),
			count, updated,
		); err != nil {
			return n, fmt.Errorf("line %d: upsert search trend: %w", line, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// parseTime accepts RFC3339; a blank cell means now.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
