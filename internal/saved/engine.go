// Package saved owns the per-user favorite/watched list and the rules that
// govern it: a movie must be favorited before it can be marked watched, and
// unfavoriting discards the watched state.
package saved

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"moviedex/internal/apperr"
	"moviedex/internal/logging"
	"moviedex/internal/metrics"
	synchub "moviedex/internal/sync"
	"moviedex/pkg/models"
)

type Filter int

const (
	FilterAll Filter = iota
	FilterWatchedOnly
)

// ParseTab maps the HTTP tab query value to a filter.
func ParseTab(tab string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(tab)) {
	case "", "favorites":
		return FilterAll, nil
	case "watched":
		return FilterWatchedOnly, nil
	default:
		return FilterAll, apperr.Validation("Validation error",
			apperr.Field("tab", "must be one of: favorites, watched"))
	}
}

// FavoriteInput is the catalog snapshot stored with a new favorite.
type FavoriteInput struct {
	TMDBMovieID int64
	Title       string
	PosterPath  string
	ReleaseDate string
	VoteAverage float64
}

// Notifier receives events in commit order. Publish must not block.
type Notifier interface {
	Publish(ev synchub.Event)
}

type Engine struct {
	Repo    *Repo
	Hub     Notifier
	Metrics *metrics.Metrics

	log *slog.Logger
	now func() time.Time
}

func NewEngine(repo *Repo, hub Notifier, m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		Repo:    repo,
		Hub:     hub,
		Metrics: m,
		log:     logging.Component(log, "saved"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) GetStatus(ctx context.Context, userID string, movieID int64) (models.SavedStatus, error) {
	if err := validateKey(userID, movieID); err != nil {
		return models.SavedStatus{}, err
	}

	m, err := e.Repo.Get(ctx, userID, movieID)
	if err != nil {
		return models.SavedStatus{}, apperr.Internal("load saved status", err)
	}

	st := StateOf(m)
	status := models.SavedStatus{
		TMDBMovieID: movieID,
		IsFavorite:  st.IsFavorite(),
		IsWatched:   st.IsWatched(),
	}
	if m != nil {
		snap := m.Snapshot()
		status.Movie = &snap
	}
	return status, nil
}

func (e *Engine) ListSaved(ctx context.Context, userID string, f Filter) ([]models.SavedMovieSnapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Unauthorized("Unauthorized")
	}

	rows, err := e.Repo.List(ctx, userID, f == FilterWatchedOnly)
	if err != nil {
		return nil, apperr.Internal("list saved movies", err)
	}
	out := make([]models.SavedMovieSnapshot, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Snapshot())
	}
	return out, nil
}

// Favorite saves the movie for the user. Saving an already saved movie
// returns the stored row untouched, watched flag and snapshot included.
func (e *Engine) Favorite(ctx context.Context, userID string, in FavoriteInput) (models.SavedMovieSnapshot, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.PosterPath = strings.TrimSpace(in.PosterPath)
	in.ReleaseDate = strings.TrimSpace(in.ReleaseDate)
	if err := validateFavorite(userID, in); err != nil {
		e.Metrics.SavedTransition(string(ActionFavorite), "rejected")
		return models.SavedMovieSnapshot{}, err
	}

	now := e.now()
	stored, inserted, err := e.Repo.InsertIfAbsent(ctx, models.SavedMovie{
		UserID:      userID,
		TMDBMovieID: in.TMDBMovieID,
		Title:       in.Title,
		PosterPath:  in.PosterPath,
		ReleaseDate: in.ReleaseDate,
		VoteAverage: in.VoteAverage,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		e.Metrics.SavedTransition(string(ActionFavorite), "error")
		return models.SavedMovieSnapshot{}, apperr.Internal("save favorite", err)
	}

	e.Metrics.SavedTransition(string(ActionFavorite), "applied")
	if inserted {
		e.log.Debug("favorite added", "user_id", userID, "tmdb_movie_id", in.TMDBMovieID)
		e.notify(synchub.EventSavedFavorite, stored)
	}
	return stored.Snapshot(), nil
}

func (e *Engine) Unfavorite(ctx context.Context, userID string, movieID int64) error {
	if err := validateKey(userID, movieID); err != nil {
		e.Metrics.SavedTransition(string(ActionUnfavorite), "rejected")
		return err
	}

	removed, err := e.Repo.Delete(ctx, userID, movieID)
	if err != nil {
		e.Metrics.SavedTransition(string(ActionUnfavorite), "error")
		return apperr.Internal("remove favorite", err)
	}

	e.Metrics.SavedTransition(string(ActionUnfavorite), "applied")
	if removed {
		e.notify(synchub.EventSavedUnfavorite, &models.SavedMovie{UserID: userID, TMDBMovieID: movieID})
	}
	return nil
}

// SetWatched flips the watched flag of a saved movie. Marking an unsaved movie
// watched is a conflict; unmarking it is not found.
func (e *Engine) SetWatched(ctx context.Context, userID string, movieID int64, watched bool) (models.SavedMovieSnapshot, error) {
	action := watchAction(watched)
	if err := validateKey(userID, movieID); err != nil {
		e.Metrics.SavedTransition(string(action), "rejected")
		return models.SavedMovieSnapshot{}, err
	}

	m, err := e.Repo.UpdateWatched(ctx, userID, movieID, watched, e.now())
	if err != nil {
		e.Metrics.SavedTransition(string(action), "error")
		return models.SavedMovieSnapshot{}, apperr.Internal("update watched", err)
	}
	if m == nil {
		_, err := StateAbsent.Apply(action)
		e.Metrics.SavedTransition(string(action), "rejected")
		return models.SavedMovieSnapshot{}, err
	}

	e.Metrics.SavedTransition(string(action), "applied")
	e.notify(synchub.EventSavedWatched, m)
	return m.Snapshot(), nil
}

func (e *Engine) notify(typ string, m *models.SavedMovie) {
	if e.Hub == nil {
		return
	}
	ev := synchub.SavedEvent{
		Type:        typ,
		UserID:      m.UserID,
		TMDBMovieID: m.TMDBMovieID,
		IsWatched:   m.IsWatched,
		At:          e.now(),
	}
	e.Hub.Publish(ev)
}

func validateKey(userID string, movieID int64) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Unauthorized("Unauthorized")
	}
	if movieID <= 0 {
		return apperr.Validation("Validation error", apperr.Field("tmdbMovieId", "must be a positive integer"))
	}
	return nil
}

func validateFavorite(userID string, in FavoriteInput) error {
	if err := validateKey(userID, in.TMDBMovieID); err != nil {
		return err
	}

	var fields []apperr.FieldError
	if in.Title == "" {
		fields = append(fields, apperr.Field("title", "is required"))
	}
	if in.PosterPath == "" {
		fields = append(fields, apperr.Field("posterPath", "is required"))
	}
	if in.ReleaseDate == "" {
		fields = append(fields, apperr.Field("releaseDate", "is required"))
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation error", fields...)
	}
	return nil
}
