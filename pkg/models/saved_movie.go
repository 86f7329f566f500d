package models

import "time"

// SavedMovie is a stored favorite. Row presence is the favorite status.
type SavedMovie struct {
	ID          int64
	UserID      string
	TMDBMovieID int64
	Title       string
	PosterPath  string
	ReleaseDate string
	VoteAverage float64
	IsWatched   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SavedMovieSnapshot is the client-facing projection of a SavedMovie.
type SavedMovieSnapshot struct {
	TMDBMovieID int64   `json:"tmdbMovieId"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"posterPath"`
	ReleaseDate string  `json:"releaseDate"`
	VoteAverage float64 `json:"voteAverage"`
	IsWatched   bool    `json:"isWatched"`
	SavedAt     string  `json:"savedAt"`
}

type SavedStatus struct {
	TMDBMovieID int64               `json:"tmdbMovieId"`
	IsFavorite  bool                `json:"isFavorite"`
	IsWatched   bool                `json:"isWatched"`
	Movie       *SavedMovieSnapshot `json:"movie,omitempty"`
}

func (m SavedMovie) Snapshot() SavedMovieSnapshot {
	return SavedMovieSnapshot{
		TMDBMovieID: m.TMDBMovieID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		IsWatched:   m.IsWatched,
		SavedAt:     m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
