package sync

import "time"

// Topics a subscriber can filter on.
const (
	TopicSaved = "saved"
	TopicTrend = "trend"
)

const (
	EventSavedFavorite   = "saved.favorite"
	EventSavedUnfavorite = "saved.unfavorite"
	EventSavedWatched    = "saved.watched"
	EventTrendUpdated    = "trend.updated"
)

// Event is anything the hub can publish.
type Event interface {
	Topic() string
}

type SavedEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"userId"`
	TMDBMovieID int64     `json:"tmdbMovieId"`
	IsWatched   bool      `json:"isWatched"`
	At          time.Time `json:"at"`
}

func (SavedEvent) Topic() string { return TopicSaved }

type TrendEvent struct {
	Type       string    `json:"type"`
	SearchTerm string    `json:"searchTerm"`
	MovieID    int64     `json:"movieId"`
	Title      string    `json:"title"`
	Count      int64     `json:"count"`
	At         time.Time `json:"at"`
}

func (TrendEvent) Topic() string { return TopicTrend }

// welcome is the first line every subscriber receives, and the reply to a
// topic change.
type welcome struct {
	Type      string   `json:"type"`
	Transport string   `json:"transport"`
	Topics    []string `json:"topics"`
}

// subscribeRequest may be sent by TCP clients at any time to change topics.
type subscribeRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}
