package models

import "time"

type SearchTrend struct {
	ID         int64
	SearchTerm string
	MovieID    int64
	Title      string
	PosterURL  string
	Count      int64
	UpdatedAt  time.Time
}

type TrendingMovie struct {
	SearchTerm string `json:"searchTerm"`
	MovieID    int64  `json:"movieId"`
	Title      string `json:"title"`
	PosterURL  string `json:"posterUrl"`
	Count      int64  `json:"count"`
}

func (t SearchTrend) Trending() TrendingMovie {
	return TrendingMovie{
		SearchTerm: t.SearchTerm,
		MovieID:    t.MovieID,
		Title:      t.Title,
		PosterURL:  t.PosterURL,
		Count:      t.Count,
	}
}
