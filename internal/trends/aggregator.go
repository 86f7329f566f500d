// Package trends keeps the global leaderboard of search terms.
package trends

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"moviedex/internal/logging"
	"moviedex/internal/metrics"
	synchub "moviedex/internal/sync"
	"moviedex/pkg/models"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// TopResult is the first catalog hit of a search.
type TopResult struct {
	MovieID   int64
	Title     string
	PosterURL string
}

// Notifier receives events in commit order. Publish must not block.
type Notifier interface {
	Publish(ev synchub.Event)
}

type Aggregator struct {
	Repo    *Repo
	Hub     Notifier
	Metrics *metrics.Metrics

	log *slog.Logger
	now func() time.Time
}

func NewAggregator(repo *Repo, hub Notifier, m *metrics.Metrics, log *slog.Logger) *Aggregator {
	return &Aggregator{
		Repo:    repo,
		Hub:     hub,
		Metrics: m,
		log:     logging.Component(log, "trends"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeTerm trims, collapses inner whitespace and lowercases a search
// term so "  The  Batman" and "the batman" share one counter.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// RecordSearch bumps the counter for term. Searches without results and
// blank terms are ignored.
func (a *Aggregator) RecordSearch(ctx context.Context, term string, top *TopResult) error {
	key := NormalizeTerm(term)
	if top == nil || key == "" {
		a.Metrics.TrendRecord("skipped")
		return nil
	}

	t, err := a.Repo.Upsert(ctx, key, *top, a.now())
	if err != nil {
		a.Metrics.TrendRecord("error")
		return err
	}
	a.Metrics.TrendRecord("recorded")
	a.log.Debug("search recorded", "term", t.SearchTerm, "count", t.Count)

	if a.Hub != nil {
		ev := synchub.TrendEvent{
			Type:       synchub.EventTrendUpdated,
			SearchTerm: t.SearchTerm,
			MovieID:    t.MovieID,
			Title:      t.Title,
			Count:      t.Count,
			At:         t.UpdatedAt,
		}
		a.Hub.Publish(ev)
	}
	return nil
}

// TopTrending returns at most limit trends. Non-positive limits use
// DefaultLimit; larger ones are capped at MaxLimit.
func (a *Aggregator) TopTrending(ctx context.Context, limit int) ([]models.TrendingMovie, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	rows, err := a.Repo.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.TrendingMovie, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Trending())
	}
	return out, nil
}
