// Package movies serves the public catalog routes and records search trends.
package movies

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"moviedex/internal/apperr"
	"moviedex/internal/auth"
	"moviedex/internal/logging"
	"moviedex/internal/saved"
	"moviedex/internal/trends"
	"moviedex/pkg/models"
)

type Catalog interface {
	SearchCatalog(ctx context.Context, query string, page int) (*models.CatalogPage, error)
	GetCatalogMovieDetails(ctx context.Context, id int64) (*models.MovieDetails, error)
	DiscoverPopular(ctx context.Context, page int) (*models.CatalogPage, error)
	ImageURL(path string) string
}

type Trends interface {
	RecordSearch(ctx context.Context, term string, top *trends.TopResult) error
	TopTrending(ctx context.Context, limit int) ([]models.TrendingMovie, error)
}

type StatusReader interface {
	GetStatus(ctx context.Context, userID string, movieID int64) (models.SavedStatus, error)
}

type Handler struct {
	Catalog Catalog
	Trends  Trends
	Saved   StatusReader

	log *slog.Logger
}

func NewHandler(catalog Catalog, tr Trends, st StatusReader, log *slog.Logger) *Handler {
	return &Handler{Catalog: catalog, Trends: tr, Saved: st, log: logging.Component(log, "movies")}
}

// RegisterRoutes mounts /movies/*. requireSession guards saved-status.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	g := rg.Group("/movies")
	g.GET("/search", h.search)
	g.GET("/trending", h.trending)
	g.GET("/discover", h.discover)
	g.GET("/:id", h.details)
	g.GET("/:id/saved-status", requireSession, h.savedStatus)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		apperr.Respond(c, h.log, apperr.Validation("Validation error", apperr.Field("q", "Query is required")))
		return
	}

	page, err := h.Catalog.SearchCatalog(c.Request.Context(), q, queryInt(c, "page", 1))
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}

	var top *trends.TopResult
	if len(page.Results) > 0 {
		first := page.Results[0]
		top = &trends.TopResult{
			MovieID:   first.ID,
			Title:     first.Title,
			PosterURL: h.Catalog.ImageURL(first.PosterPath),
		}
	}
	// a lost trend record must not fail the search
	if err := h.Trends.RecordSearch(c.Request.Context(), q, top); err != nil {
		h.log.Warn("record search trend failed", "term", q, "error", err)
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) trending(c *gin.Context) {
	items, err := h.Trends.TopTrending(c.Request.Context(), queryInt(c, "limit", trends.DefaultLimit))
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("load trending", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) discover(c *gin.Context) {
	page, err := h.Catalog.DiscoverPopular(c.Request.Context(), queryInt(c, "page", 1))
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) details(c *gin.Context) {
	id, err := movieID(c)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}

	d, err := h.Catalog.GetCatalogMovieDetails(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) savedStatus(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}
	id, err := movieID(c)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}

	st, err := h.Saved.GetStatus(c.Request.Context(), p.UserID, id)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorite": st.IsFavorite, "isWatched": st.IsWatched})
}

func movieID(c *gin.Context) (int64, error) {
	id, err := saved.ParseMovieID(c.Param("id"))
	if err != nil {
		return 0, apperr.Validation("Validation error", apperr.Field("id", "must be a positive integer"))
	}
	return id, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return def
	}
	return n
}
