package saved

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"moviedex/internal/apperr"
	"moviedex/internal/auth"
	"moviedex/internal/logging"
)

type Handler struct {
	Engine *Engine
	log    *slog.Logger
}

func NewHandler(engine *Engine, log *slog.Logger) *Handler {
	return &Handler{Engine: engine, log: logging.Component(log, "saved-http")}
}

// RegisterRoutes expects rg to already require a session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/saved", h.list)
	rg.POST("/saved", h.favorite)
	rg.GET("/saved/:movieId", h.status)
	rg.PATCH("/saved/:movieId/watched", h.setWatched)
	rg.DELETE("/saved/:movieId", h.unfavorite)
}

type favoriteReq struct {
	TMDBMovieID int64    `json:"tmdbMovieId" binding:"required,gt=0"`
	Title       string   `json:"title" binding:"required"`
	PosterPath  string   `json:"posterPath" binding:"required"`
	ReleaseDate string   `json:"releaseDate" binding:"required"`
	VoteAverage *float64 `json:"voteAverage" binding:"required"`
}

type watchedReq struct {
	IsWatched *bool `json:"isWatched" binding:"required"`
}

func (h *Handler) list(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}

	filter, err := ParseTab(c.Query("tab"))
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}

	items, err := h.Engine.ListSaved(c.Request.Context(), p.UserID, filter)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) status(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}
	movieID, ok := h.movieID(c)
	if !ok {
		return
	}

	st, err := h.Engine.GetStatus(c.Request.Context(), p.UserID, movieID)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) favorite(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}

	var req favoriteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, h.log, apperr.FromBinding(err))
		return
	}

	snap, err := h.Engine.Favorite(c.Request.Context(), p.UserID, FavoriteInput{
		TMDBMovieID: req.TMDBMovieID,
		Title:       req.Title,
		PosterPath:  req.PosterPath,
		ReleaseDate: req.ReleaseDate,
		VoteAverage: *req.VoteAverage,
	})
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) setWatched(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}
	movieID, ok := h.movieID(c)
	if !ok {
		return
	}

	var req watchedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, h.log, apperr.FromBinding(err))
		return
	}

	snap, err := h.Engine.SetWatched(c.Request.Context(), p.UserID, movieID, *req.IsWatched)
	if err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) unfavorite(c *gin.Context) {
	p := auth.MustGetPrincipal(c)
	if p == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}
	movieID, ok := h.movieID(c)
	if !ok {
		return
	}

	if err := h.Engine.Unfavorite(c.Request.Context(), p.UserID, movieID); err != nil {
		apperr.Respond(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) movieID(c *gin.Context) (int64, bool) {
	id, err := ParseMovieID(c.Param("movieId"))
	if err != nil {
		apperr.Respond(c, h.log, err)
		return 0, false
	}
	return id, true
}

// ParseMovieID parses a positive TMDB id from a path segment.
func ParseMovieID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Validation error",
			apperr.Field("tmdbMovieId", "must be a positive integer"))
	}
	return id, nil
}
