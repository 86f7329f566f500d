// Package server wires every HTTP route onto one gin engine.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moviedex/internal/apperr"
	"moviedex/internal/auth"
	"moviedex/internal/logging"
	"moviedex/internal/metrics"
	"moviedex/internal/movies"
	"moviedex/internal/saved"
	synchub "moviedex/internal/sync"
	"moviedex/internal/trends"
	"moviedex/pkg/utils"
)

type Deps struct {
	Config  utils.Config
	DB      *sql.DB
	Catalog movies.Catalog
	Hub     *synchub.Hub
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// App holds the assembled services so other surfaces (gRPC) can reuse them.
type App struct {
	Router *gin.Engine
	Saved  *saved.Engine
	Trends *trends.Aggregator
}

func New(d Deps) *App {
	apperr.UseJSONFieldNames()
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}

	var hub saved.Notifier
	if d.Hub != nil {
		hub = d.Hub
	}
	savedEngine := saved.NewEngine(saved.NewRepo(d.DB), hub, d.Metrics, log)
	aggregator := trends.NewAggregator(trends.NewRepo(d.DB), hub, d.Metrics, log)

	tokens := auth.NewTokens(d.Config.Auth)
	authHandler := auth.NewHandler(auth.NewRepo(d.DB), tokens, d.Config.Auth.CookieSecure, log)
	requireSession := auth.RequireSession(authHandler.Resolver)

	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(logging.Component(log, "http")))
	r.Use(d.Metrics.Middleware())
	r.Use(CORS(d.Config.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readyHandler(d.DB, d.Hub, logging.Component(log, "ready")))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.Hub != nil {
		r.GET("/ws", synchub.WSHandler(d.Hub, d.Config.CORSOrigins, log))
	}

	authHandler.RegisterRoutes(r.Group(""))

	movies.NewHandler(d.Catalog, aggregator, savedEngine, log).
		RegisterRoutes(r.Group(""), requireSession)

	protected := r.Group("")
	protected.Use(requireSession)
	saved.NewHandler(savedEngine, log).RegisterRoutes(protected)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return &App{Router: r, Saved: savedEngine, Trends: aggregator}
}

func readyHandler(db *sql.DB, hub *synchub.Hub, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats synchub.Stats
		if hub != nil {
			stats = hub.Stats()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	}
}

// CORS allows the listed origins with credentials. An empty list allows any
// origin without credentials.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case len(allowed) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+logging.RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
