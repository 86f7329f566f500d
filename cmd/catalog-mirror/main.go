// Command catalog-mirror serves a TMDB-shaped catalog from a local JSON file so
// the API can run without a TMDB account. Point MOVIEDEX_TMDB_BASE_URL at it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"moviedex/internal/logging"
	"moviedex/pkg/models"
	"moviedex/pkg/utils"
)

const pageSize = 20

func main() {
	var (
		addr     = flag.String("addr", ":8099", "listen address")
		dataPath = flag.String("data", "data/catalog.json", "JSON array of movie details")
	)
	flag.Parse()

	log, closer := logging.New(utils.LoadConfig().Log)
	defer closer.Close()

	movies, err := loadCatalog(*dataPath)
	if err != nil {
		log.Error("load catalog failed", "path", *dataPath, "err", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(log))
	newMirror(movies).register(r.Group("/3"))

	log.Info("catalog mirror listening", "addr", *addr, "movies", len(movies))
	if err := r.Run(*addr); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func loadCatalog(path string) ([]models.MovieDetails, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var movies []models.MovieDetails
	if err := json.Unmarshal(b, &movies); err != nil {
		return nil, fmt.Errorf("%s: invalid JSON: %w", path, err)
	}
	return movies, nil
}

type mirror struct {
	movies []models.MovieDetails
	byID   map[int64]models.MovieDetails
}

func newMirror(movies []models.MovieDetails) *mirror {
	m := &mirror{movies: movies, byID: make(map[int64]models.MovieDetails, len(movies))}
	for _, mv := range movies {
		m.byID[mv.ID] = mv
	}
	return m
}

func (m *mirror) register(rg *gin.RouterGroup) {
	rg.GET("/search/movie", m.search)
	rg.GET("/discover/movie", m.discover)
	rg.GET("/movie/:id", m.details)
}

func (m *mirror) search(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("query")))
	var hits []models.CatalogMovie
	for _, mv := range m.movies {
		if q != "" && strings.Contains(strings.ToLower(mv.Title), q) {
			hits = append(hits, listItem(mv))
		}
	}
	c.JSON(http.StatusOK, paginate(hits, pageParam(c)))
}

func (m *mirror) discover(c *gin.Context) {
	all := make([]models.CatalogMovie, 0, len(m.movies))
	for _, mv := range m.movies {
		all = append(all, listItem(mv))
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Popularity > all[j].Popularity })
	c.JSON(http.StatusOK, paginate(all, pageParam(c)))
}

func (m *mirror) details(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	mv, ok := m.byID[id]
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"status_code": 34, "status_message": "The resource you requested could not be found."})
		return
	}
	c.JSON(http.StatusOK, mv)
}

func listItem(d models.MovieDetails) models.CatalogMovie {
	ids := make([]int, 0, len(d.Genres))
	for _, g := range d.Genres {
		ids = append(ids, g.ID)
	}
	return models.CatalogMovie{
		ID:               d.ID,
		Title:            d.Title,
		OriginalTitle:    d.OriginalTitle,
		Overview:         d.Overview,
		ReleaseDate:      d.ReleaseDate,
		GenreIDs:         ids,
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
		Popularity:       d.Popularity,
		PosterPath:       d.PosterPath,
		BackdropPath:     d.BackdropPath,
		OriginalLanguage: d.OriginalLanguage,
	}
}

func pageParam(c *gin.Context) int {
	p, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

func paginate(items []models.CatalogMovie, page int) models.CatalogPage {
	total := len(items)
	pages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	out := []models.CatalogMovie{}
	if start < total {
		end := min(start+pageSize, total)
		out = items[start:end]
	}
	return models.CatalogPage{Page: page, Results: out, TotalPages: pages, TotalResults: total}
}
