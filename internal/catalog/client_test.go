package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviedex/internal/apperr"
)

const testBase = "http://tmdb.test/3"

func newTestClient(t *testing.T, ttl time.Duration) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c := New(Options{
		BaseURL:    testBase,
		APIKey:     "test-token",
		CacheTTL:   ttl,
		RetryDelay: time.Millisecond,
		HTTPClient: &http.Client{Transport: mt},
	})
	return c, mt
}

func searchBody() map[string]any {
	return map[string]any{
		"page": 1,
		"results": []map[string]any{
			{"id": 415, "title": "Batman", "poster_path": "/batman.jpg", "vote_average": 7.2},
			{"id": 268, "title": "Batman Returns", "poster_path": "/returns.jpg"},
		},
		"total_pages":   1,
		"total_results": 2,
	}
}

func TestSearchCatalog(t *testing.T) {
	c, mt := newTestClient(t, 0)

	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			assert.Equal(t, "batman", req.URL.Query().Get("query"))
			assert.Equal(t, "2", req.URL.Query().Get("page"))
			return httpmock.NewJsonResponse(http.StatusOK, searchBody())
		})

	page, err := c.SearchCatalog(context.Background(), "  batman ", 2)
	require.NoError(t, err)

	require.Len(t, page.Results, 2)
	assert.Equal(t, int64(415), page.Results[0].ID)
	assert.Equal(t, "Batman", page.Results[0].Title)
	assert.Equal(t, 2, page.TotalResults)
}

func TestSearchCatalogEmptyResults(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		httpmock.NewStringResponder(http.StatusOK, `{"page":1,"total_pages":0,"total_results":0}`))

	page, err := c.SearchCatalog(context.Background(), "zzzzqqq", 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
}

func TestSearchCatalogBlankQuery(t *testing.T) {
	c, mt := newTestClient(t, 0)

	_, err := c.SearchCatalog(context.Background(), "   ", 1)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	c, mt := newTestClient(t, 0)

	calls := 0
	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, searchBody())
		})

	page, err := c.SearchCatalog(context.Background(), "batman", 1)
	require.NoError(t, err)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, 3, calls)
}

func TestUpstreamFailureSurfacesAsUnavailable(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/discover/movie",
		httpmock.NewStringResponder(http.StatusInternalServerError, "down"))

	_, err := c.DiscoverPopular(context.Background(), 1)

	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
	assert.Equal(t, 3, mt.GetTotalCallCount())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"status_message":"Invalid API key"}`))

	_, err := c.SearchCatalog(context.Background(), "batman", 1)

	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestDetailsNotFound(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/movie/999999",
		httpmock.NewStringResponder(http.StatusNotFound, `{"status_code":34}`))

	_, err := c.GetCatalogMovieDetails(context.Background(), 999999)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestListEndpoint404IsUpstreamFailure(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		httpmock.NewStringResponder(http.StatusNotFound, `{"status_code":34}`))
	mt.RegisterResponder(http.MethodGet, testBase+"/discover/movie",
		httpmock.NewStringResponder(http.StatusNotFound, `{"status_code":34}`))

	_, err := c.SearchCatalog(context.Background(), "batman", 1)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))

	_, err = c.DiscoverPopular(context.Background(), 1)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))

	assert.Equal(t, 2, mt.GetTotalCallCount())
}

func TestDetailsAreCached(t *testing.T) {
	c, mt := newTestClient(t, time.Minute)
	mt.RegisterResponder(http.MethodGet, testBase+"/movie/415",
		httpmock.NewStringResponder(http.StatusOK, `{"id":415,"title":"Batman","runtime":126,"genres":[{"id":28,"name":"Action"}]}`))

	for i := 0; i < 3; i++ {
		d, err := c.GetCatalogMovieDetails(context.Background(), 415)
		require.NoError(t, err)
		assert.Equal(t, "Batman", d.Title)
		assert.Equal(t, 126, d.Runtime)
	}
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestDiscoverDefaultsToPopularity(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/discover/movie",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "popularity.desc", req.URL.Query().Get("sort_by"))
			assert.Equal(t, "1", req.URL.Query().Get("page"))
			return httpmock.NewJsonResponse(http.StatusOK, searchBody())
		})

	page, err := c.DiscoverPopular(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, page.Results, 2)
}

func TestCanceledContextStopsRetries(t *testing.T) {
	c, mt := newTestClient(t, 0)
	mt.RegisterResponder(http.MethodGet, testBase+"/search/movie",
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SearchCatalog(ctx, "batman", 1)
	assert.Error(t, err)
	assert.LessOrEqual(t, mt.GetTotalCallCount(), 1)
}

func TestImageURL(t *testing.T) {
	c, _ := newTestClient(t, 0)

	assert.Equal(t, "https://image.tmdb.org/t/p/w500/batman.jpg", c.ImageURL("/batman.jpg"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/batman.jpg", c.ImageURL("batman.jpg"))
	assert.Equal(t, PlaceholderImage, c.ImageURL(""))
	assert.Equal(t, "https://cdn.test/x.png", c.ImageURL("https://cdn.test/x.png"))
}
