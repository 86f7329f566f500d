// Package catalog is the gateway to the TMDB movie catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/patrickmn/go-cache"

	"moviedex/internal/apperr"
	"moviedex/internal/logging"
	"moviedex/internal/metrics"
	"moviedex/pkg/models"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"

	defaultAttempts   = 3
	defaultRetryDelay = 200 * time.Millisecond
	maxErrorBody      = 512
)

var errNotFound = errors.New("catalog: not found")

// statusError is a non-2xx answer from the provider.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb request failed (%d): %s", e.Code, e.Body)
}

type Options struct {
	BaseURL      string
	ImageBaseURL string
	APIKey       string
	Timeout      time.Duration
	// CacheTTL <= 0 disables caching of details and discover pages.
	CacheTTL   time.Duration
	Attempts   uint
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	baseURL      string
	imageBaseURL string
	apiKey       string
	httpClient   *http.Client
	cache        *cache.Cache
	attempts     uint
	retryDelay   time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(opts.ImageBaseURL, "/"),
		apiKey:       opts.APIKey,
		httpClient:   opts.HTTPClient,
		attempts:     opts.Attempts,
		retryDelay:   opts.RetryDelay,
		log:          logging.Component(opts.Logger, "catalog"),
		metrics:      opts.Metrics,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.imageBaseURL == "" {
		c.imageBaseURL = DefaultImageBaseURL
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.attempts == 0 {
		c.attempts = defaultAttempts
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if opts.CacheTTL > 0 {
		c.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

// SearchCatalog runs a title search. Results keep the provider's order; an
// empty result list is not an error. Searches bypass the cache.
func (c *Client) SearchCatalog(ctx context.Context, query string, page int) (*models.CatalogPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Validation error", apperr.Field("q", "Query is required"))
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	setPage(params, page)

	var out models.CatalogPage
	if err := c.get(ctx, "search", "/search/movie", params, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []models.CatalogMovie{}
	}
	return &out, nil
}

func (c *Client) GetCatalogMovieDetails(ctx context.Context, id int64) (*models.MovieDetails, error) {
	if id <= 0 {
		return nil, apperr.Validation("Validation error", apperr.Field("id", "must be greater than 0"))
	}

	key := "details:" + strconv.FormatInt(id, 10)
	if v, ok := c.cached(key, "details"); ok {
		d := v.(models.MovieDetails)
		return &d, nil
	}

	var out models.MovieDetails
	if err := c.get(ctx, "details", "/movie/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	c.store(key, out)
	return &out, nil
}

func (c *Client) DiscoverPopular(ctx context.Context, page int) (*models.CatalogPage, error) {
	if page <= 0 {
		page = 1
	}

	key := "discover:" + strconv.Itoa(page)
	if v, ok := c.cached(key, "discover"); ok {
		p := v.(models.CatalogPage)
		return &p, nil
	}

	params := url.Values{}
	params.Set("sort_by", "popularity.desc")
	setPage(params, page)

	var out models.CatalogPage
	if err := c.get(ctx, "discover", "/discover/movie", params, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []models.CatalogMovie{}
	}
	c.store(key, out)
	return &out, nil
}

func (c *Client) cached(key, endpoint string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		c.metrics.CatalogCacheHit(endpoint)
	}
	return v, ok
}

func (c *Client) store(key string, v any) {
	if c.cache != nil {
		c.cache.SetDefault(key, v)
	}
}

// get performs a GET with retries on transport errors, 429 and 5xx. Every
// failure leaves as an apperr: NotFound for a 404 from the details endpoint,
// UpstreamUnavailable otherwise.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	start := time.Now()
	err := retry.Do(
		func() error { return c.do(ctx, u, out) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("retrying catalog request", "endpoint", endpoint, "attempt", n+1, "error", err)
		}),
	)

	switch {
	case err == nil:
		c.metrics.CatalogRequest(endpoint, "ok", time.Since(start))
		return nil
	case errors.Is(err, errNotFound) && endpoint == "details":
		c.metrics.CatalogRequest(endpoint, "not_found", time.Since(start))
		return apperr.NotFound("movie not found")
	default:
		c.metrics.CatalogRequest(endpoint, "error", time.Since(start))
		c.log.Error("catalog request failed", "endpoint", endpoint, "error", err)
		return apperr.Upstream("movie catalog unavailable", err)
	}
}

func (c *Client) do(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Unrecoverable(ctx.Err())
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return retry.Unrecoverable(errNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return serr
		}
		return retry.Unrecoverable(serr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func setPage(params url.Values, page int) {
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
}
