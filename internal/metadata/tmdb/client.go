package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vadimtrunov/MovieSearch/internal/httpclient"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/"

	// MaxPage is the highest page TMDb serves for search endpoints.
	MaxPage = 500
)

// ErrMissingToken is returned before any request is made when no API
// read access token is configured.
var ErrMissingToken = errors.New("tmdb token is not defined: set tmdb.token in the config file or MOVIESEARCH_TMDB_TOKEN")

// Options tune optional search parameters.
type Options struct {
	BaseURL      string
	Language     string
	IncludeAdult bool
	HTTP         httpclient.Config
}

// Client is a TMDb API v3 client authenticated with a bearer token.
type Client struct {
	baseURL      string
	token        string
	language     string
	includeAdult bool
	http         *httpclient.Client
	logger       *slog.Logger
}

// New creates a new TMDb client. An empty token is accepted here; every
// call then fails with ErrMissingToken without touching the network.
func New(token string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTP == (httpclient.Config{}) {
		opts.HTTP = httpclient.DefaultConfig()
	}
	return &Client{
		baseURL:      opts.BaseURL,
		token:        token,
		language:     opts.Language,
		includeAdult: opts.IncludeAdult,
		http:         httpclient.New(opts.HTTP, logger),
		logger:       logger,
	}
}

// NewForTest creates a TMDb client with a custom base URL for testing.
// Exported because it is used by cross-package tests.
func NewForTest(baseURL, token string, logger *slog.Logger) *Client {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 1
	return New(token, Options{BaseURL: baseURL, HTTP: cfg}, logger)
}

// SearchMovies returns one page of movies matching query. Pages start at 1.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{
		"query":         {query},
		"page":          {strconv.Itoa(page)},
		"include_adult": {strconv.FormatBool(c.includeAdult)},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	var resp SearchPage
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	if resp.TotalPages > MaxPage {
		resp.TotalPages = MaxPage
	}
	if resp.Results == nil {
		resp.Results = []Movie{}
	}

	c.logger.Debug("tmdb search",
		slog.Int("page", resp.Page),
		slog.Int("results", len(resp.Results)),
		slog.Int("total_pages", resp.TotalPages),
	)
	return &resp, nil
}

// GetMovie retrieves full details for a movie by TMDb ID.
func (c *Client) GetMovie(ctx context.Context, id int) (*MovieDetails, error) {
	params := url.Values{}
	if c.language != "" {
		params.Set("language", c.language)
	}

	var details MovieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), params, &details); err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &details, nil
}

// PosterURL returns the full URL for a poster path.
func PosterURL(posterPath, size string) string {
	if posterPath == "" {
		return ""
	}
	return imageBaseURL + size + posterPath
}

// get performs an authenticated GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
