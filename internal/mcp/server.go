// Package mcp exposes movie search over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/query"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

// MetadataClient is the subset of the TMDb client used by the tools.
type MetadataClient interface {
	SearchMovies(ctx context.Context, query string, page int) (*tmdb.SearchPage, error)
	GetMovie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
}

// Deps holds dependencies for MCP tool handlers.
type Deps struct {
	TMDb MetadataClient
	// Query tunes the search result cache; zero values select the defaults.
	Query query.Options
}

// Server wraps an MCP SDK server with movie search tool handlers.
type Server struct {
	server   *mcpsdk.Server
	deps     Deps
	searches *query.Client[*tmdb.SearchPage]
	logger   *slog.Logger
}

// NewServer creates an MCP server with all tools registered.
func NewServer(deps Deps, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	s := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "moviesearch",
			Version: version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	qopts := deps.Query
	qopts.Logger = logger
	srv := &Server{
		server:   s,
		deps:     deps,
		searches: query.New[*tmdb.SearchPage](qopts),
		logger:   logger,
	}
	srv.registerTools()
	return srv
}

// ServeStdio runs the MCP server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// MCPServer returns the underlying MCP SDK server (for testing).
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

func (s *Server) registerTools() {
	s.server.AddTool(searchMoviesTool(), s.handleSearchMovies)
	s.server.AddTool(getMovieDetailsTool(), s.handleGetMovieDetails)
}

func searchMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name: "search_movies",
		Description: "Search TMDb for movies by title. Returns one page of results (20 per page) " +
			"with TMDb IDs, titles, years and ratings, plus the total page count.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The movie title to search for",
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "1-based results page (at most 500), defaults to 1",
				},
			},
			"required": []any{"query"},
		},
	}
}

func getMovieDetailsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_movie_details",
		Description: "Get detailed information about a movie by its TMDb ID. Returns runtime, genres, tagline, full overview, and ratings.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tmdb_id": map[string]any{
					"type":        "integer",
					"description": "The TMDb ID of the movie",
				},
			},
			"required": []any{"tmdb_id"},
		},
	}
}

// movieSummary is the compact per-result shape returned to clients.
type movieSummary struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Year        int     `json:"year,omitempty"`
	Rating      float64 `json:"rating"`
	Overview    string  `json:"overview,omitempty"`
	PosterURL   string  `json:"poster_url,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
}

type searchResult struct {
	Query        string         `json:"query"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Results      []movieSummary `json:"results"`
}

func (s *Server) handleSearchMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.TMDb == nil {
		return toolError("TMDb client not configured"), nil
	}

	var args struct {
		Query string `json:"query"`
		Page  int    `json:"page"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	key := query.Key{Query: strings.TrimSpace(args.Query), Page: args.Page}
	if key.Empty() {
		return toolError("search_movies requires a non-empty 'query' string argument"), nil
	}
	if key.Page == 0 {
		key.Page = 1
	}
	if key.Page < 1 || key.Page > tmdb.MaxPage {
		return toolError(fmt.Sprintf("page must be between 1 and %d", tmdb.MaxPage)), nil
	}

	page, err := s.searches.Fetch(ctx, key, func(ctx context.Context) (*tmdb.SearchPage, error) {
		return s.deps.TMDb.SearchMovies(ctx, key.Query, key.Page)
	})
	if err != nil {
		s.logger.Warn("mcp search failed", slog.String("key", key.String()), slog.String("error", err.Error()))
		return toolError(fmt.Sprintf("%s (%v)", search.UserMessage(search.Classify(err)), err)), nil
	}

	res := searchResult{
		Query:        key.Query,
		Page:         key.Page,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
		Results:      make([]movieSummary, 0, len(page.Results)),
	}
	for _, m := range page.Results {
		res.Results = append(res.Results, movieSummary{
			ID:          m.ID,
			Title:       m.Title,
			Year:        m.Year(),
			Rating:      m.VoteAverage,
			Overview:    m.Overview,
			PosterURL:   tmdb.PosterURL(m.PosterPath, "w500"),
			ReleaseDate: m.ReleaseDate,
		})
	}
	return toolJSON(res)
}

func (s *Server) handleGetMovieDetails(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.TMDb == nil {
		return toolError("TMDb client not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}
	if tmdbID <= 0 {
		return toolError("tmdb_id must be positive"), nil
	}

	details, err := s.deps.TMDb.GetMovie(ctx, tmdbID)
	if err != nil {
		return toolError(fmt.Sprintf("tmdb get movie failed: %v", err)), nil
	}
	return toolJSON(details)
}

// toolJSON marshals v to JSON and returns it as text content.
func toolJSON(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// toolError returns a tool result indicating an error.
func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

// extractIntFromArgs extracts an integer argument from raw JSON arguments.
func extractIntFromArgs(raw json.RawMessage, key string) (int, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return 0, fmt.Errorf("invalid arguments: %w", err)
	}

	val, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}

	switch v := val.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, val)
	}
}
