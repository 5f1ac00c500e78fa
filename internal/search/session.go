// Package search holds the search session controller: query and page
// state, fetch orchestration over the keyed query cache, the derived view
// state and the selected movie.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/query"
)

// Fetcher performs the remote paginated search.
type Fetcher interface {
	SearchMovies(ctx context.Context, query string, page int) (*tmdb.SearchPage, error)
}

// Notifier is told when a user-initiated search completed without results.
type Notifier interface {
	NotifyEmpty(query string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(query string)

// NotifyEmpty calls f(query).
func (f NotifierFunc) NotifyEmpty(query string) { f(query) }

// Status is the fetch status of the current (query, page) pair.
type Status int

const (
	StatusIdle Status = iota
	// StatusLoading: a request is in flight and nothing can be shown yet.
	StatusLoading
	// StatusFetching: a request is in flight and a previous page is shown meanwhile.
	StatusFetching
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusFetching:
		return "fetching"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	StaleTime   time.Duration
	CacheSize   int
	PageRange   int
	MarginPages int
	Notifier    Notifier
	Logger      *slog.Logger
	// Now overrides the clock of the query cache; used by tests.
	Now func() time.Time
}

// Request is a fetch issued by the session. Run it off the event loop and
// hand the Result back to Session.Resolve on the loop.
type Request struct {
	Key query.Key
	seq uint64
	run func(ctx context.Context) (*tmdb.SearchPage, error)
}

// Run performs the fetch. It does not touch session state and is safe to
// call from any goroutine.
func (r *Request) Run(ctx context.Context) Result {
	page, err := r.run(ctx)
	return Result{Key: r.Key, Page: page, Err: err, seq: r.seq}
}

// Result is the outcome of a Request.
type Result struct {
	Key  query.Key
	Page *tmdb.SearchPage
	Err  error
	seq  uint64
}

type pendingRequest struct {
	key query.Key
	seq uint64
}

// Session is the search session controller. It is owned by a single event
// loop and must not be used from several goroutines at once; only
// Request.Run may execute elsewhere.
type Session struct {
	fetcher  Fetcher
	cache    *query.Client[*tmdb.SearchPage]
	notifier Notifier
	logger   *slog.Logger

	pageRange   int
	marginPages int

	query    string
	page     int
	searched bool

	status Status
	err    error

	// data is the committed page for the current pair; lastGood is the most
	// recent successful page of any pair and serves as placeholder.
	data        *tmdb.SearchPage
	lastGood    *tmdb.SearchPage
	lastGoodKey query.Key

	seq     uint64
	pending *pendingRequest

	selected *tmdb.Movie
}

// NewSession creates a session in the idle state.
func NewSession(fetcher Fetcher, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(string) {})
	}
	if opts.PageRange <= 0 {
		opts.PageRange = DefaultPageRange
	}
	if opts.MarginPages <= 0 {
		opts.MarginPages = DefaultMarginPages
	}
	return &Session{
		fetcher: fetcher,
		cache: query.New[*tmdb.SearchPage](query.Options{
			StaleTime: opts.StaleTime,
			CacheSize: opts.CacheSize,
			Logger:    opts.Logger,
			Now:       opts.Now,
		}),
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		pageRange:   opts.PageRange,
		marginPages: opts.MarginPages,
		page:        1,
	}
}

// SubmitQuery starts a new search: the query is trimmed, the page resets to
// 1. It returns the request to run, or nil when nothing has to be fetched
// (empty query, identical request in flight, or a fresh cached result that
// was committed immediately).
func (s *Session) SubmitQuery(raw string) *Request {
	s.query = strings.TrimSpace(raw)
	s.page = 1
	if s.query != "" {
		s.searched = true
	}
	return s.refresh()
}

// ChangePage moves to page n of the current query. Pages outside the known
// range and the current page are ignored.
func (s *Session) ChangePage(n int) *Request {
	if s.query == "" || n < 1 || n == s.page {
		return nil
	}
	if total := s.knownTotalPages(); total > 0 && n > total {
		s.logger.Debug("ignoring out-of-range page", slog.Int("page", n), slog.Int("total", total))
		return nil
	}
	if n > tmdb.MaxPage {
		return nil
	}
	s.page = n
	return s.refresh()
}

// Retry refetches the current pair, bypassing the staleness window.
func (s *Session) Retry() *Request {
	key := s.key()
	if key.Empty() {
		return nil
	}
	s.cache.Invalidate(key)
	s.pending = nil
	return s.refresh()
}

// Resolve commits the result of a request if it is still the latest one
// and reports whether it was committed. Results of superseded requests
// are discarded.
func (s *Session) Resolve(res Result) bool {
	if s.pending == nil || res.seq != s.pending.seq {
		s.logger.Debug("discarding superseded result", slog.String("key", res.Key.String()))
		return false
	}
	s.pending = nil

	if res.Err != nil {
		s.status = StatusError
		s.err = res.Err
		s.data = nil
		s.logger.Warn("search failed",
			slog.String("key", res.Key.String()),
			slog.String("kind", Classify(res.Err).String()),
			slog.String("error", res.Err.Error()),
		)
		return true
	}

	s.commit(res.Key, res.Page)
	return true
}

// Select opens the detail view for a snapshot of m.
func (s *Session) Select(m tmdb.Movie) {
	s.selected = &m
}

// Close closes the detail view.
func (s *Session) Close() {
	s.selected = nil
}

// Selected returns the movie shown in the detail view, if any.
func (s *Session) Selected() (tmdb.Movie, bool) {
	if s.selected == nil {
		return tmdb.Movie{}, false
	}
	return *s.selected, true
}

// Query returns the current search string.
func (s *Session) Query() string { return s.query }

// Page returns the current page number.
func (s *Session) Page() int { return s.page }

// Status returns the fetch status of the current pair.
func (s *Session) Status() Status { return s.status }

// Err returns the last fetch error while the status is StatusError.
func (s *Session) Err() error { return s.err }

// IsLoading reports a first load with nothing to show.
func (s *Session) IsLoading() bool { return s.status == StatusLoading }

// IsFetching reports any request in flight.
func (s *Session) IsFetching() bool {
	return s.status == StatusLoading || s.status == StatusFetching
}

// IsError reports whether the last fetch failed.
func (s *Session) IsError() bool { return s.status == StatusError }

// Displayed returns the page to render: the current pair's page, or while
// it loads the previous successful page (or an empty placeholder).
func (s *Session) Displayed() *tmdb.SearchPage {
	switch s.status {
	case StatusSuccess:
		return s.data
	case StatusLoading, StatusFetching:
		if s.lastGood != nil {
			return s.lastGood
		}
		return &tmdb.SearchPage{Page: 1, Results: []tmdb.Movie{}}
	case StatusError:
		return s.lastGood
	default:
		return nil
	}
}

// Pagination returns the pagination state bound to the current page.
func (s *Session) Pagination() Pagination {
	total := 0
	if p := s.Displayed(); p != nil {
		total = p.TotalPages
	}
	return Pagination{Current: s.page, Total: total}
}

func (s *Session) key() query.Key {
	return query.Key{Query: s.query, Page: s.page}
}

// refresh brings the fetch state in line with the current pair.
func (s *Session) refresh() *Request {
	key := s.key()
	if key.Empty() {
		s.status = StatusIdle
		s.err = nil
		s.data = nil
		s.pending = nil
		return nil
	}
	if s.pending != nil && s.pending.key == key {
		return nil
	}
	if page, ok := s.cache.Peek(key); ok {
		s.pending = nil
		s.commit(key, page)
		return nil
	}

	s.seq++
	s.pending = &pendingRequest{key: key, seq: s.seq}
	s.err = nil
	s.data = nil
	if s.lastGood != nil {
		s.status = StatusFetching
	} else {
		s.status = StatusLoading
	}

	cache, fetcher := s.cache, s.fetcher
	return &Request{
		Key: key,
		seq: s.seq,
		run: func(ctx context.Context) (*tmdb.SearchPage, error) {
			return cache.Fetch(ctx, key, func(ctx context.Context) (*tmdb.SearchPage, error) {
				return fetcher.SearchMovies(ctx, key.Query, key.Page)
			})
		},
	}
}

func (s *Session) commit(key query.Key, page *tmdb.SearchPage) {
	if page == nil {
		page = &tmdb.SearchPage{Page: key.Page, Results: []tmdb.Movie{}}
	}
	s.status = StatusSuccess
	s.err = nil
	s.data = page
	s.lastGood = page
	s.lastGoodKey = key

	if page.Empty() && s.searched {
		s.notifier.NotifyEmpty(key.Query)
	}
}

// knownTotalPages is the page count of the current query, 0 if unknown.
func (s *Session) knownTotalPages() int {
	if s.lastGood == nil || s.lastGoodKey.Query != s.query {
		return 0
	}
	return s.lastGood.TotalPages
}
