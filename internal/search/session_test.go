package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/query"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []query.Key
	pages map[query.Key]*tmdb.SearchPage
	errs  map[query.Key]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[query.Key]*tmdb.SearchPage),
		errs:  make(map[query.Key]error),
	}
}

func (f *fakeFetcher) SearchMovies(_ context.Context, q string, page int) (*tmdb.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := query.Key{Query: q, Page: page}
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if p, ok := f.pages[key]; ok {
		return p, nil
	}
	return &tmdb.SearchPage{Page: page, Results: []tmdb.Movie{}}, nil
}

func (f *fakeFetcher) set(q string, page, totalPages, items int) *tmdb.SearchPage {
	p := &tmdb.SearchPage{
		Page:         page,
		Results:      movies(q, page, items),
		TotalPages:   totalPages,
		TotalResults: totalPages * items,
	}
	f.mu.Lock()
	f.pages[query.Key{Query: q, Page: page}] = p
	f.mu.Unlock()
	return p
}

func (f *fakeFetcher) fail(q string, page int, err error) {
	f.mu.Lock()
	f.errs[query.Key{Query: q, Page: page}] = err
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func movies(q string, page, n int) []tmdb.Movie {
	out := make([]tmdb.Movie, n)
	for i := range out {
		out[i] = tmdb.Movie{
			ID:          page*1000 + i,
			Title:       fmt.Sprintf("%s %d-%d", q, page, i),
			ReleaseDate: "2021-09-15",
			VoteAverage: 7.5,
		}
	}
	return out
}

type countingNotifier struct {
	queries []string
}

func (n *countingNotifier) NotifyEmpty(q string) { n.queries = append(n.queries, q) }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(f Fetcher, n Notifier, c *clock) *Session {
	opts := Options{Notifier: n, Logger: discardLogger()}
	if c != nil {
		opts.Now = c.Now
	}
	return NewSession(f, opts)
}

// settle runs req and commits its result.
func settle(t *testing.T, s *Session, req *Request) {
	t.Helper()
	require.NotNil(t, req, "expected a request to run")
	require.True(t, s.Resolve(req.Run(context.Background())), "result should be committed")
}

func TestDuneWalkthrough(t *testing.T) {
	f := newFakeFetcher()
	page1 := f.set("dune", 1, 5, 25)
	page2 := f.set("dune", 2, 5, 25)
	s := newTestSession(f, nil, nil)

	req := s.SubmitQuery("dune")
	require.NotNil(t, req)
	assert.Equal(t, query.Key{Query: "dune", Page: 1}, req.Key)
	assert.Equal(t, StatusLoading, s.Status())

	v := s.View()
	assert.True(t, v.ShowLoader)
	assert.False(t, v.ShowGrid)
	assert.Nil(t, v.Pagination)

	settle(t, s, req)
	v = s.View()
	assert.Equal(t, StatusSuccess, v.Status)
	assert.Len(t, v.Items, 25)
	assert.True(t, v.ShowGrid)
	assert.False(t, v.ShowLoader)
	require.NotNil(t, v.Pagination)
	assert.Equal(t, Pagination{Current: 1, Total: 5}, *v.Pagination)
	assert.Len(t, v.PageLinks, 5)

	req = s.ChangePage(2)
	require.NotNil(t, req)
	assert.Equal(t, query.Key{Query: "dune", Page: 2}, req.Key)

	v = s.View()
	assert.Equal(t, StatusFetching, v.Status)
	assert.True(t, v.Placeholder)
	assert.True(t, v.ShowGrid, "previous page stays visible while the next one loads")
	assert.False(t, v.ShowLoader)
	assert.Equal(t, page1.Results, v.Items)

	settle(t, s, req)
	v = s.View()
	assert.Equal(t, page2.Results, v.Items)
	assert.False(t, v.Placeholder)
	assert.Equal(t, 2, v.Pagination.Current)
	assert.Equal(t, 2, f.callCount())
}

func TestEmptyQueryIsIdle(t *testing.T) {
	f := newFakeFetcher()
	s := newTestSession(f, nil, nil)

	assert.Nil(t, s.SubmitQuery(""))
	assert.Nil(t, s.SubmitQuery("   "))

	v := s.View()
	assert.Equal(t, StatusIdle, v.Status)
	assert.False(t, v.ShowLoader)
	assert.False(t, v.ShowError)
	assert.False(t, v.ShowGrid)
	assert.Nil(t, s.ChangePage(2))
	assert.Zero(t, f.callCount())
}

func TestSubmitTrimsQuery(t *testing.T) {
	s := newTestSession(newFakeFetcher(), nil, nil)

	req := s.SubmitQuery("  dune \t")
	require.NotNil(t, req)
	assert.Equal(t, "dune", s.Query())
	assert.Equal(t, "dune", req.Key.Query)
}

func TestMissingCredentialShowsErrorWithoutNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := tmdb.NewForTest(server.URL, "", discardLogger())
	s := newTestSession(client, nil, nil)

	settle(t, s, s.SubmitQuery("dune"))

	v := s.View()
	assert.True(t, v.ShowError)
	assert.Equal(t, KindConfiguration, v.ErrKind)
	assert.ErrorIs(t, v.Err, tmdb.ErrMissingToken)
	assert.False(t, v.ShowGrid)
	assert.Zero(t, calls.Load())
}

func TestIdenticalPairWithinStaleWindowFetchesOnce(t *testing.T) {
	f := newFakeFetcher()
	f.set("dune", 1, 1, 3)
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestSession(f, nil, c)

	settle(t, s, s.SubmitQuery("dune"))

	c.now = c.now.Add(3 * time.Second)
	assert.Nil(t, s.SubmitQuery("dune"), "fresh result should be reused")
	assert.Equal(t, StatusSuccess, s.Status())
	assert.Len(t, s.View().Items, 3)
	assert.Equal(t, 1, f.callCount())

	c.now = c.now.Add(3 * time.Second)
	req := s.SubmitQuery("dune")
	require.NotNil(t, req, "stale result should be refetched")
	assert.Equal(t, StatusFetching, s.Status())
	settle(t, s, req)
	assert.Equal(t, 2, f.callCount())
}

func TestIdenticalPairInFlightIsNotReissued(t *testing.T) {
	f := newFakeFetcher()
	s := newTestSession(f, nil, nil)

	req := s.SubmitQuery("dune")
	require.NotNil(t, req)
	assert.Nil(t, s.SubmitQuery("dune"))
	assert.Nil(t, s.SubmitQuery(" dune "))

	settle(t, s, req)
	assert.Equal(t, 1, f.callCount())
}

func TestNewQueryResetsPage(t *testing.T) {
	f := newFakeFetcher()
	f.set("dune", 1, 5, 20)
	f.set("dune", 3, 5, 20)
	s := newTestSession(f, nil, nil)

	settle(t, s, s.SubmitQuery("dune"))
	settle(t, s, s.ChangePage(3))
	assert.Equal(t, 3, s.Page())

	req := s.SubmitQuery("arrival")
	assert.Equal(t, 1, s.Page())
	assert.Equal(t, query.Key{Query: "arrival", Page: 1}, req.Key)

	// Resubmitting the same query from a later page also goes back to 1.
	f.set("arrival", 1, 4, 20)
	f.set("arrival", 2, 4, 20)
	settle(t, s, req)
	settle(t, s, s.ChangePage(2))
	s.SubmitQuery("arrival")
	assert.Equal(t, 1, s.Page())
}

func TestSupersededResultIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.set("q1", 1, 1, 2)
	q2 := f.set("q2", 1, 1, 4)
	s := newTestSession(f, nil, nil)

	req1 := s.SubmitQuery("q1")
	req2 := s.SubmitQuery("q2")
	require.NotNil(t, req1)
	require.NotNil(t, req2)

	// q1 resolves late, after q2 has already been committed.
	assert.True(t, s.Resolve(req2.Run(context.Background())))
	assert.False(t, s.Resolve(req1.Run(context.Background())))

	v := s.View()
	assert.Equal(t, q2.Results, v.Items)
	assert.Equal(t, "q2", v.Query)
}

func TestSupersededResultArrivingFirstIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.set("q1", 1, 2, 2)
	f.fail("q1", 2, errors.New("boom"))
	q2 := f.set("q2", 1, 1, 4)
	s := newTestSession(f, nil, nil)

	settle(t, s, s.SubmitQuery("q1"))
	stale := s.ChangePage(2)
	latest := s.SubmitQuery("q2")

	assert.False(t, s.Resolve(stale.Run(context.Background())))
	assert.False(t, s.View().ShowError, "an error of a superseded request must not surface")
	assert.Equal(t, StatusFetching, s.Status())

	settle(t, s, latest)
	assert.Equal(t, q2.Results, s.View().Items)
}

func TestEmptyResultNotifiesOncePerSearch(t *testing.T) {
	f := newFakeFetcher()
	n := &countingNotifier{}
	s := newTestSession(f, n, nil)

	// Nothing is announced before the user searched.
	_ = s.View()
	assert.Empty(t, n.queries)

	settle(t, s, s.SubmitQuery("zzzzqx"))
	for range 3 {
		_ = s.View()
	}
	assert.Equal(t, []string{"zzzzqx"}, n.queries)

	v := s.View()
	assert.Equal(t, StatusSuccess, v.Status)
	assert.False(t, v.ShowGrid, "grid must not render for an empty list")
	assert.False(t, v.ShowError)
	assert.Nil(t, v.Pagination)

	// A non-empty search never notifies.
	f.set("dune", 1, 1, 3)
	settle(t, s, s.SubmitQuery("dune"))
	assert.Len(t, n.queries, 1)
}

func TestResubmittedEmptySearchNotifiesAgain(t *testing.T) {
	n := &countingNotifier{}
	f := newFakeFetcher()
	s := newTestSession(f, n, nil)

	settle(t, s, s.SubmitQuery("nothing"))
	assert.Nil(t, s.SubmitQuery("nothing"))
	assert.Equal(t, []string{"nothing", "nothing"}, n.queries)
	assert.Equal(t, 1, f.callCount())
}

func TestFailedFetchKeepsPreviousPage(t *testing.T) {
	f := newFakeFetcher()
	page1 := f.set("dune", 1, 5, 20)
	f.fail("dune", 2, errors.New("connection reset"))
	f.set("dune", 3, 5, 20)
	s := newTestSession(f, nil, nil)

	settle(t, s, s.SubmitQuery("dune"))
	settle(t, s, s.ChangePage(2))

	v := s.View()
	assert.True(t, v.ShowError)
	assert.Equal(t, KindNetwork, v.ErrKind)
	assert.False(t, v.ShowGrid)
	assert.Nil(t, v.Pagination)
	assert.Equal(t, page1, s.Displayed(), "failure must not drop the last good page")

	req := s.ChangePage(3)
	require.NotNil(t, req)
	v = s.View()
	assert.False(t, v.ShowError)
	assert.Equal(t, page1.Results, v.Items)
	assert.True(t, v.Placeholder)
}

func TestRetryAfterError(t *testing.T) {
	f := newFakeFetcher()
	f.fail("dune", 1, errors.New("timeout"))
	s := newTestSession(f, nil, nil)

	settle(t, s, s.SubmitQuery("dune"))
	assert.True(t, s.IsError())

	f.mu.Lock()
	delete(f.errs, query.Key{Query: "dune", Page: 1})
	f.mu.Unlock()
	f.set("dune", 1, 1, 2)

	settle(t, s, s.Retry())
	assert.Equal(t, StatusSuccess, s.Status())
	assert.Len(t, s.View().Items, 2)
	assert.Equal(t, 2, f.callCount())
}

func TestChangePageIgnoresInvalidPages(t *testing.T) {
	f := newFakeFetcher()
	f.set("dune", 1, 3, 20)
	s := newTestSession(f, nil, nil)
	settle(t, s, s.SubmitQuery("dune"))

	assert.Nil(t, s.ChangePage(0))
	assert.Nil(t, s.ChangePage(-1))
	assert.Nil(t, s.ChangePage(1), "current page")
	assert.Nil(t, s.ChangePage(4), "beyond total pages")
	assert.Equal(t, 1, s.Page())
	assert.Equal(t, 1, f.callCount())
}

func TestSelectionIsIndependentOfFetching(t *testing.T) {
	f := newFakeFetcher()
	page1 := f.set("dune", 1, 2, 3)
	f.set("dune", 2, 2, 3)
	f.set("arrival", 1, 1, 3)
	s := newTestSession(f, nil, nil)
	settle(t, s, s.SubmitQuery("dune"))

	x := page1.Results[1]
	s.Select(x)
	v := s.View()
	require.NotNil(t, v.Selected)
	assert.Equal(t, x, *v.Selected)

	// Mutating the source slice does not affect the snapshot.
	page1.Results[1].Title = "changed"
	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, x.Title, got.Title)

	// Paging and searching keep the modal open.
	settle(t, s, s.ChangePage(2))
	assert.NotNil(t, s.View().Selected)
	settle(t, s, s.SubmitQuery("arrival"))
	assert.NotNil(t, s.View().Selected)

	s.Close()
	assert.Nil(t, s.View().Selected)

	// Closing is final: further navigation does not reopen it.
	settle(t, s, s.SubmitQuery("dune"))
	assert.Nil(t, s.View().Selected)
}

func TestLoaderShownOnlyWithoutData(t *testing.T) {
	f := newFakeFetcher()
	f.set("dune", 1, 1, 2)
	s := newTestSession(f, nil, nil)

	req := s.SubmitQuery("dune")
	assert.True(t, s.IsLoading())
	assert.True(t, s.IsFetching())
	assert.True(t, s.View().ShowLoader)
	assert.Empty(t, s.View().Items, "empty placeholder before the first page")
	settle(t, s, req)

	// A new query with a placeholder in place is fetching, not loading.
	req = s.SubmitQuery("arrival")
	assert.False(t, s.IsLoading())
	assert.True(t, s.IsFetching())
	assert.False(t, s.View().ShowLoader)
	settle(t, s, req)
}

func TestStatusAndKindStrings(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "fetching", StatusFetching.String())
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindNetwork, Classify(errors.New("dial tcp: refused")))
	assert.Equal(t, KindConfiguration, Classify(fmt.Errorf("search movies: %w", tmdb.ErrMissingToken)))
	assert.NotEmpty(t, UserMessage(KindNetwork))
	assert.Empty(t, UserMessage(KindNone))
}
