package search

import "github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"

// View is everything a frontend needs to render the session. It is derived
// from session state and has no side effects, so it can be computed on
// every render.
type View struct {
	Status       Status
	Query        string
	Page         int
	Items        []tmdb.Movie
	TotalResults int
	// Placeholder is set while Items belong to a previously resolved pair.
	Placeholder bool

	ShowLoader bool
	ShowError  bool
	Err        error
	ErrKind    ErrorKind

	// ShowGrid is false whenever Items is empty.
	ShowGrid bool
	// Pagination is nil when there is at most one page.
	Pagination *Pagination
	PageLinks  []PageLink

	Selected *tmdb.Movie
}

// View derives the current view state.
func (s *Session) View() View {
	v := View{
		Status: s.status,
		Query:  s.query,
		Page:   s.page,
	}

	if page := s.Displayed(); page != nil {
		v.Items = page.Results
		v.TotalResults = page.TotalResults
	}
	v.Placeholder = s.IsFetching() && s.lastGood != nil

	if s.IsError() {
		v.ShowError = true
		v.Err = s.err
		v.ErrKind = Classify(s.err)
	}

	v.ShowLoader = s.IsFetching() && len(v.Items) == 0
	v.ShowGrid = !v.ShowError && len(v.Items) > 0

	if !v.ShowError && !s.IsLoading() {
		if p := s.Pagination(); p.Visible() {
			v.Pagination = &p
			v.PageLinks = p.Window(s.pageRange, s.marginPages)
		}
	}

	if m, ok := s.Selected(); ok {
		v.Selected = &m
	}
	return v
}
