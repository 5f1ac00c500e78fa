package search

const (
	// DefaultPageRange is how many page links surround the current page.
	DefaultPageRange = 5
	// DefaultMarginPages is how many page links are pinned at each end.
	DefaultMarginPages = 1
)

// Pagination is the state a pagination control is bound to. Pages are 1-based.
type Pagination struct {
	Current int
	Total   int
}

// PageLink is one entry of a rendered page window. Break entries stand
// for a run of omitted pages and carry no page number.
type PageLink struct {
	Page   int
	Active bool
	Break  bool
}

// Visible reports whether a pagination control should be rendered at all.
func (p Pagination) Visible() bool {
	return p.Total > 1
}

// Clamp limits n to the valid page range.
func (p Pagination) Clamp(n int) int {
	if n < 1 {
		return 1
	}
	if p.Total > 0 && n > p.Total {
		return p.Total
	}
	return n
}

// InRange reports whether n is a page the control may request.
func (p Pagination) InRange(n int) bool {
	return n >= 1 && n <= p.Total
}

// Next returns the following page, or false on the last page.
func (p Pagination) Next() (int, bool) {
	if p.Current >= p.Total {
		return p.Current, false
	}
	return p.Current + 1, true
}

// Prev returns the preceding page, or false on the first page.
func (p Pagination) Prev() (int, bool) {
	if p.Current <= 1 {
		return p.Current, false
	}
	return p.Current - 1, true
}

// Window lists the page links to render: pageRange pages around the
// current one plus margin pages at both ends, with breaks for the gaps.
// A gap of a single page is filled with that page instead of a break.
func (p Pagination) Window(pageRange, margin int) []PageLink {
	if p.Total <= 0 {
		return nil
	}
	if pageRange < 1 {
		pageRange = 1
	}
	if margin < 0 {
		margin = 0
	}
	cur := p.Clamp(p.Current)

	start, end := 1, p.Total
	if p.Total > pageRange+2*margin {
		start = cur - pageRange/2
		if start < 1 {
			start = 1
		}
		end = start + pageRange - 1
		if end > p.Total {
			end = p.Total
			start = max(1, end-pageRange+1)
		}
	}

	include := func(n int) bool {
		return n <= margin || n > p.Total-margin || (n >= start && n <= end)
	}

	var links []PageLink
	last := 0
	for n := 1; n <= p.Total; n++ {
		if !include(n) {
			continue
		}
		switch gap := n - last; {
		case last == 0 || gap == 1:
		case gap == 2:
			links = append(links, PageLink{Page: last + 1})
		default:
			links = append(links, PageLink{Break: true})
		}
		links = append(links, PageLink{Page: n, Active: n == cur})
		last = n
	}
	return links
}
