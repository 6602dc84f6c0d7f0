package resultset

// Page is one window into a larger result set, along with the totals a
// client needs to render pagination controls. Index is the effective page
// after clamping, so callers can reflect it back to the UI.
type Page[T any] struct {
	Records    []T `json:"records"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
	Index      int `json:"page"`
	Size       int `json:"page_size"`
}

// HasPrev reports whether a page precedes this one.
func (p Page[T]) HasPrev() bool { return p.Index > 1 }

// HasNext reports whether a page follows this one.
func (p Page[T]) HasNext() bool { return p.Index < p.TotalPages }

// Paginate slices items down to the requested 1-based page. A size of zero
// or less falls back to DefaultPageSize. An out-of-range index clamps to the
// nearest valid page rather than returning an empty window, so a shrunken
// result set still yields its last page. An empty input reports one total
// page with no records. The returned slice is a copy.
func Paginate[T any](items []T, state PageState) Page[T] {
	size := state.Size
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}

	index := state.Index
	if index < 1 {
		index = 1
	}
	if index > pages {
		index = pages
	}

	start := (index - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	records := make([]T, end-start)
	copy(records, items[start:end])

	return Page[T]{
		Records:    records,
		TotalCount: total,
		TotalPages: pages,
		Index:      index,
		Size:       size,
	}
}
