package resultset

import "strings"

// FilterAll is the sentinel filter value that deactivates a filter. An empty
// string has the same effect.
const FilterAll = "all"

// DefaultPageSize applies when a page state carries no usable size.
const DefaultPageSize = 25

// FilterState maps filter names to their selected values: an enum choice, a
// bucket name, or a free-text query. All active filters AND-compose.
type FilterState map[string]string

// IsActive reports whether value selects anything. The sentinel "all", the
// empty string, and whitespace-only values are no-ops.
func IsActive(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed != "" && trimmed != FilterAll
}

// SortState is the single active sort key and its direction.
type SortState struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Apply returns the sort state after the user selects field: selecting the
// current key toggles direction, selecting a new key resets to ascending.
// An empty field leaves the state unchanged.
func (s SortState) Apply(field string) SortState {
	if field == "" {
		return s
	}
	if s.Field == field {
		return SortState{Field: field, Descending: !s.Descending}
	}
	return SortState{Field: field}
}

// PageState is the requested page: a 1-based index and a fixed size.
type PageState struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// ViewState bundles the three control states a page view threads through the
// pipeline. It is a plain value: deriving a new view copies rather than
// mutates.
type ViewState struct {
	Filters FilterState `json:"filters"`
	Sort    SortState   `json:"sort"`
	Page    PageState   `json:"page"`
}

// WithFilter returns a copy of the view with one filter value replaced and
// the page reset to the first.
func (v ViewState) WithFilter(name, value string) ViewState {
	filters := make(FilterState, len(v.Filters)+1)
	for k, val := range v.Filters {
		filters[k] = val
	}
	filters[name] = value
	v.Filters = filters
	v.Page.Index = 1
	return v
}

// WithSort returns a copy of the view after selecting a sort field, applying
// the toggle rule and resetting to the first page.
func (v ViewState) WithSort(field string) ViewState {
	v.Sort = v.Sort.Apply(field)
	v.Page.Index = 1
	return v
}

// WithPage returns a copy of the view on the given page index.
func (v ViewState) WithPage(index int) ViewState {
	v.Page.Index = index
	return v
}
