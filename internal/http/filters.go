package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/meridianbank/opsdesk/internal/resultset"
)

// The list endpoint's query protocol. Filters arrive as f_<name> params
// (with bare q accepted as shorthand for f_q, the conventional search
// filter), the sort as sort plus dir or the compact sort=field:dir form,
// and the page as page plus page_size. Unknown filter names are carried
// through and ignored downstream, so stale client links stay harmless.
const filterParamPrefix = "f_"

// parseViewQuery assembles a resultset.ViewState from the request's query
// parameters. Values are not validated here; the dataset service owns sort
// whitelists and role checks, and the paginator owns page clamping. Only
// page_size is bounded, since nothing downstream caps it.
func parseViewQuery(r *http.Request) resultset.ViewState {
	query := r.URL.Query()

	filters := make(resultset.FilterState)
	for name, vals := range query {
		if len(vals) == 0 || !strings.HasPrefix(name, filterParamPrefix) {
			continue
		}
		key := strings.TrimPrefix(name, filterParamPrefix)
		if key == "" {
			continue
		}
		filters[key] = vals[0]
	}
	if q := query.Get("q"); q != "" {
		if _, set := filters["q"]; !set {
			filters["q"] = q
		}
	}

	size := parseIntQuery(r, "page_size", 0)
	if size > maxListPageSize {
		size = maxListPageSize
	}

	return resultset.ViewState{
		Filters: filters,
		Sort:    parseSortQuery(query.Get("sort"), query.Get("dir")),
		Page: resultset.PageState{
			Index: parseIntQuery(r, "page", 1),
			Size:  size,
		},
	}
}

// parseSortQuery resolves the sort field and direction. The compact
// sort=field:desc form is accepted; an explicit dir param wins over it.
func parseSortQuery(sort, dir string) resultset.SortState {
	field := sort
	if idx := strings.IndexByte(sort, ':'); idx != -1 {
		field = sort[:idx]
		if dir == "" {
			dir = sort[idx+1:]
		}
	}
	return resultset.SortState{
		Field:      strings.TrimSpace(field),
		Descending: strings.EqualFold(strings.TrimSpace(dir), "desc"),
	}
}

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
