package resultset

import (
	"slices"
	"strings"
	"time"
)

// FilterKind distinguishes how a filter matches records.
type FilterKind string

const (
	// FilterExact matches the record field's canonical string form exactly.
	FilterExact FilterKind = "exact"
	// FilterSearch matches when any whitelisted field contains the query,
	// case-insensitively.
	FilterSearch FilterKind = "search"
	// FilterBucket matches when the record field falls inside the named
	// inclusive range.
	FilterBucket FilterKind = "bucket"
)

// Bucket is a fixed, named inclusive range used by range-style filters.
// A Window greater than zero selects a time window ending at the reference
// instant (e.g. 7 days = ref−7d .. ref); otherwise Min/Max bound a numeric
// range, with nil meaning unbounded on that side. All bounds are inclusive.
type Bucket struct {
	Window time.Duration
	Min    *float64
	Max    *float64
}

// FilterDef declares one named filter a dataset exposes. Field carries the
// target field for exact and bucket filters; Fields carries the search
// whitelist; Buckets maps selectable bucket names to their ranges.
type FilterDef struct {
	Name    string
	Kind    FilterKind
	Field   string
	Fields  []string
	Buckets map[string]Bucket
}

// Exact declares an equality filter over one field.
func Exact(name, field string) FilterDef {
	return FilterDef{Name: name, Kind: FilterExact, Field: field}
}

// Search declares a free-text filter over a whitelist of fields.
func Search(name string, fields ...string) FilterDef {
	return FilterDef{Name: name, Kind: FilterSearch, Fields: fields}
}

// Buckets declares a range filter over one field with named buckets.
func Buckets(name, field string, buckets map[string]Bucket) FilterDef {
	return FilterDef{Name: name, Kind: FilterBucket, Field: field, Buckets: buckets}
}

// Processor evaluates the pipeline for one dataset's filter definitions.
// The zero value is usable: no definitions means every filter state is a
// no-op, and Now defaults to time.Now. Injecting Now keeps window-bucket
// evaluation deterministic under test.
type Processor struct {
	Defs []FilterDef
	Now  func() time.Time
}

// activeFilter pairs a definition with the value selected for it.
type activeFilter struct {
	def   FilterDef
	value string
}

// ApplyFilters retains the records matching every active filter. Inactive
// values ("all", empty, whitespace-only queries) and filter names without a
// definition exclude nothing. The input slice is never modified.
func (p Processor) ApplyFilters(records []Record, state FilterState) []Record {
	active := p.activeFilters(state)
	if len(active) == 0 {
		return slices.Clone(records)
	}

	ref := p.now()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if matchesAll(r, active, ref) {
			out = append(out, r)
		}
	}
	return out
}

// Process runs the full pipeline: filter, then stable sort, then paginate.
func (p Processor) Process(records []Record, view ViewState) Page[Record] {
	filtered := p.ApplyFilters(records, view.Filters)
	sorted := ApplySort(filtered, view.Sort)
	return Paginate(sorted, view.Page)
}

func (p Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// activeFilters resolves the filter state against the definitions. Iterating
// definitions rather than the state map keeps evaluation order deterministic
// and drops unknown names on the floor.
func (p Processor) activeFilters(state FilterState) []activeFilter {
	if len(state) == 0 {
		return nil
	}
	var active []activeFilter
	for _, def := range p.Defs {
		value, ok := state[def.Name]
		if !ok || !IsActive(value) {
			continue
		}
		if def.Kind == FilterSearch {
			value = strings.TrimSpace(value)
		}
		if def.Kind == FilterBucket {
			if _, known := def.Buckets[value]; !known {
				// An unknown bucket name selects nothing to exclude.
				continue
			}
		}
		active = append(active, activeFilter{def: def, value: value})
	}
	return active
}

func matchesAll(r Record, active []activeFilter, ref time.Time) bool {
	for _, f := range active {
		if !matches(r, f, ref) {
			return false
		}
	}
	return true
}

func matches(r Record, f activeFilter, ref time.Time) bool {
	switch f.def.Kind {
	case FilterExact:
		v, ok := fieldValue(r, f.def.Field)
		return ok && renderValue(v) == f.value
	case FilterSearch:
		return matchesSearch(r, f.def.Fields, f.value)
	case FilterBucket:
		v, ok := fieldValue(r, f.def.Field)
		if !ok {
			return false
		}
		return matchesBucket(v, f.def.Buckets[f.value], ref)
	default:
		return true
	}
}

func matchesSearch(r Record, fields []string, query string) bool {
	needle := strings.ToLower(query)
	for _, field := range fields {
		v, ok := fieldValue(r, field)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(renderValue(v)), needle) {
			return true
		}
	}
	return false
}

func matchesBucket(v any, b Bucket, ref time.Time) bool {
	if b.Window > 0 {
		t, ok := asTime(v)
		if !ok {
			return false
		}
		start := ref.Add(-b.Window)
		return !t.Before(start) && !t.After(ref)
	}

	f, ok := asFloat(v)
	if !ok {
		return false
	}
	if b.Min != nil && f < *b.Min {
		return false
	}
	if b.Max != nil && f > *b.Max {
		return false
	}
	return true
}
