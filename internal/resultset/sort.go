package resultset

import (
	"sort"
	"strings"
	"time"
)

// ApplySort returns a copy of records ordered by the sort state. The sort is
// stable, so records that compare equal keep their input order. An empty sort
// field returns the records unchanged (still as a fresh slice). Records
// missing the sort field compare equal to each other and always order after
// records that carry it, whichever direction is selected.
func ApplySort(records []Record, state SortState) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	if state.Field == "" {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		av, aok := fieldValue(out[i], state.Field)
		bv, bok := fieldValue(out[j], state.Field)
		if !aok || !bok {
			return aok && !bok
		}
		c := compareValues(av, bv)
		if state.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Kind ranks order mixed-type columns: numbers, then booleans, then text,
// then everything else by rendered form.
const (
	kindNumber = iota
	kindBool
	kindString
	kindOther
)

func valueKind(v any) int {
	if _, ok := asFloat(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case bool:
		return kindBool
	case string, time.Time:
		return kindString
	}
	return kindOther
}

// compareValues reports -1, 0, or 1 for a < b, a == b, a > b. Numbers compare
// numerically, strings and timestamps case-insensitively by canonical form,
// and mismatched kinds fall back to the kind rank so ordering stays total.
func compareValues(a, b any) int {
	ak, bk := valueKind(a), valueKind(b)
	if ak != bk {
		if ak < bk {
			return -1
		}
		return 1
	}

	switch ak {
	case kindNumber:
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case kindBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case !ab && bb:
			return -1
		case ab && !bb:
			return 1
		}
		return 0
	default:
		return strings.Compare(strings.ToLower(renderValue(a)), strings.ToLower(renderValue(b)))
	}
}
