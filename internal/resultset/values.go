package resultset

import (
	"encoding/json"
	"strconv"
	"time"
)

// fieldValue looks up a field on a record. Absent fields and explicit JSON
// nulls are both reported as missing.
func fieldValue(r Record, field string) (any, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Cell renders a record's value for one field the way CSV cells are
// rendered. Absent fields and JSON nulls yield the empty string.
func Cell(r Record, field string) string {
	v, ok := fieldValue(r, field)
	if !ok {
		return ""
	}
	return renderValue(v)
}

// renderValue produces the canonical string form of a record value, used for
// exact-filter equality, free-text search, and CSV cells. Integral numbers
// render without a fractional part, times as RFC 3339, and nested structures
// as compact JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any, []any:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return ""
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}

// asFloat coerces numeric record values for range checks and numeric sorting.
func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// timeLayouts are the accepted textual time forms, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// asTime coerces time-valued fields for window-bucket checks. Accepts
// time.Time values and the common textual layouts backends emit.
func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
