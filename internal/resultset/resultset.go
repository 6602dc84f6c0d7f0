// Package resultset implements the list pipeline behind every dashboard page:
// filter, sort, paginate, and CSV rendering over an in-memory collection of
// records fetched from a backing source.
//
// The pipeline is pure and synchronous. Operations never mutate their inputs
// and always return fresh collections, so the same inputs produce the same
// output and concurrent invocations from independent requests are safe. The
// only error the package raises is InvalidInputError, reported when a payload
// expected to be a sequence of records is something else; malformed individual
// records never fail an operation (a record missing a referenced field is a
// non-match for that filter and takes the documented missing-value sort
// position).
package resultset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is one row of backing data: an opaque mapping from field name to
// value (string, number, boolean, or nested object). Numbers decoded from
// JSON are json.Number so integer precision survives the round trip to CSV.
type Record map[string]any

// InvalidInputError reports that a payload expected to be a sequence of
// records was not one. It is fatal to the invocation that produced it and
// must be surfaced to the caller.
type InvalidInputError struct {
	// Got names what was seen instead of an array: "object", "string",
	// "number", "boolean", "null", or "malformed".
	Got string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("result set input is not an array: got %s", e.Got)
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// FromJSON decodes a backing payload into records. The payload must be a JSON
// array; anything else yields an InvalidInputError. Array elements that are
// JSON objects become records; any other element decodes as an empty record,
// which carries no fields and therefore never matches a field filter and
// sorts with the missing values. Element count is always preserved so
// pagination totals reflect the source collection.
func FromJSON(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &InvalidInputError{Got: "malformed"}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, &InvalidInputError{Got: jsonKind(tok)}
	}

	var records []Record
	for dec.More() {
		var elem any
		if decodeErr := dec.Decode(&elem); decodeErr != nil {
			return nil, &InvalidInputError{Got: "malformed"}
		}
		if obj, ok := elem.(map[string]any); ok {
			records = append(records, Record(obj))
		} else {
			records = append(records, Record{})
		}
	}

	// Consume the closing bracket; a truncated array is malformed input.
	if _, err := dec.Token(); err != nil {
		return nil, &InvalidInputError{Got: "malformed"}
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// jsonKind names the JSON value a token opens, for error messages.
func jsonKind(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return "object"
		}
		return "malformed"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "malformed"
	}
}
