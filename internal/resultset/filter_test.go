package resultset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filterTestTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func float(v float64) *float64 { return &v }

func testProcessor() Processor {
	return Processor{
		Defs: []FilterDef{
			Exact("status", "status"),
			Search("q", "user_name", "account_id"),
			Buckets("opened", "opened_at", map[string]Bucket{
				"24h": {Window: 24 * time.Hour},
				"7d":  {Window: 7 * 24 * time.Hour},
				"30d": {Window: 30 * 24 * time.Hour},
			}),
			Buckets("amount", "amount", map[string]Bucket{
				"small": {Max: float(100)},
				"mid":   {Min: float(100), Max: float(1000)},
				"large": {Min: float(1000)},
			}),
		},
		Now: func() time.Time { return filterTestTime },
	}
}

func testRecords() []Record {
	return []Record{
		{"status": "open", "user_name": "Jane Doe", "account_id": "acc-100", "opened_at": "2023-12-31T12:00:00Z", "amount": json.Number("50")},
		{"status": "closed", "user_name": "John Smith", "account_id": "acc-200", "opened_at": "2023-12-20T12:00:00Z", "amount": json.Number("500")},
		{"status": "open", "user_name": "Ana Lima", "account_id": "acc-300", "opened_at": "2023-11-01T12:00:00Z", "amount": json.Number("5000")},
	}
}

func TestApplyFilters_NoActiveFilters(t *testing.T) {
	p := testProcessor()
	records := testRecords()

	tests := []struct {
		name  string
		state FilterState
	}{
		{name: "nil state", state: nil},
		{name: "empty state", state: FilterState{}},
		{name: "all sentinel", state: FilterState{"status": "all"}},
		{name: "empty value", state: FilterState{"status": ""}},
		{name: "whitespace query", state: FilterState{"q": "   "}},
		{name: "unknown filter name", state: FilterState{"nope": "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.ApplyFilters(records, tt.state)
			assert.Equal(t, records, out)
		})
	}
}

func TestApplyFilters_ReturnsFreshSlice(t *testing.T) {
	p := testProcessor()
	records := testRecords()

	out := p.ApplyFilters(records, nil)
	require.Equal(t, records, out)

	out[0] = Record{"status": "mutated"}
	assert.Equal(t, "open", records[0]["status"])
}

func TestApplyFilters_Exact(t *testing.T) {
	p := testProcessor()

	out := p.ApplyFilters(testRecords(), FilterState{"status": "open"})
	require.Len(t, out, 2)
	assert.Equal(t, "Jane Doe", out[0]["user_name"])
	assert.Equal(t, "Ana Lima", out[1]["user_name"])
}

func TestApplyFilters_ExactIsCaseSensitive(t *testing.T) {
	p := testProcessor()

	out := p.ApplyFilters(testRecords(), FilterState{"status": "OPEN"})
	assert.Empty(t, out)
}

func TestApplyFilters_ExactMissingField(t *testing.T) {
	p := testProcessor()
	records := []Record{
		{"status": "open"},
		{"user_name": "No Status"},
		{"status": nil},
	}

	out := p.ApplyFilters(records, FilterState{"status": "open"})
	require.Len(t, out, 1)
	assert.Equal(t, "open", out[0]["status"])
}

func TestApplyFilters_Search(t *testing.T) {
	p := testProcessor()

	out := p.ApplyFilters(testRecords(), FilterState{"q": "jane"})
	require.Len(t, out, 1)
	assert.Equal(t, "Jane Doe", out[0]["user_name"])
}

func TestApplyFilters_SearchAcrossFields(t *testing.T) {
	p := testProcessor()

	// "200" appears only in account_id, not in any name.
	out := p.ApplyFilters(testRecords(), FilterState{"q": "200"})
	require.Len(t, out, 1)
	assert.Equal(t, "John Smith", out[0]["user_name"])
}

func TestApplyFilters_SearchTrimsQuery(t *testing.T) {
	p := testProcessor()

	out := p.ApplyFilters(testRecords(), FilterState{"q": "  JANE  "})
	require.Len(t, out, 1)
	assert.Equal(t, "Jane Doe", out[0]["user_name"])
}

func TestApplyFilters_SearchIgnoresOtherFields(t *testing.T) {
	p := testProcessor()

	// "open" matches the status field, which is not in the search whitelist.
	out := p.ApplyFilters(testRecords(), FilterState{"q": "open"})
	assert.Empty(t, out)
}

func TestApplyFilters_TimeBucket(t *testing.T) {
	p := testProcessor()

	tests := []struct {
		bucket string
		want   int
	}{
		{bucket: "24h", want: 1},
		{bucket: "7d", want: 1},
		{bucket: "30d", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			out := p.ApplyFilters(testRecords(), FilterState{"opened": tt.bucket})
			assert.Len(t, out, tt.want)
		})
	}
}

func TestApplyFilters_TimeBucketBoundsInclusive(t *testing.T) {
	p := testProcessor()
	records := []Record{
		{"opened_at": "2023-12-25T12:00:00Z"}, // exactly 7 days before ref
		{"opened_at": "2024-01-01T12:00:00Z"}, // exactly ref
		{"opened_at": "2023-12-25T11:59:59Z"}, // one second too old
		{"opened_at": "2024-01-01T12:00:01Z"}, // one second in the future
	}

	out := p.ApplyFilters(records, FilterState{"opened": "7d"})
	require.Len(t, out, 2)
	assert.Equal(t, "2023-12-25T12:00:00Z", out[0]["opened_at"])
	assert.Equal(t, "2024-01-01T12:00:00Z", out[1]["opened_at"])
}

func TestApplyFilters_NumericBucket(t *testing.T) {
	p := testProcessor()

	tests := []struct {
		bucket string
		want   []string
	}{
		{bucket: "small", want: []string{"acc-100"}},
		{bucket: "mid", want: []string{"acc-200"}},
		{bucket: "large", want: []string{"acc-300"}},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			out := p.ApplyFilters(testRecords(), FilterState{"amount": tt.bucket})
			require.Len(t, out, len(tt.want))
			for i, id := range tt.want {
				assert.Equal(t, id, out[i]["account_id"])
			}
		})
	}
}

func TestApplyFilters_NumericBucketBoundsInclusive(t *testing.T) {
	p := testProcessor()
	records := []Record{
		{"amount": json.Number("100")},
		{"amount": json.Number("1000")},
		{"amount": json.Number("99.99")},
		{"amount": json.Number("1000.01")},
	}

	out := p.ApplyFilters(records, FilterState{"amount": "mid"})
	require.Len(t, out, 2)
}

func TestApplyFilters_UnknownBucketName(t *testing.T) {
	p := testProcessor()
	records := testRecords()

	out := p.ApplyFilters(records, FilterState{"opened": "90d"})
	assert.Equal(t, records, out)
}

func TestApplyFilters_BucketMissingField(t *testing.T) {
	p := testProcessor()
	records := []Record{
		{"amount": json.Number("50")},
		{"user_name": "No Amount"},
		{"amount": "not a number"},
	}

	out := p.ApplyFilters(records, FilterState{"amount": "small"})
	require.Len(t, out, 1)
}

func TestApplyFilters_Conjunction(t *testing.T) {
	p := testProcessor()

	out := p.ApplyFilters(testRecords(), FilterState{"status": "open", "amount": "large"})
	require.Len(t, out, 1)
	assert.Equal(t, "Ana Lima", out[0]["user_name"])

	// No record is both closed and small.
	out = p.ApplyFilters(testRecords(), FilterState{"status": "closed", "amount": "small"})
	assert.Empty(t, out)
}

func TestApplyFilters_Idempotent(t *testing.T) {
	p := testProcessor()
	state := FilterState{"status": "open", "q": "a"}

	once := p.ApplyFilters(testRecords(), state)
	twice := p.ApplyFilters(once, state)
	assert.Equal(t, once, twice)
}

func TestApplyFilters_InputUnchanged(t *testing.T) {
	p := testProcessor()
	records := testRecords()
	want := testRecords()

	p.ApplyFilters(records, FilterState{"status": "closed", "q": "jane", "amount": "large"})
	assert.Equal(t, want, records)
}

func TestProcessor_ZeroValue(t *testing.T) {
	var p Processor
	records := testRecords()

	// No definitions: every state is a no-op and Now is never consulted.
	out := p.ApplyFilters(records, FilterState{"status": "open", "opened": "7d"})
	assert.Equal(t, records, out)
}

func TestProcess_Pipeline(t *testing.T) {
	p := testProcessor()

	page := p.Process(testRecords(), ViewState{
		Filters: FilterState{"status": "open"},
		Sort:    SortState{Field: "amount", Descending: true},
		Page:    PageState{Index: 1, Size: 1},
	})

	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Ana Lima", page.Records[0]["user_name"])
}

func TestProcess_EmptyView(t *testing.T) {
	p := testProcessor()

	page := p.Process(testRecords(), ViewState{})
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Records, 3)
	assert.Equal(t, DefaultPageSize, page.Size)
}
