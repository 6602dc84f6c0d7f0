package resultset

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csvColumns = []Column{
	{Header: "Account", Field: "account_id"},
	{Header: "Holder", Field: "user_name"},
	{Header: "Balance", Field: "balance"},
}

func TestToCSV_Basic(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1", "user_name": "Jane Doe", "balance": json.Number("1250.75")},
		{"account_id": "acc-2", "user_name": "John Smith", "balance": json.Number("80")},
	}

	got := ToCSV(records, csvColumns)
	want := `"Account","Holder","Balance"` + "\n" +
		`"acc-1","Jane Doe","1250.75"` + "\n" +
		`"acc-2","John Smith","80"` + "\n"
	assert.Equal(t, want, got)
}

func TestToCSV_EmptyRecords(t *testing.T) {
	got := ToCSV(nil, csvColumns)
	assert.Equal(t, `"Account","Holder","Balance"`+"\n", got)
}

func TestToCSV_EveryCellQuoted(t *testing.T) {
	records := []Record{
		{"account_id": "plain", "user_name": "no commas here", "balance": json.Number("1")},
	}

	for _, line := range strings.Split(strings.TrimSuffix(ToCSV(records, csvColumns), "\n"), "\n") {
		for _, cell := range strings.Split(line, ",") {
			assert.True(t, strings.HasPrefix(cell, `"`), "cell %q not quoted", cell)
			assert.True(t, strings.HasSuffix(cell, `"`), "cell %q not quoted", cell)
		}
	}
}

func TestToCSV_EscapesQuotes(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1", "user_name": `Jane "JD" Doe`, "balance": json.Number("1")},
	}

	got := ToCSV(records, csvColumns)
	assert.Contains(t, got, `"Jane ""JD"" Doe"`)
}

func TestToCSV_MissingFieldEmptyCell(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1"},
	}

	got := ToCSV(records, csvColumns)
	assert.Contains(t, got, `"acc-1","",""`)
}

func TestToCSV_CommasAndNewlinesInValues(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1", "user_name": "Doe, Jane\nSuite 4", "balance": json.Number("1")},
	}

	// A standard CSV reader must recover the original value intact.
	rows, err := csv.NewReader(strings.NewReader(ToCSV(records, csvColumns))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Doe, Jane\nSuite 4", rows[1][1])
}

func TestToCSV_RoundTrip(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1", "user_name": "Jane Doe", "balance": json.Number("12.5")},
		{"account_id": "acc-2", "user_name": `tricky "value"`, "balance": json.Number("3")},
		{"account_id": "acc-3"},
	}

	rows, err := csv.NewReader(strings.NewReader(ToCSV(records, csvColumns))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Account", "Holder", "Balance"}, rows[0])
	assert.Equal(t, []string{"acc-1", "Jane Doe", "12.5"}, rows[1])
	assert.Equal(t, []string{"acc-2", `tricky "value"`, "3"}, rows[2])
	assert.Equal(t, []string{"acc-3", "", ""}, rows[3])
}

func TestToCSV_RendersNestedValues(t *testing.T) {
	records := []Record{
		{"account_id": "acc-1", "user_name": "J", "balance": map[string]any{"ccy": "EUR"}},
	}

	got := ToCSV(records, csvColumns)
	assert.Contains(t, got, `"{""ccy"":""EUR""}"`)
}

func TestToCSV_EndsWithNewline(t *testing.T) {
	records := []Record{{"account_id": "acc-1"}}
	assert.True(t, strings.HasSuffix(ToCSV(records, csvColumns), "\n"))
}
