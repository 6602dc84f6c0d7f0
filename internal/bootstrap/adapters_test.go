package bootstrap

import (
	"testing"

	"github.com/meridianbank/opsdesk/config"
	"github.com/meridianbank/opsdesk/internal/catalog"
)

const refresherTestCatalog = `
datasets:
  - key: accounts
    title: Accounts
    source: ledger
    path: /v1/accounts
    columns:
      - header: Account
        field: account_number
  - key: wires
    title: Wire Transfers
    source: ledger
    path: /v1/wires
    columns:
      - header: Reference
        field: reference
  - key: exports
    title: Export Audit
    source: exports
    role: manager
    columns:
      - header: Export
        field: id
`

func TestRefresherDatasets(t *testing.T) {
	cat, err := catalog.Parse([]byte(refresherTestCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	tests := []struct {
		name string
		cfg  config.RefresherConfig
		cat  *catalog.Catalog
		want []string
	}{
		{
			name: "explicit list wins",
			cfg:  config.RefresherConfig{Datasets: []string{"wires"}},
			cat:  cat,
			want: []string{"wires"},
		},
		{
			name: "empty list defaults to ledger datasets",
			cfg:  config.RefresherConfig{},
			cat:  cat,
			want: []string{"accounts", "wires"},
		},
		{
			name: "nil catalog",
			cfg:  config.RefresherConfig{},
			cat:  nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refresherDatasets(tt.cfg, tt.cat)
			if len(got) != len(tt.want) {
				t.Fatalf("refresherDatasets() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("refresherDatasets() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
