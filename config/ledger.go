package config

import "time"

// LedgerConfig contains the upstream ledger API connection settings.
type LedgerConfig struct {
	// BaseURL is the ledger API root.
	BaseURL string `env:"LEDGER_BASE_URL" envDefault:"http://localhost:9090"`

	// Secret signs the short-lived HS256 bearer tokens sent with every
	// ledger request. Required when any ledger-sourced dataset is served.
	Secret string `env:"LEDGER_JWT_SECRET"`

	// Issuer and Audience are stamped into the token claims.
	Issuer   string `env:"LEDGER_JWT_ISSUER"   envDefault:"opsdesk"`
	Audience string `env:"LEDGER_JWT_AUDIENCE" envDefault:"ledger"`

	// TokenTTL bounds the token lifetime.
	TokenTTL time.Duration `env:"LEDGER_JWT_TTL" envDefault:"1m"`

	// Timeout bounds a single collection fetch.
	Timeout time.Duration `env:"LEDGER_TIMEOUT" envDefault:"10s"`

	// MaxResponseBytes caps a collection payload.
	MaxResponseBytes int64 `env:"LEDGER_MAX_RESPONSE_BYTES" envDefault:"33554432"`
}

// Sanitize applies guardrails to ledger configuration values.
func (l *LedgerConfig) Sanitize() {
	if l.Timeout <= 0 {
		l.Timeout = 10 * time.Second
	}
	if l.TokenTTL < 10*time.Second {
		l.TokenTTL = 10 * time.Second
	}
	if l.MaxResponseBytes <= 0 {
		l.MaxResponseBytes = 32 << 20
	}
}

// CatalogConfig controls where the dataset catalog is loaded from.
type CatalogConfig struct {
	// Path points at an external catalog YAML. Empty uses the catalog
	// embedded in the binary.
	Path string `env:"CATALOG_PATH" envDefault:""`
}
