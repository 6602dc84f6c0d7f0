package config

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://opsdesk.example.com").
	// Used for generating absolute URLs in redirects and notifications.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CompressionEnabled enables gzip compression for JSON responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.TrimSpace(h.CookieDomain)

	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}
}

// Validate rejects cookie domains that browsers silently refuse. A
// session cookie scoped to a public suffix (e.g. "com", "co.uk",
// "github.io") is dropped by every conforming client, which shows up in
// production as an unexplainable login loop.
func (h *HTTPConfig) Validate() error {
	domain := strings.ToLower(strings.TrimPrefix(h.CookieDomain, "."))
	if domain == "" {
		return nil
	}

	suffix, icann := publicsuffix.PublicSuffix(domain)
	if suffix == domain && (icann || strings.Contains(domain, ".")) {
		return fmt.Errorf("cookie domain %q is a public suffix; browsers reject cookies scoped to it", h.CookieDomain)
	}
	return nil
}
