package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeRefresher runs the background snapshot refresher.
	ServiceModeRefresher ServiceMode = "refresher"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeRefresher,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeRefresher:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, refresher)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// RefresherConfig contains snapshot refresher service configuration.
type RefresherConfig struct {
	// Interval is the prewarm tick interval.
	Interval time.Duration `env:"REFRESHER_INTERVAL" envDefault:"5m"`

	// Datasets lists the dataset keys to prewarm. Empty prewarm every
	// ledger-sourced dataset in the catalog.
	Datasets []string `env:"REFRESHER_DATASETS" envSeparator:"," envDefault:""`

	// Concurrency is the number of datasets refreshed in parallel per tick.
	Concurrency int `env:"REFRESHER_CONCURRENCY" envDefault:"2"`

	// FailureStreak is the number of consecutive failed refreshes of a
	// dataset before a notification fires.
	FailureStreak int `env:"REFRESHER_FAILURE_STREAK" envDefault:"3"`
}

// Sanitize applies guardrails to refresher configuration values.
func (r *RefresherConfig) Sanitize() {
	if r.Interval < 30*time.Second {
		r.Interval = 30 * time.Second
	}
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
	if r.FailureStreak < 1 {
		r.FailureStreak = 1
	}

	cleaned := r.Datasets[:0]
	for _, d := range r.Datasets {
		if trimmed := strings.TrimSpace(d); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	r.Datasets = cleaned
}
