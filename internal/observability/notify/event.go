package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// RefreshFailurePayload captures the canonical data we emit when a dataset
// refresh keeps failing.
type RefreshFailurePayload struct {
	Dataset    string            `json:"dataset"`
	Error      string            `json:"error"`
	ErrorClass string            `json:"error_class,omitempty"`
	Streak     int               `json:"streak"`
	Severity   string            `json:"severity"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Sink describes a destination capable of consuming refresh failure notifications.
type Sink interface {
	SendRefreshFailure(ctx context.Context, payload RefreshFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload RefreshFailurePayload) error

// SendRefreshFailure implements the Sink interface.
func (f SinkFunc) SendRefreshFailure(ctx context.Context, payload RefreshFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
