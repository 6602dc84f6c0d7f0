package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meridianbank/opsdesk/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
	if _, err := NewClient(Config{URL: "   "}); err == nil {
		t.Fatal("expected error for blank webhook url")
	}
}

func TestSendRefreshFailurePostsEnvelope(t *testing.T) {
	var got envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.SendRefreshFailure(context.Background(), notify.RefreshFailurePayload{
		Dataset:    "accounts",
		Error:      "upstream timeout",
		ErrorClass: "timeout",
		Streak:     3,
	})
	if err != nil {
		t.Fatalf("SendRefreshFailure error: %v", err)
	}

	if got.Source != "opsdesk" {
		t.Fatalf("expected default source opsdesk, got %q", got.Source)
	}
	if got.Event != "dataset_refresh_failure" {
		t.Fatalf("unexpected event: %q", got.Event)
	}
	if got.Data.Dataset != "accounts" || got.Data.Streak != 3 {
		t.Fatalf("unexpected data: %+v", got.Data)
	}
	if got.Data.Severity != notify.SeverityCritical {
		t.Fatalf("expected severity defaulted to critical, got %q", got.Data.Severity)
	}
	if got.Data.OccurredAt.IsZero() {
		t.Fatal("expected occurred_at to be filled")
	}
}

func TestSendRefreshFailureCustomSource(t *testing.T) {
	var got envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Source: "opsdesk-staging"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendRefreshFailure(context.Background(), notify.RefreshFailurePayload{Dataset: "wires"}); err != nil {
		t.Fatalf("SendRefreshFailure error: %v", err)
	}
	if got.Source != "opsdesk-staging" {
		t.Fatalf("expected configured source, got %q", got.Source)
	}
}

func TestSendRefreshFailureRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, RetryLimit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendRefreshFailure(context.Background(), notify.RefreshFailurePayload{Dataset: "accounts"}); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendRefreshFailureSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = client.SendRefreshFailure(context.Background(), notify.RefreshFailurePayload{Dataset: "accounts"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected status and body in error, got: %v", err)
	}
}

func TestSendRefreshFailureContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, RetryLimit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.SendRefreshFailure(ctx, notify.RefreshFailurePayload{Dataset: "accounts"})
	if err == nil {
		t.Fatal("expected error")
	}
}
