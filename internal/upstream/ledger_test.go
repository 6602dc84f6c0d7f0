package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

const testSecret = "ledger-signing-secret"

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL: baseURL,
		Secret:  testSecret,
		Timeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		errMsg string
	}{
		{
			name:   "missing base url",
			config: Config{Secret: testSecret},
			errMsg: "base url is required",
		},
		{
			name:   "unsupported scheme",
			config: Config{BaseURL: "ftp://ledger.internal", Secret: testSecret},
			errMsg: "must be http or https",
		},
		{
			name:   "no host",
			config: Config{BaseURL: "http://", Secret: testSecret},
			errMsg: "has no host",
		},
		{
			name:   "missing secret",
			config: Config{BaseURL: "https://ledger.internal"},
			errMsg: "signing secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMintToken_Claims(t *testing.T) {
	c := newTestClient(t, "https://ledger.internal", func(cfg *Config) {
		cfg.Issuer = "opsdesk-test"
		cfg.Audience = "ledger-test"
		cfg.TokenTTL = 90 * time.Second
	})
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	signed, err := c.mintToken()
	require.NoError(t, err)

	claims := parseTokenClaims(t, signed)
	assert.Equal(t, "opsdesk-test", claims["iss"])
	assert.Equal(t, "ledger-test", claims["aud"])
	assert.Equal(t, "opsdesk", claims["sub"])
	assert.Equal(t, float64(issued.Unix()), claims["iat"])
	assert.Equal(t, float64(issued.Add(90*time.Second).Unix()), claims["exp"])
}

func TestMintToken_Defaults(t *testing.T) {
	c := newTestClient(t, "https://ledger.internal", nil)
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	signed, err := c.mintToken()
	require.NoError(t, err)

	claims := parseTokenClaims(t, signed)
	assert.Equal(t, "opsdesk", claims["iss"])
	assert.Equal(t, "ledger", claims["aud"])
	assert.Equal(t, float64(issued.Add(time.Minute).Unix()), claims["exp"])
}

func TestFetchCollection_Success(t *testing.T) {
	var gotPath, gotAccept, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a-1","status":"open","balance":42},{"id":"a-2"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	records, err := c.FetchCollection(context.Background(), "/v1/accounts")
	require.NoError(t, err)

	assert.Equal(t, "/v1/accounts", gotPath)
	assert.Equal(t, "application/json", gotAccept)

	require.Len(t, records, 2)
	assert.Equal(t, "a-1", records[0]["id"])
	assert.Equal(t, json.Number("42"), records[0]["balance"])
	assert.Equal(t, "a-2", records[1]["id"])

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "), "authorization header %q", gotAuth)
	claims := parseTokenClaims(t, strings.TrimPrefix(gotAuth, "Bearer "))
	assert.Equal(t, "opsdesk", claims["iss"])
	assert.Equal(t, "ledger", claims["aud"])
}

func TestFetchCollection_JoinsBasePath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/ledger", nil)
	records, err := c.FetchCollection(context.Background(), "/v1/accounts")
	require.NoError(t, err)

	assert.Equal(t, "/ledger/v1/accounts", gotPath)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetchCollection_EmptyPath(t *testing.T) {
	c := newTestClient(t, "https://ledger.internal", nil)
	_, err := c.FetchCollection(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection path is required")
}

func TestFetchCollection_NotArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := c.FetchCollection(context.Background(), "/v1/accounts")
	require.Error(t, err)
	assert.True(t, resultset.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "/v1/accounts")
}

func TestFetchCollection_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		check    func(error) bool
		contains string
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			check:    apperrors.IsInternal,
			contains: "rejected credentials",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			check:    apperrors.IsInternal,
			contains: "rejected credentials",
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			check:    apperrors.IsNotFound,
			contains: "not found",
		},
		{
			name:     "server error with detail",
			status:   http.StatusInternalServerError,
			body:     "replica lag too high",
			check:    apperrors.IsInternal,
			contains: "replica lag too high",
		},
		{
			name:     "unavailable without detail",
			status:   http.StatusServiceUnavailable,
			check:    apperrors.IsInternal,
			contains: "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)
			_, err := c.FetchCollection(context.Background(), "/v1/accounts")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFetchCollection_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})
	_, err := c.FetchCollection(context.Background(), "/v1/accounts")
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err), "unexpected error: %v", err)
}

func TestFetchCollection_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, server.URL, nil)
	_, err := c.FetchCollection(ctx, "/v1/accounts")
	require.Error(t, err)
	assert.True(t, apperrors.IsCanceled(err), "unexpected error: %v", err)
}

func TestFetchCollection_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a-1","note":"this payload is longer than the cap"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.MaxResponseBytes = 16
	})
	_, err := c.FetchCollection(context.Background(), "/v1/accounts")
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

// parseTokenClaims verifies the signature only. Several tests mint
// tokens at a fixed past instant, so expiry is not validated here.
func parseTokenClaims(t *testing.T, signed string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(_ *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	return claims
}
