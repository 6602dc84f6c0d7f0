package bootstrap

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meridianbank/opsdesk/config"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRedisClient returns a client that is never dialed; BuildAuthService
// only hands it to the session store.
func testRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func mockModeConfig() config.AuthConfig {
	return config.AuthConfig{
		Mode:         config.AuthModeMock,
		ManagerGroup: "ops-managers",
		ClerkGroup:   "ops-clerks",
		DevAuth: config.DevAuthConfig{
			UserID:    "dev-user",
			FirstName: "Dev",
			LastName:  "User",
			Email:     "dev@meridianbank.example",
			Groups:    []string{"ops-managers"},
		},
	}
}

func oauthModeConfig(discoveryURL string) config.AuthConfig {
	return config.AuthConfig{
		Mode:         config.AuthModeOAuth,
		ManagerGroup: "ops-managers",
		ClerkGroup:   "ops-clerks",
		OAuth: config.OAuthConfig{
			ClientID:     "opsdesk-ui",
			ClientSecret: "client-secret",
			RedirectURL:  "https://opsdesk.meridianbank.example/auth/callback",
			Scope:        "openid profile email groups",
			DiscoveryURL: discoveryURL,
		},
	}
}

// newDiscoveryServer serves a minimal OIDC discovery document so the oauth
// path can construct its provider.
func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/jwks",
		})
	})
	return srv
}

func TestBuildAuthService_NoRedis(t *testing.T) {
	var buf bytes.Buffer
	cfg := AuthConfig{
		Auth:   mockModeConfig(),
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}

	if svc := BuildAuthService(cfg); svc != nil {
		t.Fatalf("BuildAuthService() = %v, want nil without redis", svc)
	}
	if !strings.Contains(buf.String(), "auth disabled") {
		t.Errorf("expected an auth disabled warning, got %q", buf.String())
	}
}

func TestBuildAuthService_MockMode(t *testing.T) {
	cfg := AuthConfig{
		Auth:        mockModeConfig(),
		RedisClient: testRedisClient(t),
		Logger:      discardLogger(),
	}

	if svc := BuildAuthService(cfg); svc == nil {
		t.Fatal("BuildAuthService() = nil, want a service in mock mode")
	}
}

func TestBuildAuthService_MockModeBadDevIdentity(t *testing.T) {
	auth := mockModeConfig()
	auth.DevAuth.Email = ""

	cfg := AuthConfig{
		Auth:        auth,
		RedisClient: testRedisClient(t),
		Logger:      discardLogger(),
	}
	if svc := BuildAuthService(cfg); svc != nil {
		t.Fatalf("BuildAuthService() = %v, want nil for an invalid dev identity", svc)
	}
}

func TestBuildAuthService_OAuthMode(t *testing.T) {
	srv := newDiscoveryServer(t)

	cfg := AuthConfig{
		Auth:        oauthModeConfig(srv.URL),
		RedisClient: testRedisClient(t),
		Logger:      discardLogger(),
	}
	if svc := BuildAuthService(cfg); svc == nil {
		t.Fatal("BuildAuthService() = nil, want a service once discovery succeeds")
	}
}

func TestBuildAuthService_OAuthModeIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.OAuthConfig)
	}{
		{"missing discovery URL", func(c *config.OAuthConfig) { c.DiscoveryURL = "" }},
		{"missing client ID", func(c *config.OAuthConfig) { c.ClientID = "" }},
		{"missing client secret", func(c *config.OAuthConfig) { c.ClientSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := oauthModeConfig("https://sso.meridianbank.example")
			tt.mutate(&auth.OAuth)

			cfg := AuthConfig{
				Auth:        auth,
				RedisClient: testRedisClient(t),
				Logger:      discardLogger(),
			}
			if svc := BuildAuthService(cfg); svc != nil {
				t.Fatalf("BuildAuthService() = %v, want nil", svc)
			}
		})
	}
}

func TestBuildAuthService_OAuthModeUnreachableIssuer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	cfg := AuthConfig{
		Auth:        oauthModeConfig(addr),
		RedisClient: testRedisClient(t),
		Logger:      discardLogger(),
	}
	if svc := BuildAuthService(cfg); svc != nil {
		t.Fatalf("BuildAuthService() = %v, want nil when discovery fails", svc)
	}
}

func TestBuildAuthService_UnknownMode(t *testing.T) {
	auth := mockModeConfig()
	auth.Mode = config.AuthMode("saml")

	cfg := AuthConfig{
		Auth:        auth,
		RedisClient: testRedisClient(t),
		Logger:      discardLogger(),
	}
	if svc := BuildAuthService(cfg); svc != nil {
		t.Fatalf("BuildAuthService() = %v, want nil for unknown mode", svc)
	}
}
