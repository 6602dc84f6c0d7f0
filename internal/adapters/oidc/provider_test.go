package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/meridianbank/opsdesk/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewProvider_DiscoversEndpoints(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	p := idp.provider(t)

	assert.Equal(t, idp.srv.URL+"/authorize", p.oauth.Endpoint.AuthURL)
	assert.Equal(t, idp.srv.URL+"/token", p.oauth.Endpoint.TokenURL)
}

func TestNewProvider_AcceptsDiscoveryDocumentURL(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	cfg := idp.config()
	cfg.DiscoveryURL = idp.srv.URL + "/.well-known/openid-configuration"

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, idp.srv.URL+"/authorize", p.oauth.Endpoint.AuthURL)
}

func TestNewProvider_MissingConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ProviderConfig)
		wantErr string
	}{
		{"missing client ID", func(c *ProviderConfig) { c.ClientID = "" }, "client ID is required"},
		{"missing client secret", func(c *ProviderConfig) { c.ClientSecret = "" }, "client secret is required"},
		{"missing redirect URL", func(c *ProviderConfig) { c.RedirectURL = "" }, "redirect URL is required"},
		{"missing discovery URL", func(c *ProviderConfig) { c.DiscoveryURL = "" }, "discovery URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Validation fires before discovery, so no server is needed.
			cfg := ProviderConfig{
				ClientID:     "opsdesk-ui",
				ClientSecret: "test-secret",
				RedirectURL:  "http://localhost:8080/auth/callback",
				Scope:        "openid profile email",
				DiscoveryURL: "https://sso.meridianbank.example",
			}
			tt.mutate(&cfg)

			_, err := NewProvider(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewProvider_UnreachableIssuer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewProvider(ProviderConfig{
		ClientID:     "opsdesk-ui",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		DiscoveryURL: addr,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover issuer")
}

func TestIssuerFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare issuer", "https://sso.example.com", "https://sso.example.com"},
		{"trailing slash", "https://sso.example.com/", "https://sso.example.com"},
		{
			"discovery document",
			"https://sso.example.com/.well-known/openid-configuration",
			"https://sso.example.com",
		},
		{
			"discovery document with trailing slash",
			"https://sso.example.com/.well-known/openid-configuration/",
			"https://sso.example.com",
		},
		{
			"tenant path",
			"https://sso.example.com/tenants/opsdesk/.well-known/openid-configuration",
			"https://sso.example.com/tenants/opsdesk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, issuerFrom(tt.in))
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	p := idp.provider(t)

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/datasets"})
	require.NoError(t, err)

	assert.Len(t, state, 32)
	assert.Len(t, nonce, 32)
	assert.NotEqual(t, state, nonce)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, idp.srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "opsdesk-ui", q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "openid profile email groups", q.Get("scope"))
	// The registered redirect is used, never the caller's.
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_uri"))
}

func TestProvider_Begin_EmptyRedirectURL(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	p := idp.provider(t)

	_, _, _, err := p.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_MissingParams(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	p := idp.provider(t)

	tests := []struct {
		name    string
		input   ports.ExchangeInput
		wantErr string
	}{
		{"missing code", ports.ExchangeInput{State: "s", Nonce: "n"}, "authorization code is required"},
		{"missing state", ports.ExchangeInput{Code: "c", Nonce: "n"}, "state is required"},
		{"missing nonce", ports.ExchangeInput{Code: "c", State: "s"}, "nonce is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProvider_Exchange_TokenEndpointRejects(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.rejectsToken()
	p := idp.provider(t)

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "stale", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code for token")
}

func TestProvider_Exchange_MissingIDToken(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.grantsToken()
	p := idp.provider(t)

	// The openid scope is requested but the token response carries no
	// id_token, so the exchange has to fail rather than trust userinfo alone.
	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id_token")
}

func TestProvider_Exchange_FillsFromUserInfo(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.grantsToken()
	idp.servesUserInfo(map[string]any{
		"sub":            "sub-7",
		"samaccountname": "jreyes",
		"firstname":      "Jordan",
		"lastname":       "Reyes",
		"mail":           "jordan.reyes@meridianbank.example",
		"memberof":       []string{"CN=OpsDesk-Managers,OU=Application,DC=corp,DC=meridianbank,DC=example"},
	})

	// Without the openid scope there is no id_token; the whole identity
	// comes from the userinfo endpoint in its directory shape.
	cfg := idp.config()
	cfg.Scope = "profile email groups"
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	identity, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)

	assert.Equal(t, "jreyes", identity.UserID)
	assert.Equal(t, "Jordan", identity.FirstName)
	assert.Equal(t, "Reyes", identity.LastName)
	assert.Equal(t, "jordan.reyes@meridianbank.example", identity.Email)
	assert.Equal(t, []string{"CN=OpsDesk-Managers,OU=Application,DC=corp,DC=meridianbank,DC=example"}, identity.Groups)
	// expires_in from the token endpoint is one hour
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 5*time.Second)
}

func Test_mapIDTokenClaims_StandardShape(t *testing.T) {
	t.Parallel()

	claims := idTokenClaims{
		Sub:               "sub-123",
		PreferredUsername: "jsmith",
		GivenName:         "Jordan",
		FamilyName:        "Smith",
		Email:             "jordan.smith@meridianbank.example",
		Groups:            []string{"ops-managers", "everyone"},
	}
	f := mapIDTokenClaims(claims)
	assert.Equal(t, "jsmith", f.userID)
	assert.Equal(t, "jordan.smith@meridianbank.example", f.email)
	assert.Equal(t, "Jordan", f.givenName)
	assert.Equal(t, "Smith", f.familyName)
	assert.Equal(t, claims.Groups, f.groups)
}

func Test_mapIDTokenClaims_DirectoryFallback(t *testing.T) {
	t.Parallel()

	claims := idTokenClaims{
		Sub:            "sub-123",
		SamAccountName: "jsmith",
		FirstName:      "Jordan",
		LastName:       "Smith",
		Mail:           "jordan.smith@meridianbank.example",
		MemberOf:       []string{"CN=OpsDesk-Clerks,OU=Application,DC=corp,DC=meridianbank,DC=example"},
	}
	f := mapIDTokenClaims(claims)
	assert.Equal(t, "jsmith", f.userID)
	assert.Equal(t, "jordan.smith@meridianbank.example", f.email)
	assert.Equal(t, "Jordan", f.givenName)
	assert.Equal(t, "Smith", f.familyName)
	assert.Equal(t, claims.MemberOf, f.groups)
}

func Test_mapIDTokenClaims_StandardWinsOverDirectory(t *testing.T) {
	t.Parallel()

	claims := idTokenClaims{
		Sub:               "sub-123",
		PreferredUsername: "jsmith",
		SamAccountName:    "legacy-jsmith",
		GivenName:         "Jordan",
		FirstName:         "Legacy",
		Email:             "jordan.smith@meridianbank.example",
		Mail:              "legacy@meridianbank.example",
		Groups:            []string{"ops-managers"},
		MemberOf:          []string{"CN=Legacy"},
	}
	f := mapIDTokenClaims(claims)
	assert.Equal(t, "jsmith", f.userID)
	assert.Equal(t, "jordan.smith@meridianbank.example", f.email)
	assert.Equal(t, "Jordan", f.givenName)
	assert.Equal(t, []string{"ops-managers"}, f.groups)
}

func Test_mapIDTokenClaims_ExpiryClaim(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(45 * time.Minute).Unix()
	f := mapIDTokenClaims(idTokenClaims{Sub: "s", ExpiresAt: exp})
	assert.Equal(t, time.Unix(exp, 0), f.expiresAt)

	f = mapIDTokenClaims(idTokenClaims{Sub: "s"})
	assert.True(t, f.expiresAt.IsZero())
}

func Test_fillFromUserInfoClaims(t *testing.T) {
	t.Parallel()

	ui := userInfoClaims{
		Subject:        "sub-abc",
		SamAccountName: "jsmith",
		FirstName:      "Jordan",
		LastName:       "Smith",
		Mail:           "jordan.smith@meridianbank.example",
		MemberOf:       []string{"CN=OpsDesk-Managers,OU=Application,DC=corp,DC=meridianbank,DC=example"},
	}
	var f idFields
	fillFromUserInfoClaims(&f, ui)
	assert.Equal(t, "jsmith", f.userID)
	assert.Equal(t, "jordan.smith@meridianbank.example", f.email)
	assert.Equal(t, "Jordan", f.givenName)
	assert.Equal(t, "Smith", f.familyName)
	assert.Equal(t, ui.MemberOf, f.groups)

	// Fields already present are left alone.
	f2 := idFields{
		userID:     "keep",
		email:      "keep@meridianbank.example",
		givenName:  "Keep",
		familyName: "Keep",
		groups:     []string{"x"},
	}
	fillFromUserInfoClaims(&f2, ui)
	assert.Equal(t, "keep", f2.userID)
	assert.Equal(t, "keep@meridianbank.example", f2.email)
	assert.Equal(t, "Keep", f2.givenName)
	assert.Equal(t, "Keep", f2.familyName)
	assert.Equal(t, []string{"x"}, f2.groups)
}

func TestIDTokenFrom(t *testing.T) {
	t.Parallel()

	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	raw, err := idTokenFrom(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", raw)

	_, err = idTokenFrom((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id_token")

	_, err = idTokenFrom(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil token")
}

func TestRandomToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		tok, err := randomToken()
		require.NoError(t, err)
		assert.Len(t, tok, 32)
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		assert.NotContains(t, tok, "=")
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

// fakeIdP is a stub issuer. Discovery is always served; the token and
// userinfo endpoints are opt-in per test.
type fakeIdP struct {
	srv *httptest.Server
	mux *http.ServeMux
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		serveJSON(w, map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"userinfo_endpoint":      srv.URL + "/userinfo",
			"jwks_uri":               srv.URL + "/jwks",
		})
	})
	return &fakeIdP{srv: srv, mux: mux}
}

// config returns a registration pointing at the fake issuer.
func (f *fakeIdP) config() ProviderConfig {
	return ProviderConfig{
		ClientID:     "opsdesk-ui",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email groups",
		DiscoveryURL: f.srv.URL,
	}
}

func (f *fakeIdP) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(f.config())
	require.NoError(t, err)
	return p
}

// grantsToken serves a bearer token valid for an hour. No id_token is
// included, matching what providers return when openid is not requested.
func (f *fakeIdP) grantsToken() {
	f.mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		serveJSON(w, map[string]any{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
}

func (f *fakeIdP) rejectsToken() {
	f.mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})
}

func (f *fakeIdP) servesUserInfo(claims map[string]any) {
	f.mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, _ *http.Request) {
		serveJSON(w, claims)
	})
}

func serveJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
