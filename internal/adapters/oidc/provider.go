// Package oidc implements the identity provider port against the bank's
// corporate SSO using the OpenID Connect authorization code flow. The issuer
// is discovered once at construction; Begin and Exchange then run off the
// discovered endpoints.
//
// Claim handling is tolerant by necessity. The corporate IdP fronts Active
// Directory and, depending on the tenant, emits either standard OIDC claims
// or raw directory attributes (samaccountname, memberof). Standard claims win
// when both are present.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/ports"
	"golang.org/x/oauth2"
)

// Provider runs the authorization code flow against a discovered issuer and
// normalizes the returned claims into a domain Identity.
type Provider struct {
	oauth    *oauth2.Config
	op       *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	client   *http.Client
}

var _ ports.AuthProvider = (*Provider)(nil)

// ProviderConfig carries the client registration and issuer location.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scope is space separated, e.g. "openid profile email". Without the
	// openid scope no id_token is requested and every claim comes from the
	// userinfo endpoint.
	Scope string
	// DiscoveryURL accepts either the bare issuer or the full discovery
	// document URL.
	DiscoveryURL string
	HTTPClient   *http.Client // optional, defaults to a 30s timeout client
}

// NewProvider validates the registration and fetches the discovery document.
// Construction fails when the issuer is unreachable.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	op, err := gooidc.NewProvider(ctx, issuerFrom(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("discover issuer: %w", err)
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		op:       op,
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:   client,
	}, nil
}

// issuerFrom derives the issuer go-oidc expects from either a bare issuer or
// a full discovery document URL.
func issuerFrom(discoveryURL string) string {
	issuer := strings.TrimSuffix(discoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	return strings.TrimSuffix(issuer, "/")
}

// Begin mints the state and nonce for a new login attempt and builds the IdP
// authorization URL carrying them.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri has to match the registered RedirectURL exactly, so the
	// caller's URL is not forwarded to the IdP.
	authURL := p.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange redeems the authorization code and assembles the Identity from the
// verified id_token, topped up from the userinfo endpoint when the token
// leaves out the subject or email.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = p.requestContext(ctx)
	token, err := p.oauth.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	fields, err := p.fieldsFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}
	if fields.userID == "" || fields.email == "" {
		if err := p.fillFromUserInfo(ctx, token.AccessToken, &fields); err != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", err)
		}
	}

	// Prefer the access token lifetime, then the id_token exp claim. A zero
	// expiry is passed through for the session policy to cap.
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = fields.expiresAt
	}

	return domainauth.Identity{
		UserID:    fields.userID,
		FirstName: fields.givenName,
		LastName:  fields.familyName,
		Email:     fields.email,
		Groups:    fields.groups,
		ExpiresAt: expiry,
	}, nil
}

// requestContext pins the provider's HTTP client so token and userinfo calls
// share the discovery call's timeout policy.
func (p *Provider) requestContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// idFields collects the claims the rest of the system cares about,
// independent of which source supplied them.
type idFields struct {
	userID     string
	email      string
	givenName  string
	familyName string
	groups     []string
	expiresAt  time.Time
}

// fieldsFromIDToken verifies the id_token and maps its claims. Without the
// openid scope there is no id_token and the zero value comes back, leaving
// userinfo as the only claim source.
func (p *Provider) fieldsFromIDToken(ctx context.Context, tok *oauth2.Token, nonce string) (idFields, error) {
	if !p.requestsOpenID() {
		return idFields{}, nil
	}
	raw, err := idTokenFrom(tok)
	if err != nil {
		return idFields{}, err
	}
	verified, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return idFields{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if err := verified.Claims(&claims); err != nil {
		return idFields{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	if claims.Nonce != nonce {
		return idFields{}, errors.New("nonce mismatch")
	}
	return mapIDTokenClaims(claims), nil
}

// requestsOpenID reports whether the configured scopes ask for an id_token.
func (p *Provider) requestsOpenID() bool {
	return slices.Contains(p.oauth.Scopes, gooidc.ScopeOpenID)
}

// idTokenFrom pulls the raw id_token out of the token endpoint response.
func idTokenFrom(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errors.New("missing id_token in token response")
	}
	return raw, nil
}

// idTokenClaims is a superset of standard OIDC claims and the AD/ADFS shape
// some corporate tenants emit. Precedence lives in mapIDTokenClaims.
type idTokenClaims struct {
	Sub               string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username"`
	SamAccountName    string   `json:"samaccountname"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	FirstName         string   `json:"firstname"`
	LastName          string   `json:"lastname"`
	Email             string   `json:"email"`
	Mail              string   `json:"mail"`
	Groups            []string `json:"groups"`
	MemberOf          []string `json:"memberof"`
	ExpiresAt         int64    `json:"exp"`
	Nonce             string   `json:"nonce"`
}

// mapIDTokenClaims maps raw id_token claims into idFields. Standard OIDC
// claims win, directory aliases are the fallback.
func mapIDTokenClaims(c idTokenClaims) idFields {
	f := idFields{
		userID:     firstNonEmpty(c.PreferredUsername, c.SamAccountName, c.Sub),
		email:      firstNonEmpty(c.Email, c.Mail),
		givenName:  firstNonEmpty(c.GivenName, c.FirstName),
		familyName: firstNonEmpty(c.FamilyName, c.LastName),
		groups:     c.Groups,
	}
	if len(f.groups) == 0 {
		f.groups = c.MemberOf
	}
	if c.ExpiresAt > 0 {
		f.expiresAt = time.Unix(c.ExpiresAt, 0)
	}
	return f
}

// userInfoClaims mirrors idTokenClaims for the userinfo endpoint payload.
type userInfoClaims struct {
	Subject           string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username"`
	SamAccountName    string   `json:"samaccountname"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	FirstName         string   `json:"firstname"`
	LastName          string   `json:"lastname"`
	Email             string   `json:"email"`
	Mail              string   `json:"mail"`
	Groups            []string `json:"groups"`
	MemberOf          []string `json:"memberof"`
}

// fillFromUserInfo fetches the userinfo payload and fills whatever the
// id_token left empty.
func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	ui, err := p.op.UserInfo(ctx, src)
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var claims userInfoClaims
	if err := ui.Claims(&claims); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	fillFromUserInfoClaims(f, claims)
	return nil
}

// fillFromUserInfoClaims applies the mapIDTokenClaims precedence to a
// userinfo payload, only touching fields that are still empty.
func fillFromUserInfoClaims(f *idFields, ui userInfoClaims) {
	if f.userID == "" {
		f.userID = firstNonEmpty(ui.PreferredUsername, ui.SamAccountName, ui.Subject)
	}
	if f.email == "" {
		f.email = firstNonEmpty(ui.Email, ui.Mail)
	}
	if f.givenName == "" {
		f.givenName = firstNonEmpty(ui.GivenName, ui.FirstName)
	}
	if f.familyName == "" {
		f.familyName = firstNonEmpty(ui.FamilyName, ui.LastName)
	}
	if len(f.groups) == 0 {
		f.groups = ui.Groups
	}
	if len(f.groups) == 0 {
		f.groups = ui.MemberOf
	}
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// randomToken returns a 32 character URL-safe random string for state and
// nonce values.
func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
