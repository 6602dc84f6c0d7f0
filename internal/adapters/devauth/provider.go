// Package devauth fakes an identity provider for local development. Begin
// sends the browser straight back to our own callback, and Exchange hands
// out a fixed identity from config. No network, no IdP tenant, no secrets.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"time"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/ports"
)

// devAuthCode is the placeholder authorization code carried through the
// callback round trip. Exchange never inspects it.
const devAuthCode = "dev"

const defaultSessionTTL = 8 * time.Hour

// Config describes the identity every dev login produces. UserID and Email
// are required; the rest may stay empty.
type Config struct {
	UserID          string
	FirstName       string
	LastName        string
	Email           string
	Groups          []string
	SessionDuration time.Duration // zero selects defaultSessionTTL
}

// Provider implements ports.AuthProvider against nothing at all. Every
// exchange yields the configured identity with a fresh expiry.
type Provider struct {
	identity   domainauth.Identity
	sessionTTL time.Duration
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	ttl := cfg.SessionDuration
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Provider{
		identity: domainauth.Identity{
			UserID:    cfg.UserID,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Email:     cfg.Email,
			Groups:    append([]string(nil), cfg.Groups...),
		},
		sessionTTL: ttl,
	}, nil
}

// Begin points the browser at our own callback with a placeholder code.
// State and nonce are still real random tokens so the handler's cookie
// round trip works exactly as it does against a live provider.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomToken()
	if err != nil {
		return "", "", "", err
	}
	nonce, err := randomToken()
	if err != nil {
		return "", "", "", err
	}

	q := url.Values{"code": {devAuthCode}, "state": {state}}
	return "/auth/callback?" + q.Encode(), state, nonce, nil
}

// Exchange ignores the code and returns a copy of the configured identity
// expiring one session TTL from now.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	id := p.identity
	id.Groups = append([]string(nil), p.identity.Groups...)
	id.ExpiresAt = time.Now().Add(p.sessionTTL)
	return id, nil
}

// randomToken returns an unguessable URL-safe string for state and nonce.
func randomToken() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
