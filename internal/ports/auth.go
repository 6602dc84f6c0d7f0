// Package ports declares the seams between the auth service and the
// infrastructure behind it. The service depends on these interfaces only.
// Concrete identity providers live in internal/adapters/oidc and
// internal/adapters/devauth, the session store in internal/adapters/redis,
// and hand-written test doubles in internal/mocks/auth.
package ports

import (
	"context"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
)

// BeginInput carries the parameters for starting a login flow.
type BeginInput struct {
	// RedirectURL is the application path the browser should land on once
	// the flow completes. Providers may validate it but do not forward it;
	// the registered callback URL is what the identity provider sees.
	RedirectURL string
}

// ExchangeInput carries the callback parameters for the code exchange.
// State and Nonce are the values issued by Begin; providers verify them
// against what the callback delivered.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider is an identity provider the login flow runs against.
type AuthProvider interface {
	// Begin returns the URL to send the browser to, plus the opaque state
	// and nonce that must survive the round trip through the client.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange trades the callback's authorization code for the verified
	// identity behind it.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// SessionStore persists sessions between requests. Implementations own
// their not-found error; the auth service treats any Get failure as no
// session.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleMapper turns the group claims an identity provider reports into the
// application role the rest of the API enforces.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}
