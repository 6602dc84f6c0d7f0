package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects which identity provider the API authenticates against.
type AuthMode string

const (
	// AuthModeOAuth authenticates against a real OIDC provider.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock authenticates everyone as the configured dev identity.
	// Development only.
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(string(text)); v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC provider settings.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"opsdesk"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:"opsdesk"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig is the fixed identity handed out when Mode=mock.
type DevAuthConfig struct {
	UserID    string   `env:"USER_ID"    envDefault:"dev-user"`
	FirstName string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string   `env:"LAST_NAME"  envDefault:"User"`
	Email     string   `env:"EMAIL"      envDefault:"dev@example.com"`
	Groups    []string `env:"GROUPS"     envDefault:"managers"      envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// SessionTTL caps how long a login session lives regardless of the
	// token expiry the identity provider reports.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"12h"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// ManagerGroup is the LDAP/AD group DN for managers, who can export
	// datasets and see the export audit trail.
	ManagerGroup string `env:"MANAGER_GROUP,required"`

	// ClerkGroup is the LDAP/AD group DN for back-office clerks.
	ClerkGroup string `env:"CLERK_GROUP,required"`
}
