package bootstrap

import (
	"log/slog"

	"github.com/meridianbank/opsdesk/config"
	"github.com/meridianbank/opsdesk/internal/adapters/authroles"
	"github.com/meridianbank/opsdesk/internal/adapters/devauth"
	"github.com/meridianbank/opsdesk/internal/adapters/oidc"
	redisadapter "github.com/meridianbank/opsdesk/internal/adapters/redis"
	"github.com/meridianbank/opsdesk/internal/ports"
	"github.com/meridianbank/opsdesk/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthConfig carries what BuildAuthService needs: the parsed auth settings
// plus the shared Redis client and logger.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildAuthService assembles the auth service for the configured mode.
// Misconfiguration degrades to nil instead of failing startup; the router
// then omits the login routes and the API guards pass requests through.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	if cfg.RedisClient == nil {
		cfg.warn("auth disabled: no redis client for the session store", "mode", cfg.Auth.Mode)
		return nil
	}

	provider := cfg.buildProvider()
	if provider == nil {
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Sessions: redisadapter.NewSessionStore(cfg.RedisClient),
		Roles: authroles.StaticRoleMapper{
			ManagerGroup: cfg.Auth.ManagerGroup,
			ClerkGroup:   cfg.Auth.ClerkGroup,
		},
		Logger:        cfg.Logger,
		MaxSessionTTL: cfg.Auth.SessionTTL,
	})
}

// buildProvider returns the identity provider for the configured mode, or
// nil when the mode is unknown or its settings are incomplete.
func (cfg AuthConfig) buildProvider() ports.AuthProvider {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		dev := cfg.Auth.DevAuth
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:    dev.UserID,
			FirstName: dev.FirstName,
			LastName:  dev.LastName,
			Email:     dev.Email,
			Groups:    dev.Groups,
		})
		if err != nil {
			cfg.warn("auth disabled: dev auth provider rejected its config", "error", err)
			return nil
		}
		return prov

	case config.AuthModeOAuth:
		oauth := cfg.Auth.OAuth
		if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
			cfg.warn("auth disabled: oauth mode needs discovery URL, client ID, and client secret",
				"discovery_url_set", oauth.DiscoveryURL != "",
				"client_id_set", oauth.ClientID != "",
				"client_secret_set", oauth.ClientSecret != "",
			)
			return nil
		}

		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
		})
		if err != nil {
			cfg.warn("auth disabled: oidc provider construction failed", "error", err)
			return nil
		}
		return prov

	default:
		cfg.warn("auth disabled: unknown auth mode", "mode", cfg.Auth.Mode)
		return nil
	}
}

func (cfg AuthConfig) warn(msg string, args ...any) {
	if cfg.Logger != nil {
		cfg.Logger.Warn(msg, args...)
	}
}
