package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/ports"
)

// defaultMaxSessionTTL caps session lifetime when the options leave it unset.
// Back-office sessions should not outlive a long working day; a fresh login
// the next morning is cheap.
const defaultMaxSessionTTL = 12 * time.Hour

// errSessionExpired marks a session that existed but has passed its expiry.
// Callers treat it like any other failed lookup; the split only matters for
// logs and tests.
var errSessionExpired = errors.New("session expired")

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Sessions ports.SessionStore
	Roles    ports.RoleMapper
	Logger   *slog.Logger // optional: without it login events go unlogged

	// MaxSessionTTL bounds how long a session may live regardless of the
	// token expiry the identity provider reports. Zero or negative selects
	// defaultMaxSessionTTL.
	MaxSessionTTL time.Duration
}

// AuthService runs the login flow end to end: it hands the browser off to
// the identity provider, turns the provider's callback into an application
// session, and answers session lookups for the rest of the API.
type AuthService struct {
	provider ports.AuthProvider
	sessions ports.SessionStore
	roles    ports.RoleMapper
	logger   *slog.Logger
	maxTTL   time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "auth_service")
	}

	maxTTL := opts.MaxSessionTTL
	if maxTTL <= 0 {
		maxTTL = defaultMaxSessionTTL
	}

	return &AuthService{
		provider: opts.Provider,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		logger:   logger,
		maxTTL:   maxTTL,
	}
}

// BeginLoginResult carries everything the HTTP layer needs to send the
// browser to the identity provider: the auth URL to redirect to, plus the
// state and nonce that must round-trip through the client and come back on
// the callback.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin starts a login flow against the configured provider.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, apperrors.Validation("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput carries the callback parameters from the provider. The
// state and nonce are the values the HTTP layer stashed at BeginLogin time,
// already matched against what came back on the wire.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLoginResult contains the session created for the logged-in user.
type CompleteLoginResult struct {
	Session domainauth.Session
}

// CompleteLogin exchanges the authorization code for an identity, maps the
// provider's groups to an application role, and persists a session whose
// lifetime is the provider's token expiry capped at the configured maximum.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	if input.Code == "" {
		return nil, apperrors.Validation("authorization code is required")
	}
	if input.State == "" {
		return nil, apperrors.Validation("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, apperrors.Validation("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	session := domainauth.Session{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Role:      s.roles.Map(identity.Groups),
		ExpiresAt: s.sessionExpiry(identity.ExpiresAt),
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "login completed",
			"user_id", session.UserID,
			"role", session.Role,
			"expires_at", session.ExpiresAt,
		)
	}

	return &CompleteLoginResult{Session: session}, nil
}

// sessionExpiry derives a session expiry from the provider's token expiry,
// capped at maxTTL from now. A provider that reports no expiry at all gets
// the full cap rather than an instantly dead session.
func (s *AuthService) sessionExpiry(providerExpiry time.Time) time.Time {
	limit := time.Now().Add(s.maxTTL)
	if providerExpiry.IsZero() || providerExpiry.After(limit) {
		return limit
	}
	return providerExpiry
}

// GetSession returns the live session with the given ID. An expired session
// is deleted on sight and reported as expired.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, apperrors.Validation("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, errSessionExpired
	}

	return &session, nil
}

// Logout removes a session. An empty ID is not an error: the state the
// caller wants, no session, already holds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
