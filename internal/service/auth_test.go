package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/opsdesk/internal/adapters/authroles"
	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	authmocks "github.com/meridianbank/opsdesk/internal/mocks/auth"
	"github.com/meridianbank/opsdesk/internal/ports"
)

// authFixture bundles the service options with the test doubles behind them
// so cases can script the provider or inspect the store directly. Mutate the
// options before calling build.
type authFixture struct {
	provider *authmocks.MockAuthProvider
	sessions *authmocks.MemorySessionStore
	opts     AuthServiceOptions
}

func newAuthFixture() *authFixture {
	provider := authmocks.NewMockAuthProvider()
	sessions := authmocks.NewMemorySessionStore()
	return &authFixture{
		provider: provider,
		sessions: sessions,
		opts: AuthServiceOptions{
			Provider: provider,
			Sessions: sessions,
			Roles:    authroles.StaticRoleMapper{ManagerGroup: "ops-managers", ClerkGroup: "ops-clerks"},
		},
	}
}

func (f *authFixture) build() *AuthService {
	return NewAuthService(f.opts)
}

func completeInput() CompleteLoginInput {
	return CompleteLoginInput{Code: "auth-code", State: "state-1", Nonce: "nonce-1"}
}

// stubSessionStore scripts store failures and counts deletes.
type stubSessionStore struct {
	saveFunc   func(context.Context, domainauth.Session) error
	getFunc    func(context.Context, string) (domainauth.Session, error)
	deleteFunc func(context.Context, string) error
	deletes    int
}

func (s *stubSessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if s.saveFunc != nil {
		return s.saveFunc(ctx, sess)
	}
	return nil
}

func (s *stubSessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, id)
	}
	return domainauth.Session{}, nil
}

func (s *stubSessionStore) Delete(ctx context.Context, id string) error {
	s.deletes++
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, id)
	}
	return nil
}

func TestNewAuthService_SessionTTL(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"unset uses default", 0, defaultMaxSessionTTL},
		{"negative uses default", -time.Hour, defaultMaxSessionTTL},
		{"explicit wins", 30 * time.Minute, 30 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newAuthFixture()
			f.opts.MaxSessionTTL = tc.ttl
			assert.Equal(t, tc.want, f.build().maxTTL)
		})
	}
}

func TestAuthService_BeginLogin(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()

	result, err := f.build().BeginLogin(context.Background(), "http://localhost:8080/callback")

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", result.AuthURL)
	assert.Equal(t, "state-1", result.State)
	assert.Equal(t, "nonce-1", result.Nonce)
}

func TestAuthService_BeginLogin_EmptyRedirectURL(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()

	result, err := f.build().BeginLogin(context.Background(), "")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestAuthService_BeginLogin_ProviderError(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.provider.BeginFunc = func(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
		return "", "", "", errors.New("idp unreachable")
	}

	result, err := f.build().BeginLogin(context.Background(), "http://localhost:8080/callback")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "begin auth flow")
	assert.Contains(t, err.Error(), "idp unreachable")
}

func TestAuthService_CompleteLogin_MissingParams(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   CompleteLoginInput
		wantMsg string
	}{
		{"no code", CompleteLoginInput{State: "state-1", Nonce: "nonce-1"}, "authorization code is required"},
		{"no state", CompleteLoginInput{Code: "auth-code", Nonce: "nonce-1"}, "state parameter is required"},
		{"no nonce", CompleteLoginInput{Code: "auth-code", State: "state-1"}, "nonce parameter is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newAuthFixture()

			result, err := f.build().CompleteLogin(context.Background(), tc.input)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestAuthService_CompleteLogin_CreatesSession(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	ctx := context.Background()

	result, err := f.build().CompleteLogin(ctx, completeInput())

	require.NoError(t, err)
	sess := result.Session
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, "mock-user-1", sess.UserID)
	assert.Equal(t, "Mock", sess.FirstName)
	assert.Equal(t, "User", sess.LastName)
	assert.Equal(t, "mock.user@example.com", sess.Email)
	assert.Equal(t, domainauth.RoleClerk, sess.Role)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	// The session the caller gets is the one the store holds.
	stored, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, stored)
}

func TestAuthService_CompleteLogin_RoleMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		groups []string
		want   domainauth.Role
	}{
		{"manager group wins", []string{"ops-clerks", "ops-managers"}, domainauth.RoleManager},
		{"clerk group", []string{"ops-clerks"}, domainauth.RoleClerk},
		{"unknown groups fall back to guest", []string{"print-operators"}, domainauth.RoleGuest},
		{"no groups fall back to guest", nil, domainauth.RoleGuest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newAuthFixture()
			f.provider.DefaultUser = domainauth.Identity{
				UserID:    "user-1",
				Email:     "user@meridianbank.example",
				Groups:    tc.groups,
				ExpiresAt: time.Now().Add(time.Hour),
			}

			result, err := f.build().CompleteLogin(context.Background(), completeInput())

			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Session.Role)
		})
	}
}

func TestAuthService_CompleteLogin_UsesProviderExpiry(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	providerExpiry := time.Now().Add(time.Hour)
	f.provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{UserID: "user-1", Groups: []string{"ops-clerks"}, ExpiresAt: providerExpiry}, nil
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.NoError(t, err)
	assert.Equal(t, providerExpiry, result.Session.ExpiresAt)
}

func TestAuthService_CompleteLogin_CapsProviderExpiry(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{UserID: "user-1", ExpiresAt: time.Now().Add(72 * time.Hour)}, nil
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultMaxSessionTTL), result.Session.ExpiresAt, 2*time.Second)
}

func TestAuthService_CompleteLogin_DefaultsMissingExpiry(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		// Some providers omit the token expiry entirely.
		return domainauth.Identity{UserID: "user-1"}, nil
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultMaxSessionTTL), result.Session.ExpiresAt, 2*time.Second)
}

func TestAuthService_CompleteLogin_HonorsCustomTTL(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.opts.MaxSessionTTL = 30 * time.Minute
	f.provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), result.Session.ExpiresAt, 2*time.Second)
}

func TestAuthService_CompleteLogin_ExchangeError(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, errors.New("code already used")
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "exchange authorization code")
	assert.Contains(t, err.Error(), "code already used")
}

func TestAuthService_CompleteLogin_SaveError(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.opts.Sessions = &stubSessionStore{
		saveFunc: func(_ context.Context, _ domainauth.Session) error {
			return errors.New("redis down")
		},
	}

	result, err := f.build().CompleteLogin(context.Background(), completeInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "save session")
	assert.Contains(t, err.Error(), "redis down")
}

func TestAuthService_GetSession(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	ctx := context.Background()
	saved := domainauth.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Email:     "user@meridianbank.example",
		Role:      domainauth.RoleClerk,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, f.sessions.Save(ctx, saved))

	result, err := f.build().GetSession(ctx, "sess-1")

	require.NoError(t, err)
	assert.Equal(t, saved, *result)
}

func TestAuthService_GetSession_EmptyID(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()

	result, err := f.build().GetSession(context.Background(), "")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAuthService_GetSession_Unknown(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()

	result, err := f.build().GetSession(context.Background(), "no-such-session")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "get session")
}

func TestAuthService_GetSession_ExpiredIsDeleted(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	ctx := context.Background()
	expired := domainauth.Session{
		ID:        "sess-old",
		UserID:    "user-1",
		Role:      domainauth.RoleClerk,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, f.sessions.Save(ctx, expired))

	result, err := f.build().GetSession(ctx, "sess-old")

	require.ErrorIs(t, err, errSessionExpired)
	assert.Nil(t, result)

	_, err = f.sessions.Get(ctx, "sess-old")
	assert.ErrorIs(t, err, authmocks.ErrNotFound)
}

func TestAuthService_GetSession_ExpiredDeleteFails(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.opts.Sessions = &stubSessionStore{
		getFunc: func(_ context.Context, id string) (domainauth.Session, error) {
			return domainauth.Session{ID: id, ExpiresAt: time.Now().Add(-time.Minute)}, nil
		},
		deleteFunc: func(_ context.Context, _ string) error {
			return errors.New("redis down")
		},
	}

	result, err := f.build().GetSession(context.Background(), "sess-old")

	require.ErrorIs(t, err, errSessionExpired)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "delete session")
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, f.sessions.Save(ctx, domainauth.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}))

	require.NoError(t, f.build().Logout(ctx, "sess-1"))

	_, err := f.sessions.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, authmocks.ErrNotFound)
}

func TestAuthService_Logout_EmptyIDSkipsStore(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	store := &stubSessionStore{}
	f.opts.Sessions = store

	err := f.build().Logout(context.Background(), "")

	require.NoError(t, err)
	assert.Zero(t, store.deletes)
}

func TestAuthService_Logout_DeleteError(t *testing.T) {
	t.Parallel()
	f := newAuthFixture()
	f.opts.Sessions = &stubSessionStore{
		deleteFunc: func(_ context.Context, _ string) error {
			return errors.New("redis down")
		},
	}

	err := f.build().Logout(context.Background(), "sess-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete session")
	assert.Contains(t, err.Error(), "redis down")
}
