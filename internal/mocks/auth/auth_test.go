package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAuthProvider_NumberedStateAndNonce(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()
	in := ports.BeginInput{RedirectURL: "http://localhost:8080/callback"}

	for i := 1; i <= 3; i++ {
		authURL, state, nonce, err := provider.Begin(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "https://mock-idp/auth", authURL)
		assert.Equal(t, fmt.Sprintf("state-%d", i), state)
		assert.Equal(t, fmt.Sprintf("nonce-%d", i), nonce)
	}
}

func TestMockAuthProvider_BeginOverride(t *testing.T) {
	provider := &MockAuthProvider{
		BeginFunc: func(_ context.Context, in ports.BeginInput) (string, string, string, error) {
			return "https://other-idp/login?to=" + in.RedirectURL, "s", "n", nil
		},
	}

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})

	require.NoError(t, err)
	assert.Equal(t, "https://other-idp/login?to=/", authURL)
	assert.Equal(t, "s", state)
	assert.Equal(t, "n", nonce)
}

func TestMockAuthProvider_ExchangeDefaultUser(t *testing.T) {
	provider := NewMockAuthProvider()

	identity, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "auth-code"})

	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", identity.UserID)
	assert.Equal(t, "Mock", identity.FirstName)
	assert.Equal(t, "User", identity.LastName)
	assert.Equal(t, "mock.user@example.com", identity.Email)
	assert.Equal(t, []string{"ops-clerks"}, identity.Groups)
	assert.True(t, identity.ExpiresAt.After(time.Now()))
}

func TestMockAuthProvider_ExchangeStampsZeroExpiry(t *testing.T) {
	provider := &MockAuthProvider{DefaultUser: domainauth.Identity{UserID: "user-1"}}

	identity, err := provider.Exchange(context.Background(), ports.ExchangeInput{})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 2*time.Second)
}

func TestMockAuthProvider_ExchangeKeepsExplicitExpiry(t *testing.T) {
	expiry := time.Now().Add(15 * time.Minute)
	provider := &MockAuthProvider{DefaultUser: domainauth.Identity{UserID: "user-1", ExpiresAt: expiry}}

	identity, err := provider.Exchange(context.Background(), ports.ExchangeInput{})

	require.NoError(t, err)
	assert.Equal(t, expiry, identity.ExpiresAt)
}

func TestMockAuthProvider_ExchangeCopiesGroups(t *testing.T) {
	provider := NewMockAuthProvider()

	first, err := provider.Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	first.Groups[0] = "mutated"

	second, err := provider.Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ops-clerks"}, second.Groups)
}

func TestMockAuthProvider_ExchangeOverride(t *testing.T) {
	provider := &MockAuthProvider{
		ExchangeFunc: func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
			return domainauth.Identity{}, errors.New("code expired")
		},
	}

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{})

	assert.EqualError(t, err, "code expired")
}

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	sess := domainauth.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Role:      domainauth.RoleClerk,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySessionStore_GetMissing(t *testing.T) {
	store := NewMemorySessionStore()

	for _, id := range []string{"", "no-such-session"} {
		_, err := store.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
	}
}

func TestMemorySessionStore_SaveEmptyID(t *testing.T) {
	store := NewMemorySessionStore()

	err := store.Save(context.Background(), domainauth.Session{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "session ID cannot be empty")
}

func TestMemorySessionStore_DeleteMissingIsNoop(t *testing.T) {
	store := NewMemorySessionStore()

	assert.NoError(t, store.Delete(context.Background(), "never-saved"))
}

func TestMemorySessionStore_ConcurrentUse(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n)
			_ = store.Save(ctx, domainauth.Session{ID: id, ExpiresAt: time.Now().Add(time.Hour)})
			_, _ = store.Get(ctx, id)
			_ = store.Delete(ctx, id)
		}(i)
	}
	wg.Wait()
}
