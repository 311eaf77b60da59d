package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAuthority(idp *mockIdentity, cache *mockCache, cred domain.Credential) *TokenAuthority {
	t := NewTokenAuthority(context.Background(), idp, cache, cred, 30*time.Second, zap.NewNop())
	t.now = fixedNow
	return t
}

func TestTokenAuthority_IsExpired_Margin(t *testing.T) {
	cases := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"well within lifetime", fixedNow().Add(time.Hour), false},
		{"inside safety margin", fixedNow().Add(10 * time.Second), true},
		{"already past", fixedNow().Add(-time.Minute), true},
		{"no expiry set", time.Time{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := newTestAuthority(&mockIdentity{}, newMockCache(), domain.Credential{
				AccessToken:  "tok",
				RefreshToken: "ref",
				ExpiresAt:    tc.expiresAt,
			})
			assert.Equal(t, tc.expired, auth.IsExpired())
		})
	}
}

func TestTokenAuthority_RefreshReplacesAndPersists(t *testing.T) {
	fresh := &domain.Credential{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    fixedNow().Add(time.Hour),
	}
	idp := &mockIdentity{cred: fresh}
	cache := newMockCache()

	auth := newTestAuthority(idp, cache, domain.Credential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    fixedNow().Add(-time.Minute),
	})

	cred, err := auth.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "new-access", auth.AccessToken())

	require.NotNil(t, cache.credential)
	assert.Equal(t, "new-refresh", cache.credential.RefreshToken)
}

func TestTokenAuthority_RefreshFailureKeepsOldCredential(t *testing.T) {
	idp := &mockIdentity{err: errors.New("provider down")}
	auth := newTestAuthority(idp, newMockCache(), domain.Credential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    fixedNow().Add(-time.Minute),
	})

	_, err := auth.Refresh(context.Background())
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Equal(t, "old-access", auth.AccessToken())
}

func TestTokenAuthority_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	idp := &mockIdentity{cred: &domain.Credential{
		AccessToken: "new-access",
		ExpiresAt:   fixedNow().Add(time.Hour),
	}}
	auth := newTestAuthority(idp, newMockCache(), domain.Credential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	})

	cred, err := auth.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", cred.RefreshToken)
}

func TestTokenAuthority_GetValidToken(t *testing.T) {
	t.Run("valid token returned without refresh", func(t *testing.T) {
		idp := &mockIdentity{}
		auth := newTestAuthority(idp, newMockCache(), domain.Credential{
			AccessToken: "tok",
			ExpiresAt:   fixedNow().Add(time.Hour),
		})

		tok, err := auth.GetValidToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
		assert.Equal(t, 0, idp.refreshCount())
	})

	t.Run("expired token refreshed exactly once", func(t *testing.T) {
		idp := &mockIdentity{cred: &domain.Credential{
			AccessToken: "fresh",
			ExpiresAt:   fixedNow().Add(time.Hour),
		}}
		auth := newTestAuthority(idp, newMockCache(), domain.Credential{
			AccessToken: "stale",
			ExpiresAt:   fixedNow().Add(-time.Minute),
		})

		tok, err := auth.GetValidToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok)
		assert.Equal(t, 1, idp.refreshCount())
	})
}

func TestTokenAuthority_SeedsFromPersistedCredential(t *testing.T) {
	cache := newMockCache()
	cache.credential = &domain.Credential{
		AccessToken:  "persisted",
		RefreshToken: "persisted-refresh",
		ExpiresAt:    fixedNow().Add(time.Hour),
	}

	auth := newTestAuthority(&mockIdentity{}, cache, domain.Credential{
		AccessToken: "fallback",
	})
	assert.Equal(t, "persisted", auth.AccessToken())
}
