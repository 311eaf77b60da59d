package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/port"
)

// ErrReauthenticationRequired means the refresh exchange itself failed; the
// current operation is dead and the kiosk has to sign in again.
var ErrReauthenticationRequired = errors.New("credential refresh failed, sign in required")

// TokenAuthority owns the access/refresh credential pair. The credential is
// only ever replaced wholesale under the mutex, so no caller can observe a
// half-updated pair.
type TokenAuthority struct {
	mu     sync.RWMutex
	cred   domain.Credential
	idp    port.IdentityProvider
	cache  port.CacheRepository
	margin time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenAuthority seeds the credential from the persisted store, falling
// back to the configured credential when nothing is stored yet.
func NewTokenAuthority(ctx context.Context, idp port.IdentityProvider, cache port.CacheRepository, fallback domain.Credential, margin time.Duration, logger *zap.Logger) *TokenAuthority {
	t := &TokenAuthority{
		idp:    idp,
		cache:  cache,
		cred:   fallback,
		margin: margin,
		logger: logger,
		now:    time.Now,
	}
	if stored, err := cache.LoadCredential(ctx); err != nil {
		logger.Warn("failed to load persisted credential, using fallback", zap.Error(err))
	} else if stored != nil && !stored.IsZero() {
		t.cred = normalizeExpiry(*stored)
	}
	return t
}

// AccessToken returns the current token without side effects.
func (t *TokenAuthority) AccessToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cred.AccessToken
}

// IsExpired treats a token within the safety margin of its deadline as
// already expired.
func (t *TokenAuthority) IsExpired() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cred.Expired(t.now(), t.margin)
}

// Refresh performs exactly one refresh exchange. On success the credential
// is replaced atomically and persisted; on failure the old credential stays
// in place and the error is surfaced, never retried here.
func (t *TokenAuthority) Refresh(ctx context.Context) (*domain.Credential, error) {
	t.mu.Lock()
	refreshToken := t.cred.RefreshToken
	t.mu.Unlock()

	fresh, err := t.idp.Refresh(ctx, refreshToken)
	if err != nil {
		t.logger.Error("credential refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrReauthenticationRequired, err)
	}

	cred := normalizeExpiry(*fresh)
	if cred.RefreshToken == "" {
		// provider may rotate only the access token
		cred.RefreshToken = refreshToken
	}

	t.mu.Lock()
	t.cred = cred
	t.mu.Unlock()

	if err := t.cache.StoreCredential(ctx, cred); err != nil {
		t.logger.Warn("failed to persist refreshed credential", zap.Error(err))
	}
	t.logger.Info("credential refreshed", zap.Time("expires_at", cred.ExpiresAt))
	return &cred, nil
}

// GetValidToken returns the current token, refreshing at most once when it
// is expired or about to expire.
func (t *TokenAuthority) GetValidToken(ctx context.Context) (string, error) {
	if !t.IsExpired() {
		return t.AccessToken(), nil
	}
	cred, err := t.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// normalizeExpiry backfills a missing expiry from the access token's exp
// claim when the token happens to be a JWT.
func normalizeExpiry(cred domain.Credential) domain.Credential {
	if !cred.ExpiresAt.IsZero() {
		return cred
	}
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(cred.AccessToken, &claims); err != nil {
		return cred
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred
}
