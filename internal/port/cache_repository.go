package port

import (
	"context"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

// CacheRepository is the kiosk-local key-value store: the idempotency set,
// the recovery record, and the persisted credential all live here so they
// survive an engine restart.
type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// SaveRecovery overwrites the single recovery record
	SaveRecovery(ctx context.Context, rec domain.RecoveryRecord) error

	// ConsumeRecovery returns the recovery record and deletes it, or nil when absent
	ConsumeRecovery(ctx context.Context) (*domain.RecoveryRecord, error)

	// DeleteRecovery discards the recovery record without reading it
	DeleteRecovery(ctx context.Context) error

	// LoadCredential returns the persisted credential, or nil when absent
	LoadCredential(ctx context.Context) (*domain.Credential, error)

	// StoreCredential replaces the persisted credential wholesale
	StoreCredential(ctx context.Context, cred domain.Credential) error
}
