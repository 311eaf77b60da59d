package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

const (
	recoveryKey       = "checkout:recovery"
	credentialKey     = "checkout:credential"
	auditKey          = "audit:orphaned-payments"
	idempotencyKeyTTL = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) SaveRecovery(ctx context.Context, rec domain.RecoveryRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recovery record: %w", err)
	}
	return r.client.Set(ctx, recoveryKey, raw, 0).Err()
}

func (r *RedisAdapter) ConsumeRecovery(ctx context.Context) (*domain.RecoveryRecord, error) {
	raw, err := r.client.GetDel(ctx, recoveryKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec domain.RecoveryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal recovery record: %w", err)
	}
	return &rec, nil
}

func (r *RedisAdapter) DeleteRecovery(ctx context.Context) error {
	return r.client.Del(ctx, recoveryKey).Err()
}

func (r *RedisAdapter) LoadCredential(ctx context.Context) (*domain.Credential, error) {
	raw, err := r.client.Get(ctx, credentialKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &cred, nil
}

func (r *RedisAdapter) StoreCredential(ctx context.Context, cred domain.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	return r.client.Set(ctx, credentialKey, raw, 0).Err()
}

type orphanedPaymentEntry struct {
	At           time.Time `json:"at"`
	ResultCode   int       `json:"resultCode"`
	GatewayOrder string    `json:"gatewayOrderId"`
	TransID      string    `json:"transId"`
	LocalOrderID string    `json:"localOrderId"`
	ExtraData    string    `json:"extraData"`
}

// RecordOrphanedPayment appends a paid-but-unregistered payment to the audit
// list for later operational reconciliation.
func (r *RedisAdapter) RecordOrphanedPayment(ctx context.Context, cb domain.PaymentCallback, localOrderID string) error {
	raw, err := json.Marshal(orphanedPaymentEntry{
		At:           time.Now(),
		ResultCode:   cb.ResultCode,
		GatewayOrder: cb.OrderID,
		TransID:      cb.TransID,
		LocalOrderID: localOrderID,
		ExtraData:    cb.ExtraData,
	})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return r.client.RPush(ctx, auditKey, raw).Err()
}
