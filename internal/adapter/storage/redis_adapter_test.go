package storage

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	return client
}

func TestSetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	key := "order:submitted:test-KIOSK-1"
	client.Del(ctx, key)

	ok, err := adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if !ok {
		t.Error("expected first set to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	if ok {
		t.Error("expected second set to be rejected")
	}

	client.Del(ctx, key)
}

func TestRecoveryRecord_SaveConsume(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, recoveryKey)

	rec := domain.RecoveryRecord{
		Cart: domain.Cart{Items: []domain.CartItem{
			{ItemID: "x", UnitPrice: 10000, Quantity: 2},
		}},
		Customer: domain.CustomerInfo{Name: "A", Phone: "0900000000"},
		Reason:   "payment not completed (result code 1006)",
	}
	if err := adapter.SaveRecovery(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := adapter.ConsumeRecovery(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a recovery record")
	}
	if got.Customer.Name != "A" || got.Customer.Phone != "0900000000" {
		t.Errorf("customer not preserved: %+v", got.Customer)
	}
	if len(got.Cart.Items) != 1 || got.Cart.Items[0].ItemID != "x" || got.Cart.Items[0].Quantity != 2 {
		t.Errorf("cart not preserved: %+v", got.Cart)
	}

	// consume deletes
	got, err = adapter.ConsumeRecovery(ctx)
	if err != nil {
		t.Fatalf("second consume failed: %v", err)
	}
	if got != nil {
		t.Error("expected record to be deleted after consume")
	}
}

func TestRecoveryRecord_Delete(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, recoveryKey)

	rec := domain.RecoveryRecord{Reason: "payment not completed (result code 1006)"}
	if err := adapter.SaveRecovery(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := adapter.DeleteRecovery(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, err := adapter.ConsumeRecovery(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if got != nil {
		t.Error("expected record to be gone after delete")
	}
}

func TestCredential_RoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, credentialKey)

	got, err := adapter.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != nil {
		t.Error("expected no credential before store")
	}

	cred := domain.Credential{AccessToken: "a", RefreshToken: "r"}
	if err := adapter.StoreCredential(ctx, cred); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err = adapter.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got == nil || got.AccessToken != "a" || got.RefreshToken != "r" {
		t.Errorf("credential not preserved: %+v", got)
	}

	client.Del(ctx, credentialKey)
}

func TestRecordOrphanedPayment(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, auditKey)

	cb := domain.PaymentCallback{
		Type:       domain.CallbackType,
		ResultCode: 0,
		OrderID:    "KIOSK-1",
		TransID:    "t1",
	}
	if err := adapter.RecordOrphanedPayment(ctx, cb, "local-abc"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	n, err := client.LLen(ctx, auditKey).Result()
	if err != nil {
		t.Fatalf("llen failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 audit entry, got %d", n)
	}

	client.Del(ctx, auditKey)
}
