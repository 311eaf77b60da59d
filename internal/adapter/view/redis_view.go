package view

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisView tells the kiosk UI to close the embedded payment view by
// publishing on the UI channel the front end subscribes to.
type RedisView struct {
	client  *redis.Client
	channel string
}

func NewRedisView(client *redis.Client, channel string) *RedisView {
	return &RedisView{client: client, channel: channel}
}

func (v *RedisView) ClosePayment(ctx context.Context) error {
	return v.client.Publish(ctx, v.channel, `{"event":"close_payment"}`).Err()
}
