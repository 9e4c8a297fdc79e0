package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisStore) Save(ctx context.Context, snap domain.CartSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(snap.CheckoutID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, checkoutID string) (domain.CartSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(checkoutID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CartSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("redis get failed: %w", err)
	}

	var snap domain.CartSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	return snap, nil
}

func (r *RedisStore) Delete(ctx context.Context, checkoutID string) error {
	if err := r.client.Del(ctx, snapshotKey(checkoutID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Claim(ctx context.Context, checkoutID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKey(checkoutID), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, checkoutID string) error {
	if err := r.client.Del(ctx, claimKey(checkoutID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func claimKey(checkoutID string) string {
	return fmt.Sprintf("checkout:%s:submitting", checkoutID)
}

func snapshotKey(checkoutID string) string {
	return fmt.Sprintf("checkout:%s", checkoutID)
}
