package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// retryLimit bounds the optimistic-locking retries on contended merges.
const retryLimit = 5

// RedisStore keeps slot sessions in Redis as JSON values with a server-side
// expiry, matching the {outlet}_{user}_{command} key scheme.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, outlet, userID string, commandID int64) (map[string]string, error) {
	raw, err := s.client.Get(ctx, sessionKey(outlet, userID, commandID)).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decodeSlots(raw)
}

// Merge runs a WATCH-guarded read-modify-write so concurrent merges on the
// same session key never lose updates.
func (s *RedisStore) Merge(ctx context.Context, outlet, userID string, commandID int64, updates map[string]string) (map[string]string, error) {
	key := sessionKey(outlet, userID, commandID)

	var merged map[string]string
	txn := func(tx *redis.Tx) error {
		current := map[string]string{}
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read session: %w", err)
		}
		if err == nil {
			if current, err = decodeSlots(raw); err != nil {
				return err
			}
		}

		merged = mergeSlots(current, updates)
		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, TTL)
			return nil
		})
		return err
	}

	for i := 0; i < retryLimit; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return merged, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, retry
		}
		return nil, err
	}
	return nil, fmt.Errorf("session merge for %s kept conflicting after %d attempts", key, retryLimit)
}

func decodeSlots(raw string) (map[string]string, error) {
	slots := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return slots, nil
}
