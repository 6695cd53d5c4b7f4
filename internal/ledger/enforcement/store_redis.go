package enforcement

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	id "custodia/pkg/domain"
)

const (
	// Redis key prefixes for freeze state
	frozenFlagKeyPrefix   = "freeze:addr:"
	frozenAmountKeyPrefix = "freeze:tokens:"
)

// RedisStore is a Redis-backed FreezeStore for distributed deployments where
// multiple instances share freeze state. Amounts are stored in their decimal
// string form.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IsFrozen(ctx context.Context, account id.Address) (bool, error) {
	_, err := s.client.Get(ctx, frozenFlagKeyPrefix+account.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SetFrozen(ctx context.Context, account id.Address, frozen bool) (bool, error) {
	key := frozenFlagKeyPrefix + account.String()
	if frozen {
		// SetNX reports whether the key was newly set, which is exactly the
		// changed signal the service needs.
		return s.client.SetNX(ctx, key, "1", 0).Result()
	}
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) FrozenAmount(ctx context.Context, account id.Address) (id.Amount, error) {
	raw, err := s.client.Get(ctx, frozenAmountKeyPrefix+account.String()).Result()
	if errors.Is(err, redis.Nil) {
		return id.Amount{}, nil
	}
	if err != nil {
		return id.Amount{}, err
	}
	return id.ParseAmount(raw)
}

func (s *RedisStore) SetFrozenAmount(ctx context.Context, account id.Address, amount id.Amount) error {
	key := frozenAmountKeyPrefix + account.String()
	if amount.IsZero() {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, amount.String(), 0).Err()
}
