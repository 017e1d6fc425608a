package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
	"keyauth.backend/internal/domain/entities"
	domainerrors "keyauth.backend/internal/domain/errors"
)

const redisMaxTxRetries = 100

// RedisActivationKeyRepository stores each key as a JSON document and keeps
// an index set of all key strings. Writes use WATCH/MULTI and are retried when
// another client touched the same key in between.
type RedisActivationKeyRepository struct {
	client *goredis.Client
	prefix string
}

func NewRedisActivationKeyRepository(client *goredis.Client, prefix string) *RedisActivationKeyRepository {
	return &RedisActivationKeyRepository{client: client, prefix: prefix}
}

func (r *RedisActivationKeyRepository) recordKey(key string) string {
	return r.prefix + "key:" + key
}

func (r *RedisActivationKeyRepository) indexKey() string {
	return r.prefix + "keys"
}

func (r *RedisActivationKeyRepository) Put(ctx context.Context, key *entities.ActivationKey) error {
	payload, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("marshal activation key: %w", err)
	}

	rk := r.recordKey(key.Key)
	return r.watch(ctx, rk, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, rk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domainerrors.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, rk, payload, 0)
			pipe.SAdd(ctx, r.indexKey(), key.Key)
			return nil
		})
		return err
	})
}

func (r *RedisActivationKeyRepository) Get(ctx context.Context, key string) (*entities.ActivationKey, error) {
	raw, err := r.client.Get(ctx, r.recordKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return decodeActivationKey(raw)
}

func (r *RedisActivationKeyRepository) Delete(ctx context.Context, key string) (bool, error) {
	var del *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, r.recordKey(key))
		pipe.SRem(ctx, r.indexKey(), key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (r *RedisActivationKeyRepository) ListAll(ctx context.Context) ([]*entities.ActivationKey, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*entities.ActivationKey{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, r.recordKey(m))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*entities.ActivationKey, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		item, err := decodeActivationKey([]byte(s))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *RedisActivationKeyRepository) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.recordKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisActivationKeyRepository) Update(ctx context.Context, key string, fn func(k *entities.ActivationKey) error) (*entities.ActivationKey, error) {
	rk := r.recordKey(key)
	var updated *entities.ActivationKey

	err := r.watch(ctx, rk, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, rk).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return domainerrors.ErrNotFound
			}
			return err
		}
		current, err := decodeActivationKey(raw)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}
		working.Key = current.Key
		working.CreatedAt = current.CreatedAt

		payload, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("marshal activation key: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, rk, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *RedisActivationKeyRepository) Count(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.indexKey()).Result()
}

func (r *RedisActivationKeyRepository) watch(ctx context.Context, key string, fn func(tx *goredis.Tx) error) error {
	for i := 0; i < redisMaxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %s: too many conflicts", key)
}

func decodeActivationKey(raw []byte) (*entities.ActivationKey, error) {
	var item entities.ActivationKey
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode activation key: %w", err)
	}
	return &item, nil
}
