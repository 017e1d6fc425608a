package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"keyauth.backend/pkg/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	idempotencyProcessing = "processing"
)

// ErrIdempotencyMiss is returned by IdempotencyStore.Get for unknown keys.
var ErrIdempotencyMiss = errors.New("idempotency key not found")

// IdempotencyStore holds in-progress markers and replayable responses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the first successful response for a repeated
// Idempotency-Key, so a retried create does not mint a second key.
func IdempotencyMiddleware(store IdempotencyStore, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || store == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storageKey := prefix + "idempotency:" + c.FullPath() + ":" + key

		val, err := store.Get(ctx, storageKey)
		switch {
		case err == nil && val == idempotencyProcessing:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"code":    "IDEMPOTENCY_CONFLICT",
				"message": "request already in progress",
			})
			return
		case err == nil:
			var cached cachedResponse
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				c.Header("X-Idempotency-Hit", "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
			_ = store.Del(ctx, storageKey)
		case !errors.Is(err, ErrIdempotencyMiss):
			logger.Warn(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		ok, err := store.SetNX(ctx, storageKey, idempotencyProcessing, LockDuration)
		if err != nil || !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"code":    "IDEMPOTENCY_CONFLICT",
				"message": "request already in progress",
			})
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 && json.Valid(w.body.Bytes()) {
			payload, _ := json.Marshal(cachedResponse{Status: status, Body: w.body.Bytes()})
			_ = store.Set(ctx, storageKey, string(payload), RetentionDuration)
			return
		}
		// failed requests may be retried with the same key
		_ = store.Del(ctx, storageKey)
	}
}

// RedisIdempotencyStore keeps idempotency records in Redis.
type RedisIdempotencyStore struct {
	client *goredis.Client
}

func NewRedisIdempotencyStore(client *goredis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrIdempotencyMiss
	}
	return val, err
}

func (s *RedisIdempotencyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisIdempotencyStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// MemoryIdempotencyStore is the single-process fallback.
type MemoryIdempotencyStore struct {
	c *gocache.Cache
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{c: gocache.New(RetentionDuration, time.Minute)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", ErrIdempotencyMiss
	}
	str, _ := v.(string)
	return str, nil
}

// SetNX reports false when an unexpired value already exists.
func (s *MemoryIdempotencyStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := s.c.Add(key, value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

func (s *MemoryIdempotencyStore) Del(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}
