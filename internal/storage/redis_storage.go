package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/model"
)

const redisKeyPrefix = "ctxrelay:context:"

var _ ContextStore = (*RedisStorage)(nil)

// RedisStorage stores each record as a JSON value under its own key.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	newID  func() string
}

// NewRedisStorage wraps client. ttl <= 0 keeps records until evicted.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{client: client, ttl: ttl, newID: uuid.NewString}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (rs *RedisStorage) Put(ctx context.Context, payload string) (string, error) {
	for attempt := 0; attempt < maxInsertCollisions; attempt++ {
		rec := model.ContextRecord{
			ID:        rs.newID(),
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return "", appErr.NewStorage("failed to encode context: %v", err)
		}

		// SetNX keeps an existing record intact if the id ever collides.
		ok, err := rs.client.SetNX(ctx, redisKey(rec.ID), data, rs.ttl).Result()
		if err != nil {
			return "", classifyRedisWriteError(err)
		}
		if ok {
			return rec.ID, nil
		}
	}
	return "", appErr.NewStorage("failed to allocate a unique context id")
}

// classifyRedisWriteError maps a failed write; maxmemory rejections start with OOM.
func classifyRedisWriteError(err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return appErr.NewStorageFull("redis: %v", err)
	}
	return appErr.NewStorage("failed to save context: %v", err)
}

func (rs *RedisStorage) Get(ctx context.Context, id string) (string, error) {
	data, err := rs.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErr.NewNotFound("context %s", id)
		}
		return "", appErr.NewStorage("find by id failed: %v", err)
	}

	var rec model.ContextRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", appErr.NewStorage("corrupt record for %s: %v", id, err)
	}
	return rec.Payload, nil
}

func (rs *RedisStorage) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
