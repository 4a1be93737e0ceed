package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "dexalert:user_"

// Redis stores each user document as a JSON string under dexalert:user_<id>
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, addr, password string, database int) (*Documents, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newDocuments(&Redis{client: client}), nil
}

func newRedisWithClient(client *redis.Client) *Documents {
	return newDocuments(&Redis{client: client})
}

func (r *Redis) load(ctx context.Context, userID string) (map[string]interface{}, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return make(map[string]interface{}), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (r *Redis) save(ctx context.Context, userID string, doc map[string]interface{}) error {
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+userID, string(raw), 0).Err()
}

func (r *Redis) userIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, redisKeyPrefix))
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func (r *Redis) close() error {
	return r.client.Close()
}
