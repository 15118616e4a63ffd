package quiz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache provides Redis-backed quiz pack caching to offload Postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PackCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(quizID uuid.UUID) string {
	return "quizpack:" + quizID.String()
}

func (c *Cache) Get(ctx context.Context, quizID uuid.UUID) (*Pack, error) {
	data, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

func (c *Cache) Set(ctx context.Context, pack Pack) error {
	data, err := json.Marshal(pack)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pack.Quiz.ID), data, c.ttl).Err()
}

// Invalidate drops a cached pack after its quiz was edited upstream.
func (c *Cache) Invalidate(ctx context.Context, quizID uuid.UUID) error {
	return c.client.Del(ctx, c.key(quizID)).Err()
}
