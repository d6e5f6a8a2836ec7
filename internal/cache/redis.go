package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"kleinanzeigen-hunter/internal/kafka"
)

const (
	resultTTL    = 10 * time.Minute
	rateLimitTTL = 5 * time.Minute
)

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})

	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

func (r *RedisCache) CacheSearchResults(query string, results []kafka.ScoredListing) error {
	key := fmt.Sprintf("scraping:%s", query)
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, resultTTL).Err()
}

func (r *RedisCache) GetCachedResults(query string) ([]kafka.ScoredListing, bool) {
	key := fmt.Sprintf("scraping:%s", query)
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return nil, false
	}

	var results []kafka.ScoredListing
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, false
	}

	return results, true
}

// CanScrapeQuery rate-limits ad-hoc scrapes to one per query per window.
func (r *RedisCache) CanScrapeQuery(query string) bool {
	key := fmt.Sprintf("rate_limit:%s", query)
	count := r.client.Incr(r.ctx, key).Val()
	if count == 1 {
		r.client.Expire(r.ctx, key, rateLimitTTL)
	}
	return count == 1
}
