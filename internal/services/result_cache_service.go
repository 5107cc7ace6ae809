package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "altcache:v1:"

// BuildAlternativesCacheKey derives the content-addressed cache key. The
// equipment set is sorted and deduplicated first so set-equivalent inventories
// collapse to the same key regardless of insertion order. Any change to the
// effective equipment yields a different key, which is how stale entries
// become unreachable after an inventory change.
func BuildAlternativesCacheKey(sourceID uuid.UUID, equipment []string, difficultyFilter string, limit int) string {
	normalized := make([]string, 0, len(equipment))
	seen := make(map[string]bool, len(equipment))
	for _, tag := range equipment {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}
	sort.Strings(normalized)

	payload := fmt.Sprintf("%s|%s|%s|%d", sourceID, strings.Join(normalized, ","), difficultyFilter, limit)
	sum := sha256.Sum256([]byte(payload))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// RedisResultCache stores completed rankings in Redis with a TTL. Writes are
// last-write-wins, which is safe because the value is deterministic for a key.
type RedisResultCache struct {
	client *redis.Client
}

func NewRedisResultCache(client *redis.Client) ResultCacheManager {
	return &RedisResultCache{client: client}
}

func (c *RedisResultCache) Lookup(ctx context.Context, key string) (*CachedAlternatives, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	var entry CachedAlternatives
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		log.Warn().Str("key", key).Err(err).Msg("discarding undecodable cache entry")
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *RedisResultCache) Store(ctx context.Context, key string, entry *CachedAlternatives, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}
