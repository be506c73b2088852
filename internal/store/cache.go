package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfg-agent/mfgagent/models"
)

const historyKeyPrefix = "history:"

// HistoryCache fronts the history table with a per-user recency list in
// Redis. Misses and errors fall through to Postgres; the cache is never
// authoritative.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnRedis dials Redis and verifies the connection.
func ConnRedis(ctx context.Context, host, port, pass string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: pass,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func NewHistoryCache(client *redis.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HistoryCache{client: client, ttl: ttl}
}

// Push prepends an entry to the user's recency list and re-arms the TTL.
func (h *HistoryCache) Push(ctx context.Context, entry models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := historyKeyPrefix + entry.UserID
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, 99)
	pipe.Expire(ctx, key, h.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit cached entries, newest first. An empty list is a
// miss and callers should fall back to the store.
func (h *HistoryCache) Recent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	vals, err := h.client.LRange(ctx, historyKeyPrefix+userID, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]models.HistoryEntry, 0, len(vals))
	for _, v := range vals {
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		if seen[e.Query] {
			continue
		}
		seen[e.Query] = true
		out = append(out, e)
	}
	return out, nil
}

// Invalidate drops the user's cached history.
func (h *HistoryCache) Invalidate(ctx context.Context, userID string) error {
	return h.client.Del(ctx, historyKeyPrefix+userID).Err()
}
