package score

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"persona-gateway/internal/persona/models"
	id "persona-gateway/pkg/domain"
)

const cacheKeyPrefix = "persona:score:"

// Cache memoizes engine judgements keyed by the verification facts. Two
// personas with byte-identical facts get the same score, so the cache key is
// a hash of the canonical fact serialization. Verification timestamps are
// deliberately excluded, a re-verification with unchanged facts stays a hit.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, log: log}
}

// Get returns a cached artifact for the verification set, if any. Errors are
// logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord) (models.ScoreBreakdown, bool) {
	raw, err := c.client.Get(ctx, cacheKey(verifications)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "score cache read failed", slog.String("error", err.Error()))
		}
		return models.ScoreBreakdown{}, false
	}
	var cached models.ScoreBreakdown
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.log.WarnContext(ctx, "score cache entry corrupt, ignoring", slog.String("error", err.Error()))
		return models.ScoreBreakdown{}, false
	}
	return cached, true
}

// Put stores an artifact for the verification set. Best effort.
func (c *Cache) Put(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord, breakdown models.ScoreBreakdown) {
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(verifications), raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "score cache write failed", slog.String("error", err.Error()))
	}
}

// cacheKey hashes the canonical serialization of the verification facts:
// provider keys in sorted order, each with its facts marshaled by
// encoding/json (which sorts map keys).
func cacheKey(verifications map[id.ProviderKey]models.VerificationRecord) string {
	keys := make([]string, 0, len(verifications))
	for k := range verifications {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	h := xxh3.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("=")
		facts, _ := json.Marshal(verifications[id.ProviderKey(k)].Facts)
		h.Write(facts)
		h.WriteString(";")
	}
	return fmt.Sprintf("%s%016x", cacheKeyPrefix, h.Sum64())
}
