package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shithost/sigma-dash/internal/domain"
)

// ReputationCache shares gate verdicts between instances. Redis failures
// degrade to a miss so the gate falls through to the live lookup.
type ReputationCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ domain.ReputationCache = (*ReputationCache)(nil)

func NewReputationCache(rdb goredis.Cmdable, ttl time.Duration) *ReputationCache {
	return &ReputationCache{rdb: rdb, ttl: ttl}
}

func (c *ReputationCache) Get(ctx context.Context, ip string) (domain.Reputation, bool) {
	data, err := c.rdb.Get(ctx, reputationKey(ip)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "Redis reputation cache GET failed", "error", err)
		}
		return domain.Reputation{}, false
	}

	var rep domain.Reputation
	if err := json.Unmarshal(data, &rep); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached reputation", "error", err)
		return domain.Reputation{}, false
	}
	return rep, true
}

func (c *ReputationCache) Set(ctx context.Context, ip string, rep domain.Reputation) {
	encoded, err := json.Marshal(rep)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal reputation for Redis cache", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, reputationKey(ip), encoded, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to populate Redis reputation cache", "error", err)
	}
}

func reputationKey(ip string) string {
	return "reputation:" + ip
}
