package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

type snapshotCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotCache 创建最新快照的 Redis 读缓存，TTL 到期后回源主库。
func NewSnapshotCache(client redis.UniversalClient, ttl time.Duration) domain.SnapshotReadCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &snapshotCache{
		client: client,
		prefix: "risk:snapshot:",
		ttl:    ttl,
	}
}

func (c *snapshotCache) key(portfolioID string) string {
	return fmt.Sprintf("%slatest:%s", c.prefix, portfolioID)
}

func (c *snapshotCache) SaveLatest(ctx context.Context, snapshot *domain.RiskMetricsSnapshot) error {
	if snapshot == nil {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(snapshot.PortfolioID), data, c.ttl).Err()
}

func (c *snapshotCache) GetLatest(ctx context.Context, portfolioID string) (*domain.RiskMetricsSnapshot, error) {
	data, err := c.client.Get(ctx, c.key(portfolioID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot domain.RiskMetricsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
