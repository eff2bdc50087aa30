package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// CachingMarketData 行情快照的进程内缓存装饰器。
// 行情对风险计算是读多写少的热点，短 TTL 缓存显著降低下游压力。
type CachingMarketData struct {
	next  domain.MarketDataProvider
	cache *bigcache.BigCache
}

// NewCachingMarketData 构造函数，ttl 为快照缓存有效期。
func NewCachingMarketData(next domain.MarketDataProvider, ttl time.Duration) (*CachingMarketData, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, err
	}
	return &CachingMarketData{next: next, cache: c}, nil
}

// GetSnapshot 优先返回缓存命中的快照，未命中时回源并写入缓存。
func (c *CachingMarketData) GetSnapshot(ctx context.Context, symbol string) (*domain.SymbolSnapshot, error) {
	if data, err := c.cache.Get(symbol); err == nil {
		var snapshot domain.SymbolSnapshot
		if json.Unmarshal(data, &snapshot) == nil {
			return &snapshot, nil
		}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, err
	}

	snapshot, err := c.next.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(snapshot); err == nil {
		_ = c.cache.Set(symbol, data)
	}
	return snapshot, nil
}

var _ domain.MarketDataProvider = (*CachingMarketData)(nil)
