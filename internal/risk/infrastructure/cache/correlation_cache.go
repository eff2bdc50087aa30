package cache

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// CorrelationCalculator 基于历史收益率的皮尔逊相关系数计算器。
// 符号对不分方向，结果按无序键缓存。相关性矩阵随行情缓慢变化，
// 缓存有效期可以远长于行情快照。
type CorrelationCalculator struct {
	returns      domain.ReturnSeriesProvider
	cache        *bigcache.BigCache
	lookbackDays int
}

// NewCorrelationCalculator 构造函数。
func NewCorrelationCalculator(returns domain.ReturnSeriesProvider, lookbackDays int, ttl time.Duration) (*CorrelationCalculator, error) {
	if lookbackDays <= 0 {
		lookbackDays = domain.TradingDaysPerYear
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, err
	}
	return &CorrelationCalculator{returns: returns, cache: c, lookbackDays: lookbackDays}, nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s", a, b)
}

// Correlation 返回符号对的相关系数。
func (c *CorrelationCalculator) Correlation(ctx context.Context, a, b string) (float64, error) {
	if a == b {
		return 1, nil
	}
	key := pairKey(a, b)
	if data, err := c.cache.Get(key); err == nil {
		if rho, err := strconv.ParseFloat(string(data), 64); err == nil {
			return rho, nil
		}
	}

	seriesA, err := c.returns.GetHistoricalReturns(ctx, a, c.lookbackDays)
	if err != nil {
		return 0, fmt.Errorf("returns for %s: %w", a, err)
	}
	seriesB, err := c.returns.GetHistoricalReturns(ctx, b, c.lookbackDays)
	if err != nil {
		return 0, fmt.Errorf("returns for %s: %w", b, err)
	}

	rho, err := pearson(seriesA, seriesB)
	if err != nil {
		return 0, err
	}
	_ = c.cache.Set(key, []byte(strconv.FormatFloat(rho, 'g', -1, 64)))
	return rho, nil
}

// pearson 对齐序列末端后计算皮尔逊相关系数
func pearson(a, b []float64) (float64, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0, fmt.Errorf("correlation: %w", domain.ErrInsufficientData)
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	meanA := domain.MeanReturn(a)
	meanB := domain.MeanReturn(b)

	var cov, varA, varB float64
	for i := range n {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(varA*varB), nil
}

var _ domain.CorrelationProvider = (*CorrelationCalculator)(nil)
