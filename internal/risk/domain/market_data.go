package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// 行情依赖缺失时的降级默认值
const (
	DefaultVolatility  = 0.2
	DefaultCorrelation = 0.3
	DefaultBeta        = 1.0
)

// SymbolSnapshot 单个标的的行情快照
type SymbolSnapshot struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Volatility float64         `json:"volatility"`
	Beta       float64         `json:"beta"`
	Sector     string          `json:"sector"`
	Country    string          `json:"country"`
	Volume     float64         `json:"volume"`
	MarketCap  float64         `json:"market_cap"`
}

// MarketDataProvider 风险引擎所需的行情数据能力，由外部协作方注入
type MarketDataProvider interface {
	GetSnapshot(ctx context.Context, symbol string) (*SymbolSnapshot, error)
}

// ReturnSeriesProvider 提供按时间排序的历史日收益率序列。
// 生产环境由真实行情支撑，测试中以固定样本替换。
type ReturnSeriesProvider interface {
	GetHistoricalReturns(ctx context.Context, symbol string, lookbackDays int) ([]float64, error)
	GetBenchmarkReturns(ctx context.Context, lookbackDays int) ([]float64, error)
}

// CorrelationProvider 按无序符号对提供相关系数，查询失败时调用方降级为默认值
type CorrelationProvider interface {
	Correlation(ctx context.Context, a, b string) (float64, error)
}
