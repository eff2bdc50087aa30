package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// snapshotResponse 行情服务的标的快照响应
type snapshotResponse struct {
	Symbol     string  `json:"symbol"`
	Price      string  `json:"price"`
	Volatility float64 `json:"volatility"`
	Beta       float64 `json:"beta"`
	Sector     string  `json:"sector"`
	Country    string  `json:"country"`
	Volume     float64 `json:"volume"`
	MarketCap  float64 `json:"market_cap"`
}

// returnsResponse 历史收益率响应，按时间升序
type returnsResponse struct {
	Symbol  string    `json:"symbol"`
	Returns []float64 `json:"returns"`
}

// HTTPMarketDataClient 行情服务 HTTP 客户端，同时提供行情快照
// 与历史收益率序列两类能力。
type HTTPMarketDataClient struct {
	http *resty.Client
}

// NewHTTPMarketDataClient 构造函数。
func NewHTTPMarketDataClient(baseURL string, timeout time.Duration) *HTTPMarketDataClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond)
	return &HTTPMarketDataClient{http: httpClient}
}

// GetSnapshot 获取标的行情快照。
func (c *HTTPMarketDataClient) GetSnapshot(ctx context.Context, symbol string) (*domain.SymbolSnapshot, error) {
	var out snapshotResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("symbol", symbol).
		Get("/api/v1/marketdata/snapshot/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("marketdata snapshot %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("marketdata snapshot %s: status %d", symbol, resp.StatusCode())
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return nil, fmt.Errorf("marketdata snapshot %s: price %q: %w", symbol, out.Price, err)
	}
	return &domain.SymbolSnapshot{
		Symbol:     out.Symbol,
		Price:      price,
		Volatility: out.Volatility,
		Beta:       out.Beta,
		Sector:     out.Sector,
		Country:    out.Country,
		Volume:     out.Volume,
		MarketCap:  out.MarketCap,
	}, nil
}

// GetHistoricalReturns 获取标的历史日收益率序列。
func (c *HTTPMarketDataClient) GetHistoricalReturns(ctx context.Context, symbol string, lookbackDays int) ([]float64, error) {
	var out returnsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("symbol", symbol).
		SetQueryParam("days", fmt.Sprintf("%d", lookbackDays)).
		Get("/api/v1/marketdata/returns/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("marketdata returns %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("marketdata returns %s: status %d", symbol, resp.StatusCode())
	}
	return out.Returns, nil
}

// GetBenchmarkReturns 获取基准指数历史日收益率序列。
func (c *HTTPMarketDataClient) GetBenchmarkReturns(ctx context.Context, lookbackDays int) ([]float64, error) {
	var out returnsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetQueryParam("days", fmt.Sprintf("%d", lookbackDays)).
		Get("/api/v1/marketdata/benchmark/returns")
	if err != nil {
		return nil, fmt.Errorf("marketdata benchmark returns: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("marketdata benchmark returns: status %d", resp.StatusCode())
	}
	return out.Returns, nil
}

var (
	_ domain.MarketDataProvider   = (*HTTPMarketDataClient)(nil)
	_ domain.ReturnSeriesProvider = (*HTTPMarketDataClient)(nil)
)
