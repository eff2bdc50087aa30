package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// PositionAssembler 将持仓 DTO 装配为富化后的领域持仓。
// 行情依赖故障不会中断计算：受影响字段按降级默认值填充并记录告警。
type PositionAssembler struct {
	market  domain.MarketDataProvider
	metrics *metrics.Metrics
}

// NewPositionAssembler 构造函数。
func NewPositionAssembler(market domain.MarketDataProvider, mtr *metrics.Metrics) *PositionAssembler {
	return &PositionAssembler{market: market, metrics: mtr}
}

// Assemble 解析并富化持仓列表，返回领域持仓与降级告警。
func (a *PositionAssembler) Assemble(ctx context.Context, reqs []PositionRequest) ([]domain.Position, []string, error) {
	if len(reqs) == 0 {
		return nil, nil, fmt.Errorf("assemble positions: %w", domain.ErrInsufficientData)
	}

	positions := make([]domain.Position, 0, len(reqs))
	var warnings []string

	for _, req := range reqs {
		quantity, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("position %s: quantity %q: %w", req.Symbol, req.Quantity, domain.ErrInvalidParameter)
		}

		pos := domain.Position{
			Symbol:   req.Symbol,
			Quantity: quantity,
			Weight:   req.Weight,
			Sector:   req.Sector,
			Country:  req.Country,
		}
		if req.Price != "" {
			price, err := decimal.NewFromString(req.Price)
			if err != nil {
				return nil, nil, fmt.Errorf("position %s: price %q: %w", req.Symbol, req.Price, domain.ErrInvalidParameter)
			}
			pos.Price = price
		}

		snapshot, err := a.market.GetSnapshot(ctx, req.Symbol)
		if err != nil || snapshot == nil {
			if a.metrics != nil {
				a.metrics.MarketDataFallbacksTotal.Inc()
			}
			warnings = append(warnings,
				fmt.Sprintf("market data unavailable for %s, degraded defaults applied", req.Symbol))
			pos.Volatility = domain.DefaultVolatility
			pos.Beta = domain.DefaultBeta
			pos.Liquidity = domain.LiquidityLow
		} else {
			if pos.Price.IsZero() {
				pos.Price = snapshot.Price
			}
			pos.Volatility = snapshot.Volatility
			pos.Beta = snapshot.Beta
			if pos.Sector == "" {
				pos.Sector = snapshot.Sector
			}
			if pos.Country == "" {
				pos.Country = snapshot.Country
			}
			pos.Volume = snapshot.Volume
			pos.MarketCap = snapshot.MarketCap
			pos.Liquidity = domain.ClassifyLiquidity(snapshot.Volume, snapshot.MarketCap)
		}

		if pos.Price.IsZero() {
			return nil, nil, fmt.Errorf("position %s: no price available: %w", req.Symbol, domain.ErrInsufficientData)
		}
		if err := pos.Validate(); err != nil {
			return nil, nil, fmt.Errorf("position %s: %w", req.Symbol, err)
		}
		positions = append(positions, pos)
	}
	return positions, warnings, nil
}
