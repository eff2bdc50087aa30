// Package domain 包含组合风险分析服务的领域模型与计算内核
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LiquidityTier 流动性分档
type LiquidityTier string

const (
	LiquidityHigh   LiquidityTier = "high"
	LiquidityMedium LiquidityTier = "medium"
	LiquidityLow    LiquidityTier = "low"
)

// Position 单笔持仓快照，一次计算调用内不可变
type Position struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Weight     float64         `json:"weight,omitempty"`      // 显式权重，缺省时按市值推导
	Volatility float64         `json:"volatility,omitempty"`  // 年化波动率
	MeanReturn float64         `json:"mean_return,omitempty"` // 日均收益率
	Sector     string          `json:"sector,omitempty"`
	Country    string          `json:"country,omitempty"`
	Beta       float64         `json:"beta,omitempty"`
	Liquidity  LiquidityTier   `json:"liquidity,omitempty"`
	Volume     float64         `json:"volume,omitempty"`
	MarketCap  float64         `json:"market_cap,omitempty"`
}

// MarketValue 持仓市值 = 数量 × 价格
func (p Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.Price)
}

// Validate 校验持仓入参，数量或价格为负视为非法
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: position symbol is empty", ErrInvalidParameter)
	}
	if p.Quantity.IsNegative() {
		return fmt.Errorf("%w: negative quantity for %s", ErrInvalidParameter, p.Symbol)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", ErrInvalidParameter, p.Symbol)
	}
	return nil
}

// Portfolio 投资组合，持仓有序集合
type Portfolio struct {
	ID        string     `json:"id"`
	Positions []Position `json:"positions"`
}

// TotalValue 组合总市值
func (pf Portfolio) TotalValue() decimal.Decimal {
	return TotalValue(pf.Positions)
}

// TotalValue 计算持仓集合总市值
func TotalValue(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// ValidatePositions 校验全部持仓并保证集合非空
func ValidatePositions(positions []Position) error {
	if len(positions) == 0 {
		return fmt.Errorf("%w: empty position set", ErrInvalidParameter)
	}
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Weights 推导各持仓权重。全部持仓都带显式权重时直接归一化，
// 否则按市值占比计算。总值为零时返回等权。
func Weights(positions []Position) []float64 {
	n := len(positions)
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)
	explicit := true
	var explicitSum float64
	for _, p := range positions {
		if p.Weight <= 0 {
			explicit = false
			break
		}
		explicitSum += p.Weight
	}
	if explicit && explicitSum > 0 {
		for i, p := range positions {
			weights[i] = p.Weight / explicitSum
		}
		return weights
	}

	total := TotalValue(positions)
	if total.IsZero() {
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights
	}
	totalF := total.InexactFloat64()
	for i, p := range positions {
		weights[i] = p.MarketValue().InexactFloat64() / totalF
	}
	return weights
}

// ClassifyLiquidity 按成交量与市值阈值对流动性分档
func ClassifyLiquidity(volume, marketCap float64) LiquidityTier {
	switch {
	case volume > 1e6 && marketCap > 1e9:
		return LiquidityHigh
	case volume > 1e5 && marketCap > 1e8:
		return LiquidityMedium
	default:
		return LiquidityLow
	}
}

// EffectiveLiquidity 返回持仓的流动性档位，未标注时根据成交量/市值推导
func (p Position) EffectiveLiquidity() LiquidityTier {
	if p.Liquidity != "" {
		return p.Liquidity
	}
	return ClassifyLiquidity(p.Volume, p.MarketCap)
}
