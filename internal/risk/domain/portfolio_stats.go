package domain

import (
	"context"
	"fmt"
	"math"
)

// ConcentrationRisk 赫芬达尔指数 HHI = Σ wᵢ²，换算到 0-100 区间。
// N 个等权持仓的结果恰为 100/N。
func ConcentrationRisk(positions []Position) float64 {
	weights := Weights(positions)
	var hhi float64
	for _, w := range weights {
		hhi += w * w
	}
	return hhi * 100
}

// EffectivePositions 有效持仓数 = 1/HHI
func EffectivePositions(positions []Position) float64 {
	weights := Weights(positions)
	var hhi float64
	for _, w := range weights {
		hhi += w * w
	}
	if hhi == 0 {
		return 0
	}
	return 1 / hhi
}

// SectorConcentration 各行业聚合权重的最大值
func SectorConcentration(positions []Position) float64 {
	return maxBucketWeight(positions, func(p Position) string { return p.Sector })
}

// GeographicConcentration 各国家/地区聚合权重的最大值
func GeographicConcentration(positions []Position) float64 {
	return maxBucketWeight(positions, func(p Position) string { return p.Country })
}

func maxBucketWeight(positions []Position, key func(Position) string) float64 {
	weights := Weights(positions)
	buckets := make(map[string]float64)
	for i, p := range positions {
		k := key(p)
		if k == "" {
			k = "unknown"
		}
		buckets[k] += weights[i]
	}
	var maxW float64
	for _, w := range buckets {
		if w > maxW {
			maxW = w
		}
	}
	return maxW
}

// LiquidityRisk 流动性风险评分（0-100）。低流动性持仓贡献全额权重，
// 中档贡献一半，高流动性不计入。
func LiquidityRisk(positions []Position) float64 {
	weights := Weights(positions)
	var score float64
	for i, p := range positions {
		switch p.EffectiveLiquidity() {
		case LiquidityLow:
			score += weights[i]
		case LiquidityMedium:
			score += weights[i] * 0.5
		}
	}
	return score * 100
}

// PortfolioStatistics 组合层面统计计算器，相关系数由注入的查询能力提供
type PortfolioStatistics struct {
	correlations CorrelationProvider
}

// NewPortfolioStatistics 构造函数
func NewPortfolioStatistics(correlations CorrelationProvider) *PortfolioStatistics {
	return &PortfolioStatistics{correlations: correlations}
}

// PortfolioVolatility 协方差法组合波动率：
// Var = Σ wᵢ²σᵢ² + Σ_{i≠j} wᵢwⱼσᵢσⱼρᵢⱼ。
// 单个标的波动率缺失时降级为默认值并附带告警。
func (s *PortfolioStatistics) PortfolioVolatility(ctx context.Context, positions []Position) (float64, []string) {
	n := len(positions)
	if n == 0 {
		return 0, nil
	}

	weights := Weights(positions)
	var warnings []string

	vols := make([]float64, n)
	for i, p := range positions {
		vols[i] = p.Volatility
		if vols[i] <= 0 {
			vols[i] = DefaultVolatility
			warnings = append(warnings, fmt.Sprintf("volatility missing for %s, using default %.2f", p.Symbol, DefaultVolatility))
		}
	}

	var variance float64
	for i := range n {
		variance += weights[i] * weights[i] * vols[i] * vols[i]
		for j := i + 1; j < n; j++ {
			rho := s.pairCorrelation(ctx, positions[i].Symbol, positions[j].Symbol, &warnings)
			variance += 2 * weights[i] * weights[j] * vols[i] * vols[j] * rho
		}
	}
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), warnings
}

// DiversificationRatio 分散化比率 = 加权平均单资产波动率 / 组合波动率
func (s *PortfolioStatistics) DiversificationRatio(ctx context.Context, positions []Position) (float64, []string) {
	portfolioVol, warnings := s.PortfolioVolatility(ctx, positions)
	if portfolioVol == 0 {
		return 0, warnings
	}
	weights := Weights(positions)
	var weightedVol float64
	for i, p := range positions {
		vol := p.Volatility
		if vol <= 0 {
			vol = DefaultVolatility
		}
		weightedVol += weights[i] * vol
	}
	return weightedVol / portfolioVol, warnings
}

// PortfolioBeta 市值加权组合贝塔，缺失时单标的降级为 1.0
func PortfolioBeta(positions []Position) float64 {
	weights := Weights(positions)
	var beta float64
	for i, p := range positions {
		b := p.Beta
		if b == 0 {
			b = DefaultBeta
		}
		beta += weights[i] * b
	}
	return beta
}

func (s *PortfolioStatistics) pairCorrelation(ctx context.Context, a, b string, warnings *[]string) float64 {
	if s.correlations == nil {
		return DefaultCorrelation
	}
	rho, err := s.correlations.Correlation(ctx, a, b)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("correlation lookup failed for %s/%s, using default %.2f", a, b, DefaultCorrelation))
		return DefaultCorrelation
	}
	return rho
}
