package domain

// RiskLevel 风险等级分类
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelVeryHigh RiskLevel = "very_high"
)

// scoreComponent 风险评分构成项：指标值经 [lo,hi] 区间 min-max
// 归一化后按权重加总
type scoreComponent struct {
	value  float64
	weight float64
	lo, hi float64
}

// ComputeRiskScore 综合风险评分，归一化加权和并放大到 [0,100]
func ComputeRiskScore(s *RiskMetricsSnapshot) float64 {
	components := []scoreComponent{
		{s.VaR95, 0.25, 0, 0.10},
		{s.VaR99, 0.20, 0, 0.15},
		{s.CVaR95, 0.15, 0, 0.20},
		{s.MaxDrawdown, 0.20, 0, 0.50},
		{s.ConcentrationRisk, 0.10, 0, 100},
		{s.LiquidityRisk, 0.05, 0, 100},
		{s.Volatility, 0.05, 0, 0.50},
	}

	var score float64
	for _, c := range components {
		normalized := (c.value - c.lo) / (c.hi - c.lo)
		if normalized < 0 {
			normalized = 0
		}
		if normalized > 1 {
			normalized = 1
		}
		score += c.weight * normalized
	}
	return score * 100
}

// ClassifyRiskScore 评分分桶：<10 low、<20 medium、<30 high、其余 very_high
func ClassifyRiskScore(score float64) RiskLevel {
	switch {
	case score < 10:
		return RiskLevelLow
	case score < 20:
		return RiskLevelMedium
	case score < 30:
		return RiskLevelHigh
	default:
		return RiskLevelVeryHigh
	}
}
