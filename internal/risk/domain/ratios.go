package domain

import "math"

// MinRatioSamples 风险调整收益指标要求的最小样本量，
// 不足时全部指标返回 0（可用性优先于精确性，刻意为之）。
const MinRatioSamples = 30

// RiskAdjustedReturns 风险调整收益指标集合
type RiskAdjustedReturns struct {
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	TreynorRatio     float64 `json:"treynor_ratio"`
	InformationRatio float64 `json:"information_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// RatioInput 指标计算输入。RiskFreeRate 为年化无风险利率，
// Benchmark 为协作方提供的基准收益率序列（信息比率用）。
type RatioInput struct {
	Returns       []float64
	Benchmark     []float64
	RiskFreeRate  float64
	PortfolioBeta float64
}

// ComputeRiskAdjustedReturns 计算全部风险调整收益指标。
// 任何分母退化为零的情形返回 0 而非报错。
func ComputeRiskAdjustedReturns(input RatioInput) RiskAdjustedReturns {
	result := RiskAdjustedReturns{MaxDrawdown: MaxDrawdown(input.Returns)}
	if len(input.Returns) < MinRatioSamples {
		return result
	}

	dailyRf := input.RiskFreeRate / TradingDaysPerYear
	mean := MeanReturn(input.Returns)
	excess := mean - dailyRf

	if vol := Volatility(input.Returns); vol > 0 {
		result.SharpeRatio = excess / vol * math.Sqrt(TradingDaysPerYear)
	}
	if dd := DownsideDeviation(input.Returns); dd > 0 {
		result.SortinoRatio = excess / dd * math.Sqrt(TradingDaysPerYear)
	}
	if result.MaxDrawdown > 0 {
		result.CalmarRatio = AnnualizedReturn(input.Returns) / result.MaxDrawdown
	}
	if input.PortfolioBeta != 0 {
		result.TreynorRatio = excess / input.PortfolioBeta
	}
	result.InformationRatio = informationRatio(input.Returns, input.Benchmark)
	return result
}

// informationRatio 主动收益 / 跟踪误差，基准缺失或误差为零时返回 0
func informationRatio(returns, benchmark []float64) float64 {
	n := min(len(returns), len(benchmark))
	if n < MinRatioSamples {
		return 0
	}
	active := make([]float64, n)
	for i := range n {
		active[i] = returns[len(returns)-n+i] - benchmark[len(benchmark)-n+i]
	}
	trackingError := Volatility(active)
	if trackingError == 0 {
		return 0
	}
	return MeanReturn(active) / trackingError * math.Sqrt(TradingDaysPerYear)
}
