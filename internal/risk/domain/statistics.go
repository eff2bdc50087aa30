package domain

import (
	"math"

	"github.com/montanaflynn/stats"
)

// 日收益率年化参数：一年按 252 个交易日
const TradingDaysPerYear = 252

// MeanReturn 收益率样本均值，空样本返回 0
func MeanReturn(returns []float64) float64 {
	m, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	return m
}

// Volatility 总体标准差。全部取值相同时严格为 0：
// 浮点求和会留下 ~1e-19 量级的残差，直接短路避免下游比率除零爆炸。
func Volatility(returns []float64) float64 {
	if allEqual(returns) {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(returns)
	if err != nil {
		return 0
	}
	return sd
}

func allEqual(returns []float64) bool {
	if len(returns) == 0 {
		return false
	}
	for _, r := range returns[1:] {
		if r != returns[0] {
			return false
		}
	}
	return true
}

// Skewness 三阶标准化矩。样本不足或波动率为零时返回 0。
func Skewness(returns []float64) float64 {
	n := float64(len(returns))
	if n < 2 {
		return 0
	}
	mean := MeanReturn(returns)
	sd := Volatility(returns)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		z := (r - mean) / sd
		sum += z * z * z
	}
	return sum / n
}

// Kurtosis 四阶标准化矩（非超额峰度，正态分布约为 3）
func Kurtosis(returns []float64) float64 {
	n := float64(len(returns))
	if n < 2 {
		return 0
	}
	mean := MeanReturn(returns)
	sd := Volatility(returns)
	if sd == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		z := (r - mean) / sd
		sum += z * z * z * z
	}
	return sum / n
}

// DownsideDeviation 下行偏差：仅对负收益取总体标准差（相对零轴）
func DownsideDeviation(returns []float64) float64 {
	var sum float64
	var count int
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// MaxDrawdown 基于复利净值曲线的最大回撤。
// value *= 1+r，追踪历史峰值，drawdown = (peak-value)/peak。
// 单调不减的净值曲线回撤严格为 0。
func MaxDrawdown(returns []float64) float64 {
	value := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// AnnualizedReturn 复利年化收益率
func AnnualizedReturn(returns []float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}
	cum := 1.0
	for _, r := range returns {
		cum *= 1 + r
	}
	if cum <= 0 {
		return -1
	}
	return math.Pow(cum, TradingDaysPerYear/float64(n)) - 1
}
