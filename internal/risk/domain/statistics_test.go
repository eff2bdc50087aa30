package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolatilityConstantSeriesIsZero(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, Volatility(returns))
}

func TestVolatilityLongConstantSeriesIsExactlyZero(t *testing.T) {
	// 长序列求和会产生浮点残差，需要严格等于 0 而非近似
	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = 0.001
	}
	assert.Equal(t, 0.0, Volatility(returns))
}

func TestVolatilityEmptySeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil))
	assert.Equal(t, 0.0, MeanReturn(nil))
}

func TestMeanReturn(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03}
	assert.InDelta(t, 0.02, MeanReturn(returns), 1e-12)
}

func TestMaxDrawdownMonotoneIncreasingIsZero(t *testing.T) {
	returns := []float64{0.01, 0.005, 0.02, 0.0, 0.015}
	assert.Equal(t, 0.0, MaxDrawdown(returns))
}

func TestMaxDrawdownSingleCrash(t *testing.T) {
	// 净值 1.0 -> 1.1 -> 0.88，回撤 = (1.1-0.88)/1.1 = 0.2
	returns := []float64{0.10, -0.20}
	assert.InDelta(t, 0.20, MaxDrawdown(returns), 1e-12)
}

func TestMaxDrawdownRecoveryDoesNotShrinkPeak(t *testing.T) {
	returns := []float64{0.10, -0.20, 0.50}
	assert.InDelta(t, 0.20, MaxDrawdown(returns), 1e-12)
}

func TestDownsideDeviationOnlyNegatives(t *testing.T) {
	returns := []float64{0.05, -0.03, 0.02, -0.04}
	// sqrt((0.03^2+0.04^2)/2)
	assert.InDelta(t, 0.035355, DownsideDeviation(returns), 1e-5)
}

func TestDownsideDeviationNoNegativesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, DownsideDeviation([]float64{0.01, 0.02}))
}

func TestSkewnessSymmetricSeriesIsZero(t *testing.T) {
	returns := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	assert.InDelta(t, 0.0, Skewness(returns), 1e-12)
}

func TestSkewnessZeroVolatilityIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Skewness([]float64{0.01, 0.01, 0.01}))
	assert.Equal(t, 0.0, Kurtosis([]float64{0.01, 0.01, 0.01}))
}

func TestAnnualizedReturn(t *testing.T) {
	// 252 天每天 0.1%，复利年化 = 1.001^252 - 1
	returns := make([]float64, TradingDaysPerYear)
	for i := range returns {
		returns[i] = 0.001
	}
	assert.InDelta(t, 0.2864, AnnualizedReturn(returns), 1e-3)
}

func TestAnnualizedReturnTotalLoss(t *testing.T) {
	assert.Equal(t, -1.0, AnnualizedReturn([]float64{-1.0, 0.01}))
}
