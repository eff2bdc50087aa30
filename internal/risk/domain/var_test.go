package domain

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReturns 固定样本的历史收益率来源
type stubReturns struct {
	series    map[string][]float64
	benchmark []float64
}

func (s *stubReturns) GetHistoricalReturns(_ context.Context, symbol string, _ int) ([]float64, error) {
	rs, ok := s.series[symbol]
	if !ok {
		return nil, fmt.Errorf("no series for %s", symbol)
	}
	return rs, nil
}

func (s *stubReturns) GetBenchmarkReturns(_ context.Context, _ int) ([]float64, error) {
	return s.benchmark, nil
}

// mixedSample 90 天 +1%、5 天 -2%、5 天 -5%
func mixedSample() []float64 {
	sample := make([]float64, 0, 100)
	for range 90 {
		sample = append(sample, 0.01)
	}
	for range 5 {
		sample = append(sample, -0.02)
	}
	for range 5 {
		sample = append(sample, -0.05)
	}
	return sample
}

func singlePosition(symbol string) []Position {
	return []Position{{
		Symbol:   symbol,
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(100),
	}}
}

func newTestEngine(series map[string][]float64) *VaREngine {
	return NewVaREngine(
		&stubReturns{series: series},
		rand.New(rand.NewPCG(1, 2)),
		TradingDaysPerYear,
	)
}

func TestHistoricalVaRQuantile(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	result, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodHistorical,
	})
	require.NoError(t, err)

	// 升序第 floor(0.05*100)=5 位是 -0.02
	assert.InDelta(t, 0.02, result.VaR, 1e-12)
	assert.Equal(t, 100, result.SampleSize)
	assert.Equal(t, MethodHistorical, result.Method)
}

func TestHistoricalVaRIsNonNegative(t *testing.T) {
	allGains := make([]float64, 50)
	for i := range allGains {
		allGains[i] = 0.01
	}
	engine := newTestEngine(map[string][]float64{"AAPL": allGains})

	result, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodHistorical,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.VaR, 0.0)
}

func TestParametricVaRFormula(t *testing.T) {
	sample := mixedSample()
	engine := newTestEngine(map[string][]float64{"AAPL": sample})

	result, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodParametric,
	})
	require.NoError(t, err)

	mean := MeanReturn(sample)
	vol := Volatility(sample)
	expected := math.Abs(mean + 1.645*vol)
	assert.InDelta(t, expected, result.VaR, 1e-12)
}

func TestParametricVaRUnknownConfidenceFallsBack(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	result, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.97,
		TimeHorizonDays: 1,
		Method:          MethodParametric,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)

	sample := mixedSample()
	expected := math.Abs(MeanReturn(sample) + 1.645*Volatility(sample))
	assert.InDelta(t, expected, result.VaR, 1e-12)
}

func TestParametricVaRScalesWithHorizon(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	oneDay, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions: singlePosition("AAPL"), ConfidenceLevel: 0.95, TimeHorizonDays: 1, Method: MethodParametric,
	})
	require.NoError(t, err)
	tenDay, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions: singlePosition("AAPL"), ConfidenceLevel: 0.95, TimeHorizonDays: 10, Method: MethodParametric,
	})
	require.NoError(t, err)
	assert.Greater(t, tenDay.VaR, oneDay.VaR)
}

func TestMonteCarloVaRDeterministicWithSeed(t *testing.T) {
	run := func() float64 {
		engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})
		result, err := engine.ComputeVaR(context.Background(), VaRInput{
			Positions:       singlePosition("AAPL"),
			ConfidenceLevel: 0.95,
			TimeHorizonDays: 1,
			Method:          MethodMonteCarlo,
			Simulations:     5000,
		})
		require.NoError(t, err)
		return result.VaR
	}
	assert.Equal(t, run(), run())
}

func TestMonteCarloVaRApproximatesNormalQuantile(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	mc, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodMonteCarlo,
		Simulations:     20000,
	})
	require.NoError(t, err)

	// 正态样本 5% 分位 ≈ mean - 1.645σ
	sample := mixedSample()
	expected := math.Abs(MeanReturn(sample) - 1.645*Volatility(sample))
	assert.InEpsilon(t, expected, mc.VaR, 0.15)
	assert.Equal(t, 20000, mc.SampleSize)
}

func TestComputeVaRUnknownMethod(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	_, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          "bogus",
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestComputeVaRInvalidConfidence(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	for _, cl := range []float64{0, 1, -0.5, 1.5} {
		_, err := engine.ComputeVaR(context.Background(), VaRInput{
			Positions:       singlePosition("AAPL"),
			ConfidenceLevel: cl,
			TimeHorizonDays: 1,
			Method:          MethodHistorical,
		})
		assert.ErrorIs(t, err, ErrInvalidParameter, "confidence %v", cl)
	}
}

func TestComputeVaRInvalidHorizon(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	_, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 0,
		Method:          MethodHistorical,
	})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestHistoricalVaRNoSeriesAtAll(t *testing.T) {
	engine := newTestEngine(map[string][]float64{})

	_, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions:       singlePosition("AAPL"),
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodHistorical,
	})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPortfolioReturnsSkipsFailedSymbolWithWarning(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	positions := []Position{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
		{Symbol: "GONE", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
	}
	sample, warnings, err := engine.PortfolioReturns(context.Background(), positions)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Len(t, sample, 100)
	// GONE 被跳过后 AAPL 权重仍按全组合市值计算
	assert.InDelta(t, 0.005, sample[0], 1e-12)
}

func TestPortfolioReturnsTailAlignment(t *testing.T) {
	engine := newTestEngine(map[string][]float64{
		"AAPL": {0.01, 0.02, 0.03, 0.04},
		"MSFT": {0.10, 0.20},
	})
	positions := []Position{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
		{Symbol: "MSFT", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
	}
	sample, _, err := engine.PortfolioReturns(context.Background(), positions)
	require.NoError(t, err)
	require.Len(t, sample, 2)
	// 尾部对齐：AAPL 取 0.03/0.04，各占一半权重
	assert.InDelta(t, 0.5*0.03+0.5*0.10, sample[0], 1e-12)
	assert.InDelta(t, 0.5*0.04+0.5*0.20, sample[1], 1e-12)
}

func TestComputeVaRNegativeQuantity(t *testing.T) {
	engine := newTestEngine(map[string][]float64{"AAPL": mixedSample()})

	_, err := engine.ComputeVaR(context.Background(), VaRInput{
		Positions: []Position{{
			Symbol:   "AAPL",
			Quantity: decimal.NewFromInt(-1),
			Price:    decimal.NewFromInt(100),
		}},
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodHistorical,
	})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
