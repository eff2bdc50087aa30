package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equityPosition(symbol string, quantity, price int64) Position {
	return Position{
		Symbol:    symbol,
		Quantity:  decimal.NewFromInt(quantity),
		Price:     decimal.NewFromInt(price),
		Liquidity: LiquidityHigh,
	}
}

func TestApplyScenarioMarketCrash(t *testing.T) {
	engine := NewStressTestEngine(nil)
	positions := []Position{
		equityPosition("AAPL", 250, 100),
		equityPosition("MSFT", 250, 100),
		equityPosition("GOOG", 250, 100),
		equityPosition("AMZN", 250, 100),
	}

	scenarios, _, err := engine.ResolveScenarios([]string{"market_crash_20"})
	require.NoError(t, err)
	result, err := engine.ApplyScenario(scenarios[0], positions)
	require.NoError(t, err)

	// 10 万美元组合统一受 -20% 股票冲击
	assert.True(t, result.TotalLoss.Equal(decimal.NewFromInt(20000)), "total loss = %s", result.TotalLoss)
	assert.InDelta(t, 20.0, result.LossPercentage, 1e-9)
	assert.InDelta(t, 0.20, result.MaxPositionDrawdown, 1e-9)
	assert.Len(t, result.PositionImpacts, 4)
	for _, impact := range result.PositionImpacts {
		assert.InDelta(t, 0.80, impact.StressMultiplier, 1e-9)
	}
}

func TestApplyScenarioMultiplierFloor(t *testing.T) {
	engine := NewStressTestEngine([]*StressScenario{{
		ID:         "wipeout",
		Name:       "Wipeout",
		Parameters: map[string]float64{ShockEquity: -2.0},
	}})

	scenarios, _, err := engine.ResolveScenarios(nil)
	require.NoError(t, err)
	result, err := engine.ApplyScenario(scenarios[0], []Position{equityPosition("AAPL", 100, 100)})
	require.NoError(t, err)

	assert.InDelta(t, 0.90, result.MaxPositionDrawdown, 1e-9)
	assert.InDelta(t, 90.0, result.LossPercentage, 1e-9)
}

func TestApplyScenarioAssetClassAndCurrency(t *testing.T) {
	engine := NewStressTestEngine(nil)
	scenarios, _, err := engine.ResolveScenarios([]string{"currency_devaluation"})
	require.NoError(t, err)

	domestic := equityPosition("AAPL", 100, 100)
	domestic.Country = "US"
	foreign := equityPosition("BABA", 100, 100)
	foreign.Country = "CN"

	result, err := engine.ApplyScenario(scenarios[0], []Position{domestic, foreign})
	require.NoError(t, err)

	// 美元持仓仅受 -5% 股票冲击，外币持仓额外叠加 -15% 汇率冲击
	assert.InDelta(t, 0.95, result.PositionImpacts[0].StressMultiplier, 1e-9)
	assert.InDelta(t, 0.80, result.PositionImpacts[1].StressMultiplier, 1e-9)
	assert.Equal(t, "BABA", result.WorstPosition)
}

func TestApplyScenarioBondSectorShock(t *testing.T) {
	engine := NewStressTestEngine(nil)
	scenarios, _, err := engine.ResolveScenarios([]string{"rates_shock"})
	require.NoError(t, err)

	bond := equityPosition("TLT", 100, 100)
	bond.Sector = "Government Bonds"
	tech := equityPosition("NVDA", 100, 100)
	tech.Sector = "Technology"

	result, err := engine.ApplyScenario(scenarios[0], []Position{bond, tech})
	require.NoError(t, err)

	// 债券类持仓命中 bond 冲击，科技股叠加行业冲击
	assert.InDelta(t, 0.85, result.PositionImpacts[0].StressMultiplier, 1e-9)
	assert.InDelta(t, 0.80, result.PositionImpacts[1].StressMultiplier, 1e-9)
}

func TestResolveScenariosDropsUnknown(t *testing.T) {
	engine := NewStressTestEngine(nil)

	scenarios, warnings, err := engine.ResolveScenarios([]string{"market_crash_20", "nonexistent"})
	require.NoError(t, err)
	assert.Len(t, scenarios, 1)
	assert.Len(t, warnings, 1)

	_, _, err = engine.ResolveScenarios([]string{"nonexistent"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestResolveScenariosEmptyMeansAll(t *testing.T) {
	engine := NewStressTestEngine(nil)
	scenarios, warnings, err := engine.ResolveScenarios(nil)
	require.NoError(t, err)
	assert.Len(t, scenarios, len(DefaultScenarios()))
	assert.Empty(t, warnings)
}

func TestAggregate(t *testing.T) {
	results := []*ScenarioResult{
		{ScenarioID: "a", LossPercentage: 10},
		{ScenarioID: "b", LossPercentage: 30},
		{ScenarioID: "c", LossPercentage: 20},
	}
	agg := Aggregate(results, 1)

	assert.Equal(t, 3, agg.ScenariosSucceeded)
	assert.Equal(t, 1, agg.ScenariosFailed)
	assert.InDelta(t, 20.0, agg.AverageLossPct, 1e-9)
	assert.Equal(t, "b", agg.WorstScenario)
	assert.Equal(t, "a", agg.BestScenario)
}

func TestAggregateNoResults(t *testing.T) {
	agg := Aggregate(nil, 2)
	assert.Equal(t, 0, agg.ScenariosSucceeded)
	assert.Equal(t, 2, agg.ScenariosFailed)
	assert.Zero(t, agg.AverageLossPct)
	assert.Empty(t, agg.WorstScenario)
}

func TestAnalyzeScenariosProbabilityWeighting(t *testing.T) {
	engine := NewStressTestEngine([]*StressScenario{
		{ID: "down", Name: "Down", Probability: 0.25, MarketReturn: -0.10},
		{ID: "up", Name: "Up", Probability: 0.75, MarketReturn: 0.10},
	})

	p := equityPosition("SPY", 100, 100)
	p.Beta = 2.0
	outlook := engine.AnalyzeScenarios([]Position{p})

	require.Len(t, outlook.Outcomes, 2)
	assert.InDelta(t, -0.20, outlook.Outcomes[0].ExpectedReturn, 1e-9)
	assert.InDelta(t, 0.20, outlook.Outcomes[1].ExpectedReturn, 1e-9)
	// 加权期望 = 0.25*(-0.2) + 0.75*(0.2) = 0.10
	assert.InDelta(t, 0.10, outlook.ExpectedReturn, 1e-9)
	assert.Greater(t, outlook.ExpectedRisk, 0.0)
	assert.InDelta(t, outlook.ExpectedReturn/outlook.ExpectedRisk, outlook.RiskReturnRatio, 1e-9)
}

func TestAnalyzeScenariosZeroProbabilitySkipped(t *testing.T) {
	engine := NewStressTestEngine([]*StressScenario{
		{ID: "deterministic", Name: "Deterministic", Parameters: map[string]float64{ShockEquity: -0.1}},
	})
	outlook := engine.AnalyzeScenarios([]Position{equityPosition("SPY", 100, 100)})
	assert.Empty(t, outlook.Outcomes)
	assert.Zero(t, outlook.ExpectedReturn)
}
