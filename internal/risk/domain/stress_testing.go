package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 冲击参数键。场景参数以命名冲击幅度表达，
// 按资产类别 / 行业(sector:xxx) / 货币 / 流动性档(liquidity:xxx) 分类。
const (
	ShockEquity    = "equity"
	ShockBond      = "bond"
	ShockCommodity = "commodity"
	ShockCurrency  = "currency"
)

// stressFloor 压力乘数下限，持仓价值最多缩水到原值的 10%
const stressFloor = 0.1

// StressScenario 压力测试场景。Probability 与 MarketReturn
// 仅用于概率化情景分析，确定性冲击不使用。
type StressScenario struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Parameters   map[string]float64 `json:"parameters"`
	Probability  float64            `json:"probability,omitempty"`
	MarketReturn float64            `json:"market_return,omitempty"`
}

// StressRunStatus 压力测试运行状态
type StressRunStatus string

const (
	StressRunning   StressRunStatus = "running"
	StressCompleted StressRunStatus = "completed"
	StressFailed    StressRunStatus = "failed"
)

// PositionImpact 单持仓冲击结果
type PositionImpact struct {
	Symbol           string          `json:"symbol"`
	OriginalValue    decimal.Decimal `json:"original_value"`
	StressMultiplier float64         `json:"stress_multiplier"`
	StressedValue    decimal.Decimal `json:"stressed_value"`
	Loss             decimal.Decimal `json:"loss"`
}

// ScenarioResult 单场景聚合结果
type ScenarioResult struct {
	ScenarioID          string           `json:"scenario_id"`
	ScenarioName        string           `json:"scenario_name"`
	TotalLoss           decimal.Decimal  `json:"total_loss"`
	LossPercentage      float64          `json:"loss_percentage"`
	MaxPositionDrawdown float64          `json:"max_position_drawdown"`
	WorstPosition       string           `json:"worst_position"`
	PositionImpacts     []PositionImpact `json:"position_impacts"`
}

// StressAggregate 跨场景汇总
type StressAggregate struct {
	ScenariosSucceeded int     `json:"scenarios_succeeded"`
	ScenariosFailed    int     `json:"scenarios_failed"`
	AverageLossPct     float64 `json:"average_loss_pct"`
	WorstScenario      string  `json:"worst_scenario"`
	BestScenario       string  `json:"best_scenario"`
}

// StressTestRun 一次压力测试运行记录
type StressTestRun struct {
	ID          string            `json:"id"`
	PortfolioID string            `json:"portfolio_id"`
	ScenarioIDs []string          `json:"scenario_ids"`
	Status      StressRunStatus   `json:"status"`
	Results     []*ScenarioResult `json:"results"`
	Aggregate   StressAggregate   `json:"aggregate"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ScenarioOutcome 概率化情景的单项展望
type ScenarioOutcome struct {
	ScenarioID     string  `json:"scenario_id"`
	Probability    float64 `json:"probability"`
	ExpectedReturn float64 `json:"expected_return"`
}

// ScenarioOutlook 概率加权的组合情景展望
type ScenarioOutlook struct {
	ExpectedReturn  float64           `json:"expected_return"`
	ExpectedRisk    float64           `json:"expected_risk"`
	RiskReturnRatio float64           `json:"risk_return_ratio"`
	Outcomes        []ScenarioOutcome `json:"outcomes"`
}

// StressTestEngine 压力测试引擎。场景目录在构造时注入且不可变，
// 运行期没有进程级可变状态。
type StressTestEngine struct {
	scenarios map[string]*StressScenario
	order     []string
}

// NewStressTestEngine 构造函数，场景为空时装载默认目录
func NewStressTestEngine(scenarios []*StressScenario) *StressTestEngine {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	e := &StressTestEngine{scenarios: make(map[string]*StressScenario, len(scenarios))}
	for _, s := range scenarios {
		if _, dup := e.scenarios[s.ID]; dup {
			continue
		}
		e.scenarios[s.ID] = s
		e.order = append(e.order, s.ID)
	}
	return e
}

// DefaultScenarios 内置场景目录
func DefaultScenarios() []*StressScenario {
	return []*StressScenario{
		{
			ID:           "market_crash_20",
			Name:         "Market Crash -20%",
			Description:  "Broad equity sell-off of 20 percent",
			Parameters:   map[string]float64{ShockEquity: -0.20},
			Probability:  0.05,
			MarketReturn: -0.20,
		},
		{
			ID:          "gfc_replay",
			Name:        "Global Financial Crisis Replay",
			Description: "2008-style crash with flight to quality",
			Parameters: map[string]float64{
				ShockEquity:        -0.40,
				ShockBond:          -0.10,
				ShockCommodity:     -0.25,
				"liquidity:low":    -0.15,
				"liquidity:medium": -0.05,
			},
			Probability:  0.02,
			MarketReturn: -0.40,
		},
		{
			ID:           "flash_crash",
			Name:         "Flash Crash",
			Description:  "Sudden intraday drop",
			Parameters:   map[string]float64{ShockEquity: -0.15, "liquidity:low": -0.10},
			Probability:  0.10,
			MarketReturn: -0.15,
		},
		{
			ID:          "rates_shock",
			Name:        "Interest Rate Shock +300bp",
			Description: "Aggressive tightening cycle",
			Parameters: map[string]float64{
				ShockBond:           -0.15,
				ShockEquity:         -0.08,
				"sector:financials": 0.03,
				"sector:technology": -0.12,
			},
			Probability:  0.15,
			MarketReturn: -0.08,
		},
		{
			ID:          "liquidity_crisis",
			Name:        "Liquidity Crisis",
			Description: "Funding squeeze hitting illiquid names hardest",
			Parameters: map[string]float64{
				ShockEquity:        -0.10,
				"liquidity:low":    -0.30,
				"liquidity:medium": -0.10,
			},
			Probability:  0.05,
			MarketReturn: -0.12,
		},
		{
			ID:          "currency_devaluation",
			Name:        "Foreign Currency Devaluation",
			Description: "Non-domestic holdings repriced on FX moves",
			Parameters: map[string]float64{
				ShockCurrency: -0.15,
				ShockEquity:   -0.05,
			},
			Probability:  0.08,
			MarketReturn: -0.06,
		},
	}
}

// Scenarios 按注册顺序返回场景目录
func (e *StressTestEngine) Scenarios() []*StressScenario {
	out := make([]*StressScenario, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.scenarios[id])
	}
	return out
}

// ResolveScenarios 校验场景集合：未知 ID 丢弃并告警，全部未知视为致命
func (e *StressTestEngine) ResolveScenarios(scenarioIDs []string) ([]*StressScenario, []string, error) {
	ids := scenarioIDs
	if len(ids) == 0 {
		ids = e.order
	}
	var resolved []*StressScenario
	var warnings []string
	for _, id := range ids {
		s, ok := e.scenarios[id]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown scenario %q dropped", id))
			continue
		}
		resolved = append(resolved, s)
	}
	if len(resolved) == 0 {
		return nil, warnings, fmt.Errorf("%w: no valid scenarios in %v", ErrInvalidParameter, scenarioIDs)
	}
	return resolved, warnings, nil
}

// ApplyScenario 对持仓集合施加单场景冲击。纯函数，无副作用。
func (e *StressTestEngine) ApplyScenario(scenario *StressScenario, positions []Position) (*ScenarioResult, error) {
	if err := ValidatePositions(positions); err != nil {
		return nil, err
	}

	totalValue := TotalValue(positions)
	result := &ScenarioResult{
		ScenarioID:      scenario.ID,
		ScenarioName:    scenario.Name,
		TotalLoss:       decimal.Zero,
		PositionImpacts: make([]PositionImpact, 0, len(positions)),
	}

	var worstMultiplier = math.MaxFloat64
	for _, p := range positions {
		multiplier := stressMultiplier(scenario, p)
		original := p.MarketValue()
		stressed := original.Mul(decimal.NewFromFloat(multiplier))
		loss := original.Sub(stressed)

		result.TotalLoss = result.TotalLoss.Add(loss)
		result.PositionImpacts = append(result.PositionImpacts, PositionImpact{
			Symbol:           p.Symbol,
			OriginalValue:    original,
			StressMultiplier: multiplier,
			StressedValue:    stressed,
			Loss:             loss,
		})
		if multiplier < worstMultiplier {
			worstMultiplier = multiplier
			result.WorstPosition = p.Symbol
		}
	}

	if !totalValue.IsZero() {
		result.LossPercentage = result.TotalLoss.Div(totalValue).InexactFloat64() * 100
	}
	if worstMultiplier < 1 {
		result.MaxPositionDrawdown = 1 - worstMultiplier
	}
	return result, nil
}

// AnalyzeScenarios 概率化情景分析：expectedReturn = marketReturn × β，
// 组合展望为概率加权期望收益与加权标准差。
func (e *StressTestEngine) AnalyzeScenarios(positions []Position) *ScenarioOutlook {
	beta := PortfolioBeta(positions)
	outlook := &ScenarioOutlook{}

	var totalProb float64
	for _, id := range e.order {
		s := e.scenarios[id]
		if s.Probability <= 0 {
			continue
		}
		expected := s.MarketReturn * beta
		outlook.Outcomes = append(outlook.Outcomes, ScenarioOutcome{
			ScenarioID:     s.ID,
			Probability:    s.Probability,
			ExpectedReturn: expected,
		})
		outlook.ExpectedReturn += s.Probability * expected
		totalProb += s.Probability
	}
	if totalProb == 0 {
		return outlook
	}
	outlook.ExpectedReturn /= totalProb

	var variance float64
	for _, o := range outlook.Outcomes {
		diff := o.ExpectedReturn - outlook.ExpectedReturn
		variance += o.Probability / totalProb * diff * diff
	}
	outlook.ExpectedRisk = math.Sqrt(variance)
	if outlook.ExpectedRisk > 0 {
		outlook.RiskReturnRatio = outlook.ExpectedReturn / outlook.ExpectedRisk
	}
	return outlook
}

// Aggregate 跨场景汇总统计
func Aggregate(results []*ScenarioResult, failed int) StressAggregate {
	agg := StressAggregate{ScenariosSucceeded: len(results), ScenariosFailed: failed}
	if len(results) == 0 {
		return agg
	}
	worst, best := results[0], results[0]
	var sumPct float64
	for _, r := range results {
		sumPct += r.LossPercentage
		if r.LossPercentage > worst.LossPercentage {
			worst = r
		}
		if r.LossPercentage < best.LossPercentage {
			best = r
		}
	}
	agg.AverageLossPct = sumPct / float64(len(results))
	agg.WorstScenario = worst.ScenarioID
	agg.BestScenario = best.ScenarioID
	return agg
}

// stressMultiplier 持仓的压力乘数 = 1 + Σ 适用冲击项，下限 0.1
func stressMultiplier(scenario *StressScenario, p Position) float64 {
	multiplier := 1.0
	for _, key := range classifyPosition(p) {
		if shock, ok := scenario.Parameters[key]; ok {
			multiplier += shock
		}
	}
	if multiplier < stressFloor {
		multiplier = stressFloor
	}
	return multiplier
}

// classifyPosition 按启发式规则归类持仓，返回其命中的全部冲击键
func classifyPosition(p Position) []string {
	keys := []string{assetClass(p)}
	if p.Sector != "" {
		keys = append(keys, "sector:"+strings.ToLower(p.Sector))
	}
	if p.Country != "" && !strings.EqualFold(p.Country, "US") {
		keys = append(keys, ShockCurrency)
	}
	keys = append(keys, "liquidity:"+string(p.EffectiveLiquidity()))
	return keys
}

func assetClass(p Position) string {
	sector := strings.ToLower(p.Sector)
	switch {
	case strings.Contains(sector, "bond"), strings.Contains(sector, "treasury"),
		strings.Contains(sector, "fixed income"), strings.Contains(sector, "government"):
		return ShockBond
	case strings.Contains(sector, "commodit"), strings.Contains(sector, "gold"),
		strings.Contains(sector, "energy"):
		return ShockCommodity
	default:
		return ShockEquity
	}
}
