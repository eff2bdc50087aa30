package domain

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// VaRMethod VaR 估计方法
type VaRMethod string

const (
	MethodHistorical VaRMethod = "historical"
	MethodParametric VaRMethod = "parametric"
	MethodMonteCarlo VaRMethod = "monte_carlo"
)

// DefaultSimulations 蒙特卡洛默认模拟次数
const DefaultSimulations = 10000

// zScores 常用置信度对应的单侧正态分位数。
// 未登记的置信度统一回退到 0.95 的分位数并附带降级告警。
var zScores = map[float64]float64{
	0.90:  1.282,
	0.95:  1.645,
	0.99:  2.326,
	0.999: 3.090,
}

// UniformSource 均匀随机数来源，*rand.Rand 天然满足。
// 注入固定种子的实现可获得可复现的蒙特卡洛结果。
type UniformSource interface {
	Float64() float64
}

// VaRInput VaR 计算输入
type VaRInput struct {
	Positions       []Position `json:"positions"`
	ConfidenceLevel float64    `json:"confidence_level"`  // ∈ (0,1)
	TimeHorizonDays int        `json:"time_horizon_days"` // ≥ 1
	Method          VaRMethod  `json:"method"`
	Simulations     int        `json:"simulations,omitempty"`
}

// VaRDiagnostics 收益率样本的三阶/四阶标准化矩
type VaRDiagnostics struct {
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// VaRResult VaR 计算结果，VaR 恒为非负损失幅度
type VaRResult struct {
	VaR         float64        `json:"var"`
	MeanReturn  float64        `json:"mean_return"`
	Volatility  float64        `json:"volatility"`
	SampleSize  int            `json:"sample_size"`
	Method      VaRMethod      `json:"method"`
	Diagnostics VaRDiagnostics `json:"diagnostics"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// VaREngine VaR 计算引擎。历史收益率与随机源均为注入依赖，
// 计算内核本身无阻塞 I/O。
type VaREngine struct {
	returns      ReturnSeriesProvider
	rng          UniformSource
	lookbackDays int
}

// NewVaREngine 构造函数。rng 为 nil 时使用时间种子的 PCG 随机源。
func NewVaREngine(returns ReturnSeriesProvider, rng UniformSource, lookbackDays int) *VaREngine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if lookbackDays <= 0 {
		lookbackDays = TradingDaysPerYear
	}
	return &VaREngine{returns: returns, rng: rng, lookbackDays: lookbackDays}
}

// ComputeVaR 按指定方法计算组合 VaR
func (e *VaREngine) ComputeVaR(ctx context.Context, input VaRInput) (*VaRResult, error) {
	if err := ValidatePositions(input.Positions); err != nil {
		return nil, err
	}
	if input.ConfidenceLevel <= 0 || input.ConfidenceLevel >= 1 {
		return nil, fmt.Errorf("%w: confidence level %v outside (0,1)", ErrInvalidParameter, input.ConfidenceLevel)
	}
	if input.TimeHorizonDays < 1 {
		return nil, fmt.Errorf("%w: time horizon %d days, must be >= 1", ErrInvalidParameter, input.TimeHorizonDays)
	}

	switch input.Method {
	case MethodHistorical:
		return e.historicalVaR(ctx, input)
	case MethodParametric:
		return e.parametricVaR(ctx, input)
	case MethodMonteCarlo:
		return e.monteCarloVaR(ctx, input)
	default:
		return nil, fmt.Errorf("%w: VaR method %q", ErrUnknownMethod, input.Method)
	}
}

// PortfolioReturns 按市值权重合成组合日收益率序列。
// 各标的序列按尾部对齐到最短长度；单个标的拉取失败记入告警后跳过。
func (e *VaREngine) PortfolioReturns(ctx context.Context, positions []Position) ([]float64, []string, error) {
	weights := Weights(positions)

	type series struct {
		weight  float64
		returns []float64
	}
	var selected []series
	var warnings []string
	minLen := math.MaxInt

	for i, p := range positions {
		rs, err := e.returns.GetHistoricalReturns(ctx, p.Symbol, e.lookbackDays)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("return series unavailable for %s: %v", p.Symbol, err))
			continue
		}
		if len(rs) == 0 {
			warnings = append(warnings, fmt.Sprintf("empty return series for %s", p.Symbol))
			continue
		}
		selected = append(selected, series{weight: weights[i], returns: rs})
		if len(rs) < minLen {
			minLen = len(rs)
		}
	}
	if len(selected) == 0 || minLen == math.MaxInt {
		return nil, warnings, fmt.Errorf("%w: no return series for any position", ErrInsufficientData)
	}

	portfolio := make([]float64, minLen)
	for _, s := range selected {
		tail := s.returns[len(s.returns)-minLen:]
		for t, r := range tail {
			portfolio[t] += s.weight * r
		}
	}
	return portfolio, warnings, nil
}

func (e *VaREngine) historicalVaR(ctx context.Context, input VaRInput) (*VaRResult, error) {
	sample, warnings, err := e.PortfolioReturns(ctx, input.Positions)
	if err != nil {
		return nil, err
	}
	varValue := quantileLoss(sample, input.ConfidenceLevel)
	return &VaRResult{
		VaR:        varValue,
		MeanReturn: MeanReturn(sample),
		Volatility: Volatility(sample),
		SampleSize: len(sample),
		Method:     MethodHistorical,
		Diagnostics: VaRDiagnostics{
			Skewness: Skewness(sample),
			Kurtosis: Kurtosis(sample),
		},
		Warnings: warnings,
	}, nil
}

func (e *VaREngine) parametricVaR(ctx context.Context, input VaRInput) (*VaRResult, error) {
	mean, vol, sampleSize, warnings := e.sampleParams(ctx, input.Positions)

	z, ok := zScores[input.ConfidenceLevel]
	if !ok {
		z = zScores[0.95]
		warnings = append(warnings, fmt.Sprintf("no z-score for confidence %v, falling back to 0.95", input.ConfidenceLevel))
	}

	varValue := math.Abs(mean + z*vol*math.Sqrt(float64(input.TimeHorizonDays)))
	return &VaRResult{
		VaR:        varValue,
		MeanReturn: mean,
		Volatility: vol,
		SampleSize: sampleSize,
		Method:     MethodParametric,
		Warnings:   warnings,
	}, nil
}

func (e *VaREngine) monteCarloVaR(ctx context.Context, input VaRInput) (*VaRResult, error) {
	mean, vol, _, warnings := e.sampleParams(ctx, input.Positions)

	sims := input.Simulations
	if sims <= 0 {
		sims = DefaultSimulations
	}

	sample := make([]float64, sims)
	for i := range sims {
		sample[i] = mean + vol*e.normFloat64()
	}

	varValue := quantileLoss(sample, input.ConfidenceLevel)
	return &VaRResult{
		VaR:        varValue,
		MeanReturn: mean,
		Volatility: vol,
		SampleSize: sims,
		Method:     MethodMonteCarlo,
		Diagnostics: VaRDiagnostics{
			Skewness: Skewness(sample),
			Kurtosis: Kurtosis(sample),
		},
		Warnings: warnings,
	}, nil
}

// sampleParams 推导 (均值, 波动率)。优先使用历史组合收益率样本，
// 序列不可得时降级为持仓自带参数的加权汇总。
func (e *VaREngine) sampleParams(ctx context.Context, positions []Position) (mean, vol float64, sampleSize int, warnings []string) {
	sample, warnings, err := e.PortfolioReturns(ctx, positions)
	if err == nil && len(sample) > 0 {
		return MeanReturn(sample), Volatility(sample), len(sample), warnings
	}

	warnings = append(warnings, "deriving distribution parameters from position-level inputs")
	weights := Weights(positions)
	for i, p := range positions {
		mean += weights[i] * p.MeanReturn
		v := p.Volatility
		if v <= 0 {
			v = DefaultVolatility
			warnings = append(warnings, fmt.Sprintf("volatility missing for %s, using default %.2f", p.Symbol, DefaultVolatility))
		}
		// 年化波动率折算到日度
		vol += weights[i] * v / math.Sqrt(TradingDaysPerYear)
	}
	return mean, vol, 0, warnings
}

// quantileLoss 排序后取 (1-cl) 分位的损失幅度
func quantileLoss(sample []float64, confidenceLevel float64) float64 {
	sorted := slices.Clone(sample)
	slices.Sort(sorted)
	idx := int(math.Floor((1 - confidenceLevel) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return math.Abs(sorted[idx])
}

// normFloat64 Box-Muller 变换生成标准正态随机数
func (e *VaREngine) normFloat64() float64 {
	u1 := e.rng.Float64()
	for u1 == 0 {
		u1 = e.rng.Float64()
	}
	u2 := e.rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
