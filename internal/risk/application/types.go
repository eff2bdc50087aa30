package application

import (
	"time"

	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// PositionRequest 持仓输入 DTO。Quantity/Price 使用字符串十进制；
// Price 省略时由行情快照补齐。
type PositionRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Quantity string  `json:"quantity" binding:"required"`
	Price    string  `json:"price,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Sector   string  `json:"sector,omitempty"`
	Country  string  `json:"country,omitempty"`
}

// CalculateMetricsRequest 全量风险指标计算请求
type CalculateMetricsRequest struct {
	PortfolioID string            `json:"portfolio_id" binding:"required"`
	Positions   []PositionRequest `json:"positions" binding:"required"`
}

// VaRRequest 单次 VaR 计算请求，零值字段回退引擎默认参数
type VaRRequest struct {
	PortfolioID     string            `json:"portfolio_id"`
	Positions       []PositionRequest `json:"positions" binding:"required"`
	ConfidenceLevel float64           `json:"confidence_level,omitempty"`
	TimeHorizonDays int               `json:"time_horizon_days,omitempty"`
	Method          string            `json:"method,omitempty"`
	Simulations     int               `json:"simulations,omitempty"`
}

// CVaRRequest CVaR 计算请求
type CVaRRequest struct {
	PortfolioID     string            `json:"portfolio_id"`
	Positions       []PositionRequest `json:"positions" binding:"required"`
	ConfidenceLevel float64           `json:"confidence_level,omitempty"`
	TimeHorizonDays int               `json:"time_horizon_days,omitempty"`
}

// RatiosRequest 风险调整收益计算请求
type RatiosRequest struct {
	PortfolioID  string            `json:"portfolio_id"`
	Positions    []PositionRequest `json:"positions" binding:"required"`
	RiskFreeRate float64           `json:"risk_free_rate,omitempty"`
}

// StressTestRequest 压力测试请求，ScenarioIDs 为空时运行全部内置场景
type StressTestRequest struct {
	PortfolioID string            `json:"portfolio_id" binding:"required"`
	Positions   []PositionRequest `json:"positions" binding:"required"`
	ScenarioIDs []string          `json:"scenario_ids,omitempty"`
}

// SetLimitRequest 风险限额配置请求
type SetLimitRequest struct {
	PortfolioID      string  `json:"portfolio_id" binding:"required"`
	MaxVaR95         float64 `json:"max_var_95"`
	MaxVaR99         float64 `json:"max_var_99"`
	MaxCVaR95        float64 `json:"max_cvar_95"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxConcentration float64 `json:"max_concentration"`
	MaxLiquidityRisk float64 `json:"max_liquidity_risk"`
	MaxRiskScore     float64 `json:"max_risk_score"`
}

// ResolveAlertRequest 手工解除告警请求
type ResolveAlertRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// RiskMetricsDTO 风险指标快照 DTO
type RiskMetricsDTO struct {
	SnapshotID        string    `json:"snapshot_id"`
	PortfolioID       string    `json:"portfolio_id"`
	Timestamp         time.Time `json:"timestamp"`
	VaR95             float64   `json:"var_95"`
	VaR99             float64   `json:"var_99"`
	CVaR95            float64   `json:"cvar_95"`
	SharpeRatio       float64   `json:"sharpe_ratio"`
	SortinoRatio      float64   `json:"sortino_ratio"`
	CalmarRatio       float64   `json:"calmar_ratio"`
	MaxDrawdown       float64   `json:"max_drawdown"`
	Beta              float64   `json:"beta"`
	Volatility        float64   `json:"volatility"`
	ConcentrationRisk float64   `json:"concentration_risk"`
	LiquidityRisk     float64   `json:"liquidity_risk"`
	RiskScore         float64   `json:"risk_score"`
	RiskLevel         string    `json:"risk_level"`
	PortfolioValue    string    `json:"portfolio_value"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// PortfolioStatsDTO 组合统计 DTO
type PortfolioStatsDTO struct {
	PortfolioID             string   `json:"portfolio_id"`
	TotalValue              string   `json:"total_value"`
	PortfolioVolatility     float64  `json:"portfolio_volatility"`
	PortfolioBeta           float64  `json:"portfolio_beta"`
	ConcentrationRisk       float64  `json:"concentration_risk"`
	EffectivePositions      float64  `json:"effective_positions"`
	SectorConcentration     float64  `json:"sector_concentration"`
	GeographicConcentration float64  `json:"geographic_concentration"`
	LiquidityRisk           float64  `json:"liquidity_risk"`
	DiversificationRatio    float64  `json:"diversification_ratio"`
	Warnings                []string `json:"warnings,omitempty"`
}

func snapshotToDTO(s *domain.RiskMetricsSnapshot, ratios *domain.RiskAdjustedReturns) *RiskMetricsDTO {
	dto := &RiskMetricsDTO{
		SnapshotID:        s.ID,
		PortfolioID:       s.PortfolioID,
		Timestamp:         s.Timestamp,
		VaR95:             s.VaR95,
		VaR99:             s.VaR99,
		CVaR95:            s.CVaR95,
		SharpeRatio:       s.SharpeRatio,
		MaxDrawdown:       s.MaxDrawdown,
		Beta:              s.Beta,
		Volatility:        s.Volatility,
		ConcentrationRisk: s.ConcentrationRisk,
		LiquidityRisk:     s.LiquidityRisk,
		RiskScore:         s.RiskScore,
		RiskLevel:         string(domain.ClassifyRiskScore(s.RiskScore)),
		PortfolioValue:    s.PortfolioValue.String(),
		Warnings:          s.Warnings,
	}
	if ratios != nil {
		dto.SortinoRatio = ratios.SortinoRatio
		dto.CalmarRatio = ratios.CalmarRatio
	}
	return dto
}
