package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskMetricsSnapshot 组合风险指标快照。仅追加：每次计算生成新快照，
// 历史快照永不修改。
type RiskMetricsSnapshot struct {
	ID                string          `json:"id"`
	PortfolioID       string          `json:"portfolio_id"`
	Timestamp         time.Time       `json:"timestamp"`
	VaR95             float64         `json:"var_95"`
	VaR99             float64         `json:"var_99"`
	CVaR95            float64         `json:"cvar_95"`
	SharpeRatio       float64         `json:"sharpe_ratio"`
	MaxDrawdown       float64         `json:"max_drawdown"`
	Beta              float64         `json:"beta"`
	ConcentrationRisk float64         `json:"concentration_risk"`
	LiquidityRisk     float64         `json:"liquidity_risk"`
	Volatility        float64         `json:"volatility"`
	RiskScore         float64         `json:"risk_score"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
	Warnings          []string        `json:"warnings,omitempty"`
}

// MetricValue 按规则指标名取快照字段，供风险限额评估使用
func (s *RiskMetricsSnapshot) MetricValue(metric string) (float64, bool) {
	switch metric {
	case MetricVaR95:
		return s.VaR95, true
	case MetricVaR99:
		return s.VaR99, true
	case MetricCVaR95:
		return s.CVaR95, true
	case MetricMaxDrawdown:
		return s.MaxDrawdown, true
	case MetricConcentration:
		return s.ConcentrationRisk, true
	case MetricLiquidity:
		return s.LiquidityRisk, true
	case MetricRiskScore:
		return s.RiskScore, true
	default:
		return 0, false
	}
}

// RiskLimit 组合风险限额，缺省时回退到文档化默认阈值
type RiskLimit struct {
	PortfolioID      string  `json:"portfolio_id"`
	MaxVaR95         float64 `json:"max_var_95"`
	MaxVaR99         float64 `json:"max_var_99"`
	MaxCVaR95        float64 `json:"max_cvar_95"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxConcentration float64 `json:"max_concentration"`
	MaxLiquidityRisk float64 `json:"max_liquidity_risk"`
	MaxRiskScore     float64 `json:"max_risk_score"`
}

// DefaultRiskLimit 默认限额：VaR95>5%、VaR99>10%、CVaR95>8%、
// 回撤>20%、集中度>30、流动性>50、风险评分>70 触发告警
func DefaultRiskLimit(portfolioID string) *RiskLimit {
	return &RiskLimit{
		PortfolioID:      portfolioID,
		MaxVaR95:         0.05,
		MaxVaR99:         0.10,
		MaxCVaR95:        0.08,
		MaxDrawdown:      0.20,
		MaxConcentration: 30,
		MaxLiquidityRisk: 50,
		MaxRiskScore:     70,
	}
}
