package mysql

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"gorm.io/gorm"
)

// RiskSnapshotModel MySQL 风险指标快照表映射
type RiskSnapshotModel struct {
	gorm.Model
	ID                string          `gorm:"primaryKey;type:varchar(36);column:id"`
	PortfolioID       string          `gorm:"column:portfolio_id;type:varchar(36);index:idx_snapshot_portfolio_ts;not null"`
	Timestamp         time.Time       `gorm:"column:timestamp;index:idx_snapshot_portfolio_ts;not null"`
	VaR95             float64         `gorm:"column:var_95;type:double;not null"`
	VaR99             float64         `gorm:"column:var_99;type:double;not null"`
	CVaR95            float64         `gorm:"column:cvar_95;type:double;not null"`
	SharpeRatio       float64         `gorm:"column:sharpe_ratio;type:double;not null"`
	MaxDrawdown       float64         `gorm:"column:max_drawdown;type:double;not null"`
	Beta              float64         `gorm:"column:beta;type:double;not null"`
	ConcentrationRisk float64         `gorm:"column:concentration_risk;type:double;not null"`
	LiquidityRisk     float64         `gorm:"column:liquidity_risk;type:double;not null"`
	Volatility        float64         `gorm:"column:volatility;type:double;not null"`
	RiskScore         float64         `gorm:"column:risk_score;type:double;not null"`
	PortfolioValue    decimal.Decimal `gorm:"column:portfolio_value;type:decimal(20,8);not null"`
	Warnings          string          `gorm:"column:warnings;type:text"`
}

func (RiskSnapshotModel) TableName() string { return "risk_snapshots" }

// RiskAlertModel MySQL 风险告警表映射
type RiskAlertModel struct {
	gorm.Model
	ID             string     `gorm:"primaryKey;type:varchar(36);column:id"`
	PortfolioID    string     `gorm:"column:portfolio_id;type:varchar(36);index:idx_alert_portfolio_rule;not null"`
	RuleID         string     `gorm:"column:rule_id;type:varchar(50);index:idx_alert_portfolio_rule;not null"`
	Severity       string     `gorm:"column:severity;type:varchar(20);not null"`
	Status         string     `gorm:"column:status;type:varchar(20);index;not null"`
	CurrentValue   float64    `gorm:"column:current_value;type:double;not null"`
	Threshold      float64    `gorm:"column:threshold;type:double;not null"`
	TriggerCount   int        `gorm:"column:trigger_count;type:int;not null"`
	FirstTriggered time.Time  `gorm:"column:first_triggered;not null"`
	LastTriggered  time.Time  `gorm:"column:last_triggered;not null"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	Resolution     string     `gorm:"column:resolution;type:text"`
}

func (RiskAlertModel) TableName() string { return "risk_alerts" }

// RiskLimitModel MySQL 风险限额表映射
type RiskLimitModel struct {
	gorm.Model
	PortfolioID      string  `gorm:"column:portfolio_id;type:varchar(36);uniqueIndex;not null"`
	MaxVaR95         float64 `gorm:"column:max_var_95;type:double;not null"`
	MaxVaR99         float64 `gorm:"column:max_var_99;type:double;not null"`
	MaxCVaR95        float64 `gorm:"column:max_cvar_95;type:double;not null"`
	MaxDrawdown      float64 `gorm:"column:max_drawdown;type:double;not null"`
	MaxConcentration float64 `gorm:"column:max_concentration;type:double;not null"`
	MaxLiquidityRisk float64 `gorm:"column:max_liquidity_risk;type:double;not null"`
	MaxRiskScore     float64 `gorm:"column:max_risk_score;type:double;not null"`
}

func (RiskLimitModel) TableName() string { return "risk_limits" }

// StressRunModel MySQL 压力测试运行表映射，结果明细以 JSON 存储
type StressRunModel struct {
	gorm.Model
	ID          string     `gorm:"primaryKey;type:varchar(36);column:id"`
	PortfolioID string     `gorm:"column:portfolio_id;type:varchar(36);index;not null"`
	ScenarioIDs string     `gorm:"column:scenario_ids;type:text"`
	Status      string     `gorm:"column:status;type:varchar(20);not null"`
	Results     string     `gorm:"column:results;type:mediumtext"`
	Aggregate   string     `gorm:"column:aggregate;type:text"`
	StartedAt   time.Time  `gorm:"column:started_at;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (StressRunModel) TableName() string { return "stress_test_runs" }

// --- mapping helpers ---

func toSnapshotModel(s *domain.RiskMetricsSnapshot) *RiskSnapshotModel {
	if s == nil {
		return nil
	}
	warnings, _ := json.Marshal(s.Warnings)
	return &RiskSnapshotModel{
		ID:                s.ID,
		PortfolioID:       s.PortfolioID,
		Timestamp:         s.Timestamp,
		VaR95:             s.VaR95,
		VaR99:             s.VaR99,
		CVaR95:            s.CVaR95,
		SharpeRatio:       s.SharpeRatio,
		MaxDrawdown:       s.MaxDrawdown,
		Beta:              s.Beta,
		ConcentrationRisk: s.ConcentrationRisk,
		LiquidityRisk:     s.LiquidityRisk,
		Volatility:        s.Volatility,
		RiskScore:         s.RiskScore,
		PortfolioValue:    s.PortfolioValue,
		Warnings:          string(warnings),
	}
}

func toSnapshot(m *RiskSnapshotModel) *domain.RiskMetricsSnapshot {
	if m == nil {
		return nil
	}
	var warnings []string
	if m.Warnings != "" {
		_ = json.Unmarshal([]byte(m.Warnings), &warnings)
	}
	return &domain.RiskMetricsSnapshot{
		ID:                m.ID,
		PortfolioID:       m.PortfolioID,
		Timestamp:         m.Timestamp,
		VaR95:             m.VaR95,
		VaR99:             m.VaR99,
		CVaR95:            m.CVaR95,
		SharpeRatio:       m.SharpeRatio,
		MaxDrawdown:       m.MaxDrawdown,
		Beta:              m.Beta,
		ConcentrationRisk: m.ConcentrationRisk,
		LiquidityRisk:     m.LiquidityRisk,
		Volatility:        m.Volatility,
		RiskScore:         m.RiskScore,
		PortfolioValue:    m.PortfolioValue,
		Warnings:          warnings,
	}
}

func toAlertModel(a *domain.RiskAlert) *RiskAlertModel {
	if a == nil {
		return nil
	}
	return &RiskAlertModel{
		ID:             a.ID,
		PortfolioID:    a.PortfolioID,
		RuleID:         a.RuleID,
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		CurrentValue:   a.CurrentValue,
		Threshold:      a.Threshold,
		TriggerCount:   a.TriggerCount,
		FirstTriggered: a.FirstTriggered,
		LastTriggered:  a.LastTriggered,
		ResolvedAt:     a.ResolvedAt,
		Resolution:     a.Resolution,
	}
}

func toAlert(m *RiskAlertModel) *domain.RiskAlert {
	if m == nil {
		return nil
	}
	return &domain.RiskAlert{
		ID:             m.ID,
		PortfolioID:    m.PortfolioID,
		RuleID:         m.RuleID,
		Severity:       domain.Severity(m.Severity),
		Status:         domain.AlertStatus(m.Status),
		CurrentValue:   m.CurrentValue,
		Threshold:      m.Threshold,
		TriggerCount:   m.TriggerCount,
		FirstTriggered: m.FirstTriggered,
		LastTriggered:  m.LastTriggered,
		ResolvedAt:     m.ResolvedAt,
		Resolution:     m.Resolution,
	}
}

func toLimitModel(l *domain.RiskLimit) *RiskLimitModel {
	if l == nil {
		return nil
	}
	return &RiskLimitModel{
		PortfolioID:      l.PortfolioID,
		MaxVaR95:         l.MaxVaR95,
		MaxVaR99:         l.MaxVaR99,
		MaxCVaR95:        l.MaxCVaR95,
		MaxDrawdown:      l.MaxDrawdown,
		MaxConcentration: l.MaxConcentration,
		MaxLiquidityRisk: l.MaxLiquidityRisk,
		MaxRiskScore:     l.MaxRiskScore,
	}
}

func toLimit(m *RiskLimitModel) *domain.RiskLimit {
	if m == nil {
		return nil
	}
	return &domain.RiskLimit{
		PortfolioID:      m.PortfolioID,
		MaxVaR95:         m.MaxVaR95,
		MaxVaR99:         m.MaxVaR99,
		MaxCVaR95:        m.MaxCVaR95,
		MaxDrawdown:      m.MaxDrawdown,
		MaxConcentration: m.MaxConcentration,
		MaxLiquidityRisk: m.MaxLiquidityRisk,
		MaxRiskScore:     m.MaxRiskScore,
	}
}

func toStressRunModel(run *domain.StressTestRun) *StressRunModel {
	if run == nil {
		return nil
	}
	scenarioIDs, _ := json.Marshal(run.ScenarioIDs)
	results, _ := json.Marshal(run.Results)
	aggregate, _ := json.Marshal(run.Aggregate)
	return &StressRunModel{
		ID:          run.ID,
		PortfolioID: run.PortfolioID,
		ScenarioIDs: string(scenarioIDs),
		Status:      string(run.Status),
		Results:     string(results),
		Aggregate:   string(aggregate),
		StartedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}
}

func toStressRun(m *StressRunModel) *domain.StressTestRun {
	if m == nil {
		return nil
	}
	run := &domain.StressTestRun{
		ID:          m.ID,
		PortfolioID: m.PortfolioID,
		Status:      domain.StressRunStatus(m.Status),
		CreatedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
	if m.ScenarioIDs != "" {
		_ = json.Unmarshal([]byte(m.ScenarioIDs), &run.ScenarioIDs)
	}
	if m.Results != "" {
		_ = json.Unmarshal([]byte(m.Results), &run.Results)
	}
	if m.Aggregate != "" {
		_ = json.Unmarshal([]byte(m.Aggregate), &run.Aggregate)
	}
	return run
}
