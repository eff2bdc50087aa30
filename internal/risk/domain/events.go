package domain

import (
	"time"
)

// RiskMetricsUpdatedEvent 风险指标更新事件
type RiskMetricsUpdatedEvent struct {
	SnapshotID     string
	PortfolioID    string
	VaR95          float64
	VaR99          float64
	CVaR95         float64
	SharpeRatio    float64
	MaxDrawdown    float64
	RiskScore      float64
	RiskLevel      RiskLevel
	PortfolioValue string
	OccurredOn     time.Time
}

// RiskAlertTriggeredEvent 风险告警触发事件，创建与重复触发共用
type RiskAlertTriggeredEvent struct {
	AlertID      string
	PortfolioID  string
	RuleID       string
	Severity     string
	CurrentValue float64
	Threshold    float64
	TriggerCount int
	OccurredOn   time.Time
}

// RiskAlertResolvedEvent 风险告警解除事件
type RiskAlertResolvedEvent struct {
	AlertID     string
	PortfolioID string
	RuleID      string
	Resolution  string
	OccurredOn  time.Time
}

// StressTestCompletedEvent 压力测试完成事件
type StressTestCompletedEvent struct {
	RunID         string
	PortfolioID   string
	ScenarioCount int
	FailedCount   int
	WorstScenario string
	WorstLossPct  float64
	OccurredOn    time.Time
}
