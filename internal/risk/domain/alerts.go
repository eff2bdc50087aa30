package domain

import (
	"time"
)

// 风险规则指标名
const (
	MetricVaR95         = "var_95"
	MetricVaR99         = "var_99"
	MetricCVaR95        = "cvar_95"
	MetricMaxDrawdown   = "max_drawdown"
	MetricConcentration = "concentration_risk"
	MetricLiquidity     = "liquidity_risk"
	MetricRiskScore     = "risk_score"
)

// Severity 告警严重级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus 告警状态。生命周期：
// (无) → active → active（重复触发，计数+1）→ acknowledged → resolved（终态）
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// ResolutionThresholdCleared 条件恢复时的标准化解除原因
const ResolutionThresholdCleared = "threshold no longer exceeded"

// RiskRule 限额规则：metric > threshold 即告警
type RiskRule struct {
	ID        string   `json:"id"`
	Metric    string   `json:"metric"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
}

// RulesForLimit 由限额对象生成规则集，每条独立可配严重级别
func RulesForLimit(limit *RiskLimit) []RiskRule {
	if limit == nil {
		limit = DefaultRiskLimit("")
	}
	return []RiskRule{
		{ID: "max_var_95", Metric: MetricVaR95, Threshold: limit.MaxVaR95, Severity: SeverityHigh},
		{ID: "max_var_99", Metric: MetricVaR99, Threshold: limit.MaxVaR99, Severity: SeverityCritical},
		{ID: "max_cvar_95", Metric: MetricCVaR95, Threshold: limit.MaxCVaR95, Severity: SeverityHigh},
		{ID: "max_drawdown", Metric: MetricMaxDrawdown, Threshold: limit.MaxDrawdown, Severity: SeverityMedium},
		{ID: "max_concentration", Metric: MetricConcentration, Threshold: limit.MaxConcentration, Severity: SeverityMedium},
		{ID: "max_liquidity_risk", Metric: MetricLiquidity, Threshold: limit.MaxLiquidityRisk, Severity: SeverityLow},
		{ID: "max_risk_score", Metric: MetricRiskScore, Threshold: limit.MaxRiskScore, Severity: SeverityCritical},
	}
}

// RiskAlert 风险告警实体。不变式：同一 (PortfolioID, RuleID)
// 最多存在一条非终态告警。
type RiskAlert struct {
	ID             string      `json:"id"`
	PortfolioID    string      `json:"portfolio_id"`
	RuleID         string      `json:"rule_id"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	CurrentValue   float64     `json:"current_value"`
	Threshold      float64     `json:"threshold"`
	TriggerCount   int         `json:"trigger_count"`
	FirstTriggered time.Time   `json:"first_triggered"`
	LastTriggered  time.Time   `json:"last_triggered"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	Resolution     string      `json:"resolution,omitempty"`
}

// IsOpen 是否处于非终态
func (a *RiskAlert) IsOpen() bool {
	return a.Status == AlertActive || a.Status == AlertAcknowledged
}

// Retrigger 重复触发：更新当前值与触发时间并自增计数。
// 同一快照时间戳重复投递不会二次累加（幂等）。
func (a *RiskAlert) Retrigger(value float64, at time.Time) bool {
	if !a.IsOpen() || at.Equal(a.LastTriggered) {
		return false
	}
	a.CurrentValue = value
	a.LastTriggered = at
	a.TriggerCount++
	return true
}

// Acknowledge 用户确认告警
func (a *RiskAlert) Acknowledge() bool {
	if a.Status != AlertActive {
		return false
	}
	a.Status = AlertAcknowledged
	return true
}

// Resolve 解除告警，进入终态
func (a *RiskAlert) Resolve(reason string, at time.Time) bool {
	if !a.IsOpen() {
		return false
	}
	a.Status = AlertResolved
	a.Resolution = reason
	a.ResolvedAt = &at
	return true
}

// TransitionKind 告警状态迁移种类
type TransitionKind string

const (
	TransitionCreated     TransitionKind = "created"
	TransitionRetriggered TransitionKind = "retriggered"
	TransitionResolved    TransitionKind = "resolved"
)

// AlertTransition 一次状态迁移及其结果实体，作为显式效果列表返回，
// 由应用层负责持久化与事件发布。
type AlertTransition struct {
	Kind  TransitionKind `json:"kind"`
	Alert *RiskAlert     `json:"alert"`
}

// EvaluateRules 以最新快照评估规则集，驱动告警状态机。
// open 以 RuleID 为键给出该组合当前的非终态告警；newID 生成新告警标识。
// 纯函数：所有迁移以效果列表形式返回，不直接产生副作用。
func EvaluateRules(snapshot *RiskMetricsSnapshot, rules []RiskRule, open map[string]*RiskAlert, newID func() string) []AlertTransition {
	var transitions []AlertTransition
	now := snapshot.Timestamp

	for _, rule := range rules {
		value, ok := snapshot.MetricValue(rule.Metric)
		if !ok {
			continue
		}
		existing := open[rule.ID]

		if value > rule.Threshold {
			if existing == nil {
				alert := &RiskAlert{
					ID:             newID(),
					PortfolioID:    snapshot.PortfolioID,
					RuleID:         rule.ID,
					Severity:       rule.Severity,
					Status:         AlertActive,
					CurrentValue:   value,
					Threshold:      rule.Threshold,
					TriggerCount:   1,
					FirstTriggered: now,
					LastTriggered:  now,
				}
				transitions = append(transitions, AlertTransition{Kind: TransitionCreated, Alert: alert})
			} else if existing.Retrigger(value, now) {
				transitions = append(transitions, AlertTransition{Kind: TransitionRetriggered, Alert: existing})
			}
			continue
		}

		if existing != nil && existing.Resolve(ResolutionThresholdCleared, now) {
			transitions = append(transitions, AlertTransition{Kind: TransitionResolved, Alert: existing})
		}
	}
	return transitions
}
