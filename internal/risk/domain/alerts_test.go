package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("ALERT-%d", n)
	}
}

func breachSnapshot(ts time.Time, var95 float64) *RiskMetricsSnapshot {
	return &RiskMetricsSnapshot{
		ID:          "snap-1",
		PortfolioID: "pf-1",
		Timestamp:   ts,
		VaR95:       var95,
	}
}

func TestEvaluateRulesCreatesAlertOnBreach(t *testing.T) {
	limit := DefaultRiskLimit("pf-1")
	rules := RulesForLimit(limit)
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	transitions := EvaluateRules(breachSnapshot(ts, 0.08), rules, nil, sequentialIDs())

	require.Len(t, transitions, 1)
	tr := transitions[0]
	assert.Equal(t, TransitionCreated, tr.Kind)
	assert.Equal(t, "max_var_95", tr.Alert.RuleID)
	assert.Equal(t, "pf-1", tr.Alert.PortfolioID)
	assert.Equal(t, AlertActive, tr.Alert.Status)
	assert.Equal(t, SeverityHigh, tr.Alert.Severity)
	assert.Equal(t, 1, tr.Alert.TriggerCount)
	assert.InDelta(t, 0.08, tr.Alert.CurrentValue, 1e-12)
	assert.InDelta(t, limit.MaxVaR95, tr.Alert.Threshold, 1e-12)
	assert.Equal(t, ts, tr.Alert.FirstTriggered)
	assert.Equal(t, ts, tr.Alert.LastTriggered)
}

func TestEvaluateRulesRetriggersExistingAlert(t *testing.T) {
	rules := RulesForLimit(nil)
	ts1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	ids := sequentialIDs()

	first := EvaluateRules(breachSnapshot(ts1, 0.08), rules, nil, ids)
	require.Len(t, first, 1)
	alert := first[0].Alert

	open := map[string]*RiskAlert{alert.RuleID: alert}
	second := EvaluateRules(breachSnapshot(ts2, 0.09), rules, open, ids)

	require.Len(t, second, 1)
	assert.Equal(t, TransitionRetriggered, second[0].Kind)
	assert.Same(t, alert, second[0].Alert)
	assert.Equal(t, 2, alert.TriggerCount)
	assert.InDelta(t, 0.09, alert.CurrentValue, 1e-12)
	assert.Equal(t, ts1, alert.FirstTriggered)
	assert.Equal(t, ts2, alert.LastTriggered)
}

func TestEvaluateRulesIdempotentForSameTimestamp(t *testing.T) {
	rules := RulesForLimit(nil)
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ids := sequentialIDs()

	first := EvaluateRules(breachSnapshot(ts, 0.08), rules, nil, ids)
	require.Len(t, first, 1)
	alert := first[0].Alert

	// 同一快照重复投递不产生迁移、不累加计数
	open := map[string]*RiskAlert{alert.RuleID: alert}
	replay := EvaluateRules(breachSnapshot(ts, 0.08), rules, open, ids)
	assert.Empty(t, replay)
	assert.Equal(t, 1, alert.TriggerCount)
}

func TestEvaluateRulesResolvesWhenThresholdCleared(t *testing.T) {
	rules := RulesForLimit(nil)
	ts1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	ids := sequentialIDs()

	first := EvaluateRules(breachSnapshot(ts1, 0.08), rules, nil, ids)
	require.Len(t, first, 1)
	alert := first[0].Alert

	open := map[string]*RiskAlert{alert.RuleID: alert}
	cleared := EvaluateRules(breachSnapshot(ts2, 0.01), rules, open, ids)

	require.Len(t, cleared, 1)
	assert.Equal(t, TransitionResolved, cleared[0].Kind)
	assert.Equal(t, AlertResolved, alert.Status)
	assert.Equal(t, ResolutionThresholdCleared, alert.Resolution)
	require.NotNil(t, alert.ResolvedAt)
	assert.Equal(t, ts2, *alert.ResolvedAt)
	assert.False(t, alert.IsOpen())
}

func TestEvaluateRulesMultipleBreaches(t *testing.T) {
	rules := RulesForLimit(nil)
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	snapshot := &RiskMetricsSnapshot{
		ID:          "snap-1",
		PortfolioID: "pf-1",
		Timestamp:   ts,
		VaR95:       0.08,
		RiskScore:   85,
	}

	transitions := EvaluateRules(snapshot, rules, nil, sequentialIDs())

	require.Len(t, transitions, 2)
	ruleIDs := []string{transitions[0].Alert.RuleID, transitions[1].Alert.RuleID}
	assert.Contains(t, ruleIDs, "max_var_95")
	assert.Contains(t, ruleIDs, "max_risk_score")
}

func TestAcknowledgeOnlyFromActive(t *testing.T) {
	alert := &RiskAlert{Status: AlertActive}
	assert.True(t, alert.Acknowledge())
	assert.Equal(t, AlertAcknowledged, alert.Status)
	assert.False(t, alert.Acknowledge())

	resolved := &RiskAlert{Status: AlertResolved}
	assert.False(t, resolved.Acknowledge())
}

func TestAcknowledgedAlertStillRetriggersAndResolves(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alert := &RiskAlert{Status: AlertAcknowledged, TriggerCount: 1, LastTriggered: ts}

	assert.True(t, alert.Retrigger(0.09, ts.Add(time.Minute)))
	assert.Equal(t, 2, alert.TriggerCount)

	assert.True(t, alert.Resolve(ResolutionThresholdCleared, ts.Add(2*time.Minute)))
	assert.Equal(t, AlertResolved, alert.Status)
}

func TestResolveIsTerminal(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alert := &RiskAlert{Status: AlertActive, LastTriggered: ts}

	require.True(t, alert.Resolve("manual", ts.Add(time.Minute)))
	assert.False(t, alert.Resolve("again", ts.Add(2*time.Minute)))
	assert.False(t, alert.Retrigger(0.10, ts.Add(2*time.Minute)))
	assert.Equal(t, "manual", alert.Resolution)
}

func TestRulesForLimitNilUsesDefaults(t *testing.T) {
	rules := RulesForLimit(nil)
	require.Len(t, rules, 7)

	byID := make(map[string]RiskRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	assert.InDelta(t, 0.05, byID["max_var_95"].Threshold, 1e-12)
	assert.Equal(t, SeverityCritical, byID["max_var_99"].Severity)
	assert.Equal(t, MetricRiskScore, byID["max_risk_score"].Metric)
}
