package domain

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishRiskMetricsUpdated 发布风险指标更新事件
	PublishRiskMetricsUpdated(event RiskMetricsUpdatedEvent) error

	// PublishRiskAlertTriggered 发布风险告警触发事件
	PublishRiskAlertTriggered(event RiskAlertTriggeredEvent) error

	// PublishRiskAlertResolved 发布风险告警解除事件
	PublishRiskAlertResolved(event RiskAlertResolvedEvent) error

	// PublishStressTestCompleted 发布压力测试完成事件
	PublishStressTestCompleted(event StressTestCompletedEvent) error
}
