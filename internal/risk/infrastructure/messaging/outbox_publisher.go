package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// OutboxMessage 事件发件箱记录，与业务写入同事务落库
type OutboxMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	EventType string    `gorm:"type:varchar(100);index"`
	EventKey  string    `gorm:"type:varchar(100);index"`
	Payload   string    `gorm:"type:text"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "risk_outbox_messages"
}

const (
	statusPending = "pending"
	statusSent    = "sent"
)

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式：
// 事件先落库，由中继异步投递到消息队列。
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(db *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db}
}

// PublishRiskMetricsUpdated 发布风险指标更新事件
func (p *OutboxEventPublisher) PublishRiskMetricsUpdated(event domain.RiskMetricsUpdatedEvent) error {
	return p.publishEvent("RiskMetricsUpdatedEvent", event.PortfolioID, event)
}

// PublishRiskAlertTriggered 发布风险告警触发事件
func (p *OutboxEventPublisher) PublishRiskAlertTriggered(event domain.RiskAlertTriggeredEvent) error {
	return p.publishEvent("RiskAlertTriggeredEvent", event.PortfolioID, event)
}

// PublishRiskAlertResolved 发布风险告警解除事件
func (p *OutboxEventPublisher) PublishRiskAlertResolved(event domain.RiskAlertResolvedEvent) error {
	return p.publishEvent("RiskAlertResolvedEvent", event.PortfolioID, event)
}

// PublishStressTestCompleted 发布压力测试完成事件
func (p *OutboxEventPublisher) PublishStressTestCompleted(event domain.StressTestCompletedEvent) error {
	return p.publishEvent("StressTestCompletedEvent", event.PortfolioID, event)
}

// publishEvent 通用事件发布方法
func (p *OutboxEventPublisher) publishEvent(eventType, eventKey string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	message := OutboxMessage{
		ID:        fmt.Sprintf("MSG-%d", idgen.GenID()),
		EventType: eventType,
		EventKey:  eventKey,
		Payload:   string(payload),
		Status:    statusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return p.db.Create(&message).Error
}

var _ domain.EventPublisher = (*OutboxEventPublisher)(nil)
