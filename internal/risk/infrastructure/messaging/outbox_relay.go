package messaging

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/riskanalytics/pkg/mq"
)

// OutboxRelay 发件箱中继：轮询待投递记录，发送到 Kafka 后标记已投递。
// 投递语义为至少一次，下游消费方按事件 ID 去重。
type OutboxRelay struct {
	db        *gorm.DB
	producer  *mq.KafkaProducer
	topic     string
	batchSize int
	interval  time.Duration
	retention time.Duration
}

// NewOutboxRelay 构造函数。
func NewOutboxRelay(db *gorm.DB, producer *mq.KafkaProducer, topic string, interval time.Duration) *OutboxRelay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OutboxRelay{
		db:        db,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  interval,
		retention: 24 * time.Hour,
	}
}

// Run 启动中继循环，直至 ctx 取消。
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logging.Info(ctx, "outbox relay started", "topic", r.topic, "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				logging.Error(ctx, "outbox relay: batch failed", "error", err)
			}
			if err := r.cleanup(ctx); err != nil {
				logging.Warn(ctx, "outbox relay: cleanup failed", "error", err)
			}
		}
	}
}

// relayBatch 投递一批待处理消息。
func (r *OutboxRelay) relayBatch(ctx context.Context) error {
	var messages []OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", statusPending).
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	for _, message := range messages {
		if err := r.producer.SendRaw(ctx, r.topic, message.EventKey, []byte(message.Payload)); err != nil {
			// 投递失败保持 pending，下一轮重试
			return err
		}
		err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", message.ID).
			Updates(map[string]any{"status": statusSent, "updated_at": time.Now()}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// cleanup 清理超过保留期的已投递消息。
func (r *OutboxRelay) cleanup(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", statusSent, time.Now().Add(-r.retention)).
		Delete(&OutboxMessage{}).Error
}
