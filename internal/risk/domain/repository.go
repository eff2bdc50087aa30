package domain

import (
	"context"
	"time"
)

// SnapshotRepository 风险指标快照仓储，追加写入
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *RiskMetricsSnapshot) error
	GetLatest(ctx context.Context, portfolioID string) (*RiskMetricsSnapshot, error)
	ListByPortfolio(ctx context.Context, portfolioID string, since time.Time, limit int) ([]*RiskMetricsSnapshot, error)
}

// AlertRepository 风险告警仓储。Save 以 (PortfolioID, RuleID) 的
// 非终态告警做幂等 upsert。
type AlertRepository interface {
	Save(ctx context.Context, alert *RiskAlert) error
	Get(ctx context.Context, id string) (*RiskAlert, error)
	// GetOpenAlerts 按规则 ID 返回组合当前所有非终态告警
	GetOpenAlerts(ctx context.Context, portfolioID string) (map[string]*RiskAlert, error)
	ListByPortfolio(ctx context.Context, portfolioID string, status AlertStatus, limit int) ([]*RiskAlert, error)
}

// SnapshotReadCache 最新快照读缓存，缓存缺失或故障时调用方回源主库
type SnapshotReadCache interface {
	GetLatest(ctx context.Context, portfolioID string) (*RiskMetricsSnapshot, error)
	SaveLatest(ctx context.Context, snapshot *RiskMetricsSnapshot) error
}

// LimitRepository 风险限额仓储，未配置时由调用方回退默认限额
type LimitRepository interface {
	Save(ctx context.Context, limit *RiskLimit) error
	GetByPortfolio(ctx context.Context, portfolioID string) (*RiskLimit, error)
}

// StressTestRepository 压力测试结果仓储
type StressTestRepository interface {
	Save(ctx context.Context, run *StressTestRun) error
	Get(ctx context.Context, id string) (*StressTestRun, error)
	ListByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*StressTestRun, error)
}
