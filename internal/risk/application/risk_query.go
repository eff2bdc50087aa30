package application

import (
	"context"
	"time"

	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// RiskQuery 处理所有风险分析相关的查询操作（Queries）。
type RiskQuery struct {
	snapshotRepo domain.SnapshotRepository
	alertRepo    domain.AlertRepository
	limitRepo    domain.LimitRepository
	readCache    domain.SnapshotReadCache
}

// NewRiskQuery 构造函数。
func NewRiskQuery(
	snapshotRepo domain.SnapshotRepository,
	alertRepo domain.AlertRepository,
	limitRepo domain.LimitRepository,
	readCache domain.SnapshotReadCache,
) *RiskQuery {
	return &RiskQuery{
		snapshotRepo: snapshotRepo,
		alertRepo:    alertRepo,
		limitRepo:    limitRepo,
		readCache:    readCache,
	}
}

// GetLatestMetrics 获取组合最新风险指标（优先缓存）。
func (q *RiskQuery) GetLatestMetrics(ctx context.Context, portfolioID string) (*RiskMetricsDTO, error) {
	if q.readCache != nil {
		if cached, err := q.readCache.GetLatest(ctx, portfolioID); err == nil && cached != nil {
			return snapshotToDTO(cached, nil), nil
		}
	}

	snapshot, err := q.snapshotRepo.GetLatest(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if q.readCache != nil {
		// 回填缓存
		_ = q.readCache.SaveLatest(ctx, snapshot)
	}
	return snapshotToDTO(snapshot, nil), nil
}

// GetMetricsHistory 获取组合历史快照（实时从库获取）。
func (q *RiskQuery) GetMetricsHistory(ctx context.Context, portfolioID string, since time.Time, limit int) ([]*RiskMetricsDTO, error) {
	snapshots, err := q.snapshotRepo.ListByPortfolio(ctx, portfolioID, since, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]*RiskMetricsDTO, 0, len(snapshots))
	for _, s := range snapshots {
		dtos = append(dtos, snapshotToDTO(s, nil))
	}
	return dtos, nil
}

// GetAlerts 获取组合告警列表，status 为空时不过滤状态。
func (q *RiskQuery) GetAlerts(ctx context.Context, portfolioID string, status string, limit int) ([]*domain.RiskAlert, error) {
	return q.alertRepo.ListByPortfolio(ctx, portfolioID, domain.AlertStatus(status), limit)
}

// GetRiskLimit 获取组合限额，未配置时返回默认限额。
func (q *RiskQuery) GetRiskLimit(ctx context.Context, portfolioID string) (*domain.RiskLimit, error) {
	limit, err := q.limitRepo.GetByPortfolio(ctx, portfolioID)
	if err != nil || limit == nil {
		return domain.DefaultRiskLimit(portfolioID), nil
	}
	return limit, nil
}
