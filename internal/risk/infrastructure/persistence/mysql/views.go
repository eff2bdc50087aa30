package mysql

import (
	"context"

	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// 将聚合仓储按领域仓储接口拆分为若干视图，供应用层按需注入。

// SnapshotStore 实现 domain.SnapshotRepository。
type SnapshotStore struct{ *RiskRepository }

// AlertStore 实现 domain.AlertRepository。
type AlertStore struct{ *RiskRepository }

func (s AlertStore) Save(ctx context.Context, alert *domain.RiskAlert) error {
	return s.SaveAlert(ctx, alert)
}

func (s AlertStore) Get(ctx context.Context, id string) (*domain.RiskAlert, error) {
	return s.GetAlert(ctx, id)
}

func (s AlertStore) ListByPortfolio(ctx context.Context, portfolioID string, status domain.AlertStatus, limit int) ([]*domain.RiskAlert, error) {
	return s.ListAlertsByPortfolio(ctx, portfolioID, status, limit)
}

// LimitStore 实现 domain.LimitRepository。
type LimitStore struct{ *RiskRepository }

func (s LimitStore) Save(ctx context.Context, limit *domain.RiskLimit) error {
	return s.SaveLimit(ctx, limit)
}

func (s LimitStore) GetByPortfolio(ctx context.Context, portfolioID string) (*domain.RiskLimit, error) {
	return s.GetLimitByPortfolio(ctx, portfolioID)
}

// StressStore 实现 domain.StressTestRepository。
type StressStore struct{ *RiskRepository }

func (s StressStore) Save(ctx context.Context, run *domain.StressTestRun) error {
	return s.SaveStressRun(ctx, run)
}

func (s StressStore) Get(ctx context.Context, id string) (*domain.StressTestRun, error) {
	return s.GetStressRun(ctx, id)
}

func (s StressStore) ListByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*domain.StressTestRun, error) {
	return s.ListStressRunsByPortfolio(ctx, portfolioID, limit)
}

var (
	_ domain.SnapshotRepository   = SnapshotStore{}
	_ domain.AlertRepository      = AlertStore{}
	_ domain.LimitRepository      = LimitStore{}
	_ domain.StressTestRepository = StressStore{}
)
