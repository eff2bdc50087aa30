package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/pkg/logging"
)

// Service 风险分析应用服务门面，聚合命令、查询与压力测试能力，
// 并承载受监控组合的周期性重算。
type Service struct {
	Manager *RiskManager
	Query   *RiskQuery
	Stress  *StressTestService

	mu        sync.RWMutex
	monitored map[string][]PositionRequest
}

// NewService 构造函数。
func NewService(manager *RiskManager, query *RiskQuery, stress *StressTestService) *Service {
	return &Service{
		Manager:   manager,
		Query:     query,
		Stress:    stress,
		monitored: make(map[string][]PositionRequest),
	}
}

// WatchPortfolio 将组合纳入周期性监控，重复注册以最新持仓为准。
func (s *Service) WatchPortfolio(portfolioID string, positions []PositionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitored[portfolioID] = positions
}

// UnwatchPortfolio 将组合移出周期性监控。
func (s *Service) UnwatchPortfolio(portfolioID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitored, portfolioID)
}

// MonitoredPortfolios 当前受监控的组合 ID 列表。
func (s *Service) MonitoredPortfolios() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.monitored))
	for id := range s.monitored {
		ids = append(ids, id)
	}
	return ids
}

// RunMonitor 周期性重算受监控组合的风险指标，直至 ctx 取消。
// 单个组合的失败只记录日志，不影响其余组合。
func (s *Service) RunMonitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info(ctx, "risk monitor started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "risk monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Service) scanOnce(ctx context.Context) {
	s.mu.RLock()
	batch := make(map[string][]PositionRequest, len(s.monitored))
	for id, positions := range s.monitored {
		batch[id] = positions
	}
	s.mu.RUnlock()

	for portfolioID, positions := range batch {
		if _, err := s.Manager.CalculateRiskMetrics(ctx, &CalculateMetricsRequest{
			PortfolioID: portfolioID,
			Positions:   positions,
		}); err != nil {
			logging.Error(ctx, "risk monitor: recalculation failed", "portfolio_id", portfolioID, "error", err)
		}
	}
}
