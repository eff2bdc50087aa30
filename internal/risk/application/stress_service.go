package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// stressConcurrency 单次压力测试的场景并发上限
const stressConcurrency = 4

// StressTestService 压力测试应用服务。场景两两独立，按场景并发执行；
// 单场景失败只计入失败数，不中断整次运行。
type StressTestService struct {
	engine    *domain.StressTestEngine
	assembler *PositionAssembler
	repo      domain.StressTestRepository
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
}

// NewStressTestService 构造函数。
func NewStressTestService(
	engine *domain.StressTestEngine,
	assembler *PositionAssembler,
	repo domain.StressTestRepository,
	publisher domain.EventPublisher,
	mtr *metrics.Metrics,
) *StressTestService {
	return &StressTestService{
		engine:    engine,
		assembler: assembler,
		repo:      repo,
		publisher: publisher,
		metrics:   mtr,
	}
}

// RunStressTest 对组合执行一组压力场景并落库运行记录。
func (s *StressTestService) RunStressTest(ctx context.Context, req *StressTestRequest) (*domain.StressTestRun, error) {
	positions, warnings, err := s.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logging.Warn(ctx, "StressTestService: degraded position data", "portfolio_id", req.PortfolioID, "warning", w)
	}

	scenarios, dropped, err := s.engine.ResolveScenarios(req.ScenarioIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range dropped {
		logging.Warn(ctx, "StressTestService: unknown scenario dropped", "scenario_id", id)
	}

	run := &domain.StressTestRun{
		ID:          fmt.Sprintf("STRESS-%d", idgen.GenID()),
		PortfolioID: req.PortfolioID,
		Status:      domain.StressRunning,
		CreatedAt:   time.Now().UTC(),
	}
	for _, sc := range scenarios {
		run.ScenarioIDs = append(run.ScenarioIDs, sc.ID)
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save stress run: %w", err)
	}

	var (
		mu      sync.Mutex
		results []*domain.ScenarioResult
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stressConcurrency)
	for _, scenario := range scenarios {
		g.Go(func() error {
			result, err := s.engine.ApplyScenario(scenario, positions)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logging.Error(gctx, "StressTestService: scenario failed", "scenario_id", scenario.ID, "error", err)
				return nil
			}
			results = append(results, result)
			return nil
		})
	}
	_ = g.Wait()

	run.Results = results
	run.Aggregate = domain.Aggregate(results, failed)
	run.Status = domain.StressCompleted
	if len(results) == 0 {
		run.Status = domain.StressFailed
	}
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt

	if err := s.repo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save stress run: %w", err)
	}
	if s.metrics != nil {
		s.metrics.StressRunsTotal.Inc()
	}

	var worstLossPct float64
	for _, r := range results {
		if r.ScenarioID == run.Aggregate.WorstScenario {
			worstLossPct = r.LossPercentage
		}
	}
	if err := s.publisher.PublishStressTestCompleted(domain.StressTestCompletedEvent{
		RunID:         run.ID,
		PortfolioID:   run.PortfolioID,
		ScenarioCount: len(run.ScenarioIDs),
		FailedCount:   failed,
		WorstScenario: run.Aggregate.WorstScenario,
		WorstLossPct:  worstLossPct,
		OccurredOn:    completedAt,
	}); err != nil {
		logging.Error(ctx, "StressTestService: failed to publish completion event", "run_id", run.ID, "error", err)
	}

	return run, nil
}

// AnalyzeScenarios 概率加权的情景展望分析，不落库。
func (s *StressTestService) AnalyzeScenarios(ctx context.Context, req *StressTestRequest) (*domain.ScenarioOutlook, error) {
	positions, _, err := s.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}
	return s.engine.AnalyzeScenarios(positions), nil
}

// ListScenarios 返回内置场景目录。
func (s *StressTestService) ListScenarios() []*domain.StressScenario {
	return s.engine.Scenarios()
}

// GetRun 查询压力测试运行记录。
func (s *StressTestService) GetRun(ctx context.Context, id string) (*domain.StressTestRun, error) {
	return s.repo.Get(ctx, id)
}

// ListRuns 查询组合的历史压力测试运行。
func (s *StressTestService) ListRuns(ctx context.Context, portfolioID string, limit int) ([]*domain.StressTestRun, error) {
	return s.repo.ListByPortfolio(ctx, portfolioID, limit)
}
