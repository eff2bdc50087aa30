package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

type memoryStressRepo struct {
	runs map[string]domain.StressTestRun
}

func newMemoryStressRepo() *memoryStressRepo {
	return &memoryStressRepo{runs: make(map[string]domain.StressTestRun)}
}

func (r *memoryStressRepo) Save(_ context.Context, run *domain.StressTestRun) error {
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryStressRepo) Get(_ context.Context, id string) (*domain.StressTestRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("stress run %s not found", id)
	}
	stored := run
	return &stored, nil
}

func (r *memoryStressRepo) ListByPortfolio(_ context.Context, portfolioID string, limit int) ([]*domain.StressTestRun, error) {
	var out []*domain.StressTestRun
	for _, run := range r.runs {
		if run.PortfolioID != portfolioID {
			continue
		}
		stored := run
		out = append(out, &stored)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newStressFixture() (*StressTestService, *memoryStressRepo, *capturingPublisher) {
	repo := newMemoryStressRepo()
	publisher := &capturingPublisher{}
	svc := NewStressTestService(
		domain.NewStressTestEngine(nil),
		NewPositionAssembler(&fakeMarket{}, nil),
		repo,
		publisher,
		nil,
	)
	return svc, repo, publisher
}

func fourPositionRequest() *StressTestRequest {
	return &StressTestRequest{
		PortfolioID: "pf-1",
		Positions: []PositionRequest{
			{Symbol: "AAPL", Quantity: "250"},
			{Symbol: "MSFT", Quantity: "250"},
			{Symbol: "GOOG", Quantity: "250"},
			{Symbol: "AMZN", Quantity: "250"},
		},
	}
}

func TestRunStressTestAllDefaultScenarios(t *testing.T) {
	ctx := context.Background()
	svc, repo, publisher := newStressFixture()

	run, err := svc.RunStressTest(ctx, fourPositionRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StressCompleted, run.Status)
	assert.Len(t, run.ScenarioIDs, len(domain.DefaultScenarios()))
	assert.Len(t, run.Results, len(domain.DefaultScenarios()))
	assert.Equal(t, 0, run.Aggregate.ScenariosFailed)
	assert.NotEmpty(t, run.Aggregate.WorstScenario)
	require.NotNil(t, run.CompletedAt)

	persisted, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StressCompleted, persisted.Status)

	require.Len(t, publisher.stressEvents, 1)
	event := publisher.stressEvents[0]
	assert.Equal(t, run.ID, event.RunID)
	assert.Equal(t, run.Aggregate.WorstScenario, event.WorstScenario)
	assert.Greater(t, event.WorstLossPct, 0.0)
}

func TestRunStressTestSingleScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStressFixture()

	req := fourPositionRequest()
	req.ScenarioIDs = []string{"market_crash_20"}
	run, err := svc.RunStressTest(ctx, req)
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	// 全股票组合在 -20% 冲击下损失 20%
	assert.InDelta(t, 20.0, run.Results[0].LossPercentage, 1e-9)
	assert.Equal(t, "market_crash_20", run.Aggregate.WorstScenario)
	assert.InDelta(t, 20.0, run.Aggregate.AverageLossPct, 1e-9)
}

func TestRunStressTestUnknownScenarios(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStressFixture()

	req := fourPositionRequest()
	req.ScenarioIDs = []string{"no_such_scenario"}
	_, err := svc.RunStressTest(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestAnalyzeScenariosOutlook(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStressFixture()

	outlook, err := svc.AnalyzeScenarios(ctx, fourPositionRequest())
	require.NoError(t, err)

	// 内置场景全部为下跌情景，期望收益为负
	assert.Less(t, outlook.ExpectedReturn, 0.0)
	assert.Greater(t, outlook.ExpectedRisk, 0.0)
	assert.Len(t, outlook.Outcomes, len(domain.DefaultScenarios()))
}

func TestListScenarios(t *testing.T) {
	svc, _, _ := newStressFixture()
	scenarios := svc.ListScenarios()
	require.Len(t, scenarios, len(domain.DefaultScenarios()))
	assert.Equal(t, "market_crash_20", scenarios[0].ID)
}
