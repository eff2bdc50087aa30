package application

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

type fakeMarket struct {
	failing map[string]bool
}

func (f *fakeMarket) GetSnapshot(_ context.Context, symbol string) (*domain.SymbolSnapshot, error) {
	if f.failing[symbol] {
		return nil, fmt.Errorf("marketdata service unavailable")
	}
	return &domain.SymbolSnapshot{
		Symbol:     symbol,
		Price:      decimal.NewFromInt(100),
		Volatility: 0.25,
		Beta:       1.1,
		Sector:     "Technology",
		Country:    "US",
		Volume:     2e6,
		MarketCap:  5e9,
	}, nil
}

type fakeReturns struct {
	series    map[string][]float64
	benchmark []float64
}

func (f *fakeReturns) GetHistoricalReturns(_ context.Context, symbol string, _ int) ([]float64, error) {
	s, ok := f.series[symbol]
	if !ok {
		return nil, fmt.Errorf("no return series for %s", symbol)
	}
	return s, nil
}

func (f *fakeReturns) GetBenchmarkReturns(_ context.Context, _ int) ([]float64, error) {
	return f.benchmark, nil
}

type fakeCorrelations struct{}

func (fakeCorrelations) Correlation(_ context.Context, _, _ string) (float64, error) {
	return 0.3, nil
}

type memorySnapshotRepo struct {
	snapshots []*domain.RiskMetricsSnapshot
}

func (r *memorySnapshotRepo) Save(_ context.Context, s *domain.RiskMetricsSnapshot) error {
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memorySnapshotRepo) GetLatest(_ context.Context, portfolioID string) (*domain.RiskMetricsSnapshot, error) {
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		if r.snapshots[i].PortfolioID == portfolioID {
			return r.snapshots[i], nil
		}
	}
	return nil, nil
}

func (r *memorySnapshotRepo) ListByPortfolio(_ context.Context, portfolioID string, since time.Time, limit int) ([]*domain.RiskMetricsSnapshot, error) {
	var out []*domain.RiskMetricsSnapshot
	for _, s := range r.snapshots {
		if s.PortfolioID == portfolioID && !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryAlertRepo struct {
	alerts map[string]domain.RiskAlert
}

func newMemoryAlertRepo() *memoryAlertRepo {
	return &memoryAlertRepo{alerts: make(map[string]domain.RiskAlert)}
}

func (r *memoryAlertRepo) Save(_ context.Context, a *domain.RiskAlert) error {
	r.alerts[a.ID] = *a
	return nil
}

func (r *memoryAlertRepo) Get(_ context.Context, id string) (*domain.RiskAlert, error) {
	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s not found", id)
	}
	stored := a
	return &stored, nil
}

func (r *memoryAlertRepo) GetOpenAlerts(_ context.Context, portfolioID string) (map[string]*domain.RiskAlert, error) {
	open := make(map[string]*domain.RiskAlert)
	for _, a := range r.alerts {
		if a.PortfolioID == portfolioID && a.IsOpen() {
			stored := a
			open[a.RuleID] = &stored
		}
	}
	return open, nil
}

func (r *memoryAlertRepo) ListByPortfolio(_ context.Context, portfolioID string, status domain.AlertStatus, limit int) ([]*domain.RiskAlert, error) {
	var out []*domain.RiskAlert
	for _, a := range r.alerts {
		if a.PortfolioID != portfolioID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		stored := a
		out = append(out, &stored)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryLimitRepo struct {
	limits map[string]domain.RiskLimit
}

func newMemoryLimitRepo() *memoryLimitRepo {
	return &memoryLimitRepo{limits: make(map[string]domain.RiskLimit)}
}

func (r *memoryLimitRepo) Save(_ context.Context, l *domain.RiskLimit) error {
	r.limits[l.PortfolioID] = *l
	return nil
}

func (r *memoryLimitRepo) GetByPortfolio(_ context.Context, portfolioID string) (*domain.RiskLimit, error) {
	l, ok := r.limits[portfolioID]
	if !ok {
		return nil, nil
	}
	stored := l
	return &stored, nil
}

type capturingPublisher struct {
	metricsEvents []domain.RiskMetricsUpdatedEvent
	triggered     []domain.RiskAlertTriggeredEvent
	resolved      []domain.RiskAlertResolvedEvent
	stressEvents  []domain.StressTestCompletedEvent
}

func (p *capturingPublisher) PublishRiskMetricsUpdated(e domain.RiskMetricsUpdatedEvent) error {
	p.metricsEvents = append(p.metricsEvents, e)
	return nil
}

func (p *capturingPublisher) PublishRiskAlertTriggered(e domain.RiskAlertTriggeredEvent) error {
	p.triggered = append(p.triggered, e)
	return nil
}

func (p *capturingPublisher) PublishRiskAlertResolved(e domain.RiskAlertResolvedEvent) error {
	p.resolved = append(p.resolved, e)
	return nil
}

func (p *capturingPublisher) PublishStressTestCompleted(e domain.StressTestCompletedEvent) error {
	p.stressEvents = append(p.stressEvents, e)
	return nil
}

type managerFixture struct {
	manager   *RiskManager
	returns   *fakeReturns
	alertRepo *memoryAlertRepo
	limitRepo *memoryLimitRepo
	snapshots *memorySnapshotRepo
	publisher *capturingPublisher
}

func newManagerFixture() *managerFixture {
	returns := &fakeReturns{
		series:    map[string][]float64{},
		benchmark: benignSeries(),
	}
	f := &managerFixture{
		returns:   returns,
		alertRepo: newMemoryAlertRepo(),
		limitRepo: newMemoryLimitRepo(),
		snapshots: &memorySnapshotRepo{},
		publisher: &capturingPublisher{},
	}
	cfg := domain.DefaultEngineConfig()
	f.manager = NewRiskManager(
		cfg,
		domain.NewVaREngine(returns, nil, cfg.LookbackDays),
		domain.NewPortfolioStatistics(fakeCorrelations{}),
		NewPositionAssembler(&fakeMarket{}, nil),
		returns,
		f.snapshots,
		f.alertRepo,
		f.limitRepo,
		nil,
		f.publisher,
		nil,
	)
	return f
}

// 100 个样本中 10 个 -6%，历史法 VaR95 = 6%
func breachSeries() []float64 {
	s := make([]float64, 100)
	for i := range s {
		if i < 10 {
			s[i] = -0.06
		} else {
			s[i] = 0.01
		}
	}
	return s
}

func benignSeries() []float64 {
	s := make([]float64, 100)
	for i := range s {
		s[i] = 0.001
	}
	return s
}

func singlePositionRequest() *CalculateMetricsRequest {
	return &CalculateMetricsRequest{
		PortfolioID: "pf-1",
		Positions:   []PositionRequest{{Symbol: "AAPL", Quantity: "100"}},
	}
}

func TestCalculateRiskMetricsAlertLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()
	f.returns.series["AAPL"] = breachSeries()

	// 仅对 VaR95 设置紧限额，其余阈值放宽到不会触发
	_, err := f.manager.SetRiskLimit(ctx, &SetLimitRequest{
		PortfolioID:      "pf-1",
		MaxVaR95:         0.04,
		MaxVaR99:         1,
		MaxCVaR95:        1,
		MaxDrawdown:      1,
		MaxConcentration: 1000,
		MaxLiquidityRisk: 1000,
		MaxRiskScore:     1000,
	})
	require.NoError(t, err)

	// 第一次计算：越限，创建告警
	dto, err := f.manager.CalculateRiskMetrics(ctx, singlePositionRequest())
	require.NoError(t, err)
	assert.InDelta(t, 0.06, dto.VaR95, 1e-9)
	assert.Equal(t, "10000", dto.PortfolioValue)

	require.Len(t, f.publisher.triggered, 1)
	assert.Equal(t, "max_var_95", f.publisher.triggered[0].RuleID)
	assert.Equal(t, 1, f.publisher.triggered[0].TriggerCount)
	alertID := f.publisher.triggered[0].AlertID

	open, err := f.alertRepo.GetOpenAlerts(ctx, "pf-1")
	require.NoError(t, err)
	require.Len(t, open, 1)

	// 第二次计算：仍越限，同一告警重复触发而非新建
	_, err = f.manager.CalculateRiskMetrics(ctx, singlePositionRequest())
	require.NoError(t, err)

	require.Len(t, f.publisher.triggered, 2)
	assert.Equal(t, alertID, f.publisher.triggered[1].AlertID)
	assert.Equal(t, 2, f.publisher.triggered[1].TriggerCount)

	open, err = f.alertRepo.GetOpenAlerts(ctx, "pf-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 2, open["max_var_95"].TriggerCount)

	// 第三次计算：风险回落，告警自动解除
	f.returns.series["AAPL"] = benignSeries()
	_, err = f.manager.CalculateRiskMetrics(ctx, singlePositionRequest())
	require.NoError(t, err)

	require.Len(t, f.publisher.resolved, 1)
	assert.Equal(t, alertID, f.publisher.resolved[0].AlertID)
	assert.Equal(t, domain.ResolutionThresholdCleared, f.publisher.resolved[0].Resolution)

	open, err = f.alertRepo.GetOpenAlerts(ctx, "pf-1")
	require.NoError(t, err)
	assert.Empty(t, open)

	resolved, err := f.alertRepo.Get(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, resolved.Status)

	assert.Len(t, f.publisher.metricsEvents, 3)
	assert.Len(t, f.snapshots.snapshots, 3)
}

func TestCalculateRiskMetricsDefaultLimitWhenUnset(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()
	f.returns.series["AAPL"] = breachSeries()

	_, err := f.manager.CalculateRiskMetrics(ctx, singlePositionRequest())
	require.NoError(t, err)

	// 未配置限额时按默认限额评估：VaR95 0.06 > 0.05，
	// 单一持仓集中度 100 > 30 也同时越限
	open, err := f.alertRepo.GetOpenAlerts(ctx, "pf-1")
	require.NoError(t, err)
	assert.Contains(t, open, "max_var_95")
	assert.Contains(t, open, "max_concentration")
}

func TestCalculateRiskMetricsDegradedMarketData(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()
	f.returns.series["XYZ"] = benignSeries()

	cfg := domain.DefaultEngineConfig()
	f.manager = NewRiskManager(
		cfg,
		domain.NewVaREngine(f.returns, nil, cfg.LookbackDays),
		domain.NewPortfolioStatistics(fakeCorrelations{}),
		NewPositionAssembler(&fakeMarket{failing: map[string]bool{"XYZ": true}}, nil),
		f.returns,
		f.snapshots,
		f.alertRepo,
		f.limitRepo,
		nil,
		f.publisher,
		nil,
	)

	// 行情不可用且请求未携带价格，无法装配持仓
	_, err := f.manager.CalculateRiskMetrics(ctx, &CalculateMetricsRequest{
		PortfolioID: "pf-2",
		Positions:   []PositionRequest{{Symbol: "XYZ", Quantity: "100"}},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	// 请求携带价格时降级计算，快照附带告警说明
	dto, err := f.manager.CalculateRiskMetrics(ctx, &CalculateMetricsRequest{
		PortfolioID: "pf-2",
		Positions:   []PositionRequest{{Symbol: "XYZ", Quantity: "100", Price: "50"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dto.Warnings)
}

func TestCalculateRiskMetricsMergesPerConfidenceWarnings(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()
	f.returns.series["AAPL"] = benignSeries()

	dto, err := f.manager.CalculateRiskMetrics(ctx, &CalculateMetricsRequest{
		PortfolioID: "pf-3",
		Positions: []PositionRequest{
			{Symbol: "AAPL", Quantity: "100"},
			{Symbol: "GHOST", Quantity: "100"},
		},
	})
	require.NoError(t, err)

	// GHOST 无收益序列：VaR95、VaR99、CVaR95 与组合收益
	// 各自降级一次，快照需要保留全部四条告警
	var skipped int
	for _, w := range dto.Warnings {
		if strings.Contains(w, "return series unavailable for GHOST") {
			skipped++
		}
	}
	assert.Equal(t, 4, skipped)
}

func TestComputeVaRFallsBackToEngineDefaults(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()
	f.returns.series["AAPL"] = breachSeries()

	result, err := f.manager.ComputeVaR(ctx, &VaRRequest{
		Positions: []PositionRequest{{Symbol: "AAPL", Quantity: "100"}},
	})
	require.NoError(t, err)

	// 置信度 / 方法 / 期限回退引擎默认值
	assert.Equal(t, domain.MethodHistorical, result.Method)
	assert.InDelta(t, 0.06, result.VaR, 1e-9)
}

func TestAcknowledgeAndResolveAlert(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture()

	seed := &domain.RiskAlert{
		ID:           "ALERT-seed",
		PortfolioID:  "pf-1",
		RuleID:       "max_var_95",
		Severity:     domain.SeverityHigh,
		Status:       domain.AlertActive,
		TriggerCount: 1,
	}
	require.NoError(t, f.alertRepo.Save(ctx, seed))

	acked, err := f.manager.AcknowledgeAlert(ctx, "ALERT-seed")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertAcknowledged, acked.Status)

	// 已确认的告警不能再次确认
	_, err = f.manager.AcknowledgeAlert(ctx, "ALERT-seed")
	assert.ErrorIs(t, err, ErrAlertNotTransitionable)

	resolved, err := f.manager.ResolveAlert(ctx, "ALERT-seed", "position closed out")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, resolved.Status)
	assert.Equal(t, "position closed out", resolved.Resolution)
	require.Len(t, f.publisher.resolved, 1)

	// 终态告警不可再迁移
	_, err = f.manager.ResolveAlert(ctx, "ALERT-seed", "again")
	assert.ErrorIs(t, err, ErrAlertNotTransitionable)
}
