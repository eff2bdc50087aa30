package application

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// lockStripes 按组合 ID 分片的互斥锁数量
const lockStripes = 64

// RiskManager 处理所有风险分析相关的写入操作（Commands）。
// 同一组合的指标计算与告警评估串行执行，不同组合互不阻塞。
type RiskManager struct {
	cfg          domain.EngineConfig
	varEngine    *domain.VaREngine
	stats        *domain.PortfolioStatistics
	assembler    *PositionAssembler
	returns      domain.ReturnSeriesProvider
	snapshotRepo domain.SnapshotRepository
	alertRepo    domain.AlertRepository
	limitRepo    domain.LimitRepository
	readCache    domain.SnapshotReadCache
	publisher    domain.EventPublisher
	metrics      *metrics.Metrics
	locks        [lockStripes]sync.Mutex
}

// NewRiskManager 构造函数。
func NewRiskManager(
	cfg domain.EngineConfig,
	varEngine *domain.VaREngine,
	stats *domain.PortfolioStatistics,
	assembler *PositionAssembler,
	returns domain.ReturnSeriesProvider,
	snapshotRepo domain.SnapshotRepository,
	alertRepo domain.AlertRepository,
	limitRepo domain.LimitRepository,
	readCache domain.SnapshotReadCache,
	publisher domain.EventPublisher,
	mtr *metrics.Metrics,
) *RiskManager {
	return &RiskManager{
		cfg:          cfg,
		varEngine:    varEngine,
		stats:        stats,
		assembler:    assembler,
		returns:      returns,
		snapshotRepo: snapshotRepo,
		alertRepo:    alertRepo,
		limitRepo:    limitRepo,
		readCache:    readCache,
		publisher:    publisher,
		metrics:      mtr,
	}
}

func (m *RiskManager) lockFor(portfolioID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(portfolioID))
	return &m.locks[h.Sum32()%lockStripes]
}

// CalculateRiskMetrics 计算组合全量风险指标，持久化快照并驱动告警状态机。
func (m *RiskManager) CalculateRiskMetrics(ctx context.Context, req *CalculateMetricsRequest) (*RiskMetricsDTO, error) {
	started := time.Now()
	positions, warnings, err := m.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}

	var95, err := m.varEngine.ComputeVaR(ctx, domain.VaRInput{
		Positions:       positions,
		ConfidenceLevel: 0.95,
		TimeHorizonDays: m.cfg.TimeHorizonDays,
		Method:          m.cfg.Method,
		Simulations:     m.cfg.Simulations,
	})
	if err != nil {
		return nil, fmt.Errorf("compute var95: %w", err)
	}
	var99, err := m.varEngine.ComputeVaR(ctx, domain.VaRInput{
		Positions:       positions,
		ConfidenceLevel: 0.99,
		TimeHorizonDays: m.cfg.TimeHorizonDays,
		Method:          m.cfg.Method,
		Simulations:     m.cfg.Simulations,
	})
	if err != nil {
		return nil, fmt.Errorf("compute var99: %w", err)
	}
	cvar95, err := m.varEngine.ComputeCVaR(ctx, positions, 0.95, m.cfg.TimeHorizonDays)
	if err != nil {
		return nil, fmt.Errorf("compute cvar95: %w", err)
	}
	warnings = append(warnings, var95.Warnings...)
	warnings = append(warnings, var99.Warnings...)
	warnings = append(warnings, cvar95.Warnings...)

	portfolioReturns, retWarnings, err := m.varEngine.PortfolioReturns(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("portfolio returns: %w", err)
	}
	warnings = append(warnings, retWarnings...)

	benchmark, err := m.returns.GetBenchmarkReturns(ctx, m.cfg.LookbackDays)
	if err != nil {
		warnings = append(warnings, "benchmark returns unavailable, information ratio skipped")
		benchmark = nil
	}
	ratios := domain.ComputeRiskAdjustedReturns(domain.RatioInput{
		Returns:       portfolioReturns,
		Benchmark:     benchmark,
		RiskFreeRate:  m.cfg.RiskFreeRate,
		PortfolioBeta: domain.PortfolioBeta(positions),
	})

	volatility, volWarnings := m.stats.PortfolioVolatility(ctx, positions)
	warnings = append(warnings, volWarnings...)

	snapshot := &domain.RiskMetricsSnapshot{
		ID:                fmt.Sprintf("RISKM-%d", idgen.GenID()),
		PortfolioID:       req.PortfolioID,
		Timestamp:         time.Now().UTC(),
		VaR95:             var95.VaR,
		VaR99:             var99.VaR,
		CVaR95:            cvar95.CVaR,
		SharpeRatio:       ratios.SharpeRatio,
		MaxDrawdown:       ratios.MaxDrawdown,
		Beta:              domain.PortfolioBeta(positions),
		ConcentrationRisk: domain.ConcentrationRisk(positions),
		LiquidityRisk:     domain.LiquidityRisk(positions),
		Volatility:        volatility,
		PortfolioValue:    domain.TotalValue(positions),
		Warnings:          warnings,
	}
	snapshot.RiskScore = domain.ComputeRiskScore(snapshot)

	mu := m.lockFor(req.PortfolioID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.snapshotRepo.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if m.readCache != nil {
		if err := m.readCache.SaveLatest(ctx, snapshot); err != nil {
			logging.Warn(ctx, "RiskManager: failed to refresh snapshot cache", "portfolio_id", req.PortfolioID, "error", err)
		}
	}

	if err := m.evaluateAlerts(ctx, snapshot); err != nil {
		logging.Error(ctx, "RiskManager: alert evaluation failed", "portfolio_id", req.PortfolioID, "error", err)
	}

	if err := m.publisher.PublishRiskMetricsUpdated(domain.RiskMetricsUpdatedEvent{
		SnapshotID:     snapshot.ID,
		PortfolioID:    snapshot.PortfolioID,
		VaR95:          snapshot.VaR95,
		VaR99:          snapshot.VaR99,
		CVaR95:         snapshot.CVaR95,
		SharpeRatio:    snapshot.SharpeRatio,
		MaxDrawdown:    snapshot.MaxDrawdown,
		RiskScore:      snapshot.RiskScore,
		RiskLevel:      domain.ClassifyRiskScore(snapshot.RiskScore),
		PortfolioValue: snapshot.PortfolioValue.String(),
		OccurredOn:     snapshot.Timestamp,
	}); err != nil {
		logging.Error(ctx, "RiskManager: failed to publish metrics event", "snapshot_id", snapshot.ID, "error", err)
	}

	if m.metrics != nil {
		m.metrics.CalculationsTotal.Inc()
		m.metrics.CalculationDuration.Observe(time.Since(started).Seconds())
	}
	return snapshotToDTO(snapshot, &ratios), nil
}

// evaluateAlerts 以最新快照评估限额规则，落库并发布每一次状态迁移。
func (m *RiskManager) evaluateAlerts(ctx context.Context, snapshot *domain.RiskMetricsSnapshot) error {
	limit, err := m.limitRepo.GetByPortfolio(ctx, snapshot.PortfolioID)
	if err != nil || limit == nil {
		limit = domain.DefaultRiskLimit(snapshot.PortfolioID)
	}
	open, err := m.alertRepo.GetOpenAlerts(ctx, snapshot.PortfolioID)
	if err != nil {
		return fmt.Errorf("load open alerts: %w", err)
	}

	transitions := domain.EvaluateRules(snapshot, domain.RulesForLimit(limit), open, func() string {
		return fmt.Sprintf("ALERT-%d", idgen.GenID())
	})

	for _, tr := range transitions {
		if err := m.alertRepo.Save(ctx, tr.Alert); err != nil {
			return fmt.Errorf("save alert %s: %w", tr.Alert.ID, err)
		}
		m.publishTransition(ctx, tr)
	}
	return nil
}

func (m *RiskManager) publishTransition(ctx context.Context, tr domain.AlertTransition) {
	var err error
	switch tr.Kind {
	case domain.TransitionCreated, domain.TransitionRetriggered:
		if m.metrics != nil {
			m.metrics.AlertsTriggeredTotal.WithLabelValues(string(tr.Alert.Severity)).Inc()
			if tr.Kind == domain.TransitionCreated {
				m.metrics.AlertsOpen.Inc()
			}
		}
		err = m.publisher.PublishRiskAlertTriggered(domain.RiskAlertTriggeredEvent{
			AlertID:      tr.Alert.ID,
			PortfolioID:  tr.Alert.PortfolioID,
			RuleID:       tr.Alert.RuleID,
			Severity:     string(tr.Alert.Severity),
			CurrentValue: tr.Alert.CurrentValue,
			Threshold:    tr.Alert.Threshold,
			TriggerCount: tr.Alert.TriggerCount,
			OccurredOn:   tr.Alert.LastTriggered,
		})
	case domain.TransitionResolved:
		if m.metrics != nil {
			m.metrics.AlertsOpen.Dec()
		}
		err = m.publisher.PublishRiskAlertResolved(domain.RiskAlertResolvedEvent{
			AlertID:     tr.Alert.ID,
			PortfolioID: tr.Alert.PortfolioID,
			RuleID:      tr.Alert.RuleID,
			Resolution:  tr.Alert.Resolution,
			OccurredOn:  *tr.Alert.ResolvedAt,
		})
	}
	if err != nil {
		logging.Error(ctx, "RiskManager: failed to publish alert event", "alert_id", tr.Alert.ID, "error", err)
	}
}

// ComputeVaR 单次 VaR 计算，不落库。
func (m *RiskManager) ComputeVaR(ctx context.Context, req *VaRRequest) (*domain.VaRResult, error) {
	positions, warnings, err := m.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}

	input := domain.VaRInput{
		Positions:       positions,
		ConfidenceLevel: req.ConfidenceLevel,
		TimeHorizonDays: req.TimeHorizonDays,
		Method:          domain.VaRMethod(req.Method),
		Simulations:     req.Simulations,
	}
	if input.ConfidenceLevel == 0 {
		input.ConfidenceLevel = m.cfg.ConfidenceLevel
	}
	if input.TimeHorizonDays == 0 {
		input.TimeHorizonDays = m.cfg.TimeHorizonDays
	}
	if input.Method == "" {
		input.Method = m.cfg.Method
	}

	result, err := m.varEngine.ComputeVaR(ctx, input)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.VaRComputationsTotal.WithLabelValues(string(input.Method)).Inc()
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}

// ComputeCVaR 单次 CVaR 计算，不落库。
func (m *RiskManager) ComputeCVaR(ctx context.Context, req *CVaRRequest) (*domain.CVaRResult, error) {
	positions, warnings, err := m.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}

	cl := req.ConfidenceLevel
	if cl == 0 {
		cl = m.cfg.ConfidenceLevel
	}
	horizon := req.TimeHorizonDays
	if horizon == 0 {
		horizon = m.cfg.TimeHorizonDays
	}

	result, err := m.varEngine.ComputeCVaR(ctx, positions, cl, horizon)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}

// ComputeRiskAdjustedReturns 计算风险调整收益指标。
func (m *RiskManager) ComputeRiskAdjustedReturns(ctx context.Context, req *RatiosRequest) (*domain.RiskAdjustedReturns, error) {
	positions, _, err := m.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}
	portfolioReturns, _, err := m.varEngine.PortfolioReturns(ctx, positions)
	if err != nil {
		return nil, err
	}
	benchmark, err := m.returns.GetBenchmarkReturns(ctx, m.cfg.LookbackDays)
	if err != nil {
		benchmark = nil
	}

	rf := req.RiskFreeRate
	if rf == 0 {
		rf = m.cfg.RiskFreeRate
	}
	ratios := domain.ComputeRiskAdjustedReturns(domain.RatioInput{
		Returns:       portfolioReturns,
		Benchmark:     benchmark,
		RiskFreeRate:  rf,
		PortfolioBeta: domain.PortfolioBeta(positions),
	})
	return &ratios, nil
}

// ComputePortfolioStats 计算组合统计指标。
func (m *RiskManager) ComputePortfolioStats(ctx context.Context, req *CalculateMetricsRequest) (*PortfolioStatsDTO, error) {
	positions, warnings, err := m.assembler.Assemble(ctx, req.Positions)
	if err != nil {
		return nil, err
	}

	volatility, volWarnings := m.stats.PortfolioVolatility(ctx, positions)
	warnings = append(warnings, volWarnings...)
	diversification, divWarnings := m.stats.DiversificationRatio(ctx, positions)
	warnings = append(warnings, divWarnings...)

	return &PortfolioStatsDTO{
		PortfolioID:             req.PortfolioID,
		TotalValue:              domain.TotalValue(positions).String(),
		PortfolioVolatility:     volatility,
		PortfolioBeta:           domain.PortfolioBeta(positions),
		ConcentrationRisk:       domain.ConcentrationRisk(positions),
		EffectivePositions:      domain.EffectivePositions(positions),
		SectorConcentration:     domain.SectorConcentration(positions),
		GeographicConcentration: domain.GeographicConcentration(positions),
		LiquidityRisk:           domain.LiquidityRisk(positions),
		DiversificationRatio:    diversification,
		Warnings:                warnings,
	}, nil
}

// SetRiskLimit 配置组合风险限额，零值字段回退默认限额。
func (m *RiskManager) SetRiskLimit(ctx context.Context, req *SetLimitRequest) (*domain.RiskLimit, error) {
	limit := domain.DefaultRiskLimit(req.PortfolioID)
	if req.MaxVaR95 > 0 {
		limit.MaxVaR95 = req.MaxVaR95
	}
	if req.MaxVaR99 > 0 {
		limit.MaxVaR99 = req.MaxVaR99
	}
	if req.MaxCVaR95 > 0 {
		limit.MaxCVaR95 = req.MaxCVaR95
	}
	if req.MaxDrawdown > 0 {
		limit.MaxDrawdown = req.MaxDrawdown
	}
	if req.MaxConcentration > 0 {
		limit.MaxConcentration = req.MaxConcentration
	}
	if req.MaxLiquidityRisk > 0 {
		limit.MaxLiquidityRisk = req.MaxLiquidityRisk
	}
	if req.MaxRiskScore > 0 {
		limit.MaxRiskScore = req.MaxRiskScore
	}
	if err := m.limitRepo.Save(ctx, limit); err != nil {
		return nil, fmt.Errorf("save risk limit: %w", err)
	}
	return limit, nil
}

// ErrAlertNotTransitionable 告警当前状态不允许该迁移
var ErrAlertNotTransitionable = errors.New("alert not in transitionable state")

// AcknowledgeAlert 用户确认告警。
func (m *RiskManager) AcknowledgeAlert(ctx context.Context, alertID string) (*domain.RiskAlert, error) {
	alert, err := m.alertRepo.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	mu := m.lockFor(alert.PortfolioID)
	mu.Lock()
	defer mu.Unlock()

	if !alert.Acknowledge() {
		return nil, ErrAlertNotTransitionable
	}
	if err := m.alertRepo.Save(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}
	return alert, nil
}

// ResolveAlert 手工解除告警。
func (m *RiskManager) ResolveAlert(ctx context.Context, alertID, resolution string) (*domain.RiskAlert, error) {
	alert, err := m.alertRepo.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	mu := m.lockFor(alert.PortfolioID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	if !alert.Resolve(resolution, now) {
		return nil, ErrAlertNotTransitionable
	}
	if err := m.alertRepo.Save(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}
	m.publishTransition(ctx, domain.AlertTransition{Kind: domain.TransitionResolved, Alert: alert})
	return alert, nil
}
