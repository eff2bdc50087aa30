package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// RiskRepository 聚合风险分析全部 MySQL 仓储能力。
type RiskRepository struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

// NewRiskRepository 创建并返回一个新的 RiskRepository 实例。
func NewRiskRepository(db *gorm.DB, mtr *metrics.Metrics) *RiskRepository {
	return &RiskRepository{db: db, metrics: mtr}
}

func (r *RiskRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

// observe 记录单次数据库操作的计数与耗时。
func (r *RiskRepository) observe(started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.DBQueriesTotal.Inc()
	r.metrics.DBQueryDuration.Observe(time.Since(started).Seconds())
}

// WithTx 在单个数据库事务中执行 fn，事务句柄经 context 透传。
func (r *RiskRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		return fn(txCtx)
	})
}

// --- Snapshot ---

// Save 追加写入快照，快照永不更新。
func (r *RiskRepository) Save(ctx context.Context, snapshot *domain.RiskMetricsSnapshot) error {
	if snapshot == nil {
		return nil
	}
	defer r.observe(time.Now())
	return r.getDB(ctx).WithContext(ctx).Create(toSnapshotModel(snapshot)).Error
}

// GetLatest 获取组合最新快照。
func (r *RiskRepository) GetLatest(ctx context.Context, portfolioID string) (*domain.RiskMetricsSnapshot, error) {
	defer r.observe(time.Now())
	var model RiskSnapshotModel
	err := r.getDB(ctx).WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("timestamp DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toSnapshot(&model), nil
}

// ListByPortfolio 按时间倒序列出组合历史快照。
func (r *RiskRepository) ListByPortfolio(ctx context.Context, portfolioID string, since time.Time, limit int) ([]*domain.RiskMetricsSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	defer r.observe(time.Now())
	var models []*RiskSnapshotModel
	query := r.getDB(ctx).WithContext(ctx).Where("portfolio_id = ?", portfolioID)
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	if err := query.Order("timestamp DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	snapshots := make([]*domain.RiskMetricsSnapshot, 0, len(models))
	for _, m := range models {
		snapshots = append(snapshots, toSnapshot(m))
	}
	return snapshots, nil
}

// --- Alert ---

// SaveAlert 按告警 ID 幂等 upsert。
func (r *RiskRepository) SaveAlert(ctx context.Context, alert *domain.RiskAlert) error {
	if alert == nil {
		return nil
	}
	defer r.observe(time.Now())
	model := toAlertModel(alert)
	db := r.getDB(ctx).WithContext(ctx)

	var existing RiskAlertModel
	err := db.Where("id = ?", alert.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(model).Error
	}
	if err != nil {
		return err
	}
	model.Model = existing.Model
	return db.Save(model).Error
}

// GetAlert 按 ID 获取告警。
func (r *RiskRepository) GetAlert(ctx context.Context, id string) (*domain.RiskAlert, error) {
	defer r.observe(time.Now())
	var model RiskAlertModel
	err := r.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toAlert(&model), nil
}

// GetOpenAlerts 按规则 ID 返回组合全部非终态告警。
func (r *RiskRepository) GetOpenAlerts(ctx context.Context, portfolioID string) (map[string]*domain.RiskAlert, error) {
	defer r.observe(time.Now())
	var models []*RiskAlertModel
	err := r.getDB(ctx).WithContext(ctx).
		Where("portfolio_id = ? AND status IN ?", portfolioID,
			[]string{string(domain.AlertActive), string(domain.AlertAcknowledged)}).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	open := make(map[string]*domain.RiskAlert, len(models))
	for _, m := range models {
		open[m.RuleID] = toAlert(m)
	}
	return open, nil
}

// ListAlertsByPortfolio 列出组合告警，status 为空时返回全部状态。
func (r *RiskRepository) ListAlertsByPortfolio(ctx context.Context, portfolioID string, status domain.AlertStatus, limit int) ([]*domain.RiskAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	defer r.observe(time.Now())
	query := r.getDB(ctx).WithContext(ctx).Where("portfolio_id = ?", portfolioID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var models []*RiskAlertModel
	if err := query.Order("last_triggered DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	alerts := make([]*domain.RiskAlert, 0, len(models))
	for _, m := range models {
		alerts = append(alerts, toAlert(m))
	}
	return alerts, nil
}

// --- Limit ---

// SaveLimit 按组合 ID upsert 风险限额。
func (r *RiskRepository) SaveLimit(ctx context.Context, limit *domain.RiskLimit) error {
	if limit == nil {
		return nil
	}
	defer r.observe(time.Now())
	model := toLimitModel(limit)
	db := r.getDB(ctx).WithContext(ctx)

	var existing RiskLimitModel
	err := db.Where("portfolio_id = ?", limit.PortfolioID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(model).Error
	}
	if err != nil {
		return err
	}
	model.Model = existing.Model
	return db.Save(model).Error
}

// GetLimitByPortfolio 获取组合限额，未配置时返回 nil。
func (r *RiskRepository) GetLimitByPortfolio(ctx context.Context, portfolioID string) (*domain.RiskLimit, error) {
	defer r.observe(time.Now())
	var model RiskLimitModel
	err := r.getDB(ctx).WithContext(ctx).Where("portfolio_id = ?", portfolioID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toLimit(&model), nil
}

// --- StressRun ---

// SaveStressRun 按运行 ID upsert 压力测试记录。
func (r *RiskRepository) SaveStressRun(ctx context.Context, run *domain.StressTestRun) error {
	if run == nil {
		return nil
	}
	defer r.observe(time.Now())
	model := toStressRunModel(run)
	db := r.getDB(ctx).WithContext(ctx)

	var existing StressRunModel
	err := db.Where("id = ?", run.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(model).Error
	}
	if err != nil {
		return err
	}
	model.Model = existing.Model
	return db.Save(model).Error
}

// GetStressRun 按 ID 获取压力测试记录。
func (r *RiskRepository) GetStressRun(ctx context.Context, id string) (*domain.StressTestRun, error) {
	defer r.observe(time.Now())
	var model StressRunModel
	err := r.getDB(ctx).WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toStressRun(&model), nil
}

// ListStressRunsByPortfolio 按创建时间倒序列出组合压力测试记录。
func (r *RiskRepository) ListStressRunsByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*domain.StressTestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	defer r.observe(time.Now())
	var models []*StressRunModel
	err := r.getDB(ctx).WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	runs := make([]*domain.StressTestRun, 0, len(models))
	for _, m := range models {
		runs = append(runs, toStressRun(m))
	}
	return runs, nil
}
