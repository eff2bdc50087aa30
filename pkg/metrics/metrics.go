// Package metrics 提供 Prometheus helper，包含服务通用与风险业务指标
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/pkg/logging"

	"net/http"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 数据库查询计数
	DBQueriesTotal prometheus.Counter
	// 数据库查询耗时
	DBQueryDuration prometheus.Histogram

	// 风险指标计算计数
	CalculationsTotal prometheus.Counter
	// 风险指标计算耗时
	CalculationDuration prometheus.Histogram
	// VaR 计算计数（按方法）
	VaRComputationsTotal *prometheus.CounterVec
	// 当前未解除告警数
	AlertsOpen prometheus.Gauge
	// 告警触发计数（按严重级别）
	AlertsTriggeredTotal *prometheus.CounterVec
	// 压力测试运行计数
	StressRunsTotal prometheus.Counter
	// 行情降级计数
	MarketDataFallbacksTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DBQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "db_queries_total",
			Help:      "Total database queries",
		}),
		DBQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CalculationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "calculations_total",
			Help:      "Total full risk metric calculations",
		}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "calculation_duration_seconds",
			Help:      "Full risk metric calculation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		VaRComputationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "var_computations_total",
			Help:      "Total VaR computations by method",
		}, []string{"method"}),
		AlertsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "alerts_open",
			Help:      "Number of open risk alerts",
		}),
		AlertsTriggeredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "alerts_triggered_total",
			Help:      "Total risk alerts triggered by severity",
		}, []string{"severity"}),
		StressRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "stress_runs_total",
			Help:      "Total stress test runs",
		}),
		MarketDataFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskanalytics",
			Subsystem: serviceName,
			Name:      "marketdata_fallbacks_total",
			Help:      "Total degraded default substitutions after market data failures",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.CalculationsTotal,
		m.CalculationDuration,
		m.VaRComputationsTotal,
		m.AlertsOpen,
		m.AlertsTriggeredTotal,
		m.StressRunsTotal,
		m.MarketDataFallbacksTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logging.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logging.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点 handler
func Handler() http.Handler {
	return promhttp.Handler()
}
