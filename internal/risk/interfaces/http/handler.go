package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wyfcoding/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

// RiskHandler 负责处理与风险分析相关的 HTTP 请求
type RiskHandler struct {
	service *application.Service
}

// NewRiskHandler 创建 HTTP 处理器
func NewRiskHandler(service *application.Service) *RiskHandler {
	return &RiskHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *RiskHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/risk")
	{
		api.POST("/metrics/calculate", h.CalculateMetrics)
		api.GET("/metrics/:portfolio_id", h.GetLatestMetrics)
		api.GET("/metrics/:portfolio_id/history", h.GetMetricsHistory)
		api.POST("/var", h.ComputeVaR)
		api.POST("/cvar", h.ComputeCVaR)
		api.POST("/ratios", h.ComputeRatios)
		api.POST("/stats", h.ComputeStats)
		api.POST("/stress", h.RunStressTest)
		api.POST("/stress/analyze", h.AnalyzeScenarios)
		api.GET("/stress/scenarios", h.ListScenarios)
		api.GET("/stress/runs/:id", h.GetStressRun)
		api.GET("/stress/:portfolio_id/runs", h.ListStressRuns)
		api.GET("/alerts/:portfolio_id", h.GetAlerts)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)
		api.GET("/limits/:portfolio_id", h.GetRiskLimit)
		api.PUT("/limits", h.SetRiskLimit)
		api.POST("/watch", h.WatchPortfolio)
		api.DELETE("/watch/:portfolio_id", h.UnwatchPortfolio)
	}
}

// statusFor 按错误分类映射 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrAlertNotTransitionable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CalculateMetrics 计算组合全量风险指标
func (h *RiskHandler) CalculateMetrics(c *gin.Context) {
	var req application.CalculateMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.service.Manager.CalculateRiskMetrics(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to calculate risk metrics", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, dto)
}

// GetLatestMetrics 获取组合最新风险指标
func (h *RiskHandler) GetLatestMetrics(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")

	dto, err := h.service.Query.GetLatestMetrics(c.Request.Context(), portfolioID)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to get risk metrics", "portfolio_id", portfolioID, "error", err)
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		return
	}

	response.Success(c, dto)
}

// GetMetricsHistory 获取组合历史风险指标
func (h *RiskHandler) GetMetricsHistory(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "since must be RFC3339", "")
			return
		}
		since = parsed
	}

	dtos, err := h.service.Query.GetMetricsHistory(c.Request.Context(), portfolioID, since, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to get metrics history", "portfolio_id", portfolioID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, dtos)
}

// ComputeVaR 单次 VaR 计算
func (h *RiskHandler) ComputeVaR(c *gin.Context) {
	var req application.VaRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.Manager.ComputeVaR(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to compute VaR", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// ComputeCVaR 单次 CVaR 计算
func (h *RiskHandler) ComputeCVaR(c *gin.Context) {
	var req application.CVaRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.Manager.ComputeCVaR(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to compute CVaR", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// ComputeRatios 计算风险调整收益指标
func (h *RiskHandler) ComputeRatios(c *gin.Context) {
	var req application.RatiosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.Manager.ComputeRiskAdjustedReturns(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to compute risk-adjusted returns", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// ComputeStats 计算组合统计指标
func (h *RiskHandler) ComputeStats(c *gin.Context) {
	var req application.CalculateMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.Manager.ComputePortfolioStats(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to compute portfolio stats", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// RunStressTest 执行压力测试
func (h *RiskHandler) RunStressTest(c *gin.Context) {
	var req application.StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	run, err := h.service.Stress.RunStressTest(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to run stress test", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, run)
}

// AnalyzeScenarios 概率化情景展望分析
func (h *RiskHandler) AnalyzeScenarios(c *gin.Context) {
	var req application.StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	outlook, err := h.service.Stress.AnalyzeScenarios(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to analyze scenarios", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, outlook)
}

// ListScenarios 列出内置压力场景
func (h *RiskHandler) ListScenarios(c *gin.Context) {
	response.Success(c, h.service.Stress.ListScenarios())
}

// GetStressRun 查询压力测试运行记录
func (h *RiskHandler) GetStressRun(c *gin.Context) {
	run, err := h.service.Stress.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		return
	}

	response.Success(c, run)
}

// ListStressRuns 列出组合压力测试历史
func (h *RiskHandler) ListStressRuns(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.service.Stress.ListRuns(c.Request.Context(), portfolioID, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to list stress runs", "portfolio_id", portfolioID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, runs)
}

// GetAlerts 获取组合告警列表
func (h *RiskHandler) GetAlerts(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	alerts, err := h.service.Query.GetAlerts(c.Request.Context(), portfolioID, status, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to get alerts", "portfolio_id", portfolioID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, alerts)
}

// AcknowledgeAlert 确认告警
func (h *RiskHandler) AcknowledgeAlert(c *gin.Context) {
	alert, err := h.service.Manager.AcknowledgeAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to acknowledge alert", "alert_id", c.Param("id"), "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, alert)
}

// ResolveAlert 手工解除告警
func (h *RiskHandler) ResolveAlert(c *gin.Context) {
	var req application.ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	alert, err := h.service.Manager.ResolveAlert(c.Request.Context(), c.Param("id"), req.Resolution)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to resolve alert", "alert_id", c.Param("id"), "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, alert)
}

// GetRiskLimit 获取组合风险限额
func (h *RiskHandler) GetRiskLimit(c *gin.Context) {
	limit, err := h.service.Query.GetRiskLimit(c.Request.Context(), c.Param("portfolio_id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, limit)
}

// SetRiskLimit 配置组合风险限额
func (h *RiskHandler) SetRiskLimit(c *gin.Context) {
	var req application.SetLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	limit, err := h.service.Manager.SetRiskLimit(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to set risk limit", "portfolio_id", req.PortfolioID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, limit)
}

// watchRequest 监控注册请求
type watchRequest struct {
	PortfolioID string                        `json:"portfolio_id" binding:"required"`
	Positions   []application.PositionRequest `json:"positions" binding:"required"`
}

// WatchPortfolio 将组合纳入周期性监控
func (h *RiskHandler) WatchPortfolio(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	h.service.WatchPortfolio(req.PortfolioID, req.Positions)
	response.Success(c, gin.H{"portfolio_id": req.PortfolioID, "watched": true})
}

// UnwatchPortfolio 将组合移出周期性监控
func (h *RiskHandler) UnwatchPortfolio(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")
	h.service.UnwatchPortfolio(portfolioID)
	response.Success(c, gin.H{"portfolio_id": portfolioID, "watched": false})
}
