package domain

import (
	"context"
	"math"
)

// CVaRResult 条件 VaR（预期亏损）计算结果
type CVaRResult struct {
	CVaR       float64  `json:"cvar"`
	VaR        float64  `json:"var"`
	TailCount  int      `json:"tail_count"`
	SampleSize int      `json:"sample_size"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ComputeCVaR 基于历史法 VaR 的尾部均值。
// 尾部集合为 { r : r ≤ -VaR }，CVaR = mean(|tail|)；
// 尾部为空时 CVaR 退化为 VaR。尾部非空时恒有 CVaR ≥ VaR。
func (e *VaREngine) ComputeCVaR(ctx context.Context, positions []Position, confidenceLevel float64, timeHorizonDays int) (*CVaRResult, error) {
	varResult, err := e.ComputeVaR(ctx, VaRInput{
		Positions:       positions,
		ConfidenceLevel: confidenceLevel,
		TimeHorizonDays: timeHorizonDays,
		Method:          MethodHistorical,
	})
	if err != nil {
		return nil, err
	}

	sample, _, err := e.PortfolioReturns(ctx, positions)
	if err != nil {
		return nil, err
	}

	var tailSum float64
	var tailCount int
	for _, r := range sample {
		if r <= -varResult.VaR {
			tailSum += math.Abs(r)
			tailCount++
		}
	}

	cvar := varResult.VaR
	if tailCount > 0 {
		cvar = tailSum / float64(tailCount)
	}

	return &CVaRResult{
		CVaR:       cvar,
		VaR:        varResult.VaR,
		TailCount:  tailCount,
		SampleSize: len(sample),
		Warnings:   varResult.Warnings,
	}, nil
}
