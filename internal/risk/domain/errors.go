package domain

import "errors"

// 风险计算错误分类。调用方通过 errors.Is 判断处理策略：
// 前三类直接终止本次计算，依赖类错误在引擎内部降级处理。
var (
	// ErrInsufficientData 收益率序列为空或长度不足
	ErrInsufficientData = errors.New("insufficient return data")
	// ErrUnknownMethod VaR 方法或场景集合无法识别
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidParameter 置信度越界、数量/价格为负等入参错误
	ErrInvalidParameter = errors.New("invalid parameter")
)
