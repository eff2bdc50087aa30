package domain

// EngineConfig 风险引擎运行参数。构造后不再修改，
// 不同参数的临时计算由调用方复制一份传入。
type EngineConfig struct {
	ConfidenceLevel float64   `json:"confidence_level" mapstructure:"confidence_level"`
	TimeHorizonDays int       `json:"time_horizon_days" mapstructure:"time_horizon_days"`
	Method          VaRMethod `json:"method" mapstructure:"method"`
	Simulations     int       `json:"simulations" mapstructure:"simulations"`
	RiskFreeRate    float64   `json:"risk_free_rate" mapstructure:"risk_free_rate"`
	LookbackDays    int       `json:"lookback_days" mapstructure:"lookback_days"`
}

// DefaultEngineConfig 默认引擎参数
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConfidenceLevel: 0.95,
		TimeHorizonDays: 1,
		Method:          MethodHistorical,
		Simulations:     DefaultSimulations,
		RiskFreeRate:    0.02,
		LookbackDays:    TradingDaysPerYear,
	}
}

// Validate 校验引擎参数
func (c EngineConfig) Validate() error {
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return ErrInvalidParameter
	}
	if c.TimeHorizonDays < 1 {
		return ErrInvalidParameter
	}
	switch c.Method {
	case MethodHistorical, MethodParametric, MethodMonteCarlo:
	default:
		return ErrUnknownMethod
	}
	if c.Simulations < 1 {
		return ErrInvalidParameter
	}
	if c.LookbackDays < 1 {
		return ErrInvalidParameter
	}
	return nil
}
