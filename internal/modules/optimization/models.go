// Package optimization implements mean-variance portfolio metric calculation
// and constrained weight optimization over an aligned returns matrix.
package optimization

import "github.com/auravest/risk-engine/internal/domain"

// Method selects the optimization objective.
type Method string

const (
	MethodSharpe      Method = "sharpe"
	MethodMinVariance Method = "min_variance"
	MethodMaxReturn   Method = "max_return"
)

// RiskMetrics is the bundle of statistics derived from a weighted portfolio
// return series. Recomputed on demand, never cached.
type RiskMetrics struct {
	ExpectedReturn float64 `json:"expected_return"` // Annualized
	Volatility     float64 `json:"volatility"`      // Annualized
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"` // Negative fraction
	VaR95          float64 `json:"var_95"`       // 5th percentile of period returns
	CVaR95         float64 `json:"cvar_95"`      // Mean of returns at or below VaR95
	Skewness       float64 `json:"skewness"`
	Kurtosis       float64 `json:"kurtosis"` // Excess kurtosis
}

// Result is the outcome of a weight optimization. FallbackUsed is set when
// the solver failed to converge and the equal-weight allocation was
// substituted; this is the documented degradation, not an error.
type Result struct {
	Method       Method                  `json:"method"`
	Weights      domain.PortfolioWeights `json:"weights"`
	Metrics      RiskMetrics             `json:"metrics"`
	FallbackUsed bool                    `json:"fallback_used"`
}
