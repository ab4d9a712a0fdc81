package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Optimizer calculates portfolio metrics and solves for target weights.
type Optimizer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewOptimizer creates a portfolio optimizer.
func NewOptimizer(riskFreeRate float64, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "optimizer").Logger(),
	}
}

// PortfolioReturns collapses the returns matrix into a single weighted
// period-return series.
func PortfolioReturns(matrix domain.ReturnsMatrix, weights domain.PortfolioWeights) []float64 {
	n := matrix.NumPeriods()
	portfolio := make([]float64, n)
	for _, symbol := range matrix.Symbols {
		w := weights[symbol]
		if w == 0 {
			continue
		}
		for t, r := range matrix.Series(symbol) {
			portfolio[t] += w * r
		}
	}
	return portfolio
}

// CalculateMetrics derives the full risk-metric bundle from a returns matrix
// and weight vector. Requires at least MinObservations periods.
func (o *Optimizer) CalculateMetrics(matrix domain.ReturnsMatrix, weights domain.PortfolioWeights) (RiskMetrics, error) {
	if err := matrix.Validate(); err != nil {
		return RiskMetrics{}, err
	}
	if matrix.NumPeriods() < domain.MinObservations {
		return RiskMetrics{}, fmt.Errorf("%w: %d periods, need at least %d for portfolio metrics",
			domain.ErrInsufficientData, matrix.NumPeriods(), domain.MinObservations)
	}

	returns := PortfolioReturns(matrix, weights)

	expectedReturn := formulas.Mean(returns) * formulas.TradingDaysPerYear
	volatility := formulas.AnnualizedVolatility(returns)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - o.riskFreeRate) / volatility
	}

	var95 := formulas.Percentile(returns, 5)

	// CVaR: mean of the tail at or below the VaR cutoff.
	var tailSum float64
	tailCount := 0
	for _, r := range returns {
		if r <= var95 {
			tailSum += r
			tailCount++
		}
	}
	cvar95 := var95
	if tailCount > 0 {
		cvar95 = tailSum / float64(tailCount)
	}

	return RiskMetrics{
		ExpectedReturn: expectedReturn,
		Volatility:     volatility,
		SharpeRatio:    sharpe,
		MaxDrawdown:    formulas.MaxDrawdownFromReturns(returns),
		VaR95:          var95,
		CVaR95:         cvar95,
		Skewness:       sanitize(formulas.Skewness(returns)),
		Kurtosis:       sanitize(formulas.Kurtosis(returns)),
	}, nil
}

// sanitize maps NaN moments (e.g. zero-variance series) to 0.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
