package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
	"github.com/auravest/risk-engine/pkg/logger"
)

func newTestOptimizer() *Optimizer {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	return NewOptimizer(0.05, log)
}

func alternating(r float64, n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		if i%2 == 0 {
			series[i] = r
		} else {
			series[i] = -r
		}
	}
	return series
}

func constant(r float64, n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = r
	}
	return series
}

func withDrift(series []float64, drift float64) []float64 {
	out := make([]float64, len(series))
	for i, r := range series {
		out[i] = r + drift
	}
	return out
}

func mustMatrix(t *testing.T, returns map[string][]float64, symbols ...string) domain.ReturnsMatrix {
	t.Helper()
	matrix, err := domain.NewReturnsMatrix(symbols, returns)
	require.NoError(t, err)
	return matrix
}

func TestCalculateMetrics_SingleAsset(t *testing.T) {
	o := newTestOptimizer()

	series := withDrift(alternating(0.01, 100), 0.001)
	matrix := mustMatrix(t, map[string][]float64{"AAPL": series}, "AAPL")

	metrics, err := o.CalculateMetrics(matrix, domain.PortfolioWeights{"AAPL": 1.0})
	require.NoError(t, err)

	assert.InDelta(t, formulas.Mean(series)*252, metrics.ExpectedReturn, 1e-12)
	assert.InDelta(t, formulas.AnnualizedVolatility(series), metrics.Volatility, 1e-12)
	assert.InDelta(t, (metrics.ExpectedReturn-0.05)/metrics.Volatility, metrics.SharpeRatio, 1e-12)
	assert.LessOrEqual(t, metrics.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, metrics.CVaR95, metrics.VaR95)
}

func TestCalculateMetrics_InsufficientData(t *testing.T) {
	o := newTestOptimizer()

	matrix := mustMatrix(t, map[string][]float64{"AAPL": alternating(0.01, 10)}, "AAPL")
	_, err := o.CalculateMetrics(matrix, domain.PortfolioWeights{"AAPL": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestCalculateMetrics_WeightedSum(t *testing.T) {
	o := newTestOptimizer()

	a := constant(0.002, 60)
	b := constant(-0.001, 60)
	matrix := mustMatrix(t, map[string][]float64{"A": a, "B": b}, "A", "B")

	metrics, err := o.CalculateMetrics(matrix, domain.PortfolioWeights{"A": 0.5, "B": 0.5})
	require.NoError(t, err)

	// 0.5·0.002 + 0.5·(-0.001) = 0.0005 per period
	assert.InDelta(t, 0.0005*252, metrics.ExpectedReturn, 1e-12)
	assert.InDelta(t, 0.0, metrics.Volatility, 1e-12)
}

func TestOptimize_MinVariancePrefersLowVolAsset(t *testing.T) {
	o := newTestOptimizer()

	matrix := mustMatrix(t, map[string][]float64{
		"CALM": alternating(0.001, 120),
		"WILD": alternating(0.03, 120),
	}, "CALM", "WILD")

	result, err := o.Optimize(matrix, MethodMinVariance)
	require.NoError(t, err)
	assert.False(t, result.FallbackUsed)

	assertWeightsSumToOne(t, result.Weights)
	assert.Greater(t, result.Weights["CALM"], 0.8)
}

func TestOptimize_MaxReturnConcentrates(t *testing.T) {
	o := newTestOptimizer()

	matrix := mustMatrix(t, map[string][]float64{
		"UP":   withDrift(alternating(0.002, 120), 0.003),
		"DOWN": withDrift(alternating(0.002, 120), -0.001),
	}, "UP", "DOWN")

	result, err := o.Optimize(matrix, MethodMaxReturn)
	require.NoError(t, err)
	assert.False(t, result.FallbackUsed)

	assertWeightsSumToOne(t, result.Weights)
	assert.Greater(t, result.Weights["UP"], 0.9)
}

func TestOptimize_SharpeFallbackOnDegenerateReturns(t *testing.T) {
	o := newTestOptimizer()

	// Zero-variance columns make the Sharpe objective undefined everywhere;
	// the optimizer must degrade to equal weights, not error.
	matrix := mustMatrix(t, map[string][]float64{
		"A": constant(0, 60),
		"B": constant(0, 60),
		"C": constant(0, 60),
	}, "A", "B", "C")

	result, err := o.Optimize(matrix, MethodSharpe)
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)

	assertWeightsSumToOne(t, result.Weights)
	for _, symbol := range matrix.Symbols {
		assert.InDelta(t, 1.0/3.0, result.Weights[symbol], 1e-9)
	}
}

func TestOptimize_SingleAsset(t *testing.T) {
	o := newTestOptimizer()

	matrix := mustMatrix(t, map[string][]float64{"ONLY": alternating(0.01, 60)}, "ONLY")
	result, err := o.Optimize(matrix, MethodSharpe)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.Weights["ONLY"], 1e-12)
}

func TestOptimize_InvalidMatrix(t *testing.T) {
	o := newTestOptimizer()

	_, err := o.Optimize(domain.ReturnsMatrix{}, MethodSharpe)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func assertWeightsSumToOne(t *testing.T, weights domain.PortfolioWeights) {
	t.Helper()
	var sum float64
	for _, w := range weights {
		require.False(t, math.IsNaN(w))
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0+1e-9)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
