package risk

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

func newTestModel() *Model {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	return NewModel(0.05, log)
}

// alternating flips sign every observation, giving zero mean and a known
// standard deviation.
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

// blockAlternating flips sign every two observations. Its correlation with
// alternating of the same length is zero.
func blockAlternating(r float64, n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		if i%4 < 2 {
			series[i] = r
		} else {
			series[i] = -r
		}
	}
	return series
}

// wave produces a deterministic distinct-valued series for rank tests.
func wave(n int, phase float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = 0.01*math.Sin(float64(i)*0.7+phase) + 0.001*float64(i%7)
	}
	return series
}

func mustMatrix(t *testing.T, returns map[string][]float64, symbols ...string) domain.ReturnsMatrix {
	t.Helper()
	matrix, err := domain.NewReturnsMatrix(symbols, returns)
	require.NoError(t, err)
	return matrix
}

func TestPortfolioCovariance_SingleAssetMatchesStandaloneVol(t *testing.T) {
	m := newTestModel()

	series := alternating(0.01, 100)
	matrix := mustMatrix(t, map[string][]float64{"AAPL": series}, "AAPL")

	analysis, err := m.PortfolioCovariance(matrix, domain.PortfolioWeights{"AAPL": 1.0})
	require.NoError(t, err)

	standalone := formulas.AnnualizedVolatility(series)
	assert.InEpsilon(t, standalone, analysis.PortfolioVolatility, 0.01)
	assert.InDelta(t, 1.0, analysis.RiskContributions["AAPL"], 1e-6)
}

func TestPortfolioCovariance_DiversificationReducesRisk(t *testing.T) {
	m := newTestModel()

	a := alternating(0.01, 120)
	b := blockAlternating(0.01, 120)
	matrix := mustMatrix(t, map[string][]float64{"AAPL": a, "MSFT": b}, "AAPL", "MSFT")

	analysis, err := m.PortfolioCovariance(matrix, domain.EqualWeights(matrix.Symbols))
	require.NoError(t, err)

	weightedAvg := 0.5*formulas.AnnualizedVolatility(a) + 0.5*formulas.AnnualizedVolatility(b)
	assert.Less(t, analysis.PortfolioVolatility, weightedAvg)
	assert.Less(t, analysis.CorrelationMatrix[0][1], 1.0)
}

func TestPortfolioCovariance_RiskContributionsSumToOne(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": wave(90, 0),
		"MSFT": wave(90, 1.3),
		"GOOG": wave(90, 2.9),
	}, "AAPL", "MSFT", "GOOG")
	weights := domain.PortfolioWeights{"AAPL": 0.5, "MSFT": 0.3, "GOOG": 0.2}

	analysis, err := m.PortfolioCovariance(matrix, weights)
	require.NoError(t, err)

	var sum float64
	for _, contribution := range analysis.RiskContributions {
		sum += contribution
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Positive(t, analysis.PortfolioVolatility)
}

func TestPortfolioCovariance_MatrixShapes(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": wave(60, 0),
		"MSFT": wave(60, 2.1),
	}, "AAPL", "MSFT")

	analysis, err := m.PortfolioCovariance(matrix, domain.EqualWeights(matrix.Symbols))
	require.NoError(t, err)

	require.Len(t, analysis.CovarianceMatrix, 2)
	require.Len(t, analysis.CorrelationMatrix, 2)
	assert.InDelta(t, 1.0, analysis.CorrelationMatrix[0][0], 1e-12)
	assert.InDelta(t, analysis.CovarianceMatrix[0][1], analysis.CovarianceMatrix[1][0], 1e-12)

	// Diagonal of the annualized covariance matches standalone variances.
	standalone := formulas.AnnualizedVolatility(matrix.Series("AAPL"))
	assert.InEpsilon(t, standalone*standalone, analysis.CovarianceMatrix[0][0], 1e-9)
}

func TestPortfolioCovariance_InsufficientData(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{"AAPL": alternating(0.01, 10)}, "AAPL")

	_, err := m.PortfolioCovariance(matrix, domain.PortfolioWeights{"AAPL": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestPortfolioCovariance_WeightsMustSumToOne(t *testing.T) {
	m := newTestModel()

	matrix := mustMatrix(t, map[string][]float64{"AAPL": alternating(0.01, 60)}, "AAPL")

	_, err := m.PortfolioCovariance(matrix, domain.PortfolioWeights{"AAPL": 0.4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
