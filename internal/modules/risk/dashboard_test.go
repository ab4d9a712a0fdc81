package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
)

func TestBuildDashboard_MultiAsset(t *testing.T) {
	m := newTestModel()

	holdings := []domain.Holding{
		{Symbol: "AAPL", CurrentPrice: 150, CurrentValue: 60000},
		{Symbol: "MSFT", CurrentPrice: 300, CurrentValue: 40000},
	}
	matrix := mustMatrix(t, map[string][]float64{
		"AAPL": alternating(0.01, 120),
		"MSFT": blockAlternating(0.008, 120),
	}, "AAPL", "MSFT")

	dashboard, err := m.BuildDashboard(holdings, matrix, 1000, 21, seedPtr(3))
	require.NoError(t, err)

	assert.Equal(t, 100000.0, dashboard.Summary.TotalValue)
	assert.Equal(t, 2, dashboard.Summary.NumHoldings)
	assert.Equal(t, "AAPL", dashboard.Summary.LargestPosition)
	assert.InDelta(t, 0.6, dashboard.Summary.LargestWeight, 1e-12)

	require.Len(t, dashboard.AssetRisks, 2)
	for _, asset := range dashboard.AssetRisks {
		assert.Positive(t, asset.Volatility)
		assert.Greater(t, asset.ProbabilityOfLoss, 0.0)
		assert.Less(t, asset.ProbabilityOfLoss, 1.0)
	}

	require.NotNil(t, dashboard.MonteCarlo)
	require.NotNil(t, dashboard.Covariance)
	require.Len(t, dashboard.StressTest, len(DefaultScenarios()))

	assert.InDelta(t, 0.6, dashboard.Metrics.ConcentrationRisk, 1e-12)
	assert.Positive(t, dashboard.Metrics.WeightedVolatility)
	assert.GreaterOrEqual(t, dashboard.Metrics.DiversificationBenefit, 0.0)
	assert.Less(t, dashboard.Metrics.DiversificationBenefit, 1.0)
}

func TestBuildDashboard_SingleHoldingSkipsPortfolioAnalyses(t *testing.T) {
	m := newTestModel()

	holdings := []domain.Holding{{Symbol: "AAPL", CurrentPrice: 150, CurrentValue: 50000}}
	matrix := mustMatrix(t, map[string][]float64{"AAPL": alternating(0.01, 120)}, "AAPL")

	dashboard, err := m.BuildDashboard(holdings, matrix, 1000, 21, seedPtr(3))
	require.NoError(t, err)

	assert.Nil(t, dashboard.MonteCarlo)
	assert.Nil(t, dashboard.Covariance)
	assert.NotEmpty(t, dashboard.StressTest)
	assert.Equal(t, 1.0, dashboard.Metrics.ConcentrationRisk)
}

func TestBuildDashboard_InvalidPortfolio(t *testing.T) {
	m := newTestModel()
	matrix := mustMatrix(t, map[string][]float64{"AAPL": alternating(0.01, 120)}, "AAPL")

	_, err := m.BuildDashboard(nil, matrix, 1000, 21, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = m.BuildDashboard([]domain.Holding{{Symbol: "AAPL", CurrentValue: 0}}, matrix, 1000, 21, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
