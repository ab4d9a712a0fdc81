package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
)

func simulationMatrix(t *testing.T, n int) domain.ReturnsMatrix {
	t.Helper()
	return mustMatrix(t, map[string][]float64{
		"AAPL": alternating(0.005, n),
		"MSFT": blockAlternating(0.005, n),
	}, "AAPL", "MSFT")
}

func seedPtr(s uint64) *uint64 { return &s }

func TestMonteCarloSimulation_SeedReproducibility(t *testing.T) {
	m := newTestModel()
	matrix := simulationMatrix(t, 120)
	weights := domain.EqualWeights(matrix.Symbols)

	first, err := m.MonteCarloSimulation(matrix, weights, 500, 10, 100000, seedPtr(42))
	require.NoError(t, err)
	second, err := m.MonteCarloSimulation(matrix, weights, 500, 10, 100000, seedPtr(42))
	require.NoError(t, err)

	assert.Equal(t, first.MeanFinalValue, second.MeanFinalValue)
	assert.Equal(t, first.Percentiles, second.Percentiles)
	assert.Equal(t, first.VaR, second.VaR)
}

func TestMonteCarloSimulation_Convergence(t *testing.T) {
	m := newTestModel()
	matrix := simulationMatrix(t, 120)
	weights := domain.EqualWeights(matrix.Symbols)

	small, err := m.MonteCarloSimulation(matrix, weights, 1000, 10, 100000, seedPtr(1))
	require.NoError(t, err)
	large, err := m.MonteCarloSimulation(matrix, weights, 10000, 10, 100000, seedPtr(2))
	require.NoError(t, err)

	smallReturn := small.MeanFinalValue/small.InitialValue - 1
	largeReturn := large.MeanFinalValue/large.InitialValue - 1
	assert.Less(t, math.Abs(smallReturn-largeReturn), 0.05)
}

func TestMonteCarloSimulation_DistributionShape(t *testing.T) {
	m := newTestModel()
	matrix := simulationMatrix(t, 120)
	weights := domain.EqualWeights(matrix.Symbols)

	result, err := m.MonteCarloSimulation(matrix, weights, 2000, 21, 100000, seedPtr(7))
	require.NoError(t, err)

	assert.Len(t, result.FinalValues, 2000)
	assert.Equal(t, 2000, result.NumSimulations)
	assert.Equal(t, 21, result.HorizonDays)

	// Percentiles are ordered.
	assert.LessOrEqual(t, result.Percentiles["p5"], result.Percentiles["p25"])
	assert.LessOrEqual(t, result.Percentiles["p25"], result.Percentiles["p50"])
	assert.LessOrEqual(t, result.Percentiles["p50"], result.Percentiles["p75"])
	assert.LessOrEqual(t, result.Percentiles["p75"], result.Percentiles["p95"])

	// Higher confidence cuts deeper into the left tail.
	assert.LessOrEqual(t, result.VaR["var_99"], result.VaR["var_95"])
	assert.LessOrEqual(t, result.VaR["var_95"], result.VaR["var_90"])
	for _, conf := range []string{"90", "95", "99"} {
		assert.LessOrEqual(t, result.CVaR["cvar_"+conf], result.VaR["var_"+conf])
	}

	assert.GreaterOrEqual(t, result.ProbabilityOfLoss, 0.0)
	assert.LessOrEqual(t, result.ProbabilityOfLoss, 1.0)
	assert.LessOrEqual(t, result.MaxDrawdown, 0.0)
	if result.ProbabilityOfLoss > 0 {
		assert.Less(t, result.ExpectedShortfall, result.InitialValue)
	}
}

func TestMonteCarloSimulation_InvalidInputs(t *testing.T) {
	m := newTestModel()
	matrix := simulationMatrix(t, 120)
	weights := domain.EqualWeights(matrix.Symbols)

	tests := []struct {
		name         string
		sims, days   int
		initialValue float64
	}{
		{"zero simulations", 0, 10, 100000},
		{"zero horizon", 1000, 0, 100000},
		{"zero initial value", 1000, 10, 0},
		{"negative initial value", 1000, 10, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MonteCarloSimulation(matrix, weights, tt.sims, tt.days, tt.initialValue, seedPtr(1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestMonteCarloSimulation_InsufficientData(t *testing.T) {
	m := newTestModel()
	matrix := simulationMatrix(t, 12)

	_, err := m.MonteCarloSimulation(matrix, domain.EqualWeights(matrix.Symbols), 1000, 10, 100000, seedPtr(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
