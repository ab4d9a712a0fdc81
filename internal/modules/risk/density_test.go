package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
)

func TestPriceProbabilityDensity_MassIntegratesToOne(t *testing.T) {
	m := newTestModel()

	result, err := m.PriceProbabilityDensity(150, 0.30, 30, 1000)
	require.NoError(t, err)
	require.Len(t, result.PriceGrid, 1000)

	// Trapezoidal integration over the +/-3 sigma grid captures at least
	// 99% of the mass.
	var mass float64
	for i := 1; i < len(result.PriceGrid); i++ {
		width := result.PriceGrid[i] - result.PriceGrid[i-1]
		mass += width * (result.PDF[i] + result.PDF[i-1]) / 2
	}
	assert.InDelta(t, 1.0, mass, 0.02)
	assert.Greater(t, mass, 0.99)
}

func TestPriceProbabilityDensity_ExpectedPriceGrowsAtRiskFreeRate(t *testing.T) {
	m := newTestModel()

	spot := 100.0
	horizonDays := 90
	result, err := m.PriceProbabilityDensity(spot, 0.25, horizonDays, 0)
	require.NoError(t, err)

	// ln S_T is normal with drift r - vol^2/2, so E[S_T] = S e^{rT}.
	tt := float64(horizonDays) / 365.0
	assert.InEpsilon(t, spot*math.Exp(0.05*tt), result.ExpectedPrice, 1e-9)
	assert.Len(t, result.PriceGrid, DefaultDensityPoints)
}

func TestPriceProbabilityDensity_CDFAndProbabilities(t *testing.T) {
	m := newTestModel()

	spot := 200.0
	result, err := m.PriceProbabilityDensity(spot, 0.40, 30, 500)
	require.NoError(t, err)

	for i := 1; i < len(result.CDF); i++ {
		assert.GreaterOrEqual(t, result.CDF[i], result.CDF[i-1])
	}
	assert.InDelta(t, 1.0, result.ProbAboveCurrent+result.ProbBelowCurrent, 1e-12)
}

func TestPriceProbabilityDensity_ConfidenceIntervalsNest(t *testing.T) {
	m := newTestModel()

	result, err := m.PriceProbabilityDensity(100, 0.20, 60, 0)
	require.NoError(t, err)

	ci90 := result.ConfidenceIntervals["90%"]
	ci95 := result.ConfidenceIntervals["95%"]
	ci99 := result.ConfidenceIntervals["99%"]

	assert.Less(t, ci99.Lower, ci95.Lower)
	assert.Less(t, ci95.Lower, ci90.Lower)
	assert.Greater(t, ci99.Upper, ci95.Upper)
	assert.Greater(t, ci95.Upper, ci90.Upper)
	assert.Less(t, ci90.Lower, ci90.Upper)
}

func TestPriceProbabilityDensity_InvalidInputs(t *testing.T) {
	m := newTestModel()

	tests := []struct {
		name    string
		spot    float64
		vol     float64
		horizon int
	}{
		{"zero spot", 0, 0.2, 30},
		{"negative spot", -10, 0.2, 30},
		{"zero volatility", 100, 0, 30},
		{"negative horizon", 100, 0.2, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.PriceProbabilityDensity(tt.spot, tt.vol, tt.horizon, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}
