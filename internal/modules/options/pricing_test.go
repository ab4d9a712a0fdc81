package options

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/logger"
)

func newTestModel() *PricingModel {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	return NewPricingModel(log)
}

func TestPrice_KnownValue(t *testing.T) {
	m := newTestModel()

	// Standard textbook case: S=100, K=100, T=1, r=5%, vol=20%
	call, err := m.Price(100, 100, 1.0, 0.05, 0.20, domain.Call)
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, call, 1e-3)

	put, err := m.Price(100, 100, 1.0, 0.05, 0.20, domain.Put)
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put, 1e-3)
}

func TestPrice_PutCallParity(t *testing.T) {
	m := newTestModel()

	cases := []struct {
		name                 string
		spot, strike, tt, r  float64
		vol                  float64
	}{
		{"at the money", 100, 100, 0.5, 0.05, 0.25},
		{"in the money call", 120, 100, 1.0, 0.03, 0.40},
		{"out of the money call", 80, 100, 0.25, 0.05, 0.15},
		{"short dated", 50, 55, 0.02, 0.01, 0.60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			call, err := m.Price(tc.spot, tc.strike, tc.tt, tc.r, tc.vol, domain.Call)
			require.NoError(t, err)
			put, err := m.Price(tc.spot, tc.strike, tc.tt, tc.r, tc.vol, domain.Put)
			require.NoError(t, err)

			// call - put = S - K·e^(-rT)
			parity := tc.spot - tc.strike*discount(tc.r, tc.tt)
			assert.InDelta(t, parity, call-put, 1e-9)
		})
	}
}

func TestPrice_InvalidInputs(t *testing.T) {
	m := newTestModel()

	cases := []struct {
		name                     string
		spot, strike, tt, r, vol float64
	}{
		{"zero spot", 0, 100, 1, 0.05, 0.2},
		{"negative strike", 100, -100, 1, 0.05, 0.2},
		{"zero time", 100, 100, 0, 0.05, 0.2},
		{"negative vol", 100, 100, 1, 0.05, -0.2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Price(tc.spot, tc.strike, tc.tt, tc.r, tc.vol, domain.Call)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	m := newTestModel()

	vols := []float64{0.05, 0.10, 0.25, 0.50, 0.80, 1.20, 1.50}
	for _, trueVol := range vols {
		for _, typ := range []domain.OptionType{domain.Call, domain.Put} {
			price, err := m.Price(100, 105, 0.5, 0.05, trueVol, typ)
			require.NoError(t, err)
			if price < 1e-4 {
				continue // deep OTM prices below tolerance are unrecoverable
			}

			result, err := m.ImpliedVolatility(100, 105, 0.5, 0.05, price, typ, DefaultTolerance, DefaultMaxIterations)
			require.NoError(t, err)
			assert.True(t, result.Converged, "vol=%.2f type=%s should converge", trueVol, typ)
			assert.InDelta(t, trueVol, result.Vol, 1e-4, "vol=%.2f type=%s", trueVol, typ)
		}
	}
}

func TestImpliedVolatility_NonConvergenceReturnsLastIterate(t *testing.T) {
	m := newTestModel()

	// Price far above any attainable option value cannot converge, but must
	// still return the final iterate rather than fail.
	result, err := m.ImpliedVolatility(100, 100, 0.5, 0.05, 5000, domain.Call, DefaultTolerance, 10)
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.Greater(t, result.Vol, 0.0)
}

func TestImpliedVolatility_InvalidObservedPrice(t *testing.T) {
	m := newTestModel()

	_, err := m.ImpliedVolatility(100, 100, 0.5, 0.05, -1, domain.Call, DefaultTolerance, DefaultMaxIterations)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIVResult_Reasonable(t *testing.T) {
	assert.True(t, IVResult{Vol: 0.5}.Reasonable())
	assert.False(t, IVResult{Vol: 0.05}.Reasonable())
	assert.False(t, IVResult{Vol: 2.5}.Reasonable())
}

func discount(r, tt float64) float64 {
	return math.Exp(-r * tt)
}
