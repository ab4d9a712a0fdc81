// Package options implements closed-form option pricing and implied
// volatility inversion under log-normal (Black-Scholes) dynamics.
package options

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/auravest/risk-engine/internal/domain"
)

const (
	// DefaultTolerance is the absolute price tolerance for implied-vol search.
	DefaultTolerance = 1e-5
	// DefaultMaxIterations bounds the Newton-Raphson search.
	DefaultMaxIterations = 100

	// MinReasonableVol and MaxReasonableVol bound the sanity band for
	// implied vols. Values outside the band are numerically unreliable
	// and are discarded by callers, not corrected.
	MinReasonableVol = 0.1
	MaxReasonableVol = 2.0

	initialVolGuess = 0.5
	volFloor        = 0.01
)

var stdNormal = distuv.UnitNormal

// PricingModel prices European options and inverts implied volatility.
type PricingModel struct {
	log zerolog.Logger
}

// NewPricingModel creates a new pricing model.
func NewPricingModel(log zerolog.Logger) *PricingModel {
	return &PricingModel{
		log: log.With().Str("component", "options_pricing").Logger(),
	}
}

// IVResult is the outcome of an implied-volatility search. When Converged is
// false, Vol holds the last Newton-Raphson iterate; callers filter it against
// the [MinReasonableVol, MaxReasonableVol] band rather than treating
// non-convergence as an error.
type IVResult struct {
	Vol        float64 `json:"implied_vol"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}

// Reasonable reports whether the vol lies inside the sanity band.
func (r IVResult) Reasonable() bool {
	return r.Vol > MinReasonableVol && r.Vol < MaxReasonableVol
}

// Price computes the Black-Scholes value of a European option.
//
//	d1 = (ln(S/K) + (r + σ²/2)T) / (σ√T)
//	d2 = d1 - σ√T
//	call = S·Φ(d1) - K·e^(-rT)·Φ(d2)
//	put  = K·e^(-rT)·Φ(-d2) - S·Φ(-d1)
func (m *PricingModel) Price(spot, strike, timeToExpiry, riskFreeRate, vol float64, optionType domain.OptionType) (float64, error) {
	if err := validatePricingInputs(spot, strike, timeToExpiry, vol); err != nil {
		return 0, err
	}

	d1, d2 := dValues(spot, strike, timeToExpiry, riskFreeRate, vol)
	discount := math.Exp(-riskFreeRate * timeToExpiry)

	if optionType == domain.Put {
		return strike*discount*stdNormal.CDF(-d2) - spot*stdNormal.CDF(-d1), nil
	}
	return spot*stdNormal.CDF(d1) - strike*discount*stdNormal.CDF(d2), nil
}

// Vega returns the sensitivity of the option price to volatility,
// S·√T·φ(d1). It is the Newton-Raphson derivative for implied vol.
func (m *PricingModel) Vega(spot, strike, timeToExpiry, riskFreeRate, vol float64) (float64, error) {
	if err := validatePricingInputs(spot, strike, timeToExpiry, vol); err != nil {
		return 0, err
	}

	d1, _ := dValues(spot, strike, timeToExpiry, riskFreeRate, vol)
	return spot * math.Sqrt(timeToExpiry) * stdNormal.Prob(d1), nil
}

// ImpliedVolatility inverts the pricing formula via Newton-Raphson, starting
// at σ=0.5 and flooring σ at 0.01 whenever a step drives it non-positive.
// The search stops when |observed - model| < tolerance. Exhausting maxIter is
// not an error: the last iterate is returned with Converged=false and the
// caller applies the sanity-band filter.
func (m *PricingModel) ImpliedVolatility(
	spot, strike, timeToExpiry, riskFreeRate, observedPrice float64,
	optionType domain.OptionType,
	tolerance float64,
	maxIter int,
) (IVResult, error) {
	if observedPrice <= 0 {
		return IVResult{}, fmt.Errorf("%w: observed price must be positive, got %.4f", domain.ErrInvalidInput, observedPrice)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	sigma := initialVolGuess

	for i := 0; i < maxIter; i++ {
		price, err := m.Price(spot, strike, timeToExpiry, riskFreeRate, sigma, optionType)
		if err != nil {
			return IVResult{}, err
		}

		diff := observedPrice - price
		if math.Abs(diff) < tolerance {
			return IVResult{Vol: sigma, Converged: true, Iterations: i}, nil
		}

		vega, err := m.Vega(spot, strike, timeToExpiry, riskFreeRate, sigma)
		if err != nil {
			return IVResult{}, err
		}
		if vega == 0 || math.IsNaN(vega) {
			break
		}

		sigma += diff / vega
		if sigma <= 0 {
			sigma = volFloor
		}
	}

	m.log.Debug().
		Float64("spot", spot).
		Float64("strike", strike).
		Float64("last_sigma", sigma).
		Msg("Implied vol search did not converge, returning last iterate")

	return IVResult{Vol: sigma, Converged: false, Iterations: maxIter}, nil
}

func validatePricingInputs(spot, strike, timeToExpiry, vol float64) error {
	switch {
	case spot <= 0:
		return fmt.Errorf("%w: spot must be positive, got %.4f", domain.ErrInvalidInput, spot)
	case strike <= 0:
		return fmt.Errorf("%w: strike must be positive, got %.4f", domain.ErrInvalidInput, strike)
	case timeToExpiry <= 0:
		return fmt.Errorf("%w: time to expiry must be positive, got %.6f", domain.ErrInvalidInput, timeToExpiry)
	case vol <= 0:
		return fmt.Errorf("%w: volatility must be positive, got %.4f", domain.ErrInvalidInput, vol)
	}
	return nil
}

func dValues(spot, strike, timeToExpiry, riskFreeRate, vol float64) (d1, d2 float64) {
	sqrtT := math.Sqrt(timeToExpiry)
	d1 = (math.Log(spot/strike) + (riskFreeRate+0.5*vol*vol)*timeToExpiry) / (vol * sqrtT)
	d2 = d1 - vol*sqrtT
	return d1, d2
}
