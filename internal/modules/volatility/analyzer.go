// Package volatility implements historical volatility, implied-volatility
// surface construction and multi-method volatility forecasting.
package volatility

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/internal/modules/options"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// SurfacePoint is one implied-vol observation on the surface.
type SurfacePoint struct {
	Strike     float64           `json:"strike"`
	ImpliedVol float64           `json:"implied_vol"`
	Moneyness  float64           `json:"moneyness"` // strike / spot
	Type       domain.OptionType `json:"type"`
}

// Surface maps expiry (YYYY-MM-DD) to the implied vols extracted for it.
// Only vols inside the [0.1, 2.0] sanity band are retained; everything else
// is discarded as numerically unreliable.
type Surface map[string][]SurfacePoint

// Analyzer derives volatility estimates from prices and option chains.
type Analyzer struct {
	pricing      *options.PricingModel
	riskFreeRate float64
	log          zerolog.Logger
}

// NewAnalyzer creates a volatility analyzer.
func NewAnalyzer(pricing *options.PricingModel, riskFreeRate float64, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		pricing:      pricing,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "volatility").Logger(),
	}
}

// HistoricalVolatility computes the rolling annualized volatility of log
// returns over a trailing window. The result has one value per complete
// window, ending at the latest observation.
func (a *Analyzer) HistoricalVolatility(prices []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("%w: window must be at least 2, got %d", domain.ErrInvalidInput, window)
	}

	returns := formulas.CalculateLogReturns(prices)
	if len(returns) < window {
		return nil, fmt.Errorf("%w: need %d returns for a %d-day window, have %d",
			domain.ErrInsufficientData, window, window, len(returns))
	}

	rolling := make([]float64, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		windowReturns := returns[i-window : i]
		rolling = append(rolling, formulas.StdDev(windowReturns)*math.Sqrt(formulas.TradingDaysPerYear))
	}

	return rolling, nil
}

// LatestHistoricalVolatility is the trailing annualized volatility over the
// whole return series.
func (a *Analyzer) LatestHistoricalVolatility(prices []float64) (float64, error) {
	returns := formulas.CalculateLogReturns(prices)
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 returns, have %d", domain.ErrInsufficientData, len(returns))
	}
	return formulas.AnnualizedVolatility(returns), nil
}

// ImpliedVolatilitySurface builds the implied-vol surface for a symbol from
// option-chain snapshots. Expired chains are skipped, only two-sided quotes
// are inverted, and vols outside the sanity band are dropped.
func (a *Analyzer) ImpliedVolatilitySurface(symbol string, spot float64, chains []domain.OptionChain, now time.Time) (Surface, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %.4f", domain.ErrInvalidInput, spot)
	}

	surface := make(Surface)

	for _, chain := range chains {
		timeToExpiry := chain.Expiry.Sub(now).Hours() / 24 / 365
		if timeToExpiry <= 0 {
			continue // expired
		}

		var points []SurfacePoint
		for _, quote := range chain.Quotes() {
			if !quote.Usable() {
				continue
			}

			result, err := a.pricing.ImpliedVolatility(
				spot, quote.Strike, timeToExpiry, a.riskFreeRate, quote.Mid(),
				quote.Type, options.DefaultTolerance, options.DefaultMaxIterations,
			)
			if err != nil {
				a.log.Debug().
					Err(err).
					Str("symbol", symbol).
					Float64("strike", quote.Strike).
					Msg("Skipping quote")
				continue
			}
			if !result.Reasonable() {
				continue
			}

			points = append(points, SurfacePoint{
				Strike:     quote.Strike,
				ImpliedVol: result.Vol,
				Moneyness:  quote.Strike / spot,
				Type:       quote.Type,
			})
		}

		if len(points) > 0 {
			surface[chain.Expiry.Format("2006-01-02")] = points
		}
	}

	a.log.Debug().
		Str("symbol", symbol).
		Int("expiries", len(surface)).
		Msg("Built implied volatility surface")

	return surface, nil
}
