// Package forecast implements single-asset forward price-range estimation
// from option-implied volatility, with an historical-volatility fallback.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/internal/modules/options"
	"github.com/auravest/risk-engine/internal/modules/volatility"
)

const (
	// Moneyness band treated as near-the-money when averaging implied vols.
	ntmLow  = 0.80
	ntmHigh = 1.20

	// MethodImplied and MethodHistorical label the volatility source of a
	// range forecast.
	MethodImplied    = "implied"
	MethodHistorical = "historical"
)

// RangeForecast is a forward price interval at a given confidence level.
type RangeForecast struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	ExpectedPrice float64 `json:"expected_price"`
	LowerBound    float64 `json:"lower_bound"`
	UpperBound    float64 `json:"upper_bound"`
	Confidence    float64 `json:"confidence"`
	ImpliedVol    float64 `json:"implied_vol"` // Whichever vol drove the bands
	HorizonDays   int     `json:"horizon_days"`
	Method        string  `json:"method"` // "implied" or "historical"
}

// Forecaster produces forward price ranges under log-normal dynamics.
type Forecaster struct {
	pricing      *options.PricingModel
	analyzer     *volatility.Analyzer
	riskFreeRate float64
	log          zerolog.Logger
}

// NewForecaster creates a price forecaster.
func NewForecaster(pricing *options.PricingModel, analyzer *volatility.Analyzer, riskFreeRate float64, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		pricing:      pricing,
		analyzer:     analyzer,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "forecaster").Logger(),
	}
}

// ForecastRange estimates the expected price and confidence bounds for one
// instrument over horizonDays. When the option chain carries at least one
// usable near-the-money quote on the nearest expiry, the implied vols are
// averaged across calls and puts; otherwise the historical volatility of the
// supplied price series drives the bands and Method is set to "historical".
func (f *Forecaster) ForecastRange(
	symbol string,
	spot float64,
	chains []domain.OptionChain,
	historicalPrices []float64,
	horizonDays int,
	confidence float64,
	now time.Time,
) (RangeForecast, error) {
	if spot <= 0 {
		return RangeForecast{}, fmt.Errorf("%w: spot must be positive, got %.4f", domain.ErrInvalidInput, spot)
	}
	if horizonDays <= 0 {
		return RangeForecast{}, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrInvalidInput, horizonDays)
	}
	if confidence <= 0 || confidence >= 1 {
		return RangeForecast{}, fmt.Errorf("%w: confidence must lie in (0,1), got %.4f", domain.ErrInvalidInput, confidence)
	}

	vol, method := f.impliedVol(symbol, spot, chains, now)
	if method == "" {
		historical, err := f.analyzer.LatestHistoricalVolatility(historicalPrices)
		if err != nil {
			return RangeForecast{}, err
		}
		vol, method = historical, MethodHistorical
	}

	timeToForecast := float64(horizonDays) / 365
	drift := f.riskFreeRate - 0.5*vol*vol
	z := distuv.UnitNormal.Quantile((1 + confidence) / 2)

	forecast := RangeForecast{
		Symbol:        symbol,
		CurrentPrice:  spot,
		ExpectedPrice: spot * math.Exp(drift*timeToForecast),
		LowerBound:    spot * math.Exp((drift-z*vol)*timeToForecast),
		UpperBound:    spot * math.Exp((drift+z*vol)*timeToForecast),
		Confidence:    confidence,
		ImpliedVol:    vol,
		HorizonDays:   horizonDays,
		Method:        method,
	}

	f.log.Debug().
		Str("symbol", symbol).
		Str("method", method).
		Float64("vol", vol).
		Float64("expected", forecast.ExpectedPrice).
		Msg("Forecast price range")

	return forecast, nil
}

// impliedVol averages the near-the-money implied vols on the nearest future
// expiry. Returns an empty method when no usable quote survives filtering.
func (f *Forecaster) impliedVol(symbol string, spot float64, chains []domain.OptionChain, now time.Time) (float64, string) {
	nearest := nearestChain(chains, now)
	if nearest == nil {
		return 0, ""
	}

	timeToExpiry := nearest.Expiry.Sub(now).Hours() / 24 / 365

	var sum float64
	count := 0
	for _, quote := range nearest.Quotes() {
		if !quote.Usable() {
			continue
		}
		moneyness := quote.Strike / spot
		if moneyness < ntmLow || moneyness > ntmHigh {
			continue
		}

		result, err := f.pricing.ImpliedVolatility(
			spot, quote.Strike, timeToExpiry, f.riskFreeRate, quote.Mid(),
			quote.Type, options.DefaultTolerance, options.DefaultMaxIterations,
		)
		if err != nil || !result.Reasonable() {
			continue
		}

		sum += result.Vol
		count++
	}

	if count == 0 {
		return 0, ""
	}
	return sum / float64(count), MethodImplied
}

// nearestChain picks the unexpired chain with the earliest expiry.
func nearestChain(chains []domain.OptionChain, now time.Time) *domain.OptionChain {
	var nearest *domain.OptionChain
	for i := range chains {
		if !chains[i].Expiry.After(now) {
			continue
		}
		if nearest == nil || chains[i].Expiry.Before(nearest.Expiry) {
			nearest = &chains[i]
		}
	}
	return nearest
}
