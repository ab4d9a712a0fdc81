package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Method selects the volatility forecasting estimator.
type Method string

const (
	MethodHistorical Method = "historical"
	MethodEWMA       Method = "ewma"
	MethodGARCH      Method = "garch"

	// ewmaLambda is the RiskMetrics decay factor.
	ewmaLambda = 0.94
)

// Forecast is a per-day annualized volatility forecast. Fallback is set when
// the requested method could not be estimated and the historical method was
// substituted; this is the documented degradation, not an error.
type Forecast struct {
	Method   Method    `json:"method"`
	Fallback bool      `json:"fallback"`
	Vols     []float64 `json:"vols"` // One annualized vol per horizon day
}

// ForecastVolatility produces horizonDays of annualized volatility forecasts
// from a periodic return series. Unknown methods behave as historical.
func (a *Analyzer) ForecastVolatility(returns []float64, method Method, horizonDays int) (Forecast, error) {
	if horizonDays <= 0 {
		return Forecast{}, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrInvalidInput, horizonDays)
	}
	if len(returns) < 2 {
		return Forecast{}, fmt.Errorf("%w: need at least 2 returns, have %d", domain.ErrInsufficientData, len(returns))
	}

	switch method {
	case MethodEWMA:
		return Forecast{Method: MethodEWMA, Vols: a.ewmaForecast(returns, horizonDays)}, nil
	case MethodGARCH:
		vols, ok := a.garchForecast(returns, horizonDays)
		if !ok {
			a.log.Debug().Int("observations", len(returns)).Msg("GARCH fit failed, falling back to historical")
			return Forecast{Method: MethodHistorical, Fallback: true, Vols: a.historicalForecast(returns, horizonDays)}, nil
		}
		return Forecast{Method: MethodGARCH, Vols: vols}, nil
	default:
		return Forecast{Method: MethodHistorical, Vols: a.historicalForecast(returns, horizonDays)}, nil
	}
}

// historicalForecast repeats the trailing annualized volatility.
func (a *Analyzer) historicalForecast(returns []float64, horizonDays int) []float64 {
	vol := formulas.AnnualizedVolatility(returns)
	vols := make([]float64, horizonDays)
	for i := range vols {
		vols[i] = vol
	}
	return vols
}

// ewmaForecast computes the exponentially weighted variance with λ=0.94 and
// mean-reverts it geometrically as λ^i across the horizon.
func (a *Analyzer) ewmaForecast(returns []float64, horizonDays int) []float64 {
	variance := formulas.Variance(returns)
	for _, r := range returns {
		variance = ewmaLambda*variance + (1-ewmaLambda)*r*r
	}

	vols := make([]float64, horizonDays)
	for i := range vols {
		dayVariance := variance * math.Pow(ewmaLambda, float64(i))
		vols[i] = math.Sqrt(dayVariance * formulas.TradingDaysPerYear)
	}
	return vols
}

// garchParams are GARCH(1,1) coefficients: v_t = omega + alpha·r²_{t-1} + beta·v_{t-1}.
type garchParams struct {
	omega, alpha, beta float64
}

func (p garchParams) stationary() bool {
	return p.omega > 0 && p.alpha >= 0 && p.beta >= 0 && p.alpha+p.beta < 1 &&
		!math.IsNaN(p.omega) && !math.IsInf(p.omega, 0)
}

// garchForecast fits GARCH(1,1) by Gaussian quasi-maximum-likelihood
// (Nelder-Mead over an unconstrained reparametrization) and iterates the
// variance recursion forward. Returns ok=false on any estimation failure so
// the caller can degrade to the historical method.
func (a *Analyzer) garchForecast(returns []float64, horizonDays int) ([]float64, bool) {
	if len(returns) < domain.MinObservations {
		return nil, false
	}

	sampleVar := formulas.Variance(returns)
	if sampleVar <= 0 || math.IsNaN(sampleVar) {
		return nil, false
	}

	negLogLikelihood := func(x []float64) float64 {
		params := decodeGarch(x, sampleVar)
		if !params.stationary() {
			return math.Inf(1)
		}

		nll := 0.0
		variance := sampleVar
		for _, r := range returns {
			if variance <= 0 {
				return math.Inf(1)
			}
			nll += 0.5 * (math.Log(variance) + r*r/variance)
			variance = params.omega + params.alpha*r*r + params.beta*variance
		}
		return nll
	}

	problem := optimize.Problem{Func: negLogLikelihood}
	// Start near the conventional (alpha=0.05, beta=0.90) point.
	initial := []float64{0.0, 0.0, math.Log(0.90 / 0.05)}

	result, err := optimize.Minimize(problem, initial, nil, &optimize.NelderMead{})
	if err != nil || result == nil || math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, false
	}

	params := decodeGarch(result.X, sampleVar)
	if !params.stationary() {
		return nil, false
	}

	// Current conditional variance after filtering the sample.
	variance := sampleVar
	for _, r := range returns {
		variance = params.omega + params.alpha*r*r + params.beta*variance
	}

	vols := make([]float64, horizonDays)
	for i := range vols {
		if variance <= 0 || math.IsNaN(variance) {
			return nil, false
		}
		vols[i] = math.Sqrt(variance * formulas.TradingDaysPerYear)
		// Multi-step recursion converges to the long-run variance.
		variance = params.omega + (params.alpha+params.beta)*variance
	}

	return vols, true
}

// decodeGarch maps unconstrained optimizer coordinates to valid coefficients:
// omega is scaled off the sample variance through exp, while alpha and beta
// share a softmax that keeps alpha+beta < 1.
func decodeGarch(x []float64, sampleVar float64) garchParams {
	denom := 1 + math.Exp(x[1]) + math.Exp(x[2])
	alpha := math.Exp(x[1]) / denom
	beta := math.Exp(x[2]) / denom
	omega := sampleVar * (1 - alpha - beta) * math.Exp(x[0])
	return garchParams{omega: omega, alpha: alpha, beta: beta}
}
