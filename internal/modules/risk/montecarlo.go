package risk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// varConfidences are the VaR/CVaR levels reported by every simulation.
var varConfidences = []float64{0.90, 0.95, 0.99}

// MonteCarloSimulation runs correlated log-return paths for the weighted
// portfolio and summarizes the terminal-value distribution. Returns are
// drawn from a multivariate normal fitted to the (annualized) sample
// moments and compounded over horizonDays.
//
// seed is optional; pass nil for a randomized run. Fixed seeds are meant
// for reproducibility in tests.
func (m *Model) MonteCarloSimulation(
	matrix domain.ReturnsMatrix,
	weights domain.PortfolioWeights,
	numSimulations, horizonDays int,
	initialValue float64,
	seed *uint64,
) (*SimulationResult, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if matrix.NumPeriods() < domain.MinObservations {
		return nil, fmt.Errorf("%w: simulation requires at least %d observations, got %d",
			domain.ErrInsufficientData, domain.MinObservations, matrix.NumPeriods())
	}
	if numSimulations <= 0 || horizonDays <= 0 {
		return nil, fmt.Errorf("%w: simulations and horizon must be positive", domain.ErrInvalidInput)
	}
	if initialValue <= 0 {
		return nil, fmt.Errorf("%w: initial value must be positive", domain.ErrInvalidInput)
	}

	n := len(matrix.Symbols)
	w := weights.Vector(matrix.Symbols)

	// Annualized moments drive each step, matching the documented model.
	mu := make([]float64, n)
	data := mat.NewDense(matrix.NumPeriods(), n, nil)
	for j, sym := range matrix.Symbols {
		series := matrix.Series(sym)
		mu[j] = stat.Mean(series, nil) * formulas.TradingDaysPerYear
		for i, r := range series {
			data.Set(i, j, r)
		}
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(formulas.TradingDaysPerYear, cov)

	var src rand.Source
	if seed != nil {
		src = rand.NewPCG(*seed, *seed)
	}
	dist, ok := distmv.NewNormal(mu, cov, src)
	if !ok {
		// Degenerate covariance (e.g. perfectly correlated assets); fall
		// back to independent draws scaled by the diagonal.
		diag := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			diag.SetSym(i, i, math.Max(cov.At(i, i), 1e-12))
		}
		dist, ok = distmv.NewNormal(mu, diag, src)
		if !ok {
			return nil, fmt.Errorf("%w: could not build return distribution", domain.ErrInvalidInput)
		}
		m.log.Warn().Msg("covariance matrix not positive definite, using diagonal approximation")
	}

	finals := make([]float64, numSimulations)
	draw := make([]float64, n)
	worstDrawdown := 0.0
	for s := 0; s < numSimulations; s++ {
		cum := 0.0
		peak := 0.0
		for d := 0; d < horizonDays; d++ {
			dist.Rand(draw)
			var portfolioReturn float64
			for j := 0; j < n; j++ {
				portfolioReturn += w[j] * draw[j]
			}
			cum += portfolioReturn
			if cum > peak {
				peak = cum
			}
			// Drawdown in value space from the running peak.
			if dd := math.Exp(cum-peak) - 1; dd < worstDrawdown {
				worstDrawdown = dd
			}
		}
		finals[s] = initialValue * math.Exp(cum)
	}

	sorted := make([]float64, len(finals))
	copy(sorted, finals)
	sort.Float64s(sorted)

	result := &SimulationResult{
		NumSimulations: numSimulations,
		HorizonDays:    horizonDays,
		InitialValue:   initialValue,
		MeanFinalValue: stat.Mean(finals, nil),
		StdFinalValue:  stat.StdDev(finals, nil),
		Percentiles:    make(map[string]float64, 5),
		VaR:            make(map[string]float64, len(varConfidences)),
		CVaR:           make(map[string]float64, len(varConfidences)),
		MaxDrawdown:    worstDrawdown,
		FinalValues:    finals,
	}

	for _, p := range []float64{5, 25, 50, 75, 95} {
		result.Percentiles[fmt.Sprintf("p%d", int(p))] = stat.Quantile(p/100, stat.Empirical, sorted, nil)
	}

	for _, conf := range varConfidences {
		key := fmt.Sprintf("var_%d", int(conf*100))
		varValue := stat.Quantile(1-conf, stat.Empirical, sorted, nil)
		result.VaR[key] = varValue

		var tailSum float64
		var tailCount int
		for _, v := range sorted {
			if v > varValue {
				break
			}
			tailSum += v
			tailCount++
		}
		cvarKey := fmt.Sprintf("cvar_%d", int(conf*100))
		if tailCount > 0 {
			result.CVaR[cvarKey] = tailSum / float64(tailCount)
		} else {
			result.CVaR[cvarKey] = varValue
		}
	}

	var lossSum float64
	var lossCount int
	for _, v := range finals {
		if v < initialValue {
			lossSum += v
			lossCount++
		}
	}
	result.ProbabilityOfLoss = float64(lossCount) / float64(numSimulations)
	if lossCount > 0 {
		result.ExpectedShortfall = lossSum / float64(lossCount)
	}

	result.Skewness = sanitize(formulas.Skewness(finals))
	result.Kurtosis = sanitize(formulas.Kurtosis(finals))

	m.log.Debug().
		Int("simulations", numSimulations).
		Int("horizon_days", horizonDays).
		Float64("mean_final_value", result.MeanFinalValue).
		Float64("probability_of_loss", result.ProbabilityOfLoss).
		Msg("monte carlo simulation complete")

	return result, nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
