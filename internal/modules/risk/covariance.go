package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// PortfolioCovariance computes the annualized covariance and correlation
// matrices of the asset returns and decomposes portfolio volatility into
// per-asset marginal contributions, component VaR and risk contributions.
// Risk contributions sum to 1 whenever portfolio volatility is positive.
func (m *Model) PortfolioCovariance(matrix domain.ReturnsMatrix, weights domain.PortfolioWeights) (*CovarianceAnalysis, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if matrix.NumPeriods() < domain.MinObservations {
		return nil, fmt.Errorf("%w: covariance requires at least %d observations, got %d",
			domain.ErrInsufficientData, domain.MinObservations, matrix.NumPeriods())
	}
	w := weights.Vector(matrix.Symbols)
	if sum := floats.Sum(w); math.Abs(sum-1) > 1e-6 {
		return nil, fmt.Errorf("%w: weights must sum to 1, got %.6f", domain.ErrInvalidInput, sum)
	}

	n := len(matrix.Symbols)
	data := mat.NewDense(matrix.NumPeriods(), n, nil)
	for j, sym := range matrix.Symbols {
		for i, r := range matrix.Series(sym) {
			data.Set(i, j, r)
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(formulas.TradingDaysPerYear, cov)

	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, data, nil)

	wv := mat.NewVecDense(n, w)
	variance := mat.Inner(wv, cov, wv)
	if variance < 0 {
		variance = 0
	}
	vol := math.Sqrt(variance)

	analysis := &CovarianceAnalysis{
		Symbols:               matrix.Symbols,
		CovarianceMatrix:      symToSlices(cov),
		CorrelationMatrix:     symToSlices(corr),
		PortfolioVariance:     variance,
		PortfolioVolatility:   vol,
		MarginalContributions: make(map[string]float64, n),
		ComponentVaR:          make(map[string]float64, n),
		RiskContributions:     make(map[string]float64, n),
	}

	for i, sym := range matrix.Symbols {
		var marginal, component, contribution float64
		if vol > 0 {
			// (Sigma w)_i / sigma_p
			var sigmaW float64
			for j := 0; j < n; j++ {
				sigmaW += cov.At(i, j) * w[j]
			}
			marginal = sigmaW / vol
			component = w[i] * marginal
			contribution = component / vol
		}
		analysis.MarginalContributions[sym] = marginal
		analysis.ComponentVaR[sym] = component
		analysis.RiskContributions[sym] = contribution
	}

	m.log.Debug().
		Int("assets", n).
		Float64("portfolio_volatility", vol).
		Msg("computed covariance decomposition")

	return analysis, nil
}

func symToSlices(s *mat.SymDense) [][]float64 {
	n := s.SymmetricDim()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = s.At(i, j)
		}
		out[i] = row
	}
	return out
}
