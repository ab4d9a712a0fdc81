package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Optimize solves for portfolio weights under the standard constraints:
// each weight in [0,1] and all weights summing to 1, starting from the
// equal-weight allocation. The constraints are enforced structurally by a
// squared-normalized reparametrization (w_i = x_i² / Σx_j²), leaving an
// unconstrained problem for Nelder-Mead. When the solver fails to converge
// the equal-weight allocation is returned with FallbackUsed set.
func (o *Optimizer) Optimize(matrix domain.ReturnsMatrix, method Method) (Result, error) {
	if err := matrix.Validate(); err != nil {
		return Result{}, err
	}

	symbols := matrix.Symbols
	equal := domain.EqualWeights(symbols)

	if len(symbols) == 1 {
		metrics, err := o.CalculateMetrics(matrix, equal)
		if err != nil {
			return Result{}, err
		}
		return Result{Method: method, Weights: equal, Metrics: metrics}, nil
	}

	mu, sigma := annualizedMoments(matrix)
	objective := o.objectiveFor(method, mu, sigma)

	solved, ok := solveWeights(len(symbols), objective)
	fallback := !ok

	weights := equal
	if ok {
		weights = make(domain.PortfolioWeights, len(symbols))
		for i, symbol := range symbols {
			weights[symbol] = solved[i]
		}
	} else {
		o.log.Warn().
			Str("method", string(method)).
			Int("assets", len(symbols)).
			Msg("Optimizer did not converge, using equal weights")
	}

	metrics, err := o.CalculateMetrics(matrix, weights)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Method:       method,
		Weights:      weights,
		Metrics:      metrics,
		FallbackUsed: fallback,
	}, nil
}

// objectiveFor maps the optimization method onto a function of the weight
// vector to minimize.
func (o *Optimizer) objectiveFor(method Method, mu []float64, sigma *mat.SymDense) func(w []float64) float64 {
	portfolioReturn := func(w []float64) float64 {
		var sum float64
		for i, wi := range w {
			sum += wi * mu[i]
		}
		return sum
	}
	portfolioVol := func(w []float64) float64 {
		vec := mat.NewVecDense(len(w), w)
		return math.Sqrt(mat.Inner(vec, sigma, vec))
	}

	switch method {
	case MethodMinVariance:
		return portfolioVol
	case MethodMaxReturn:
		return func(w []float64) float64 { return -portfolioReturn(w) }
	default: // sharpe
		return func(w []float64) float64 {
			vol := portfolioVol(w)
			if vol <= 0 || math.IsNaN(vol) {
				return math.Inf(1)
			}
			return -(portfolioReturn(w) - o.riskFreeRate) / vol
		}
	}
}

// solveWeights minimizes the objective over the simplex via the squared
// parametrization. Returns ok=false on solver failure so the caller can
// degrade to equal weights.
func solveWeights(n int, objective func(w []float64) float64) ([]float64, bool) {
	toWeights := func(x []float64) []float64 {
		w := make([]float64, n)
		var total float64
		for i, xi := range x {
			w[i] = xi * xi
			total += w[i]
		}
		if total == 0 {
			return nil
		}
		for i := range w {
			w[i] /= total
		}
		return w
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := toWeights(x)
			if w == nil {
				return math.Inf(1)
			}
			return objective(w)
		},
	}

	// x_i = 1 for all i corresponds to equal weights.
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1
	}

	result, err := optimize.Minimize(problem, initial, nil, &optimize.NelderMead{})
	if err != nil || result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, false
	}

	weights := toWeights(result.X)
	if weights == nil {
		return nil, false
	}
	for _, w := range weights {
		if math.IsNaN(w) {
			return nil, false
		}
	}

	return weights, true
}

// annualizedMoments computes the annualized mean-return vector and sample
// covariance matrix in the matrix's symbol order.
func annualizedMoments(matrix domain.ReturnsMatrix) ([]float64, *mat.SymDense) {
	n := matrix.NumPeriods()
	d := len(matrix.Symbols)

	mu := make([]float64, d)
	data := mat.NewDense(n, d, nil)
	for j, symbol := range matrix.Symbols {
		series := matrix.Series(symbol)
		mu[j] = formulas.Mean(series) * formulas.TradingDaysPerYear
		for i, r := range series {
			data.Set(i, j, r)
		}
	}

	sigma := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(sigma, data, nil)
	sigma.ScaleSym(formulas.TradingDaysPerYear, sigma)

	return mu, sigma
}
