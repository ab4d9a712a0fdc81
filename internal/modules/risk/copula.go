package risk

import (
	"fmt"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// DefaultTailThreshold is the quantile level used for tail co-movement when
// the caller does not supply one.
const DefaultTailThreshold = 0.1

// TailDependence computes pairwise rank correlations (Spearman's rho and
// Kendall's tau) plus empirical lower and upper tail dependence: the
// frequency of joint quantile exceedances divided by the quantile level.
// Pass a zero or negative threshold to use DefaultTailThreshold.
func (m *Model) TailDependence(matrix domain.ReturnsMatrix, threshold float64) (*DependenceAnalysis, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if matrix.NumPeriods() < domain.MinObservations {
		return nil, fmt.Errorf("%w: tail dependence requires at least %d observations, got %d",
			domain.ErrInsufficientData, domain.MinObservations, matrix.NumPeriods())
	}
	if threshold <= 0 {
		threshold = DefaultTailThreshold
	}
	if threshold >= 0.5 {
		return nil, fmt.Errorf("%w: quantile threshold must be below 0.5, got %f", domain.ErrInvalidInput, threshold)
	}

	n := len(matrix.Symbols)
	spearman := make([][]float64, n)
	kendall := make([][]float64, n)
	for i := range spearman {
		spearman[i] = make([]float64, n)
		kendall[i] = make([]float64, n)
		spearman[i][i] = 1
		kendall[i][i] = 1
	}

	var pairs []TailPair
	for i := 0; i < n; i++ {
		x := matrix.Series(matrix.Symbols[i])
		lowX := formulas.Percentile(x, threshold*100)
		highX := formulas.Percentile(x, (1-threshold)*100)
		for j := i + 1; j < n; j++ {
			y := matrix.Series(matrix.Symbols[j])

			rho := formulas.SpearmanCorrelation(x, y)
			tau := formulas.KendallTau(x, y)
			spearman[i][j], spearman[j][i] = rho, rho
			kendall[i][j], kendall[j][i] = tau, tau

			lowY := formulas.Percentile(y, threshold*100)
			highY := formulas.Percentile(y, (1-threshold)*100)

			var jointLow, jointHigh int
			for k := range x {
				if x[k] < lowX && y[k] < lowY {
					jointLow++
				}
				if x[k] > highX && y[k] > highY {
					jointHigh++
				}
			}
			periods := float64(len(x))
			pairs = append(pairs, TailPair{
				Symbol1:   matrix.Symbols[i],
				Symbol2:   matrix.Symbols[j],
				LowerTail: float64(jointLow) / periods / threshold,
				UpperTail: float64(jointHigh) / periods / threshold,
			})
		}
	}

	return &DependenceAnalysis{
		Symbols:    matrix.Symbols,
		Spearman:   spearman,
		KendallTau: kendall,
		Threshold:  threshold,
		Pairs:      pairs,
	}, nil
}
