package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/auravest/risk-engine/internal/domain"
)

// DefaultDensityPoints is the grid resolution used when the caller does not
// ask for a specific one.
const DefaultDensityPoints = 1000

// ciLevels are the two-sided confidence intervals reported by every density.
var ciLevels = []float64{0.90, 0.95, 0.99}

// PriceProbabilityDensity models the forward price at horizonDays as
// log-normal with drift r - vol^2/2 and evaluates its density, CDF and
// confidence intervals on a grid spanning +/-3 sigma in log space. The
// grid captures over 99% of the probability mass.
func (m *Model) PriceProbabilityDensity(spot, vol float64, horizonDays, numPoints int) (*DensityResult, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("%w: spot price must be positive, got %f", domain.ErrInvalidInput, spot)
	}
	if vol <= 0 {
		return nil, fmt.Errorf("%w: volatility must be positive, got %f", domain.ErrInvalidInput, vol)
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrInvalidInput, horizonDays)
	}
	if numPoints <= 1 {
		numPoints = DefaultDensityPoints
	}

	tt := float64(horizonDays) / 365.0
	drift := m.riskFreeRate - 0.5*vol*vol
	mu := math.Log(spot) + drift*tt
	sigmaT := vol * math.Sqrt(tt)

	dist := distuv.LogNormal{Mu: mu, Sigma: sigmaT}

	low := spot * math.Exp(-3*sigmaT)
	high := spot * math.Exp(3*sigmaT)
	step := (high - low) / float64(numPoints-1)

	grid := make([]float64, numPoints)
	pdf := make([]float64, numPoints)
	cdf := make([]float64, numPoints)
	for i := 0; i < numPoints; i++ {
		p := low + float64(i)*step
		grid[i] = p
		pdf[i] = dist.Prob(p)
		cdf[i] = dist.CDF(p)
	}

	intervals := make(map[string]Interval, len(ciLevels))
	for _, level := range ciLevels {
		alpha := 1 - level
		key := fmt.Sprintf("%d%%", int(level*100))
		intervals[key] = Interval{
			Lower: dist.Quantile(alpha / 2),
			Upper: dist.Quantile(1 - alpha/2),
		}
	}

	return &DensityResult{
		PriceGrid:           grid,
		PDF:                 pdf,
		CDF:                 cdf,
		ConfidenceIntervals: intervals,
		Mu:                  mu,
		Sigma:               sigmaT,
		ExpectedPrice:       math.Exp(mu + 0.5*sigmaT*sigmaT),
		Variance:            (math.Exp(sigmaT*sigmaT) - 1) * math.Exp(2*mu+sigmaT*sigmaT),
		ProbAboveCurrent:    1 - dist.CDF(spot),
		ProbBelowCurrent:    dist.CDF(spot),
	}, nil
}
