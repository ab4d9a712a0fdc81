package risk

import (
	"fmt"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// dashboardDensityHorizon is the forward horizon, in days, used for the
// per-asset density estimates on the dashboard.
const dashboardDensityHorizon = 30

// AssetRisk is the standalone risk profile of one holding.
type AssetRisk struct {
	Symbol            string  `json:"symbol"`
	Weight            float64 `json:"weight"`
	CurrentValue      float64 `json:"current_value"`
	Volatility        float64 `json:"volatility"`
	VaR95             float64 `json:"var_95"`
	ExpectedReturn    float64 `json:"expected_return"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
}

// DashboardSummary describes portfolio composition at a glance.
type DashboardSummary struct {
	TotalValue      float64 `json:"total_value"`
	NumHoldings     int     `json:"number_of_holdings"`
	LargestPosition string  `json:"largest_position"`
	LargestWeight   float64 `json:"largest_weight"`
}

// DashboardMetrics are portfolio-level aggregates over the asset risks.
type DashboardMetrics struct {
	TotalVaR95             float64 `json:"total_var_95"`
	WeightedVolatility     float64 `json:"weighted_volatility"`
	ConcentrationRisk      float64 `json:"concentration_risk"`
	DiversificationBenefit float64 `json:"diversification_benefit"`
}

// Dashboard bundles every risk artifact for one portfolio. MonteCarlo and
// Covariance are nil for single-asset portfolios or when the underlying
// analysis fails; the rest is always populated.
type Dashboard struct {
	Summary    DashboardSummary          `json:"portfolio_summary"`
	AssetRisks []AssetRisk               `json:"asset_risks"`
	MonteCarlo *SimulationResult         `json:"monte_carlo_results,omitempty"`
	Covariance *CovarianceAnalysis       `json:"covariance_analysis,omitempty"`
	StressTest map[string]ScenarioResult `json:"stress_test_results"`
	Metrics    DashboardMetrics          `json:"risk_metrics"`
}

// BuildDashboard aggregates per-asset densities, a Monte Carlo run, the
// covariance decomposition and the default stress suite into one view.
// Holdings must match the columns of the returns matrix. Partial failures
// of sub-analyses are logged and leave the corresponding section nil.
func (m *Model) BuildDashboard(
	holdings []domain.Holding,
	matrix domain.ReturnsMatrix,
	numSimulations, horizonDays int,
	seed *uint64,
) (*Dashboard, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: no holdings supplied", domain.ErrInvalidInput)
	}
	var totalValue float64
	for _, h := range holdings {
		totalValue += h.CurrentValue
	}
	if totalValue <= 0 {
		return nil, fmt.Errorf("%w: portfolio has no value", domain.ErrInvalidInput)
	}

	weights := make(domain.PortfolioWeights, len(holdings))
	for _, h := range holdings {
		weights[h.Symbol] = h.CurrentValue / totalValue
	}

	summary := DashboardSummary{
		TotalValue:  totalValue,
		NumHoldings: len(holdings),
	}
	assetRisks := make([]AssetRisk, 0, len(holdings))
	var weightedVol, maxVol float64
	for _, h := range holdings {
		weight := weights[h.Symbol]
		if weight > summary.LargestWeight {
			summary.LargestWeight = weight
			summary.LargestPosition = h.Symbol
		}

		vol := formulas.AnnualizedVolatility(matrix.Series(h.Symbol))
		risk := AssetRisk{
			Symbol:       h.Symbol,
			Weight:       weight,
			CurrentValue: h.CurrentValue,
			Volatility:   vol,
			VaR95:        h.CurrentValue * (1 - z95*vol),
		}
		if h.CurrentPrice > 0 && vol > 0 {
			density, err := m.PriceProbabilityDensity(h.CurrentPrice, vol, dashboardDensityHorizon, 0)
			if err == nil {
				risk.ExpectedReturn = density.ExpectedPrice/h.CurrentPrice - 1
				risk.ProbabilityOfLoss = density.ProbBelowCurrent
			}
		}
		assetRisks = append(assetRisks, risk)

		weightedVol += weight * vol
		if vol > maxVol {
			maxVol = vol
		}
	}

	dashboard := &Dashboard{
		Summary:    summary,
		AssetRisks: assetRisks,
	}

	if len(holdings) > 1 {
		mc, err := m.MonteCarloSimulation(matrix, weights, numSimulations, horizonDays, totalValue, seed)
		if err != nil {
			m.log.Warn().Err(err).Msg("dashboard monte carlo failed, section omitted")
		} else {
			dashboard.MonteCarlo = mc
		}

		cov, err := m.PortfolioCovariance(matrix, weights)
		if err != nil {
			m.log.Warn().Err(err).Msg("dashboard covariance analysis failed, section omitted")
		} else {
			dashboard.Covariance = cov
		}
	}

	stress, err := m.StressTest(holdings, weightedVol, DefaultScenarios())
	if err != nil {
		return nil, err
	}
	dashboard.StressTest = stress

	var totalVaR float64
	for _, a := range assetRisks {
		totalVaR += a.VaR95
	}
	dashboard.Metrics = DashboardMetrics{
		TotalVaR95:         totalVaR,
		WeightedVolatility: weightedVol,
		ConcentrationRisk:  summary.LargestWeight,
	}
	if maxVol > 0 {
		dashboard.Metrics.DiversificationBenefit = 1 - weightedVol/maxVol
	}

	return dashboard, nil
}
