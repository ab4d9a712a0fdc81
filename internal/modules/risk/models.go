// Package risk implements covariance-based risk decomposition, Monte Carlo
// portfolio simulation, log-normal probability-density construction, stress
// testing and rank/tail dependence analysis.
package risk

import (
	"github.com/rs/zerolog"
)

// Model is the portfolio risk model. It carries no cross-call state; every
// operation is a pure function of its inputs.
type Model struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewModel creates a portfolio risk model.
func NewModel(riskFreeRate float64, log zerolog.Logger) *Model {
	return &Model{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "risk_model").Logger(),
	}
}

// CovarianceAnalysis decomposes portfolio risk by asset. Matrices are
// ordered to match Symbols. RiskContributions sum to 1 by construction.
type CovarianceAnalysis struct {
	Symbols               []string           `json:"symbols"`
	CovarianceMatrix      [][]float64        `json:"covariance_matrix"`  // Annualized
	CorrelationMatrix     [][]float64        `json:"correlation_matrix"`
	PortfolioVariance     float64            `json:"portfolio_variance"`
	PortfolioVolatility   float64            `json:"portfolio_volatility"`
	MarginalContributions map[string]float64 `json:"marginal_contributions"`
	ComponentVaR          map[string]float64 `json:"component_var"`
	RiskContributions     map[string]float64 `json:"risk_contributions"`
}

// SimulationResult summarizes the terminal-value distribution of a Monte
// Carlo run. Created fresh per call, never persisted.
type SimulationResult struct {
	NumSimulations    int                `json:"num_simulations"`
	HorizonDays       int                `json:"horizon_days"`
	InitialValue      float64            `json:"initial_value"`
	MeanFinalValue    float64            `json:"mean_final_value"`
	StdFinalValue     float64            `json:"std_final_value"`
	Percentiles       map[string]float64 `json:"percentiles"` // p5, p25, p50, p75, p95
	VaR               map[string]float64 `json:"var"`         // var_90, var_95, var_99
	CVaR              map[string]float64 `json:"cvar"`
	ProbabilityOfLoss float64            `json:"probability_of_loss"`
	ExpectedShortfall float64            `json:"expected_shortfall"` // Mean terminal value below initial
	Skewness          float64            `json:"skewness"`
	Kurtosis          float64            `json:"kurtosis"`
	MaxDrawdown       float64            `json:"max_drawdown"` // Worst drawdown over all simulated paths
	FinalValues       []float64          `json:"final_values,omitempty"`
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// DensityResult is a log-normal forward price distribution on a grid.
type DensityResult struct {
	PriceGrid           []float64           `json:"price_grid"`
	PDF                 []float64           `json:"pdf"`
	CDF                 []float64           `json:"cdf"`
	ConfidenceIntervals map[string]Interval `json:"confidence_intervals"` // keys 90%, 95%, 99%
	Mu                  float64             `json:"mu"`
	Sigma               float64             `json:"sigma"`
	ExpectedPrice       float64             `json:"expected_price"`
	Variance            float64             `json:"variance"`
	ProbAboveCurrent    float64             `json:"prob_above_current"`
	ProbBelowCurrent    float64             `json:"prob_below_current"`
}

// StressScenario is a named market shock. MarketShock is fractional
// (-0.20 = 20% drop) and applied uniformly to every holding; no per-asset
// beta is modeled.
type StressScenario struct {
	Name                 string  `json:"name"`
	MarketShock          float64 `json:"market_shock"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
}

// ScenarioResult is the portfolio outcome under one stress scenario.
type ScenarioResult struct {
	ScenarioValue           float64 `json:"scenario_value"`
	ValueChange             float64 `json:"value_change"`
	ValueChangePercent      float64 `json:"value_change_percent"`
	StressVolatility        float64 `json:"stress_volatility"`
	StressVaR95             float64 `json:"stress_var_95"`
	StressProbabilityOfLoss float64 `json:"stress_probability_of_loss"`
}

// TailPair is the tail co-movement of one asset pair: the frequency of joint
// quantile exceedances scaled by the quantile threshold.
type TailPair struct {
	Symbol1   string  `json:"symbol1"`
	Symbol2   string  `json:"symbol2"`
	LowerTail float64 `json:"lower_tail"`
	UpperTail float64 `json:"upper_tail"`
}

// DependenceAnalysis holds copula-style rank and tail dependence measures.
type DependenceAnalysis struct {
	Symbols    []string    `json:"symbols"`
	Spearman   [][]float64 `json:"spearman_correlation"`
	KendallTau [][]float64 `json:"kendall_tau"`
	Threshold  float64     `json:"quantile_threshold"`
	Pairs      []TailPair  `json:"tail_dependencies"`
}

// DefaultScenarios is the standard stress suite.
func DefaultScenarios() []StressScenario {
	return []StressScenario{
		{Name: "Market Crash (-20%)", MarketShock: -0.20, VolatilityMultiplier: 2.0},
		{Name: "Recession (-10%)", MarketShock: -0.10, VolatilityMultiplier: 1.5},
		{Name: "Volatility Spike", MarketShock: 0.0, VolatilityMultiplier: 2.5},
		{Name: "Bull Market (+15%)", MarketShock: 0.15, VolatilityMultiplier: 0.8},
	}
}
