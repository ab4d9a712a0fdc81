package risk

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/auravest/risk-engine/internal/domain"
)

// DefaultBaseVolatility is assumed when the caller supplies no portfolio
// volatility estimate.
const DefaultBaseVolatility = 0.15

// z score for a one-sided 95% VaR.
const z95 = 1.645

// StressTest applies each scenario's market shock uniformly to every
// holding. The shock is linear and not beta-weighted, so valueChange equals
// totalValue * marketShock for every scenario. Pass a zero or negative
// baseVolatility to use DefaultBaseVolatility.
func (m *Model) StressTest(holdings []domain.Holding, baseVolatility float64, scenarios []StressScenario) (map[string]ScenarioResult, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: no holdings supplied", domain.ErrInvalidInput)
	}
	var totalValue float64
	for _, h := range holdings {
		if h.CurrentValue < 0 {
			return nil, fmt.Errorf("%w: holding %s has negative value", domain.ErrInvalidInput, h.Symbol)
		}
		totalValue += h.CurrentValue
	}
	if totalValue <= 0 {
		return nil, fmt.Errorf("%w: portfolio has no value", domain.ErrInvalidInput)
	}
	if baseVolatility <= 0 {
		baseVolatility = DefaultBaseVolatility
	}
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}

	results := make(map[string]ScenarioResult, len(scenarios))
	for _, scenario := range scenarios {
		var scenarioValue float64
		for _, h := range holdings {
			scenarioValue += h.CurrentValue * (1 + scenario.MarketShock)
		}

		valueChange := scenarioValue - totalValue
		stressVol := baseVolatility * scenario.VolatilityMultiplier

		var probLoss float64
		if stressVol > 0 {
			probLoss = distuv.Normal{Mu: valueChange, Sigma: stressVol}.CDF(0)
		} else if valueChange < 0 {
			probLoss = 1
		}

		results[scenario.Name] = ScenarioResult{
			ScenarioValue:           scenarioValue,
			ValueChange:             valueChange,
			ValueChangePercent:      valueChange / totalValue,
			StressVolatility:        stressVol,
			StressVaR95:             scenarioValue * (1 - z95*stressVol),
			StressProbabilityOfLoss: probLoss,
		}
	}

	m.log.Debug().
		Int("scenarios", len(scenarios)).
		Float64("total_value", totalValue).
		Msg("stress test complete")

	return results, nil
}
