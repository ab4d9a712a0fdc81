package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from a value series
// (prices or cumulative portfolio values).
//
// Drawdown Formula:
//
//	Drawdown = (Current Value - Peak Value) / Peak Value
//	Max Drawdown = Minimum of all drawdowns (most negative)
//
// Returns the maximum drawdown as a negative fraction (-0.25 = 25% loss from
// peak) or nil if there are fewer than two observations.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, value := range values {
		if value > peak {
			peak = value
		}

		if peak > 0 {
			drawdown := (value - peak) / peak
			if drawdown < maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// MaxDrawdownFromReturns compounds periodic returns into a value series and
// returns its maximum drawdown as a negative fraction.
func MaxDrawdownFromReturns(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	values := make([]float64, len(returns)+1)
	values[0] = 1.0
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}

	dd := CalculateMaxDrawdown(values)
	if dd == nil {
		return 0
	}
	return *dd
}

// CalculateMomentum calculates price momentum over a period
// Returns percentage change over the period, or nil with insufficient data.
func CalculateMomentum(prices []float64, days int) *float64 {
	if len(prices) < days+1 {
		return nil
	}

	startPrice := prices[len(prices)-days-1]
	endPrice := prices[len(prices)-1]

	if startPrice == 0 {
		return nil
	}

	momentum := (endPrice - startPrice) / startPrice
	return &momentum
}
