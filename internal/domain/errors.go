package domain

import "errors"

// Hard-failure error kinds surfaced to callers. Numerical non-convergence is
// deliberately absent: implied-vol returns its last iterate, the optimizer
// degrades to equal weights and the volatility forecaster falls back to the
// historical method, each flagging the fallback in its result.
var (
	// ErrInvalidInput marks malformed caller input: non-positive prices,
	// strikes, volatilities or horizons, or a misshapen returns matrix.
	// Not retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks inputs that are well-formed but too short
	// for a meaningful estimate (fewer than MinObservations periods for
	// covariance or Sharpe style statistics).
	ErrInsufficientData = errors.New("insufficient data")
)

// MinObservations is the minimum number of return periods required for
// covariance, Sharpe and related estimates.
const MinObservations = 30
