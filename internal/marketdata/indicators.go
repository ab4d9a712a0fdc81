package marketdata

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/auravest/risk-engine/internal/domain"
)

// Technical indicator windows, matching common charting defaults.
const (
	smaShortWindow  = 20
	smaMediumWindow = 50
	smaLongWindow   = 200
	rsiWindow       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bbandsWindow    = 20
	bbandsWidth     = 2.0
)

// MovingAverages holds the latest simple moving averages.
type MovingAverages struct {
	MA20  float64 `json:"ma_20"`
	MA50  float64 `json:"ma_50"`
	MA200 float64 `json:"ma_200"`
}

// BollingerBands holds the latest band values.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Indicators bundles the technical state of one instrument.
type Indicators struct {
	Symbol         string         `json:"symbol"`
	MovingAverages MovingAverages `json:"moving_averages"`
	RSI            float64        `json:"rsi"`
	MACD           float64        `json:"macd"`
	MACDSignal     float64        `json:"macd_signal"`
	Bollinger      BollingerBands `json:"bollinger_bands"`
}

// ComputeIndicators derives the standard indicator set from a price series.
// Requires at least the RSI window plus one observation; longer-window
// values fall back to the latest close when history is too short.
func ComputeIndicators(symbol string, series domain.PriceSeries) (*Indicators, error) {
	closes := series.Closes()
	if len(closes) <= rsiWindow {
		return nil, fmt.Errorf("%w: indicators require more than %d closes, got %d",
			domain.ErrInsufficientData, rsiWindow, len(closes))
	}
	latest := closes[len(closes)-1]

	indicators := &Indicators{
		Symbol: symbol,
		MovingAverages: MovingAverages{
			MA20:  lastOrDefault(sma(closes, smaShortWindow), latest),
			MA50:  lastOrDefault(sma(closes, smaMediumWindow), latest),
			MA200: lastOrDefault(sma(closes, smaLongWindow), latest),
		},
		RSI: lastOrDefault(talib.Rsi(closes, rsiWindow), 50),
	}

	if len(closes) > macdSlow+macdSignal {
		macd, signal, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		indicators.MACD = lastOrDefault(macd, 0)
		indicators.MACDSignal = lastOrDefault(signal, 0)
	}

	if len(closes) >= bbandsWindow {
		upper, middle, lower := talib.BBands(closes, bbandsWindow, bbandsWidth, bbandsWidth, talib.SMA)
		indicators.Bollinger = BollingerBands{
			Upper:  lastOrDefault(upper, latest),
			Middle: lastOrDefault(middle, latest),
			Lower:  lastOrDefault(lower, latest),
		}
	}

	return indicators, nil
}

func sma(closes []float64, window int) []float64 {
	if len(closes) < window {
		return nil
	}
	return talib.Sma(closes, window)
}

func lastOrDefault(values []float64, fallback float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) && values[i] != 0 {
			return values[i]
		}
	}
	return fallback
}
