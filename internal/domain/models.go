package domain

import (
	"fmt"
	"time"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionQuote is a single option quote from a chain snapshot.
// A quote is usable for implied-volatility work only when both bid and ask
// are strictly positive; everything else is filtered, not treated as an error.
type OptionQuote struct {
	Strike float64    `json:"strike"`
	Bid    float64    `json:"bid"`
	Ask    float64    `json:"ask"`
	Expiry time.Time  `json:"expiry"`
	Type   OptionType `json:"type"`
}

// Usable reports whether the quote has a two-sided market.
func (q OptionQuote) Usable() bool {
	return q.Bid > 0 && q.Ask > 0
}

// Mid returns the bid/ask midpoint.
func (q OptionQuote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// OptionChain is the option-chain snapshot for one symbol and expiry.
type OptionChain struct {
	Symbol string        `json:"symbol"`
	Expiry time.Time     `json:"expiry"`
	Calls  []OptionQuote `json:"calls"`
	Puts   []OptionQuote `json:"puts"`
}

// Quotes returns calls followed by puts.
func (c OptionChain) Quotes() []OptionQuote {
	quotes := make([]OptionQuote, 0, len(c.Calls)+len(c.Puts))
	quotes = append(quotes, c.Calls...)
	quotes = append(quotes, c.Puts...)
	return quotes
}

// PricePoint is a single (date, close) observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered, chronological sequence of closing prices for
// one instrument. Timestamps are strictly increasing and prices positive.
type PriceSeries []PricePoint

// Closes extracts the closing prices in order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Validate checks the series invariants: strictly increasing dates and
// strictly positive prices.
func (s PriceSeries) Validate() error {
	for i, p := range s {
		if p.Close <= 0 {
			return fmt.Errorf("%w: non-positive price %.4f at index %d", ErrInvalidInput, p.Close, i)
		}
		if i > 0 && !p.Date.After(s[i-1].Date) {
			return fmt.Errorf("%w: timestamps not strictly increasing at index %d", ErrInvalidInput, i)
		}
	}
	return nil
}

// ReturnsMatrix holds aligned periodic return series keyed by symbol.
// All series share the same date index and length; rows with gaps are
// dropped before the matrix is built.
type ReturnsMatrix struct {
	Symbols []string             `json:"symbols"`
	Returns map[string][]float64 `json:"returns"`
}

// NewReturnsMatrix builds a matrix from pre-aligned series. Symbol order is
// preserved so downstream weight vectors line up with matrix columns.
func NewReturnsMatrix(symbols []string, returns map[string][]float64) (ReturnsMatrix, error) {
	m := ReturnsMatrix{Symbols: symbols, Returns: returns}
	if err := m.Validate(); err != nil {
		return ReturnsMatrix{}, err
	}
	return m, nil
}

// NumPeriods returns the shared series length.
func (m ReturnsMatrix) NumPeriods() int {
	if len(m.Symbols) == 0 {
		return 0
	}
	return len(m.Returns[m.Symbols[0]])
}

// Series returns the return series for a symbol.
func (m ReturnsMatrix) Series(symbol string) []float64 {
	return m.Returns[symbol]
}

// Validate checks that every symbol has a series and all series have equal length.
func (m ReturnsMatrix) Validate() error {
	if len(m.Symbols) == 0 {
		return fmt.Errorf("%w: returns matrix has no symbols", ErrInvalidInput)
	}
	n := -1
	for _, symbol := range m.Symbols {
		series, ok := m.Returns[symbol]
		if !ok {
			return fmt.Errorf("%w: missing return series for %s", ErrInvalidInput, symbol)
		}
		if n == -1 {
			n = len(series)
		} else if len(series) != n {
			return fmt.Errorf("%w: return series for %s has length %d, expected %d",
				ErrInvalidInput, symbol, len(series), n)
		}
	}
	if n == 0 {
		return fmt.Errorf("%w: returns matrix has no observations", ErrInvalidInput)
	}
	return nil
}

// Holding is one position in a portfolio as supplied by the caller.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity,omitempty"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	CurrentValue  float64 `json:"current_value"`
	PurchasePrice float64 `json:"purchase_price,omitempty"`
}

// PortfolioWeights maps symbol to non-negative weight. The optimizer's
// equality constraint keeps weights summing to 1.
type PortfolioWeights map[string]float64

// EqualWeights allocates 1/n to each symbol.
func EqualWeights(symbols []string) PortfolioWeights {
	weights := make(PortfolioWeights, len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = 1.0 / float64(len(symbols))
	}
	return weights
}

// Vector orders the weights to match the given symbol order.
func (w PortfolioWeights) Vector(symbols []string) []float64 {
	vec := make([]float64, len(symbols))
	for i, symbol := range symbols {
		vec[i] = w[symbol]
	}
	return vec
}
