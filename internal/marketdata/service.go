package marketdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// DefaultPeriod is the historical range used when a caller does not pick one.
const DefaultPeriod = "1y"

// Service layers caching and fan-out on top of the provider client. All
// provider reads go through here.
type Service struct {
	client      *Client
	cache       *Cache
	concurrency int
	log         zerolog.Logger
}

// NewService wires the provider client to the cache. concurrency bounds
// the number of in-flight provider requests during multi-symbol fetches.
func NewService(client *Client, cache *Cache, concurrency int, log zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		client:      client,
		cache:       cache,
		concurrency: concurrency,
		log:         log.With().Str("component", "marketdata").Logger(),
	}
}

// HistoricalPrices returns the cached series when fresh, otherwise fetches
// and caches it.
func (s *Service) HistoricalPrices(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	if period == "" {
		period = DefaultPeriod
	}
	key := fmt.Sprintf("hist:%s:%s", symbol, period)

	var series domain.PriceSeries
	if s.cache.Get(key, &series) {
		return series, nil
	}

	series, err := s.client.HistoricalPrices(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("provider returned invalid series for %s: %w", symbol, err)
	}
	if len(series) > 0 {
		s.cache.Put(key, series)
	}
	return series, nil
}

// CurrentPrice returns the latest price, cached.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	key := "price:" + symbol

	var price float64
	if s.cache.Get(key, &price) {
		return price, nil
	}

	price, err := s.client.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	s.cache.Put(key, price)
	return price, nil
}

// OptionChains returns all option expiries for a symbol, cached.
func (s *Service) OptionChains(ctx context.Context, symbol string) ([]domain.OptionChain, error) {
	key := "options:" + symbol

	var chains []domain.OptionChain
	if s.cache.Get(key, &chains) {
		return chains, nil
	}

	chains, err := s.client.OptionChains(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(chains) > 0 {
		s.cache.Put(key, chains)
	}
	return chains, nil
}

// BuildReturnsMatrix fetches histories for all symbols concurrently and
// aligns their daily log returns into one matrix. Symbols whose fetch
// fails or whose history is too short are dropped with a warning; the call
// errors only when fewer than one series survives.
func (s *Service) BuildReturnsMatrix(ctx context.Context, symbols []string, period string) (domain.ReturnsMatrix, error) {
	if len(symbols) == 0 {
		return domain.ReturnsMatrix{}, fmt.Errorf("%w: no symbols supplied", domain.ErrInvalidInput)
	}

	type fetched struct {
		symbol  string
		returns []float64
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan fetched, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			series, err := s.HistoricalPrices(ctx, symbol, period)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("dropping symbol, fetch failed")
				return
			}
			returns := formulas.CalculateLogReturns(series.Closes())
			if len(returns) < domain.MinObservations {
				s.log.Warn().
					Str("symbol", symbol).
					Int("observations", len(returns)).
					Msg("dropping symbol, history too short")
				return
			}
			results <- fetched{symbol: symbol, returns: returns}
		}(symbol)
	}
	wg.Wait()
	close(results)

	byLength := make(map[string][]float64)
	minLen := 0
	for f := range results {
		byLength[f.symbol] = f.returns
		if minLen == 0 || len(f.returns) < minLen {
			minLen = len(f.returns)
		}
	}
	if len(byLength) == 0 {
		return domain.ReturnsMatrix{}, fmt.Errorf("%w: no symbol produced a usable return series", domain.ErrInsufficientData)
	}

	// Align to the shortest series, keeping the most recent observations.
	// Preserve the caller's symbol order for stable matrix columns.
	aligned := make(map[string][]float64, len(byLength))
	var kept []string
	for _, symbol := range symbols {
		returns, ok := byLength[symbol]
		if !ok {
			continue
		}
		aligned[symbol] = returns[len(returns)-minLen:]
		kept = append(kept, symbol)
	}

	if len(kept) < len(symbols) {
		s.log.Warn().
			Int("requested", len(symbols)).
			Int("kept", len(kept)).
			Msg("returns matrix built with partial symbol coverage")
	}

	return domain.NewReturnsMatrix(kept, aligned)
}

// HoldingValuation is one valued position.
type HoldingValuation struct {
	Symbol               string  `json:"symbol"`
	Quantity             float64 `json:"quantity"`
	PurchasePrice        float64 `json:"purchase_price"`
	CurrentPrice         float64 `json:"current_price"`
	CurrentValue         float64 `json:"current_value"`
	CostBasis            float64 `json:"cost_basis"`
	UnrealizedPnL        float64 `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64 `json:"unrealized_pnl_percent"`
}

// PortfolioValuation aggregates current prices over a set of holdings.
type PortfolioValuation struct {
	TotalValue             float64            `json:"total_value"`
	TotalCost              float64            `json:"total_cost"`
	TotalUnrealizedPnL     float64            `json:"total_unrealized_pnl"`
	TotalUnrealizedPercent float64            `json:"total_unrealized_pnl_percent"`
	Holdings               []HoldingValuation `json:"holdings"`
}

// ValuePortfolio prices every holding at the current market. Symbols that
// fail to price are skipped with a warning.
func (s *Service) ValuePortfolio(ctx context.Context, holdings []domain.Holding) (*PortfolioValuation, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: no holdings supplied", domain.ErrInvalidInput)
	}

	valuation := &PortfolioValuation{}
	for _, h := range holdings {
		price, err := s.CurrentPrice(ctx, h.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("skipping holding, price unavailable")
			continue
		}

		value := h.Quantity * price
		costBasis := h.Quantity * h.PurchasePrice
		hv := HoldingValuation{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			CurrentPrice:  price,
			CurrentValue:  value,
			CostBasis:     costBasis,
			UnrealizedPnL: value - costBasis,
		}
		if costBasis > 0 {
			hv.UnrealizedPnLPercent = (value - costBasis) / costBasis * 100
		}
		valuation.Holdings = append(valuation.Holdings, hv)
		valuation.TotalValue += value
		valuation.TotalCost += costBasis
	}
	if len(valuation.Holdings) == 0 {
		return nil, fmt.Errorf("%w: no holding could be priced", domain.ErrInsufficientData)
	}

	valuation.TotalUnrealizedPnL = valuation.TotalValue - valuation.TotalCost
	if valuation.TotalCost > 0 {
		valuation.TotalUnrealizedPercent = valuation.TotalUnrealizedPnL / valuation.TotalCost * 100
	}
	return valuation, nil
}

// Sentiment summarizes ownership, analyst positioning and recent price
// momentum for one symbol.
type Sentiment struct {
	Symbol                 string   `json:"symbol"`
	InstitutionalOwnership float64  `json:"institutional_ownership"`
	InsiderOwnership       float64  `json:"insider_ownership"`
	Recommendation         string   `json:"recommendation"`
	Momentum1D             *float64 `json:"momentum_1d,omitempty"`
	Momentum5D             *float64 `json:"momentum_5d,omitempty"`
	Momentum20D            *float64 `json:"momentum_20d,omitempty"`
	RSI14                  *float64 `json:"rsi_14,omitempty"`
}

// MarketSentiment fetches ownership and recommendation fields and derives
// short-horizon momentum and RSI from recent history. Cached.
func (s *Service) MarketSentiment(ctx context.Context, symbol string) (*Sentiment, error) {
	key := "sentiment:" + symbol

	var sentiment Sentiment
	if s.cache.Get(key, &sentiment) {
		return &sentiment, nil
	}

	info, err := s.client.quoteInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sentiment = Sentiment{
		Symbol:                 symbol,
		InstitutionalOwnership: getFloat64OrZero(info, "heldPercentInstitutions"),
		InsiderOwnership:       getFloat64OrZero(info, "heldPercentInsiders"),
		Recommendation:         getString(info, "recommendationKey", "hold"),
	}

	// Momentum signals are best effort. A history failure degrades the
	// summary rather than failing it.
	if series, err := s.HistoricalPrices(ctx, symbol, "3mo"); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("No history for sentiment momentum")
	} else {
		closes := series.Closes()
		sentiment.Momentum1D = formulas.CalculateMomentum(closes, 1)
		sentiment.Momentum5D = formulas.CalculateMomentum(closes, 5)
		sentiment.Momentum20D = formulas.CalculateMomentum(closes, 20)
		sentiment.RSI14 = formulas.CalculateRSI(closes, 14)
	}

	s.cache.Put(key, sentiment)
	return &sentiment, nil
}

// SymbolIndicators fetches history and computes the technical indicator set.
func (s *Service) SymbolIndicators(ctx context.Context, symbol, period string) (*Indicators, error) {
	series, err := s.HistoricalPrices(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	return ComputeIndicators(symbol, series)
}

// PruneCache removes expired cache entries. Called from the scheduler.
func (s *Service) PruneCache() (int64, error) {
	return s.cache.Prune()
}
