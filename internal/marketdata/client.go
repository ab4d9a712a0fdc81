// Package marketdata retrieves quotes, historical prices and option chains
// and serves them through a short-lived cache. The analytical modules
// consume its output as plain domain values and never talk to the provider
// directly.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
)

const defaultMaxRetries = 3

// Client fetches market data from the Yahoo Finance query API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a market data client. baseURL is the provider host,
// e.g. https://query1.finance.yahoo.com.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "marketdata").Logger(),
	}
}

// CurrentPrice fetches the latest trade price with retry and exponential
// backoff.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		info, err := c.quoteInfo(ctx, symbol)
		if err == nil {
			if price := getFloat64OrZero(info, "currentPrice"); price > 0 {
				return price, nil
			}
			if price := getFloat64OrZero(info, "regularMarketPrice"); price > 0 {
				return price, nil
			}
			lastErr = fmt.Errorf("no valid price for %s", symbol)
		} else {
			lastErr = err
		}

		if attempt < defaultMaxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(lastErr).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", waitTime).
				Msg("Failed to get price, retrying")
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}
	return 0, fmt.Errorf("failed after %d attempts: %w", defaultMaxRetries, lastErr)
}

// HistoricalPrices fetches daily closes for the given range.
//
// Supported periods: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max
func (c *Client) HistoricalPrices(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", period)

	reqURL := c.baseURL + "/v8/finance/chart/" + url.QueryEscape(symbol) + "?" + params.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical data: %w", err)
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
					} `json:"quote"`
					AdjClose []struct {
						AdjClose []float64 `json:"adjclose"`
					} `json:"adjclose"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("provider error: %v", result.Chart.Error)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return domain.PriceSeries{}, nil
	}

	chartData := result.Chart.Result[0]
	closes := chartData.Indicators.Quote[0].Close

	// Prefer adjusted closes so splits and dividends do not distort returns.
	var adjCloses []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloses = chartData.Indicators.AdjClose[0].AdjClose
	}

	var series domain.PriceSeries
	for i, ts := range chartData.Timestamp {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		price := closes[i]
		if i < len(adjCloses) && adjCloses[i] > 0 {
			price = adjCloses[i]
		}
		series = append(series, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: price,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("count", len(series)).
		Msg("Fetched historical prices")

	return series, nil
}

// OptionChains fetches the option chain for every listed expiry.
func (c *Client) OptionChains(ctx context.Context, symbol string) ([]domain.OptionChain, error) {
	reqURL := c.baseURL + "/v7/finance/options/" + url.QueryEscape(symbol)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chains: %w", err)
	}

	var result struct {
		OptionChain struct {
			Result []struct {
				Options []struct {
					ExpirationDate int64         `json:"expirationDate"`
					Calls          []optionQuote `json:"calls"`
					Puts           []optionQuote `json:"puts"`
				} `json:"options"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"optionChain"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.OptionChain.Error != nil {
		return nil, fmt.Errorf("provider error: %v", result.OptionChain.Error)
	}
	if len(result.OptionChain.Result) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No option chains returned")
		return nil, nil
	}

	var chains []domain.OptionChain
	for _, o := range result.OptionChain.Result[0].Options {
		expiry := time.Unix(o.ExpirationDate, 0).UTC()
		chain := domain.OptionChain{
			Symbol: symbol,
			Expiry: expiry,
		}
		for _, q := range o.Calls {
			chain.Calls = append(chain.Calls, q.toDomain(expiry, domain.Call))
		}
		for _, q := range o.Puts {
			chain.Puts = append(chain.Puts, q.toDomain(expiry, domain.Put))
		}
		chains = append(chains, chain)
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("expiries", len(chains)).
		Msg("Fetched option chains")

	return chains, nil
}

type optionQuote struct {
	Strike float64 `json:"strike"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

func (q optionQuote) toDomain(expiry time.Time, optType domain.OptionType) domain.OptionQuote {
	return domain.OptionQuote{
		Strike: q.Strike,
		Bid:    q.Bid,
		Ask:    q.Ask,
		Expiry: expiry,
		Type:   optType,
	}
}

// quoteInfo fetches the raw quote fields for one symbol.
func (c *Client) quoteInfo(ctx context.Context, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,currentPrice,regularMarketChange,"+
		"regularMarketChangePercent,marketCap,trailingPE,priceToBook,dividendYield,beta,"+
		"heldPercentInstitutions,heldPercentInsiders,recommendationKey,longName,shortName")

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}

	var result struct {
		QuoteResponse struct {
			Result []map[string]interface{} `json:"result"`
			Error  interface{}              `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("provider error: %v", result.QuoteResponse.Error)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}
	return result.QuoteResponse.Result[0], nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func getFloat64OrZero(m map[string]interface{}, key string) float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		}
	}
	return 0
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}
