package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auravest/risk-engine/internal/database"
	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/pkg/logger"
)

func chartJSON(closes []float64) string {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	timestamps := make([]string, len(closes))
	values := make([]string, len(closes))
	for i, c := range closes {
		timestamps[i] = fmt.Sprintf("%d", start.AddDate(0, 0, i).Unix())
		values[i] = fmt.Sprintf("%f", c)
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(timestamps, ","), strings.Join(values, ","))
}

func quoteJSON(price float64) string {
	return fmt.Sprintf(`{"quoteResponse":{"result":[{"regularMarketPrice":%f,"heldPercentInstitutions":0.65,"recommendationKey":"buy"}],"error":null}}`, price)
}

func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	log := logger.New(logger.Config{Level: "error", Pretty: false})
	client := NewClient(server.URL, log)
	cache := NewCache(db, 5*time.Minute, log)
	return NewService(client, cache, 4, log), server
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		closes[i] = price
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.995
		}
	}
	return closes
}

func TestHistoricalPrices_ReadThroughCache(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, chartJSON(risingCloses(50)))
	})
	service, _ := newTestService(t, handler)

	first, err := service.HistoricalPrices(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	require.Len(t, first, 50)

	second, err := service.HistoricalPrices(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	assert.Len(t, second, 50)
	assert.Equal(t, int64(1), hits.Load())
	assert.InDelta(t, first[49].Close, second[49].Close, 1e-9)
}

func TestBuildReturnsMatrix_AlignsMixedLengthsAndDropsFailures(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "AAPL"):
			fmt.Fprint(w, chartJSON(risingCloses(60)))
		case strings.Contains(r.URL.Path, "MSFT"):
			fmt.Fprint(w, chartJSON(risingCloses(45)))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	service, _ := newTestService(t, handler)

	matrix, err := service.BuildReturnsMatrix(context.Background(), []string{"AAPL", "MSFT", "BOGUS"}, "1y")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, matrix.Symbols)
	// 45 closes give 44 returns; the longer series is truncated to match.
	assert.Equal(t, 44, matrix.NumPeriods())
	require.NoError(t, matrix.Validate())
}

func TestBuildReturnsMatrix_AllSymbolsFail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	service, _ := newTestService(t, handler)

	_, err := service.BuildReturnsMatrix(context.Background(), []string{"AAPL"}, "1y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	_, err = service.BuildReturnsMatrix(context.Background(), nil, "1y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestValuePortfolio(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quoteJSON(150))
	})
	service, _ := newTestService(t, handler)

	holdings := []domain.Holding{
		{Symbol: "AAPL", Quantity: 10, PurchasePrice: 100},
	}
	valuation, err := service.ValuePortfolio(context.Background(), holdings)
	require.NoError(t, err)

	require.Len(t, valuation.Holdings, 1)
	assert.InDelta(t, 1500.0, valuation.TotalValue, 1e-9)
	assert.InDelta(t, 1000.0, valuation.TotalCost, 1e-9)
	assert.InDelta(t, 500.0, valuation.TotalUnrealizedPnL, 1e-9)
	assert.InDelta(t, 50.0, valuation.TotalUnrealizedPercent, 1e-9)
}

func TestMarketSentiment(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/v8/finance/chart/") {
			fmt.Fprint(w, chartJSON(risingCloses(60)))
			return
		}
		fmt.Fprint(w, quoteJSON(150))
	})
	service, _ := newTestService(t, handler)

	sentiment, err := service.MarketSentiment(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", sentiment.Symbol)
	assert.InDelta(t, 0.65, sentiment.InstitutionalOwnership, 1e-9)
	assert.Equal(t, "buy", sentiment.Recommendation)
	require.NotNil(t, sentiment.Momentum20D)
	assert.Greater(t, *sentiment.Momentum20D, 0.0)
	require.NotNil(t, sentiment.RSI14)
	assert.Greater(t, *sentiment.RSI14, 50.0)
}

func TestComputeIndicators(t *testing.T) {
	closes := risingCloses(250)
	series := make(domain.PriceSeries, len(closes))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		series[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}

	indicators, err := ComputeIndicators("AAPL", series)
	require.NoError(t, err)

	assert.Greater(t, indicators.RSI, 0.0)
	assert.Less(t, indicators.RSI, 100.0)
	assert.Positive(t, indicators.MovingAverages.MA20)
	assert.Positive(t, indicators.MovingAverages.MA200)
	assert.Greater(t, indicators.Bollinger.Upper, indicators.Bollinger.Lower)
}

func TestComputeIndicators_InsufficientData(t *testing.T) {
	series := domain.PriceSeries{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 101},
	}

	_, err := ComputeIndicators("AAPL", series)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
