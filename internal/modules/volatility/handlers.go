package volatility

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/internal/marketdata"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Handler exposes volatility analysis over HTTP.
type Handler struct {
	analyzer *Analyzer
	market   *marketdata.Service
	log      zerolog.Logger
}

// NewHandler creates a volatility handler.
func NewHandler(analyzer *Analyzer, market *marketdata.Service, log zerolog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		market:   market,
		log:      log.With().Str("module", "volatility_handlers").Logger(),
	}
}

// RegisterRoutes registers the volatility routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/volatility", func(r chi.Router) {
		r.Get("/surface/{symbol}", h.HandleSurface)
		r.Get("/forecast/{symbol}", h.HandleForecast)
		r.Get("/historical/{symbol}", h.HandleHistorical)
	})
}

// HandleSurface builds the implied volatility surface from live chains.
func (h *Handler) HandleSurface(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	spot, err := h.market.CurrentPrice(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get spot price")
		h.writeError(w, http.StatusBadGateway, "failed to get current price")
		return
	}

	chains, err := h.market.OptionChains(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get option chains")
		h.writeError(w, http.StatusBadGateway, "failed to get option chains")
		return
	}

	surface, err := h.analyzer.ImpliedVolatilitySurface(symbol, spot, chains, time.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"spot":    spot,
		"surface": surface,
	})
}

// HandleForecast forecasts volatility with the requested method.
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	method := Method(r.URL.Query().Get("method"))
	if method == "" {
		method = MethodHistorical
	}
	horizon, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if horizon <= 0 {
		horizon = 30
	}

	series, err := h.market.HistoricalPrices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		h.writeError(w, http.StatusBadGateway, "failed to get historical prices")
		return
	}

	returns := formulas.CalculateLogReturns(series.Closes())
	forecast, err := h.analyzer.ForecastVolatility(returns, method, horizon)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"forecast": forecast,
	})
}

// HandleHistorical returns the rolling annualized historical volatility.
func (h *Handler) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	window, _ := strconv.Atoi(r.URL.Query().Get("window"))
	if window <= 0 {
		window = 20
	}

	series, err := h.market.HistoricalPrices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		h.writeError(w, http.StatusBadGateway, "failed to get historical prices")
		return
	}

	rolling, err := h.analyzer.HistoricalVolatility(series.Closes(), window)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"window":     window,
		"volatility": rolling,
	})
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientData):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Unhandled analysis error")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
