package forecast

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
)

// Handler exposes the price-range forecaster over HTTP.
type Handler struct {
	forecaster *Forecaster
	market     *marketdata.Service
	log        zerolog.Logger
}

// NewHandler creates a forecast handler.
func NewHandler(forecaster *Forecaster, market *marketdata.Service, log zerolog.Logger) *Handler {
	return &Handler{
		forecaster: forecaster,
		market:     market,
		log:        log.With().Str("module", "forecast_handlers").Logger(),
	}
}

// RegisterRoutes registers the forecast routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/forecast", func(r chi.Router) {
		r.Get("/{symbol}", h.HandleForecast)
	})
}

// HandleForecast builds a forward price range for one symbol.
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	horizon, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if horizon <= 0 {
		horizon = 30
	}
	confidence, _ := strconv.ParseFloat(r.URL.Query().Get("confidence"), 64)
	if confidence == 0 {
		confidence = 0.95
	}

	spot, err := h.market.CurrentPrice(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get spot price")
		h.writeError(w, http.StatusBadGateway, "failed to get current price")
		return
	}

	// Chains are optional; the forecaster falls back to historical vol.
	chains, err := h.market.OptionChains(r.Context(), symbol)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Option chains unavailable, historical fallback")
		chains = nil
	}

	series, err := h.market.HistoricalPrices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		h.writeError(w, http.StatusBadGateway, "failed to get historical prices")
		return
	}

	forecast, err := h.forecaster.ForecastRange(symbol, spot, chains, series.Closes(), horizon, confidence, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrInsufficientData):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error().Err(err).Msg("Forecast failed")
			h.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, forecast)
}

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
