package marketdata

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
)

// Handler exposes market data retrieval over HTTP.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a market data handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("module", "marketdata_handlers").Logger(),
	}
}

// RegisterRoutes registers the market data routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/price/{symbol}", h.HandlePrice)
		r.Get("/history/{symbol}", h.HandleHistory)
		r.Get("/indicators/{symbol}", h.HandleIndicators)
		r.Get("/sentiment/{symbol}", h.HandleSentiment)
		r.Post("/portfolio-value", h.HandlePortfolioValue)
	})
}

// HandlePrice returns the latest price for one symbol.
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	price, err := h.service.CurrentPrice(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get price")
		h.writeError(w, http.StatusBadGateway, "failed to get current price")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

// HandleHistory returns the historical price series.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	series, err := h.service.HistoricalPrices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		h.writeError(w, http.StatusBadGateway, "failed to get historical prices")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"prices": series,
	})
}

// HandleIndicators returns the technical indicator set for one symbol.
func (h *Handler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	indicators, err := h.service.SymbolIndicators(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to compute indicators")
		h.writeError(w, http.StatusBadGateway, "failed to compute indicators")
		return
	}
	h.writeJSON(w, http.StatusOK, indicators)
}

// HandleSentiment returns ownership and analyst positioning.
func (h *Handler) HandleSentiment(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	sentiment, err := h.service.MarketSentiment(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get sentiment")
		h.writeError(w, http.StatusBadGateway, "failed to get sentiment")
		return
	}
	h.writeJSON(w, http.StatusOK, sentiment)
}

// PortfolioValueRequest carries the holdings to price.
type PortfolioValueRequest struct {
	Holdings []domain.Holding `json:"holdings"`
}

// HandlePortfolioValue prices a set of holdings at current market.
func (h *Handler) HandlePortfolioValue(w http.ResponseWriter, r *http.Request) {
	var req PortfolioValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valuation, err := h.service.ValuePortfolio(r.Context(), req.Holdings)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrInsufficientData):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error().Err(err).Msg("Failed to value portfolio")
			h.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, valuation)
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
