package options

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
)

// Handler exposes the pricing model over HTTP as stateless calculators.
type Handler struct {
	pricing      *PricingModel
	riskFreeRate float64
	log          zerolog.Logger
}

// NewHandler creates an options handler.
func NewHandler(pricing *PricingModel, riskFreeRate float64, log zerolog.Logger) *Handler {
	return &Handler{
		pricing:      pricing,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("module", "options_handlers").Logger(),
	}
}

// RegisterRoutes registers the options routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/options", func(r chi.Router) {
		r.Post("/price", h.HandlePrice)
		r.Post("/implied-volatility", h.HandleImpliedVolatility)
	})
}

// PriceRequest prices a European option. Rate defaults to the configured
// risk-free rate when omitted.
type PriceRequest struct {
	Spot       float64           `json:"spot"`
	Strike     float64           `json:"strike"`
	TimeToExp  float64           `json:"time_to_expiry"`
	Rate       *float64          `json:"rate,omitempty"`
	Volatility float64           `json:"volatility"`
	Type       domain.OptionType `json:"type"`
}

// HandlePrice returns the Black-Scholes price and vega.
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rate := h.riskFreeRate
	if req.Rate != nil {
		rate = *req.Rate
	}

	price, err := h.pricing.Price(req.Spot, req.Strike, req.TimeToExp, rate, req.Volatility, req.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	vega, err := h.pricing.Vega(req.Spot, req.Strike, req.TimeToExp, rate, req.Volatility)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"price": price,
		"vega":  vega,
	})
}

// ImpliedVolRequest inverts an observed market price.
type ImpliedVolRequest struct {
	Spot          float64           `json:"spot"`
	Strike        float64           `json:"strike"`
	TimeToExp     float64           `json:"time_to_expiry"`
	Rate          *float64          `json:"rate,omitempty"`
	ObservedPrice float64           `json:"observed_price"`
	Type          domain.OptionType `json:"type"`
}

// HandleImpliedVolatility solves for the implied volatility.
func (h *Handler) HandleImpliedVolatility(w http.ResponseWriter, r *http.Request) {
	var req ImpliedVolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rate := h.riskFreeRate
	if req.Rate != nil {
		rate = *req.Rate
	}

	result, err := h.pricing.ImpliedVolatility(req.Spot, req.Strike, req.TimeToExp, rate, req.ObservedPrice, req.Type, 0, 0)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"implied_volatility": result.Vol,
		"converged":          result.Converged,
		"iterations":         result.Iterations,
		"reasonable":         result.Reasonable(),
	})
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

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Unhandled pricing error")
	h.writeError(w, http.StatusInternalServerError, "internal error")
}
