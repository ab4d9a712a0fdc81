package risk

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/internal/marketdata"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Handler exposes the portfolio risk model over HTTP.
type Handler struct {
	model  *Model
	market *marketdata.Service
	log    zerolog.Logger
}

// NewHandler creates a risk handler.
func NewHandler(model *Model, market *marketdata.Service, log zerolog.Logger) *Handler {
	return &Handler{
		model:  model,
		market: market,
		log:    log.With().Str("module", "risk_handlers").Logger(),
	}
}

// RegisterRoutes registers the risk routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/covariance", h.HandleCovariance)
		r.Post("/monte-carlo", h.HandleMonteCarlo)
		r.Get("/density/{symbol}", h.HandleDensity)
		r.Post("/stress-test", h.HandleStressTest)
		r.Post("/tail-dependence", h.HandleTailDependence)
		r.Post("/dashboard", h.HandleDashboard)
	})
}

// portfolioRequest selects symbols and optional weights. Missing weights
// default to an equal allocation.
type portfolioRequest struct {
	Symbols []string                `json:"symbols"`
	Weights domain.PortfolioWeights `json:"weights"`
	Period  string                  `json:"period"`
}

// resolve fetches the returns matrix and reconciles the weights with the
// symbols that survived the fetch.
func (h *Handler) resolve(r *http.Request, req portfolioRequest) (domain.ReturnsMatrix, domain.PortfolioWeights, error) {
	matrix, err := h.market.BuildReturnsMatrix(r.Context(), req.Symbols, req.Period)
	if err != nil {
		return domain.ReturnsMatrix{}, nil, err
	}
	weights := req.Weights
	if len(weights) == 0 {
		weights = domain.EqualWeights(matrix.Symbols)
	}
	return matrix, weights, nil
}

// HandleCovariance decomposes portfolio risk by asset.
func (h *Handler) HandleCovariance(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matrix, weights, err := h.resolve(r, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	analysis, err := h.model.PortfolioCovariance(matrix, weights)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// MonteCarloRequest configures a simulation run. Seed is optional and
// meant for reproducible runs; leave it unset in production.
type MonteCarloRequest struct {
	portfolioRequest
	NumSimulations int     `json:"num_simulations"`
	HorizonDays    int     `json:"horizon_days"`
	InitialValue   float64 `json:"initial_value"`
	Seed           *uint64 `json:"seed,omitempty"`
}

// HandleMonteCarlo simulates the terminal portfolio value distribution.
func (h *Handler) HandleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NumSimulations <= 0 {
		req.NumSimulations = 10000
	}
	if req.HorizonDays <= 0 {
		req.HorizonDays = 252
	}
	if req.InitialValue <= 0 {
		req.InitialValue = 100000
	}

	matrix, weights, err := h.resolve(r, req.portfolioRequest)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.model.MonteCarloSimulation(matrix, weights, req.NumSimulations, req.HorizonDays, req.InitialValue, req.Seed)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleDensity builds the forward log-normal price distribution for one
// symbol, using its trailing historical volatility.
func (h *Handler) HandleDensity(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	horizon, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if horizon <= 0 {
		horizon = 30
	}
	points, _ := strconv.Atoi(r.URL.Query().Get("points"))

	spot, err := h.market.CurrentPrice(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get spot price")
		h.writeError(w, http.StatusBadGateway, "failed to get current price")
		return
	}

	series, err := h.market.HistoricalPrices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		h.writeError(w, http.StatusBadGateway, "failed to get historical prices")
		return
	}

	returns := formulas.CalculateLogReturns(series.Closes())
	var vol float64
	if len(returns) >= domain.MinObservations {
		vol = formulas.AnnualizedVolatility(returns)
	}
	if vol <= 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "not enough history to estimate volatility")
		return
	}

	density, err := h.model.PriceProbabilityDensity(spot, vol, horizon, points)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":       symbol,
		"spot":         spot,
		"volatility":   vol,
		"horizon_days": horizon,
		"density":      density,
	})
}

// StressTestRequest carries the holdings and optional custom scenarios.
type StressTestRequest struct {
	Holdings       []domain.Holding `json:"holdings"`
	BaseVolatility float64          `json:"base_volatility"`
	Scenarios      []StressScenario `json:"scenarios"`
}

// HandleStressTest runs the scenario suite over the supplied holdings.
func (h *Handler) HandleStressTest(w http.ResponseWriter, r *http.Request) {
	var req StressTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.model.StressTest(req.Holdings, req.BaseVolatility, req.Scenarios)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

// TailDependenceRequest selects symbols and the quantile threshold.
type TailDependenceRequest struct {
	portfolioRequest
	Threshold float64 `json:"threshold"`
}

// HandleTailDependence computes rank and tail dependence for a symbol set.
func (h *Handler) HandleTailDependence(w http.ResponseWriter, r *http.Request) {
	var req TailDependenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matrix, _, err := h.resolve(r, req.portfolioRequest)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	analysis, err := h.model.TailDependence(matrix, req.Threshold)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// DashboardRequest configures the aggregated risk view.
type DashboardRequest struct {
	Holdings       []domain.Holding `json:"holdings"`
	Period         string           `json:"period"`
	NumSimulations int              `json:"num_simulations"`
	HorizonDays    int              `json:"horizon_days"`
}

// HandleDashboard builds the full risk dashboard for a portfolio.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Holdings) == 0 {
		h.writeError(w, http.StatusBadRequest, "holdings are required")
		return
	}
	if req.NumSimulations <= 0 {
		req.NumSimulations = 10000
	}
	if req.HorizonDays <= 0 {
		req.HorizonDays = 252
	}

	symbols := make([]string, 0, len(req.Holdings))
	for _, holding := range req.Holdings {
		symbols = append(symbols, holding.Symbol)
	}
	matrix, err := h.market.BuildReturnsMatrix(r.Context(), symbols, req.Period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Keep only holdings with return data so weights line up with columns.
	holdings := make([]domain.Holding, 0, len(req.Holdings))
	for _, holding := range req.Holdings {
		for _, symbol := range matrix.Symbols {
			if holding.Symbol == symbol {
				holdings = append(holdings, holding)
				break
			}
		}
	}

	dashboard, err := h.model.BuildDashboard(holdings, matrix, req.NumSimulations, req.HorizonDays, nil)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dashboard)
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
