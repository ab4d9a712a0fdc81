package optimization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/domain"
	"github.com/auravest/risk-engine/internal/marketdata"
	"github.com/auravest/risk-engine/pkg/formulas"
)

// Handler exposes portfolio optimization and analysis over HTTP.
type Handler struct {
	optimizer *Optimizer
	market    *marketdata.Service
	log       zerolog.Logger
}

// NewHandler creates an optimization handler.
func NewHandler(optimizer *Optimizer, market *marketdata.Service, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		market:    market,
		log:       log.With().Str("module", "optimization_handlers").Logger(),
	}
}

// RegisterRoutes registers the portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
		r.Post("/analyze", h.HandleAnalyze)
	})
}

// OptimizeRequest selects the symbols and objective.
type OptimizeRequest struct {
	Symbols []string `json:"symbols"`
	Method  Method   `json:"method"`
	Period  string   `json:"period"`
}

// HandleOptimize runs mean-variance optimization over live return data.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols are required")
		return
	}
	if req.Method == "" {
		req.Method = MethodSharpe
	}

	matrix, err := h.market.BuildReturnsMatrix(r.Context(), req.Symbols, req.Period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.optimizer.Optimize(matrix, req.Method)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// AnalyzeRequest carries the portfolio to analyze.
type AnalyzeRequest struct {
	Holdings []domain.Holding `json:"holdings"`
	Period   string           `json:"period"`
}

// AssetMetrics is the standalone profile of one holding.
type AssetMetrics struct {
	Symbol      string  `json:"symbol"`
	Weight      float64 `json:"weight"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	VaR95       float64 `json:"var_95"`
}

// AnalyzeResponse bundles current and optimal portfolio views.
type AnalyzeResponse struct {
	CurrentMetrics RiskMetrics    `json:"current_metrics"`
	AssetMetrics   []AssetMetrics `json:"asset_metrics"`
	Optimal        Result         `json:"optimal"`
	Correlation    [][]float64    `json:"correlation_matrix"`
	Symbols        []string       `json:"symbols"`
}

// HandleAnalyze computes metrics for the current weights, per-asset
// profiles and the optimal sharpe allocation in one call.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Holdings) == 0 {
		h.writeError(w, http.StatusBadRequest, "holdings are required")
		return
	}

	symbols := make([]string, 0, len(req.Holdings))
	var totalValue float64
	for _, holding := range req.Holdings {
		if holding.CurrentValue <= 0 {
			h.writeError(w, http.StatusBadRequest, "holding values must be positive")
			return
		}
		symbols = append(symbols, holding.Symbol)
		totalValue += holding.CurrentValue
	}

	matrix, err := h.market.BuildReturnsMatrix(r.Context(), symbols, req.Period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Weights cover only the symbols that survived the fetch, renormalized.
	var coveredValue float64
	for _, holding := range req.Holdings {
		if contains(matrix.Symbols, holding.Symbol) {
			coveredValue += holding.CurrentValue
		}
	}
	weights := make(domain.PortfolioWeights, len(matrix.Symbols))
	for _, holding := range req.Holdings {
		if contains(matrix.Symbols, holding.Symbol) {
			weights[holding.Symbol] = holding.CurrentValue / coveredValue
		}
	}

	current, err := h.optimizer.CalculateMetrics(matrix, weights)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	assetMetrics := make([]AssetMetrics, 0, len(matrix.Symbols))
	for _, symbol := range matrix.Symbols {
		returns := matrix.Series(symbol)
		vol := formulas.AnnualizedVolatility(returns)
		metrics := AssetMetrics{
			Symbol:     symbol,
			Weight:     weights[symbol],
			Volatility: vol,
			VaR95:      formulas.Percentile(returns, 5),
		}
		if sharpe := formulas.CalculateSharpeRatio(returns, h.optimizer.riskFreeRate, formulas.TradingDaysPerYear); sharpe != nil {
			metrics.SharpeRatio = *sharpe
		}
		metrics.MaxDrawdown = formulas.MaxDrawdownFromReturns(returns)
		assetMetrics = append(assetMetrics, metrics)
	}

	optimal, err := h.optimizer.Optimize(matrix, MethodSharpe)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	correlation := correlationMatrix(matrix)

	h.writeJSON(w, http.StatusOK, AnalyzeResponse{
		CurrentMetrics: current,
		AssetMetrics:   assetMetrics,
		Optimal:        optimal,
		Correlation:    correlation,
		Symbols:        matrix.Symbols,
	})
}

func correlationMatrix(matrix domain.ReturnsMatrix) [][]float64 {
	n := len(matrix.Symbols)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		out[i][i] = 1
		for j := 0; j < i; j++ {
			rho := formulas.Correlation(matrix.Series(matrix.Symbols[i]), matrix.Series(matrix.Symbols[j]))
			out[i][j] = rho
			out[j][i] = rho
		}
	}
	return out
}

func contains(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
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
