// Package handlers provides HTTP request handlers
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/findosh/quantdesk/internal/config"
	"github.com/findosh/quantdesk/internal/models"
	"github.com/findosh/quantdesk/internal/services/analytics"
	"github.com/findosh/quantdesk/internal/services/auth"
	"github.com/findosh/quantdesk/internal/services/importer"
	"github.com/findosh/quantdesk/internal/services/marketdata"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// MarketData is the market data surface the handlers need
type MarketData interface {
	Quote(ctx context.Context, ticker string) (*models.Quote, error)
	Quotes(ctx context.Context, tickers []string) (map[string]*models.Quote, map[string]error)
	History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error)
	Info(ctx context.Context, ticker string) (*models.TickerInfo, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*models.Conversion, error)
	InvalidateTicker(ctx context.Context, ticker string) error
	Ping(ctx context.Context) error
}

// Analytics computes metrics for submitted portfolios and positions
type Analytics interface {
	PortfolioMetrics(ctx context.Context, req *models.PortfolioMetricsRequest) (*models.PortfolioMetrics, error)
	PositionMetrics(ctx context.Context, ticker string, req *models.PositionMetricsRequest) (*models.PositionMetrics, error)
}

// Handler contains all HTTP handlers and dependencies
type Handler struct {
	cfg         *config.Config
	market      MarketData
	analytics   Analytics
	authService *auth.Service
	importer    *importer.Service
}

// New creates a new handler with all dependencies
func New(cfg *config.Config, market MarketData, analytics Analytics, authService *auth.Service) *Handler {
	return &Handler{
		cfg:         cfg,
		market:      market,
		analytics:   analytics,
		authService: authService,
		importer:    importer.NewService(),
	}
}

// jsonResponse writes v as a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

// jsonError writes a JSON error response
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		h.jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// serviceError maps a service error to an HTTP status. Validation errors
// are the caller's fault; unavailable data is reported as not found.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, marketdata.ErrInvalidRequest), errors.Is(err, analytics.ErrInvalidRequest):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, marketdata.ErrDataUnavailable):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}
