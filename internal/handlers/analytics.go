package handlers

import (
	"net/http"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// APIPortfolioMetrics returns P&L and risk metrics for a submitted portfolio.
// Metrics that cannot be computed are null.
func (h *Handler) APIPortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	var req models.PortfolioMetricsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	metrics, err := h.analytics.PortfolioMetrics(r.Context(), &req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, metrics)
}

// APIPositionMetrics returns trailing returns and risk metrics for one holding
func (h *Handler) APIPositionMetrics(w http.ResponseWriter, r *http.Request) {
	var req models.PositionMetricsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	metrics, err := h.analytics.PositionMetrics(r.Context(), chi.URLParam(r, "ticker"), &req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, metrics)
}

// APIConvert converts an amount between currencies at the current FX rate
func (h *Handler) APIConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		h.jsonError(w, "amount must be a number", http.StatusBadRequest)
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		h.jsonError(w, "from and to currencies required", http.StatusBadRequest)
		return
	}

	conversion, err := h.market.Convert(r.Context(), amount, from, to)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, conversion)
}
