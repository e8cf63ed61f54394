package handlers

import (
	"net/http"
	"strings"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/findosh/quantdesk/internal/services/marketdata"
	"github.com/go-chi/chi/v5"
)

// maxBatchTickers caps the tickers of one batch quote request
const maxBatchTickers = 50

// QuotesRequest is the body of a batch quote request
type QuotesRequest struct {
	Tickers []string `json:"tickers"`
}

// QuoteError reports a ticker whose quote could not be fetched
type QuoteError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// QuotesResponse carries the quotes found and the tickers that failed
type QuotesResponse struct {
	Quotes []*models.Quote `json:"quotes"`
	Errors []QuoteError    `json:"errors"`
}

// HistoryRequest is the body of a history request
type HistoryRequest struct {
	Ticker   string `json:"ticker"`
	Range    string `json:"range"`
	Interval string `json:"interval"`
}

// Default history window when the request leaves it out
const (
	defaultHistoryRange    = models.Range1Month
	defaultHistoryInterval = models.Interval1Day
)

// APIQuotes returns quotes for several tickers. Failed tickers are listed in
// errors and never fail the request.
func (h *Handler) APIQuotes(w http.ResponseWriter, r *http.Request) {
	var req QuotesRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		h.jsonError(w, "tickers required", http.StatusBadRequest)
		return
	}
	if len(tickers) > maxBatchTickers {
		h.jsonError(w, "too many tickers", http.StatusBadRequest)
		return
	}

	quotes, errs := h.market.Quotes(r.Context(), tickers)

	resp := QuotesResponse{
		Quotes: make([]*models.Quote, 0, len(quotes)),
		Errors: make([]QuoteError, 0, len(errs)),
	}
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = marketdata.NormalizeTicker(t)
		if seen[t] {
			continue
		}
		seen[t] = true

		if q, ok := quotes[t]; ok {
			resp.Quotes = append(resp.Quotes, q)
		} else if err, ok := errs[t]; ok {
			resp.Errors = append(resp.Errors, QuoteError{Ticker: t, Error: err.Error()})
		}
	}

	h.jsonResponse(w, r, http.StatusOK, resp)
}

// APIQuote returns a quote for a ticker
func (h *Handler) APIQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.market.Quote(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, quote)
}

// APITickerInfo returns descriptive data for a ticker
func (h *Handler) APITickerInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.market.Info(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, info)
}

// APIInvalidateTicker drops every cached quote and history series of a ticker
func (h *Handler) APIInvalidateTicker(w http.ResponseWriter, r *http.Request) {
	ticker := marketdata.NormalizeTicker(chi.URLParam(r, "ticker"))
	if ticker == "" {
		h.jsonError(w, "ticker required", http.StatusBadRequest)
		return
	}

	if err := h.market.InvalidateTicker(r.Context(), ticker); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"ticker":  ticker,
	})
}

// APIHistory returns the price history of a ticker
func (h *Handler) APIHistory(w http.ResponseWriter, r *http.Request) {
	var req HistoryRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		h.jsonError(w, "ticker required", http.StatusBadRequest)
		return
	}
	if req.Range == "" {
		req.Range = defaultHistoryRange
	}
	if req.Interval == "" {
		req.Interval = defaultHistoryInterval
	}

	series, err := h.market.History(r.Context(), req.Ticker, req.Range, req.Interval)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.jsonResponse(w, r, http.StatusOK, series)
}
