package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/findosh/quantdesk/internal/cache"
	"github.com/findosh/quantdesk/internal/config"
	"github.com/findosh/quantdesk/internal/logging"
	"github.com/findosh/quantdesk/internal/models"
	"github.com/findosh/quantdesk/internal/services/analytics"
	"github.com/findosh/quantdesk/internal/services/auth"
	"github.com/findosh/quantdesk/internal/services/marketdata"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMarket struct {
	quotes      map[string]*models.Quote
	pingErr     error
	invalidated []string
}

func (f *fakeMarket) Quote(_ context.Context, ticker string) (*models.Quote, error) {
	ticker = marketdata.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", marketdata.ErrInvalidRequest)
	}
	if q, ok := f.quotes[ticker]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: quote %s", marketdata.ErrDataUnavailable, ticker)
}

func (f *fakeMarket) Quotes(ctx context.Context, tickers []string) (map[string]*models.Quote, map[string]error) {
	quotes := make(map[string]*models.Quote)
	errs := make(map[string]error)
	for _, t := range tickers {
		q, err := f.Quote(ctx, t)
		if err != nil {
			errs[marketdata.NormalizeTicker(t)] = err
			continue
		}
		quotes[marketdata.NormalizeTicker(t)] = q
	}
	return quotes, errs
}

func (f *fakeMarket) History(_ context.Context, ticker, rng, interval string) (*models.PriceSeries, error) {
	if !models.IsValidRange(rng) || !models.IsValidInterval(interval) {
		return nil, marketdata.ErrInvalidRequest
	}
	return nil, marketdata.ErrDataUnavailable
}

func (f *fakeMarket) Info(context.Context, string) (*models.TickerInfo, error) {
	return nil, errors.New("boom")
}

func (f *fakeMarket) Convert(context.Context, decimal.Decimal, string, string) (*models.Conversion, error) {
	return nil, marketdata.ErrDataUnavailable
}

func (f *fakeMarket) InvalidateTicker(_ context.Context, ticker string) error {
	f.invalidated = append(f.invalidated, ticker)
	return nil
}

func (f *fakeMarket) Ping(context.Context) error {
	return f.pingErr
}

type fakeAnalytics struct{}

func (fakeAnalytics) PortfolioMetrics(context.Context, *models.PortfolioMetricsRequest) (*models.PortfolioMetrics, error) {
	return nil, analytics.ErrInvalidRequest
}

func (fakeAnalytics) PositionMetrics(context.Context, string, *models.PositionMetricsRequest) (*models.PositionMetrics, error) {
	return nil, analytics.ErrInvalidRequest
}

func newFakeServer(t *testing.T, market *fakeMarket) http.Handler {
	t.Helper()
	cfg := config.NewDefaultConfig()
	return New(cfg, market, fakeAnalytics{}, auth.NewService(cfg.Auth)).Routes(logging.Nop())
}

// newServer wires the real gateway, mock provider and analytics service
func newServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	gateway := marketdata.NewGateway(marketdata.NewMockProvider(), store, logging.Nop(), 0)
	svc := analytics.NewService(gateway, analytics.NewEngine(), analytics.DefaultDefaults(), logging.Nop())
	return New(cfg, gateway, svc, auth.NewService(cfg.Auth)).Routes(logging.Nop())
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestErrorMapping(t *testing.T) {
	h := newFakeServer(t, &fakeMarket{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown quote", http.MethodGet, "/api/quotes/ZZZZ", "", http.StatusNotFound},
		{"provider fault", http.MethodGet, "/api/quotes/AAPL/info", "", http.StatusInternalServerError},
		{"bad range", http.MethodPost, "/api/history", `{"ticker":"AAPL","range":"3y"}`, http.StatusBadRequest},
		{"history unavailable", http.MethodPost, "/api/history", `{"ticker":"AAPL"}`, http.StatusNotFound},
		{"history without ticker", http.MethodPost, "/api/history", `{"range":"1y"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/history", `{"ticker":`, http.StatusBadRequest},
		{"invalid metrics request", http.MethodPost, "/api/calculations/portfolio", `{}`, http.StatusBadRequest},
		{"invalid position request", http.MethodPost, "/api/calculations/position/AAPL", `{}`, http.StatusBadRequest},
		{"convert bad amount", http.MethodPost, "/api/calculations/convert?amount=abc&from=USD&to=EUR", "", http.StatusBadRequest},
		{"convert missing currency", http.MethodPost, "/api/calculations/convert?amount=10&from=USD", "", http.StatusBadRequest},
		{"convert unavailable", http.MethodPost, "/api/calculations/convert?amount=10&from=USD&to=XXX", "", http.StatusNotFound},
		{"token without auth", http.MethodPost, "/api/auth/token", `{}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode(t, rec), "error")
		})
	}
}

func TestAPIQuotes_PartialFailure(t *testing.T) {
	market := &fakeMarket{quotes: map[string]*models.Quote{
		"AAPL": {Ticker: "AAPL", Price: decimal.NewFromInt(175), Currency: "USD"},
	}}
	h := newFakeServer(t, market)

	rec := do(h, http.MethodPost, "/api/quotes", `{"tickers":["aapl","ZZZZ","AAPL"," "]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QuotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, "AAPL", resp.Quotes[0].Ticker)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "ZZZZ", resp.Errors[0].Ticker)
}

func TestAPIQuotes_Validation(t *testing.T) {
	h := newFakeServer(t, &fakeMarket{})

	rec := do(h, http.MethodPost, "/api/quotes", `{"tickers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	many := make([]string, maxBatchTickers+1)
	for i := range many {
		many[i] = fmt.Sprintf("T%d", i)
	}
	body, err := json.Marshal(QuotesRequest{Tickers: many})
	require.NoError(t, err)

	rec = do(h, http.MethodPost, "/api/quotes", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIInvalidateTicker(t *testing.T) {
	market := &fakeMarket{}
	h := newFakeServer(t, market)

	rec := do(h, http.MethodDelete, "/api/quotes/aapl/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL"}, market.invalidated)
}

func TestHealth(t *testing.T) {
	market := &fakeMarket{}
	h := newFakeServer(t, market)

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["backend"])

	market.pingErr = errors.New("connection refused")
	rec = do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["cache"], "connection refused")
}

func TestRoutes_RequestIDAndHeaders(t *testing.T) {
	h := newFakeServer(t, &fakeMarket{})

	rec := do(h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestEndToEnd_QuoteHistoryAndMetrics(t *testing.T) {
	h := newServer(t, config.NewDefaultConfig())

	rec := do(h, http.MethodGet, "/api/quotes/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode(t, rec)
	assert.Equal(t, "AAPL", quote["ticker"])
	assert.Equal(t, "USD", quote["currency"])

	rec = do(h, http.MethodPost, "/api/history", `{"ticker":"MSFT","range":"1mo","interval":"1d"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var series models.PriceSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.NotEmpty(t, series.Bars)
	assert.Equal(t, "MSFT", series.Ticker)

	rec = do(h, http.MethodPost, "/api/calculations/portfolio", `{
		"positions": [
			{"ticker": "AAPL", "quantity": 10, "current_value": 1750, "cost_basis": 1500, "daily_change": 1.5},
			{"ticker": "BND", "quantity": 20, "current_value": "1460", "cost_basis": "1500"}
		],
		"range": "6mo"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	metrics := decode(t, rec)
	assert.Equal(t, "SPY", metrics["benchmark"])
	assert.Equal(t, "EUR", metrics["base_currency"])
	assert.NotNil(t, metrics["volatility"])
	assert.NotNil(t, metrics["beta"])
	assert.Nil(t, metrics["irr"])
	assert.Greater(t, metrics["observations"], float64(100))

	rec = do(h, http.MethodPost, "/api/calculations/position/msft", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	position := decode(t, rec)
	assert.Equal(t, "MSFT", position["ticker"])
	assert.NotNil(t, position["daily_return"])

	rec = do(h, http.MethodPost, "/api/calculations/convert?amount=100&from=EUR&to=USD", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conversion := decode(t, rec)
	assert.Equal(t, "EUR", conversion["from"])
	assert.Equal(t, "108", conversion["result"])
}

func TestEndToEnd_Auth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cfg.Auth.ClientID = "dashboard"
	cfg.Auth.ClientSecretHash = string(hash)
	h := newServer(t, cfg)

	rec := do(h, http.MethodGet, "/api/quotes/AAPL", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/auth/token", `{"client_id":"dashboard","client_secret":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/auth/token", `{"client_id":"dashboard","client_secret":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode(t, rec)["access_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/quotes/AAPL", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed := httptest.NewRecorder()
	h.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	// health stays public
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestAPIImportPositions(t *testing.T) {
	h := newFakeServer(t, &fakeMarket{})

	csvBody := "ticker,quantity,current_value,cost_basis\nAAPL,10,1750,1500\nTotal,,1750,\n"
	rec := do(h, http.MethodPost, "/api/positions/import", csvBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "generic_csv", body["source"])
	assert.Equal(t, float64(1), body["skipped"])
	assert.Len(t, body["positions"], 1)

	rec = do(h, http.MethodPost, "/api/positions/import", "a,b,c\n1,2,3\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
