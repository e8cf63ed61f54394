package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// YahooConfig holds Yahoo Finance client configuration
type YahooConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 for unlimited
}

// YahooProvider reads quotes, history and ticker metadata from the Yahoo
// Finance v8 chart API. Outbound requests share one rate limiter.
type YahooProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(cfg YahooConfig) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &YahooProvider{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name identifies the provider in logs
func (y *YahooProvider) Name() string {
	return "yahoo"
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	ExchangeName       string   `json:"exchangeName"`
	FullExchangeName   string   `json:"fullExchangeName"`
	InstrumentType     string   `json:"instrumentType"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	RegularMarketPrice float64  `json:"regularMarketPrice"`
	RegularMarketTime  int64    `json:"regularMarketTime"`
	ChartPreviousClose float64  `json:"chartPreviousClose"`
	PreviousClose      float64  `json:"previousClose"`
	FiftyTwoWeekHigh   *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    *float64 `json:"fiftyTwoWeekLow"`
}

// Quote takes the latest price from the chart metadata and the prior close
// from the last two daily bars.
func (y *YahooProvider) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	result, err := y.chart(ctx, ticker, models.Range5Day, models.Interval1Day)
	if err != nil {
		return nil, err
	}

	bars := result.bars()
	price := result.Meta.RegularMarketPrice
	prior := result.Meta.PreviousClose
	if n := len(bars); n > 0 {
		if price == 0 {
			price = bars[n-1].Close
		}
		if n > 1 {
			prior = bars[n-2].Close
		}
	}
	if prior == 0 {
		prior = result.Meta.ChartPreviousClose
	}
	if price == 0 {
		return nil, ErrNoData
	}

	q := &models.Quote{
		Price:      decimal.NewFromFloat(price),
		PriorClose: decimal.NewFromFloat(prior),
		Currency:   result.Meta.Currency,
	}
	if result.Meta.RegularMarketTime > 0 {
		q.Timestamp = time.Unix(result.Meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}

// History returns OHLCV bars for ticker over rng at interval
func (y *YahooProvider) History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error) {
	result, err := y.chart(ctx, ticker, rng, interval)
	if err != nil {
		return nil, err
	}

	bars := result.bars()
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	return &models.PriceSeries{Ticker: ticker, Range: rng, Interval: interval, Bars: bars}, nil
}

// Info returns the descriptive fields the chart metadata carries
func (y *YahooProvider) Info(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	result, err := y.chart(ctx, ticker, models.Range1Day, models.Interval1Day)
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	exchange := meta.FullExchangeName
	if exchange == "" {
		exchange = meta.ExchangeName
	}

	return &models.TickerInfo{
		Ticker:           ticker,
		Name:             name,
		Exchange:         exchange,
		InstrumentType:   meta.InstrumentType,
		Currency:         meta.Currency,
		FiftyTwoWeekHigh: null.FloatFromPtr(meta.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  null.FloatFromPtr(meta.FiftyTwoWeekLow),
	}, nil
}

func (y *YahooProvider) chart(ctx context.Context, ticker, rng, interval string) (*chartResult, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		y.baseURL, url.PathEscape(ticker), url.QueryEscape(rng), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if y.userAgent != "" {
		req.Header.Set("User-Agent", y.userAgent)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s: %w", chart.Chart.Error.Code, chart.Chart.Error.Description, ErrNoData)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrNoData)
	}

	return &chart.Chart.Result[0], nil
}

// bars converts the columnar chart payload into bars. Rows without a close
// (holidays, halted sessions, partial rows) are skipped.
func (r *chartResult) bars() []models.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}

	q := r.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		bar := models.Bar{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: int64(at(q.Volume, i)),
		}
		if !bar.HasClose() {
			continue
		}
		bars = append(bars, bar)
	}
	return bars
}

func at(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return 0
	}
	return *xs[i]
}
