package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// maxMockBars bounds generated intraday series
const maxMockBars = 5000

// MockProvider generates deterministic market data for development and
// tests. The same ticker, range, interval and clock always yield the same bars.
type MockProvider struct {
	now func() time.Time
}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

// Name identifies the provider in logs
func (m *MockProvider) Name() string {
	return "mock"
}

// Known approximate prices (for realistic mock data)
var mockPrices = map[string]float64{
	"AAPL":  175.00,
	"MSFT":  375.00,
	"GOOGL": 140.00,
	"AMZN":  180.00,
	"NVDA":  475.00,
	"META":  500.00,
	"TSLA":  250.00,
	"JPM":   195.00,
	"V":     280.00,
	"JNJ":   160.00,
	"VOO":   430.00,
	"VTI":   235.00,
	"SPY":   470.00,
	"QQQ":   400.00,
	"BND":   73.00,
	"AGG":   98.00,
	"VNQ":   85.00,
	"GLD":   185.00,
}

// Units of USD per unit of currency
var mockUSDRates = map[string]float64{
	"USD": 1.00,
	"EUR": 1.08,
	"GBP": 1.27,
	"CAD": 0.74,
	"JPY": 0.0067,
	"CHF": 1.13,
	"AUD": 0.66,
}

var mockNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com, Inc.",
	"NVDA":  "NVIDIA Corporation",
	"SPY":   "SPDR S&P 500 ETF Trust",
	"QQQ":   "Invesco QQQ Trust",
	"VTI":   "Vanguard Total Stock Market ETF",
}

// Quote returns the mock price and prior close of ticker. Currency pairs
// (EURUSD=X) are priced from a fixed rate table.
func (m *MockProvider) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if base, quote, ok := parseFXPair(ticker); ok {
		rate, ok := mockFXRate(base, quote)
		if !ok {
			return nil, ErrNoData
		}
		price := decimal.NewFromFloat(rate).Round(6)
		return &models.Quote{Price: price, PriorClose: price, Currency: quote}, nil
	}

	price := m.basePrice(ticker)
	changePercent := m.change(ticker)
	prior := price.Div(decimal.NewFromInt(1).Add(changePercent.Div(decimal.NewFromInt(100))))

	return &models.Quote{
		Price:      price,
		PriorClose: prior.Round(2),
		Timestamp:  m.now().UTC(),
	}, nil
}

// History generates a random walk ending at the ticker's mock price. Daily
// bars skip weekends.
func (m *MockProvider) History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	step := models.GetIntervalDuration(interval)
	intraday := models.IsIntraday(interval)
	if !intraday {
		now = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		now = now.Truncate(step)
	}
	startDate := models.GetRangeStartDate(rng, now)

	rnd := rand.New(rand.NewSource(int64(tickerHash(ticker + "|" + interval))))
	dailyVol := 0.015
	vol := dailyVol * math.Sqrt(step.Hours()/24)

	// Walk backward from the current price
	closes := make([]float64, 0)
	dates := make([]time.Time, 0)
	price, _ := m.basePrice(ticker).Float64()
	for current := now; current.After(startDate) && len(closes) < maxMockBars; current = current.Add(-step) {
		if !intraday && (current.Weekday() == time.Saturday || current.Weekday() == time.Sunday) {
			continue
		}
		closes = append(closes, price)
		dates = append(dates, current)
		price /= 1 + rnd.NormFloat64()*vol + 0.0002
	}

	bars := make([]models.Bar, len(closes))
	for i := range closes {
		j := len(closes) - 1 - i
		c := round2(closes[j])
		open := c
		if j+1 < len(closes) {
			open = round2(closes[j+1])
		}
		bars[i] = models.Bar{
			Date:   dates[j],
			Open:   open,
			High:   round2(math.Max(open, c) * 1.005),
			Low:    round2(math.Min(open, c) * 0.995),
			Close:  c,
			Volume: 1000000 + int64(dates[j].Day()*10000),
		}
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}

	return &models.PriceSeries{Ticker: ticker, Range: rng, Interval: interval, Bars: bars}, nil
}

// Info returns descriptive mock data for ticker
func (m *MockProvider) Info(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, ok := mockNames[ticker]
	if !ok {
		name = ticker
	}
	price, _ := m.basePrice(ticker).Float64()

	return &models.TickerInfo{
		Ticker:           ticker,
		Name:             name,
		Exchange:         "MOCK",
		InstrumentType:   "EQUITY",
		Currency:         CurrencyFromTicker(ticker),
		FiftyTwoWeekHigh: null.FloatFrom(round2(price * 1.2)),
		FiftyTwoWeekLow:  null.FloatFrom(round2(price * 0.8)),
	}, nil
}

func (m *MockProvider) basePrice(ticker string) decimal.Decimal {
	if price, ok := mockPrices[ticker]; ok {
		return decimal.NewFromFloat(price)
	}

	// Generate from ticker hash
	return decimal.NewFromFloat(50.0 + float64(tickerHash(ticker)%200))
}

// change returns a percent change in [-1.5, 1.5) derived from ticker and day
func (m *MockProvider) change(ticker string) decimal.Decimal {
	hash := int(tickerHash(ticker)%1000) + m.now().Day()
	return decimal.NewFromFloat(float64(hash%300-150) / 100.0)
}

func parseFXPair(ticker string) (base, quote string, ok bool) {
	pair, found := strings.CutSuffix(ticker, "=X")
	if !found || len(pair) != 6 {
		return "", "", false
	}
	return pair[:3], pair[3:], true
}

func mockFXRate(base, quote string) (float64, bool) {
	b, okB := mockUSDRates[base]
	q, okQ := mockUSDRates[quote]
	if !okB || !okQ {
		return 0, false
	}
	return b / q, true
}

func tickerHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
