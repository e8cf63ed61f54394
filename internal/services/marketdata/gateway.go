// Package marketdata fronts the upstream market data provider with a TTL cache.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/findosh/quantdesk/internal/cache"
	"github.com/findosh/quantdesk/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrDataUnavailable is returned when the provider fails, times out or
	// returns nothing usable. Unavailable results are never cached.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInvalidRequest is returned for tickers, ranges or intervals outside
	// the supported vocabulary
	ErrInvalidRequest = errors.New("invalid market data request")
)

// Cache lifetimes per kind of data
const (
	QuoteTTL   = 30 * time.Second
	FXTTL      = time.Hour
	historyTTL = 30 * time.Minute
)

// HistoryTTL returns how long a history series for rng stays cached.
// Longer ranges change less between fetches and live longer.
func HistoryTTL(rng string) time.Duration {
	switch rng {
	case models.Range1Day:
		return 5 * time.Minute
	case models.Range5Day:
		return 15 * time.Minute
	case models.Range1Month:
		return 30 * time.Minute
	case models.Range6Month:
		return time.Hour
	case models.Range1Year:
		return 2 * time.Hour
	case models.Range5Year:
		return 4 * time.Hour
	default:
		return historyTTL
	}
}

// QuoteKey is the cache key for a ticker's quote
func QuoteKey(ticker string) string {
	return "quote:" + ticker
}

// HistoryKey is the cache key for a ticker's history over rng at interval
func HistoryKey(ticker, rng, interval string) string {
	return fmt.Sprintf("history:%s:%s:%s", ticker, rng, interval)
}

// FXKey is the cache key for a currency pair rate
func FXKey(base, quote string) string {
	return fmt.Sprintf("fx:%s:%s", base, quote)
}

// Gateway serves quotes, history and FX rates cache-aside: a live cache entry
// is returned as is, otherwise the provider is called under a timeout and a
// successful result is written back with its kind's TTL. Concurrent misses for
// the same key may each reach the provider; the last write wins.
type Gateway struct {
	provider Provider
	store    cache.Store
	logger   zerolog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewGateway creates a new market data gateway
func NewGateway(provider Provider, store cache.Store, logger zerolog.Logger, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Gateway{
		provider: provider,
		store:    store,
		logger:   logger.With().Str("component", "marketdata").Str("provider", provider.Name()).Logger(),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Quote returns the current quote for ticker
func (g *Gateway) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}

	key := QuoteKey(ticker)
	if q, ok := lookup[models.Quote](ctx, g, key); ok {
		return q, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q, err := g.provider.Quote(fetchCtx, ticker)
	if err != nil {
		return nil, g.unavailable("quote", key, err)
	}
	if q == nil || !q.Price.IsPositive() {
		return nil, g.unavailable("quote", key, ErrNoData)
	}

	completeQuote(q, ticker, g.now())
	g.remember(ctx, key, q, QuoteTTL)

	return q, nil
}

// Quotes fetches quotes for multiple tickers concurrently. Tickers that fail
// are reported in the error map; the rest are returned.
func (g *Gateway) Quotes(ctx context.Context, tickers []string) (map[string]*models.Quote, map[string]error) {
	quotes := make(map[string]*models.Quote)
	errs := make(map[string]error)
	var wg sync.WaitGroup
	var mu sync.Mutex

	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		t := NormalizeTicker(ticker)
		if seen[t] {
			continue
		}
		seen[t] = true

		wg.Add(1)
		go func(t string) {
			defer wg.Done()

			quote, err := g.Quote(ctx, t)
			mu.Lock()
			if err != nil {
				errs[t] = err
			} else {
				quotes[t] = quote
			}
			mu.Unlock()
		}(t)
	}

	wg.Wait()

	return quotes, errs
}

// History returns the price series of ticker over rng sampled at interval
func (g *Gateway) History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}
	if !models.IsValidRange(rng) {
		return nil, fmt.Errorf("%w: range %q", ErrInvalidRequest, rng)
	}
	if !models.IsValidInterval(interval) {
		return nil, fmt.Errorf("%w: interval %q", ErrInvalidRequest, interval)
	}

	key := HistoryKey(ticker, rng, interval)
	if s, ok := lookup[models.PriceSeries](ctx, g, key); ok {
		return s, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	series, err := g.provider.History(fetchCtx, ticker, rng, interval)
	if err != nil {
		return nil, g.unavailable("history", key, err)
	}
	if series == nil {
		return nil, g.unavailable("history", key, ErrNoData)
	}

	series.Ticker = ticker
	series.Range = rng
	series.Interval = interval
	series.Bars = normalizeBars(series.Bars)
	if len(series.Bars) == 0 {
		return nil, g.unavailable("history", key, ErrNoData)
	}

	g.remember(ctx, key, series, HistoryTTL(rng))

	return series, nil
}

// Info returns descriptive data for ticker. Info is not cached.
func (g *Gateway) Info(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	info, err := g.provider.Info(fetchCtx, ticker)
	if err != nil {
		return nil, g.unavailable("info", ticker, err)
	}
	if info == nil {
		return nil, g.unavailable("info", ticker, ErrNoData)
	}

	info.Ticker = ticker
	if info.Name == "" {
		info.Name = ticker
	}
	if info.Currency == "" {
		info.Currency = CurrencyFromTicker(ticker)
	}
	return info, nil
}

// FXRate returns how many units of quote one unit of base buys
func (g *Gateway) FXRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base = NormalizeTicker(base)
	quote = NormalizeTicker(quote)
	if base == "" || quote == "" {
		return decimal.Zero, fmt.Errorf("%w: empty currency", ErrInvalidRequest)
	}
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	key := FXKey(base, quote)
	if rate, ok := lookup[decimal.Decimal](ctx, g, key); ok {
		return *rate, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q, err := g.provider.Quote(fetchCtx, FXPair(base, quote))
	if err != nil {
		return decimal.Zero, g.unavailable("fx", key, err)
	}
	if q == nil || !q.Price.IsPositive() {
		return decimal.Zero, g.unavailable("fx", key, ErrNoData)
	}

	g.remember(ctx, key, q.Price, FXTTL)

	return q.Price, nil
}

// Convert converts amount from one currency to another at the current rate
func (g *Gateway) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*models.Conversion, error) {
	rate, err := g.FXRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &models.Conversion{
		Amount: amount,
		From:   NormalizeTicker(from),
		To:     NormalizeTicker(to),
		Rate:   rate,
		Result: amount.Mul(rate),
	}, nil
}

// InvalidateQuote drops the cached quote for ticker
func (g *Gateway) InvalidateQuote(ctx context.Context, ticker string) error {
	return g.store.Delete(ctx, QuoteKey(NormalizeTicker(ticker)))
}

// InvalidateHistory drops one cached history series
func (g *Gateway) InvalidateHistory(ctx context.Context, ticker, rng, interval string) error {
	return g.store.Delete(ctx, HistoryKey(NormalizeTicker(ticker), rng, interval))
}

// InvalidateTicker drops the cached quote and every cached history series of ticker
func (g *Gateway) InvalidateTicker(ctx context.Context, ticker string) error {
	if err := g.InvalidateQuote(ctx, ticker); err != nil {
		return err
	}
	for _, rng := range models.AllRanges() {
		for _, interval := range models.AllIntervals() {
			if err := g.InvalidateHistory(ctx, ticker, rng, interval); err != nil {
				return err
			}
		}
	}
	return nil
}

// Ping checks the cache store connectivity
func (g *Gateway) Ping(ctx context.Context) error {
	return cache.Ping(ctx, g.store)
}

// lookup returns a cached value. Store faults and undecodable entries are
// logged and reported as a miss.
func lookup[T any](ctx context.Context, g *Gateway, key string) (*T, bool) {
	v, err := cache.GetJSON[T](ctx, g.store, key)
	if err == nil {
		g.logger.Debug().Str("key", key).Msg("cache hit")
		return v, true
	}
	if !errors.Is(err, cache.ErrMiss) {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
	}
	return nil, false
}

// remember writes v through to the cache. A failed write is logged and the
// fetched value is still returned to the caller.
func (g *Gateway) remember(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.SetJSON(ctx, g.store, key, v, ttl); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (g *Gateway) unavailable(kind, key string, err error) error {
	g.logger.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("provider fetch failed")
	return fmt.Errorf("%w: %s %s: %w", ErrDataUnavailable, kind, key, err)
}

// normalizeBars orders bars by time, drops bars without a close and keeps the
// last bar for any repeated timestamp.
func normalizeBars(bars []models.Bar) []models.Bar {
	sorted := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.HasClose() {
			sorted = append(sorted, b)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
