// Package analytics computes portfolio and position metrics from market history.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/rs/zerolog"
)

// ErrInvalidRequest is returned when a metrics request fails validation
var ErrInvalidRequest = errors.New("invalid metrics request")

// errNoOverlap is returned when position histories share no timestamp
var errNoOverlap = errors.New("position histories do not overlap")

// HistorySource supplies price history, normally the market data gateway
type HistorySource interface {
	History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error)
}

// Defaults are the assumptions applied when a request leaves them out
type Defaults struct {
	BaseCurrency    string
	Benchmark       string
	RiskFreeRate    float64
	ConfidenceLevel float64
	Range           string
	Interval        string
}

// DefaultDefaults returns the built-in analysis assumptions
func DefaultDefaults() Defaults {
	return Defaults{
		BaseCurrency:    "EUR",
		Benchmark:       models.DefaultBenchmark,
		RiskFreeRate:    models.DefaultRiskFreeRate,
		ConfidenceLevel: models.DefaultConfidenceLevel,
		Range:           models.DefaultRange,
		Interval:        models.DefaultInterval,
	}
}

// Service orchestrates one metrics request: P&L from the submitted
// positions, then the series metrics from fetched history. Market data
// failures degrade to absent metrics and never fail the request.
type Service struct {
	history  HistorySource
	engine   *Engine
	defaults Defaults
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new analytics service
func NewService(history HistorySource, engine *Engine, defaults Defaults, logger zerolog.Logger) *Service {
	return &Service{
		history:  history,
		engine:   engine,
		defaults: defaults,
		logger:   logger.With().Str("component", "analytics").Logger(),
		now:      time.Now,
	}
}

// PortfolioMetrics computes the summary and risk metrics of a portfolio.
// The returned error is non-nil only when req is invalid.
func (s *Service) PortfolioMetrics(ctx context.Context, req *models.PortfolioMetricsRequest) (*models.PortfolioMetrics, error) {
	p, err := s.resolve(req.Benchmark, req.Range, req.Interval, req.ConfidenceLevel.Ptr())
	if err != nil {
		return nil, err
	}
	rf := s.defaults.RiskFreeRate
	if req.RiskFreeRate.Valid {
		rf = req.RiskFreeRate.Float64
		if math.IsNaN(rf) || math.IsInf(rf, 0) {
			return nil, fmt.Errorf("%w: risk free rate must be finite", ErrInvalidRequest)
		}
	}
	baseCurrency := strings.ToUpper(req.BaseCurrency)
	if baseCurrency == "" {
		baseCurrency = s.defaults.BaseCurrency
	}

	summary := s.engine.Summarize(req.Positions)
	totalValue, _ := summary.TotalValue.Float64()

	// The value series holds today's quantities at historical prices and
	// carries no flows. TWR is its chain-linked price return; dated flows
	// feed IRR only.
	in := SeriesInput{
		PortfolioValue: totalValue,
		RiskFreeRate:   rf,
		Confidence:     p.confidence,
		PeriodsPerYear: models.PeriodsPerYear(p.interval),
		CashFlows:      req.CashFlows,
	}

	tl, err := s.portfolioTimeline(ctx, req.Positions, p.rng, p.interval)
	if err != nil {
		s.logger.Warn().Err(err).Msg("portfolio value series unavailable, series metrics omitted")
	} else {
		in.Values = tl.values
		in.Available = true
		in.Benchmark = s.benchmarkSeries(ctx, tl, p)
	}

	return &models.PortfolioMetrics{
		PortfolioSummary: summary,
		RiskMetrics:      s.engine.RiskMetrics(in),
		BaseCurrency:     baseCurrency,
		Benchmark:        p.benchmark,
		Range:            p.rng,
		Interval:         p.interval,
		Observations:     len(in.Values),
		CalculatedAt:     s.now().UTC(),
	}, nil
}

// PositionMetrics computes the metrics of one holding of ticker.
// The returned error is non-nil only when the request is invalid.
func (s *Service) PositionMetrics(ctx context.Context, ticker string, req *models.PositionMetricsRequest) (*models.PositionMetrics, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	p, err := s.resolve(req.Benchmark, req.Range, req.Interval, req.ConfidenceLevel.Ptr())
	if err != nil {
		return nil, err
	}

	in := PositionInput{
		Confidence:     p.confidence,
		PeriodsPerYear: models.PeriodsPerYear(p.interval),
	}

	series, err := s.history.History(ctx, ticker, p.rng, p.interval)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("position history unavailable, metrics omitted")
	} else {
		tl := singleTimeline(series, p.interval)
		in.Closes = tl.values
		in.Available = true
		in.Value = positionValue(req, tl.values)
		in.Benchmark = s.benchmarkSeries(ctx, tl, p)
	}

	m := s.engine.PositionMetrics(in)
	m.Ticker = ticker
	m.Benchmark = p.benchmark
	m.CalculatedAt = s.now().UTC()
	return &m, nil
}

type params struct {
	benchmark  string
	rng        string
	interval   string
	confidence float64
}

func (s *Service) resolve(benchmark, rng, interval string, confidence *float64) (params, error) {
	p := params{
		benchmark:  strings.ToUpper(strings.TrimSpace(benchmark)),
		rng:        rng,
		interval:   interval,
		confidence: s.defaults.ConfidenceLevel,
	}
	if p.benchmark == "" {
		p.benchmark = s.defaults.Benchmark
	}
	if p.rng == "" {
		p.rng = s.defaults.Range
	}
	if p.interval == "" {
		p.interval = s.defaults.Interval
	}
	if confidence != nil {
		p.confidence = *confidence
	}

	if !models.IsValidRange(p.rng) {
		return p, fmt.Errorf("%w: unsupported range %q", ErrInvalidRequest, p.rng)
	}
	if !models.IsValidInterval(p.interval) {
		return p, fmt.Errorf("%w: unsupported interval %q", ErrInvalidRequest, p.interval)
	}
	if !(p.confidence > 0 && p.confidence < 1) {
		return p, fmt.Errorf("%w: confidence level must be in (0, 1)", ErrInvalidRequest)
	}
	return p, nil
}

// portfolioTimeline fetches every priced position's history concurrently and
// values the portfolio on the timestamps all histories share
func (s *Service) portfolioTimeline(ctx context.Context, positions []models.Position, rng, interval string) (*timeline, error) {
	quantities := make(map[string]float64)
	tickers := make([]string, 0, len(positions))
	for i := range positions {
		pos := &positions[i]
		if !pos.IsPriced() {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(pos.Ticker))
		if _, seen := quantities[t]; !seen {
			tickers = append(tickers, t)
		}
		qty, _ := pos.Quantity.Float64()
		quantities[t] += qty
	}
	if len(tickers) == 0 {
		return nil, errors.New("no positions with a ticker and quantity")
	}

	series := make([]*models.PriceSeries, len(tickers))
	errs := make([]error, len(tickers))
	var wg sync.WaitGroup

	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			series[i], errs[i] = s.history.History(ctx, t, rng, interval)
		}(i, ticker)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tickers[i], err)
		}
	}

	weights := make([]float64, len(tickers))
	for i, t := range tickers {
		weights[i] = quantities[t]
	}
	return alignTimelines(series, weights, interval)
}

// benchmarkSeries pairs the timeline with benchmark closes on shared
// timestamps. Nil means beta cannot be computed.
func (s *Service) benchmarkSeries(ctx context.Context, tl *timeline, p params) *BenchmarkSeries {
	bench, err := s.history.History(ctx, p.benchmark, p.rng, p.interval)
	if err != nil {
		s.logger.Warn().Err(err).Str("benchmark", p.benchmark).Msg("benchmark unavailable, beta omitted")
		return nil
	}

	closes := make(map[string]float64, bench.Len())
	for _, b := range bench.Bars {
		closes[alignKey(b.Date, p.interval)] = b.Close
	}

	out := &BenchmarkSeries{}
	for i, key := range tl.keys {
		if c, ok := closes[key]; ok {
			out.Portfolio = append(out.Portfolio, tl.values[i])
			out.Benchmark = append(out.Benchmark, c)
		}
	}
	if len(out.Portfolio) == 0 {
		s.logger.Warn().Str("benchmark", p.benchmark).Msg("benchmark shares no timestamps with the portfolio, beta omitted")
		return nil
	}
	return out
}

func positionValue(req *models.PositionMetricsRequest, closes []float64) float64 {
	if req.CurrentValue.IsPositive() {
		v, _ := req.CurrentValue.Float64()
		return v
	}
	if len(closes) == 0 {
		return 0
	}
	qty, _ := req.Quantity.Abs().Float64()
	return qty * closes[len(closes)-1]
}
