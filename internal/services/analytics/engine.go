package analytics

import (
	"errors"
	"math"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/findosh/quantdesk/internal/quant"
	"github.com/shopspring/decimal"
)

// Trailing windows for position metrics, in periods
const (
	weekPeriods    = 5
	monthPeriods   = 21
	shortVolWindow = 30
	longVolWindow  = 90
)

// Engine turns series into metrics and decides which metrics are absent
type Engine struct {
	periodsPerYear int
}

// NewEngine creates a metrics engine. Callers that pass no period count are
// annualized as daily series.
func NewEngine() *Engine {
	return &Engine{periodsPerYear: quant.TradingDaysPerYear}
}

func (e *Engine) periods(periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		return float64(e.periodsPerYear)
	}
	return float64(periodsPerYear)
}

// SharpeRatio is the annualized mean excess return over the annualized
// volatility of the raw returns. The per-period risk-free rate is annualRf
// spread evenly over periodsPerYear; a non-positive periodsPerYear means 252.
// Returns 0 for empty input or zero volatility.
func (e *Engine) SharpeRatio(returns []float64, annualRf float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}

	ppy := e.periods(periodsPerYear)
	avgExcess := quant.Mean(excessReturns(returns, annualRf/ppy)) * ppy
	stdDev := quant.StdDev(returns) * math.Sqrt(ppy)
	if stdDev == 0 {
		return 0
	}
	return avgExcess / stdDev
}

// SortinoRatio is the annualized mean excess return over the annualized
// deviation of the negative excess returns. Returns 0 when no period falls
// below the risk-free rate or the downside deviation is zero.
func (e *Engine) SortinoRatio(returns []float64, annualRf float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}

	ppy := e.periods(periodsPerYear)
	excess := excessReturns(returns, annualRf/ppy)

	downside := make([]float64, 0, len(excess))
	for _, r := range excess {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}

	downsideDev := quant.StdDev(downside) * math.Sqrt(ppy)
	if downsideDev == 0 {
		return 0
	}
	return quant.Mean(excess) * ppy / downsideDev
}

// Summarize aggregates P&L over caller-supplied positions. Percentages are
// zero when their denominator is not positive.
func (e *Engine) Summarize(positions []models.Position) models.PortfolioSummary {
	hundred := decimal.NewFromInt(100)

	var s models.PortfolioSummary
	for i := range positions {
		p := &positions[i]
		s.TotalValue = s.TotalValue.Add(p.CurrentValue)
		s.TotalCost = s.TotalCost.Add(p.CostBasis)
		s.DailyPnL = s.DailyPnL.Add(p.DailyPnL())
	}

	s.TotalPnL = s.TotalValue.Sub(s.TotalCost)
	if s.TotalCost.IsPositive() {
		s.TotalPnLPercent = s.TotalPnL.Div(s.TotalCost).Mul(hundred).Round(2)
	}
	if s.TotalValue.IsPositive() {
		s.DailyPnLPercent = s.DailyPnL.Div(s.TotalValue).Mul(hundred).Round(2)
	}

	return s
}

// BenchmarkSeries pairs portfolio values with benchmark closes on the
// timestamps both series cover
type BenchmarkSeries struct {
	Portfolio []float64
	Benchmark []float64
}

// SeriesInput is everything RiskMetrics needs. A nil Values slice with
// Available false means the value series could not be built.
type SeriesInput struct {
	Values         []float64
	Available      bool
	Benchmark      *BenchmarkSeries // nil when the benchmark is unavailable
	PortfolioValue float64          // current value used to size VaR
	RiskFreeRate   float64
	Confidence     float64
	PeriodsPerYear int               // bars per year of the series; 0 means daily
	Flows          quant.PeriodFlows // external flows by series index, for TWR
	CashFlows      []models.CashFlow // dated flows, for IRR
}

// RiskMetrics computes the series metrics of a portfolio. When the value
// series is unavailable every series metric is absent; IRR depends only on
// the supplied cash flows.
func (e *Engine) RiskMetrics(in SeriesInput) models.RiskMetrics {
	m := models.RiskMetrics{
		Volatility:   models.Absent(),
		SharpeRatio:  models.Absent(),
		SortinoRatio: models.Absent(),
		Beta:         models.Absent(),
		MaxDrawdown:  models.Absent(),
		VaR95:        models.Absent(),
		TWR:          models.Absent(),
		IRR:          e.irr(in.CashFlows),
	}
	if !in.Available {
		return m
	}

	returns := quant.Returns(in.Values)

	if len(returns) > 0 {
		m.SharpeRatio = models.MetricOf(e.SharpeRatio(returns, in.RiskFreeRate, in.PeriodsPerYear))
		m.SortinoRatio = models.MetricOf(e.SortinoRatio(returns, in.RiskFreeRate, in.PeriodsPerYear))
	}
	m.Volatility = models.MetricOf(e.volatility(returns, in.PeriodsPerYear))
	m.MaxDrawdown = maxDrawdown(in.Values)
	m.VaR95 = models.MetricOf(quant.PercentileVaR(returns, e.varBase(in), in.Confidence))
	m.TWR = models.MetricOf(quant.TimeWeightedReturn(in.Values, in.Flows))
	m.Beta = beta(in.Benchmark)

	return m
}

// PositionInput is everything PositionMetrics needs for one holding
type PositionInput struct {
	Closes     []float64
	Available  bool
	Benchmark  *BenchmarkSeries
	Value      float64 // position value used to size VaR
	Confidence float64

	PeriodsPerYear int // 0 means daily
}

// PositionMetrics computes trailing returns, volatility windows, beta, VaR
// and drawdown for one holding. Each metric is absent on its own when its
// window is not covered by the series.
func (e *Engine) PositionMetrics(in PositionInput) models.PositionMetrics {
	m := models.PositionMetrics{
		DailyReturn:   models.Absent(),
		WeeklyReturn:  models.Absent(),
		MonthlyReturn: models.Absent(),
		Volatility30d: models.Absent(),
		Volatility90d: models.Absent(),
		Beta:          models.Absent(),
		VaR95:         models.Absent(),
		MaxDrawdown:   models.Absent(),
	}
	if !in.Available {
		return m
	}

	m.DailyReturn = trailing(in.Closes, 1)
	m.WeeklyReturn = trailing(in.Closes, weekPeriods)
	m.MonthlyReturn = trailing(in.Closes, monthPeriods)

	returns := quant.Returns(in.Closes)
	m.Volatility30d = e.windowVolatility(returns, shortVolWindow, in.PeriodsPerYear)
	m.Volatility90d = e.windowVolatility(returns, longVolWindow, in.PeriodsPerYear)

	if len(returns) > 0 && in.Value > 0 {
		m.VaR95 = models.MetricOf(quant.PercentileVaR(returns, in.Value, in.Confidence))
	}
	m.MaxDrawdown = maxDrawdown(in.Closes)
	m.Beta = beta(in.Benchmark)

	return m
}

func (e *Engine) irr(flows []models.CashFlow) models.Metric {
	if len(flows) == 0 {
		return models.Absent()
	}
	return models.MetricOf(quant.MoneyWeightedReturn(flows, 0.1))
}

func (e *Engine) varBase(in SeriesInput) float64 {
	if in.PortfolioValue > 0 || len(in.Values) == 0 {
		return in.PortfolioValue
	}
	return in.Values[len(in.Values)-1]
}

func excessReturns(returns []float64, periodRf float64) []float64 {
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodRf
	}
	return excess
}

func maxDrawdown(values []float64) models.Metric {
	mdd, err := quant.MaxDrawdown(values)
	if errors.Is(err, quant.ErrZeroPeak) {
		return models.Absent()
	}
	return models.MetricOf(mdd)
}

// volatility annualizes the population deviation of returns by periodsPerYear
func (e *Engine) volatility(returns []float64, periodsPerYear int) float64 {
	return quant.Volatility(returns, false) * math.Sqrt(e.periods(periodsPerYear))
}

func beta(b *BenchmarkSeries) models.Metric {
	if b == nil {
		return models.Absent()
	}
	rp, rb, err := quant.PairedReturns(b.Portfolio, b.Benchmark)
	if err != nil {
		return models.Absent()
	}
	v, err := quant.Beta(rp, rb)
	if err != nil {
		return models.Absent()
	}
	return models.MetricOf(v)
}

func trailing(closes []float64, periods int) models.Metric {
	r, ok := quant.TrailingReturn(closes, periods)
	if !ok {
		return models.Absent()
	}
	return models.MetricOf(r)
}

func (e *Engine) windowVolatility(returns []float64, window, periodsPerYear int) models.Metric {
	if len(returns) < window {
		return models.Absent()
	}
	return models.MetricOf(e.volatility(quant.Tail(returns, window), periodsPerYear))
}
