package models

import (
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Metric is a computed value that is either present (a finite float) or
// explicitly absent. Absent metrics encode as JSON null.
type Metric = null.Float

// MetricOf wraps v as a present metric. NaN and infinities are absent.
func MetricOf(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// Absent returns a metric with no value
func Absent() Metric {
	return null.Float{}
}

// Default analytics assumptions
const (
	DefaultBenchmark       = "SPY"
	DefaultRiskFreeRate    = 0.03
	DefaultConfidenceLevel = 0.95
	DefaultRange           = Range1Year
	DefaultInterval        = Interval1Day
)

// RiskMetrics are the series-derived metrics of a portfolio
type RiskMetrics struct {
	Volatility   Metric `json:"volatility"`
	SharpeRatio  Metric `json:"sharpe_ratio"`
	SortinoRatio Metric `json:"sortino_ratio"`
	Beta         Metric `json:"beta"`
	MaxDrawdown  Metric `json:"max_drawdown"`
	VaR95        Metric `json:"var_95"`
	TWR          Metric `json:"twr"`
	IRR          Metric `json:"irr"`
}

// PortfolioSummary holds the P&L aggregates computed from caller-supplied positions
type PortfolioSummary struct {
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	DailyPnLPercent decimal.Decimal `json:"daily_pnl_percent"`
}

// PortfolioMetricsRequest is a portfolio snapshot submitted for analysis
type PortfolioMetricsRequest struct {
	Positions       []Position `json:"positions"`
	BaseCurrency    string     `json:"base_currency"`
	Benchmark       string     `json:"benchmark"`
	RiskFreeRate    null.Float `json:"risk_free_rate"`
	ConfidenceLevel null.Float `json:"confidence_level"`
	Range           string     `json:"range"`
	Interval        string     `json:"interval"`
	CashFlows       []CashFlow `json:"cash_flows,omitempty"`
}

// PortfolioMetrics is the analysis result for a portfolio
type PortfolioMetrics struct {
	PortfolioSummary
	RiskMetrics
	BaseCurrency string    `json:"base_currency"`
	Benchmark    string    `json:"benchmark"`
	Range        string    `json:"range"`
	Interval     string    `json:"interval"`
	Observations int       `json:"observations"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// PositionMetricsRequest describes a single holding submitted for analysis
type PositionMetricsRequest struct {
	Quantity        decimal.Decimal `json:"quantity"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	Benchmark       string          `json:"benchmark"`
	ConfidenceLevel null.Float      `json:"confidence_level"`
	Range           string          `json:"range"`
	Interval        string          `json:"interval"`
}

// PositionMetrics is the analysis result for one holding
type PositionMetrics struct {
	Ticker        string    `json:"ticker"`
	Benchmark     string    `json:"benchmark"`
	DailyReturn   Metric    `json:"daily_return"`
	WeeklyReturn  Metric    `json:"weekly_return"`
	MonthlyReturn Metric    `json:"monthly_return"`
	Volatility30d Metric    `json:"volatility_30d"`
	Volatility90d Metric    `json:"volatility_90d"`
	Beta          Metric    `json:"beta"`
	VaR95         Metric    `json:"var_95"`
	MaxDrawdown   Metric    `json:"max_drawdown"`
	CalculatedAt  time.Time `json:"calculated_at"`
}
