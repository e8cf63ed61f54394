package models

import (
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HasClose reports whether the bar carries a usable close. Provider rows with
// a null or non-positive close are not observations.
func (b Bar) HasClose() bool {
	return b.Close > 0 && !math.IsInf(b.Close, 0)
}

// PriceSeries is an ordered run of bars for one ticker.
// Timestamps are strictly increasing; gaps (missing sessions) are not filled.
type PriceSeries struct {
	Ticker   string `json:"ticker"`
	Range    string `json:"range"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"data"`
}

// Len returns the number of bars
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns the close column
func (s *PriceSeries) Closes() []float64 {
	if s == nil {
		return nil
	}
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Quote is the current price of a ticker together with the prior close
type Quote struct {
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	PriorClose    decimal.Decimal `json:"prior_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Currency      string          `json:"currency"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TickerInfo holds descriptive fields for a ticker. Numeric fields the provider
// does not report are null.
type TickerInfo struct {
	Ticker           string     `json:"ticker"`
	Name             string     `json:"name"`
	Exchange         string     `json:"exchange,omitempty"`
	InstrumentType   string     `json:"instrument_type,omitempty"`
	Currency         string     `json:"currency"`
	Sector           string     `json:"sector,omitempty"`
	Industry         string     `json:"industry,omitempty"`
	MarketCap        null.Float `json:"market_cap"`
	PE               null.Float `json:"pe"`
	EPS              null.Float `json:"eps"`
	DividendYield    null.Float `json:"dividend_yield"`
	Beta             null.Float `json:"beta"`
	FiftyTwoWeekHigh null.Float `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  null.Float `json:"fifty_two_week_low"`
}

// Conversion is the result of converting an amount between currencies
type Conversion struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Rate   decimal.Decimal `json:"rate"`
	Result decimal.Decimal `json:"result"`
}

// CashFlow is a dated external flow. Negative amounts are contributions,
// positive amounts are withdrawals or the terminal value.
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// History range and interval vocabulary
const (
	Range1Day   = "1d"
	Range5Day   = "5d"
	Range1Month = "1mo"
	Range6Month = "6mo"
	Range1Year  = "1y"
	Range5Year  = "5y"

	Interval1Min  = "1m"
	Interval5Min  = "5m"
	Interval1Hour = "1h"
	Interval1Day  = "1d"
)

// AllRanges returns the supported history ranges, shortest first
func AllRanges() []string {
	return []string{Range1Day, Range5Day, Range1Month, Range6Month, Range1Year, Range5Year}
}

// AllIntervals returns the supported bar intervals, finest first
func AllIntervals() []string {
	return []string{Interval1Min, Interval5Min, Interval1Hour, Interval1Day}
}

// IsValidRange reports whether r is a supported history range
func IsValidRange(r string) bool {
	for _, v := range AllRanges() {
		if v == r {
			return true
		}
	}
	return false
}

// IsValidInterval reports whether i is a supported bar interval
func IsValidInterval(i string) bool {
	for _, v := range AllIntervals() {
		if v == i {
			return true
		}
	}
	return false
}

// IsIntraday returns true for intervals finer than one trading day
func IsIntraday(interval string) bool {
	return interval == Interval1Min || interval == Interval5Min || interval == Interval1Hour
}

// GetRangeStartDate calculates the first instant covered by a history range
func GetRangeStartDate(rng string, now time.Time) time.Time {
	switch rng {
	case Range1Day:
		return now.AddDate(0, 0, -1)
	case Range5Day:
		return now.AddDate(0, 0, -5)
	case Range1Month:
		return now.AddDate(0, -1, 0)
	case Range6Month:
		return now.AddDate(0, -6, 0)
	case Range1Year:
		return now.AddDate(-1, 0, 0)
	case Range5Year:
		return now.AddDate(-5, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// PeriodsPerYear returns the number of bars of interval in a trading year of
// 252 sessions of 6.5 hours. Hourly bars start on the half hour, so a session
// has seven of them.
func PeriodsPerYear(interval string) int {
	switch interval {
	case Interval1Min:
		return 252 * 390
	case Interval5Min:
		return 252 * 78
	case Interval1Hour:
		return 252 * 7
	default:
		return 252
	}
}

// GetIntervalDuration returns the spacing between bars of an interval
func GetIntervalDuration(interval string) time.Duration {
	switch interval {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval1Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
