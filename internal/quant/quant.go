// Package quant implements the series arithmetic behind portfolio risk metrics.
// Every function is total on its input: empty or degenerate series produce
// documented fallback values rather than errors, except where noted.
package quant

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/findosh/quantdesk/internal/models"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily series
const TradingDaysPerYear = 252

// Newton-Raphson settings for MoneyWeightedReturn
const (
	xirrMaxIterations = 100
	xirrTolerance     = 1e-6
	daysPerYear       = 365.0
)

var (
	// ErrLengthMismatch is returned when paired series differ in length
	ErrLengthMismatch = errors.New("series length mismatch")
	// ErrZeroPeak is returned when a running peak of a value series is zero
	ErrZeroPeak = errors.New("running peak is zero")
)

// Returns computes simple period returns from a chronological price series.
// Pairs whose prior price is exactly zero are skipped, so the result may be
// shorter than len(prices)-1.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prior := prices[i-1]
		if prior == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prior)/prior)
	}
	return returns
}

// PairedReturns computes period returns of two series observed on the same
// dates. A period is skipped in both results when either prior price is
// zero, so the returns stay aligned by period.
func PairedReturns(a, b []float64) (ra, rb []float64, err error) {
	if len(a) != len(b) {
		return nil, nil, ErrLengthMismatch
	}

	ra = make([]float64, 0, len(a))
	rb = make([]float64, 0, len(b))
	for i := 1; i < len(a); i++ {
		if a[i-1] == 0 || b[i-1] == 0 {
			continue
		}
		ra = append(ra, (a[i]-a[i-1])/a[i-1])
		rb = append(rb, (b[i]-b[i-1])/b[i-1])
	}
	return ra, rb, nil
}

// Mean returns the arithmetic mean, or 0 for an empty series
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the population standard deviation, or 0 for an empty series
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(xs, nil))
}

// Volatility is the population standard deviation of returns, scaled by
// sqrt(252) when annualize is set.
func Volatility(returns []float64, annualize bool) float64 {
	if len(returns) == 0 {
		return 0
	}

	vol := StdDev(returns)
	if annualize {
		vol *= math.Sqrt(TradingDaysPerYear)
	}
	return vol
}

// MaxDrawdown returns the largest peak-to-trough decline of a value series as
// a positive fraction. It returns ErrZeroPeak if the running maximum is zero at
// any point, since the drawdown is undefined there.
func MaxDrawdown(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}

	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			return 0, ErrZeroPeak
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst), nil
}

// Beta is the sample covariance of the two series over the sample variance of
// the benchmark. Series of fewer than two points, or a flat benchmark, yield
// the market beta of 1.
func Beta(portfolio, benchmark []float64) (float64, error) {
	if len(portfolio) != len(benchmark) {
		return 0, ErrLengthMismatch
	}
	if len(portfolio) < 2 {
		return 1, nil
	}

	variance := stat.Variance(benchmark, nil)
	if variance == 0 {
		return 1, nil
	}
	return stat.Covariance(portfolio, benchmark, nil) / variance, nil
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks, h = (n-1)*p/100.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	h := float64(len(sorted)-1) * p / 100
	lo := math.Floor(h)
	hi := math.Ceil(h)
	lower := sorted[int(lo)]
	upper := sorted[int(hi)]
	return lower + (h-lo)*(upper-lower)
}

// PercentileVaR is the historical value at risk: the (1-confidence) percentile
// of returns, expressed as a positive amount of portfolioValue.
func PercentileVaR(returns []float64, portfolioValue, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	alpha := 1 - confidence
	return math.Abs(Percentile(returns, alpha*100) * portfolioValue)
}

// TimeWeightedReturn chain-links sub-period returns of a value series. The
// flow at index i is treated as arriving mid-period between values i-1 and i.
func TimeWeightedReturn(values []float64, flows PeriodFlows) float64 {
	if len(values) == 0 {
		return 0
	}

	twr := 1.0
	begin := values[0]
	for i := 1; i < len(values); i++ {
		end := values[i]
		cf := flows.At(i)

		r := 0.0
		if denom := begin + cf/2; denom != 0 {
			r = (end - begin - cf) / denom
		}

		twr *= 1 + r
		begin = end
	}
	return twr - 1
}

// MoneyWeightedReturn solves for the annualized rate that zeroes the net
// present value of dated flows (XIRR). Offsets are whole days from the
// earliest flow over a 365-day year. Fewer than two flows, or flows all on
// the same day, return 0. The result is not guaranteed finite when the
// iteration diverges.
func MoneyWeightedReturn(flows []models.CashFlow, guess float64) float64 {
	if len(flows) < 2 {
		return 0
	}

	sorted := make([]models.CashFlow, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	start := sorted[0].Date
	years := make([]float64, len(sorted))
	distinct := false
	for i, f := range sorted {
		days := wholeDays(start, f.Date)
		if days != 0 {
			distinct = true
		}
		years[i] = days / daysPerYear
	}
	if !distinct {
		return 0
	}

	rate := guess
	for iter := 0; iter < xirrMaxIterations; iter++ {
		npv, dnpv := 0.0, 0.0
		for i, f := range sorted {
			factor := math.Pow(1+rate, years[i])
			npv += f.Amount / factor
			dnpv -= years[i] * f.Amount / (factor * (1 + rate))
		}

		if math.Abs(npv) < xirrTolerance {
			break
		}
		if dnpv == 0 {
			break
		}
		rate -= npv / dnpv
	}
	return rate
}

// TrailingReturn is the simple return over the last periods observations.
// ok is false when the series is too short or the base price is zero.
func TrailingReturn(prices []float64, periods int) (ret float64, ok bool) {
	if periods < 1 || len(prices) <= periods {
		return 0, false
	}

	base := prices[len(prices)-1-periods]
	if base == 0 {
		return 0, false
	}
	return prices[len(prices)-1]/base - 1, true
}

// Tail returns the last n elements of xs, or all of xs when shorter
func Tail(xs []float64, n int) []float64 {
	if n < 0 || len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func wholeDays(from, to time.Time) float64 {
	return math.Floor(to.Sub(from).Hours() / 24)
}
