package marketdata

import (
	"strings"
	"time"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/shopspring/decimal"
)

// Exchange suffixes and their trading currency. Longer suffixes that share a
// prefix with shorter ones (".TO" and ".T") must come first.
var exchangeCurrencies = []struct {
	suffix   string
	currency string
}{
	{".TO", "CAD"}, // Toronto
	{".T", "JPY"},  // Tokyo
	{".DE", "EUR"}, // Xetra
	{".PA", "EUR"}, // Paris
	{".AM", "EUR"}, // Amsterdam
	{".L", "GBP"},  // London
}

// DefaultCurrency is assumed for tickers without a known exchange suffix
const DefaultCurrency = "USD"

// CurrencyFromTicker infers the trading currency from the exchange suffix
func CurrencyFromTicker(ticker string) string {
	upper := strings.ToUpper(ticker)
	for _, ec := range exchangeCurrencies {
		if strings.HasSuffix(upper, ec.suffix) {
			return ec.currency
		}
	}
	return DefaultCurrency
}

// NormalizeTicker trims and upper-cases a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// FXPair returns the provider symbol for a currency pair, e.g. EURUSD=X
func FXPair(base, quote string) string {
	return base + quote + "=X"
}

// completeQuote derives the fields a provider may leave empty: change and
// percent change from the prior close, currency from the ticker suffix.
func completeQuote(q *models.Quote, ticker string, now time.Time) {
	q.Ticker = ticker
	if q.Currency == "" {
		q.Currency = CurrencyFromTicker(ticker)
	}
	if q.PriorClose.IsZero() {
		q.PriorClose = q.Price
	}

	change := q.Price.Sub(q.PriorClose)
	changePercent := decimal.Zero
	if !q.PriorClose.IsZero() {
		changePercent = change.Div(q.PriorClose).Mul(decimal.NewFromInt(100))
	}
	q.Change = change.Round(4)
	q.ChangePercent = changePercent.Round(2)

	if q.Timestamp.IsZero() {
		q.Timestamp = now
	}
}
