package marketdata

import (
	"context"
	"errors"

	"github.com/findosh/quantdesk/internal/models"
)

// Provider is an upstream source of market data. Implementations return
// raw data; the Gateway normalizes and caches it.
type Provider interface {
	Name() string
	Quote(ctx context.Context, ticker string) (*models.Quote, error)
	History(ctx context.Context, ticker, rng, interval string) (*models.PriceSeries, error)
	Info(ctx context.Context, ticker string) (*models.TickerInfo, error)
}

// ErrNoData is returned by providers that have nothing for the requested ticker
var ErrNoData = errors.New("no data returned")
