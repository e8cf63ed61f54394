package models

import (
	"github.com/shopspring/decimal"
)

// Position is a caller-supplied holding. Fields missing from the request
// decode as zero.
type Position struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	DailyChange  decimal.Decimal `json:"daily_change"` // per-unit price change since prior close
	Currency     string          `json:"currency,omitempty"`
}

// GainLoss returns the unrealized gain/loss
func (p *Position) GainLoss() decimal.Decimal {
	return p.CurrentValue.Sub(p.CostBasis)
}

// GainLossPercent returns the unrealized gain/loss as a percentage
func (p *Position) GainLossPercent() decimal.Decimal {
	if !p.CostBasis.IsPositive() {
		return decimal.Zero
	}
	return p.GainLoss().Div(p.CostBasis).Mul(decimal.NewFromInt(100))
}

// DailyPnL returns today's change in value of the position
func (p *Position) DailyPnL() decimal.Decimal {
	return p.DailyChange.Mul(p.Quantity)
}

// IsPriced returns true if the position can be valued from market history
func (p *Position) IsPriced() bool {
	return p.Ticker != "" && !p.Quantity.IsZero()
}
