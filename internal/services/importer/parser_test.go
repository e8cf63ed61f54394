package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const fidelityExport = `Account Name/Number,X12345678
Symbol,Description,Quantity,Last Price,Last Price Change,Current Value,Cost Basis Total
AAPL,APPLE INC,10,$175.00,+$1.25,"$1,750.00","$1,500.00"
VOO**,VANGUARD S&P 500 ETF,5,$430.00,($2.10),"$2,150.00","$2,000.00"
SPAXX**,HELD IN MONEY MARKET,,,,$250.00,
Pending Activity,,,,,$-20.00,

Total,,,,,"$4,150.00",
`

const schwabExport = `"Positions for account Individual ...123"
Symbol,Description,Quantity,Price,Price Change $,Market Value,Cost Basis
MSFT,MICROSOFT CORP,3,375.00,-1.50,1125.00,900.00
Cash & Cash Investments,--,--,--,--,500.00,--
Account Total,--,--,--,--,1625.00,--
`

const vanguardExport = `Account Number,Investment Name,Symbol,Shares,Share Price,Total Value
12345678,VANGUARD TOTAL BOND MARKET ETF,BND,20,73.00,
12345678,SETTLEMENT FUND,VMFXX,100,1.00,100.00
`

const genericExport = `ticker,quantity,current_value,cost_basis,daily_change,currency
SHOP.TO,4,420.50,380,0.75,cad
`

func TestParseCSV_Formats(t *testing.T) {
	s := NewService()

	tests := []struct {
		name      string
		input     string
		source    string
		positions int
		skipped   int
	}{
		{"fidelity", fidelityExport, "fidelity_csv", 3, 2},
		{"schwab", schwabExport, "schwab_csv", 1, 2},
		{"vanguard", vanguardExport, "vanguard_csv", 2, 0},
		{"generic", genericExport, "generic_csv", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ParseCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseCSV() error = %v", err)
			}
			if result.Source != tt.source {
				t.Errorf("Expected source %s, got %s", tt.source, result.Source)
			}
			if len(result.Positions) != tt.positions {
				t.Errorf("Expected %d positions, got %d", tt.positions, len(result.Positions))
			}
			if result.Skipped != tt.skipped {
				t.Errorf("Expected %d skipped rows, got %d", tt.skipped, result.Skipped)
			}
		})
	}
}

func TestParseCSV_FidelityValues(t *testing.T) {
	result, err := NewService().ParseCSV(strings.NewReader(fidelityExport))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	aapl := result.Positions[0]
	if aapl.Ticker != "AAPL" {
		t.Errorf("Expected ticker AAPL, got %s", aapl.Ticker)
	}
	if !aapl.CurrentValue.Equal(decimal.NewFromInt(1750)) {
		t.Errorf("Expected value 1750, got %s", aapl.CurrentValue)
	}
	if !aapl.CostBasis.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected cost basis 1500, got %s", aapl.CostBasis)
	}
	if !aapl.DailyChange.Equal(decimal.NewFromFloat(1.25)) {
		t.Errorf("Expected daily change 1.25, got %s", aapl.DailyChange)
	}

	voo := result.Positions[1]
	if voo.Ticker != "VOO" {
		t.Errorf("Expected trailing markers stripped, got %s", voo.Ticker)
	}
	if !voo.DailyChange.Equal(decimal.NewFromFloat(-2.1)) {
		t.Errorf("Expected daily change -2.1, got %s", voo.DailyChange)
	}
}

func TestParseCSV_DerivesValueFromPrice(t *testing.T) {
	result, err := NewService().ParseCSV(strings.NewReader(vanguardExport))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	bnd := result.Positions[0]
	if !bnd.CurrentValue.Equal(decimal.NewFromInt(1460)) {
		t.Errorf("Expected value 20 x 73 = 1460, got %s", bnd.CurrentValue)
	}
}

func TestParseCSV_Generic(t *testing.T) {
	result, err := NewService().ParseCSV(strings.NewReader(genericExport))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	p := result.Positions[0]
	if p.Ticker != "SHOP.TO" || p.Currency != "CAD" {
		t.Errorf("Expected SHOP.TO in CAD, got %s in %s", p.Ticker, p.Currency)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	s := NewService()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFile},
		{"unknown header", "foo,bar,baz\n1,2,3\n", ErrUnknownFormat},
		{"only summary rows", "ticker,quantity,current_value,cost_basis\nTotal,0,0,0\n", ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseCSV(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"$1,234.56", "1234.56"},
		{"(12.50)", "-12.5"},
		{"+$1.25", "1.25"},
		{"--", "0"},
		{"N/A", "0"},
		{"12.5%", "12.5"},
		{"garbage", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDecimal(tt.input)
			if got.String() != tt.expected {
				t.Errorf("parseDecimal(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}
