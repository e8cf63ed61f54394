package importer

import "strings"

// Position fields read from an export
const (
	fieldTicker      = "ticker"
	fieldName        = "name"
	fieldQuantity    = "quantity"
	fieldPrice       = "price"
	fieldValue       = "value"
	fieldCostBasis   = "cost_basis"
	fieldDailyChange = "daily_change"
	fieldCurrency    = "currency"
)

const maxNameLength = 100

// Format describes one brokerage export layout: the header columns that
// identify it and the column names each position field is read from, in
// order of preference.
type Format struct {
	Name     string
	Required []string
	Columns  map[string][]string
}

// Formats are tried in order; the generic layout comes last
var Formats = []Format{
	{
		Name:     "fidelity_csv",
		Required: []string{"symbol", "description", "quantity", "last price", "current value"},
		Columns: map[string][]string{
			fieldTicker:      {"symbol"},
			fieldName:        {"description", "security description"},
			fieldQuantity:    {"quantity", "shares"},
			fieldPrice:       {"last price", "price"},
			fieldValue:       {"current value", "value"},
			fieldCostBasis:   {"cost basis total", "cost basis"},
			fieldDailyChange: {"last price change"},
		},
	},
	{
		Name:     "schwab_csv",
		Required: []string{"symbol", "description", "quantity", "price", "market value"},
		Columns: map[string][]string{
			fieldTicker:      {"symbol"},
			fieldName:        {"description", "security description"},
			fieldQuantity:    {"quantity", "shares"},
			fieldPrice:       {"price", "last price"},
			fieldValue:       {"market value", "value"},
			fieldCostBasis:   {"cost basis", "cost basis total"},
			fieldDailyChange: {"price change $", "price change"},
		},
	},
	{
		Name:     "vanguard_csv",
		Required: []string{"symbol", "investment name", "shares", "share price", "total value"},
		Columns: map[string][]string{
			fieldTicker:    {"symbol", "ticker"},
			fieldName:      {"investment name", "name", "description"},
			fieldQuantity:  {"shares", "quantity"},
			fieldPrice:     {"share price", "price"},
			fieldValue:     {"total value", "value", "market value"},
			fieldCostBasis: {"cost basis", "total cost"},
		},
	},
	{
		Name:     "generic_csv",
		Required: []string{"ticker", "quantity", "current_value", "cost_basis"},
		Columns: map[string][]string{
			fieldTicker:      {"ticker", "symbol"},
			fieldName:        {"name"},
			fieldQuantity:    {"quantity"},
			fieldPrice:       {"current_price", "price"},
			fieldValue:       {"current_value", "value"},
			fieldCostBasis:   {"cost_basis"},
			fieldDailyChange: {"daily_change"},
			fieldCurrency:    {"currency"},
		},
	},
}

// Detect reports whether every required column appears in header. Substring
// matches count, so "quantity" is satisfied by "Quantity (shares)".
func (f Format) Detect(header []string) bool {
	lower := lowerAll(header)

	for _, req := range f.Required {
		found := false
		for _, h := range lower {
			if strings.Contains(h, req) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// columnIndex maps each field to the first header column that names it exactly
func (f Format) columnIndex(header []string) map[string]int {
	byName := make(map[string]int, len(header))
	for i, h := range lowerAll(header) {
		if _, dup := byName[h]; !dup {
			byName[h] = i
		}
	}

	index := make(map[string]int, len(f.Columns))
	for field, names := range f.Columns {
		for _, name := range names {
			if i, ok := byName[name]; ok {
				index[field] = i
				break
			}
		}
	}
	return index
}

func lowerAll(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = strings.ToLower(strings.TrimSpace(x))
	}
	return out
}
