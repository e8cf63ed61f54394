// Package importer turns brokerage position exports into positions for analysis
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/findosh/quantdesk/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownFormat = errors.New("unknown CSV format")
	ErrEmptyFile     = errors.New("CSV file is empty")
	ErrNoData        = errors.New("no valid positions found")
)

// ParseResult contains the result of parsing a CSV file
type ParseResult struct {
	Positions []models.Position `json:"positions"`
	Source    string            `json:"source"`
	Skipped   int               `json:"skipped"`
}

// Service handles CSV import operations
type Service struct {
	formats []Format
}

// NewService creates a new import service
func NewService() *Service {
	return &Service{formats: Formats}
}

// ParseCSV auto-detects the export format and reads its positions. Summary,
// cash and pending rows are skipped and counted.
func (s *Service) ParseCSV(reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1 // Allow variable fields
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	// Brokerage exports often open with account banner rows
	headerIdx, format := s.findHeader(records)
	if headerIdx < 0 {
		return nil, ErrUnknownFormat
	}

	index := format.columnIndex(records[headerIdx])
	if _, ok := index[fieldTicker]; !ok {
		return nil, ErrUnknownFormat
	}

	result := &ParseResult{Source: format.Name}
	for _, row := range records[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		pos, ok := parseRow(row, index)
		if !ok {
			result.Skipped++
			continue
		}
		result.Positions = append(result.Positions, pos)
	}

	if len(result.Positions) == 0 {
		return nil, ErrNoData
	}
	return result, nil
}

func (s *Service) findHeader(records [][]string) (int, Format) {
	for i, row := range records {
		if len(row) < 3 {
			continue
		}
		for _, f := range s.formats {
			if f.Detect(row) {
				return i, f
			}
		}
	}
	return -1, Format{}
}

func parseRow(row []string, index map[string]int) (models.Position, bool) {
	col := func(field string) string {
		if i, ok := index[field]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	ticker := cleanTicker(col(fieldTicker))
	if isSkipTicker(ticker) {
		return models.Position{}, false
	}

	pos := models.Position{
		Ticker:       ticker,
		Name:         cleanName(col(fieldName)),
		Quantity:     parseDecimal(col(fieldQuantity)),
		CurrentPrice: parseDecimal(col(fieldPrice)),
		CurrentValue: parseDecimal(col(fieldValue)),
		CostBasis:    parseDecimal(col(fieldCostBasis)),
		DailyChange:  parseDecimal(col(fieldDailyChange)),
		Currency:     strings.ToUpper(strings.TrimSpace(col(fieldCurrency))),
	}

	// Skip if no meaningful data
	if pos.Quantity.IsZero() && pos.CurrentValue.IsZero() {
		return models.Position{}, false
	}
	if pos.CurrentValue.IsZero() {
		pos.CurrentValue = pos.Quantity.Mul(pos.CurrentPrice)
	}

	return pos, true
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isSkipTicker(ticker string) bool {
	if ticker == "" {
		return true
	}

	lower := strings.ToLower(ticker)
	for _, prefix := range []string{"total", "account total", "cash", "pending", "--", "***"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return strings.Contains(lower, "settlement")
}

// Helper functions for parsing values

func parseDecimal(s string) decimal.Decimal {
	// Clean up the string
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "%", "")

	// Handle parentheses for negative numbers
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")

	// Handle empty or invalid
	if s == "" || s == "--" || strings.EqualFold(s, "n/a") {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func cleanTicker(s string) string {
	return strings.TrimRight(strings.ToUpper(strings.TrimSpace(s)), " *")
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	// Truncate very long names
	if len(s) > maxNameLength {
		s = s[:maxNameLength] + "..."
	}
	return s
}
