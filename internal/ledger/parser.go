// Package ledger reads ledger workbook exports into LedgerRecords. Each sheet holds
// the line items of one purchase order.
package ledger

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"shipdecl/internal/domain"
)

const (
	headerMarker    = "Item No."
	defaultCurrency = "USD"
)

var (
	amountPattern  = regexp.MustCompile(`^([A-Z]{3})\s*([\d,\.]+)`)
	sheetIDPattern = regexp.MustCompile(`(\d{7})`)
)

// invalidCellValues are header echoes and secondary-table labels that must never be
// read as item numbers or brands.
var invalidCellValues = map[string]bool{
	"Location":      true,
	"Brand":         true,
	"System Number": true,
	"nan":           true,
	"NaN":           true,
	"":              true,
	"Status":        true,
	"Item No.":      true,
	"Batch":         true,
	"Whse":          true,
}

// columnPatterns maps a logical column to the header labels that identify it.
var columnPatterns = []struct {
	key      string
	patterns []string
}{
	{"item_no", []string{"Item No.", "Item Number", "ItemNo"}},
	{"brand", []string{"Brand"}},
	{"total", []string{"Total (Doc)", "Total (Document)", "Total"}},
	{"po_country", []string{"PO Country", "POCountry", "PO_Country"}},
	{"currency", []string{"Currency", "Curr"}},
}

// Parser turns a ledger workbook into records keyed by sheet name.
type Parser struct {
	countryColumns map[string]string
}

// NewParser creates a parser. countryColumns maps a PO country code to its split
// column, e.g. "MY" -> "MAL"; rows for unmapped countries count toward the total only.
func NewParser(countryColumns map[string]string) *Parser {
	upper := make(map[string]string, len(countryColumns))
	for k, v := range countryColumns {
		upper[strings.ToUpper(k)] = v
	}
	return &Parser{countryColumns: upper}
}

// ParseFile opens and parses a workbook from disk.
func (p *Parser) ParseFile(path string) (domain.Ledger, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrInvalidLedgerFile, filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()
	return p.parseWorkbook(f, filepath.Base(path)), nil
}

// Parse reads a workbook from r. name is recorded as each record's source file.
func (p *Parser) Parse(r io.Reader, name string) (domain.Ledger, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrInvalidLedgerFile, name, err)
	}
	defer func() { _ = f.Close() }()
	return p.parseWorkbook(f, name), nil
}

func (p *Parser) parseWorkbook(f *excelize.File, source string) domain.Ledger {
	out := domain.Ledger{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Printf("ledger.Parser: skipping sheet %s of %s: %v", sheet, source, err)
			continue
		}
		rec, ok := p.ParseRows(sheet, rows)
		if !ok {
			continue
		}
		rec.SourceFile = source
		out[sheet] = rec
		log.Printf("ledger.Parser: parsed %s: %s %.2f", sheet, rec.Currency, rec.TotalValue)
	}
	return out
}

// ParseRows builds a record from one sheet's cell grid. It reports false when the sheet
// has no header row, no total column, or no row with a non-zero total.
func (p *Parser) ParseRows(sheet string, rows [][]string) (domain.LedgerRecord, bool) {
	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		return domain.LedgerRecord{}, false
	}
	cols := mapColumns(rows[headerIdx])
	totalCol, ok := cols["total"]
	if !ok {
		log.Printf("ledger.Parser: no Total column found in %s", sheet)
		return domain.LedgerRecord{}, false
	}

	rec := domain.LedgerRecord{Splits: map[string]float64{}, SheetName: sheet}
	brands := map[string]bool{}
	for _, row := range rows[headerIdx+1:] {
		itemNo := cell(row, cols, "item_no")
		if invalidCellValues[itemNo] {
			continue
		}

		if currency, amount, ok := parseAmount(cellAt(row, totalCol)); ok {
			if rec.Currency == "" {
				rec.Currency = currency
			}
			rec.TotalValue += amount
			rec.RowCount++
			if code := cell(row, cols, "po_country"); code != "" {
				if column, ok := p.countryColumns[strings.ToUpper(code)]; ok {
					rec.Splits[column] += amount
				}
			}
		}

		if brand := cell(row, cols, "brand"); !invalidCellValues[brand] && !brands[brand] {
			brands[brand] = true
			rec.Brands = append(rec.Brands, brand)
		}
	}

	if rec.TotalValue == 0 {
		return domain.LedgerRecord{}, false
	}
	if rec.Currency == "" {
		rec.Currency = defaultCurrency
	}
	rec.ID = sheet
	if m := sheetIDPattern.FindString(sheet); m != "" {
		rec.ID = m
	}
	return rec, true
}

func findHeaderRow(rows [][]string) int {
	for i, row := range rows {
		for _, v := range row {
			if strings.TrimSpace(v) == headerMarker {
				return i
			}
		}
	}
	return -1
}

// mapColumns assigns each logical column to the first header cell that matches one of
// its patterns.
func mapColumns(header []string) map[string]int {
	cols := map[string]int{}
	for i, raw := range header {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		for _, cp := range columnPatterns {
			if matchesAny(label, cp.patterns) {
				if _, taken := cols[cp.key]; !taken {
					cols[cp.key] = i
				}
				break
			}
		}
	}
	return cols
}

func matchesAny(label string, patterns []string) bool {
	for _, p := range patterns {
		if strings.EqualFold(p, label) || strings.Contains(label, p) {
			return true
		}
	}
	return false
}

func cell(row []string, cols map[string]int, key string) string {
	idx, ok := cols[key]
	if !ok {
		return ""
	}
	return cellAt(row, idx)
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseAmount reads values like "USD 1,234.56".
func parseAmount(s string) (string, float64, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], amount, true
}
