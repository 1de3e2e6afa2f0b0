// Package export renders the marine insurance declaration workbook.
package export

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

const (
	inboundFirstRow  = 5
	outboundFirstRow = 4
	sectionGap       = 4
	dateFormat       = "yyyy-mm-dd"
)

var (
	inboundHeader1 = []string{
		"", "ETD DATE", "BILL OF LADING /", "Incoterms",
		"Mode of transportation", "VESSEL / TRUCK #", "VOYAGE", "",
		"BRAND", "FCL / LCL", "CURR",
		"VALUE OF GOODS", "Reference Document No.",
		"Value (SIN)", "Value (MAL)", "Value (VIT)", "Value (Indonesia)", "Value (PH)",
	}
	inboundHeader2 = []string{
		"", "", "AIR WAYBILL /", "", "", "FLIGHT NO", "FROM", "TO",
		"", "", "", "", "", "", "", "", "", "",
	}
	// SplitColumns are the region columns of the inbound sheet, in order.
	SplitColumns = []string{"SIN", "MAL", "VIT", "Indonesia", "PH"}

	inboundWidths  = []float64{15, 18, 10, 15, 18, 12, 12, 12, 10, 8, 15, 30, 12, 12, 12, 15, 12}
	outboundWidths = []float64{15, 18, 20, 15, 12, 25, 35, 10, 15}
)

// Options controls workbook layout.
type Options struct {
	HeaderFillColor string
	HeaderFontColor string
	DefaultFCLLCL   string
	// CurrencyOrder lists outbound sections in order. Currencies seen in the data but not
	// listed get their own sections after these, alphabetically.
	CurrencyOrder   []string
	DefaultCurrency string
}

// Generator builds declaration workbooks.
type Generator struct {
	opts Options
}

// NewGenerator fills unset options with the standard template values.
func NewGenerator(opts Options) *Generator {
	if opts.HeaderFillColor == "" {
		opts.HeaderFillColor = "004d71"
	}
	if opts.HeaderFontColor == "" {
		opts.HeaderFontColor = "FFFFFF"
	}
	if opts.DefaultFCLLCL == "" {
		opts.DefaultFCLLCL = "LCL"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if len(opts.CurrencyOrder) == 0 {
		opts.CurrencyOrder = []string{"MYR", "USD", "IDR", "PHP", "SGD", "EUR"}
	}
	return &Generator{opts: opts}
}

// Filename returns the conventional file name for a declaration period.
func Filename(period string) string {
	return fmt.Sprintf("Marine_Ins_Declare_%s.xlsx", strings.ReplaceAll(period, "-", "_"))
}

// InboundSheet and OutboundSheet name the two sheets for a period.
func InboundSheet(period string) string  { return "IN " + period }
func OutboundSheet(period string) string { return "OUT " + period }

type styles struct {
	title, header, date, money, integer, bold, boldMoney, boldInteger int
}

// Generate renders the IN and OUT sheets and returns the xlsx bytes.
func (g *Generator) Generate(inbound []domain.InboundShipment, outbound []domain.OutboundShipment, period string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	st, err := g.newStyles(f)
	if err != nil {
		return nil, err
	}

	in := InboundSheet(period)
	if err := f.SetSheetName("Sheet1", in); err != nil {
		return nil, fmt.Errorf("naming inbound sheet: %w", err)
	}
	if err := g.writeInbound(f, in, inbound, period, st); err != nil {
		return nil, fmt.Errorf("writing inbound sheet: %w", err)
	}

	out := OutboundSheet(period)
	if _, err := f.NewSheet(out); err != nil {
		return nil, fmt.Errorf("creating outbound sheet: %w", err)
	}
	if err := g.writeOutbound(f, out, outbound, period, st); err != nil {
		return nil, fmt.Errorf("writing outbound sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) newStyles(f *excelize.File) (styles, error) {
	var st styles
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	dateFmt := dateFormat
	moneyFmt := "#,##0.00"
	intFmt := "#,##0"

	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: g.opts.HeaderFontColor},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{g.opts.HeaderFillColor}, Pattern: 1},
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		}},
		{&st.date, &excelize.Style{CustomNumFmt: &dateFmt}},
		{&st.money, &excelize.Style{CustomNumFmt: &moneyFmt}},
		{&st.integer, &excelize.Style{CustomNumFmt: &intFmt}},
		{&st.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&st.boldMoney, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt}},
		{&st.boldInteger, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &intFmt}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return st, fmt.Errorf("creating style: %w", err)
		}
		*d.dst = id
	}
	return st, nil
}

func (g *Generator) writeInbound(f *excelize.File, sheet string, shipments []domain.InboundShipment, period string, st styles) error {
	if err := f.MergeCell(sheet, "B1", "R1"); err != nil {
		return err
	}
	if err := setStyled(f, sheet, 2, 1, "SCHEDULE OF INCOMING SHIPMENT DECLARATIONS: "+period, st.title); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 3, inboundHeader1, st.header); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 4, inboundHeader2, st.header); err != nil {
		return err
	}

	for i := range shipments {
		s := &shipments[i]
		row := inboundFirstRow + i
		if s.ShipDate != nil {
			if err := setStyled(f, sheet, 2, row, *s.ShipDate, st.date); err != nil {
				return err
			}
		}
		mode := ""
		if s.Mode != domain.TransportModeUnknown {
			mode = string(s.Mode)
		}
		flight := ""
		if s.Mode != domain.TransportModeCourier {
			flight = s.FlightVessel
		}
		cells := map[int]any{
			3:  s.TrackingOrAWB,
			4:  s.Incoterms,
			5:  mode,
			6:  flight,
			7:  s.OriginCountry,
			8:  s.DestinationCountry,
			9:  s.BrandString(),
			10: g.opts.DefaultFCLLCL,
			11: s.Currency,
			13: s.Reference,
		}
		for col, v := range cells {
			if err := setCell(f, sheet, col, row, v); err != nil {
				return err
			}
		}
		if s.TotalValue != nil {
			if err := setStyled(f, sheet, 12, row, *s.TotalValue, st.money); err != nil {
				return err
			}
		}
		for j, region := range SplitColumns {
			v, ok := s.Splits[region]
			if !ok {
				continue
			}
			if err := setStyled(f, sheet, 14+j, row, v, st.money); err != nil {
				return err
			}
		}
	}
	return setWidths(f, sheet, inboundWidths)
}

func (g *Generator) writeOutbound(f *excelize.File, sheet string, shipments []domain.OutboundShipment, period string, st styles) error {
	if err := f.MergeCell(sheet, "B1", "J1"); err != nil {
		return err
	}
	if err := setStyled(f, sheet, 2, 1, "SCHEDULE OF OUTGOING SHIPMENT DECLARATIONS: "+period, st.title); err != nil {
		return err
	}

	groups := map[string][]domain.OutboundShipment{}
	for _, s := range shipments {
		cur := strings.ToUpper(strings.TrimSpace(s.Currency))
		if cur == "" {
			cur = g.opts.DefaultCurrency
		}
		groups[cur] = append(groups[cur], s)
	}

	row := outboundFirstRow
	for _, cur := range g.sectionOrder(groups) {
		records := groups[cur]
		header := []string{
			"", "DATE", "PROFORMA INV / INV", "VEHICLE NO / FLIGHT NO",
			"Mode of transport", "FROM", "TO", "DESCRIPTION OF GOODS",
			"FCL/LCL", fmt.Sprintf("VALUE (%s)", cur),
		}
		if err := writeHeader(f, sheet, row, header, st.header); err != nil {
			return err
		}
		row++

		valueStyle, totalStyle := st.money, st.boldMoney
		if normalize.ZeroDecimalCurrency(cur) {
			valueStyle, totalStyle = st.integer, st.boldInteger
		}

		total := 0.0
		for i := range records {
			s := &records[i]
			if s.Date != nil {
				if err := setStyled(f, sheet, 2, row, *s.Date, st.date); err != nil {
					return err
				}
			}
			cells := map[int]any{
				3: s.InvoiceNumber,
				4: s.FlightVehicle,
				5: string(s.Mode),
				6: s.Origin,
				7: s.Destination,
				8: s.Description,
				9: s.FCLLCL,
			}
			for col, v := range cells {
				if err := setCell(f, sheet, col, row, v); err != nil {
					return err
				}
			}
			if s.Value != nil {
				total += *s.Value
				if err := setStyled(f, sheet, 10, row, *s.Value, valueStyle); err != nil {
					return err
				}
			}
			row++
		}

		row++
		if err := setStyled(f, sheet, 9, row, "TOTAL", st.bold); err != nil {
			return err
		}
		if err := setStyled(f, sheet, 10, row, total, totalStyle); err != nil {
			return err
		}
		row += sectionGap
	}
	return setWidths(f, sheet, outboundWidths)
}

// sectionOrder is the configured currency order followed by any other currency present.
func (g *Generator) sectionOrder(groups map[string][]domain.OutboundShipment) []string {
	order := slices.Clone(g.opts.CurrencyOrder)
	var extra []string
	for cur := range groups {
		if !slices.Contains(order, cur) {
			extra = append(extra, cur)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func writeHeader(f *excelize.File, sheet string, row int, values []string, style int) error {
	for i, v := range values {
		if err := setStyled(f, sheet, i+1, row, v, style); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return f.SetCellValue(sheet, cell, v)
}

func setStyled(f *excelize.File, sheet string, col, row int, v any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if t, ok := v.(time.Time); ok {
		v = t.UTC()
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

// widths start at column B.
func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}
