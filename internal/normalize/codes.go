package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"shipdecl/internal/domain"
)

var countryNames = map[string]string{
	"US":  "UNITED STATES",
	"USA": "UNITED STATES",
	"UK":  "UNITED KINGDOM",
	"GB":  "UNITED KINGDOM",
	"SG":  "SINGAPORE",
	"MY":  "MALAYSIA",
	"VN":  "VIETNAM",
	"ID":  "INDONESIA",
	"PH":  "PHILIPPINES",
	"KR":  "KOREA",
	"JP":  "JAPAN",
	"CN":  "CHINA",
	"DE":  "GERMANY",
	"FR":  "FRANCE",
	"IT":  "ITALY",
	"ES":  "SPAIN",
	"NL":  "NETHERLANDS",
	"CH":  "SWITZERLAND",
	"AU":  "AUSTRALIA",
	"CA":  "CANADA",
	"IL":  "ISRAEL",
	"BG":  "BULGARIA",
}

// CountryName expands a country code to its upper-case name. Unknown codes are
// returned upper-cased.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// FormatCurrencyValue renders an amount with thousands separators; IDR and VND
// have no minor unit.
func FormatCurrencyValue(v float64, currency string) string {
	decimals := 2
	if ZeroDecimalCurrency(currency) {
		decimals = 0
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// ZeroDecimalCurrency reports currencies declared without decimals.
func ZeroDecimalCurrency(currency string) bool {
	switch strings.ToUpper(currency) {
	case "IDR", "VND":
		return true
	}
	return false
}

// Keyword registry for mode detection, checked in this order.
var modeKeywords = []struct {
	mode     domain.TransportMode
	keywords []string
}{
	{domain.TransportModeCourier, []string{"fedex", "dhl", "ups", "tnt", "aramex"}},
	{domain.TransportModeAir, []string{"air waybill", "awb", "mawb", "hawb", "airlines", "cargo"}},
	{domain.TransportModeSea, []string{
		"bill of lading", "b/l", "ocean", "vessel", "container",
		"sea waybill", "port of loading", "port of discharge",
		"maersk", "msc", "evergreen", "cosco", "hapag",
	}},
}

// DetectModeFromText returns the first mode whose keyword appears in text.
func DetectModeFromText(text string) (domain.TransportMode, bool) {
	lower := strings.ToLower(text)
	for _, entry := range modeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.mode, true
			}
		}
	}
	return domain.TransportModeUnknown, false
}

// DetectModeFromCarrier looks the carrier name up in a pattern -> mode table.
// Longer patterns are tried first so "eva air" wins over shorter overlaps.
func DetectModeFromCarrier(carrier string, table map[string]string) (domain.TransportMode, bool) {
	if carrier == "" {
		return domain.TransportModeUnknown, false
	}
	patterns := make([]string, 0, len(table))
	for p := range table {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	lower := strings.ToLower(carrier)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			if m := domain.ParseTransportMode(table[p]); m != domain.TransportModeUnknown {
				return m, true
			}
		}
	}
	return domain.TransportModeUnknown, false
}
