// Package normalize holds pure helpers that canonicalize identifiers, dates and
// codes pulled from shipping documents and file names.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	pdoPrefixed = regexp.MustCompile(`(?i)PDO\s*(\d+)`)
	pdoPartial  = regexp.MustCompile(`(\d{7}),(\d{3}(?:,\d{3})*)`)
	pdoPair     = regexp.MustCompile(`(\d{7})\s*[&,]\s*(\d{7})`)
	itrPattern  = regexp.MustCompile(`(?i)(ITR|SOM)\s*(\d+)`)
)

// TrackingNumber keeps only letters and digits: "8846 0237 3339" -> "884602373339".
func TrackingNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AWBNumber canonicalizes an air waybill number to XXX-XXXXXXXX when it has
// exactly 11 digits. A value with a single dash has its halves trimmed; anything
// else is returned unchanged.
func AWBNumber(s string) string {
	if s == "" {
		return ""
	}
	clean := TrackingNumber(s)
	if len(clean) == 11 && isDigits(clean) {
		return clean[:3] + "-" + clean[3:]
	}
	if parts := strings.Split(s, "-"); len(parts) == 2 {
		return strings.TrimSpace(parts[0]) + "-" + strings.TrimSpace(parts[1])
	}
	return s
}

// PDONumbers extracts purchase-order identifiers from free text such as a file name.
//
//	"PDO 2500444_dtd251006_NST.pdf"           -> [2500444]
//	"PDO 2500430 & 2500432_dtd250926_IFC.pdf" -> [2500430 2500432]
//	"PDO2500437,439,440,441_dtd251003.pdf"    -> [2500437 2500439 2500440 2500441]
func PDONumbers(text string) []string {
	seen := map[string]bool{}
	add := func(n string) { seen[n] = true }

	for _, m := range pdoPrefixed.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	if m := pdoPartial.FindStringSubmatch(text); m != nil {
		base := m[1][:4]
		add(m[1])
		for _, partial := range strings.Split(m[2], ",") {
			add(base + partial)
		}
	}

	for _, m := range pdoPair.FindAllStringSubmatch(text, -1) {
		add(m[1])
		add(m[2])
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ITRNumber extracts an internal transfer or sales order number, e.g.
// "ITR2502101_Invoice.pdf" -> "ITR 2502101".
func ITRNumber(text string) (string, bool) {
	m := itrPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + " " + m[2], true
}

// DigitCount returns the number of decimal digits in s.
func DigitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
