package parser

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

// DefaultHomeCountry is the declaring country used for outbound origin.
const DefaultHomeCountry = "SINGAPORE"

var (
	jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
	flightPattern     = regexp.MustCompile(`[A-Z]{2}\d{3,4}`)
	nonNumericPattern = regexp.MustCompile(`[^\d.]`)
	brandCodePattern  = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// ResponseParser turns raw model text into an ExtractionResult.
type ResponseParser struct {
	homeCountry string
	schemas     *SchemaSet
}

// NewResponseParser creates a parser that stamps outbound records with homeCountry.
func NewResponseParser(homeCountry string) *ResponseParser {
	if homeCountry == "" {
		homeCountry = DefaultHomeCountry
	}
	schemas, err := NewSchemaSet()
	if err != nil {
		log.Printf("parser.NewResponseParser: schema checks disabled: %v", err)
	}
	return &ResponseParser{homeCountry: homeCountry, schemas: schemas}
}

var defaultResponseParser = NewResponseParser(DefaultHomeCountry)

// ParseResponse parses raw with the default home country. It never fails: a response that
// cannot be read yields an UNKNOWN/LOW result carrying the error text.
func ParseResponse(raw string, mode domain.ExtractionMode, page int) domain.ExtractionResult {
	return defaultResponseParser.Parse(raw, mode, page)
}

// Parse maps raw model text to a typed result according to mode.
func (p *ResponseParser) Parse(raw string, mode domain.ExtractionMode, page int) domain.ExtractionResult {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return domain.FailedExtraction(page, raw, ErrNoJSON.Error())
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(match), &data); err != nil {
		return domain.FailedExtraction(page, raw, fmt.Sprintf("JSON parse error: %v", err))
	}

	var res domain.ExtractionResult
	switch mode {
	case domain.ExtractionModeOutboundAWB:
		res = p.outboundAWB(data)
	case domain.ExtractionModeOutboundInvoice:
		res = p.outboundInvoice(data)
	default:
		res = p.inbound(data)
	}
	res.Confidence = domain.ParseConfidence(stringValue(data["confidence"]))
	res.PageNumber = page
	res.RawResponse = raw
	res.Warnings = append(res.Warnings, p.schemas.Check(mode, data)...)
	return res
}

func (p *ResponseParser) inbound(data map[string]any) domain.ExtractionResult {
	res := domain.ExtractionResult{
		DocumentType:       domain.ParseDocumentType(stringValue(data["document_type"])),
		FlightNumbers:      flightList(data["flight_numbers"]),
		OriginCountry:      optString(data["origin_country"]),
		DestinationCountry: optString(data["destination_country"]),
		Incoterms:          optString(data["incoterms"]),
		Currency:           optString(data["currency"]),
		TotalValue:         optNumber(data["total_value"]),
		Carrier:            optString(data["carrier"]),
		VesselInfo:         optString(data["vessel_info"]),
		ContainerNumber:    optString(data["container_number"]),
		BrandCodes:         brandCodes(data["brand_codes"]),
		Notes:              stringValue(data["notes"]),
	}

	if s := optString(data["mode"]); s != nil {
		mode := domain.ParseTransportMode(*s)
		res.Mode = &mode
	}
	res.ShipDate = p.date(data, "ship_date", &res)

	if tracking := optString(data["tracking_or_awb"]); tracking != nil {
		v := *tracking
		if res.Mode != nil {
			switch *res.Mode {
			case domain.TransportModeCourier:
				v = normalize.TrackingNumber(v)
			case domain.TransportModeAir:
				v = normalize.AWBNumber(v)
			}
		}
		res.TrackingOrAWB = &v
	}
	return res
}

func (p *ResponseParser) outboundAWB(data map[string]any) domain.ExtractionResult {
	air := domain.TransportModeAir
	home := p.homeCountry
	res := domain.ExtractionResult{
		DocumentType:       domain.DocumentTypeAirWaybill,
		Mode:               &air,
		OriginCountry:      &home,
		DestinationCountry: optString(data["destination"]),
		Currency:           optString(data["currency"]),
	}
	if awb := optString(data["awb_number"]); awb != nil {
		v := normalize.AWBNumber(*awb)
		res.TrackingOrAWB = &v
	}

	flight := optString(data["flight_number"])
	if flight == nil {
		flight = optString(data["flight_info"])
	}
	if flight != nil {
		if found := flightPattern.FindAllString(strings.ToUpper(*flight), -1); len(found) > 0 {
			res.FlightNumbers = found
		} else {
			res.FlightNumbers = []string{strings.TrimSpace(*flight)}
		}
	}
	res.ShipDate = p.date(data, "flight_date", &res)

	// The description is kept verbatim for classification further down the pipeline.
	var notes []string
	if n := stringValue(data["notes"]); n != "" {
		notes = append(notes, n)
	}
	if d := stringValue(data["description"]); d != "" {
		notes = append(notes, "Description: "+d)
	}
	if inv := stringValue(data["invoice_reference"]); inv != "" {
		notes = append(notes, "Invoice: "+inv)
	}
	res.Notes = strings.Join(notes, " | ")
	return res
}

func (p *ResponseParser) outboundInvoice(data map[string]any) domain.ExtractionResult {
	air := domain.TransportModeAir
	home := p.homeCountry
	res := domain.ExtractionResult{
		DocumentType:  domain.DocumentTypeCommercialInvoice,
		Mode:          &air,
		OriginCountry: &home,
		TrackingOrAWB: optString(data["invoice_number"]),
		Currency:      optString(data["currency"]),
		TotalValue:    optNumber(data["total_value"]),
	}
	res.ShipDate = p.date(data, "date", &res)

	city := optString(data["destination_city"])
	country := optString(data["destination_country"])
	switch {
	case city != nil && country != nil:
		d := *city + ", " + *country
		res.DestinationCountry = &d
	case country != nil:
		res.DestinationCountry = country
	case city != nil:
		res.DestinationCountry = city
	}

	desc := stringValue(data["description"])
	if desc == "" {
		desc = "N/A"
	}
	res.Notes = stringValue(data["notes"]) + " | Description: " + desc
	return res
}

// date parses an optional date field; an unreadable date is left unset with a warning.
func (p *ResponseParser) date(data map[string]any, key string, res *domain.ExtractionResult) *time.Time {
	s := optString(data[key])
	if s == nil {
		return nil
	}
	t, ok := normalize.ParseDate(*s)
	if !ok {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Could not parse %s %q", key, *s))
		return nil
	}
	return &t
}

// stringValue renders a JSON scalar as a trimmed string; null and containers become "".
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// optString treats null, empty and the literal "null" as not observed.
func optString(v any) *string {
	s := stringValue(v)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// optNumber accepts a JSON number or a string with currency symbols and separators.
func optNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		cleaned := nonNumericPattern.ReplaceAllString(t, "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// flightList accepts a list or a slash-delimited string.
func flightList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, f := range strings.Split(t, "/") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	case []any:
		for _, item := range t {
			if f := stringValue(item); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

// brandCodes accepts a comma-delimited string or a list; only three-letter alphabetic
// codes survive, upper-cased and deduplicated in first-seen order.
func brandCodes(v any) []string {
	var candidates []string
	switch t := v.(type) {
	case string:
		candidates = strings.Split(t, ",")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !brandCodePattern.MatchString(c) {
			continue
		}
		c = strings.ToUpper(c)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
