package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/domain"
	"shipdecl/internal/parser"
)

func TestParseResponse_Failures(t *testing.T) {
	t.Run("no json", func(t *testing.T) {
		res := parser.ParseResponse("I could not read this page.", domain.ExtractionModeInbound, 3)
		assert.Equal(t, domain.DocumentTypeUnknown, res.DocumentType)
		assert.Equal(t, domain.ConfidenceLow, res.Confidence)
		assert.Equal(t, 3, res.PageNumber)
		assert.Equal(t, []string{"No JSON found in response"}, res.Errors)
		assert.Equal(t, "I could not read this page.", res.RawResponse)
	})

	t.Run("malformed json", func(t *testing.T) {
		res := parser.ParseResponse(`Here: {"document_type": "COURIER_LABEL",}`, domain.ExtractionModeInbound, 1)
		assert.Equal(t, domain.DocumentTypeUnknown, res.DocumentType)
		assert.Equal(t, domain.ConfidenceLow, res.Confidence)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "JSON parse error")
	})
}

func TestParseResponse_Inbound(t *testing.T) {
	raw := "```json\n" + `{
		"document_type": "COURIER_LABEL",
		"tracking_or_awb": "8846 0237 3339",
		"ship_date": "2025-09-23",
		"mode": "courier",
		"flight_numbers": "FX5012 / FX23",
		"origin_country": "ITALY",
		"incoterms": "EXW",
		"currency": "EUR",
		"total_value": 1234.5,
		"carrier": "FedEx",
		"brand_codes": "nst, exv, nst, TOOLONG, 12a",
		"confidence": "HIGH",
		"notes": "clear label"
	}` + "\n```"

	res := parser.ParseResponse(raw, domain.ExtractionModeInbound, 1)

	assert.Empty(t, res.Errors)
	assert.Equal(t, domain.DocumentTypeCourierLabel, res.DocumentType)
	assert.Equal(t, domain.ConfidenceHigh, res.Confidence)
	require.NotNil(t, res.Mode)
	assert.Equal(t, domain.TransportModeCourier, *res.Mode)
	require.NotNil(t, res.TrackingOrAWB)
	assert.Equal(t, "884602373339", *res.TrackingOrAWB)
	require.NotNil(t, res.ShipDate)
	assert.Equal(t, time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC), *res.ShipDate)
	assert.Equal(t, []string{"FX5012", "FX23"}, res.FlightNumbers)
	assert.Equal(t, "ITALY", *res.OriginCountry)
	assert.Nil(t, res.DestinationCountry)
	assert.Equal(t, "EXW", *res.Incoterms)
	assert.Equal(t, 1234.5, *res.TotalValue)
	assert.Equal(t, []string{"NST", "EXV"}, res.BrandCodes)
	assert.Equal(t, "clear label", res.Notes)
}

func TestParseResponse_InboundFallbacks(t *testing.T) {
	raw := `{"document_type":"SHIPPING_MANIFEST","confidence":"PRETTY SURE","mode":"AIR",
		"tracking_or_awb":"23530462681","flight_numbers":["SQ914","  ",""],
		"brand_codes":["ifc","Ifc","pie",7],"origin_country":null,"carrier":"null"}`

	res := parser.ParseResponse(raw, domain.ExtractionModeInbound, 2)

	assert.Equal(t, domain.DocumentTypeUnknown, res.DocumentType)
	assert.Equal(t, domain.ConfidenceMedium, res.Confidence)
	assert.Equal(t, "235-30462681", *res.TrackingOrAWB)
	assert.Equal(t, []string{"SQ914"}, res.FlightNumbers)
	assert.Equal(t, []string{"IFC", "PIE"}, res.BrandCodes)
	assert.Nil(t, res.OriginCountry)
	assert.Nil(t, res.Carrier)
	assert.Nil(t, res.ShipDate)

	// Schema check flags the off-list confidence and the numeric brand code.
	assert.NotEmpty(t, res.Warnings)
	joined := ""
	for _, w := range res.Warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "/confidence")
	assert.Contains(t, joined, "/brand_codes/3")
}

func TestParseResponse_InboundNoModeKeepsTracking(t *testing.T) {
	res := parser.ParseResponse(`{"tracking_or_awb":"AB 12-3"}`, domain.ExtractionModeInbound, 1)
	assert.Nil(t, res.Mode)
	assert.Equal(t, "AB 12-3", *res.TrackingOrAWB)
}

func TestParseResponse_UnparseableDateIsWarning(t *testing.T) {
	res := parser.ParseResponse(`{"ship_date":"next tuesday"}`, domain.ExtractionModeInbound, 1)
	assert.Nil(t, res.ShipDate)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Warnings, `Could not parse ship_date "next tuesday"`)
}

func TestParseResponse_OutboundAWB(t *testing.T) {
	raw := `{"awb_number":"61812345675","flight_number":"sq914/09-Sep vn654","flight_date":"09SEP25",
		"destination":"HO CHI MINH, VIETNAM","description":"SKINCARE PRODUCTS & ORAL SUPPLEMENTS",
		"invoice_reference":"ITR 2502027","currency":"USD","confidence":"HIGH","notes":"stamped"}`

	res := parser.ParseResponse(raw, domain.ExtractionModeOutboundAWB, 1)

	assert.Equal(t, domain.DocumentTypeAirWaybill, res.DocumentType)
	assert.Equal(t, domain.TransportModeAir, *res.Mode)
	assert.Equal(t, "SINGAPORE", *res.OriginCountry)
	assert.Equal(t, "618-12345675", *res.TrackingOrAWB)
	assert.Equal(t, []string{"SQ914", "VN654"}, res.FlightNumbers)
	assert.Equal(t, time.Date(2025, 9, 9, 0, 0, 0, 0, time.UTC), *res.ShipDate)
	assert.Equal(t, "HO CHI MINH, VIETNAM", *res.DestinationCountry)
	assert.Equal(t, "USD", *res.Currency)
	assert.Equal(t, "stamped | Description: SKINCARE PRODUCTS & ORAL SUPPLEMENTS | Invoice: ITR 2502027", res.Notes)
}

func TestParseResponse_OutboundAWBFlightInfoFallback(t *testing.T) {
	res := parser.ParseResponse(`{"flight_info":"  by truck  "}`, domain.ExtractionModeOutboundAWB, 1)
	assert.Equal(t, []string{"by truck"}, res.FlightNumbers)
	assert.Equal(t, "", res.Notes)
}

func TestParseResponse_OutboundInvoice(t *testing.T) {
	t.Run("string value and city plus country", func(t *testing.T) {
		raw := `{"invoice_number":"ITR 2502027","date":"2025-10-01","currency":"MYR",
			"total_value":"RM 12,500.75","destination_city":"Kuala Lumpur","destination_country":"Malaysia",
			"description":"Profhilo syringes","notes":"signed"}`
		res := parser.ParseResponse(raw, domain.ExtractionModeOutboundInvoice, 1)

		assert.Equal(t, domain.DocumentTypeCommercialInvoice, res.DocumentType)
		assert.Equal(t, "ITR 2502027", *res.TrackingOrAWB)
		assert.Equal(t, 12500.75, *res.TotalValue)
		assert.Equal(t, "Kuala Lumpur, Malaysia", *res.DestinationCountry)
		assert.Equal(t, "SINGAPORE", *res.OriginCountry)
		assert.Equal(t, "signed | Description: Profhilo syringes", res.Notes)
	})

	t.Run("numeric value and country only", func(t *testing.T) {
		res := parser.ParseResponse(`{"total_value":800,"destination_country":"Philippines"}`, domain.ExtractionModeOutboundInvoice, 1)
		assert.Equal(t, 800.0, *res.TotalValue)
		assert.Equal(t, "Philippines", *res.DestinationCountry)
		assert.Equal(t, " | Description: N/A", res.Notes)
	})

	t.Run("city only and junk value", func(t *testing.T) {
		res := parser.ParseResponse(`{"total_value":"n/a","destination_city":"Manila"}`, domain.ExtractionModeOutboundInvoice, 1)
		assert.Nil(t, res.TotalValue)
		assert.Equal(t, "Manila", *res.DestinationCountry)
	})
}

func TestResponseParser_HomeCountry(t *testing.T) {
	p := parser.NewResponseParser("MALAYSIA")
	res := p.Parse(`{"awb_number":"1"}`, domain.ExtractionModeOutboundAWB, 1)
	assert.Equal(t, "MALAYSIA", *res.OriginCountry)
}
