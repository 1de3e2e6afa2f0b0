package aggregator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/aggregator"
	"shipdecl/internal/domain"
)

func strPtr(s string) *string   { return &s }
func numPtr(f float64) *float64 { return &f }
func modePtr(m domain.TransportMode) *domain.TransportMode {
	return &m
}
func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func page(dt domain.DocumentType, conf domain.Confidence) domain.ExtractionResult {
	return domain.ExtractionResult{DocumentType: dt, Confidence: conf}
}

func TestAggregate_Empty(t *testing.T) {
	agg := aggregator.Aggregate(nil)

	assert.Equal(t, domain.ConfidenceLow, agg.Confidence)
	assert.Equal(t, domain.TransportModeUnknown, agg.Mode)
	assert.Nil(t, agg.TrackingOrAWB)
	assert.Empty(t, agg.FlightVessel)
}

func TestAggregate_PriorityPageWinsOverEarlierNonPriority(t *testing.T) {
	invoice := page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceHigh)
	invoice.TrackingOrAWB = strPtr("INV-REF-1")
	invoice.ShipDate = datePtr(2025, 9, 1)
	invoice.OriginCountry = strPtr("FRANCE")
	invoice.Carrier = strPtr("Forwarder Co")

	label := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	label.TrackingOrAWB = strPtr("884602373339")
	label.ShipDate = datePtr(2025, 9, 23)
	label.OriginCountry = strPtr("ITALY")
	label.Carrier = strPtr("FedEx")

	agg := aggregator.Aggregate([]domain.ExtractionResult{invoice, label})

	assert.Equal(t, "884602373339", *agg.TrackingOrAWB)
	assert.Equal(t, *datePtr(2025, 9, 23), *agg.ShipDate)
	assert.Equal(t, "ITALY", *agg.OriginCountry)
	assert.Equal(t, "FedEx", *agg.Carrier)
}

func TestAggregate_NonPriorityNeverOverwritesPriority(t *testing.T) {
	label := page(domain.DocumentTypeAirWaybill, domain.ConfidenceHigh)
	label.TrackingOrAWB = strPtr("235-30462681")

	packing := page(domain.DocumentTypePackingList, domain.ConfidenceHigh)
	packing.TrackingOrAWB = strPtr("PL-999")

	agg := aggregator.Aggregate([]domain.ExtractionResult{label, packing})

	assert.Equal(t, "235-30462681", *agg.TrackingOrAWB)
}

func TestAggregate_FirstPriorityPageSticks(t *testing.T) {
	first := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	first.TrackingOrAWB = strPtr("111111111111")
	first.Mode = modePtr(domain.TransportModeCourier)

	second := page(domain.DocumentTypeAirWaybill, domain.ConfidenceHigh)
	second.TrackingOrAWB = strPtr("222-22222222")
	second.Mode = modePtr(domain.TransportModeAir)

	agg := aggregator.Aggregate([]domain.ExtractionResult{first, second})

	assert.Equal(t, "111111111111", *agg.TrackingOrAWB)
	assert.Equal(t, domain.TransportModeCourier, agg.Mode)
}

func TestAggregate_NonPriorityFillsGaps(t *testing.T) {
	label := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	label.TrackingOrAWB = strPtr("884602373339")

	report := page(domain.DocumentTypeShipmentReport, domain.ConfidenceMedium)
	report.ShipDate = datePtr(2025, 10, 2)

	other := page(domain.DocumentTypeOther, domain.ConfidenceMedium)
	other.ShipDate = datePtr(2025, 10, 5)

	agg := aggregator.Aggregate([]domain.ExtractionResult{label, report, other})

	assert.Equal(t, *datePtr(2025, 10, 2), *agg.ShipDate)
}

func TestAggregate_UnknownModeIgnored(t *testing.T) {
	label := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	label.Mode = modePtr(domain.TransportModeUnknown)

	invoice := page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceHigh)
	invoice.Mode = modePtr(domain.TransportModeAir)

	agg := aggregator.Aggregate([]domain.ExtractionResult{label, invoice})

	assert.Equal(t, domain.TransportModeAir, agg.Mode)
}

func TestAggregate_IncotermFirstFromAnyPage(t *testing.T) {
	invoice := page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceHigh)
	invoice.Incoterms = strPtr("EXW")
	invoice.Currency = strPtr("EUR")
	invoice.TotalValue = numPtr(1200)

	label := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	label.Incoterms = strPtr("DAP")
	label.Currency = strPtr("USD")

	agg := aggregator.Aggregate([]domain.ExtractionResult{invoice, label})

	assert.Equal(t, "EXW", *agg.Incoterms)
	assert.Equal(t, "EUR", *agg.Currency)
	assert.Equal(t, 1200.0, *agg.TotalValue)
}

func TestAggregate_FlightsUnionedInOrder(t *testing.T) {
	p1 := page(domain.DocumentTypeAirWaybill, domain.ConfidenceHigh)
	p1.FlightNumbers = []string{"SQ914", "VN654"}
	p2 := page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceHigh)
	p2.FlightNumbers = []string{"VN654", "TR12"}
	p2.Mode = modePtr(domain.TransportModeAir)

	agg := aggregator.Aggregate([]domain.ExtractionResult{p1, p2})

	assert.Equal(t, []string{"SQ914", "VN654", "TR12"}, agg.FlightNumbers)
	assert.Equal(t, "SQ914 / VN654 / TR12", agg.FlightVessel)
}

func TestAggregate_SeaDisplay(t *testing.T) {
	bl := page(domain.DocumentTypeBillOfLading, domain.ConfidenceHigh)
	bl.Mode = modePtr(domain.TransportModeSea)
	bl.VesselInfo = strPtr("MSC ANNA")
	bl.ContainerNumber = strPtr("MSCU1234567")
	bl.FlightNumbers = []string{"XX123"}

	agg := aggregator.Aggregate([]domain.ExtractionResult{bl})

	assert.Equal(t, "MSC ANNA / MSCU1234567", agg.FlightVessel)
}

func TestAggregate_BrandCodesOnlyFromPurchaseOrders(t *testing.T) {
	label := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	label.BrandCodes = []string{"XXX"}
	po := page(domain.DocumentTypePurchaseOrder, domain.ConfidenceHigh)
	po.BrandCodes = []string{"PIE", "IFC"}
	po2 := page(domain.DocumentTypePurchaseOrder, domain.ConfidenceHigh)
	po2.BrandCodes = []string{"IFC", "NST"}

	agg := aggregator.Aggregate([]domain.ExtractionResult{label, po, po2})

	assert.Equal(t, []string{"IFC", "NST", "PIE"}, agg.BrandCodes)
}

func TestAggregate_LowestConfidence(t *testing.T) {
	agg := aggregator.Aggregate([]domain.ExtractionResult{
		page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh),
		page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceMedium),
		page(domain.DocumentTypePackingList, domain.ConfidenceHigh),
	})
	assert.Equal(t, domain.ConfidenceMedium, agg.Confidence)

	agg = aggregator.Aggregate([]domain.ExtractionResult{page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)})
	assert.Equal(t, domain.ConfidenceHigh, agg.Confidence)
}

func TestAggregate_RetainsRawAndErrors(t *testing.T) {
	ok := page(domain.DocumentTypeCourierLabel, domain.ConfidenceHigh)
	ok.RawResponse = "{...}"
	ok.Warnings = []string{"w1"}
	bad := domain.FailedExtraction(2, "garbage", "No JSON found in response")

	agg := aggregator.Aggregate([]domain.ExtractionResult{ok, bad})

	assert.Equal(t, []string{"{...}", "garbage"}, agg.RawResponses)
	assert.Equal(t, []string{"No JSON found in response"}, agg.Errors)
	assert.Equal(t, []string{"w1"}, agg.Warnings)
	assert.Equal(t, domain.ConfidenceLow, agg.Confidence)
	assert.Equal(t, []domain.DocumentType{domain.DocumentTypeCourierLabel, domain.DocumentTypeUnknown}, agg.DocumentTypes)
}

func TestAggregator_InfersModeFromCarrier(t *testing.T) {
	invoice := page(domain.DocumentTypeCommercialInvoice, domain.ConfidenceHigh)
	invoice.Carrier = strPtr("DHL Express")

	agg := aggregator.New(map[string]string{"dhl": "COURIER"}).Aggregate([]domain.ExtractionResult{invoice})
	require.NotNil(t, agg.Carrier)
	assert.Equal(t, domain.TransportModeCourier, agg.Mode)

	assert.Equal(t, domain.TransportModeUnknown, aggregator.Aggregate([]domain.ExtractionResult{invoice}).Mode)
}
