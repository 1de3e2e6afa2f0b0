package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shipdecl/internal/audit"
	"shipdecl/internal/domain"
	"shipdecl/internal/export"
	"shipdecl/internal/ledger"
	"shipdecl/internal/parser"
	"shipdecl/internal/port"
	"shipdecl/internal/service"
	"shipdecl/internal/session"
	"shipdecl/mocks"
)

const (
	courierLabel = `{"document_type":"COURIER_LABEL","tracking_or_awb":"8846 0237 3339","ship_date":"2025-09-23",
		"mode":"COURIER","origin_country":"ITALY","carrier":"FedEx","currency":"USD","total_value":1200,"confidence":"HIGH"}`
	purchaseOrder = `{"document_type":"PURCHASE_ORDER","brand_codes":"nst","incoterms":"EXW","confidence":"MEDIUM"}`
	awbResponse   = `{"awb_number":"61812345675","flight_number":"SQ914 / VN654","flight_date":"09SEP25",
		"destination":"HO CHI MINH, VIETNAM","description":"SKINCARE PRODUCTS & ORAL SUPPLEMENTS","confidence":"HIGH"}`
	invoiceResponse = `{"invoice_number":"ITR 2502027","date":"2025-10-01","currency":"MYR","total_value":"RM 12,500.75",
		"destination_city":"Kuala Lumpur","destination_country":"Malaysia","description":"Profhilo","confidence":"MEDIUM"}`
)

type fixture struct {
	svc      service.PipelineService
	provider *mocks.MockPageExtractor
	trail    *audit.Trail
}

func newFixture(t *testing.T, mutate ...func(*service.PipelineDeps)) *fixture {
	t.Helper()
	provider := new(mocks.MockPageExtractor)
	extractor, err := parser.NewExtractor(provider, parser.NewRateLimiter(0))
	require.NoError(t, err)

	trail := audit.NewTrail("test-session")
	deps := service.PipelineDeps{
		Extractor:       extractor,
		LedgerParser:    ledger.NewParser(map[string]string{"SG": "SIN", "MY": "MAL"}),
		Audit:           trail,
		AutoApplyLedger: true,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &fixture{svc: service.NewPipelineService(deps), provider: provider, trail: trail}
}

func (f *fixture) respond(mode domain.ExtractionMode, page int, text string) {
	f.provider.On("Extract", mock.Anything, mock.MatchedBy(func(in port.PageInput) bool {
		return in.Mode == mode && in.PageNumber == page
	})).Return(&port.PageOutput{Text: text}, nil)
}

func ledgerWorkbook(t *testing.T) []byte {
	t.Helper()
	return sheetWorkbook(t, "PDO 2500430", [][]string{
		{"Item No.", "Brand", "Total (Doc)", "PO Country"},
		{"A-100", "IFC", "USD 600.00", "SG"},
		{"A-101", "PIE", "USD 400.00", "MY"},
	})
}

func sheetWorkbook(t *testing.T, sheet string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func pdfDoc(name string, pages int) service.Document {
	doc := service.Document{Name: name}
	for i := 1; i <= pages; i++ {
		doc.Pages = append(doc.Pages, parser.Page{Content: []byte("%PDF-" + name + string(rune('0'+i))), ContentType: "application/pdf", Number: i})
	}
	return doc
}

func TestPipeline_MissingAPIKey(t *testing.T) {
	svc := service.NewPipelineService(service.PipelineDeps{})

	_, _, err := svc.ProcessInbound(context.Background(), []service.Document{pdfDoc("a.pdf", 1)})
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)

	_, _, err = svc.ProcessOutbound(context.Background(), nil, []service.Document{pdfDoc("b.pdf", 1)})
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)
}

func TestPipeline_LoadLedgerFiles(t *testing.T) {
	f := newFixture(t)

	report := f.svc.LoadLedgerFiles([]service.LedgerFile{
		{Name: "export.xlsx", Data: ledgerWorkbook(t)},
		{Name: "notes.xlsx", Data: []byte("hello")},
		{Name: "empty.xlsx"},
	})

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "Invalid file notes.xlsx")
	assert.Contains(t, report.Errors[1], "file is empty")

	res := f.svc.Result()
	require.Contains(t, res.Ledger, "PDO 2500430")
	rec := res.Ledger["PDO 2500430"]
	assert.Equal(t, "2500430", rec.ID)
	assert.Equal(t, 1000.0, rec.TotalValue)
	assert.Equal(t, map[string]float64{"SIN": 600, "MAL": 400}, rec.Splits)
	assert.False(t, res.Success)

	entries := f.trail.EntriesFor("2500430")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditSourceLedger, entries[0].Source)
	assert.Equal(t, "USD 1000.00", entries[0].NewValue)
}

func TestPipeline_ProcessInbound_SuffixMatchAppliesLedger(t *testing.T) {
	f := newFixture(t)
	f.respond(domain.ExtractionModeInbound, 1, courierLabel)
	f.respond(domain.ExtractionModeInbound, 2, purchaseOrder)
	f.svc.LoadLedgerFiles([]service.LedgerFile{{Name: "export.xlsx", Data: ledgerWorkbook(t)}})

	// 1500430 shares only its last five digits with ledger order 2500430.
	created, _, err := f.svc.ProcessInbound(context.Background(), []service.Document{pdfDoc("PDO 1500430_NST.pdf", 2)})
	require.NoError(t, err)
	require.Len(t, created, 1)

	s := created[0]
	assert.Equal(t, []string{"2500430"}, s.MatchedLedgerIDs)
	assert.Equal(t, 1000.0, *s.TotalValue, "ledger total replaces the label's 1200")
	assert.Equal(t, map[string]float64{"SIN": 600, "MAL": 400}, s.Splits)
}

func TestPipeline_LoadLedgerFiles_SplitMismatchIsAnError(t *testing.T) {
	f := newFixture(t)

	// TH has no destination column, so its 400 reaches the total but no split.
	data := sheetWorkbook(t, "PDO 2500431", [][]string{
		{"Item No.", "Brand", "Total (Doc)", "PO Country"},
		{"B-100", "IFC", "USD 600.00", "SG"},
		{"B-101", "PIE", "USD 400.00", "TH"},
	})
	report := f.svc.LoadLedgerFiles([]service.LedgerFile{{Name: "mismatch.xlsx", Data: data}})

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Ledger 2500431 (mismatch.xlsx)")
	assert.Contains(t, report.Errors[0], "don't sum to total")
	assert.Empty(t, report.Warnings)
}

func TestPipeline_ProcessInbound_ReconcilesAgainstLedger(t *testing.T) {
	f := newFixture(t)
	f.respond(domain.ExtractionModeInbound, 1, courierLabel)
	f.respond(domain.ExtractionModeInbound, 2, purchaseOrder)
	f.svc.LoadLedgerFiles([]service.LedgerFile{{Name: "export.xlsx", Data: ledgerWorkbook(t)}})

	created, report, err := f.svc.ProcessInbound(context.Background(), []service.Document{
		pdfDoc("PDO 2500430_dtd250926_NST.pdf", 2),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, created, 1)

	s := created[0]
	assert.Equal(t, "PDO2500430", s.Reference)
	assert.Equal(t, "884602373339", s.TrackingOrAWB)
	assert.Equal(t, domain.TransportModeCourier, s.Mode)
	assert.Equal(t, "ITALY", s.OriginCountry)
	assert.Equal(t, "SINGAPORE", s.DestinationCountry)
	assert.Equal(t, "EXW", s.Incoterms)
	assert.Equal(t, time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC), *s.ShipDate)
	assert.Equal(t, domain.ConfidenceMedium, s.Confidence)

	// Ledger values replace the document's; purchase-order brands outrank the ledger's.
	assert.Equal(t, "USD", s.Currency)
	assert.Equal(t, 1000.0, *s.TotalValue)
	assert.Equal(t, map[string]float64{"SIN": 600, "MAL": 400}, s.Splits)
	assert.Equal(t, []string{"NST"}, s.Brands)
	assert.Equal(t, []string{"2500430"}, s.MatchedLedgerIDs)
	assert.Empty(t, s.ValidationIssues)

	res := f.svc.Result()
	assert.True(t, res.Success)
	recon := res.Reconciliation["PDO2500430"]
	assert.True(t, recon.LedgerApplied)
	assert.Equal(t, "2500430", recon.MatchedLedgerID)
	var valueIssue *domain.ReconciliationIssue
	for i := range recon.Issues {
		if recon.Issues[i].Type == domain.ReconciliationValueMismatch {
			valueIssue = &recon.Issues[i]
		}
	}
	require.NotNil(t, valueIssue)
	assert.Equal(t, domain.SeverityWarning, valueIssue.Severity)

	var ledgerEdits []domain.AuditEntry
	for _, e := range f.trail.EntriesFor("PDO2500430") {
		if e.Source == domain.AuditSourceLedger {
			ledgerEdits = append(ledgerEdits, e)
		}
	}
	fields := []string{}
	for _, e := range ledgerEdits {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"total_value", "country_splits"}, fields)

	pages := f.trail.EntriesFor("PDO 2500430_dtd250926_NST.pdf")
	require.Len(t, pages, 2)
	assert.Equal(t, "page_1", pages[0].Field)
	assert.Equal(t, "COURIER_LABEL", pages[0].NewValue)
}

func TestPipeline_ProcessInbound_FailedPagesAndNoLedger(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	created, report, err := f.svc.ProcessInbound(context.Background(), []service.Document{
		pdfDoc("scan.pdf", 1),
		{Name: "blank.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "blank.pdf")
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "connection reset")

	s := created[0]
	assert.Equal(t, "scan.pdf", s.Reference)
	assert.Equal(t, domain.ConfidenceLow, s.Confidence)
	assert.Equal(t, domain.TransportModeUnknown, s.Mode)

	recon := f.svc.Result().Reconciliation["scan.pdf"]
	require.Len(t, recon.Issues, 1)
	assert.Equal(t, domain.ReconciliationMissingInLedger, recon.Issues[0].Type)

	messages := []string{}
	for _, i := range s.ValidationIssues {
		messages = append(messages, i.Message)
	}
	assert.Contains(t, messages, "Missing tracking number or AWB")
	assert.Contains(t, messages, "Missing ship date")
}

func TestPipeline_ProcessInbound_ReferenceFromFilename(t *testing.T) {
	f := newFixture(t)
	f.respond(domain.ExtractionModeInbound, 1, courierLabel)

	created, _, err := f.svc.ProcessInbound(context.Background(), []service.Document{
		pdfDoc("PDO 2500431 & 2500432_dtd250926.pdf", 1),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "PDO2500431, PDO2500432", created[0].Reference)
	assert.Equal(t, 1200.0, *created[0].TotalValue, "document value kept without a ledger match")
}

func TestPipeline_ProcessOutbound(t *testing.T) {
	f := newFixture(t)
	f.respond(domain.ExtractionModeOutboundAWB, 1, awbResponse)
	f.respond(domain.ExtractionModeOutboundInvoice, 1, invoiceResponse)

	created, report, err := f.svc.ProcessOutbound(context.Background(),
		[]service.Document{pdfDoc("AWB ITR 2502027.pdf", 1), pdfDoc("AWB ITR 2509999.pdf", 1)},
		[]service.Document{pdfDoc("ITR 2502027.pdf", 1)},
	)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "AWB ITR 2509999.pdf processed without matching invoice")

	paired := created[0]
	assert.Equal(t, "ITR 2502027", paired.InvoiceNumber)
	assert.Equal(t, time.Date(2025, 9, 9, 0, 0, 0, 0, time.UTC), *paired.Date, "waybill date wins")
	assert.Equal(t, "SQ914 / VN654", paired.FlightVehicle)
	assert.Equal(t, "MYR", paired.Currency)
	assert.Equal(t, 12500.75, *paired.Value)
	assert.Equal(t, "Kuala Lumpur, Malaysia", paired.Destination)
	assert.Equal(t, "Oral Supplements and Skincare Products", paired.Description)
	assert.Equal(t, domain.TransportModeAir, paired.Mode)
	assert.Equal(t, "SINGAPORE", paired.Origin)
	assert.Equal(t, "LCL", paired.FCLLCL)
	assert.Equal(t, "AWB ITR 2502027.pdf", paired.AWBFile)
	assert.Equal(t, "ITR 2502027.pdf", paired.InvoiceFile)
	assert.Equal(t, domain.ConfidenceMedium, paired.Confidence)

	awbOnly := created[1]
	assert.Equal(t, "ITR 2509999", awbOnly.InvoiceNumber)
	assert.Equal(t, "HO CHI MINH, VIETNAM", awbOnly.Destination)
	assert.Nil(t, awbOnly.Value)
	assert.Empty(t, awbOnly.InvoiceFile)

	messages := []string{}
	for _, i := range awbOnly.ValidationIssues {
		messages = append(messages, i.Message)
	}
	assert.Contains(t, messages, "Missing or invalid value")
	assert.Len(t, f.svc.Result().Outbound, 2)
}

func processOne(t *testing.T, f *fixture) {
	t.Helper()
	f.respond(domain.ExtractionModeInbound, 1, courierLabel)
	f.respond(domain.ExtractionModeInbound, 2, purchaseOrder)
	f.svc.LoadLedgerFiles([]service.LedgerFile{{Name: "export.xlsx", Data: ledgerWorkbook(t)}})
	_, _, err := f.svc.ProcessInbound(context.Background(), []service.Document{pdfDoc("PDO 2500430_NST.pdf", 2)})
	require.NoError(t, err)
}

func TestPipeline_UpdateInbound(t *testing.T) {
	f := newFixture(t)
	processOne(t, f)

	updated, err := f.svc.UpdateInbound(0, map[string]any{
		"currency":    "eur",
		"total_value": "1,000.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", updated.Currency)
	assert.Equal(t, []string{"currency"}, updated.UserModifiedFields, "unchanged values are not edits")

	edits := f.trail.UserEdits()
	require.Len(t, edits, 1)
	assert.Equal(t, "currency", edits[0].Field)
	assert.Equal(t, "USD", edits[0].OldValue)
	assert.Equal(t, "EUR", edits[0].NewValue)

	updated, err = f.svc.UpdateInbound(0, map[string]any{"country_splits": map[string]any{"SIN": 600.0, "MAL": 300.0}})
	require.NoError(t, err)
	require.True(t, domain.HasErrors(updated.ValidationIssues))
	assert.Equal(t, updated.ValidationIssues, f.svc.Result().Inbound[0].ValidationIssues)
}

func TestPipeline_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	processOne(t, f)

	_, err := f.svc.UpdateInbound(5, map[string]any{"currency": "EUR"})
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	_, err = f.svc.UpdateInbound(0, map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = f.svc.UpdateInbound(0, map[string]any{"etd_date": "sometime"})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)

	_, err = f.svc.UpdateOutbound(0, map[string]any{"currency": "EUR"})
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	// A rejected edit leaves the record untouched.
	assert.Equal(t, "USD", f.svc.Result().Inbound[0].Currency)
	assert.Empty(t, f.trail.UserEdits())
}

func TestPipeline_UpdateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	processOne(t, f)
	f.respond(domain.ExtractionModeOutboundAWB, 1, awbResponse)
	_, _, err := f.svc.ProcessOutbound(context.Background(), []service.Document{pdfDoc("AWB ITR 1.pdf", 1)}, nil)
	require.NoError(t, err)
	before := f.svc.Result()

	// currency sorts before the bad date, so it is accepted first and must still be dropped.
	_, err = f.svc.UpdateInbound(0, map[string]any{"currency": "EUR", "etd_date": "sometime"})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)

	_, err = f.svc.UpdateOutbound(0, map[string]any{"currency": "EUR", "date": "sometime"})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)

	after := f.svc.Result()
	assert.Equal(t, "USD", after.Inbound[0].Currency)
	assert.Empty(t, after.Inbound[0].UserModifiedFields)
	assert.Equal(t, before.Outbound[0].Currency, after.Outbound[0].Currency)
	assert.Empty(t, after.Outbound[0].UserModifiedFields)
	assert.Empty(t, f.trail.UserEdits())

	_, err = f.svc.UpdateInbound(0, map[string]any{"currency": "EUR", "etd_date": "2025-10-01"})
	require.NoError(t, err)
	assert.Len(t, f.trail.UserEdits(), 2)
}

func TestPipeline_UpdateOutbound(t *testing.T) {
	f := newFixture(t)
	f.respond(domain.ExtractionModeOutboundAWB, 1, awbResponse)
	_, _, err := f.svc.ProcessOutbound(context.Background(), []service.Document{pdfDoc("AWB ITR 1.pdf", 1)}, nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateOutbound(0, map[string]any{"value": 800.0, "currency": "usd", "date": "2025-10-02"})
	require.NoError(t, err)
	assert.Equal(t, 800.0, *updated.Value)
	assert.Equal(t, "USD", updated.Currency)
	assert.Equal(t, time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC), *updated.Date)
	assert.Equal(t, []string{"currency", "date", "value"}, updated.UserModifiedFields)
	assert.Empty(t, updated.ValidationIssues)
}

func TestPipeline_ValidateAll(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Extract", mock.Anything, mock.Anything).Return(&port.PageOutput{Text: `{"document_type":"OTHER"}`}, nil)
	_, _, err := f.svc.ProcessInbound(context.Background(), []service.Document{pdfDoc("scan.pdf", 1)})
	require.NoError(t, err)

	issues := f.svc.ValidateAll()
	require.Contains(t, issues, "scan.pdf")
	assert.NotEmpty(t, issues["scan.pdf"])

	var validated int
	for _, e := range f.trail.EntriesFor("scan.pdf") {
		if e.Action == domain.AuditActionValidated {
			validated++
		}
	}
	assert.Equal(t, 1, validated)
}

func TestPipeline_GenerateDeclaration(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{Location: "loc"}, nil)
	store.On("GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://signed", nil)

	f := newFixture(t, func(d *service.PipelineDeps) {
		d.Archiver = export.NewArchiver(store, "bucket", "declarations")
	})
	processOne(t, f)

	decl, err := f.svc.GenerateDeclaration(context.Background(), "October-25")
	require.NoError(t, err)
	assert.Equal(t, "Marine_Ins_Declare_October_25.xlsx", decl.Filename)
	assert.NotEmpty(t, decl.Data)
	require.NotNil(t, decl.Archive)
	assert.Equal(t, "https://signed", decl.Archive.URL)

	var exported []domain.AuditEntry
	for _, e := range f.trail.EntriesFor("PDO2500430") {
		if e.Action == domain.AuditActionExported {
			exported = append(exported, e)
		}
	}
	require.Len(t, exported, 1)
	assert.Contains(t, exported[0].NewValue, "s3://bucket/declarations/October-25/")
}

func TestPipeline_GenerateDeclaration_ArchiveFailureIsReported(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.ErrUploadFailed)

	f := newFixture(t, func(d *service.PipelineDeps) {
		d.Archiver = export.NewArchiver(store, "bucket", "")
	})
	decl, err := f.svc.GenerateDeclaration(context.Background(), "May-25")
	require.NoError(t, err)
	assert.NotEmpty(t, decl.Data)
	assert.Nil(t, decl.Archive)
	assert.Contains(t, decl.ArchiveError, "upload")
}

func TestPipeline_SessionRoundTrip(t *testing.T) {
	store, err := session.NewStore(t.TempDir(), "round")
	require.NoError(t, err)
	f := newFixture(t, func(d *service.PipelineDeps) {
		d.Sessions = store
		d.SaveRawLLM = true
	})
	processOne(t, f)
	entries := len(f.svc.AuditTrail())

	require.NoError(t, f.svc.SaveSession(service.StageInbound))
	raw, ok := store.RawResponse("PDO 2500430_NST.pdf#1")
	require.True(t, ok)
	assert.Contains(t, raw, "COURIER_LABEL")

	f.svc.Clear()
	assert.Empty(t, f.svc.Result().Inbound)
	assert.Empty(t, f.svc.AuditTrail())

	sum, err := f.svc.RestoreSession()
	require.NoError(t, err)
	assert.Equal(t, service.StageInbound, sum.Stage)
	assert.Equal(t, 1, sum.InboundCount)

	res := f.svc.Result()
	require.Len(t, res.Inbound, 1)
	assert.Equal(t, "PDO2500430", res.Inbound[0].Reference)
	assert.Contains(t, res.Ledger, "PDO 2500430")
	assert.Len(t, f.svc.AuditTrail(), entries)
}

func TestPipeline_RestoreWithoutStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RestoreSession()
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.NoError(t, f.svc.SaveSession(service.StageValidated))
}

func TestPipeline_Progress(t *testing.T) {
	var seen []service.Progress
	f := newFixture(t, func(d *service.PipelineDeps) {
		d.OnProgress = func(p service.Progress) { seen = append(seen, p) }
	})
	f.provider.On("Extract", mock.Anything, mock.Anything).Return(&port.PageOutput{Text: courierLabel}, nil)

	_, _, err := f.svc.ProcessInbound(context.Background(), []service.Document{pdfDoc("a.pdf", 2), pdfDoc("b.pdf", 1)})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, service.Progress{Stage: "Inbound Extraction", CurrentItem: "b.pdf", Processed: 3, Total: 3}, seen[2])
}
