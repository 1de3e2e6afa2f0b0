package service

import (
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"shipdecl/internal/aggregator"
	"shipdecl/internal/audit"
	"shipdecl/internal/classifier"
	"shipdecl/internal/domain"
	"shipdecl/internal/export"
	"shipdecl/internal/ledger"
	"shipdecl/internal/matcher"
	"shipdecl/internal/normalize"
	"shipdecl/internal/parser"
	"shipdecl/internal/reconcile"
	"shipdecl/internal/session"
	"shipdecl/internal/validator"
)

// Stage names recorded with saved sessions.
const (
	StageLedgerLoaded = "ledger_loaded"
	StageInbound      = "inbound_processed"
	StageOutbound     = "outbound_processed"
	StageValidated    = "validated"
	StageExported     = "exported"
)

// LedgerFile is an uploaded ledger workbook.
type LedgerFile struct {
	Name string
	Data []byte
}

// Document is one source file and its rendered pages, in page order.
type Document struct {
	Name  string
	Pages []parser.Page
}

// Progress is reported after every unit of work.
type Progress struct {
	Stage       string
	CurrentItem string
	Processed   int
	Total       int
}

// StageReport collects per-file problems of one pipeline stage. A file that fails is
// reported here and the stage carries on with the rest.
type StageReport struct {
	Stage     string   `json:"stage"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

func newReport(stage string) *StageReport {
	return &StageReport{Stage: stage, Errors: []string{}, Warnings: []string{}}
}

func (r *StageReport) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *StageReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// PipelineResult is a snapshot of everything the pipeline holds.
type PipelineResult struct {
	Success        bool                                   `json:"success"`
	Inbound        []domain.InboundShipment               `json:"inbound_shipments"`
	Outbound       []domain.OutboundShipment              `json:"outbound_shipments"`
	Ledger         domain.Ledger                          `json:"ledger"`
	Reconciliation map[string]domain.ReconciliationResult `json:"reconciliation"`
	Elapsed        time.Duration                          `json:"processing_time"`
}

// Declaration is a generated workbook.
type Declaration struct {
	Filename     string
	Data         []byte
	Archive      *export.Archived
	ArchiveError string
}

// PipelineService sequences ledger loading, extraction, aggregation, matching,
// reconciliation, validation and export for one session.
type PipelineService interface {
	LoadLedgerFiles(files []LedgerFile) *StageReport
	ProcessInbound(ctx context.Context, docs []Document) ([]domain.InboundShipment, *StageReport, error)
	ProcessOutbound(ctx context.Context, awbs, invoices []Document) ([]domain.OutboundShipment, *StageReport, error)
	ValidateAll() map[string][]domain.ValidationIssue
	GenerateDeclaration(ctx context.Context, period string) (*Declaration, error)
	UpdateInbound(index int, updates map[string]any) (*domain.InboundShipment, error)
	UpdateOutbound(index int, updates map[string]any) (*domain.OutboundShipment, error)
	Result() PipelineResult
	AuditTrail() []domain.AuditEntry
	Clear()
	SaveSession(stage string) error
	RestoreSession() (*session.Summary, error)
}

// PipelineDeps wires the pipeline's collaborators. Extractor may be nil when no API key is
// configured; extraction stages then fail with domain.ErrMissingAPIKey before any work.
// Archiver and Sessions are optional.
type PipelineDeps struct {
	Extractor    *parser.Extractor
	LedgerParser *ledger.Parser
	Aggregator   *aggregator.Aggregator
	Reconciler   *reconcile.Engine
	Validator    *validator.Engine
	Classifier   *classifier.Classifier
	Generator    *export.Generator
	Archiver     *export.Archiver
	Audit        *audit.Trail
	Sessions     *session.Store

	HomeCountry     string
	DefaultFCLLCL   string
	AutoApplyLedger bool
	SaveRawLLM      bool
	OnProgress      func(Progress)
}

type pipelineService struct {
	deps PipelineDeps

	mu             sync.Mutex
	ledger         domain.Ledger
	inbound        []domain.InboundShipment
	outbound       []domain.OutboundShipment
	reconciliation map[string]domain.ReconciliationResult
	started        time.Time
}

// NewPipelineService creates a PipelineService. Missing collaborators get defaults.
func NewPipelineService(deps PipelineDeps) PipelineService {
	if deps.LedgerParser == nil {
		deps.LedgerParser = ledger.NewParser(nil)
	}
	if deps.Aggregator == nil {
		deps.Aggregator = aggregator.New(nil)
	}
	if deps.Reconciler == nil {
		deps.Reconciler = reconcile.NewEngine(reconcile.DefaultTolerancePercent)
	}
	if deps.Validator == nil {
		deps.Validator = validator.NewEngine(validator.Options{})
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.Default()
	}
	if deps.Generator == nil {
		deps.Generator = export.NewGenerator(export.Options{})
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewTrail(session.NewSessionID())
	}
	if deps.HomeCountry == "" {
		deps.HomeCountry = parser.DefaultHomeCountry
	}
	if deps.DefaultFCLLCL == "" {
		deps.DefaultFCLLCL = "LCL"
	}
	return &pipelineService{
		deps:           deps,
		ledger:         domain.Ledger{},
		reconciliation: map[string]domain.ReconciliationResult{},
	}
}

func (s *pipelineService) progress(p Progress) {
	if s.deps.OnProgress != nil {
		s.deps.OnProgress(p)
	}
}

// LoadLedgerFiles validates and parses each workbook. Bad files are reported and skipped.
func (s *pipelineService) LoadLedgerFiles(files []LedgerFile) *StageReport {
	report := newReport("Ledger Parsing")
	for i, f := range files {
		s.progress(Progress{Stage: report.Stage, CurrentItem: f.Name, Processed: i, Total: len(files)})

		if err := ledger.ValidateExcelBytes(f.Data); err != nil {
			report.errorf("Invalid file %s: %v", f.Name, err)
			continue
		}
		parsed, err := s.deps.LedgerParser.Parse(bytesReader(f.Data), f.Name)
		if err != nil {
			log.Printf("pipelineService.LoadLedgerFiles: %s: %v", f.Name, err)
			report.errorf("Failed to parse %s: %v", f.Name, err)
			continue
		}

		s.mu.Lock()
		for key, rec := range parsed {
			s.ledger[key] = rec
		}
		s.mu.Unlock()

		for _, key := range parsed.Keys() {
			rec := parsed[key]
			s.deps.Audit.LogExtraction(rec.ID, "ledger_data",
				fmt.Sprintf("%s %.2f", rec.Currency, rec.TotalValue), domain.AuditSourceLedger)
			for _, issue := range s.deps.Validator.ValidateLedger(&rec) {
				if issue.Severity == domain.SeverityError {
					report.errorf("Ledger %s (%s): %s", rec.ID, f.Name, issue.Message)
					continue
				}
				report.warnf("Ledger %s (%s): %s", rec.ID, f.Name, issue.Message)
			}
		}
		report.Processed++
		log.Printf("pipelineService.LoadLedgerFiles: parsed %s: %d records", f.Name, len(parsed))
	}
	s.progress(Progress{Stage: report.Stage, Processed: len(files), Total: len(files)})
	return report
}

// ProcessInbound extracts every page of every document, one call at a time, and appends
// one shipment per document.
func (s *pipelineService) ProcessInbound(ctx context.Context, docs []Document) ([]domain.InboundShipment, *StageReport, error) {
	if s.deps.Extractor == nil {
		return nil, nil, domain.ErrMissingAPIKey
	}
	s.markStarted()
	report := newReport("Inbound Extraction")
	ledgerSnap := s.ledgerSnapshot()

	total := 0
	for _, d := range docs {
		total += len(d.Pages)
	}
	done := 0

	created := []domain.InboundShipment{}
	for _, doc := range docs {
		if len(doc.Pages) == 0 {
			report.errorf("Failed to process %s: document has no pages", doc.Name)
			continue
		}

		results := make([]domain.ExtractionResult, 0, len(doc.Pages))
		for _, page := range doc.Pages {
			res := s.deps.Extractor.ExtractPage(ctx, page, domain.ExtractionModeInbound)
			results = append(results, res)
			done++
			s.progress(Progress{Stage: report.Stage, CurrentItem: doc.Name, Processed: done, Total: total})

			s.deps.Audit.LogExtraction(doc.Name, fmt.Sprintf("page_%d", res.PageNumber), string(res.DocumentType), domain.AuditSourceAI)
			s.saveRaw(doc.Name, res)
			for _, e := range res.Errors {
				report.warnf("%s page %d: %s", doc.Name, res.PageNumber, e)
			}
		}

		shipment, result := s.buildInbound(doc.Name, results, ledgerSnap, report)
		created = append(created, shipment)

		s.mu.Lock()
		s.inbound = append(s.inbound, shipment)
		s.reconciliation[shipment.Reference] = result
		s.mu.Unlock()
		report.Processed++
	}
	return created, report, nil
}

func (s *pipelineService) buildInbound(name string, pages []domain.ExtractionResult, ledgerSnap domain.Ledger, report *StageReport) (domain.InboundShipment, domain.ReconciliationResult) {
	agg := s.deps.Aggregator.Aggregate(pages)
	matches := matcher.MatchFilename(name, ledgerSnap)
	for _, c := range matches.Unmatched {
		if len(ledgerSnap) > 0 {
			report.warnf("%s: no ledger record for PDO %s", name, c)
		}
	}

	shipment := domain.InboundShipment{
		Reference:          inboundReference(name, matches),
		ShipDate:           agg.ShipDate,
		TrackingOrAWB:      deref(agg.TrackingOrAWB),
		Incoterms:          deref(agg.Incoterms),
		Mode:               agg.Mode,
		FlightVessel:       agg.FlightVessel,
		OriginCountry:      deref(agg.OriginCountry),
		DestinationCountry: s.deps.HomeCountry,
		Brands:             slices.Clone(agg.BrandCodes),
		Currency:           deref(agg.Currency),
		TotalValue:         agg.TotalValue,
		Splits:             map[string]float64{},
		SourceFiles:        []string{name},
		MatchedLedgerIDs:   []string{},
		Confidence:         agg.Confidence,
	}
	s.auditExtracted(&shipment)

	var (
		out    domain.InboundShipment
		result domain.ReconciliationResult
	)
	if combined, ok := reconcile.CombineLedger(matches.Records()); ok {
		out, result = s.deps.Reconciler.ReconcileRecord(shipment, combined, s.deps.AutoApplyLedger)
		out.MatchedLedgerIDs = matches.IDs()
		result.MatchedLedgerID = strings.Join(matches.IDs(), ", ")
	} else {
		out, result = s.deps.Reconciler.Reconcile(shipment, ledgerSnap, s.deps.AutoApplyLedger)
	}

	// Brand codes read off the purchase order outrank the ledger's.
	if len(agg.BrandCodes) > 0 {
		out.Brands = slices.Clone(agg.BrandCodes)
	}
	s.auditLedger(&shipment, &out)

	out.ValidationIssues = s.deps.Validator.ValidateInbound(&out)
	return out, result
}

// inboundReference is "PDO<n>, ..." from ledger matches, else from the file name ids,
// else the file name.
func inboundReference(name string, m matcher.Result) string {
	var ids []string
	for _, match := range m.Matches {
		ids = append(ids, match.Candidate)
	}
	if len(ids) == 0 {
		ids = normalize.PDONumbers(name)
	}
	if len(ids) == 0 {
		return name
	}
	seen := map[string]bool{}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			parts = append(parts, "PDO"+id)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *pipelineService) auditExtracted(sh *domain.InboundShipment) {
	fields := []struct {
		name  string
		value any
		set   bool
	}{
		{"etd_date", sh.ShipDate, sh.ShipDate != nil},
		{"tracking_or_awb", sh.TrackingOrAWB, sh.TrackingOrAWB != ""},
		{"incoterms", sh.Incoterms, sh.Incoterms != ""},
		{"mode", string(sh.Mode), sh.Mode != domain.TransportModeUnknown},
		{"flight_vessel", sh.FlightVessel, sh.FlightVessel != ""},
		{"origin_country", sh.OriginCountry, sh.OriginCountry != ""},
		{"brands", sh.Brands, len(sh.Brands) > 0},
		{"currency", sh.Currency, sh.Currency != ""},
		{"total_value", sh.TotalValue, sh.TotalValue != nil},
	}
	for _, f := range fields {
		if f.set {
			s.deps.Audit.LogExtraction(sh.Reference, f.name, f.value, domain.AuditSourceAI)
		}
	}
}

// auditLedger records every field reconciliation changed.
func (s *pipelineService) auditLedger(before, after *domain.InboundShipment) {
	if before.Currency != after.Currency {
		s.deps.Audit.LogLedgerApply(after.Reference, "currency", before.Currency, after.Currency)
	}
	if audit.FormatValue(before.TotalValue) != audit.FormatValue(after.TotalValue) {
		s.deps.Audit.LogLedgerApply(after.Reference, "total_value", before.TotalValue, after.TotalValue)
	}
	if !slices.Equal(before.Brands, after.Brands) {
		s.deps.Audit.LogLedgerApply(after.Reference, "brands", before.Brands, after.Brands)
	}
	if !maps.Equal(before.Splits, after.Splits) {
		s.deps.Audit.LogLedgerApply(after.Reference, "country_splits", formatSplits(before.Splits), formatSplits(after.Splits))
	}
}

// ProcessOutbound extracts the first page of every waybill, then every invoice, pairing
// each invoice with the waybill whose file name carries the invoice's ITR number. Waybills
// left unpaired become shipments of their own.
func (s *pipelineService) ProcessOutbound(ctx context.Context, awbs, invoices []Document) ([]domain.OutboundShipment, *StageReport, error) {
	if s.deps.Extractor == nil {
		return nil, nil, domain.ErrMissingAPIKey
	}
	s.markStarted()
	report := newReport("Outbound Extraction")
	total := len(awbs) + len(invoices)
	done := 0

	type awbExtraction struct {
		name   string
		result domain.ExtractionResult
	}
	var extracted []awbExtraction
	for _, doc := range awbs {
		done++
		s.progress(Progress{Stage: report.Stage, CurrentItem: doc.Name, Processed: done, Total: total})
		if len(doc.Pages) == 0 {
			report.errorf("AWB extraction failed for %s: document has no pages", doc.Name)
			continue
		}
		res := s.deps.Extractor.ExtractPage(ctx, doc.Pages[0], domain.ExtractionModeOutboundAWB)
		s.saveRaw(doc.Name, res)
		for _, e := range res.Errors {
			report.warnf("%s: %s", doc.Name, e)
		}
		extracted = append(extracted, awbExtraction{name: doc.Name, result: res})
	}

	paired := map[string]bool{}
	created := []domain.OutboundShipment{}
	for _, doc := range invoices {
		done++
		s.progress(Progress{Stage: report.Stage, CurrentItem: doc.Name, Processed: done, Total: total})
		if len(doc.Pages) == 0 {
			report.errorf("Invoice extraction failed for %s: document has no pages", doc.Name)
			continue
		}
		inv := s.deps.Extractor.ExtractPage(ctx, doc.Pages[0], domain.ExtractionModeOutboundInvoice)
		s.saveRaw(doc.Name, inv)
		for _, e := range inv.Errors {
			report.warnf("%s: %s", doc.Name, e)
		}

		var awb *domain.ExtractionResult
		awbName := ""
		if itr, ok := normalize.ITRNumber(doc.Name); ok {
			needle := compact(itr)
			for i := range extracted {
				if !paired[extracted[i].name] && strings.Contains(compact(extracted[i].name), needle) {
					awb = &extracted[i].result
					awbName = extracted[i].name
					paired[awbName] = true
					break
				}
			}
		}
		created = append(created, s.buildOutbound(doc.Name, &inv, awb, awbName))
		report.Processed++
	}

	for _, a := range extracted {
		if paired[a.name] {
			continue
		}
		res := a.result
		created = append(created, s.buildOutbound(a.name, nil, &res, a.name))
		report.warnf("AWB %s processed without matching invoice", a.name)
		report.Processed++
	}

	s.mu.Lock()
	s.outbound = append(s.outbound, created...)
	s.mu.Unlock()
	return created, report, nil
}

// buildOutbound combines a waybill and an invoice. The waybill wins for date and flight,
// the invoice for currency, value and destination.
func (s *pipelineService) buildOutbound(filename string, inv, awb *domain.ExtractionResult, awbName string) domain.OutboundShipment {
	var (
		date        *time.Time
		flight      string
		destination string
		currency    string
		value       *float64
		description string
		confidence  = domain.ConfidenceHigh
	)

	if awb != nil {
		flight = strings.Join(awb.FlightNumbers, " / ")
		date = awb.ShipDate
		destination = deref(awb.DestinationCountry)
		currency = deref(awb.Currency)
		description = descriptionFromNotes(awb.Notes, true)
		confidence = awb.Confidence
	}
	if inv != nil {
		if date == nil {
			date = inv.ShipDate
		}
		if inv.Currency != nil {
			currency = *inv.Currency
		}
		if inv.TotalValue != nil && *inv.TotalValue != 0 {
			value = inv.TotalValue
		}
		if inv.DestinationCountry != nil {
			destination = *inv.DestinationCountry
		}
		if description == "" {
			description = descriptionFromNotes(inv.Notes, false)
		}
		if awb == nil {
			confidence = inv.Confidence
		} else {
			confidence = domain.LowerConfidence(confidence, inv.Confidence)
		}
	}

	invoiceNumber := filename
	if itr, ok := normalize.ITRNumber(filename); ok {
		invoiceNumber = itr
	}
	category := ""
	if description != "" {
		category = s.deps.Classifier.Classify(description).String()
	}

	sh := domain.OutboundShipment{
		InvoiceNumber: invoiceNumber,
		Date:          date,
		FlightVehicle: flight,
		Mode:          domain.TransportModeAir,
		Origin:        s.deps.HomeCountry,
		Destination:   destination,
		Description:   category,
		Currency:      currency,
		Value:         value,
		FCLLCL:        s.deps.DefaultFCLLCL,
		AWBFile:       awbName,
		Confidence:    confidence,
	}
	if inv != nil {
		sh.InvoiceFile = filename
	}

	for _, f := range []struct {
		name  string
		value any
		set   bool
	}{
		{"date", sh.Date, sh.Date != nil},
		{"flight_vehicle", sh.FlightVehicle, sh.FlightVehicle != ""},
		{"destination", sh.Destination, sh.Destination != ""},
		{"description", sh.Description, sh.Description != ""},
		{"currency", sh.Currency, sh.Currency != ""},
		{"value", sh.Value, sh.Value != nil},
	} {
		if f.set {
			s.deps.Audit.LogExtraction(sh.InvoiceNumber, f.name, f.value, domain.AuditSourceAI)
		}
	}

	sh.ValidationIssues = s.deps.Validator.ValidateOutbound(&sh)
	return sh
}

// descriptionFromNotes pulls the text after "Description:". Waybill notes carry further
// "|"-separated parts after it; invoice notes end with the description.
func descriptionFromNotes(notes string, stopAtPipe bool) string {
	_, after, ok := strings.Cut(notes, "Description:")
	if !ok {
		return ""
	}
	if stopAtPipe {
		after, _, _ = strings.Cut(after, "|")
	}
	return strings.TrimSpace(after)
}

// ValidateAll re-runs validation on every shipment and returns the issues by reference.
func (s *pipelineService) ValidateAll() map[string][]domain.ValidationIssue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *pipelineService) validateLocked() map[string][]domain.ValidationIssue {
	out := map[string][]domain.ValidationIssue{}
	for i := range s.inbound {
		sh := &s.inbound[i]
		sh.ValidationIssues = s.deps.Validator.ValidateInbound(sh)
		if len(sh.ValidationIssues) > 0 {
			out[sh.Reference] = sh.ValidationIssues
			s.deps.Audit.LogValidation(sh.Reference, sh.ValidationIssues)
		}
	}
	for i := range s.outbound {
		sh := &s.outbound[i]
		sh.ValidationIssues = s.deps.Validator.ValidateOutbound(sh)
		if len(sh.ValidationIssues) > 0 {
			out[sh.InvoiceNumber] = sh.ValidationIssues
			s.deps.Audit.LogValidation(sh.InvoiceNumber, sh.ValidationIssues)
		}
	}
	return out
}

// GenerateDeclaration validates every record, renders the workbook and, when an archiver
// is configured, stores a copy. Error-severity issues do not block the export.
func (s *pipelineService) GenerateDeclaration(ctx context.Context, period string) (*Declaration, error) {
	s.mu.Lock()
	s.validateLocked()
	inbound := cloneInbound(s.inbound)
	outbound := slices.Clone(s.outbound)
	s.mu.Unlock()

	data, err := s.deps.Generator.Generate(inbound, outbound, period)
	if err != nil {
		return nil, fmt.Errorf("generating declaration: %w", err)
	}
	decl := &Declaration{Filename: export.Filename(period), Data: data}

	destination := "Excel"
	if s.deps.Archiver != nil {
		archived, err := s.deps.Archiver.Archive(ctx, period, s.deps.Audit.SessionID(), data)
		if err != nil {
			log.Printf("pipelineService.GenerateDeclaration: archive failed: %v", err)
			decl.ArchiveError = err.Error()
		} else {
			decl.Archive = archived
			destination = "Excel (s3://" + archived.Bucket + "/" + archived.Key + ")"
		}
	}
	for _, sh := range inbound {
		s.deps.Audit.LogExport(sh.Reference, destination)
	}
	for _, sh := range outbound {
		s.deps.Audit.LogExport(sh.InvoiceNumber, destination)
	}
	return decl, nil
}

// UpdateInbound applies reviewer edits to one inbound shipment, audits each changed field
// and re-validates the record.
func (s *pipelineService) UpdateInbound(index int, updates map[string]any) (*domain.InboundShipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.inbound) {
		return nil, fmt.Errorf("inbound %d: %w", index, domain.ErrShipmentNotFound)
	}

	edited := s.inbound[index].Clone()
	var changes []fieldChange
	for _, field := range slices.Sorted(maps.Keys(updates)) {
		old, err := inboundField(&edited, field)
		if err != nil {
			return nil, err
		}
		if err := setInboundField(&edited, field, updates[field]); err != nil {
			return nil, err
		}
		now, _ := inboundField(&edited, field)
		if audit.FormatValue(old) == audit.FormatValue(now) {
			continue
		}
		edited.MarkUserModified(field)
		changes = append(changes, fieldChange{reference: edited.Reference, field: field, before: old, after: now})
	}
	// Nothing is audited until every field has been accepted.
	s.logUserEdits(changes)
	edited.ValidationIssues = s.deps.Validator.ValidateInbound(&edited)
	s.inbound[index] = edited
	out := edited.Clone()
	return &out, nil
}

// UpdateOutbound is UpdateInbound for outbound shipments.
func (s *pipelineService) UpdateOutbound(index int, updates map[string]any) (*domain.OutboundShipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.outbound) {
		return nil, fmt.Errorf("outbound %d: %w", index, domain.ErrShipmentNotFound)
	}

	edited := s.outbound[index]
	edited.UserModifiedFields = slices.Clone(edited.UserModifiedFields)
	var changes []fieldChange
	for _, field := range slices.Sorted(maps.Keys(updates)) {
		old, err := outboundField(&edited, field)
		if err != nil {
			return nil, err
		}
		if err := setOutboundField(&edited, field, updates[field]); err != nil {
			return nil, err
		}
		now, _ := outboundField(&edited, field)
		if audit.FormatValue(old) == audit.FormatValue(now) {
			continue
		}
		edited.MarkUserModified(field)
		changes = append(changes, fieldChange{reference: edited.InvoiceNumber, field: field, before: old, after: now})
	}
	s.logUserEdits(changes)
	edited.ValidationIssues = s.deps.Validator.ValidateOutbound(&edited)
	s.outbound[index] = edited
	out := edited
	return &out, nil
}

// fieldChange is one accepted reviewer edit waiting to be audited.
type fieldChange struct {
	reference string
	field     string
	before    any
	after     any
}

func (s *pipelineService) logUserEdits(changes []fieldChange) {
	for _, c := range changes {
		s.deps.Audit.LogUserEdit(c.reference, c.field, c.before, c.after)
	}
}

func (s *pipelineService) Result() PipelineResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := PipelineResult{
		Success:        len(s.inbound) > 0 || len(s.outbound) > 0,
		Inbound:        cloneInbound(s.inbound),
		Outbound:       slices.Clone(s.outbound),
		Ledger:         maps.Clone(s.ledger),
		Reconciliation: maps.Clone(s.reconciliation),
	}
	if !s.started.IsZero() {
		res.Elapsed = time.Since(s.started)
	}
	return res
}

func (s *pipelineService) AuditTrail() []domain.AuditEntry {
	return s.deps.Audit.Entries()
}

// Clear drops all in-memory state. Saved sessions are left on disk.
func (s *pipelineService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = domain.Ledger{}
	s.inbound = nil
	s.outbound = nil
	s.reconciliation = map[string]domain.ReconciliationResult{}
	s.started = time.Time{}
	s.deps.Audit.Clear()
}

// SaveSession persists the current state. Without a session store it does nothing.
func (s *pipelineService) SaveSession(stage string) error {
	if s.deps.Sessions == nil {
		return nil
	}
	s.mu.Lock()
	snap := session.Snapshot{
		Ledger:       maps.Clone(s.ledger),
		Inbound:      cloneInbound(s.inbound),
		Outbound:     slices.Clone(s.outbound),
		AuditEntries: s.deps.Audit.Entries(),
		Settings: map[string]string{
			"home_country":      s.deps.HomeCountry,
			"default_fcl_lcl":   s.deps.DefaultFCLLCL,
			"auto_apply_ledger": fmt.Sprint(s.deps.AutoApplyLedger),
		},
		Stage: stage,
	}
	s.mu.Unlock()

	if err := s.deps.Sessions.Save(snap); err != nil {
		return fmt.Errorf("pipelineService.SaveSession: %w", err)
	}
	return nil
}

// RestoreSession replaces the in-memory state with the saved snapshot.
func (s *pipelineService) RestoreSession() (*session.Summary, error) {
	if s.deps.Sessions == nil {
		return nil, domain.ErrNoSession
	}
	snap, err := s.deps.Sessions.Load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.ledger = snap.Ledger
	if s.ledger == nil {
		s.ledger = domain.Ledger{}
	}
	s.inbound = snap.Inbound
	s.outbound = snap.Outbound
	s.reconciliation = map[string]domain.ReconciliationResult{}
	s.mu.Unlock()
	s.deps.Audit.Restore(snap.AuditEntries)

	sum := s.deps.Sessions.Summary()
	log.Printf("pipelineService.RestoreSession: restored session %s at stage %q", sum.SessionID, sum.Stage)
	return &sum, nil
}

func (s *pipelineService) markStarted() {
	s.mu.Lock()
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.mu.Unlock()
}

func (s *pipelineService) ledgerSnapshot() domain.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.ledger)
}

func (s *pipelineService) saveRaw(name string, res domain.ExtractionResult) {
	if s.deps.Sessions == nil || !s.deps.SaveRawLLM || res.RawResponse == "" {
		return
	}
	key := fmt.Sprintf("%s#%d", name, res.PageNumber)
	if err := s.deps.Sessions.SaveRawResponse(key, res.RawResponse); err != nil {
		log.Printf("pipelineService.saveRaw: %s: %v", key, err)
	}
}

func cloneInbound(in []domain.InboundShipment) []domain.InboundShipment {
	if in == nil {
		return nil
	}
	out := make([]domain.InboundShipment, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func compact(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}
