package domain

import (
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExtractionResult is the typed output of extracting one page.
// A nil pointer field means the value was not observed on the page.
type ExtractionResult struct {
	DocumentType       DocumentType   `json:"document_type"`
	Confidence         Confidence     `json:"confidence"`
	TrackingOrAWB      *string        `json:"tracking_or_awb,omitempty"`
	ShipDate           *time.Time     `json:"ship_date,omitempty"`
	Mode               *TransportMode `json:"mode,omitempty"`
	FlightNumbers      []string       `json:"flight_numbers,omitempty"`
	OriginCountry      *string        `json:"origin_country,omitempty"`
	DestinationCountry *string        `json:"destination_country,omitempty"`
	Incoterms          *string        `json:"incoterms,omitempty"`
	Currency           *string        `json:"currency,omitempty"`
	TotalValue         *float64       `json:"total_value,omitempty"`
	Carrier            *string        `json:"carrier,omitempty"`
	VesselInfo         *string        `json:"vessel_info,omitempty"`
	ContainerNumber    *string        `json:"container_number,omitempty"`
	BrandCodes         []string       `json:"brand_codes,omitempty"`
	PageNumber         int            `json:"page_number"`
	RawResponse        string         `json:"raw_response"`
	Notes              string         `json:"notes"`
	Errors             []string       `json:"errors,omitempty"`
	Warnings           []string       `json:"warnings,omitempty"`
}

// FailedExtraction builds the low-confidence result returned when a page cannot be extracted.
func FailedExtraction(page int, raw string, errs ...string) ExtractionResult {
	return ExtractionResult{
		DocumentType: DocumentTypeUnknown,
		Confidence:   ConfidenceLow,
		PageNumber:   page,
		RawResponse:  raw,
		Errors:       errs,
	}
}

// AggregatedShipment holds field values resolved across all pages of one document.
type AggregatedShipment struct {
	TrackingOrAWB      *string        `json:"tracking_or_awb,omitempty"`
	ShipDate           *time.Time     `json:"ship_date,omitempty"`
	Mode               TransportMode  `json:"mode"`
	Carrier            *string        `json:"carrier,omitempty"`
	OriginCountry      *string        `json:"origin_country,omitempty"`
	DestinationCountry *string        `json:"destination_country,omitempty"`
	Incoterms          *string        `json:"incoterms,omitempty"`
	Currency           *string        `json:"currency,omitempty"`
	TotalValue         *float64       `json:"total_value,omitempty"`
	FlightNumbers      []string       `json:"flight_numbers"`
	VesselNames        []string       `json:"vessel_names"`
	ContainerNumbers   []string       `json:"container_numbers"`
	BrandCodes         []string       `json:"brand_codes"`
	FlightVessel       string         `json:"flight_vessel"`
	Confidence         Confidence     `json:"confidence"`
	DocumentTypes      []DocumentType `json:"document_types"`
	RawResponses       []string       `json:"raw_responses"`
	Errors             []string       `json:"errors"`
	Warnings           []string       `json:"warnings"`
}

// LedgerRecord is the authoritative financial record for one shipment identifier.
type LedgerRecord struct {
	ID         string             `json:"pdo_number"`
	Brands     []string           `json:"brands"`
	Currency   string             `json:"currency"`
	TotalValue float64            `json:"total_value"`
	Splits     map[string]float64 `json:"country_splits"`
	SourceFile string             `json:"source_file"`
	SheetName  string             `json:"sheet_name"`
	RowCount   int                `json:"row_count"`
}

// SplitsSum returns the sum of all region splits.
func (r *LedgerRecord) SplitsSum() float64 {
	return sumSplits(r.Splits)
}

// Ledger maps a storage key (the source sheet name) to its record.
type Ledger map[string]LedgerRecord

// Keys returns storage keys in sorted order so matching is deterministic.
func (l Ledger) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IDs returns the canonical identifiers of all records in key order.
func (l Ledger) IDs() []string {
	ids := make([]string, 0, len(l))
	for _, k := range l.Keys() {
		ids = append(ids, l[k].ID)
	}
	return ids
}

// ValidationIssue is a structural problem found on a finished record.
type ValidationIssue struct {
	Severity   Severity `json:"severity"`
	Field      string   `json:"field"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// HasErrors reports whether any issue has ERROR severity.
func HasErrors(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ReconciliationIssue records a disagreement between ledger and document values.
type ReconciliationIssue struct {
	Type           ReconciliationType `json:"issue_type"`
	Severity       Severity           `json:"severity"`
	Field          string             `json:"field"`
	LedgerValue    any                `json:"ledger_value"`
	DocumentValue  any                `json:"document_value"`
	Message        string             `json:"message"`
	Suggestion     string             `json:"suggestion"`
	AutoResolvable bool               `json:"auto_resolvable"`
}

// ReconciliationResult is the outcome of reconciling one shipment.
type ReconciliationResult struct {
	Reference       string                `json:"reference"`
	MatchedLedgerID string                `json:"matched_ledger_id,omitempty"`
	Issues          []ReconciliationIssue `json:"issues"`
	LedgerApplied   bool                  `json:"ledger_applied"`
}

// HasIssues reports whether any issue was raised.
func (r *ReconciliationResult) HasIssues() bool { return len(r.Issues) > 0 }

// HasErrors reports whether any issue has ERROR severity.
func (r *ReconciliationResult) HasErrors() bool { return r.count(SeverityError) > 0 }

// HasWarnings reports whether any issue has WARNING severity.
func (r *ReconciliationResult) HasWarnings() bool { return r.count(SeverityWarning) > 0 }

func (r *ReconciliationResult) count(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// Summary returns a one-line description of the result.
func (r *ReconciliationResult) Summary() string {
	if !r.HasIssues() {
		return "Reconciled successfully"
	}
	var parts []string
	if n := r.count(SeverityError); n > 0 {
		parts = append(parts, strconv.Itoa(n)+" error(s)")
	}
	if n := r.count(SeverityWarning); n > 0 {
		parts = append(parts, strconv.Itoa(n)+" warning(s)")
	}
	if n := r.count(SeverityInfo); n > 0 {
		parts = append(parts, strconv.Itoa(n)+" info")
	}
	return strings.Join(parts, " | ")
}

// InboundShipment is a declaration row for goods arriving at the home country.
type InboundShipment struct {
	Reference            string                `json:"reference"`
	ShipDate             *time.Time            `json:"etd_date,omitempty"`
	TrackingOrAWB        string                `json:"tracking_or_awb"`
	Incoterms            string                `json:"incoterms"`
	Mode                 TransportMode         `json:"mode"`
	FlightVessel         string                `json:"flight_vessel"`
	OriginCountry        string                `json:"origin_country"`
	DestinationCountry   string                `json:"destination_country"`
	Brands               []string              `json:"brands"`
	Description          string                `json:"description"`
	Currency             string                `json:"currency"`
	TotalValue           *float64              `json:"total_value,omitempty"`
	Splits               map[string]float64    `json:"country_splits"`
	SourceFiles          []string              `json:"source_files"`
	MatchedLedgerIDs     []string              `json:"matched_ledger_ids"`
	Confidence           Confidence            `json:"extraction_confidence"`
	ValidationIssues     []ValidationIssue     `json:"validation_issues"`
	ReconciliationIssues []ReconciliationIssue `json:"reconciliation_issues"`
	UserModifiedFields   []string              `json:"user_modified_fields"`
}

// Clone returns a deep copy so callers can derive a new record without mutating the original.
func (s InboundShipment) Clone() InboundShipment {
	c := s
	if s.ShipDate != nil {
		d := *s.ShipDate
		c.ShipDate = &d
	}
	if s.TotalValue != nil {
		v := *s.TotalValue
		c.TotalValue = &v
	}
	c.Brands = slices.Clone(s.Brands)
	c.Splits = maps.Clone(s.Splits)
	c.SourceFiles = slices.Clone(s.SourceFiles)
	c.MatchedLedgerIDs = slices.Clone(s.MatchedLedgerIDs)
	c.ValidationIssues = slices.Clone(s.ValidationIssues)
	c.ReconciliationIssues = slices.Clone(s.ReconciliationIssues)
	c.UserModifiedFields = slices.Clone(s.UserModifiedFields)
	return c
}

// BrandString renders brands for display.
func (s *InboundShipment) BrandString() string {
	return strings.Join(s.Brands, ", ")
}

// SplitsSum returns the sum of all region splits.
func (s *InboundShipment) SplitsSum() float64 {
	return sumSplits(s.Splits)
}

// MarkUserModified records a reviewer-edited field once.
func (s *InboundShipment) MarkUserModified(field string) {
	if !slices.Contains(s.UserModifiedFields, field) {
		s.UserModifiedFields = append(s.UserModifiedFields, field)
	}
}

// OutboundShipment is a declaration row for goods leaving the home country.
type OutboundShipment struct {
	InvoiceNumber      string            `json:"invoice_number"`
	Date               *time.Time        `json:"date,omitempty"`
	FlightVehicle      string            `json:"flight_vehicle"`
	Mode               TransportMode     `json:"mode"`
	Origin             string            `json:"origin"`
	Destination        string            `json:"destination"`
	Description        string            `json:"description"`
	Currency           string            `json:"currency"`
	Value              *float64          `json:"value,omitempty"`
	FCLLCL             string            `json:"fcl_lcl"`
	AWBFile            string            `json:"awb_file,omitempty"`
	InvoiceFile        string            `json:"invoice_file,omitempty"`
	Confidence         Confidence        `json:"extraction_confidence"`
	ValidationIssues   []ValidationIssue `json:"validation_issues"`
	UserModifiedFields []string          `json:"user_modified_fields"`
}

// MarkUserModified records a reviewer-edited field once.
func (s *OutboundShipment) MarkUserModified(field string) {
	if !slices.Contains(s.UserModifiedFields, field) {
		s.UserModifiedFields = append(s.UserModifiedFields, field)
	}
}

// AuditEntry is one field mutation or lifecycle event.
type AuditEntry struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"session_id"`
	Timestamp time.Time   `db:"created_at" json:"timestamp"`
	Action    AuditAction `db:"action" json:"action"`
	Reference string      `db:"reference" json:"record_reference"`
	Field     string      `db:"field_name" json:"field_name"`
	OldValue  string      `db:"old_value" json:"old_value"`
	NewValue  string      `db:"new_value" json:"new_value"`
	Source    AuditSource `db:"source" json:"source"`
	Notes     string      `db:"notes" json:"notes"`
}

func sumSplits(splits map[string]float64) float64 {
	total := 0.0
	for _, v := range splits {
		total += v
	}
	return total
}
