package domain

import "strings"

// DocumentType classifies a single extracted page.
type DocumentType string

const (
	DocumentTypeCourierLabel      DocumentType = "COURIER_LABEL"
	DocumentTypeAirWaybill        DocumentType = "AIR_WAYBILL"
	DocumentTypeBillOfLading      DocumentType = "BILL_OF_LADING"
	DocumentTypeCommercialInvoice DocumentType = "COMMERCIAL_INVOICE"
	DocumentTypePackingList       DocumentType = "PACKING_LIST"
	DocumentTypeCargoPermit       DocumentType = "CARGO_PERMIT"
	DocumentTypeShipmentReport    DocumentType = "SHIPMENT_REPORT"
	DocumentTypePurchaseOrder     DocumentType = "PURCHASE_ORDER"
	DocumentTypeOther             DocumentType = "OTHER"
	DocumentTypeUnknown           DocumentType = "UNKNOWN"
)

var documentTypes = map[DocumentType]bool{
	DocumentTypeCourierLabel:      true,
	DocumentTypeAirWaybill:        true,
	DocumentTypeBillOfLading:      true,
	DocumentTypeCommercialInvoice: true,
	DocumentTypePackingList:       true,
	DocumentTypeCargoPermit:       true,
	DocumentTypeShipmentReport:    true,
	DocumentTypePurchaseOrder:     true,
	DocumentTypeOther:             true,
	DocumentTypeUnknown:           true,
}

// ParseDocumentType maps a raw label to a DocumentType, falling back to UNKNOWN.
func ParseDocumentType(s string) DocumentType {
	dt := DocumentType(strings.TrimSpace(s))
	if documentTypes[dt] {
		return dt
	}
	return DocumentTypeUnknown
}

// IsPriority reports whether the document type outranks others for shipping fields.
func (d DocumentType) IsPriority() bool {
	switch d {
	case DocumentTypeCourierLabel, DocumentTypeAirWaybill, DocumentTypeBillOfLading:
		return true
	}
	return false
}

// Confidence is the extraction confidence tag, ordered HIGH > MEDIUM > LOW.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ParseConfidence maps a raw label to a Confidence, falling back to MEDIUM.
func ParseConfidence(s string) Confidence {
	switch c := Confidence(strings.TrimSpace(s)); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	}
	return ConfidenceMedium
}

// Rank returns a comparable weight; higher means more confident.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// LowerConfidence returns the less confident of a and b.
func LowerConfidence(a, b Confidence) Confidence {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

// TransportMode is the shipment's mode of transport.
type TransportMode string

const (
	TransportModeCourier TransportMode = "COURIER"
	TransportModeAir     TransportMode = "AIR"
	TransportModeSea     TransportMode = "SEA"
	TransportModeTruck   TransportMode = "TRUCK"
	TransportModeUnknown TransportMode = "UNKNOWN"
)

// ParseTransportMode is case-insensitive and falls back to UNKNOWN.
func ParseTransportMode(s string) TransportMode {
	switch m := TransportMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case TransportModeCourier, TransportModeAir, TransportModeSea, TransportModeTruck:
		return m
	}
	return TransportModeUnknown
}

// Severity ranks validation and reconciliation issues.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// ReconciliationType categorizes a ledger/document disagreement.
type ReconciliationType string

const (
	ReconciliationValueMismatch     ReconciliationType = "VALUE_MISMATCH"
	ReconciliationCurrencyMismatch  ReconciliationType = "CURRENCY_MISMATCH"
	ReconciliationSplitMismatch     ReconciliationType = "COUNTRY_SPLIT_MISMATCH"
	ReconciliationMissingInLedger   ReconciliationType = "MISSING_IN_LEDGER"
	ReconciliationMissingInDocument ReconciliationType = "MISSING_IN_DOCUMENT"
	ReconciliationBrandMismatch     ReconciliationType = "BRAND_MISMATCH"
)

// AuditAction names the kind of event recorded in the audit trail.
type AuditAction string

const (
	AuditActionExtracted  AuditAction = "EXTRACTED"
	AuditActionReconciled AuditAction = "RECONCILED"
	AuditActionUserEdit   AuditAction = "USER_EDIT"
	AuditActionValidated  AuditAction = "VALIDATED"
	AuditActionExported   AuditAction = "EXPORTED"
)

// AuditSource tags where a field value came from.
type AuditSource string

const (
	AuditSourceAI     AuditSource = "AI"
	AuditSourceLedger AuditSource = "LEDGER"
	AuditSourceUser   AuditSource = "USER"
	AuditSourceSystem AuditSource = "SYSTEM"
)

// ExtractionMode selects the prompt and the response mapping for a page.
type ExtractionMode string

const (
	ExtractionModeInbound         ExtractionMode = "inbound"
	ExtractionModeOutboundAWB     ExtractionMode = "outbound_awb"
	ExtractionModeOutboundInvoice ExtractionMode = "outbound_invoice"
)

// LedgerMergeMode controls how ApplyLedger resolves conflicts.
type LedgerMergeMode string

const (
	LedgerMergeLedgerWins   LedgerMergeMode = "ledger_wins"
	LedgerMergeMerge        LedgerMergeMode = "merge"
	LedgerMergeDocumentWins LedgerMergeMode = "document_wins"
)
