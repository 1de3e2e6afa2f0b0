package parser

import (
	"log"
	"os"
	"path/filepath"

	"shipdecl/internal/domain"
)

// Prompt file names looked up in the prompts directory.
const (
	InboundPromptFile         = "inbound_extraction.txt"
	OutboundAWBPromptFile     = "outbound_awb.txt"
	OutboundInvoicePromptFile = "outbound_invoice.txt"
)

// Prompts holds the instruction text sent with each page, per extraction mode.
type Prompts map[domain.ExtractionMode]string

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		domain.ExtractionModeInbound:         inboundPrompt,
		domain.ExtractionModeOutboundAWB:     outboundAWBPrompt,
		domain.ExtractionModeOutboundInvoice: outboundInvoicePrompt,
	}
}

// LoadPrompts reads prompt overrides from dir. A missing file keeps the built-in prompt.
func LoadPrompts(dir string) Prompts {
	prompts := DefaultPrompts()
	files := map[domain.ExtractionMode]string{
		domain.ExtractionModeInbound:         InboundPromptFile,
		domain.ExtractionModeOutboundAWB:     OutboundAWBPromptFile,
		domain.ExtractionModeOutboundInvoice: OutboundInvoicePromptFile,
	}
	if dir == "" {
		return prompts
	}
	for mode, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("parser.LoadPrompts: %s prompt not found at %s, using built-in", mode, path)
			continue
		}
		prompts[mode] = string(data)
	}
	return prompts
}

// For returns the prompt for mode, falling back to the inbound prompt.
func (p Prompts) For(mode domain.ExtractionMode) string {
	if s, ok := p[mode]; ok && s != "" {
		return s
	}
	if s, ok := p[domain.ExtractionModeInbound]; ok && s != "" {
		return s
	}
	return inboundPrompt
}

const inboundPrompt = `You are analyzing a shipping document image for an inbound insurance declaration.

TASK: Extract shipping information. Identify document type first, then extract fields.

DOCUMENT TYPES:
- COURIER_LABEL: FedEx/DHL/UPS label with "TRK#" field
- AIR_WAYBILL: "Air Waybill"/"AWB"/"MAWB"/"HAWB" with XXX-XXXXXXXX format
- BILL_OF_LADING: ocean "Bill of Lading" with vessel and container details
- COMMERCIAL_INVOICE: Invoice with incoterms/values
- PACKING_LIST: packing list with cartons and weights
- CARGO_PERMIT: import/export permit
- SHIPMENT_REPORT: internal shipment report
- PURCHASE_ORDER: purchase order with brand codes
- OTHER: Any other document

RESPONSE FORMAT (JSON only):
{
    "document_type": "COURIER_LABEL|AIR_WAYBILL|BILL_OF_LADING|COMMERCIAL_INVOICE|PACKING_LIST|CARGO_PERMIT|SHIPMENT_REPORT|PURCHASE_ORDER|OTHER",
    "tracking_or_awb": "number or null",
    "ship_date": "YYYY-MM-DD or null",
    "mode": "COURIER|AIR|SEA|null",
    "flight_numbers": [],
    "vessel_info": "vessel name and voyage or null",
    "container_number": "container id or null",
    "origin_country": "FULL NAME or null",
    "destination_country": "FULL NAME or null",
    "incoterms": "EXW|FOB|CIF|etc or null",
    "currency": "USD|EUR|etc or null",
    "total_value": number or null,
    "carrier": "name or null",
    "brand_codes": ["three-letter brand codes, PURCHASE_ORDER only"],
    "confidence": "HIGH|MEDIUM|LOW",
    "notes": "observations"
}

RULES:
1. For COURIER: tracking is 12+ digits from "TRK#" field, NOT alphanumeric codes
2. For AIR: AWB format XXX-XXXXXXXX
3. For SEA: fill vessel_info and container_number from the Bill of Lading
4. brand_codes only from PURCHASE_ORDER documents
5. Return null for uncertain fields, never guess
6. Respond with valid JSON only`

const outboundAWBPrompt = `Extract from Air Waybill:

RESPONSE FORMAT (JSON only):
{
    "awb_number": "XXX-XXXXXXXX or null",
    "flight_number": "flight numbers such as SQ914 or null",
    "flight_date": "YYYY-MM-DD or null",
    "destination": "city, country or null",
    "description": "nature and quantity of goods, copied exactly as printed, or null",
    "currency": "declared value currency or null",
    "invoice_reference": "ITR/SOM number if visible or null",
    "confidence": "HIGH|MEDIUM|LOW",
    "notes": "observations"
}

Respond with valid JSON only.`

const outboundInvoicePrompt = `Extract from Invoice:

RESPONSE FORMAT (JSON only):
{
    "invoice_number": "ITR/SOM + digits or null",
    "date": "YYYY-MM-DD or null",
    "currency": "USD|MYR|PHP|IDR|SGD|EUR|null",
    "total_value": number or null,
    "destination_city": "city or null",
    "destination_country": "country or null",
    "description": "goods description or null",
    "confidence": "HIGH|MEDIUM|LOW",
    "notes": "observations"
}

Respond with valid JSON only.`
