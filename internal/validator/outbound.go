package validator

import (
	"strings"

	"shipdecl/internal/domain"
)

// OutboundValidators returns the built-in outbound rules.
func OutboundValidators() []Validator[domain.OutboundShipment] {
	return []Validator[domain.OutboundShipment]{
		rule("outbound.invoice_number.required", "Invoice Number Required", "invoice_number", domain.SeverityError,
			func(s *domain.OutboundShipment) *domain.ValidationIssue {
				if strings.TrimSpace(s.InvoiceNumber) != "" {
					return nil
				}
				return issue("Missing invoice number", "Check invoice document")
			}),
		rule("outbound.currency.required", "Currency Required", "currency", domain.SeverityWarning,
			func(s *domain.OutboundShipment) *domain.ValidationIssue {
				if s.Currency != "" {
					return nil
				}
				return issue("Missing currency", "Check invoice for currency")
			}),
		rule("outbound.value.positive", "Positive Value", "value", domain.SeverityWarning,
			func(s *domain.OutboundShipment) *domain.ValidationIssue {
				if s.Value != nil && *s.Value > 0 {
					return nil
				}
				return issue("Missing or invalid value", "Check invoice total")
			}),
	}
}
