package validator

import (
	"shipdecl/internal/domain"
)

// Engine runs the registered rules for each record kind. Validation is a pure function
// of the record's current field values.
type Engine struct {
	inbound  *Registry[domain.InboundShipment]
	outbound *Registry[domain.OutboundShipment]
	ledger   *Registry[domain.LedgerRecord]
}

// Options carries the reference data used by the optional inbound checks.
type Options struct {
	KnownBrands     []string
	ValidCurrencies []string
}

// NewEngine creates an engine with all built-in rules registered.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		inbound:  NewRegistry[domain.InboundShipment](),
		outbound: NewRegistry[domain.OutboundShipment](),
		ledger:   NewRegistry[domain.LedgerRecord](),
	}
	for _, v := range InboundValidators(opts.KnownBrands, opts.ValidCurrencies) {
		e.inbound.Register(v)
	}
	for _, v := range OutboundValidators() {
		e.outbound.Register(v)
	}
	for _, v := range LedgerValidators() {
		e.ledger.Register(v)
	}
	return e
}

// RegisterInbound adds or replaces an inbound rule.
func (e *Engine) RegisterInbound(v Validator[domain.InboundShipment]) { e.inbound.Register(v) }

// RegisterOutbound adds or replaces an outbound rule.
func (e *Engine) RegisterOutbound(v Validator[domain.OutboundShipment]) { e.outbound.Register(v) }

// ValidateInbound returns the issues for an inbound shipment.
func (e *Engine) ValidateInbound(s *domain.InboundShipment) []domain.ValidationIssue {
	return run(e.inbound, s)
}

// ValidateOutbound returns the issues for an outbound shipment.
func (e *Engine) ValidateOutbound(s *domain.OutboundShipment) []domain.ValidationIssue {
	return run(e.outbound, s)
}

// ValidateLedger returns the issues for a ledger record.
func (e *Engine) ValidateLedger(r *domain.LedgerRecord) []domain.ValidationIssue {
	return run(e.ledger, r)
}

func run[T any](reg *Registry[T], record *T) []domain.ValidationIssue {
	issues := []domain.ValidationIssue{}
	for _, v := range reg.All() {
		issues = append(issues, v.Validate(record)...)
	}
	return issues
}
