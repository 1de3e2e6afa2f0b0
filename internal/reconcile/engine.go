// Package reconcile compares document-derived shipments with the authoritative ledger.
package reconcile

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"

	"shipdecl/internal/domain"
	"shipdecl/internal/matcher"
)

const (
	// DefaultTolerancePercent is the accepted value deviation before an issue is raised.
	DefaultTolerancePercent = 5.0

	// warningPercent separates INFO from WARNING value deviations.
	warningPercent = 10.0

	splitEpsilon = 0.01
)

var referenceIDPattern = regexp.MustCompile(`(\d{7})`)

// Engine reconciles inbound shipments against ledger records.
type Engine struct {
	TolerancePercent float64
}

// NewEngine creates an engine. A negative tolerance falls back to the default.
func NewEngine(tolerancePercent float64) *Engine {
	if tolerancePercent < 0 {
		tolerancePercent = DefaultTolerancePercent
	}
	return &Engine{TolerancePercent: tolerancePercent}
}

// FindLedgerRecord locates the record for a shipment reference. Only seven-digit ids
// from the reference are tried, with exact and key-substring matching.
func FindLedgerRecord(reference string, ledger domain.Ledger) (domain.LedgerRecord, bool) {
	ids := referenceIDPattern.FindAllString(reference, -1)
	res := matcher.MatchUpTo(ids, ledger, matcher.TierKeySubstring)
	if len(res.Matches) == 0 {
		return domain.LedgerRecord{}, false
	}
	return res.Matches[0].Record, true
}

// Reconcile looks up the shipment's ledger record and reconciles against it. The input
// shipment is not modified; the returned copy carries any applied ledger values.
func (e *Engine) Reconcile(shipment domain.InboundShipment, ledger domain.Ledger, autoApply bool) (domain.InboundShipment, domain.ReconciliationResult) {
	rec, ok := FindLedgerRecord(shipment.Reference, ledger)
	if !ok {
		return shipment.Clone(), domain.ReconciliationResult{
			Reference: shipment.Reference,
			Issues: []domain.ReconciliationIssue{{
				Type:          domain.ReconciliationMissingInLedger,
				Severity:      domain.SeverityWarning,
				Field:         "reference",
				DocumentValue: shipment.Reference,
				Message:       fmt.Sprintf("No ledger data found for %s", shipment.Reference),
				Suggestion:    "Check if correct ledger export was uploaded",
			}},
		}
	}
	return e.ReconcileRecord(shipment, rec, autoApply)
}

// ReconcileRecord reconciles against a known ledger record. Every check runs; when
// autoApply is set the ledger's financial fields replace the document's regardless of
// what the checks found.
func (e *Engine) ReconcileRecord(shipment domain.InboundShipment, rec domain.LedgerRecord, autoApply bool) (domain.InboundShipment, domain.ReconciliationResult) {
	out := shipment.Clone()
	res := domain.ReconciliationResult{
		Reference:       shipment.Reference,
		MatchedLedgerID: rec.ID,
		Issues:          []domain.ReconciliationIssue{},
	}

	for _, check := range []func(domain.InboundShipment, domain.LedgerRecord) *domain.ReconciliationIssue{
		checkCurrency,
		e.checkValue,
		checkBrands,
		checkSplits,
	} {
		if issue := check(shipment, rec); issue != nil {
			res.Issues = append(res.Issues, *issue)
		}
	}

	if autoApply {
		applyLedger(&out, rec)
		res.LedgerApplied = true
	}
	if rec.ID != "" && !slices.Contains(out.MatchedLedgerIDs, rec.ID) {
		out.MatchedLedgerIDs = append(out.MatchedLedgerIDs, rec.ID)
	}
	out.ReconciliationIssues = res.Issues
	return out, res
}

// ReconcileBatch reconciles every shipment and returns the results keyed by reference.
func (e *Engine) ReconcileBatch(shipments []domain.InboundShipment, ledger domain.Ledger, autoApply bool) ([]domain.InboundShipment, map[string]domain.ReconciliationResult) {
	updated := make([]domain.InboundShipment, 0, len(shipments))
	results := make(map[string]domain.ReconciliationResult, len(shipments))
	for _, s := range shipments {
		u, r := e.Reconcile(s, ledger, autoApply)
		updated = append(updated, u)
		results[s.Reference] = r
	}
	return updated, results
}

func applyLedger(s *domain.InboundShipment, rec domain.LedgerRecord) {
	s.Currency = rec.Currency
	v := rec.TotalValue
	s.TotalValue = &v
	if len(rec.Brands) > 0 {
		s.Brands = slices.Clone(rec.Brands)
	}
	if len(rec.Splits) > 0 {
		s.Splits = maps.Clone(rec.Splits)
	}
}

func checkCurrency(s domain.InboundShipment, rec domain.LedgerRecord) *domain.ReconciliationIssue {
	if s.Currency == "" || rec.Currency == "" || s.Currency == rec.Currency {
		return nil
	}
	return &domain.ReconciliationIssue{
		Type:           domain.ReconciliationCurrencyMismatch,
		Severity:       domain.SeverityWarning,
		Field:          "currency",
		LedgerValue:    rec.Currency,
		DocumentValue:  s.Currency,
		Message:        fmt.Sprintf("Currency mismatch: Ledger=%s, Doc=%s", rec.Currency, s.Currency),
		Suggestion:     "Ledger currency will be used",
		AutoResolvable: true,
	}
}

func (e *Engine) checkValue(s domain.InboundShipment, rec domain.LedgerRecord) *domain.ReconciliationIssue {
	if rec.TotalValue == 0 {
		return nil
	}
	if s.TotalValue == nil || *s.TotalValue == 0 {
		return &domain.ReconciliationIssue{
			Type:           domain.ReconciliationMissingInDocument,
			Severity:       domain.SeverityInfo,
			Field:          "total_value",
			LedgerValue:    rec.TotalValue,
			Message:        fmt.Sprintf("Document has no value; ledger value is %.2f", rec.TotalValue),
			Suggestion:     "Ledger value will be used",
			AutoResolvable: true,
		}
	}
	doc := *s.TotalValue
	diffPct := math.Abs(doc-rec.TotalValue) / rec.TotalValue * 100
	if diffPct <= e.TolerancePercent {
		return nil
	}
	severity := domain.SeverityWarning
	if diffPct < warningPercent {
		severity = domain.SeverityInfo
	}
	return &domain.ReconciliationIssue{
		Type:           domain.ReconciliationValueMismatch,
		Severity:       severity,
		Field:          "total_value",
		LedgerValue:    rec.TotalValue,
		DocumentValue:  doc,
		Message:        fmt.Sprintf("Value differs by %.1f%%: Ledger=%.2f, Doc=%.2f", diffPct, rec.TotalValue, doc),
		Suggestion:     "Ledger value will be used (source of truth)",
		AutoResolvable: true,
	}
}

func checkBrands(s domain.InboundShipment, rec domain.LedgerRecord) *domain.ReconciliationIssue {
	if len(s.Brands) == 0 || len(rec.Brands) == 0 {
		return nil
	}
	doc := sortedUnique(s.Brands)
	ledger := sortedUnique(rec.Brands)
	if slices.Equal(doc, ledger) {
		return nil
	}
	return &domain.ReconciliationIssue{
		Type:           domain.ReconciliationBrandMismatch,
		Severity:       domain.SeverityInfo,
		Field:          "brands",
		LedgerValue:    ledger,
		DocumentValue:  doc,
		Message:        fmt.Sprintf("Brand mismatch: Ledger=%v, Doc=%v", ledger, doc),
		Suggestion:     "Ledger brands will be used",
		AutoResolvable: true,
	}
}

func checkSplits(s domain.InboundShipment, rec domain.LedgerRecord) *domain.ReconciliationIssue {
	if len(s.Splits) == 0 || len(rec.Splits) == 0 {
		return nil
	}
	regions := map[string]bool{}
	for k := range s.Splits {
		regions[k] = true
	}
	for k := range rec.Splits {
		regions[k] = true
	}
	var differing []string
	for _, k := range slices.Sorted(maps.Keys(regions)) {
		if math.Abs(s.Splits[k]-rec.Splits[k]) > splitEpsilon {
			differing = append(differing, k)
		}
	}
	if len(differing) == 0 {
		return nil
	}
	return &domain.ReconciliationIssue{
		Type:           domain.ReconciliationSplitMismatch,
		Severity:       domain.SeverityWarning,
		Field:          "country_splits",
		LedgerValue:    maps.Clone(rec.Splits),
		DocumentValue:  maps.Clone(s.Splits),
		Message:        fmt.Sprintf("Country splits differ for %v", differing),
		Suggestion:     "Ledger splits will be used",
		AutoResolvable: true,
	}
}

func sortedUnique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
