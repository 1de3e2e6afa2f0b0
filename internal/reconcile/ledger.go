package reconcile

import (
	"maps"
	"slices"
	"strings"

	"shipdecl/internal/domain"
)

// ApplyLedger copies ledger values onto a shipment according to mode and returns the
// names of the fields it wrote. document_wins leaves the shipment alone.
func ApplyLedger(s *domain.InboundShipment, rec domain.LedgerRecord, mode domain.LedgerMergeMode) []string {
	switch mode {
	case domain.LedgerMergeLedgerWins:
		s.Currency = rec.Currency
		v := rec.TotalValue
		s.TotalValue = &v
		s.Brands = slices.Clone(rec.Brands)
		s.Splits = maps.Clone(rec.Splits)
		return []string{"currency", "total_value", "brands", "country_splits"}
	case domain.LedgerMergeMerge:
		// Financial fields only; empty ledger brands or splits keep the document's.
		updated := []string{"currency", "total_value"}
		s.Currency = rec.Currency
		v := rec.TotalValue
		s.TotalValue = &v
		if len(rec.Brands) > 0 {
			s.Brands = slices.Clone(rec.Brands)
			updated = append(updated, "brands")
		}
		if len(rec.Splits) > 0 {
			s.Splits = maps.Clone(rec.Splits)
			updated = append(updated, "country_splits")
		}
		return updated
	}
	return nil
}

// CombineLedger folds several matched records into one: totals and splits are summed,
// brands unioned and sorted, the first non-empty currency kept.
func CombineLedger(records []domain.LedgerRecord) (domain.LedgerRecord, bool) {
	if len(records) == 0 {
		return domain.LedgerRecord{}, false
	}
	if len(records) == 1 {
		r := records[0]
		r.Brands = slices.Clone(r.Brands)
		r.Splits = maps.Clone(r.Splits)
		return r, true
	}

	combined := domain.LedgerRecord{Splits: map[string]float64{}}
	var ids, files []string
	for _, r := range records {
		ids = append(ids, r.ID)
		if r.SourceFile != "" && !slices.Contains(files, r.SourceFile) {
			files = append(files, r.SourceFile)
		}
		combined.Brands = append(combined.Brands, r.Brands...)
		combined.TotalValue += r.TotalValue
		combined.RowCount += r.RowCount
		if combined.Currency == "" {
			combined.Currency = r.Currency
		}
		for region, v := range r.Splits {
			combined.Splits[region] += v
		}
	}
	combined.ID = strings.Join(ids, ", ")
	combined.SourceFile = strings.Join(files, ", ")
	combined.Brands = sortedUnique(combined.Brands)
	return combined, true
}
