package validator

import (
	"fmt"
	"math"

	"shipdecl/internal/domain"
)

// LedgerValidators returns the self-checks run on every parsed ledger record.
func LedgerValidators() []Validator[domain.LedgerRecord] {
	return []Validator[domain.LedgerRecord]{
		rule("ledger.splits.total", "Splits Sum To Total", "country_splits", domain.SeverityError,
			func(r *domain.LedgerRecord) *domain.ValidationIssue {
				if len(r.Splits) == 0 {
					return nil
				}
				sum := r.SplitsSum()
				if math.Abs(sum-r.TotalValue) <= splitEpsilon {
					return nil
				}
				return issue(fmt.Sprintf("Splits (%.2f) don't sum to total (%.2f), off by %.2f", sum, r.TotalValue, math.Abs(sum-r.TotalValue)),
					"Check ledger export for missing rows")
			}),
		rule("ledger.brands.required", "Brands Present", "brands", domain.SeverityWarning,
			func(r *domain.LedgerRecord) *domain.ValidationIssue {
				if len(r.Brands) > 0 {
					return nil
				}
				return issue("No brand information found", "Brand column may be missing or empty")
			}),
	}
}
