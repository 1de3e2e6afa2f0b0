package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"shipdecl/internal/domain"
)

var severityMarker = map[domain.Severity]string{
	domain.SeverityError:   "[ERROR]",
	domain.SeverityWarning: "[WARN]",
	domain.SeverityInfo:    "[INFO]",
}

// Report renders a plain-text summary of reconciliation results, references sorted.
func Report(results map[string]domain.ReconciliationResult) string {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRECONCILIATION REPORT\n%s\n\n", rule, rule)

	refs := make([]string, 0, len(results))
	clean, warnings, errs := 0, 0, 0
	for ref, r := range results {
		refs = append(refs, ref)
		switch {
		case !r.HasIssues():
			clean++
		case r.HasErrors():
			errs++
		case r.HasWarnings():
			warnings++
		}
	}
	sort.Strings(refs)

	fmt.Fprintf(&b, "Total Shipments: %d\n", len(results))
	fmt.Fprintf(&b, "  Clean: %d\n", clean)
	fmt.Fprintf(&b, "  Warnings: %d\n", warnings)
	fmt.Fprintf(&b, "  Errors: %d\n", errs)

	for _, ref := range refs {
		r := results[ref]
		if !r.HasIssues() {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s):\n", ref, r.Summary())
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "  %s %s: %s\n", severityMarker[issue.Severity], issue.Field, issue.Message)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "      -> %s\n", issue.Suggestion)
			}
		}
	}
	return b.String()
}
