package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"shipdecl/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// auditColumns defines the audit trail header row.
var auditColumns = []string{
	"Timestamp",
	"Session",
	"Action",
	"Reference",
	"Field",
	"Old Value",
	"New Value",
	"Source",
	"Notes",
}

// issueColumns defines the review report header row.
var issueColumns = []string{
	"Direction",
	"Reference",
	"Check",
	"Severity",
	"Type",
	"Field",
	"Ledger Value",
	"Document Value",
	"Message",
	"Suggestion",
	"Auto Resolvable",
}

// Writer wraps csv.Writer for exporting review data as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteBOM writes the UTF-8 byte order mark. Call it before any row.
func WriteBOM(w io.Writer) error {
	_, err := w.Write(BOM)
	return err
}

// WriteAuditHeader writes the audit trail header row.
func (w *Writer) WriteAuditHeader() error {
	return w.csv.Write(auditColumns)
}

// WriteAuditEntries writes one row per audit entry.
func (w *Writer) WriteAuditEntries(entries []domain.AuditEntry) error {
	for i := range entries {
		if err := w.csv.Write(auditToRow(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// WriteIssueHeader writes the review report header row.
func (w *Writer) WriteIssueHeader() error {
	return w.csv.Write(issueColumns)
}

// WriteInboundIssues writes every validation and reconciliation issue of the shipments.
// Shipments without issues produce no rows.
func (w *Writer) WriteInboundIssues(shipments []domain.InboundShipment) error {
	for i := range shipments {
		s := &shipments[i]
		for j := range s.ValidationIssues {
			if err := w.csv.Write(validationToRow("Inbound", s.Reference, &s.ValidationIssues[j])); err != nil {
				return err
			}
		}
		for j := range s.ReconciliationIssues {
			if err := w.csv.Write(reconciliationToRow(s.Reference, &s.ReconciliationIssues[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteOutboundIssues writes the validation issues of outbound shipments.
func (w *Writer) WriteOutboundIssues(shipments []domain.OutboundShipment) error {
	for i := range shipments {
		s := &shipments[i]
		for j := range s.ValidationIssues {
			if err := w.csv.Write(validationToRow("Outbound", s.InvoiceNumber, &s.ValidationIssues[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func auditToRow(e *domain.AuditEntry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.SessionID,
		string(e.Action),
		e.Reference,
		e.Field,
		e.OldValue,
		e.NewValue,
		string(e.Source),
		e.Notes,
	}
}

func validationToRow(direction, ref string, issue *domain.ValidationIssue) []string {
	row := make([]string, len(issueColumns))
	row[0] = direction
	row[1] = ref
	row[2] = "Validation"
	row[3] = string(issue.Severity)
	row[5] = issue.Field
	row[8] = issue.Message
	row[9] = issue.Suggestion
	row[10] = formatBool(false)
	return row
}

func reconciliationToRow(ref string, issue *domain.ReconciliationIssue) []string {
	return []string{
		"Inbound",
		ref,
		"Reconciliation",
		string(issue.Severity),
		string(issue.Type),
		issue.Field,
		formatValue(issue.LedgerValue),
		formatValue(issue.DocumentValue),
		issue.Message,
		issue.Suggestion,
		formatBool(issue.AutoResolvable),
	}
}

// formatValue renders reconciliation values; money keeps two decimals.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return formatMoney(t)
	case *float64:
		if t == nil {
			return ""
		}
		return formatMoney(*t)
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case map[string]float64:
		parts := make([]string, 0, len(t))
		for _, k := range slices.Sorted(maps.Keys(t)) {
			parts = append(parts, k+"="+formatMoney(t[k]))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in a file name or Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized CSV file name.
// Format: {sanitized_name}_{YYYY-MM-DD}.csv
func BuildFilename(name string) string {
	sanitized := SanitizeFilename(name)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", sanitized, date)
}
