package validator

import (
	"shipdecl/internal/domain"
)

// FieldStatusValid marks a field with no issues.
const FieldStatusValid = "VALID"

// FieldStatus is the computed validation state for a single field.
type FieldStatus struct {
	Status   string   `json:"status"`
	Messages []string `json:"messages"`
}

// ComputeFieldStatuses derives a per-field status from issues. The most severe issue
// on a field decides its status; fields listed in fields but without issues are VALID.
func ComputeFieldStatuses(issues []domain.ValidationIssue, fields ...string) map[string]*FieldStatus {
	out := make(map[string]*FieldStatus, len(fields))
	for _, f := range fields {
		out[f] = &FieldStatus{Status: FieldStatusValid, Messages: []string{}}
	}
	for _, i := range issues {
		fs, ok := out[i.Field]
		if !ok {
			fs = &FieldStatus{Status: FieldStatusValid, Messages: []string{}}
			out[i.Field] = fs
		}
		fs.Messages = append(fs.Messages, i.Message)
		if severityRank(i.Severity) > statusRank(fs.Status) {
			fs.Status = string(i.Severity)
		}
	}
	return out
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityError:
		return 3
	case domain.SeverityWarning:
		return 2
	case domain.SeverityInfo:
		return 1
	}
	return 0
}

func statusRank(status string) int {
	if status == FieldStatusValid {
		return 0
	}
	return severityRank(domain.Severity(status))
}
