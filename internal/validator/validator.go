// Package validator holds the per-record validation rules for declaration records.
package validator

import (
	"shipdecl/internal/domain"
)

// Validator is a single built-in validation rule over a record of type T.
type Validator[T any] interface {
	Validate(record *T) []domain.ValidationIssue
	RuleKey() string
	RuleName() string
	Severity() domain.Severity
}

// builtinValidator wraps a check function and its metadata for the registry.
// The check returns nil when the record passes.
type builtinValidator[T any] struct {
	key   string
	name  string
	field string
	sev   domain.Severity
	fn    func(*T) *domain.ValidationIssue
}

func (b *builtinValidator[T]) Validate(record *T) []domain.ValidationIssue {
	issue := b.fn(record)
	if issue == nil {
		return nil
	}
	issue.Severity = b.sev
	if issue.Field == "" {
		issue.Field = b.field
	}
	return []domain.ValidationIssue{*issue}
}
func (b *builtinValidator[T]) RuleKey() string           { return b.key }
func (b *builtinValidator[T]) RuleName() string          { return b.name }
func (b *builtinValidator[T]) Severity() domain.Severity { return b.sev }

func rule[T any](key, name, field string, sev domain.Severity, fn func(*T) *domain.ValidationIssue) Validator[T] {
	return &builtinValidator[T]{key: key, name: name, field: field, sev: sev, fn: fn}
}

func issue(message, suggestion string) *domain.ValidationIssue {
	return &domain.ValidationIssue{Message: message, Suggestion: suggestion}
}
