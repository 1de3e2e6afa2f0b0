// Package audit records every field mutation made while building a declaration.
package audit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipdecl/internal/domain"
	"shipdecl/internal/port"
)

const sinkTimeout = 5 * time.Second

// Trail is an append-only, mutex-guarded audit log. When a repository sink is set,
// each entry is also written there; sink failures are logged and otherwise ignored.
type Trail struct {
	mu        sync.Mutex
	sessionID string
	entries   []domain.AuditEntry
	sink      port.AuditRepository
	now       func() time.Time
}

// Option customizes a Trail.
type Option func(*Trail)

// WithSink persists entries to repo as they are logged.
func WithSink(repo port.AuditRepository) Option {
	return func(t *Trail) { t.sink = repo }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) { t.now = now }
}

// NewTrail creates an empty trail for one session.
func NewTrail(sessionID string, opts ...Option) *Trail {
	t := &Trail{sessionID: sessionID, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session the trail belongs to.
func (t *Trail) SessionID() string { return t.sessionID }

// Log appends one entry.
func (t *Trail) Log(action domain.AuditAction, reference, field string, oldValue, newValue any, source domain.AuditSource, notes string) domain.AuditEntry {
	t.mu.Lock()
	entry := domain.AuditEntry{
		ID:        uuid.New(),
		SessionID: t.sessionID,
		Timestamp: t.now().UTC(),
		Action:    action,
		Reference: reference,
		Field:     field,
		OldValue:  FormatValue(oldValue),
		NewValue:  FormatValue(newValue),
		Source:    source,
		Notes:     notes,
	}
	t.entries = append(t.entries, entry)
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := sink.Create(ctx, &entry); err != nil {
			log.Printf("audit.Trail.Log: persisting %s on %s: %v", action, reference, err)
		}
	}
	return entry
}

// LogExtraction records a value assigned by extraction or ledger parsing.
func (t *Trail) LogExtraction(reference, field string, value any, source domain.AuditSource) {
	t.Log(domain.AuditActionExtracted, reference, field, nil, value, source, "")
}

// LogLedgerApply records a field overwritten with the ledger's value.
func (t *Trail) LogLedgerApply(reference, field string, oldValue, newValue any) {
	t.Log(domain.AuditActionReconciled, reference, field, oldValue, newValue, domain.AuditSourceLedger, "")
}

// LogUserEdit records a reviewer edit.
func (t *Trail) LogUserEdit(reference, field string, oldValue, newValue any) {
	t.Log(domain.AuditActionUserEdit, reference, field, oldValue, newValue, domain.AuditSourceUser, "")
}

// LogValidation records the outcome of a validation pass.
func (t *Trail) LogValidation(reference string, issues []domain.ValidationIssue) {
	msgs := make([]string, 0, len(issues))
	for _, i := range issues {
		msgs = append(msgs, string(i.Severity)+": "+i.Message)
	}
	t.Log(domain.AuditActionValidated, reference, "", nil, msgs, domain.AuditSourceSystem,
		fmt.Sprintf("%d issues found", len(issues)))
}

// LogExport records a generated declaration.
func (t *Trail) LogExport(reference, destination string) {
	t.Log(domain.AuditActionExported, reference, "", nil, destination, domain.AuditSourceSystem, "")
}

// Entries returns a copy of all entries in log order.
func (t *Trail) Entries() []domain.AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.AuditEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// EntriesFor returns the entries for one record.
func (t *Trail) EntriesFor(reference string) []domain.AuditEntry {
	return t.filter(func(e domain.AuditEntry) bool { return e.Reference == reference })
}

// UserEdits returns all reviewer edits.
func (t *Trail) UserEdits() []domain.AuditEntry {
	return t.filter(func(e domain.AuditEntry) bool { return e.Action == domain.AuditActionUserEdit })
}

// Len returns the number of entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Restore replaces the in-memory entries, e.g. after loading a saved session. The sink
// is not written.
func (t *Trail) Restore(entries []domain.AuditEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append([]domain.AuditEntry(nil), entries...)
}

// Clear drops all in-memory entries.
func (t *Trail) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

func (t *Trail) filter(keep func(domain.AuditEntry) bool) []domain.AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range t.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// FormatValue renders a field value for the audit tuple. nil and nil pointers become "".
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *float64:
		if t == nil {
			return ""
		}
		return strconv.FormatFloat(*t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	case []string:
		return strings.Join(t, ", ")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
