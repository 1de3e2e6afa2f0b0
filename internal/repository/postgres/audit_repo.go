package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shipdecl/internal/domain"
	"shipdecl/internal/port"
)

type auditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo creates a new PostgreSQL-backed AuditRepository.
func NewAuditRepo(db *sqlx.DB) port.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO audit_entries (id, session_id, created_at, action, reference, field_name, old_value, new_value, source, notes)
		 VALUES (:id, :session_id, :created_at, :action, :reference, :field_name, :old_value, :new_value, :source, :notes)`,
		entry)
	if err != nil {
		return fmt.Errorf("auditRepo.Create: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByReference(ctx context.Context, sessionID, reference string, offset, limit int) ([]domain.AuditEntry, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM audit_entries WHERE session_id = $1 AND reference = $2`,
		sessionID, reference)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.ListByReference count: %w", err)
	}

	var entries []domain.AuditEntry
	err = r.db.SelectContext(ctx, &entries,
		`SELECT id, session_id, created_at, action, reference, field_name, old_value, new_value, source, notes
		 FROM audit_entries
		 WHERE session_id = $1 AND reference = $2
		 ORDER BY created_at ASC
		 LIMIT $3 OFFSET $4`,
		sessionID, reference, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.ListByReference: %w", err)
	}
	return entries, total, nil
}
