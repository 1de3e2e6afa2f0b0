package port

import (
	"context"

	"shipdecl/internal/domain"
)

// AuditRepository defines the contract for audit trail persistence.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByReference(ctx context.Context, sessionID, reference string, offset, limit int) ([]domain.AuditEntry, int, error)
}
