package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"shipdecl/internal/domain"
)

// MockAuditRepo is a mock implementation of port.AuditRepository.
type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepo) ListByReference(ctx context.Context, sessionID, reference string, offset, limit int) ([]domain.AuditEntry, int, error) {
	args := m.Called(ctx, sessionID, reference, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.AuditEntry), args.Int(1), args.Error(2)
}
