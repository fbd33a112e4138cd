package service

import (
	"context"

	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	"idcheck/pkg/platform/audit"
)

// Store persists the verification ledger.
type Store interface {
	Append(ctx context.Context, v *models.Verification) error
	FindByID(ctx context.Context, vid id.VerificationID) (*models.Verification, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Verification, error)
}

// Cache holds outcomes by subject hash. A miss returns sentinel.ErrNotFound.
type Cache interface {
	Get(ctx context.Context, subjectHash string) (models.Outcome, error)
	Set(ctx context.Context, subjectHash string, outcome models.Outcome) error
}

// AuditPublisher records compliance and security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
