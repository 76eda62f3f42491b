package audit

import (
	"context"

	"github.com/dmitrijs2005/windbreaker/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
	// ListByEmail returns the newest events for email first, at most limit
	// rows (limit <= 0 means no limit).
	ListByEmail(ctx context.Context, email string, limit int) ([]models.AuditEvent, error)
}
