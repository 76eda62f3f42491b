package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/models"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
)

// AuditLog appends authentication events. Recording is best-effort: a
// failed write is logged and never reaches the caller.
type AuditLog struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewAuditLog(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, mx *metrics.Metrics) *AuditLog {
	return &AuditLog{
		db:          db,
		repomanager: m,
		logger:      logger,
		metrics:     mx,
		now:         time.Now,
	}
}

// Record stores one event.
func (a *AuditLog) Record(ctx context.Context, email string, kind models.AuditKind, clientAddr string) {
	a.metrics.AuthEvent(string(kind))

	event := &models.AuditEvent{
		Email:      email,
		Event:      kind,
		ClientAddr: clientAddr,
		CreatedAt:  a.now().UTC(),
	}

	// the request may already be cancelled; the row should still land
	ctx = context.WithoutCancel(ctx)
	if err := a.repomanager.Audit(a.db).Create(ctx, event); err != nil {
		a.logger.Error(ctx, "audit write failed", "event", string(kind), "email", email, "error", err)
	}
}

// ListByEmail returns the newest events for email first.
func (a *AuditLog) ListByEmail(ctx context.Context, email string, limit int) ([]models.AuditEvent, error) {
	return a.repomanager.Audit(a.db).ListByEmail(ctx, normalizeEmail(email), limit)
}
