package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/windbreaker/internal/dbx"
	"github.com/dmitrijs2005/windbreaker/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	query := r.dialect.Rebind(
		`INSERT INTO audit_logs (email, event, client_addr, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		event.Email, string(event.Event), event.ClientAddr, event.CreatedAt).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *SQLRepository) ListByEmail(ctx context.Context, email string, limit int) ([]models.AuditEvent, error) {
	query := `SELECT id, email, event, client_addr, created_at FROM audit_logs
		 WHERE email = ?
		 ORDER BY id DESC`
	args := []any{email}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			e    models.AuditEvent
			kind string
		)
		if err := rows.Scan(&e.ID, &e.Email, &kind, &e.ClientAddr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Event = models.AuditKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return events, nil
}
