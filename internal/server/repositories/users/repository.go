package users

import (
	"context"

	"github.com/dmitrijs2005/windbreaker/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID. A taken email yields
	// common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByEmail returns common.ErrNotFound when no account matches.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePassword overwrites the stored hash and, when bumpVersion is set,
	// increments token_version. It returns the resulting version.
	UpdatePassword(ctx context.Context, email, passwordHash string, bumpVersion bool) (int64, error)
}
