package repositories

import (
	"context"

	"repohub/internal/models"
)

// UserRepository defines the interface for user data access.
// Lookups return a nil user and a nil error when nothing matches.
type UserRepository interface {
	GetAll(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create persists the user and fills in its ID.
	// A taken email is reported as models.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) error
	// Delete removes the user and every repository it owns.
	Delete(ctx context.Context, id uint) (bool, error)
}
