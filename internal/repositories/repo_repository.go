package repositories

import (
	"context"

	"repohub/internal/models"
)

// RepoRepository defines the interface for repository data access.
type RepoRepository interface {
	// GetAll returns every repository with its owner loaded.
	GetAll(ctx context.Context) ([]models.Repository, error)
	GetByID(ctx context.Context, id uint) (*models.Repository, error)
	GetByOwnerAndName(ctx context.Context, ownerID uint, name string) (*models.Repository, error)
	FindByOwner(ctx context.Context, ownerID uint, favoritesOnly bool) ([]models.Repository, error)
	// Create persists the repository and fills in its ID.
	// Reports models.ErrDuplicateName or models.ErrOwnerNotFound on constraint violations.
	Create(ctx context.Context, repo *models.Repository) error
	// Update writes repo if its Version still matches the stored one and
	// bumps the version. Otherwise it returns models.ErrConcurrentModification.
	Update(ctx context.Context, repo *models.Repository) error
}
