package repositories

import (
	"context"
	"errors"
	"fmt"

	"repohub/internal/models"

	"gorm.io/gorm"
)

// GORMRepoRepository is a GORM implementation of RepoRepository.
type GORMRepoRepository struct {
	db *gorm.DB
}

// NewGORMRepoRepository creates a new instance of GORMRepoRepository.
func NewGORMRepoRepository(db *gorm.DB) *GORMRepoRepository {
	return &GORMRepoRepository{
		db: db,
	}
}

// GetAll retrieves all repositories together with their owners.
func (r *GORMRepoRepository) GetAll(ctx context.Context) ([]models.Repository, error) {
	repos := make([]models.Repository, 0)
	if err := r.db.WithContext(ctx).Preload("Owner").Order("id").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to get all repositories: %w", err)
	}
	return repos, nil
}

// GetByID retrieves a single repository by its ID.
func (r *GORMRepoRepository) GetByID(ctx context.Context, id uint) (*models.Repository, error) {
	var repo models.Repository
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&repo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get repository by ID %d: %w", id, err)
	}
	return &repo, nil
}

// GetByOwnerAndName retrieves the repository named name owned by ownerID.
func (r *GORMRepoRepository) GetByOwnerAndName(ctx context.Context, ownerID uint, name string) (*models.Repository, error) {
	var repo models.Repository
	err := r.db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerID, name).First(&repo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get repository %q of owner %d: %w", name, ownerID, err)
	}
	return &repo, nil
}

// FindByOwner lists the repositories of ownerID, optionally only favorites.
func (r *GORMRepoRepository) FindByOwner(ctx context.Context, ownerID uint, favoritesOnly bool) ([]models.Repository, error) {
	repos := make([]models.Repository, 0)
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if favoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}
	if err := q.Order("id").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to list repositories of owner %d: %w", ownerID, err)
	}
	return repos, nil
}

// Create creates a new repository in the database.
func (r *GORMRepoRepository) Create(ctx context.Context, repo *models.Repository) error {
	if repo.Version == 0 {
		repo.Version = 1
	}
	if err := r.db.WithContext(ctx).Omit("Owner").Create(repo).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return models.ErrDuplicateName
		case isForeignKeyViolation(err):
			return models.ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create repository: %w", err)
	}
	return nil
}

// Update writes the mutable fields of repo guarded by its version.
func (r *GORMRepoRepository) Update(ctx context.Context, repo *models.Repository) error {
	res := r.db.WithContext(ctx).
		Model(&models.Repository{}).
		Where("id = ? AND version = ?", repo.ID, repo.Version).
		Updates(map[string]interface{}{
			"name":        repo.Name,
			"description": repo.Description,
			"language":    repo.Language,
			"is_favorite": repo.IsFavorite,
			"updated_at":  repo.UpdatedAt,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return models.ErrDuplicateName
		}
		return fmt.Errorf("failed to update repository %d: %w", repo.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Repository{}).Where("id = ?", repo.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check repository %d: %w", repo.ID, err)
		}
		if count == 0 {
			return models.ErrRepositoryNotFound
		}
		return models.ErrConcurrentModification
	}
	repo.Version++
	return nil
}
