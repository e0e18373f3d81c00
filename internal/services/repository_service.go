package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repohub/internal/models"
	"repohub/internal/repositories"
	"repohub/pkg/observability"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// UserDirectory resolves users by ID. UserService implements it.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// CreateRepositoryInput is the data required to add a repository.
// IsFavorite defaults to false and UpdatedAt to the creation time. A
// supplied UpdatedAt is kept between the creation time and now.
type CreateRepositoryInput struct {
	Name        string     `json:"name" validate:"required,min=1,max=100"`
	Description string     `json:"description" validate:"required,min=1,max=500"`
	Language    string     `json:"language" validate:"required,min=1,max=50"`
	OwnerID     uint       `json:"owner_id" validate:"required,gt=0"`
	IsFavorite  *bool      `json:"is_favorite"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// RepositoryService owns repository records. It enforces name uniqueness
// per owner and that the owner exists.
type RepositoryService struct {
	repo  repositories.RepoRepository
	users UserDirectory
	opts  options
}

// NewRepositoryService creates a new RepositoryService.
func NewRepositoryService(repo repositories.RepoRepository, users UserDirectory, opts ...Option) *RepositoryService {
	return &RepositoryService{
		repo:  repo,
		users: users,
		opts:  buildOptions(opts),
	}
}

// ListRepositories retrieves all repositories with their owners.
func (s *RepositoryService) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	repos, err := s.repo.GetAll(ctx)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to list repositories")
		observability.RecordOperation("list_repositories", observability.OutcomeError)
		return nil, err
	}
	log.Debug().Ctx(ctx).Int("count", len(repos)).Msg("listed repositories")
	return repos, nil
}

// ListRepositoriesByOwner lists the repositories of ownerID. The result may
// be empty; models.ErrOwnerNotFound is returned only if the owner is unknown.
func (s *RepositoryService) ListRepositoriesByOwner(ctx context.Context, ownerID uint) ([]models.Repository, error) {
	return s.listByOwner(ctx, ownerID, false)
}

// ListFavoriteRepositoriesByOwner lists the favorite repositories of ownerID.
func (s *RepositoryService) ListFavoriteRepositoriesByOwner(ctx context.Context, ownerID uint) ([]models.Repository, error) {
	return s.listByOwner(ctx, ownerID, true)
}

func (s *RepositoryService) listByOwner(ctx context.Context, ownerID uint, favoritesOnly bool) ([]models.Repository, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner %d: %w", ownerID, err)
	}
	if owner == nil {
		return nil, models.ErrOwnerNotFound
	}

	repos, err := s.repo.FindByOwner(ctx, ownerID, favoritesOnly)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Uint("owner_id", ownerID).Bool("favorites", favoritesOnly).Msg("failed to list repositories of owner")
		return nil, err
	}
	return repos, nil
}

// GetRepositoryByID returns the repository with id, or nil if there is none.
func (s *RepositoryService) GetRepositoryByID(ctx context.Context, id uint) (*models.Repository, error) {
	key := repositoryCacheKey(id)
	var cached models.Repository
	if s.opts.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	repo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Uint("repository_id", id).Msg("failed to get repository")
		return nil, err
	}
	if repo == nil {
		log.Debug().Ctx(ctx).Uint("repository_id", id).Msg("repository not found")
		return nil, nil
	}
	s.opts.cacheSet(ctx, key, repo)
	return repo, nil
}

// AddRepository validates the owner and name and stores a new repository.
func (s *RepositoryService) AddRepository(ctx context.Context, in CreateRepositoryInput) (_ *models.Repository, err error) {
	ctx, span := observability.StartSpan(ctx, "RepositoryService.AddRepository", attribute.Int("owner_id", int(in.OwnerID)))
	defer func() { observability.EndSpan(span, err) }()

	owner, err := s.users.GetUserByID(ctx, in.OwnerID)
	if err != nil {
		observability.RecordOperation("add_repository", observability.OutcomeError)
		return nil, fmt.Errorf("failed to resolve owner %d: %w", in.OwnerID, err)
	}
	if owner == nil {
		log.Warn().Ctx(ctx).Uint("owner_id", in.OwnerID).Msg("owner does not exist")
		observability.RecordOperation("add_repository", observability.OutcomeInvalid)
		return nil, models.ErrOwnerNotFound
	}

	existing, err := s.repo.GetByOwnerAndName(ctx, in.OwnerID, in.Name)
	if err != nil {
		observability.RecordOperation("add_repository", observability.OutcomeError)
		return nil, fmt.Errorf("failed to check repository name: %w", err)
	}
	if existing != nil {
		log.Warn().Ctx(ctx).Uint("owner_id", in.OwnerID).Str("name", in.Name).Msg("repository name already used by owner")
		observability.RecordOperation("add_repository", observability.OutcomeConflict)
		return nil, models.ErrDuplicateName
	}

	now := s.opts.now()
	repo := &models.Repository{
		Name:        in.Name,
		Description: in.Description,
		Language:    in.Language,
		OwnerID:     in.OwnerID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsFavorite != nil {
		repo.IsFavorite = *in.IsFavorite
	}
	if in.UpdatedAt != nil {
		repo.UpdatedAt = clampTime(in.UpdatedAt.UTC(), repo.CreatedAt, now)
	}

	if err := s.repo.Create(ctx, repo); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateName):
			observability.RecordOperation("add_repository", observability.OutcomeConflict)
			return nil, err
		case errors.Is(err, models.ErrOwnerNotFound):
			observability.RecordOperation("add_repository", observability.OutcomeInvalid)
			return nil, err
		}
		log.Error().Ctx(ctx).Err(err).Msg("failed to create repository")
		observability.RecordOperation("add_repository", observability.OutcomeError)
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	log.Info().Ctx(ctx).Uint("repository_id", repo.ID).Uint("owner_id", repo.OwnerID).Msg("repository created")
	observability.RecordOperation("add_repository", observability.OutcomeSuccess)
	publishEvent(ctx, s.opts.publisher, EventRepositoryCreated, now, repo)
	return repo, nil
}

// SetFavorite sets the favorite flag of a repository and returns the
// updated record, or nil if the repository does not exist.
func (s *RepositoryService) SetFavorite(ctx context.Context, id uint, isFavorite bool) (*models.Repository, error) {
	repo, err := s.mutate(ctx, "set_favorite", id, func(r *models.Repository) {
		r.IsFavorite = isFavorite
	})
	if err != nil || repo == nil {
		return repo, err
	}
	publishEvent(ctx, s.opts.publisher, EventRepositoryFavorited, repo.UpdatedAt, repo)
	return repo, nil
}

// UpdateRepository merges the non-nil fields of patch into the repository
// and returns the result, or nil if the repository does not exist.
func (s *RepositoryService) UpdateRepository(ctx context.Context, id uint, patch models.RepositoryPatch) (*models.Repository, error) {
	if patch.Name != nil {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load repository %d: %w", id, err)
		}
		if current == nil {
			observability.RecordOperation("update_repository", observability.OutcomeNotFound)
			return nil, nil
		}
		if *patch.Name != current.Name {
			clash, err := s.repo.GetByOwnerAndName(ctx, current.OwnerID, *patch.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to check repository name: %w", err)
			}
			if clash != nil {
				log.Warn().Ctx(ctx).Uint("repository_id", id).Str("name", *patch.Name).Msg("rename clashes with another repository")
				observability.RecordOperation("update_repository", observability.OutcomeConflict)
				return nil, models.ErrDuplicateName
			}
		}
	}

	repo, err := s.mutate(ctx, "update_repository", id, patch.Apply)
	if err != nil || repo == nil {
		return repo, err
	}
	publishEvent(ctx, s.opts.publisher, EventRepositoryUpdated, repo.UpdatedAt, repo)
	return repo, nil
}

// mutate loads a repository, applies change, refreshes UpdatedAt and writes
// it back guarded by the loaded version.
func (s *RepositoryService) mutate(ctx context.Context, operation string, id uint, change func(*models.Repository)) (_ *models.Repository, err error) {
	ctx, span := observability.StartSpan(ctx, "RepositoryService."+operation, attribute.Int("repository_id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	repo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Uint("repository_id", id).Msg("failed to load repository")
		observability.RecordOperation(operation, observability.OutcomeError)
		return nil, err
	}
	if repo == nil {
		log.Debug().Ctx(ctx).Uint("repository_id", id).Msg("repository not found")
		observability.RecordOperation(operation, observability.OutcomeNotFound)
		return nil, nil
	}

	change(repo)
	repo.UpdatedAt = refreshed(s.opts.now(), repo.UpdatedAt)

	key := repositoryCacheKey(id)
	s.opts.cacheDelete(ctx, key)
	if err := s.repo.Update(ctx, repo); err != nil {
		switch {
		case errors.Is(err, models.ErrRepositoryNotFound):
			log.Debug().Ctx(ctx).Uint("repository_id", id).Msg("repository deleted during update")
			observability.RecordOperation(operation, observability.OutcomeNotFound)
			return nil, nil
		case errors.Is(err, models.ErrConcurrentModification):
			log.Warn().Ctx(ctx).Uint("repository_id", id).Msg("repository modified concurrently")
			observability.RecordOperation(operation, observability.OutcomeConflict)
			return nil, err
		case errors.Is(err, models.ErrDuplicateName):
			observability.RecordOperation(operation, observability.OutcomeConflict)
			return nil, err
		}
		log.Error().Ctx(ctx).Err(err).Uint("repository_id", id).Msg("failed to update repository")
		observability.RecordOperation(operation, observability.OutcomeError)
		return nil, fmt.Errorf("failed to update repository %d: %w", id, err)
	}

	s.opts.cacheSet(ctx, key, repo)
	log.Info().Ctx(ctx).Uint("repository_id", id).Str("operation", operation).Msg("repository updated")
	observability.RecordOperation(operation, observability.OutcomeSuccess)
	return repo, nil
}
