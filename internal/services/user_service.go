package services

import (
	"context"
	"errors"
	"fmt"

	"repohub/internal/models"
	"repohub/internal/repositories"
	"repohub/pkg/observability"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// CreateUserInput is the data required to register a user.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Position string `json:"position" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// UserService owns user records and enforces email uniqueness.
type UserService struct {
	repo repositories.UserRepository
	opts options
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository, opts ...Option) *UserService {
	return &UserService{
		repo: repo,
		opts: buildOptions(opts),
	}
}

// ListUsers retrieves all users.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.GetAll(ctx)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to list users")
		observability.RecordOperation("list_users", observability.OutcomeError)
		return nil, err
	}
	log.Debug().Ctx(ctx).Int("count", len(users)).Msg("listed users")
	return users, nil
}

// GetUserByID returns the user with id, or nil if there is none.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	key := userCacheKey(id)
	var cached models.User
	if s.opts.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Uint("user_id", id).Msg("failed to get user")
		return nil, err
	}
	if user == nil {
		log.Debug().Ctx(ctx).Uint("user_id", id).Msg("user not found")
		return nil, nil
	}
	s.opts.cacheSet(ctx, key, user)
	return user, nil
}

// GetUserByEmail returns the user registered with email, or nil.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to get user by email")
		return nil, err
	}
	return user, nil
}

// AddUser registers a new user. It fails with models.ErrDuplicateEmail if
// the email is already in use, whether detected here or by the store.
func (s *UserService) AddUser(ctx context.Context, in CreateUserInput) (_ *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, "UserService.AddUser")
	defer func() { observability.EndSpan(span, err) }()

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		observability.RecordOperation("add_user", observability.OutcomeError)
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		log.Warn().Ctx(ctx).Str("email", in.Email).Msg("email already registered")
		observability.RecordOperation("add_user", observability.OutcomeConflict)
		return nil, models.ErrDuplicateEmail
	}

	now := s.opts.now()
	user := &models.User{
		Name:      in.Name,
		Position:  in.Position,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			log.Warn().Ctx(ctx).Str("email", in.Email).Msg("email registered concurrently")
			observability.RecordOperation("add_user", observability.OutcomeConflict)
			return nil, err
		}
		log.Error().Ctx(ctx).Err(err).Msg("failed to create user")
		observability.RecordOperation("add_user", observability.OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	span.SetAttributes(attribute.Int("user_id", int(user.ID)))
	log.Info().Ctx(ctx).Uint("user_id", user.ID).Msg("user created")
	observability.RecordOperation("add_user", observability.OutcomeSuccess)
	publishEvent(ctx, s.opts.publisher, EventUserCreated, now, user)
	return user, nil
}

// DeleteUser removes a user and every repository it owns.
// It reports false when the user does not exist.
func (s *UserService) DeleteUser(ctx context.Context, id uint) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Uint("user_id", id).Msg("failed to delete user")
		observability.RecordOperation("delete_user", observability.OutcomeError)
		return false, err
	}
	if !deleted {
		observability.RecordOperation("delete_user", observability.OutcomeNotFound)
		return false, nil
	}

	s.opts.cacheDelete(ctx, userCacheKey(id))
	s.opts.cacheDeletePrefix(ctx, repositoryCachePrefix)
	log.Info().Ctx(ctx).Uint("user_id", id).Msg("user deleted")
	observability.RecordOperation("delete_user", observability.OutcomeSuccess)
	publishEvent(ctx, s.opts.publisher, EventUserDeleted, s.opts.now(), map[string]uint{"id": id})
	return true, nil
}
