// Package seed fills an empty store with demo users and repositories. It goes
// through the services so the same uniqueness and ownership rules apply.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repohub/internal/models"
	"repohub/internal/services"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"
)

// Options controls how much demo data is generated.
type Options struct {
	Users        int
	ReposPerUser int
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions is used when SEED_DEMO_DATA is enabled.
var DefaultOptions = Options{Users: 5, ReposPerUser: 3}

// Result reports what was created.
type Result struct {
	Users        int
	Repositories int
	Skipped      bool
}

// Seeder creates demo data through the user and repository services.
type Seeder struct {
	users *services.UserService
	repos *services.RepositoryService
	faker *gofakeit.Faker
	opts  Options
}

// NewSeeder creates a new Seeder.
func NewSeeder(users *services.UserService, repos *services.RepositoryService, opts Options) *Seeder {
	return &Seeder{
		users: users,
		repos: repos,
		faker: gofakeit.New(opts.Seed),
		opts:  opts,
	}
}

// Run seeds the store unless it already holds users.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	existing, err := s.users.ListUsers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check existing users: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Ctx(ctx).Int("users", len(existing)).Msg("store not empty, skipping demo seed")
		return Result{Skipped: true}, nil
	}

	var res Result
	for i := 0; i < s.opts.Users; i++ {
		user, err := s.users.AddUser(ctx, services.CreateUserInput{
			Name:     s.faker.Name(),
			Position: s.faker.JobTitle(),
			Email:    strings.ToLower(s.faker.Email()),
		})
		if errors.Is(err, models.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to seed user: %w", err)
		}
		res.Users++

		for j := 0; j < s.opts.ReposPerUser; j++ {
			favorite := s.faker.Bool()
			_, err := s.repos.AddRepository(ctx, services.CreateRepositoryInput{
				Name:        s.repositoryName(),
				Description: s.faker.HackerPhrase(),
				Language:    s.faker.ProgrammingLanguage(),
				OwnerID:     user.ID,
				IsFavorite:  &favorite,
			})
			if errors.Is(err, models.ErrDuplicateName) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("failed to seed repository for user %d: %w", user.ID, err)
			}
			res.Repositories++
		}
	}

	log.Info().Ctx(ctx).Int("users", res.Users).Int("repositories", res.Repositories).Msg("seeded demo data")
	return res, nil
}

func (s *Seeder) repositoryName() string {
	name := strings.ToLower(s.faker.AppName())
	name = strings.Join(strings.Fields(name), "-")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
