package repositories

import (
	"context"
	"sort"
	"sync"

	"repohub/internal/models"
)

// MemoryStore is an in-memory backing store for users and repositories.
// A single lock guards both tables so uniqueness checks, the owner
// reference and the delete cascade are atomic.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[uint]models.User
	repos      map[uint]models.Repository
	nextUserID uint
	nextRepoID uint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uint]models.User),
		repos: make(map[uint]models.Repository),
	}
}

// Users returns a UserRepository view of the store.
func (s *MemoryStore) Users() *MemoryUserRepository {
	return &MemoryUserRepository{store: s}
}

// Repositories returns a RepoRepository view of the store.
func (s *MemoryStore) Repositories() *MemoryRepoRepository {
	return &MemoryRepoRepository{store: s}
}

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	store *MemoryStore
}

// GetAll returns all users ordered by ID.
func (r *MemoryUserRepository) GetAll(_ context.Context) ([]models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]models.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// GetByID returns a user by its ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetByEmail returns a user by its email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if user, ok := r.store.userByEmail(email); ok {
		return &user, nil
	}
	return nil, nil
}

// Create adds a new user.
func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, taken := r.store.userByEmail(user.Email); taken {
		return models.ErrDuplicateEmail
	}
	r.store.nextUserID++
	user.ID = r.store.nextUserID
	stored := *user
	stored.Repositories = nil
	r.store.users[user.ID] = stored
	return nil
}

// Delete removes a user and cascades to its repositories.
func (r *MemoryUserRepository) Delete(_ context.Context, id uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[id]; !ok {
		return false, nil
	}
	for repoID, repo := range r.store.repos {
		if repo.OwnerID == id {
			delete(r.store.repos, repoID)
		}
	}
	delete(r.store.users, id)
	return true, nil
}

// MemoryRepoRepository is an in-memory implementation of RepoRepository.
type MemoryRepoRepository struct {
	store *MemoryStore
}

// GetAll returns all repositories with their owners, ordered by ID.
func (r *MemoryRepoRepository) GetAll(_ context.Context) ([]models.Repository, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	repos := r.store.filterRepos(func(models.Repository) bool { return true })
	for i := range repos {
		if owner, ok := r.store.users[repos[i].OwnerID]; ok {
			repos[i].Owner = &owner
		}
	}
	return repos, nil
}

// GetByID returns a repository by its ID.
func (r *MemoryRepoRepository) GetByID(_ context.Context, id uint) (*models.Repository, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	repo, ok := r.store.repos[id]
	if !ok {
		return nil, nil
	}
	return &repo, nil
}

// GetByOwnerAndName returns the repository named name owned by ownerID.
func (r *MemoryRepoRepository) GetByOwnerAndName(_ context.Context, ownerID uint, name string) (*models.Repository, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if repo, ok := r.store.repoByOwnerAndName(ownerID, name); ok {
		return &repo, nil
	}
	return nil, nil
}

// FindByOwner lists the repositories of ownerID.
func (r *MemoryRepoRepository) FindByOwner(_ context.Context, ownerID uint, favoritesOnly bool) ([]models.Repository, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.filterRepos(func(repo models.Repository) bool {
		return repo.OwnerID == ownerID && (!favoritesOnly || repo.IsFavorite)
	}), nil
}

// Create adds a new repository.
func (r *MemoryRepoRepository) Create(_ context.Context, repo *models.Repository) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[repo.OwnerID]; !ok {
		return models.ErrOwnerNotFound
	}
	if _, taken := r.store.repoByOwnerAndName(repo.OwnerID, repo.Name); taken {
		return models.ErrDuplicateName
	}
	r.store.nextRepoID++
	repo.ID = r.store.nextRepoID
	if repo.Version == 0 {
		repo.Version = 1
	}
	stored := *repo
	stored.Owner = nil
	r.store.repos[repo.ID] = stored
	return nil
}

// Update replaces a repository if its version is current.
func (r *MemoryRepoRepository) Update(_ context.Context, repo *models.Repository) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.repos[repo.ID]
	if !ok {
		return models.ErrRepositoryNotFound
	}
	if current.Version != repo.Version {
		return models.ErrConcurrentModification
	}
	if other, taken := r.store.repoByOwnerAndName(current.OwnerID, repo.Name); taken && other.ID != repo.ID {
		return models.ErrDuplicateName
	}
	repo.Version++
	stored := *repo
	stored.OwnerID = current.OwnerID
	stored.CreatedAt = current.CreatedAt
	stored.Owner = nil
	r.store.repos[repo.ID] = stored
	return nil
}

func (s *MemoryStore) userByEmail(email string) (models.User, bool) {
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *MemoryStore) repoByOwnerAndName(ownerID uint, name string) (models.Repository, bool) {
	for _, repo := range s.repos {
		if repo.OwnerID == ownerID && repo.Name == name {
			return repo, true
		}
	}
	return models.Repository{}, false
}

func (s *MemoryStore) filterRepos(keep func(models.Repository) bool) []models.Repository {
	repos := make([]models.Repository, 0)
	for _, repo := range s.repos {
		if keep(repo) {
			repos = append(repos, repo)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos
}

var (
	_ UserRepository = (*MemoryUserRepository)(nil)
	_ RepoRepository = (*MemoryRepoRepository)(nil)
	_ UserRepository = (*GORMUserRepository)(nil)
	_ RepoRepository = (*GORMRepoRepository)(nil)
)
